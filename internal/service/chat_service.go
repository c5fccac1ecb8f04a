package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/parcelpal/internal/authz"
	"github.com/parcelpal/internal/config"
	"github.com/parcelpal/internal/constants"
	"github.com/parcelpal/internal/logger"
	"github.com/parcelpal/internal/models"
	"github.com/parcelpal/internal/realtime"
	"github.com/parcelpal/internal/repository"

	"gorm.io/gorm"
)

const (
	defaultMaxMessageLength = 2000
	defaultMessagePageSize  = 200
)

// ChatService per-delivery chat and amount negotiation
type ChatService struct {
	cfg       *config.Config
	db        *gorm.DB
	chatRepo  repository.ChatRepository
	userRepo  repository.UserRepository
	authz     *authz.Service
	publisher realtime.Publisher
}

// NewChatService creates the chat service
func NewChatService(cfg *config.Config, db *gorm.DB, chatRepo repository.ChatRepository, userRepo repository.UserRepository, authzService *authz.Service, publisher realtime.Publisher) *ChatService {
	return &ChatService{
		cfg:       cfg,
		db:        db,
		chatRepo:  chatRepo,
		userRepo:  userRepo,
		authz:     authzService,
		publisher: publisher,
	}
}

// GetByDelivery chat of a delivery; ErrChatNotFound until the delivery is accepted
func (s *ChatService) GetByDelivery(userID, deliveryID uint) (*models.Chat, error) {
	chat, err := s.chatRepo.GetByDelivery(deliveryID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}
	if err := s.authorize(chat, userID); err != nil {
		return nil, err
	}
	return chat, nil
}

// Get chat by id for a member
func (s *ChatService) Get(userID, chatID uint) (*models.Chat, error) {
	chat, err := s.load(chatID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(chat, userID); err != nil {
		return nil, err
	}
	return chat, nil
}

// ListMessages oldest first, optionally after a message id
func (s *ChatService) ListMessages(userID, chatID, afterID uint, limit int) ([]models.Message, error) {
	if _, err := s.Get(userID, chatID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > defaultMessagePageSize {
		limit = defaultMessagePageSize
	}
	return s.chatRepo.ListMessages(repository.MessageListFilter{
		ChatID:   chatID,
		AfterID:  afterID,
		PageSize: limit,
	})
}

// Send appends a user message
func (s *ChatService) Send(ctx context.Context, userID, chatID uint, content string) (*models.Message, error) {
	chat, err := s.Get(userID, chatID)
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrMessageEmpty
	}
	if utf8.RuneCountInString(content) > s.maxMessageLength() {
		return nil, ErrMessageTooLong
	}
	message := &models.Message{
		ChatID:   chat.ID,
		SenderID: userID,
		Content:  content,
	}
	if err := s.chatRepo.AddMessage(message); err != nil {
		return nil, err
	}
	emit(ctx, s.publisher, realtime.TypeMessageCreated, realtime.MessagesTopic(chat.ID), message)
	return message, nil
}

// Pin proposes an amount. An unconfirmed pin is overwritten; a confirmed one
// only when chat.allow_repin_after_confirm is set.
func (s *ChatService) Pin(ctx context.Context, userID, chatID uint, amount models.Money) (*models.Chat, error) {
	chat, err := s.Get(userID, chatID)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, ErrAmountInvalid
	}
	allowRepin := s.cfg.Chat.AllowRepinAfterConfirm
	if chat.Confirmed && !allowRepin {
		return nil, ErrAmountConfirmed
	}

	now := time.Now()
	content := fmt.Sprintf("%s pinned amount: Rs. %s", s.displayName(userID), amount.Display())
	var message *models.Message
	err = s.db.Transaction(func(tx *gorm.DB) error {
		chats := s.chatRepo.WithTx(tx)
		pinned, err := chats.PinAmount(chatID, userID, amount, now, allowRepin)
		if err != nil {
			return err
		}
		if !pinned {
			return ErrAmountConfirmed
		}
		message = &models.Message{ChatID: chatID, SenderID: userID, Content: content, IsSystem: true}
		return chats.AddMessage(message)
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.load(chatID)
	if err != nil {
		return nil, err
	}
	logger.Infow("chat_amount_pinned",
		"chat_id", chatID,
		"delivery_id", updated.DeliveryID,
		"user_id", userID,
		"amount", amount.String(),
		"repin_after_confirm", chat.Confirmed,
	)
	s.publishNegotiation(ctx, updated, message)
	return updated, nil
}

// Confirm the counter-party accepts the pinned amount; repeating it is a no-op
func (s *ChatService) Confirm(ctx context.Context, userID, chatID uint) (*models.Chat, error) {
	chat, err := s.Get(userID, chatID)
	if err != nil {
		return nil, err
	}
	if chat.Confirmed {
		return chat, nil
	}
	if chat.AgreedAmount == nil || chat.PinnedBy == nil {
		return nil, ErrNoPin
	}
	if *chat.PinnedBy == userID {
		return nil, ErrPinnerCannotConfirm
	}
	amount := *chat.AgreedAmount

	now := time.Now()
	var message *models.Message
	err = s.db.Transaction(func(tx *gorm.DB) error {
		chats := s.chatRepo.WithTx(tx)
		confirmed, err := chats.ConfirmPinned(chatID, userID, now)
		if err != nil {
			return err
		}
		if !confirmed {
			return errNegotiationMoved
		}
		// the amount may have been re-pinned since the first read
		current, err := chats.GetByID(chatID)
		if err != nil {
			return err
		}
		if current != nil && current.AgreedAmount != nil {
			amount = *current.AgreedAmount
		}
		message = &models.Message{
			ChatID:   chatID,
			SenderID: userID,
			Content:  fmt.Sprintf("Final agreed amount: Rs. %s", amount.Display()),
			IsSystem: true,
		}
		return chats.AddMessage(message)
	})
	if errors.Is(err, errNegotiationMoved) {
		return s.settleConfirmRace(userID, chatID)
	}
	if err != nil {
		return nil, err
	}

	updated, err := s.load(chatID)
	if err != nil {
		return nil, err
	}
	logger.Infow("chat_amount_confirmed",
		"chat_id", chatID,
		"delivery_id", updated.DeliveryID,
		"user_id", userID,
		"amount", amount.String(),
	)
	s.publishNegotiation(ctx, updated, message)
	return updated, nil
}

// errNegotiationMoved the pin changed between read and confirm
var errNegotiationMoved = errors.New("negotiation moved")

// settleConfirmRace re-reads after a lost conditional confirm
func (s *ChatService) settleConfirmRace(userID, chatID uint) (*models.Chat, error) {
	current, err := s.load(chatID)
	if err != nil {
		return nil, err
	}
	switch {
	case current.Confirmed:
		return current, nil
	case current.PinnedBy == nil:
		return nil, ErrNoPin
	case *current.PinnedBy == userID:
		return nil, ErrPinnerCannotConfirm
	default:
		return nil, ErrNoPin
	}
}

func (s *ChatService) publishNegotiation(ctx context.Context, chat *models.Chat, message *models.Message) {
	if message != nil {
		emit(ctx, s.publisher, realtime.TypeMessageCreated, realtime.MessagesTopic(chat.ID), message)
	}
	emit(ctx, s.publisher, realtime.TypeChatUpdated, realtime.ChatTopic(chat.ID), chat)
}

func (s *ChatService) authorize(chat *models.Chat, userID uint) error {
	role := constants.RoleCandidate
	switch {
	case chat.SenderID == userID:
		role = constants.RoleSender
	case chat.PartnerID == userID:
		role = constants.RolePartner
	}
	allowed, err := s.authz.Can(role, authz.ObjectChat, constants.ActionChat)
	if err != nil {
		return err
	}
	if !allowed || !chat.IsMember(userID) {
		return ErrForbidden
	}
	return nil
}

func (s *ChatService) load(chatID uint) (*models.Chat, error) {
	if chatID == 0 {
		return nil, ErrChatNotFound
	}
	chat, err := s.chatRepo.GetByID(chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}
	return chat, nil
}

func (s *ChatService) displayName(userID uint) string {
	user, err := s.userRepo.GetByID(userID)
	if err != nil || user == nil || strings.TrimSpace(user.FullName) == "" {
		return constants.DefaultFullName
	}
	return strings.TrimSpace(user.FullName)
}

func (s *ChatService) maxMessageLength() int {
	if s.cfg.Chat.MaxMessageLength > 0 {
		return s.cfg.Chat.MaxMessageLength
	}
	return defaultMaxMessageLength
}

// IsChatMember reports membership without loading messages
func (s *ChatService) IsChatMember(userID, chatID uint) bool {
	chat, err := s.load(chatID)
	return err == nil && chat.IsMember(userID)
}
