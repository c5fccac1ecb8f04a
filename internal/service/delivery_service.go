package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/parcelpal/internal/authz"
	"github.com/parcelpal/internal/config"
	"github.com/parcelpal/internal/constants"
	"github.com/parcelpal/internal/geo"
	"github.com/parcelpal/internal/geocoding"
	"github.com/parcelpal/internal/logger"
	"github.com/parcelpal/internal/models"
	"github.com/parcelpal/internal/queue"
	"github.com/parcelpal/internal/realtime"
	"github.com/parcelpal/internal/repository"

	"gorm.io/gorm"
)

const (
	addressLookupBudget = 2 * time.Second
	nearbyCandidateCap  = 500
	notifyPartnerCap    = 200
	staleSweepBatch     = 100
)

// DeliveryService delivery lifecycle state machine
type DeliveryService struct {
	cfg          *config.Config
	db           *gorm.DB
	deliveryRepo repository.DeliveryRepository
	chatRepo     repository.ChatRepository
	userRepo     repository.UserRepository
	authz        *authz.Service
	geocoder     *geocoding.Client
	tracker      *geo.Tracker
	publisher    realtime.Publisher
	queueClient  *queue.Client
	rewards      *RewardService
}

// DeliveryServiceOptions constructor dependencies
type DeliveryServiceOptions struct {
	Config       *config.Config
	DB           *gorm.DB
	DeliveryRepo repository.DeliveryRepository
	ChatRepo     repository.ChatRepository
	UserRepo     repository.UserRepository
	Authz        *authz.Service
	Geocoder     *geocoding.Client
	Tracker      *geo.Tracker
	Publisher    realtime.Publisher
	QueueClient  *queue.Client
	Rewards      *RewardService
}

// NewDeliveryService creates the delivery service
func NewDeliveryService(opts DeliveryServiceOptions) *DeliveryService {
	return &DeliveryService{
		cfg:          opts.Config,
		db:           opts.DB,
		deliveryRepo: opts.DeliveryRepo,
		chatRepo:     opts.ChatRepo,
		userRepo:     opts.UserRepo,
		authz:        opts.Authz,
		geocoder:     opts.Geocoder,
		tracker:      opts.Tracker,
		publisher:    opts.Publisher,
		queueClient:  opts.QueueClient,
		rewards:      opts.Rewards,
	}
}

// CreateDeliveryInput sender request form
type CreateDeliveryInput struct {
	ItemName    string
	Phone       string
	Amount      models.Money
	TimeLimit   int // minutes, 0 uses the configured default
	Source      *geo.Location
	Destination *geo.Location
}

// AcceptInput partner contact shown to the sender
type AcceptInput struct {
	PartnerName  string
	PartnerPhone string
}

// CancelInput cancellation request
type CancelInput struct {
	Reason    string
	Emergency bool
}

// ListDeliveriesInput participant list query
type ListDeliveriesInput struct {
	Role       string // sender / partner
	ActiveOnly bool
	Keyword    string
	Page       int
	PageSize   int
}

// NearbyDelivery pending request with its distance to the caller
type NearbyDelivery struct {
	models.Delivery
	DistanceKM float64 `json:"distance_km"`
}

// AcceptResult accepted delivery and its freshly created chat
type AcceptResult struct {
	Delivery *models.Delivery `json:"delivery"`
	Chat     *models.Chat     `json:"chat"`
}

// ValidateCreateInput checks the request form
func ValidateCreateInput(input CreateDeliveryInput) error {
	if strings.TrimSpace(input.ItemName) == "" {
		return ErrItemNameRequired
	}
	if len(digitsOnly(input.Phone)) != 10 {
		return ErrPhoneInvalid
	}
	if !input.Amount.IsPositive() {
		return ErrAmountInvalid
	}
	if input.TimeLimit < 0 {
		return ErrTimeLimitInvalid
	}
	if input.Source == nil || !input.Source.Point().Valid() {
		return fmt.Errorf("%w: source", ErrLocationInvalid)
	}
	if input.Destination == nil || !input.Destination.Point().Valid() {
		return fmt.Errorf("%w: destination", ErrLocationInvalid)
	}
	return nil
}

// Create inserts a pending request; the distance is computed once here
func (s *DeliveryService) Create(ctx context.Context, senderID uint, input CreateDeliveryInput) (*models.Delivery, error) {
	if err := ValidateCreateInput(input); err != nil {
		return nil, err
	}
	timeLimit := input.TimeLimit
	if timeLimit == 0 {
		timeLimit = s.cfg.Delivery.DefaultTimeLimitMinutes
	}
	if timeLimit <= 0 {
		return nil, ErrTimeLimitInvalid
	}

	source := s.withAddress(ctx, *input.Source)
	destination := s.withAddress(ctx, *input.Destination)
	delivery := &models.Delivery{
		SenderID:           senderID,
		ItemName:           strings.TrimSpace(input.ItemName),
		Phone:              digitsOnly(input.Phone),
		DeliveryAmount:     input.Amount,
		TimeLimit:          timeLimit,
		SourceLat:          source.Lat,
		SourceLng:          source.Lng,
		SourceAddress:      source.Address,
		DestinationLat:     destination.Lat,
		DestinationLng:     destination.Lng,
		DestinationAddress: destination.Address,
		Distance:           geo.Distance(source.Point(), destination.Point()),
		Status:             constants.DeliveryStatusPending,
	}
	if err := s.deliveryRepo.Create(delivery); err != nil {
		return nil, err
	}
	logger.Infow("delivery_created",
		"delivery_id", delivery.ID,
		"sender_id", senderID,
		"distance_km", delivery.Distance,
	)
	s.publishDelivery(ctx, realtime.TypeDeliveryCreated, delivery)
	s.dispatchNotify(ctx, delivery.ID)
	return delivery, nil
}

// Get returns a delivery visible to userID
func (s *DeliveryService) Get(ctx context.Context, userID, deliveryID uint) (*models.Delivery, error) {
	delivery, err := s.load(deliveryID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(delivery, userID, constants.ActionView); err != nil {
		return nil, err
	}
	return delivery, nil
}

// List deliveries where the caller is sender or partner, newest first
func (s *DeliveryService) List(userID uint, input ListDeliveriesInput) ([]models.Delivery, int64, error) {
	filter := repository.DeliveryListFilter{Page: input.Page, PageSize: input.PageSize, Keyword: input.Keyword}
	switch strings.ToLower(strings.TrimSpace(input.Role)) {
	case constants.RolePartner, constants.CancelledByPartner:
		filter.PartnerID = userID
		if input.ActiveOnly {
			filter.Statuses = constants.ActivePartnerStatuses
		}
	default:
		filter.SenderID = userID
		if input.ActiveOnly {
			filter.Statuses = constants.ActiveSenderStatuses
		}
	}
	return s.deliveryRepo.List(filter)
}

// Nearby pending unassigned requests within radiusKM of (lat, lng), closest first
func (s *DeliveryService) Nearby(userID uint, lat, lng, radiusKM float64) ([]NearbyDelivery, error) {
	origin := geo.Point{Lat: lat, Lng: lng}
	if !origin.Valid() {
		return nil, ErrLocationInvalid
	}
	radiusKM = s.clampRadius(radiusKM)
	candidates, err := s.deliveryRepo.ListPendingUnassignedNear(repository.NearbyFilter{
		Lat:       lat,
		Lng:       lng,
		RadiusKM:  radiusKM,
		ExcludeID: userID,
		Limit:     nearbyCandidateCap,
	})
	if err != nil {
		return nil, err
	}
	result := make([]NearbyDelivery, 0, len(candidates))
	for _, d := range candidates {
		if d.SenderID == userID || d.HasPartner() {
			continue
		}
		distance := geo.Distance(origin, geo.DeliverySource(&d).Point())
		if distance > radiusKM {
			continue
		}
		result = append(result, NearbyDelivery{Delivery: d, DistanceKM: distance})
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].DistanceKM != result[j].DistanceKM {
			return result[i].DistanceKM < result[j].DistanceKM
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Map view model for one delivery
func (s *DeliveryService) Map(ctx context.Context, userID, deliveryID uint) (*geo.MapView, error) {
	delivery, err := s.Get(ctx, userID, deliveryID)
	if err != nil {
		return nil, err
	}
	var partner *geo.Location
	if delivery.HasPartner() {
		partner = s.partnerLocation(*delivery.DeliveryPartnerID)
	}
	view := geo.BuildDeliveryMap(delivery, partner, s.defaultCenter())
	return &view, nil
}

// Accept assigns the caller as partner and opens the chat in one transaction
func (s *DeliveryService) Accept(ctx context.Context, partnerID, deliveryID uint, input AcceptInput) (*AcceptResult, error) {
	delivery, err := s.load(deliveryID)
	if err != nil {
		return nil, err
	}
	if delivery.SenderID == partnerID {
		return nil, ErrOwnDelivery
	}
	if delivery.HasPartner() {
		return nil, ErrDeliveryTaken
	}
	if delivery.Status != constants.DeliveryStatusPending {
		return nil, ErrInvalidTransition
	}
	if _, err := s.authorize(delivery, partnerID, constants.ActionAccept); err != nil {
		return nil, err
	}

	name, phone := strings.TrimSpace(input.PartnerName), strings.TrimSpace(input.PartnerPhone)
	if name == "" || phone == "" {
		if profile, err := s.userRepo.GetByID(partnerID); err == nil && profile != nil {
			if name == "" {
				name = profile.FullName
			}
			if phone == "" {
				phone = profile.Phone
			}
		}
	}
	if name == "" {
		name = constants.DefaultFullName
	}

	now := time.Now()
	chat := &models.Chat{
		DeliveryID: deliveryID,
		SenderID:   delivery.SenderID,
		PartnerID:  partnerID,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		assigned, err := s.deliveryRepo.WithTx(tx).Assign(deliveryID, partnerID, name, phone, now)
		if err != nil {
			return err
		}
		if !assigned {
			return ErrDeliveryTaken
		}
		if err := s.chatRepo.WithTx(tx).Create(chat); err != nil {
			if models.IsUniqueViolation(err) {
				return ErrDeliveryTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.load(deliveryID)
	if err != nil {
		return nil, err
	}
	logger.Infow("delivery_accepted", "delivery_id", deliveryID, "partner_id", partnerID, "chat_id", chat.ID)
	s.publishDelivery(ctx, realtime.TypeDeliveryUpdated, updated)
	emit(ctx, s.publisher, realtime.TypeChatCreated, realtime.DeliveryTopic(deliveryID), chat)
	return &AcceptResult{Delivery: updated, Chat: chat}, nil
}

// Cancel stops a delivery; once the item is picked up only an emergency cancel is accepted
func (s *DeliveryService) Cancel(ctx context.Context, userID, deliveryID uint, input CancelInput) (*models.Delivery, error) {
	delivery, err := s.load(deliveryID)
	if err != nil {
		return nil, err
	}
	role, err := s.authorize(delivery, userID, constants.ActionCancel)
	if err != nil {
		return nil, err
	}
	if !isCancellable(delivery.Status) {
		return nil, ErrCancelNotAllowed
	}
	if requiresEmergency(delivery.Status) && !input.Emergency {
		return nil, ErrEmergencyRequired
	}

	cancelledBy := constants.CancelledBySender
	if role == constants.RolePartner {
		cancelledBy = constants.CancelledByPartner
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = defaultCancelReason(cancelledBy, input.Emergency)
	}
	updated, err := s.transition(ctx, delivery, constants.DeliveryStatusCancelled, map[string]interface{}{
		"cancel_reason": reason,
		"cancelled_by":  cancelledBy,
		"cancelled_at":  time.Now(),
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("delivery_cancelled",
		"delivery_id", deliveryID,
		"cancelled_by", cancelledBy,
		"from_status", delivery.Status,
		"emergency", input.Emergency,
	)
	return updated, nil
}

// VerifyItem sender approves the item photo (picked_up) or rejects it so the partner retakes it
func (s *DeliveryService) VerifyItem(ctx context.Context, senderID, deliveryID uint, approved bool) (*models.Delivery, error) {
	delivery, err := s.load(deliveryID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(delivery, senderID, constants.ActionVerifyItem); err != nil {
		return nil, err
	}
	if delivery.Status != constants.DeliveryStatusAccepted {
		return nil, ErrInvalidTransition
	}
	if strings.TrimSpace(delivery.ItemPhotoURL) == "" {
		return nil, ErrItemPhotoMissing
	}
	if !approved {
		updated, err := s.transition(ctx, delivery, constants.DeliveryStatusAccepted, map[string]interface{}{
			"item_photo_url": "",
		})
		if err != nil {
			return nil, err
		}
		logger.Infow("delivery_item_rejected", "delivery_id", deliveryID)
		return updated, nil
	}
	now := time.Now()
	return s.transition(ctx, delivery, constants.DeliveryStatusPickedUp, map[string]interface{}{
		"item_verified":    true,
		"item_verified_at": now,
		"picked_up_at":     now,
	})
}

// MarkInTransit partner reports the item is on its way
func (s *DeliveryService) MarkInTransit(ctx context.Context, partnerID, deliveryID uint) (*models.Delivery, error) {
	delivery, err := s.load(deliveryID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(delivery, partnerID, constants.ActionInTransit); err != nil {
		return nil, err
	}
	return s.transition(ctx, delivery, constants.DeliveryStatusInTransit, nil)
}

// Deliver partner marks the item delivered; a delivery photo must be uploaded first
func (s *DeliveryService) Deliver(ctx context.Context, partnerID, deliveryID uint) (*models.Delivery, error) {
	delivery, err := s.load(deliveryID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(delivery, partnerID, constants.ActionDeliver); err != nil {
		return nil, err
	}
	if !canTransition(delivery.Status, constants.DeliveryStatusDelivered) {
		return nil, ErrInvalidTransition
	}
	if strings.TrimSpace(delivery.DeliveryPhotoURL) == "" {
		return nil, ErrDeliveryPhotoMissing
	}
	return s.transition(ctx, delivery, constants.DeliveryStatusDelivered, map[string]interface{}{
		"delivered_at": time.Now(),
	})
}

// Complete sender confirms receipt; rewards are applied asynchronously
func (s *DeliveryService) Complete(ctx context.Context, senderID, deliveryID uint) (*models.Delivery, error) {
	delivery, err := s.load(deliveryID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(delivery, senderID, constants.ActionComplete); err != nil {
		return nil, err
	}
	updated, err := s.transition(ctx, delivery, constants.DeliveryStatusCompleted, map[string]interface{}{
		"completed_at": time.Now(),
	})
	if err != nil {
		return nil, err
	}
	s.dispatchCompletion(ctx, deliveryID)
	return updated, nil
}

// Dispute sender rejects the delivered item
func (s *DeliveryService) Dispute(ctx context.Context, senderID, deliveryID uint) (*models.Delivery, error) {
	delivery, err := s.load(deliveryID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(delivery, senderID, constants.ActionDispute); err != nil {
		return nil, err
	}
	updated, err := s.transition(ctx, delivery, constants.DeliveryStatusDisputed, nil)
	if err != nil {
		return nil, err
	}
	logger.Warnw("delivery_disputed", "delivery_id", deliveryID, "sender_id", senderID)
	return updated, nil
}

// Rate sender rates the partner once, after completion
func (s *DeliveryService) Rate(ctx context.Context, senderID, deliveryID uint, rating int, feedback string) (*models.Delivery, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrRatingInvalid
	}
	delivery, err := s.load(deliveryID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(delivery, senderID, constants.ActionRate); err != nil {
		return nil, err
	}
	if delivery.Status != constants.DeliveryStatusCompleted {
		return nil, ErrInvalidTransition
	}
	if delivery.Rating != nil {
		return nil, ErrAlreadyRated
	}
	rated, err := s.deliveryRepo.RateOnce(deliveryID, rating, time.Now())
	if err != nil {
		return nil, err
	}
	if !rated {
		return nil, ErrAlreadyRated
	}
	logger.Infow("delivery_rated",
		"delivery_id", deliveryID,
		"rating", rating,
		"feedback", strings.TrimSpace(feedback),
	)
	updated, err := s.load(deliveryID)
	if err != nil {
		return nil, err
	}
	s.publishDelivery(ctx, realtime.TypeDeliveryUpdated, updated)
	s.dispatchRating(ctx, deliveryID)
	return updated, nil
}

// AttachPhoto stores an uploaded photo url on the delivery
func (s *DeliveryService) AttachPhoto(ctx context.Context, partnerID, deliveryID uint, photoType, url string) (*models.Delivery, error) {
	delivery, err := s.load(deliveryID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(delivery, partnerID, constants.ActionUpload); err != nil {
		return nil, err
	}
	if err := checkPhotoAllowed(delivery, photoType); err != nil {
		return nil, err
	}
	column := "item_photo_url"
	if photoType == constants.PhotoTypeDelivery {
		column = "delivery_photo_url"
	}
	updated, err := s.transition(ctx, delivery, delivery.Status, map[string]interface{}{column: url})
	if err != nil {
		return nil, err
	}
	logger.Infow("delivery_photo_attached", "delivery_id", deliveryID, "type", photoType)
	return updated, nil
}

// CheckUpload verifies the caller may upload photoType before the file is stored
func (s *DeliveryService) CheckUpload(partnerID, deliveryID uint, photoType string) error {
	delivery, err := s.load(deliveryID)
	if err != nil {
		return err
	}
	if _, err := s.authorize(delivery, partnerID, constants.ActionUpload); err != nil {
		return err
	}
	return checkPhotoAllowed(delivery, photoType)
}

// ExpireStale cancels pending requests nobody accepted within the configured TTL
func (s *DeliveryService) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	ttl := s.cfg.Delivery.PendingTTLMinutes
	if ttl <= 0 {
		return 0, nil
	}
	stale, err := s.deliveryRepo.ListStalePending(now.Add(-time.Duration(ttl)*time.Minute), staleSweepBatch)
	if err != nil {
		return 0, err
	}
	expired := 0
	for i := range stale {
		d := &stale[i]
		_, err := s.transition(ctx, d, constants.DeliveryStatusCancelled, map[string]interface{}{
			"cancel_reason": defaultCancelReason(constants.CancelledBySystem, false),
			"cancelled_by":  constants.CancelledBySystem,
			"cancelled_at":  now,
		})
		if err != nil {
			logger.Debugw("delivery_expire_skip", "delivery_id", d.ID, "error", err)
			continue
		}
		expired++
	}
	if expired > 0 {
		logger.Infow("delivery_expired_stale", "count", expired)
	}
	return expired, nil
}

// NotifyNearbyPartners pushes a pending request to available partners in range
func (s *DeliveryService) NotifyNearbyPartners(ctx context.Context, deliveryID uint) (int, error) {
	delivery, err := s.load(deliveryID)
	if err != nil {
		return 0, err
	}
	if delivery.Status != constants.DeliveryStatusPending || delivery.HasPartner() {
		return 0, nil
	}
	partners, err := s.userRepo.ListAvailable(delivery.SenderID, notifyPartnerCap)
	if err != nil {
		return 0, err
	}
	radius := s.clampRadius(0)
	origin := geo.DeliverySource(delivery).Point()
	notified := 0
	for i := range partners {
		location, ok := geo.UserLocation(&partners[i])
		if !ok {
			continue
		}
		distance := geo.Distance(origin, location.Point())
		if distance > radius {
			continue
		}
		emit(ctx, s.publisher, realtime.TypeNotification, realtime.UserTopic(partners[i].ID), map[string]interface{}{
			"kind":        "delivery_nearby",
			"delivery_id": delivery.ID,
			"item_name":   delivery.ItemName,
			"distance_km": distance,
		})
		notified++
	}
	return notified, nil
}

// ActorRole role of userID relative to a delivery
func ActorRole(d *models.Delivery, userID uint) string {
	switch {
	case d != nil && d.SenderID == userID:
		return constants.RoleSender
	case d.IsPartner(userID):
		return constants.RolePartner
	default:
		return constants.RoleCandidate
	}
}

func (s *DeliveryService) authorize(d *models.Delivery, userID uint, action string) (string, error) {
	role := ActorRole(d, userID)
	// strangers only see requests still open for acceptance
	if role == constants.RoleCandidate && action == constants.ActionView &&
		(d.Status != constants.DeliveryStatusPending || d.HasPartner()) {
		return "", ErrForbidden
	}
	allowed, err := s.authz.Can(role, authz.ObjectDelivery, action)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", ErrForbidden
	}
	return role, nil
}

// transition moves d to `to` only if nobody changed its status meanwhile
func (s *DeliveryService) transition(ctx context.Context, d *models.Delivery, to string, updates map[string]interface{}) (*models.Delivery, error) {
	if to != d.Status && !canTransition(d.Status, to) {
		return nil, ErrInvalidTransition
	}
	ok, err := s.deliveryRepo.TransitionStatus(d.ID, []string{d.Status}, to, updates)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	updated, err := s.load(d.ID)
	if err != nil {
		return nil, err
	}
	if to != d.Status {
		logger.Infow("delivery_status_changed", "delivery_id", d.ID, "from", d.Status, "to", to)
	}
	s.publishDelivery(ctx, realtime.TypeDeliveryUpdated, updated)
	return updated, nil
}

func (s *DeliveryService) load(deliveryID uint) (*models.Delivery, error) {
	if deliveryID == 0 {
		return nil, ErrDeliveryNotFound
	}
	delivery, err := s.deliveryRepo.GetByID(deliveryID)
	if err != nil {
		return nil, err
	}
	if delivery == nil {
		return nil, ErrDeliveryNotFound
	}
	return delivery, nil
}

func (s *DeliveryService) publishDelivery(ctx context.Context, eventType string, d *models.Delivery) {
	emit(ctx, s.publisher, eventType, realtime.DeliveryTopic(d.ID), d)
	emit(ctx, s.publisher, eventType, realtime.UserTopic(d.SenderID), d)
	if d.HasPartner() {
		emit(ctx, s.publisher, eventType, realtime.UserTopic(*d.DeliveryPartnerID), d)
	}
}

func (s *DeliveryService) dispatchCompletion(ctx context.Context, deliveryID uint) {
	if s.queueClient.Enabled() {
		err := s.queueClient.EnqueueDeliveryCompleted(deliveryID)
		if err == nil {
			return
		}
		logger.Warnw("delivery_completion_enqueue_failed", "delivery_id", deliveryID, "error", err)
	}
	if s.rewards == nil {
		return
	}
	if err := s.rewards.ApplyCompletion(ctx, deliveryID); err != nil {
		logger.Errorw("delivery_completion_rewards_failed", "delivery_id", deliveryID, "error", err)
	}
}

func (s *DeliveryService) dispatchRating(ctx context.Context, deliveryID uint) {
	if s.queueClient.Enabled() {
		err := s.queueClient.EnqueueDeliveryRated(deliveryID)
		if err == nil {
			return
		}
		logger.Warnw("delivery_rating_enqueue_failed", "delivery_id", deliveryID, "error", err)
	}
	if s.rewards == nil {
		return
	}
	if err := s.rewards.ApplyRating(ctx, deliveryID); err != nil {
		logger.Errorw("delivery_rating_rewards_failed", "delivery_id", deliveryID, "error", err)
	}
}

func (s *DeliveryService) dispatchNotify(ctx context.Context, deliveryID uint) {
	if s.queueClient.Enabled() {
		err := s.queueClient.EnqueueDeliveryNotify(deliveryID)
		if err == nil {
			return
		}
		logger.Warnw("delivery_notify_enqueue_failed", "delivery_id", deliveryID, "error", err)
	}
	if _, err := s.NotifyNearbyPartners(ctx, deliveryID); err != nil {
		logger.Warnw("delivery_notify_failed", "delivery_id", deliveryID, "error", err)
	}
}

func (s *DeliveryService) withAddress(ctx context.Context, loc geo.Location) geo.Location {
	loc.Address = strings.TrimSpace(loc.Address)
	if loc.Address != "" {
		return loc
	}
	if s.geocoder == nil {
		loc.Address = loc.Point().String()
		return loc
	}
	loc.Address = s.geocoder.AddressOrCoordinates(ctx, loc.Point(), addressLookupBudget)
	return loc
}

func (s *DeliveryService) partnerLocation(partnerID uint) *geo.Location {
	if s.tracker != nil {
		if fix, ok := s.tracker.Latest(partnerID); ok {
			return &geo.Location{Lat: fix.Lat, Lng: fix.Lng}
		}
	}
	user, err := s.userRepo.GetByID(partnerID)
	if err != nil || user == nil {
		return nil
	}
	if loc, ok := geo.UserLocation(user); ok {
		return &loc
	}
	return nil
}

func (s *DeliveryService) defaultCenter() geo.Point {
	center := geo.Point{Lat: s.cfg.Map.DefaultLat, Lng: s.cfg.Map.DefaultLng}
	if center.Lat == 0 && center.Lng == 0 {
		return geo.Point{Lat: constants.DefaultMapLat, Lng: constants.DefaultMapLng}
	}
	return center
}

func (s *DeliveryService) clampRadius(radiusKM float64) float64 {
	if radiusKM <= 0 {
		radiusKM = s.cfg.Delivery.NearbyRadiusKM
	}
	if radiusKM <= 0 {
		radiusKM = 10
	}
	if limit := s.cfg.Delivery.MaxRadiusKM; limit > 0 && radiusKM > limit {
		radiusKM = limit
	}
	return radiusKM
}

func checkPhotoAllowed(d *models.Delivery, photoType string) error {
	switch photoType {
	case constants.PhotoTypeItem:
		if d.Status != constants.DeliveryStatusAccepted {
			return ErrInvalidTransition
		}
	case constants.PhotoTypeDelivery:
		if d.Status != constants.DeliveryStatusPickedUp && d.Status != constants.DeliveryStatusInTransit {
			return ErrInvalidTransition
		}
	default:
		return ErrPhotoTypeInvalid
	}
	return nil
}
