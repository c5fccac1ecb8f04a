package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/parcelpal/internal/config"
	"github.com/parcelpal/internal/constants"
	"github.com/parcelpal/internal/logger"
	"github.com/parcelpal/internal/models"
	"github.com/parcelpal/internal/realtime"
	"github.com/parcelpal/internal/repository"

	"gorm.io/gorm"
)

// Reward catalog entry
type Reward struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Points int    `json:"points"`
}

var rewardCatalog = []Reward{
	{ID: "1", Name: "Amazon giftcards", Points: 100},
	{ID: "2", Name: "xyz", Points: 200},
	{ID: "3", Name: "abc", Points: 150},
	{ID: "4", Name: "wrt", Points: 300},
}

// EarnRule how points are earned, shown next to the catalog
type EarnRule struct {
	Kind   string `json:"kind"`
	Points int    `json:"points"`
}

// RewardService catalog, redemption and earn-rule bookkeeping
type RewardService struct {
	cfg          *config.Config
	db           *gorm.DB
	userRepo     repository.UserRepository
	deliveryRepo repository.DeliveryRepository
	rewardRepo   repository.RewardRepository
	publisher    realtime.Publisher
}

// NewRewardService creates the reward service
func NewRewardService(cfg *config.Config, db *gorm.DB, userRepo repository.UserRepository, deliveryRepo repository.DeliveryRepository, rewardRepo repository.RewardRepository, publisher realtime.Publisher) *RewardService {
	return &RewardService{
		cfg:          cfg,
		db:           db,
		userRepo:     userRepo,
		deliveryRepo: deliveryRepo,
		rewardRepo:   rewardRepo,
		publisher:    publisher,
	}
}

// Catalog available rewards
func (s *RewardService) Catalog() []Reward {
	return append([]Reward(nil), rewardCatalog...)
}

// EarnRules configured point rules
func (s *RewardService) EarnRules() []EarnRule {
	return []EarnRule{
		{Kind: constants.PointGrantDelivery, Points: s.cfg.Rewards.PerDelivery},
		{Kind: constants.PointGrantFiveStar, Points: s.cfg.Rewards.FiveStarBonus},
		{Kind: constants.PointGrantOnTime, Points: s.cfg.Rewards.OnTimeBonus},
	}
}

// History recent redemptions of a user
func (s *RewardService) History(userID uint, limit int) ([]models.RewardRedemption, error) {
	return s.rewardRepo.ListRedemptions(userID, limit)
}

// Redeem exchanges points for a catalog reward; the balance never goes negative
func (s *RewardService) Redeem(ctx context.Context, userID uint, rewardID string) (*models.RewardRedemption, error) {
	reward, ok := findReward(rewardID)
	if !ok {
		return nil, ErrRewardNotFound
	}
	redemption := &models.RewardRedemption{
		UserID:   userID,
		RewardID: reward.ID,
		Name:     reward.Name,
		Points:   reward.Points,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		deducted, err := s.userRepo.WithTx(tx).DeductRewardPoints(userID, reward.Points)
		if err != nil {
			return err
		}
		if !deducted {
			return ErrInsufficientPoints
		}
		return s.rewardRepo.WithTx(tx).CreateRedemption(redemption)
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("reward_redeemed", "user_id", userID, "reward_id", reward.ID, "points", reward.Points)
	s.notifyBalance(ctx, userID)
	return redemption, nil
}

// ApplyCompletion credits the partner and bumps both participants' counters.
// Safe to run more than once for the same delivery.
func (s *RewardService) ApplyCompletion(ctx context.Context, deliveryID uint) error {
	delivery, err := s.deliveryRepo.GetByID(deliveryID)
	if err != nil {
		return err
	}
	if delivery == nil {
		return ErrDeliveryNotFound
	}
	if delivery.Status != constants.DeliveryStatusCompleted || !delivery.HasPartner() {
		logger.Debugw("reward_completion_skip", "delivery_id", deliveryID, "status", delivery.Status)
		return nil
	}
	partnerID := *delivery.DeliveryPartnerID

	credited := false
	err = s.db.Transaction(func(tx *gorm.DB) error {
		users := s.userRepo.WithTx(tx)
		rewards := s.rewardRepo.WithTx(tx)
		granted, err := s.grant(users, rewards, partnerID, deliveryID, constants.PointGrantDelivery, s.cfg.Rewards.PerDelivery)
		if err != nil {
			return err
		}
		if !granted {
			return nil
		}
		credited = true
		if err := users.IncrementCounters(partnerID, 1, 0); err != nil {
			return err
		}
		if err := users.IncrementCounters(delivery.SenderID, 0, 1); err != nil {
			return err
		}
		if deliveredOnTime(delivery) {
			if _, err := s.grant(users, rewards, partnerID, deliveryID, constants.PointGrantOnTime, s.cfg.Rewards.OnTimeBonus); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if credited {
		logger.Infow("reward_completion_applied", "delivery_id", deliveryID, "partner_id", partnerID)
		s.notifyBalance(ctx, partnerID)
	}
	return nil
}

// ApplyRating recomputes the partner's average and grants the five-star bonus
func (s *RewardService) ApplyRating(ctx context.Context, deliveryID uint) error {
	delivery, err := s.deliveryRepo.GetByID(deliveryID)
	if err != nil {
		return err
	}
	if delivery == nil {
		return ErrDeliveryNotFound
	}
	if delivery.Rating == nil || !delivery.HasPartner() {
		return nil
	}
	partnerID := *delivery.DeliveryPartnerID
	avg, _, err := s.deliveryRepo.PartnerRatingStats(partnerID)
	if err != nil {
		return err
	}
	if err := s.userRepo.SetRating(partnerID, roundRating(avg)); err != nil {
		return err
	}
	if *delivery.Rating == 5 {
		granted, err := s.grant(s.userRepo, s.rewardRepo, partnerID, deliveryID, constants.PointGrantFiveStar, s.cfg.Rewards.FiveStarBonus)
		if err != nil {
			return err
		}
		if granted {
			s.notifyBalance(ctx, partnerID)
		}
	}
	logger.Infow("reward_rating_applied", "delivery_id", deliveryID, "partner_id", partnerID, "rating", *delivery.Rating)
	return nil
}

func (s *RewardService) grant(users repository.UserRepository, rewards repository.RewardRepository, userID, deliveryID uint, kind string, points int) (bool, error) {
	granted, err := rewards.Grant(&models.PointGrant{
		UserID:     userID,
		DeliveryID: deliveryID,
		Kind:       kind,
		Points:     points,
	})
	if err != nil || !granted {
		return granted, err
	}
	return true, users.AddRewardPoints(userID, points)
}

func (s *RewardService) notifyBalance(ctx context.Context, userID uint) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil || user == nil {
		return
	}
	emit(ctx, s.publisher, realtime.TypeNotification, realtime.UserTopic(userID), map[string]interface{}{
		"kind":          "reward_points",
		"reward_points": user.RewardPoints,
	})
}

func findReward(id string) (Reward, bool) {
	id = strings.TrimSpace(id)
	for _, r := range rewardCatalog {
		if r.ID == id {
			return r, true
		}
	}
	return Reward{}, false
}

// deliveredOnTime delivered within time_limit minutes of acceptance
func deliveredOnTime(d *models.Delivery) bool {
	if d.DeliveredAt == nil || d.TimeLimit <= 0 {
		return false
	}
	start := d.CreatedAt
	if d.AcceptedAt != nil {
		start = *d.AcceptedAt
	}
	return !d.DeliveredAt.After(start.Add(time.Duration(d.TimeLimit) * time.Minute))
}

func roundRating(v float64) float64 {
	return math.Round(v*10) / 10
}
