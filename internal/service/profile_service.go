package service

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/parcelpal/internal/constants"
	"github.com/parcelpal/internal/geo"
	"github.com/parcelpal/internal/logger"
	"github.com/parcelpal/internal/models"
	"github.com/parcelpal/internal/realtime"
	"github.com/parcelpal/internal/repository"
)

const (
	recentCompletedLimit = 5
	partnerSpeedKMH      = 40.0
)

// ProfileService user profiles, last-known locations and stats
type ProfileService struct {
	accountRepo  repository.AccountRepository
	userRepo     repository.UserRepository
	deliveryRepo repository.DeliveryRepository
	tracker      *geo.Tracker
	publisher    realtime.Publisher
}

// NewProfileService creates the profile service
func NewProfileService(accountRepo repository.AccountRepository, userRepo repository.UserRepository, deliveryRepo repository.DeliveryRepository, tracker *geo.Tracker, publisher realtime.Publisher) *ProfileService {
	return &ProfileService{
		accountRepo:  accountRepo,
		userRepo:     userRepo,
		deliveryRepo: deliveryRepo,
		tracker:      tracker,
		publisher:    publisher,
	}
}

// UpdateProfileInput partial profile update; nil leaves the field unchanged
type UpdateProfileInput struct {
	FullName *string
	Phone    *string
}

// UserSummary public view used for name lookups
type UserSummary struct {
	ID       uint    `json:"id"`
	FullName string  `json:"full_name"`
	Rating   float64 `json:"rating"`
}

// ProfileStats completion counters shown on the profile page
type ProfileStats struct {
	CompletedAsPartner int64             `json:"completed_as_partner"`
	CompletedAsSender  int64             `json:"completed_as_sender"`
	AverageRating      float64           `json:"average_rating"`
	RatedCount         int64             `json:"rated_count"`
	RewardPoints       int               `json:"reward_points"`
	Recent             []models.Delivery `json:"recent"`
}

// Get returns ErrProfileNotFound until the profile is provisioned
func (s *ProfileService) Get(userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrProfileNotFound
	}
	return user, nil
}

// Provision creates the caller's own profile; a second call returns ErrProfileExists
func (s *ProfileService) Provision(userID uint, fullName, phone string) (*models.User, error) {
	account, err := s.accountRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrNotFound
	}
	existing, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrProfileExists
	}
	profile := newProfileFromAccount(account, fullName, phone)
	if err := s.userRepo.Create(profile); err != nil {
		if models.IsUniqueViolation(err) {
			return nil, ErrProfileExists
		}
		return nil, err
	}
	logger.Infow("profile_provisioned", "user_id", userID)
	return profile, nil
}

// Update applies a partial update
func (s *ProfileService) Update(ctx context.Context, userID uint, input UpdateProfileInput) (*models.User, error) {
	updates := map[string]interface{}{}
	if input.FullName != nil {
		name := strings.TrimSpace(*input.FullName)
		if name == "" {
			name = constants.DefaultFullName
		}
		updates["full_name"] = name
	}
	if input.Phone != nil {
		phone := strings.TrimSpace(*input.Phone)
		if phone != "" && len(digitsOnly(phone)) != 10 {
			return nil, ErrPhoneInvalid
		}
		updates["phone"] = phone
	}
	if _, err := s.Get(userID); err != nil {
		return nil, err
	}
	if err := s.userRepo.UpdateFields(userID, updates); err != nil {
		return nil, err
	}
	user, err := s.Get(userID)
	if err != nil {
		return nil, err
	}
	emit(ctx, s.publisher, realtime.TypeNotification, realtime.UserTopic(userID), user)
	return user, nil
}

// UpdateLocation stores the last-known location, feeds the tracker and
// pushes the position to every delivery the user is carrying.
func (s *ProfileService) UpdateLocation(ctx context.Context, userID uint, lat, lng, accuracy float64) (*models.User, error) {
	point := geo.Point{Lat: lat, Lng: lng}
	if !point.Valid() {
		return nil, ErrLocationInvalid
	}
	if _, err := s.Get(userID); err != nil {
		return nil, err
	}
	now := time.Now()
	if err := s.userRepo.UpdateLocation(userID, lat, lng, now); err != nil {
		return nil, err
	}
	if s.tracker != nil {
		s.tracker.Report(userID, geo.Fix{Point: point, Accuracy: accuracy, At: now})
	}
	s.fanOutLocation(ctx, userID, point, accuracy, now)
	return s.Get(userID)
}

// SetAvailability toggles whether the user is taking deliveries
func (s *ProfileService) SetAvailability(userID uint, available bool) (*models.User, error) {
	if _, err := s.Get(userID); err != nil {
		return nil, err
	}
	if err := s.userRepo.UpdateFields(userID, map[string]interface{}{"is_available": available}); err != nil {
		return nil, err
	}
	return s.Get(userID)
}

// Lookup batch name lookup; unknown ids are skipped
func (s *ProfileService) Lookup(ids []uint) ([]UserSummary, error) {
	users, err := s.userRepo.ListByIDs(uniqueIDs(ids))
	if err != nil {
		return nil, err
	}
	result := make([]UserSummary, 0, len(users))
	for _, u := range users {
		result = append(result, UserSummary{ID: u.ID, FullName: u.FullName, Rating: u.Rating})
	}
	return result, nil
}

// Stats completed counts, partner rating and the most recent completions
func (s *ProfileService) Stats(userID uint) (*ProfileStats, error) {
	user, err := s.Get(userID)
	if err != nil {
		return nil, err
	}
	completed := []string{constants.DeliveryStatusCompleted}
	asPartner, partnerTotal, err := s.deliveryRepo.List(repository.DeliveryListFilter{
		PartnerID: userID,
		Statuses:  completed,
		Page:      1,
		PageSize:  recentCompletedLimit,
	})
	if err != nil {
		return nil, err
	}
	asSender, senderTotal, err := s.deliveryRepo.List(repository.DeliveryListFilter{
		SenderID: userID,
		Statuses: completed,
		Page:     1,
		PageSize: recentCompletedLimit,
	})
	if err != nil {
		return nil, err
	}
	avg, rated, err := s.deliveryRepo.PartnerRatingStats(userID)
	if err != nil {
		return nil, err
	}

	recent := append(append([]models.Delivery{}, asPartner...), asSender...)
	sort.SliceStable(recent, func(i, j int) bool {
		return completedOrCreated(recent[i]).After(completedOrCreated(recent[j]))
	})
	if len(recent) > recentCompletedLimit {
		recent = recent[:recentCompletedLimit]
	}

	return &ProfileStats{
		CompletedAsPartner: partnerTotal,
		CompletedAsSender:  senderTotal,
		AverageRating:      roundRating(avg),
		RatedCount:         rated,
		RewardPoints:       user.RewardPoints,
		Recent:             recent,
	}, nil
}

func (s *ProfileService) fanOutLocation(ctx context.Context, userID uint, point geo.Point, accuracy float64, at time.Time) {
	if s.publisher == nil || s.deliveryRepo == nil {
		return
	}
	active, _, err := s.deliveryRepo.List(repository.DeliveryListFilter{
		PartnerID: userID,
		Statuses:  constants.ActivePartnerStatuses,
	})
	if err != nil {
		logger.Warnw("location_fanout_list_failed", "user_id", userID, "error", err)
		return
	}
	for i := range active {
		d := &active[i]
		remaining := geo.Distance(point, geo.DeliveryDestination(d).Point())
		update := realtime.LocationUpdate{
			DeliveryID:              d.ID,
			UserID:                  userID,
			Lat:                     point.Lat,
			Lng:                     point.Lng,
			Accuracy:                accuracy,
			Timestamp:               at,
			DistanceToDestinationKM: remaining,
			ETAMinutes:              etaMinutes(remaining),
		}
		emit(ctx, s.publisher, realtime.TypeLocationUpdated, realtime.LocationTopic(d.ID), update)
	}
}

func etaMinutes(distanceKM float64) int {
	if distanceKM <= 0 {
		return 0
	}
	return int(math.Ceil(distanceKM / partnerSpeedKMH * 60))
}

func completedOrCreated(d models.Delivery) time.Time {
	if d.CompletedAt != nil {
		return *d.CompletedAt
	}
	return d.CreatedAt
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	result := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

func digitsOnly(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
