package client

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// ProfileUpdate partial update; nil fields stay
type ProfileUpdate struct {
	FullName *string `json:"full_name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

// Me caller's profile; IsNotFound until provisioned
func (a *API) Me(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := a.get(ctx, "/users/me", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ProvisionProfile creates the caller's profile; IsConflict when it already exists
func (a *API) ProvisionProfile(ctx context.Context, fullName, phone string) (*Profile, error) {
	var p Profile
	body := map[string]string{"full_name": fullName, "phone": phone}
	if err := a.post(ctx, "/users", body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile edits name and phone
func (a *API) UpdateProfile(ctx context.Context, update ProfileUpdate) (*Profile, error) {
	var p Profile
	if err := a.put(ctx, "/users/me", update, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateLocation stores the caller's position
func (a *API) UpdateLocation(ctx context.Context, lat, lng, accuracy float64) (*Profile, error) {
	var p Profile
	body := map[string]float64{"lat": lat, "lng": lng, "accuracy": accuracy}
	if err := a.put(ctx, "/users/me/location", body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SetAvailability toggles whether the caller takes deliveries
func (a *API) SetAvailability(ctx context.Context, available bool) (*Profile, error) {
	var p Profile
	if err := a.put(ctx, "/users/me/availability", map[string]bool{"is_available": available}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Stats profile page counters
func (a *API) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	if err := a.get(ctx, "/users/me/stats", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// User public summary of one user
func (a *API) User(ctx context.Context, id uint) (*UserSummary, error) {
	var u UserSummary
	if err := a.get(ctx, fmt.Sprintf("/users/%d", id), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// LookupUsers batch summaries; unknown ids are simply missing
func (a *API) LookupUsers(ctx context.Context, ids []uint) ([]UserSummary, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatUint(uint64(id), 10))
	}
	var users []UserSummary
	if err := a.get(ctx, "/users", map[string]string{"ids": strings.Join(parts, ",")}, &users); err != nil {
		return nil, err
	}
	return users, nil
}
