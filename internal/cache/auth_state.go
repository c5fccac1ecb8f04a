package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/parcelpal/internal/models"
)

const authStateCacheTTL = 10 * time.Minute

// AccountAuthState token validity snapshot kept in redis
type AccountAuthState struct {
	AccountID    uint   `json:"account_id"`
	TokenVersion uint64 `json:"token_version"`
	UpdatedAt    int64  `json:"updated_at"`
}

func accountAuthStateKey(accountID uint) string {
	return fmt.Sprintf("auth:account:%d", accountID)
}

// BuildAccountAuthState snapshot from an account row
func BuildAccountAuthState(account *models.Account) *AccountAuthState {
	if account == nil {
		return nil
	}
	return &AccountAuthState{
		AccountID:    account.ID,
		TokenVersion: account.TokenVersion,
		UpdatedAt:    time.Now().Unix(),
	}
}

// GetAccountAuthState cached snapshot
func GetAccountAuthState(ctx context.Context, accountID uint) (*AccountAuthState, bool, error) {
	if accountID == 0 {
		return nil, false, nil
	}
	var state AccountAuthState
	hit, err := GetJSON(ctx, accountAuthStateKey(accountID), &state)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &state, true, nil
}

// SetAccountAuthState stores a snapshot
func SetAccountAuthState(ctx context.Context, state *AccountAuthState) error {
	if state == nil || state.AccountID == 0 {
		return nil
	}
	return SetJSON(ctx, accountAuthStateKey(state.AccountID), state, authStateCacheTTL)
}

// DelAccountAuthState drops a snapshot (logout, password change)
func DelAccountAuthState(ctx context.Context, accountID uint) error {
	if accountID == 0 {
		return nil
	}
	return Del(ctx, accountAuthStateKey(accountID))
}
