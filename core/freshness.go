package core

import (
	"strings"
	"time"
)

const (
	DefaultTokenExpiringSoonWindow = 5 * time.Minute
	DefaultTokenRefreshLeadWindow  = 5 * time.Minute
)

// TokenState captures access/refresh lifecycle state derived from a stored
// token record.
type TokenState struct {
	ExpiresAt       *time.Time
	HasAccessToken  bool
	HasRefreshToken bool
	CanAutoRefresh  bool
	IsExpired       bool
	IsExpiringSoon  bool
}

// ResolveTokenState evaluates expiry and refreshability flags for a record.
// A record without an expiry is treated as non-expiring.
func ResolveTokenState(now time.Time, record TokenRecord, expiringSoonWindow time.Duration) TokenState {
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}
	if expiringSoonWindow <= 0 {
		expiringSoonWindow = DefaultTokenExpiringSoonWindow
	}

	state := TokenState{
		HasAccessToken:  strings.TrimSpace(record.AccessToken) != "",
		HasRefreshToken: strings.TrimSpace(record.RefreshToken) != "",
	}
	state.CanAutoRefresh = state.HasRefreshToken
	if record.ExpiresAt == nil {
		return state
	}
	expiresAt := record.ExpiresAt.UTC()
	state.ExpiresAt = &expiresAt
	if !expiresAt.After(now) {
		state.IsExpired = true
		return state
	}
	state.IsExpiringSoon = !expiresAt.After(now.Add(expiringSoonWindow))
	return state
}

// ShouldRefreshToken returns true when a refresh should be attempted before
// the host process uses the access token.
func ShouldRefreshToken(now time.Time, state TokenState, refreshLeadWindow time.Duration) bool {
	if !state.CanAutoRefresh {
		return false
	}
	if !state.HasAccessToken {
		return true
	}
	if state.ExpiresAt == nil {
		return false
	}
	if refreshLeadWindow <= 0 {
		refreshLeadWindow = DefaultTokenRefreshLeadWindow
	}
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}
	return !state.ExpiresAt.After(now.Add(refreshLeadWindow))
}
