package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-ticktick-auth/deployment"
	"github.com/goliatone/go-ticktick-auth/exchange"
)

const (
	defaultRefreshMaxAttempts    = 3
	defaultRefreshInitialBackoff = 500 * time.Millisecond
	defaultRefreshMaxBackoff     = 10 * time.Second
)

var ErrRefreshNotPossible = errors.New("core: no refresh token available")

type RefreshBackoffScheduler interface {
	NextDelay(attempt int) time.Duration
}

type ExponentialBackoffScheduler struct {
	Initial time.Duration
	Max     time.Duration
}

func (s ExponentialBackoffScheduler) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := s.Initial
	if initial <= 0 {
		initial = defaultRefreshInitialBackoff
	}
	max := s.Max
	if max <= 0 {
		max = defaultRefreshMaxBackoff
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

type RefreshRunOptions struct {
	MaxAttempts int
	LeadWindow  time.Duration
	Scheduler   RefreshBackoffScheduler
}

type RefreshRunResult struct {
	Attempts    int
	Refreshed   bool
	NeedsReauth bool
	Tokens      TokenRecord
}

// Refresh renews the stored tokens once via the refresh_token grant and
// persists the result. The refreshed record keeps the prior refresh token
// when the provider does not rotate it.
func (f *Flow) Refresh(ctx context.Context) (TokenRecord, error) {
	if f == nil {
		return TokenRecord{}, fmt.Errorf("core: flow is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	startedAt := f.now()
	record, err := f.refresh(ctx)
	f.observeOperation(ctx, startedAt, "refresh", err, map[string]any{
		"deployment": string(record.Deployment),
	})
	if err != nil {
		return TokenRecord{}, f.mapError(err)
	}
	return record, nil
}

func (f *Flow) refresh(ctx context.Context) (TokenRecord, error) {
	stored, err := f.store.Load(ctx)
	if err != nil {
		return TokenRecord{}, err
	}
	if !stored.HasClientCredentials() {
		return TokenRecord{}, fmt.Errorf("%w: client credentials", ErrEmptyInput)
	}
	if stored.Tokens == nil || strings.TrimSpace(stored.Tokens.RefreshToken) == "" {
		return TokenRecord{}, ErrRefreshNotPossible
	}

	key := stored.Tokens.Deployment
	if key == "" {
		parsed, parseErr := deployment.ParseKey(stored.Deployment)
		if parseErr != nil {
			return TokenRecord{}, parseErr
		}
		key = parsed
	}
	dep, err := deployment.Resolve(key)
	if err != nil {
		return TokenRecord{}, err
	}

	exchanger, err := f.exchangerFactory(dep, ClientCredentials{
		ClientID:     stored.ClientID,
		ClientSecret: stored.ClientSecret,
	})
	if err != nil {
		return TokenRecord{}, err
	}

	token, err := exchanger.Refresh(ctx, stored.Tokens.RefreshToken)
	if err != nil {
		return TokenRecord{}, err
	}

	record := TokenRecord{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.ExpiresAt,
		Deployment:   dep.Key,
	}
	if record.RefreshToken == "" {
		record.RefreshToken = stored.Tokens.RefreshToken
	}
	if err := f.store.SaveTokens(ctx, record); err != nil {
		return TokenRecord{}, fmt.Errorf("%w: save tokens: %v", ErrPersistence, err)
	}
	return record, nil
}

// EnsureFresh refreshes the stored tokens with bounded retries when freshness
// evaluation says the access token is expired or inside the lead window.
// Unrecoverable provider answers (invalid_grant and friends) short-circuit
// and report that a full re-authorization is needed.
func (f *Flow) EnsureFresh(ctx context.Context, opts RefreshRunOptions) (RefreshRunResult, error) {
	if f == nil {
		return RefreshRunResult{}, fmt.Errorf("core: flow is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	stored, err := f.store.Load(ctx)
	if err != nil {
		return RefreshRunResult{}, f.mapError(err)
	}
	if stored.Tokens == nil {
		return RefreshRunResult{}, f.mapError(ErrRefreshNotPossible)
	}

	now := f.now()
	state := ResolveTokenState(now, *stored.Tokens, opts.LeadWindow)
	if state.IsExpired && !state.CanAutoRefresh {
		return RefreshRunResult{NeedsReauth: true, Tokens: *stored.Tokens}, f.mapError(ErrRefreshNotPossible)
	}
	if !ShouldRefreshToken(now, state, opts.LeadWindow) {
		return RefreshRunResult{Tokens: *stored.Tokens}, nil
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = defaultRefreshMaxAttempts
	}
	scheduler := opts.Scheduler
	if scheduler == nil {
		scheduler = ExponentialBackoffScheduler{
			Initial: defaultRefreshInitialBackoff,
			Max:     defaultRefreshMaxBackoff,
		}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		record, refreshErr := f.Refresh(ctx)
		if refreshErr == nil {
			return RefreshRunResult{Attempts: attempt, Refreshed: true, Tokens: record}, nil
		}
		lastErr = refreshErr

		if isUnrecoverableRefreshError(refreshErr) {
			return RefreshRunResult{Attempts: attempt, NeedsReauth: true}, f.mapError(refreshErr)
		}
		if attempt == maxAttempts {
			return RefreshRunResult{Attempts: attempt, NeedsReauth: true}, f.mapError(refreshErr)
		}
		if waitErr := waitWithContext(ctx, scheduler.NextDelay(attempt)); waitErr != nil {
			return RefreshRunResult{Attempts: attempt}, f.mapError(waitErr)
		}
	}

	return RefreshRunResult{Attempts: maxAttempts}, f.mapError(lastErr)
}

func isUnrecoverableRefreshError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRefreshNotPossible) || errors.Is(err, ErrEmptyInput) {
		return true
	}
	var exchangeErr *exchange.ExchangeError
	if errors.As(err, &exchangeErr) {
		switch strings.ToLower(strings.TrimSpace(exchangeErr.ErrorCode)) {
		case "invalid_grant", "invalid_client", "unauthorized_client":
			return true
		}
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch richErr.Category {
		case goerrors.CategoryAuth, goerrors.CategoryAuthz, goerrors.CategoryValidation, goerrors.CategoryNotFound:
			return true
		}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(msg, "invalid_grant") ||
		strings.Contains(msg, "invalid refresh token")
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
