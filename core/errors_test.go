package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-ticktick-auth/deployment"
	"github.com/goliatone/go-ticktick-auth/exchange"
)

func TestFlowErrorMapperCategories(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		category goerrors.Category
		textCode string
		code     int
	}{
		{
			name:     "unknown deployment",
			err:      fmt.Errorf("%w: %q", deployment.ErrUnknownDeployment, "mars"),
			category: goerrors.CategoryNotFound,
			textCode: AuthErrorUnknownDeployment,
			code:     http.StatusNotFound,
		},
		{
			name:     "empty input",
			err:      fmt.Errorf("%w: client id", ErrEmptyInput),
			category: goerrors.CategoryBadInput,
			textCode: AuthErrorEmptyInput,
			code:     http.StatusBadRequest,
		},
		{
			name:     "persistence",
			err:      fmt.Errorf("%w: save tokens: disk full", ErrPersistence),
			category: goerrors.CategoryInternal,
			textCode: AuthErrorPersistence,
			code:     http.StatusInternalServerError,
		},
		{
			name:     "state mismatch",
			err:      fmt.Errorf("%w: possible CSRF", ErrStateMismatch),
			category: goerrors.CategoryAuth,
			textCode: AuthErrorStateMismatch,
			code:     http.StatusUnauthorized,
		},
		{
			name:     "denied",
			err:      fmt.Errorf("%w: access_denied", ErrAuthorizationDenied),
			category: goerrors.CategoryAuth,
			textCode: AuthErrorDenied,
			code:     http.StatusUnauthorized,
		},
		{
			name:     "timeout",
			err:      fmt.Errorf("%w: no redirect within 5m0s", ErrAuthorizationTimeout),
			category: goerrors.CategoryOperation,
			textCode: AuthErrorTimeout,
			code:     http.StatusInternalServerError,
		},
		{
			name:     "token exchange",
			err:      &exchange.ExchangeError{StatusCode: 400, ErrorCode: "invalid_client"},
			category: goerrors.CategoryOperation,
			textCode: AuthErrorTokenExchange,
			code:     http.StatusInternalServerError,
		},
		{
			name:     "refresh not possible",
			err:      ErrRefreshNotPossible,
			category: goerrors.CategoryAuth,
			textCode: AuthErrorRefreshRequired,
			code:     http.StatusUnauthorized,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := flowErrorMapper(tc.err)
			if mapped == nil {
				t.Fatal("expected mapped error")
			}
			if mapped.Category != tc.category {
				t.Fatalf("expected category %v, got %v", tc.category, mapped.Category)
			}
			if mapped.TextCode != tc.textCode {
				t.Fatalf("expected text code %q, got %q", tc.textCode, mapped.TextCode)
			}
			if mapped.Code != tc.code {
				t.Fatalf("expected status %d, got %d", tc.code, mapped.Code)
			}
			if !errors.Is(mapped, tc.err) {
				t.Fatalf("mapping must keep the source chain: %v", mapped)
			}
		})
	}
}

func TestFlowErrorMapperKeepsSentinelChain(t *testing.T) {
	mapped := flowErrorMapper(fmt.Errorf("%w: client secret", ErrEmptyInput))
	if !errors.Is(mapped, ErrEmptyInput) {
		t.Fatalf("sentinel lost after mapping: %v", mapped)
	}

	var exchangeErr *exchange.ExchangeError
	mapped = flowErrorMapper(&exchange.ExchangeError{StatusCode: 401, ErrorCode: "invalid_grant"})
	if !errors.As(mapped, &exchangeErr) {
		t.Fatalf("structured exchange error lost after mapping: %v", mapped)
	}
	if exchangeErr.ErrorCode != "invalid_grant" {
		t.Fatalf("unexpected error code %q", exchangeErr.ErrorCode)
	}
}

func TestFlowErrorMapperPassesRichErrorsThrough(t *testing.T) {
	original := goerrors.New("already rich", goerrors.CategoryConflict)
	mapped := flowErrorMapper(original)
	if mapped.Category != goerrors.CategoryConflict {
		t.Fatalf("existing category must survive, got %v", mapped.Category)
	}
	if mapped.Code != http.StatusConflict {
		t.Fatalf("expected conflict status, got %d", mapped.Code)
	}
}

func TestFlowErrorMapperNil(t *testing.T) {
	if flowErrorMapper(nil) != nil {
		t.Fatal("nil must map to nil")
	}
}

func TestClientCredentialsValidate(t *testing.T) {
	creds := ClientCredentials{}
	if err := creds.Validate(); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected empty-input error, got %v", err)
	}

	creds.ClientID = "CID1"
	if err := creds.Validate(); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected empty-input error for missing secret, got %v", err)
	}

	creds.ClientSecret = "SEC1"
	if err := creds.Validate(); err != nil {
		t.Fatalf("expected valid credentials, got %v", err)
	}
}
