package exchange

import (
	"errors"
	"fmt"
	"strings"
)

var ErrTokenExchange = errors.New("exchange: token exchange failed")

// ExchangeError carries the provider's status and payload so callers can
// diagnose credential problems versus provider outages.
type ExchangeError struct {
	StatusCode  int
	ErrorCode   string
	Description string
	Body        string
}

func (e *ExchangeError) Error() string {
	if e == nil {
		return ErrTokenExchange.Error()
	}
	parts := []string{ErrTokenExchange.Error()}
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if strings.TrimSpace(e.ErrorCode) != "" {
		parts = append(parts, "error="+strings.TrimSpace(e.ErrorCode))
	}
	if strings.TrimSpace(e.Description) != "" {
		parts = append(parts, strings.TrimSpace(e.Description))
	} else if strings.TrimSpace(e.Body) != "" {
		parts = append(parts, strings.TrimSpace(e.Body))
	}
	return strings.Join(parts, ": ")
}

func (e *ExchangeError) Unwrap() error {
	return ErrTokenExchange
}
