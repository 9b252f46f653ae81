package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-ticktick-auth/deployment"
)

// ClientCredentials identifies the registered API application. Values are
// opaque to the flow and never validated beyond non-emptiness.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
}

func (c ClientCredentials) Validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("%w: client id", ErrEmptyInput)
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		return fmt.Errorf("%w: client secret", ErrEmptyInput)
	}
	return nil
}

// TokenRecord holds the tokens issued for one deployment. ExpiresAt is nil
// when the token endpoint omitted expires_in.
type TokenRecord struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	Deployment   deployment.Key
}

// AuthorizationState is the transient per-attempt handshake state. It is
// created when the flow starts and discarded when the attempt terminates;
// it is never persisted.
type AuthorizationState struct {
	State       string
	RedirectURI string
	Deployment  deployment.Config
}

// StoredCredentials is the snapshot a CredentialStore returns. Missing keys
// read as zero values, never as errors.
type StoredCredentials struct {
	ClientID     string
	ClientSecret string
	Deployment   string
	Tokens       *TokenRecord
}

func (s StoredCredentials) HasClientCredentials() bool {
	return strings.TrimSpace(s.ClientID) != "" && strings.TrimSpace(s.ClientSecret) != ""
}
