package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-ticktick-auth/deployment"
	"github.com/goliatone/go-ticktick-auth/exchange"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// CredentialStore persists the deployment selection, client credentials, and
// tokens to the flat key-value file shared with the MCP server process.
// Writes merge with unrelated keys already present; reads tolerate a missing
// file and missing keys.
type CredentialStore interface {
	Load(ctx context.Context) (StoredCredentials, error)
	HasCredentials(ctx context.Context) (bool, error)
	SaveClientCredentials(ctx context.Context, clientID, clientSecret string) error
	SaveDeploymentSelection(ctx context.Context, key deployment.Key) error
	SaveTokens(ctx context.Context, record TokenRecord) error
}

// PendingAuthorization is one armed redirect capture. Wait blocks until the
// provider redirects back or ctx expires; Close always releases the port.
type PendingAuthorization interface {
	RedirectURI() string
	Wait(ctx context.Context) (string, error)
	Close() error
}

// RedirectListener binds an ephemeral loopback port and captures exactly one
// redirect carrying the authorization code.
type RedirectListener interface {
	Start(ctx context.Context, expectedState string) (PendingAuthorization, error)
}

// TokenExchanger talks to one deployment's token endpoint.
type TokenExchanger interface {
	ExchangeCode(ctx context.Context, code, redirectURI string) (exchange.Token, error)
	Refresh(ctx context.Context, refreshToken string) (exchange.Token, error)
}

// TokenExchangerFactory builds an exchanger bound to the selected deployment
// and the collected client credentials.
type TokenExchangerFactory func(dep deployment.Config, creds ClientCredentials) (TokenExchanger, error)

// CredentialSource supplies client credentials to the flow, decoupling the
// authorization protocol from any particular presentation layer. UseStored is
// consulted only when the store already holds a non-empty id/secret pair.
// Collect is re-invoked with the validation failure while input is empty; a
// source that cannot retry should return an error to abort the attempt.
type CredentialSource interface {
	UseStored(ctx context.Context, stored ClientCredentials) (bool, error)
	Collect(ctx context.Context, retry error) (ClientCredentials, error)
}

// StaticCredentialSource satisfies CredentialSource for non-interactive
// callers: it either reuses stored credentials or supplies fixed ones.
type StaticCredentialSource struct {
	Credentials ClientCredentials
	ReuseStored bool
}

func (s StaticCredentialSource) UseStored(context.Context, ClientCredentials) (bool, error) {
	return s.ReuseStored, nil
}

func (s StaticCredentialSource) Collect(_ context.Context, retry error) (ClientCredentials, error) {
	if retry != nil {
		return ClientCredentials{}, retry
	}
	return s.Credentials, nil
}

// URLOpener presents the authorization URL to the user, typically by opening
// a browser.
type URLOpener interface {
	OpenURL(ctx context.Context, url string) error
}

type URLOpenerFunc func(ctx context.Context, url string) error

func (fn URLOpenerFunc) OpenURL(ctx context.Context, url string) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, url)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

var (
	_ CredentialSource = StaticCredentialSource{}
	_ URLOpener        = URLOpenerFunc(nil)
)
