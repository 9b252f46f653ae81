package core

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"

	"github.com/goliatone/go-ticktick-auth/deployment"
	"github.com/goliatone/go-ticktick-auth/exchange"
)

// Flow drives one authorization attempt through its linear state machine:
// SelectDeployment, CollectCredentials, PersistSelection, BuildAuthURL,
// AwaitRedirect, ExchangeToken, PersistTokens. Attempts are single-use and
// non-resumable; retrying means a new Authorize call.
type Flow struct {
	config           Config
	logger           Logger
	metricsRecorder  MetricsRecorder
	errorFactory     ErrorFactory
	errorMapper      ErrorMapper
	store            CredentialStore
	listener         RedirectListener
	exchangerFactory TokenExchangerFactory
	opener           URLOpener
	stateGenerator   func() (string, error)
	attemptID        func() string
	now              func() time.Time
}

// AuthorizeRequest selects the deployment and the credential input source for
// one attempt. Scopes, when set, override the configured defaults.
type AuthorizeRequest struct {
	Deployment string
	Source     CredentialSource
	Scopes     []string
}

// AuthorizeResult is returned from a terminal Succeeded state.
type AuthorizeResult struct {
	AttemptID        string
	Deployment       deployment.Config
	AuthorizationURL string
	Tokens           TokenRecord
}

func NewFlow(cfg Config, options ...Option) (*Flow, error) {
	builder := defaultFlowBuilder(cfg)
	for _, option := range options {
		if option == nil {
			continue
		}
		option(&builder)
	}

	provider, logger := glog.Resolve("ticktick-auth", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("ticktick-auth"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.stateGenerator == nil {
		builder.stateGenerator = generateAuthState
	}
	if builder.attemptID == nil {
		builder.attemptID = uuid.NewString
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}
	if builder.store == nil {
		return nil, builder.errorFactory("core: credential store is required", goerrors.CategoryInternal).
			WithTextCode(AuthErrorInternal)
	}
	if builder.listener == nil {
		return nil, builder.errorFactory("core: redirect listener is required", goerrors.CategoryInternal).
			WithTextCode(AuthErrorInternal)
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, builder.errorMapper(err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, builder.errorMapper(err)
	}

	exchangerFactory := builder.exchangerFactory
	if exchangerFactory == nil {
		timeout := finalConfig.TokenRequestTimeout
		now := builder.now
		exchangerFactory = func(dep deployment.Config, creds ClientCredentials) (TokenExchanger, error) {
			return exchange.NewClient(exchange.Config{
				TokenURL:       dep.TokenEndpoint,
				ClientID:       creds.ClientID,
				ClientSecret:   creds.ClientSecret,
				RequestTimeout: timeout,
				Now:            now,
			})
		}
	}

	return &Flow{
		config:           finalConfig,
		logger:           logger,
		metricsRecorder:  builder.metricsRecorder,
		errorFactory:     builder.errorFactory,
		errorMapper:      builder.errorMapper,
		store:            builder.store,
		listener:         builder.listener,
		exchangerFactory: exchangerFactory,
		opener:           builder.opener,
		stateGenerator:   builder.stateGenerator,
		attemptID:        builder.attemptID,
		now:              builder.now,
	}, nil
}

// Authorize runs the full handshake. Every failure is terminal for this
// attempt; nothing beyond the credentials and deployment selection persisted
// in the PersistSelection step is written unless the exchange succeeds.
func (f *Flow) Authorize(ctx context.Context, req AuthorizeRequest) (AuthorizeResult, error) {
	if f == nil {
		return AuthorizeResult{}, fmt.Errorf("core: flow is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	startedAt := f.now()
	attemptID := f.attemptID()
	fields := map[string]any{
		"attempt_id": attemptID,
		"deployment": strings.TrimSpace(req.Deployment),
	}

	result, err := f.authorize(ctx, attemptID, req, fields)
	f.observeOperation(ctx, startedAt, "authorize", err, fields)
	if err != nil {
		return AuthorizeResult{}, f.mapError(err)
	}
	return result, nil
}

func (f *Flow) authorize(ctx context.Context, attemptID string, req AuthorizeRequest, fields map[string]any) (AuthorizeResult, error) {
	// SelectDeployment
	key, err := deployment.ParseKey(req.Deployment)
	if err != nil {
		return AuthorizeResult{}, err
	}
	dep, err := deployment.Resolve(key)
	if err != nil {
		return AuthorizeResult{}, err
	}
	fields["deployment"] = string(dep.Key)

	// CollectCredentials
	creds, err := f.collectCredentials(ctx, req.Source)
	if err != nil {
		return AuthorizeResult{}, err
	}

	// PersistSelection
	if err := f.store.SaveClientCredentials(ctx, creds.ClientID, creds.ClientSecret); err != nil {
		return AuthorizeResult{}, fmt.Errorf("%w: save client credentials: %v", ErrPersistence, err)
	}
	if err := f.store.SaveDeploymentSelection(ctx, dep.Key); err != nil {
		return AuthorizeResult{}, fmt.Errorf("%w: save deployment selection: %v", ErrPersistence, err)
	}

	// BuildAuthURL needs the redirect port, so the listener binds first.
	state, err := f.stateGenerator()
	if err != nil {
		return AuthorizeResult{}, err
	}
	pending, err := f.listener.Start(ctx, state)
	if err != nil {
		return AuthorizeResult{}, err
	}
	defer func() {
		_ = pending.Close()
	}()

	authState := AuthorizationState{
		State:       state,
		RedirectURI: pending.RedirectURI(),
		Deployment:  dep,
	}
	scopes := req.Scopes
	if len(scopes) == 0 {
		scopes = f.config.Scopes
	}
	authURL := buildAuthorizationURL(dep, creds.ClientID, authState.RedirectURI, state, scopes)
	f.logInfo(ctx, "authorization url ready", map[string]any{
		"attempt_id":        attemptID,
		"deployment":        string(dep.Key),
		"redirect_uri":      authState.RedirectURI,
		"authorization_url": authURL,
	})
	if f.opener != nil {
		if openErr := f.opener.OpenURL(ctx, authURL); openErr != nil {
			// The URL is still usable manually; surface the problem and wait.
			f.logWarn(ctx, "open authorization url failed", map[string]any{
				"attempt_id": attemptID,
				"error":      openErr.Error(),
			})
		}
	}

	// AwaitRedirect
	waitCtx := ctx
	cancel := func() {}
	if f.config.AwaitTimeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, f.config.AwaitTimeout)
	}
	code, err := pending.Wait(waitCtx)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return AuthorizeResult{}, fmt.Errorf("%w: no redirect within %s", ErrAuthorizationTimeout, f.config.AwaitTimeout)
		}
		return AuthorizeResult{}, err
	}

	// ExchangeToken
	exchanger, err := f.exchangerFactory(dep, creds)
	if err != nil {
		return AuthorizeResult{}, err
	}
	token, err := exchanger.ExchangeCode(ctx, code, authState.RedirectURI)
	if err != nil {
		return AuthorizeResult{}, err
	}

	// PersistTokens
	record := TokenRecord{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.ExpiresAt,
		Deployment:   dep.Key,
	}
	if err := f.store.SaveTokens(ctx, record); err != nil {
		return AuthorizeResult{}, fmt.Errorf("%w: save tokens: %v", ErrPersistence, err)
	}

	return AuthorizeResult{
		AttemptID:        attemptID,
		Deployment:       dep,
		AuthorizationURL: authURL,
		Tokens:           record,
	}, nil
}

func (f *Flow) collectCredentials(ctx context.Context, source CredentialSource) (ClientCredentials, error) {
	if source == nil {
		return ClientCredentials{}, fmt.Errorf("%w: credential source", ErrEmptyInput)
	}

	stored, err := f.store.Load(ctx)
	if err != nil {
		return ClientCredentials{}, err
	}
	if stored.HasClientCredentials() {
		reuse, reuseErr := source.UseStored(ctx, ClientCredentials{
			ClientID:     stored.ClientID,
			ClientSecret: stored.ClientSecret,
		})
		if reuseErr != nil {
			return ClientCredentials{}, reuseErr
		}
		if reuse {
			return ClientCredentials{ClientID: stored.ClientID, ClientSecret: stored.ClientSecret}, nil
		}
	}

	// Empty input is a correctable user mistake: re-collect rather than
	// failing the attempt. The source aborts by returning an error.
	var retry error
	for {
		if ctx.Err() != nil {
			return ClientCredentials{}, ctx.Err()
		}
		creds, collectErr := source.Collect(ctx, retry)
		if collectErr != nil {
			return ClientCredentials{}, collectErr
		}
		creds.ClientID = strings.TrimSpace(creds.ClientID)
		creds.ClientSecret = strings.TrimSpace(creds.ClientSecret)
		if validateErr := creds.Validate(); validateErr != nil {
			retry = validateErr
			continue
		}
		return creds, nil
	}
}

// StaleTokenCheck reports whether the store holds tokens issued for a
// different deployment than the given selection. Tokens are never cleared on
// a deployment switch; callers decide what to do with the warning.
func (f *Flow) StaleTokenCheck(ctx context.Context, key deployment.Key) (bool, error) {
	if f == nil {
		return false, fmt.Errorf("core: flow is nil")
	}
	stored, err := f.store.Load(ctx)
	if err != nil {
		return false, f.mapError(err)
	}
	if stored.Tokens == nil || stored.Tokens.AccessToken == "" {
		return false, nil
	}
	stale := stored.Tokens.Deployment != "" && stored.Tokens.Deployment != key
	if stale {
		f.logWarn(ctx, "stored tokens belong to a different deployment", map[string]any{
			"selected":     string(key),
			"token_issuer": string(stored.Tokens.Deployment),
		})
	}
	return stale, nil
}

func (f *Flow) mapError(err error) error {
	if err == nil {
		return nil
	}
	if f == nil || f.errorMapper == nil {
		return err
	}
	mapped := f.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func buildAuthorizationURL(dep deployment.Config, clientID, redirectURI, state string, scopes []string) string {
	values := url.Values{}
	values.Set("client_id", clientID)
	values.Set("redirect_uri", redirectURI)
	values.Set("response_type", "code")
	values.Set("state", state)
	values.Set("scope", strings.Join(scopes, " "))

	endpoint := dep.AuthorizationEndpoint
	if strings.Contains(endpoint, "?") {
		return endpoint + "&" + values.Encode()
	}
	return endpoint + "?" + values.Encode()
}
