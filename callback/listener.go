// Package callback captures the OAuth provider's redirect on a one-shot
// loopback HTTP listener. The listener resolves exactly once; any request
// after the first meaningful one is answered but inert.
package callback

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-ticktick-auth/core"
)

const (
	defaultHost         = "127.0.0.1"
	defaultCallbackPath = "/callback"
	shutdownGrace       = 2 * time.Second
)

type Config struct {
	Host   string
	Path   string
	Logger core.Logger
}

// Listener binds OS-assigned loopback ports for redirect capture. One
// Listener can arm many sequential attempts; each Start returns an
// independent pending authorization.
type Listener struct {
	host   string
	path   string
	logger core.Logger
}

func New(cfg Config) *Listener {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = defaultHost
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = defaultCallbackPath
	}
	return &Listener{
		host:   host,
		path:   path,
		logger: glog.Ensure(cfg.Logger),
	}
}

// Start binds an ephemeral port and serves the callback path until the first
// meaningful request resolves the pending authorization or Close is called.
func (l *Listener) Start(_ context.Context, expectedState string) (core.PendingAuthorization, error) {
	if l == nil {
		return nil, fmt.Errorf("callback: listener is nil")
	}
	if strings.TrimSpace(expectedState) == "" {
		return nil, fmt.Errorf("callback: expected state is required")
	}

	netListener, err := net.Listen("tcp", net.JoinHostPort(l.host, "0"))
	if err != nil {
		return nil, fmt.Errorf("callback: bind loopback port: %w", err)
	}

	pending := &Pending{
		expectedState: expectedState,
		redirectURI:   fmt.Sprintf("http://%s%s", netListener.Addr().String(), l.path),
		logger:        l.logger,
		done:          make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(l.path, pending.handleRedirect)
	server := &http.Server{Handler: mux}
	pending.server = server

	go func() {
		if serveErr := server.Serve(netListener); serveErr != nil && serveErr != http.ErrServerClosed {
			pending.resolve("", fmt.Errorf("callback: serve: %w", serveErr))
		}
	}()

	l.logger.Debug("redirect listener bound", "redirect_uri", pending.redirectURI)
	return pending, nil
}

// Pending is one armed redirect capture. It resolves at most once.
type Pending struct {
	expectedState string
	redirectURI   string
	logger        core.Logger
	server        *http.Server

	done chan struct{}
	once sync.Once

	mu   sync.Mutex
	code string
	err  error
}

func (p *Pending) RedirectURI() string {
	if p == nil {
		return ""
	}
	return p.redirectURI
}

// Wait blocks until the redirect resolves or ctx expires. The context error
// is returned verbatim so callers can distinguish timeout from cancellation;
// the port is released before returning on every path.
func (p *Pending) Wait(ctx context.Context) (string, error) {
	if p == nil {
		return "", fmt.Errorf("callback: pending authorization is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-ctx.Done():
		_ = p.Close()
		return "", ctx.Err()
	case <-p.done:
		p.mu.Lock()
		code, err := p.code, p.err
		p.mu.Unlock()
		return code, err
	}
}

// Close tears the listener down and releases the port. Safe to call more
// than once and on every exit path.
func (p *Pending) Close() error {
	if p == nil || p.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := p.server.Shutdown(shutdownCtx); err != nil {
		return p.server.Close()
	}
	return nil
}

func (p *Pending) handleRedirect(w http.ResponseWriter, r *http.Request) {
	select {
	case <-p.done:
		writePage(w, http.StatusGone, pageAlreadyCompleted)
		return
	default:
	}

	query := r.URL.Query()

	if state := query.Get("state"); state != p.expectedState {
		writePage(w, http.StatusBadRequest, pageStateMismatch)
		p.resolve("", fmt.Errorf("%w: possible CSRF or stale redirect", core.ErrStateMismatch))
		return
	}
	if providerError := strings.TrimSpace(query.Get("error")); providerError != "" {
		writePage(w, http.StatusBadRequest, pageDenied)
		p.resolve("", &DeniedError{
			Code:        providerError,
			Description: strings.TrimSpace(query.Get("error_description")),
		})
		return
	}
	code := strings.TrimSpace(query.Get("code"))
	if code == "" {
		writePage(w, http.StatusBadRequest, pageDenied)
		p.resolve("", &DeniedError{Code: "missing_code", Description: "redirect carried no authorization code"})
		return
	}

	writePage(w, http.StatusOK, pageSuccess)
	p.resolve(code, nil)
}

func (p *Pending) resolve(code string, err error) {
	p.once.Do(func() {
		p.mu.Lock()
		p.code = code
		p.err = err
		p.mu.Unlock()
		close(p.done)
		if err != nil {
			p.logger.Debug("redirect resolved with error", "error", err.Error())
			return
		}
		p.logger.Debug("redirect resolved with authorization code")
	})
}

func writePage(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// DeniedError carries the provider's error string from the redirect.
type DeniedError struct {
	Code        string
	Description string
}

func (e *DeniedError) Error() string {
	if e == nil {
		return core.ErrAuthorizationDenied.Error()
	}
	parts := []string{core.ErrAuthorizationDenied.Error()}
	if strings.TrimSpace(e.Code) != "" {
		parts = append(parts, strings.TrimSpace(e.Code))
	}
	if strings.TrimSpace(e.Description) != "" {
		parts = append(parts, strings.TrimSpace(e.Description))
	}
	return strings.Join(parts, ": ")
}

func (e *DeniedError) Unwrap() error {
	return core.ErrAuthorizationDenied
}

const pageSuccess = `<!DOCTYPE html>
<html><head><title>Authentication successful</title></head>
<body><h1>Authentication successful</h1>
<p>You can close this window and return to the terminal.</p></body></html>`

const pageStateMismatch = `<!DOCTYPE html>
<html><head><title>Authentication failed</title></head>
<body><h1>Authentication failed</h1>
<p>The request could not be verified. Please restart the authentication flow.</p></body></html>`

const pageDenied = `<!DOCTYPE html>
<html><head><title>Authentication failed</title></head>
<body><h1>Authentication failed</h1>
<p>The authorization request was not completed. Please restart the authentication flow.</p></body></html>`

const pageAlreadyCompleted = `<!DOCTYPE html>
<html><head><title>Authentication already completed</title></head>
<body><h1>Nothing to do here</h1>
<p>This authentication attempt has already completed.</p></body></html>`

var _ core.RedirectListener = (*Listener)(nil)
