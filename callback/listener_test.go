package callback

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-ticktick-auth/core"
)

func startPending(t *testing.T, state string) core.PendingAuthorization {
	t.Helper()
	listener := New(Config{})
	pending, err := listener.Start(context.Background(), state)
	if err != nil {
		t.Fatalf("start listener: %v", err)
	}
	t.Cleanup(func() { _ = pending.Close() })
	return pending
}

func hitRedirect(t *testing.T, redirectURI string, params url.Values) (int, string) {
	t.Helper()
	resp, err := http.Get(redirectURI + "?" + params.Encode())
	if err != nil {
		t.Fatalf("request redirect: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestPendingResolvesWithAuthorizationCode(t *testing.T) {
	pending := startPending(t, "state-abc")

	if !strings.HasPrefix(pending.RedirectURI(), "http://127.0.0.1:") {
		t.Fatalf("expected loopback redirect URI, got %q", pending.RedirectURI())
	}

	status, body := hitRedirect(t, pending.RedirectURI(), url.Values{
		"state": {"state-abc"},
		"code":  {"AUTHCODE"},
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(body, "Authentication successful") {
		t.Fatalf("expected success page, got %q", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	code, err := pending.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if code != "AUTHCODE" {
		t.Fatalf("expected code AUTHCODE, got %q", code)
	}
}

func TestPendingStateMismatchCheckedBeforeErrorParam(t *testing.T) {
	pending := startPending(t, "expected-state")

	status, _ := hitRedirect(t, pending.RedirectURI(), url.Values{
		"state": {"tampered"},
		"error": {"access_denied"},
		"code":  {"AUTHCODE"},
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := pending.Wait(ctx)
	if !errors.Is(err, core.ErrStateMismatch) {
		t.Fatalf("expected state mismatch, got %v", err)
	}
	if errors.Is(err, core.ErrAuthorizationDenied) {
		t.Fatalf("state mismatch must win over provider error param: %v", err)
	}
}

func TestPendingProviderDenial(t *testing.T) {
	pending := startPending(t, "state-abc")

	hitRedirect(t, pending.RedirectURI(), url.Values{
		"state":             {"state-abc"},
		"error":             {"access_denied"},
		"error_description": {"user rejected the request"},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := pending.Wait(ctx)
	if !errors.Is(err, core.ErrAuthorizationDenied) {
		t.Fatalf("expected denial, got %v", err)
	}
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected *DeniedError, got %T", err)
	}
	if denied.Code != "access_denied" {
		t.Fatalf("expected provider code to carry through, got %q", denied.Code)
	}
}

func TestPendingMissingCode(t *testing.T) {
	pending := startPending(t, "state-abc")

	hitRedirect(t, pending.RedirectURI(), url.Values{"state": {"state-abc"}})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := pending.Wait(ctx)
	if !errors.Is(err, core.ErrAuthorizationDenied) {
		t.Fatalf("expected denial for missing code, got %v", err)
	}
}

func TestPendingSecondRequestIsInert(t *testing.T) {
	pending := startPending(t, "state-abc")

	hitRedirect(t, pending.RedirectURI(), url.Values{
		"state": {"state-abc"},
		"code":  {"FIRST"},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	code, err := pending.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if code != "FIRST" {
		t.Fatalf("expected first code to win, got %q", code)
	}

	status, body := hitRedirect(t, pending.RedirectURI(), url.Values{
		"state": {"state-abc"},
		"code":  {"SECOND"},
	})
	if status != http.StatusGone {
		t.Fatalf("expected 410 for replayed redirect, got %d", status)
	}
	if !strings.Contains(body, "already completed") {
		t.Fatalf("expected already-completed page, got %q", body)
	}
}

func TestWaitHonorsContextAndReleasesPort(t *testing.T) {
	pending := startPending(t, "state-abc")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := pending.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	parsed, err := url.Parse(pending.RedirectURI())
	if err != nil {
		t.Fatalf("parse redirect URI: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		rebound, bindErr := net.Listen("tcp", parsed.Host)
		if bindErr == nil {
			rebound.Close()
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("port never released: %v", bindErr)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestStartRequiresState(t *testing.T) {
	listener := New(Config{})
	if _, err := listener.Start(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank state")
	}
}
