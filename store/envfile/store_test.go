package envfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joho/godotenv"

	"github.com/goliatone/go-ticktick-auth/core"
	"github.com/goliatone/go-ticktick-auth/deployment"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(Config{Path: filepath.Join(t.TempDir(), ".env")})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestLoadMissingFileReturnsEmptySnapshot(t *testing.T) {
	store := newStore(t)

	stored, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored.HasClientCredentials() {
		t.Fatal("expected no credentials in empty snapshot")
	}
	if stored.Tokens != nil {
		t.Fatal("expected no tokens in empty snapshot")
	}

	has, err := store.HasCredentials(context.Background())
	if err != nil {
		t.Fatalf("has credentials: %v", err)
	}
	if has {
		t.Fatal("expected HasCredentials to be false for missing file")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if err := store.SaveClientCredentials(ctx, "CID1", "SEC1"); err != nil {
		t.Fatalf("save credentials: %v", err)
	}
	if err := store.SaveDeploymentSelection(ctx, deployment.KeyChina); err != nil {
		t.Fatalf("save deployment: %v", err)
	}

	expiresAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.SaveTokens(ctx, core.TokenRecord{
		AccessToken:  "AT1",
		RefreshToken: "RT1",
		ExpiresAt:    &expiresAt,
		Deployment:   deployment.KeyChina,
	}); err != nil {
		t.Fatalf("save tokens: %v", err)
	}

	stored, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored.ClientID != "CID1" || stored.ClientSecret != "SEC1" {
		t.Fatalf("unexpected credentials: %+v", stored)
	}
	if stored.Deployment != string(deployment.KeyChina) {
		t.Fatalf("unexpected deployment: %q", stored.Deployment)
	}
	if stored.Tokens == nil {
		t.Fatal("expected tokens")
	}
	if stored.Tokens.AccessToken != "AT1" || stored.Tokens.RefreshToken != "RT1" {
		t.Fatalf("unexpected tokens: %+v", stored.Tokens)
	}
	if stored.Tokens.ExpiresAt == nil || !stored.Tokens.ExpiresAt.Equal(expiresAt) {
		t.Fatalf("unexpected expiry: %v", stored.Tokens.ExpiresAt)
	}
	if stored.Tokens.Deployment != deployment.KeyChina {
		t.Fatalf("unexpected token deployment: %q", stored.Tokens.Deployment)
	}
}

func TestWritesPreserveUnrelatedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := godotenv.Write(map[string]string{
		"UNRELATED_KEY": "keep me",
		"ANOTHER_ONE":   "also kept",
	}, path); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	store, err := New(Config{Path: path})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	ctx := context.Background()
	if err := store.SaveClientCredentials(ctx, "CID1", "SEC1"); err != nil {
		t.Fatalf("save credentials: %v", err)
	}
	if err := store.SaveTokens(ctx, core.TokenRecord{AccessToken: "AT1"}); err != nil {
		t.Fatalf("save tokens: %v", err)
	}

	values, err := godotenv.Read(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if values["UNRELATED_KEY"] != "keep me" || values["ANOTHER_ONE"] != "also kept" {
		t.Fatalf("unrelated keys lost: %+v", values)
	}
	if values[KeyClientID] != "CID1" {
		t.Fatalf("expected client id persisted, got %+v", values)
	}
}

func TestSaveTokensWithoutRefreshTokenClearsKey(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	expiresAt := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	if err := store.SaveTokens(ctx, core.TokenRecord{
		AccessToken:  "AT1",
		RefreshToken: "RT1",
		ExpiresAt:    &expiresAt,
	}); err != nil {
		t.Fatalf("save tokens: %v", err)
	}
	if err := store.SaveTokens(ctx, core.TokenRecord{AccessToken: "AT2"}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	stored, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored.Tokens == nil || stored.Tokens.AccessToken != "AT2" {
		t.Fatalf("unexpected tokens: %+v", stored.Tokens)
	}
	if stored.Tokens.RefreshToken != "" {
		t.Fatalf("expected refresh token cleared, got %q", stored.Tokens.RefreshToken)
	}
	if stored.Tokens.ExpiresAt != nil {
		t.Fatalf("expected expiry cleared, got %v", stored.Tokens.ExpiresAt)
	}
}

func TestLoadToleratesMalformedExpiry(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := strings.Join([]string{
		KeyAccessToken + "=AT1",
		KeyTokenExpiresAt + "=not-a-timestamp",
	}, "\n")
	if err := os.WriteFile(path, []byte(content+"\n"), 0o600); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	store, err := New(Config{Path: path})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	stored, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored.Tokens == nil || stored.Tokens.AccessToken != "AT1" {
		t.Fatalf("expected access token, got %+v", stored.Tokens)
	}
	if stored.Tokens.ExpiresAt != nil {
		t.Fatalf("malformed expiry must read as non-expiring, got %v", stored.Tokens.ExpiresAt)
	}
}

func TestSaveDeploymentSelectionRejectsUnknownKey(t *testing.T) {
	store := newStore(t)
	if err := store.SaveDeploymentSelection(context.Background(), deployment.Key("mars")); err == nil {
		t.Fatal("expected error for unknown deployment")
	}
}

func TestNewRequiresPath(t *testing.T) {
	if _, err := New(Config{Path: "   "}); err == nil {
		t.Fatal("expected error for blank path")
	}
}
