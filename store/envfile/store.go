// Package envfile persists credentials to a flat dotenv file. The same file
// is read by the MCP server process, so writes merge with whatever keys are
// already there instead of rewriting the file wholesale.
package envfile

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/joho/godotenv"

	"github.com/goliatone/go-ticktick-auth/core"
	"github.com/goliatone/go-ticktick-auth/deployment"
)

const (
	KeyClientID       = "TICKTICK_CLIENT_ID"
	KeyClientSecret   = "TICKTICK_CLIENT_SECRET"
	KeyDeployment     = "TICKTICK_DEPLOYMENT"
	KeyAccessToken    = "TICKTICK_ACCESS_TOKEN"
	KeyRefreshToken   = "TICKTICK_REFRESH_TOKEN"
	KeyTokenExpiresAt = "TICKTICK_TOKEN_EXPIRES_AT"
)

type Config struct {
	Path   string
	Logger core.Logger
}

// Store implements core.CredentialStore over a dotenv file. All writes go
// through a read-merge-write cycle guarded by a mutex, so concurrent saves
// from the same process never clobber each other.
type Store struct {
	path   string
	logger core.Logger
	mu     sync.Mutex
}

func New(cfg Config) (*Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, fmt.Errorf("envfile: path is required")
	}
	return &Store{
		path:   path,
		logger: glog.Ensure(cfg.Logger),
	}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Load(ctx context.Context) (core.StoredCredentials, error) {
	if err := ctx.Err(); err != nil {
		return core.StoredCredentials{}, err
	}

	values, err := s.read()
	if err != nil {
		return core.StoredCredentials{}, err
	}

	stored := core.StoredCredentials{
		ClientID:     strings.TrimSpace(values[KeyClientID]),
		ClientSecret: strings.TrimSpace(values[KeyClientSecret]),
		Deployment:   strings.TrimSpace(values[KeyDeployment]),
	}

	accessToken := strings.TrimSpace(values[KeyAccessToken])
	refreshToken := strings.TrimSpace(values[KeyRefreshToken])
	if accessToken == "" && refreshToken == "" {
		return stored, nil
	}

	record := core.TokenRecord{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}
	if key, parseErr := deployment.ParseKey(stored.Deployment); parseErr == nil {
		record.Deployment = key
	}
	if raw := strings.TrimSpace(values[KeyTokenExpiresAt]); raw != "" {
		expiresAt, parseErr := time.Parse(time.RFC3339, raw)
		if parseErr != nil {
			s.logger.Warn("stored token expiry is not RFC3339, treating token as non-expiring",
				"value", raw,
				"error", parseErr.Error(),
			)
		} else {
			expiresAt = expiresAt.UTC()
			record.ExpiresAt = &expiresAt
		}
	}
	stored.Tokens = &record

	return stored, nil
}

func (s *Store) HasCredentials(ctx context.Context) (bool, error) {
	stored, err := s.Load(ctx)
	if err != nil {
		return false, err
	}
	return stored.HasClientCredentials(), nil
}

func (s *Store) SaveClientCredentials(ctx context.Context, clientID, clientSecret string) error {
	if strings.TrimSpace(clientID) == "" || strings.TrimSpace(clientSecret) == "" {
		return fmt.Errorf("envfile: client id and secret are required")
	}
	return s.merge(ctx, map[string]string{
		KeyClientID:     strings.TrimSpace(clientID),
		KeyClientSecret: strings.TrimSpace(clientSecret),
	})
}

func (s *Store) SaveDeploymentSelection(ctx context.Context, key deployment.Key) error {
	if _, err := deployment.Resolve(key); err != nil {
		return err
	}
	return s.merge(ctx, map[string]string{
		KeyDeployment: string(key),
	})
}

func (s *Store) SaveTokens(ctx context.Context, record core.TokenRecord) error {
	if strings.TrimSpace(record.AccessToken) == "" {
		return fmt.Errorf("envfile: access token is required")
	}

	updates := map[string]string{
		KeyAccessToken:  record.AccessToken,
		KeyRefreshToken: record.RefreshToken,
	}
	if record.ExpiresAt != nil {
		updates[KeyTokenExpiresAt] = record.ExpiresAt.UTC().Format(time.RFC3339)
	} else {
		updates[KeyTokenExpiresAt] = ""
	}
	if record.Deployment != "" {
		if _, err := deployment.Resolve(record.Deployment); err != nil {
			return err
		}
		updates[KeyDeployment] = string(record.Deployment)
	}

	return s.merge(ctx, updates)
}

// read returns the file contents as a map, treating a missing file as empty.
func (s *Store) read() (map[string]string, error) {
	values, err := godotenv.Read(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("envfile: read %s: %w", s.path, err)
	}
	return values, nil
}

func (s *Store) merge(ctx context.Context, updates map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	for key, value := range updates {
		if value == "" {
			delete(values, key)
			continue
		}
		values[key] = value
	}

	if err := godotenv.Write(values, s.path); err != nil {
		return fmt.Errorf("envfile: write %s: %w", s.path, err)
	}

	s.logger.Debug("credential file updated", "path", s.path, "keys", len(updates))
	return nil
}

var _ core.CredentialStore = (*Store)(nil)
