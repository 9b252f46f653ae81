package deployment

import (
	"errors"
	"net/url"
	"testing"
)

func TestResolve_ReturnsConfigForEveryKey(t *testing.T) {
	for _, key := range Keys() {
		config, err := Resolve(key)
		if err != nil {
			t.Fatalf("resolve %q: %v", key, err)
		}
		if config.Key != key {
			t.Fatalf("expected key %q, got %q", key, config.Key)
		}
		for name, endpoint := range map[string]string{
			"authorization": config.AuthorizationEndpoint,
			"token":         config.TokenEndpoint,
		} {
			parsed, parseErr := url.Parse(endpoint)
			if parseErr != nil {
				t.Fatalf("parse %s endpoint for %q: %v", name, key, parseErr)
			}
			if !parsed.IsAbs() || parsed.Host == "" {
				t.Fatalf("expected absolute %s endpoint for %q, got %q", name, key, endpoint)
			}
		}
		if config.DisplayName == "" || config.AccountURL == "" || config.DeveloperURL == "" {
			t.Fatalf("incomplete display data for %q: %#v", key, config)
		}
	}
}

func TestResolve_UnknownKeyFails(t *testing.T) {
	for _, value := range []string{"", "europe", "INTERNATIONAL ", "dida365"} {
		if value == "INTERNATIONAL " {
			// normalized values resolve; skip the one that should succeed
			if _, err := Resolve(Key(value)); err != nil {
				t.Fatalf("expected normalized resolve for %q, got %v", value, err)
			}
			continue
		}
		_, err := Resolve(Key(value))
		if !errors.Is(err, ErrUnknownDeployment) {
			t.Fatalf("expected ErrUnknownDeployment for %q, got %v", value, err)
		}
	}
}

func TestParseKey_NormalizesInput(t *testing.T) {
	key, err := ParseKey("  China ")
	if err != nil {
		t.Fatalf("parse key: %v", err)
	}
	if key != KeyChina {
		t.Fatalf("expected china, got %q", key)
	}
	if _, err := ParseKey("both"); !errors.Is(err, ErrUnknownDeployment) {
		t.Fatalf("expected ErrUnknownDeployment, got %v", err)
	}
}
