// Package deployment describes the two regional TickTick deployments and
// resolves deployment keys to their OAuth endpoints. The registry is static;
// callers never mutate it.
package deployment

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownDeployment = errors.New("deployment: unknown deployment")

type Key string

const (
	KeyInternational Key = "international"
	KeyChina         Key = "china"
)

// Config is the immutable description of one regional deployment.
type Config struct {
	Key                   Key
	DisplayName           string
	AccountURL            string
	DeveloperURL          string
	AuthorizationEndpoint string
	TokenEndpoint         string
}

var configs = map[Key]Config{
	KeyInternational: {
		Key:                   KeyInternational,
		DisplayName:           "TickTick",
		AccountURL:            "https://ticktick.com",
		DeveloperURL:          "https://developer.ticktick.com",
		AuthorizationEndpoint: "https://ticktick.com/oauth/authorize",
		TokenEndpoint:         "https://ticktick.com/oauth/token",
	},
	KeyChina: {
		Key:                   KeyChina,
		DisplayName:           "Dida365 / 滴答清单",
		AccountURL:            "https://dida365.com",
		DeveloperURL:          "https://developer.dida365.com",
		AuthorizationEndpoint: "https://dida365.com/oauth/authorize",
		TokenEndpoint:         "https://dida365.com/oauth/token",
	},
}

// ParseKey normalizes a raw key value, failing with ErrUnknownDeployment for
// anything other than the two recognized deployments.
func ParseKey(value string) (Key, error) {
	key := Key(strings.TrimSpace(strings.ToLower(value)))
	if _, ok := configs[key]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownDeployment, value)
	}
	return key, nil
}

// Resolve returns the deployment configuration for key.
func Resolve(key Key) (Config, error) {
	config, ok := configs[Key(strings.TrimSpace(strings.ToLower(string(key))))]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownDeployment, key)
	}
	return config, nil
}

// Keys lists the recognized deployment keys in presentation order.
func Keys() []Key {
	return []Key{KeyInternational, KeyChina}
}
