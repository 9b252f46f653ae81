package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultAwaitTimeout        = 5 * time.Minute
	defaultTokenRequestTimeout = 30 * time.Second
)

type Config struct {
	ServiceName         string        `koanf:"service_name" mapstructure:"service_name"`
	CallbackPath        string        `koanf:"callback_path" mapstructure:"callback_path"`
	Scopes              []string      `koanf:"scopes" mapstructure:"scopes"`
	AwaitTimeout        time.Duration `koanf:"await_timeout" mapstructure:"await_timeout"`
	TokenRequestTimeout time.Duration `koanf:"token_request_timeout" mapstructure:"token_request_timeout"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:         "ticktick-auth",
		CallbackPath:        "/callback",
		Scopes:              []string{"tasks:read", "tasks:write"},
		AwaitTimeout:        defaultAwaitTimeout,
		TokenRequestTimeout: defaultTokenRequestTimeout,
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if !strings.HasPrefix(strings.TrimSpace(c.CallbackPath), "/") {
		return fmt.Errorf("core: callback_path must start with /")
	}
	if c.AwaitTimeout < 0 {
		return fmt.Errorf("core: await_timeout must not be negative")
	}
	if c.TokenRequestTimeout < 0 {
		return fmt.Errorf("core: token_request_timeout must not be negative")
	}
	return nil
}
