package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-ticktick-auth/core"
)

const (
	TypeAuthorize   = "ticktick.command.authorize"
	TypeRefresh     = "ticktick.command.refresh"
	TypeEnsureFresh = "ticktick.command.ensure_fresh"
)

type AuthorizeMessage struct {
	Request core.AuthorizeRequest
}

func (AuthorizeMessage) Type() string { return TypeAuthorize }

func (m AuthorizeMessage) Validate() error {
	if strings.TrimSpace(m.Request.Deployment) == "" {
		return fmt.Errorf("command: deployment is required")
	}
	if m.Request.Source == nil {
		return fmt.Errorf("command: credential source is required")
	}
	return nil
}

type RefreshMessage struct{}

func (RefreshMessage) Type() string { return TypeRefresh }

func (RefreshMessage) Validate() error { return nil }

type EnsureFreshMessage struct {
	Options core.RefreshRunOptions
}

func (EnsureFreshMessage) Type() string { return TypeEnsureFresh }

func (m EnsureFreshMessage) Validate() error {
	if m.Options.MaxAttempts < 0 {
		return fmt.Errorf("command: max attempts must not be negative")
	}
	if m.Options.LeadWindow < 0 {
		return fmt.Errorf("command: lead window must not be negative")
	}
	return nil
}
