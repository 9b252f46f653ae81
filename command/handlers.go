package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-ticktick-auth/core"
)

type FlowService interface {
	Authorize(ctx context.Context, req core.AuthorizeRequest) (core.AuthorizeResult, error)
	Refresh(ctx context.Context) (core.TokenRecord, error)
	EnsureFresh(ctx context.Context, opts core.RefreshRunOptions) (core.RefreshRunResult, error)
}

type AuthorizeCommand struct {
	service FlowService
}

func NewAuthorizeCommand(service FlowService) *AuthorizeCommand {
	return &AuthorizeCommand{service: service}
}

func (c *AuthorizeCommand) Execute(ctx context.Context, msg AuthorizeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: authorize service is required")
	}
	out, err := c.service.Authorize(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RefreshCommand struct {
	service FlowService
}

func NewRefreshCommand(service FlowService) *RefreshCommand {
	return &RefreshCommand{service: service}
}

func (c *RefreshCommand) Execute(ctx context.Context, _ RefreshMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refresh service is required")
	}
	out, err := c.service.Refresh(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type EnsureFreshCommand struct {
	service FlowService
}

func NewEnsureFreshCommand(service FlowService) *EnsureFreshCommand {
	return &EnsureFreshCommand{service: service}
}

func (c *EnsureFreshCommand) Execute(ctx context.Context, msg EnsureFreshMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: ensure-fresh service is required")
	}
	out, err := c.service.EnsureFresh(ctx, msg.Options)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
