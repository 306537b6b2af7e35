package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"

	"github.com/goliatone/go-whatsapp/core"
	"github.com/goliatone/go-whatsapp/webhook"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

// SubscribeUpdates wires a command handler to the update messages the
// webhook dispatcher forwards after running its own handlers.
func SubscribeUpdates(
	handler command.CommandFunc[webhook.UpdateMessage],
	runnerOpts ...runner.Option,
) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(handler, runnerOpts...)
}

func SubscribeCommand[T any](cmd command.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

// Bus exposes the go-command dispatcher behind the dispatcher's command
// boundary. Update messages keep their concrete type so subscriptions
// created through SubscribeUpdates receive them.
type Bus struct{}

func (Bus) Dispatch(ctx context.Context, msg any) error {
	if err := ValidateMessageContract(msg); err != nil {
		return err
	}
	switch typed := msg.(type) {
	case webhook.UpdateMessage:
		return commanddispatcher.Dispatch(ctx, typed)
	default:
		return commanddispatcher.Dispatch(ctx, msg)
	}
}

var _ core.CommandDispatcher = Bus{}
