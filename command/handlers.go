package command

import (
	"context"
	"strconv"

	"github.com/goliatone/go-catalog-sync/core"
	gocmd "github.com/goliatone/go-command"
)

// Rescheduler is notified when the operator changes the sync interval so
// a running scheduler can pick up the new cadence without a restart.
type Rescheduler interface {
	Reschedule(ctx context.Context, intervalMinutes int) error
}

type TriggerSyncCommand struct {
	runner core.SyncRunner
}

func NewTriggerSyncCommand(runner core.SyncRunner) *TriggerSyncCommand {
	return &TriggerSyncCommand{runner: runner}
}

func (c *TriggerSyncCommand) Execute(ctx context.Context, msg TriggerSyncMessage) error {
	if c == nil || c.runner == nil {
		return commandDependencyError("command: sync runner is required")
	}
	out, err := c.runner.RunSynchronization(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateMappingCommand struct {
	mappings core.MappingStore
}

func NewCreateMappingCommand(mappings core.MappingStore) *CreateMappingCommand {
	return &CreateMappingCommand{mappings: mappings}
}

func (c *CreateMappingCommand) Execute(ctx context.Context, msg CreateMappingMessage) error {
	if c == nil || c.mappings == nil {
		return commandDependencyError("command: mapping store is required")
	}
	out, err := c.mappings.Create(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteMappingCommand struct {
	mappings core.MappingStore
}

func NewDeleteMappingCommand(mappings core.MappingStore) *DeleteMappingCommand {
	return &DeleteMappingCommand{mappings: mappings}
}

func (c *DeleteMappingCommand) Execute(ctx context.Context, msg DeleteMappingMessage) error {
	if c == nil || c.mappings == nil {
		return commandDependencyError("command: mapping store is required")
	}
	return c.mappings.Delete(ctx, msg.MappingID)
}

type SetSyncIntervalCommand struct {
	settings    core.SettingStore
	rescheduler Rescheduler
}

func NewSetSyncIntervalCommand(settings core.SettingStore, rescheduler Rescheduler) *SetSyncIntervalCommand {
	return &SetSyncIntervalCommand{
		settings:    settings,
		rescheduler: rescheduler,
	}
}

func (c *SetSyncIntervalCommand) Execute(ctx context.Context, msg SetSyncIntervalMessage) error {
	if c == nil || c.settings == nil {
		return commandDependencyError("command: setting store is required")
	}
	out, err := c.settings.Set(ctx, core.SettingSyncInterval, strconv.Itoa(msg.IntervalMinutes))
	if err != nil {
		return err
	}
	if c.rescheduler != nil {
		if err := c.rescheduler.Reschedule(ctx, msg.IntervalMinutes); err != nil {
			return err
		}
	}
	storeResult(ctx, out)
	return nil
}

type CreateUserCommand struct {
	users core.UserStore
}

func NewCreateUserCommand(users core.UserStore) *CreateUserCommand {
	return &CreateUserCommand{users: users}
}

func (c *CreateUserCommand) Execute(ctx context.Context, msg CreateUserMessage) error {
	if c == nil || c.users == nil {
		return commandDependencyError("command: user store is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	hash, err := HashPassword(msg.Password)
	if err != nil {
		return err
	}
	out, err := c.users.Create(ctx, core.CreateUserInput{
		Username:     msg.Username,
		PasswordHash: hash,
	})
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ChangePasswordCommand struct {
	users core.UserStore
}

func NewChangePasswordCommand(users core.UserStore) *ChangePasswordCommand {
	return &ChangePasswordCommand{users: users}
}

// Execute verifies the old password against the stored hash before
// accepting the new one; only the fresh bcrypt hash is persisted.
func (c *ChangePasswordCommand) Execute(ctx context.Context, msg ChangePasswordMessage) error {
	if c == nil || c.users == nil {
		return commandDependencyError("command: user store is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	user, err := c.users.GetByUsername(ctx, msg.Username)
	if err != nil {
		return err
	}
	if !VerifyPassword(user.PasswordHash, msg.OldPassword) {
		return commandInvalidInputError("command: incorrect old password")
	}
	hash, err := HashPassword(msg.NewPassword)
	if err != nil {
		return err
	}
	out, err := c.users.UpdatePassword(ctx, user.ID, hash)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteUserCommand struct {
	users core.UserStore
}

func NewDeleteUserCommand(users core.UserStore) *DeleteUserCommand {
	return &DeleteUserCommand{users: users}
}

func (c *DeleteUserCommand) Execute(ctx context.Context, msg DeleteUserMessage) error {
	if c == nil || c.users == nil {
		return commandDependencyError("command: user store is required")
	}
	return c.users.Delete(ctx, msg.UserID)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
