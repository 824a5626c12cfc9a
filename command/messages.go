// Package command exposes the administrative surface of the
// synchroniser as go-command messages: triggering a run, managing
// product mappings, and adjusting the sync interval. HTTP or CLI
// transports sit on top of these handlers.
package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-catalog-sync/core"
)

const (
	TypeTriggerSync     = "catalogsync.command.run"
	TypeCreateMapping   = "catalogsync.command.mapping.create"
	TypeDeleteMapping   = "catalogsync.command.mapping.delete"
	TypeSetSyncInterval = "catalogsync.command.interval.set"
	TypeCreateUser      = "catalogsync.command.user.create"
	TypeChangePassword  = "catalogsync.command.user.password"
	TypeDeleteUser      = "catalogsync.command.user.delete"
)

type TriggerSyncMessage struct{}

func (TriggerSyncMessage) Type() string { return TypeTriggerSync }

func (TriggerSyncMessage) Validate() error { return nil }

type CreateMappingMessage struct {
	Input core.CreateMappingInput
}

func (CreateMappingMessage) Type() string { return TypeCreateMapping }

func (m CreateMappingMessage) Validate() error {
	if err := m.Input.Validate(); err != nil {
		return fmt.Errorf("command: %w", err)
	}
	return nil
}

type DeleteMappingMessage struct {
	MappingID string
}

func (DeleteMappingMessage) Type() string { return TypeDeleteMapping }

func (m DeleteMappingMessage) Validate() error {
	if strings.TrimSpace(m.MappingID) == "" {
		return commandInvalidInputError("command: mapping id is required")
	}
	return nil
}

type SetSyncIntervalMessage struct {
	IntervalMinutes int
}

func (SetSyncIntervalMessage) Type() string { return TypeSetSyncInterval }

func (m SetSyncIntervalMessage) Validate() error {
	if m.IntervalMinutes < 0 {
		return commandInvalidInputError("command: interval minutes must not be negative")
	}
	return nil
}

type CreateUserMessage struct {
	Username string
	Password string
}

func (CreateUserMessage) Type() string { return TypeCreateUser }

func (m CreateUserMessage) Validate() error {
	if strings.TrimSpace(m.Username) == "" {
		return commandInvalidInputError("command: username is required")
	}
	if len(m.Password) < 8 {
		return commandInvalidInputError("command: password must be at least 8 characters")
	}
	return nil
}

type ChangePasswordMessage struct {
	Username    string
	OldPassword string
	NewPassword string
}

func (ChangePasswordMessage) Type() string { return TypeChangePassword }

func (m ChangePasswordMessage) Validate() error {
	if strings.TrimSpace(m.Username) == "" {
		return commandInvalidInputError("command: username is required")
	}
	if m.OldPassword == "" {
		return commandInvalidInputError("command: old password is required")
	}
	if len(m.NewPassword) < 8 {
		return commandInvalidInputError("command: new password must be at least 8 characters")
	}
	return nil
}

type DeleteUserMessage struct {
	UserID string
}

func (DeleteUserMessage) Type() string { return TypeDeleteUser }

func (m DeleteUserMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return commandInvalidInputError("command: user id is required")
	}
	return nil
}
