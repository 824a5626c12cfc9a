package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[TriggerSyncMessage]     = (*TriggerSyncCommand)(nil)
	_ gocmd.Commander[CreateMappingMessage]   = (*CreateMappingCommand)(nil)
	_ gocmd.Commander[DeleteMappingMessage]   = (*DeleteMappingCommand)(nil)
	_ gocmd.Commander[SetSyncIntervalMessage] = (*SetSyncIntervalCommand)(nil)
	_ gocmd.Commander[CreateUserMessage]      = (*CreateUserCommand)(nil)
	_ gocmd.Commander[ChangePasswordMessage]  = (*ChangePasswordCommand)(nil)
	_ gocmd.Commander[DeleteUserMessage]      = (*DeleteUserCommand)(nil)
)
