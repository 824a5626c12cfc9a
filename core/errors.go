package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	SyncErrorBadInput        = "SYNC_BAD_INPUT"
	SyncErrorConfigMissing   = "SYNC_CONFIG_MISSING"
	SyncErrorFetchFailed     = "SYNC_FETCH_FAILED"
	SyncErrorUpdateFailed    = "SYNC_UPDATE_FAILED"
	SyncErrorAuditIncomplete = "SYNC_AUDIT_INCOMPLETE"
	SyncErrorNotFound        = "SYNC_NOT_FOUND"
	SyncErrorRateLimited     = "SYNC_RATE_LIMITED"
	SyncErrorInternal        = "SYNC_INTERNAL_ERROR"
)

func syncErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureSyncErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "api key"):
		return newSyncError(err.Error(), goerrors.CategoryAuth, SyncErrorConfigMissing)
	case strings.Contains(msg, "fetch"):
		return newSyncError(err.Error(), goerrors.CategoryExternal, SyncErrorFetchFailed)
	case strings.Contains(msg, "not found"):
		return newSyncError(err.Error(), goerrors.CategoryNotFound, SyncErrorNotFound)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newSyncError(err.Error(), goerrors.CategoryBadInput, SyncErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureSyncErrorEnvelope(mapped)
}

func newSyncError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureSyncErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureSyncErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = syncHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultSyncTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultSyncTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return SyncErrorBadInput
	case goerrors.CategoryNotFound:
		return SyncErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return SyncErrorConfigMissing
	case goerrors.CategoryExternal:
		return SyncErrorFetchFailed
	case goerrors.CategoryOperation:
		return SyncErrorUpdateFailed
	case goerrors.CategoryRateLimit:
		return SyncErrorRateLimited
	default:
		return SyncErrorInternal
	}
}

func syncHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
