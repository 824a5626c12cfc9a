package catalog

import (
	"github.com/goliatone/go-catalog-sync/core"
	goerrors "github.com/goliatone/go-errors"
)

func catalogError(
	message string,
	category goerrors.Category,
	code int,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(catalogTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func catalogWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	metadata map[string]any,
) error {
	if source == nil {
		return catalogError(message, category, code, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(catalogTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func catalogTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return core.SyncErrorBadInput
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return core.SyncErrorConfigMissing
	case goerrors.CategoryOperation:
		return core.SyncErrorUpdateFailed
	case goerrors.CategoryExternal:
		return core.SyncErrorFetchFailed
	default:
		return core.SyncErrorInternal
	}
}
