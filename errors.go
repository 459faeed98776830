package flowgraph

import (
	stderrors "errors"
	"strings"

	apperrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeInvalidDocument = "INVALID_DOCUMENT"
	ErrCodeInvalidGraph    = "INVALID_GRAPH"
	ErrCodeUnknownNodeType = "UNKNOWN_NODE_TYPE"
	ErrCodeUnknownSlot     = "UNKNOWN_SLOT"
	ErrCodeFetchFailed     = "WORKFLOW_FETCH_FAILED"
	ErrCodeCatalogLoad     = "CATALOG_LOAD_FAILED"
	ErrCodeStore           = "STORE_FAILED"
	ErrCodeNotFound        = "NOT_FOUND"
)

var (
	ErrInvalidDocument = apperrors.New("invalid workflow document", apperrors.CategoryValidation).
				WithTextCode(ErrCodeInvalidDocument)
	ErrInvalidGraph = apperrors.New("invalid workflow graph", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeInvalidGraph)
	ErrUnknownNodeType = apperrors.New("unknown node type", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeUnknownNodeType)
	ErrUnknownSlot = apperrors.New("unknown slot", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeUnknownSlot)
	ErrFetchFailed = apperrors.New("workflow fetch failed", apperrors.CategoryExternal).
			WithTextCode(ErrCodeFetchFailed)
	ErrCatalogLoad = apperrors.New("node catalog load failed", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeCatalogLoad)
	ErrStore = apperrors.New("workflow store failure", apperrors.CategoryExternal).
			WithTextCode(ErrCodeStore)
	ErrNotFound = apperrors.New("not found", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeNotFound)
)

// NewError clones base and fills in message, source and metadata.
func NewError(base *apperrors.Error, message string, source error, metadata map[string]any) *apperrors.Error {
	if base == nil {
		base = ErrInvalidDocument
	}
	err := base.Clone()
	if text := strings.TrimSpace(message); text != "" {
		err.Message = text
	}
	if source != nil {
		err.Source = source
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// ErrorCode returns the text code carried by err, or "".
func ErrorCode(err error) string {
	var ge *apperrors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode
	}
	return ""
}

// IsNotFound reports whether err carries the not found code.
func IsNotFound(err error) bool {
	return ErrorCode(err) == ErrCodeNotFound
}
