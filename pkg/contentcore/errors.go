package contentcore

import (
	"errors"
	"fmt"
)

// Error kinds returned across the Provider boundary. Every business failure
// maps onto one of these so callers can translate them to transport
// responses without string matching.
var (
	// ErrNotFound indicates the requested content or asset does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied indicates the caller lacks the required capability.
	ErrAccessDenied = errors.New("access denied")

	// ErrNotImplemented indicates a provider legitimately lacks a capability
	// (e.g. versioning).
	ErrNotImplemented = errors.New("not implemented")

	// ErrInvalidFilter indicates a malformed or disallowed query operator.
	// It is raised by the orchestration layer before any provider is reached.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrInvalidLocale indicates a malformed locale tag.
	ErrInvalidLocale = errors.New("invalid locale")

	// ErrProviderInternal indicates a backend-specific failure such as a
	// network or storage fault.
	ErrProviderInternal = errors.New("provider internal error")

	// ErrProviderNotFound indicates the configured provider name is not
	// registered.
	ErrProviderNotFound = errors.New("content provider not found")
)

// ContentError wraps an error from a content operation with its context.
type ContentError struct {
	ContentType string
	ContentID   string
	Op          string
	Err         error
}

func (e *ContentError) Error() string {
	if e.ContentID == "" {
		return fmt.Sprintf("content operation %s failed for type %s: %v", e.Op, e.ContentType, e.Err)
	}
	return fmt.Sprintf("content operation %s failed for %s:%s: %v", e.Op, e.ContentType, e.ContentID, e.Err)
}

func (e *ContentError) Unwrap() error {
	return e.Err
}

// AssetError wraps an error from an asset operation.
type AssetError struct {
	AssetID string
	Op      string
	Err     error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("asset operation %s failed for asset %s: %v", e.Op, e.AssetID, e.Err)
}

func (e *AssetError) Unwrap() error {
	return e.Err
}
