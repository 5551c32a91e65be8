package propval

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeSchema     ErrorType = "schema"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeStorage    ErrorType = "storage"
	ErrorTypeAsset      ErrorType = "asset"
	ErrorTypeInternal   ErrorType = "internal"
)

// Error codes
const (
	// Schema misconfiguration
	ErrCodeUnknownProperty   = "UNKNOWN_PROPERTY"
	ErrCodeResolverMissing   = "RESOLVER_MISSING"
	ErrCodeResolverFailed    = "RESOLVER_FAILED"
	ErrCodeNotObjectType     = "NOT_OBJECT_TYPE"
	ErrCodeSchemaInvalid     = "SCHEMA_INVALID"
	ErrCodeComponentNotFound = "COMPONENT_NOT_FOUND"

	// Values and documents
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeInvalidDocument  = "INVALID_DOCUMENT"
	ErrCodeInvalidPath      = "INVALID_PATH"

	// Instances and storage
	ErrCodeInstanceNotFound = "INSTANCE_NOT_FOUND"
	ErrCodeStorageFailed    = "STORAGE_FAILED"

	// Assets
	ErrCodeAssetNotFound = "ASSET_NOT_FOUND"
	ErrCodeAssetTooLarge = "ASSET_TOO_LARGE"
	ErrCodeAssetFailed   = "ASSET_FAILED"

	ErrCodeInternalError = "INTERNAL_ERROR"
)

// PropValError is the error type returned by schema, storage and asset operations.
type PropValError struct {
	Type     ErrorType      `json:"type"`
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Property string         `json:"property,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Cause    error          `json:"-"`
}

func (e *PropValError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = msg + ": " + e.Cause.Error()
	}
	if e.Property != "" {
		return fmt.Sprintf("[%s:%s] property '%s': %s", e.Type, e.Code, e.Property, msg)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, msg)
}

func (e *PropValError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a single detail
func (e *PropValError) WithDetail(key string, value any) *PropValError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause adds a cause
func (e *PropValError) WithCause(cause error) *PropValError {
	e.Cause = cause
	return e
}

// WithProperty adds property context
func (e *PropValError) WithProperty(propertyID string) *PropValError {
	e.Property = propertyID
	return e
}

// NewPropValError creates a new PropValError
func NewPropValError(errorType ErrorType, code, message string) *PropValError {
	return &PropValError{
		Type:    errorType,
		Code:    code,
		Message: message,
	}
}

// NewSchemaError creates a schema misconfiguration error. These indicate an
// inconsistent schema rather than a user mistake.
func NewSchemaError(code, message string) *PropValError {
	return NewPropValError(ErrorTypeSchema, code, message)
}

// NewUnknownPropertyError reports a property id absent from the schema scope.
func NewUnknownPropertyError(propertyID, scope string) *PropValError {
	return NewSchemaError(ErrCodeUnknownProperty, fmt.Sprintf("no such property in %s", scope)).
		WithProperty(propertyID)
}

// NewComponentNotFoundError creates a component not found error
func NewComponentNotFoundError(name string) *PropValError {
	return NewPropValError(ErrorTypeNotFound, ErrCodeComponentNotFound, "component not found").
		WithDetail("component", name)
}

// NewInstanceNotFoundError creates an instance not found error
func NewInstanceNotFoundError(id string) *PropValError {
	return NewPropValError(ErrorTypeNotFound, ErrCodeInstanceNotFound, "component instance not found").
		WithDetail("instance", id)
}

// NewValidationError creates a validation error
func NewValidationError(message string, cause error) *PropValError {
	return NewPropValError(ErrorTypeValidation, ErrCodeValidationFailed, message).WithCause(cause)
}

// NewStorageError creates a storage error
func NewStorageError(message string, cause error) *PropValError {
	return NewPropValError(ErrorTypeStorage, ErrCodeStorageFailed, message).WithCause(cause)
}

// NewAssetError creates an asset acquisition error
func NewAssetError(code, location string, cause error) *PropValError {
	return NewPropValError(ErrorTypeAsset, code, "asset acquisition failed").
		WithDetail("location", location).
		WithCause(cause)
}

// IsSchemaError checks if an error is a schema misconfiguration error
func IsSchemaError(err error) bool {
	return hasType(err, ErrorTypeSchema)
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return hasType(err, ErrorTypeNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return hasType(err, ErrorTypeValidation)
}

// IsAssetError checks if an error is an asset error
func IsAssetError(err error) bool {
	return hasType(err, ErrorTypeAsset)
}

func hasType(err error, t ErrorType) bool {
	var pve *PropValError
	if errors.As(err, &pve) {
		return pve.Type == t
	}
	return false
}
