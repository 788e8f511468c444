// Package errors provides structured error handling for lanscan operations.
// It defines error codes, typed errors for each layer of the discovery engine,
// and helpers for inspecting codes on wrapped error chains.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeCanceled      ErrorCode = "CANCELED"
	CodePermission    ErrorCode = "PERMISSION"
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeConflict      ErrorCode = "CONFLICT"

	// Probe and discovery errors.
	CodeToolUnavailable ErrorCode = "TOOL_UNAVAILABLE"
	CodeNoResult        ErrorCode = "NO_RESULT"
	CodeHostUnreachable ErrorCode = "HOST_UNREACHABLE"
	CodeScanFailed      ErrorCode = "SCAN_FAILED"
	CodeDiscoveryFailed ErrorCode = "DISCOVERY_FAILED"
	CodeTargetInvalid   ErrorCode = "TARGET_INVALID"

	// Session errors.
	CodeAlreadyRunning ErrorCode = "ALREADY_RUNNING"
	CodeEmptyInput     ErrorCode = "EMPTY_INPUT"

	// Database errors.
	CodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION"
	CodeDatabaseQuery      ErrorCode = "DATABASE_QUERY"
	CodeDatabaseMigration  ErrorCode = "DATABASE_MIGRATION"

	// File system errors.
	CodeFileNotFound   ErrorCode = "FILE_NOT_FOUND"
	CodeFilePermission ErrorCode = "FILE_PERMISSION"
)

// coded is implemented by every error type in this package.
type coded interface {
	error
	ErrorCode() ErrorCode
}

// ScanError represents a failure of a single probe step against one host.
type ScanError struct {
	Code      ErrorCode
	Message   string
	Target    string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Operation != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Code, e.Operation, e.Message)
	}
	if e.Target != "" {
		msg += fmt.Sprintf(" (target: %s)", e.Target)
	}
	return msg
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// ErrorCode returns the error code.
func (e *ScanError) ErrorCode() ErrorCode {
	return e.Code
}

// NewScanError creates a probe error for a target and operation.
func NewScanError(code ErrorCode, operation, target, message string) *ScanError {
	return &ScanError{
		Code:      code,
		Message:   message,
		Target:    target,
		Operation: operation,
	}
}

// WrapScanError wraps an existing error as a probe error.
func WrapScanError(code ErrorCode, operation, target string, err error) *ScanError {
	msg := "operation failed"
	if err != nil {
		msg = err.Error()
	}
	return &ScanError{
		Code:      code,
		Message:   msg,
		Target:    target,
		Operation: operation,
		Cause:     err,
	}
}

// DiscoveryError represents a range-level discovery failure.
type DiscoveryError struct {
	Code    ErrorCode
	Message string
	Network string
	Method  string
	Cause   error
}

// Error implements the error interface.
func (e *DiscoveryError) Error() string {
	if e.Network != "" {
		return fmt.Sprintf("[%s] %s (network: %s)", e.Code, e.Message, e.Network)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *DiscoveryError) Unwrap() error {
	return e.Cause
}

// ErrorCode returns the error code.
func (e *DiscoveryError) ErrorCode() ErrorCode {
	return e.Code
}

// NewDiscoveryError creates a new discovery error.
func NewDiscoveryError(code ErrorCode, network, method, message string) *DiscoveryError {
	return &DiscoveryError{
		Code:    code,
		Message: message,
		Network: network,
		Method:  method,
	}
}

// WrapDiscoveryError wraps an existing error as a discovery error.
func WrapDiscoveryError(code ErrorCode, network, method string, err error) *DiscoveryError {
	msg := "discovery failed"
	if err != nil {
		msg = err.Error()
	}
	return &DiscoveryError{
		Code:    code,
		Message: msg,
		Network: network,
		Method:  method,
		Cause:   err,
	}
}

// SessionError represents a rejected session control request.
type SessionError struct {
	Code    ErrorCode
	Message string
	Input   string
	Cause   error
}

// Error implements the error interface.
func (e *SessionError) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("[%s] %s (input: %s)", e.Code, e.Message, e.Input)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *SessionError) Unwrap() error {
	return e.Cause
}

// ErrorCode returns the error code.
func (e *SessionError) ErrorCode() ErrorCode {
	return e.Code
}

// Is matches session errors by code so sentinel values work with errors.Is.
func (e *SessionError) Is(target error) bool {
	t, ok := target.(*SessionError)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Input == "" || t.Input == e.Input)
}

// NewSessionError creates a new session error.
func NewSessionError(code ErrorCode, message string) *SessionError {
	return &SessionError{Code: code, Message: message}
}

// DatabaseError represents database-related errors.
type DatabaseError struct {
	Code      ErrorCode
	Message   string
	Operation string
	Query     string
	Cause     error
}

// Error implements the error interface.
func (e *DatabaseError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s (operation: %s)", e.Code, e.Message, e.Operation)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *DatabaseError) Unwrap() error {
	return e.Cause
}

// ErrorCode returns the error code.
func (e *DatabaseError) ErrorCode() ErrorCode {
	return e.Code
}

// WithQuery adds the SQL query that caused the error.
func (e *DatabaseError) WithQuery(query string) *DatabaseError {
	e.Query = query
	return e
}

// NewDatabaseError creates a new database error.
func NewDatabaseError(code ErrorCode, message string) *DatabaseError {
	return &DatabaseError{Code: code, Message: message}
}

// WrapDatabaseError wraps an existing error as a database error.
func WrapDatabaseError(code ErrorCode, operation string, err error) *DatabaseError {
	return &DatabaseError{
		Code:      code,
		Message:   "database operation failed",
		Operation: operation,
		Cause:     err,
	}
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// ErrorCode returns the error code.
func (e *ConfigError) ErrorCode() ErrorCode {
	return e.Code
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Field:   field,
		Value:   value,
	}
}

// Utility functions for common error operations

// GetCode extracts the first error code found on the error chain.
func GetCode(err error) ErrorCode {
	var c coded
	if stderrors.As(err, &c) {
		return c.ErrorCode()
	}
	return CodeUnknown
}

// IsCode checks if an error chain carries a specific error code.
func IsCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	if GetCode(err) == code {
		return true
	}
	// Joined errors expose several branches.
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if IsCode(e, code) {
				return true
			}
		}
	}
	return false
}

// IsRetryable determines if an error indicates a retryable condition.
func IsRetryable(err error) bool {
	switch GetCode(err) {
	case CodeTimeout, CodeHostUnreachable, CodeDatabaseConnection:
		return true
	default:
		return false
	}
}

// Common error creation functions

// ErrInvalidTarget creates an error for an unparseable range or address.
func ErrInvalidTarget(target string) *SessionError {
	return &SessionError{
		Code:    CodeTargetInvalid,
		Message: "invalid network range",
		Input:   target,
	}
}

// ErrToolUnavailable creates an error for a missing external tool.
func ErrToolUnavailable(operation, tool string, err error) *ScanError {
	e := WrapScanError(CodeToolUnavailable, operation, "", err)
	e.Message = fmt.Sprintf("%s is not available", tool)
	return e
}

// ErrDiscoveryFailed creates an error for a failed bulk sweep.
func ErrDiscoveryFailed(network, method string, err error) *DiscoveryError {
	return WrapDiscoveryError(CodeDiscoveryFailed, network, method, err)
}

// ErrConfigInvalid creates an error for invalid configuration.
func ErrConfigInvalid(field string, value interface{}) *ConfigError {
	return NewConfigFieldError(CodeValidation, "invalid configuration value", field, value)
}
