package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Failure kinds surfaced by the receipt pipeline. Match with errors.Is.
var (
	ErrInputValidation = errors.New("input validation failed")
	ErrExternalService = errors.New("external service failed")
	ErrSchemaParse     = errors.New("extraction output is not valid JSON")
	ErrPersistence     = errors.New("persistence failed")
	ErrCleanup         = errors.New("cleanup failed")

	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
)

// AppError represents application-specific errors
type AppError struct {
	Kind    error
	Code    string
	Service string // set for ErrExternalService
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	prefix := e.Code
	if e.Service != "" {
		prefix += "[" + e.Service + "]"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) Is(target error) bool {
	return e.Kind != nil && e.Kind == target
}

func NewAppError(code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func NewInputValidationError(message string, cause error) *AppError {
	return &AppError{Kind: ErrInputValidation, Code: "INPUT_VALIDATION", Message: message, Cause: cause}
}

// NewExternalServiceError names the collaborator (OCR engine, extraction
// capability) that failed.
func NewExternalServiceError(service, message string, cause error) *AppError {
	return &AppError{Kind: ErrExternalService, Code: "EXTERNAL_SERVICE", Service: service, Message: message, Cause: cause}
}

func NewSchemaParseError(message string, cause error) *AppError {
	return &AppError{Kind: ErrSchemaParse, Code: "SCHEMA_PARSE", Message: message, Cause: cause}
}

func NewPersistenceError(message string, cause error) *AppError {
	return &AppError{Kind: ErrPersistence, Code: "PERSISTENCE", Message: message, Cause: cause}
}

func NewCleanupError(message string, cause error) *AppError {
	return &AppError{Kind: ErrCleanup, Code: "CLEANUP", Message: message, Cause: cause}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Kind: ErrNotFound, Code: "NOT_FOUND", Message: message}
}

// ServiceOf returns the failing service recorded on an external-service error.
func ServiceOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Service
	}
	return ""
}

// GRPCError maps a pipeline error onto a gRPC status.
func GRPCError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrInputValidation), errors.Is(err, ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrExternalService):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}
