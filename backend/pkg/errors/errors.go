package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeClassification represents question classification errors
	ErrorTypeClassification ErrorType = "classification"
	// ErrorTypeExtraction represents entity extraction errors
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeQueryGeneration represents Cypher generation errors
	ErrorTypeQueryGeneration ErrorType = "query_generation"
	// ErrorTypeQueryExecution represents Cypher execution errors
	ErrorTypeQueryExecution ErrorType = "query_execution"
	// ErrorTypeFormatting represents answer formatting errors
	ErrorTypeFormatting ErrorType = "formatting"
	// ErrorTypeGraph represents graph database connection errors
	ErrorTypeGraph ErrorType = "graph"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// ExecutionKind distinguishes why a query execution failed
type ExecutionKind string

const (
	// ExecutionKindSyntax marks a syntactically invalid query
	ExecutionKindSyntax ExecutionKind = "syntax"
	// ExecutionKindUnavailable marks a connectivity or timeout failure
	ExecutionKindUnavailable ExecutionKind = "unavailable"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Classification Errors

// ErrClassificationFailed is returned when the model output contains no valid
// question type. The pipeline recovers by defaulting to general_knowledge.
type ErrClassificationFailed struct {
	*BaseError
	Response string
}

func NewClassificationFailed(response string) *ErrClassificationFailed {
	return &ErrClassificationFailed{
		BaseError: NewBaseError(ErrorTypeClassification, "no valid question type in model response", nil),
		Response:  response,
	}
}

// Extraction Errors

// ErrExtractionFailed is returned when the entity extraction call fails.
// The pipeline recovers with an empty entity list.
type ErrExtractionFailed struct {
	*BaseError
}

func NewExtractionFailed(err error) *ErrExtractionFailed {
	return &ErrExtractionFailed{
		BaseError: NewBaseError(ErrorTypeExtraction, "entity extraction failed", err),
	}
}

// Query Generation Errors

// ErrQueryGenerationFailed is returned when a template cannot be reconciled
// with the live schema. The pipeline recovers by substitution or clause omission.
type ErrQueryGenerationFailed struct {
	*BaseError
	MissingElement string
}

func NewQueryGenerationFailed(missingElement string) *ErrQueryGenerationFailed {
	return &ErrQueryGenerationFailed{
		BaseError:      NewBaseError(ErrorTypeQueryGeneration, fmt.Sprintf("schema element not found: %s", missingElement), nil),
		MissingElement: missingElement,
	}
}

// Query Execution Errors

// ErrQueryExecutionFailed is returned when a Cypher query fails to run
type ErrQueryExecutionFailed struct {
	*BaseError
	Kind  ExecutionKind
	Query string
}

func NewQueryExecutionFailed(kind ExecutionKind, query string, err error) *ErrQueryExecutionFailed {
	return &ErrQueryExecutionFailed{
		BaseError: NewBaseError(ErrorTypeQueryExecution, fmt.Sprintf("query execution failed (%s)", kind), err),
		Kind:      kind,
		Query:     query,
	}
}

// Formatting Errors

// ErrFormattingFailed is returned when the answer formatting call fails.
// The pipeline recovers with a fixed fallback answer; this error never
// propagates past the workflow engine.
type ErrFormattingFailed struct {
	*BaseError
}

func NewFormattingFailed(err error) *ErrFormattingFailed {
	return &ErrFormattingFailed{
		BaseError: NewBaseError(ErrorTypeFormatting, "answer formatting failed", err),
	}
}

// Graph Errors

// ErrGraphConnectionFailed is returned when the Neo4j connection fails
type ErrGraphConnectionFailed struct {
	*BaseError
	URI string
}

func NewGraphConnectionFailed(uri string, err error) *ErrGraphConnectionFailed {
	return &ErrGraphConnectionFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("failed to connect to Neo4j: %s", uri), err),
		URI:       uri,
	}
}

// ErrForbiddenQuery is returned when a query contains mutating keywords
type ErrForbiddenQuery struct {
	*BaseError
	Keyword string
}

func NewForbiddenQuery(keyword string) *ErrForbiddenQuery {
	return &ErrForbiddenQuery{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("query contains forbidden keyword: %s", keyword), nil),
		Keyword:   keyword,
	}
}

// Config Errors

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	if baseErr, ok := err.(*BaseError); ok {
		return baseErr.Type == errType
	}
	if typed, ok := err.(interface{ Base() *BaseError }); ok {
		return typed.Base().Type == errType
	}
	if wrapped, ok := err.(interface{ Unwrap() error }); ok {
		if inner := wrapped.Unwrap(); inner != nil {
			return IsErrorType(inner, errType)
		}
	}
	return false
}

// Base exposes the embedded BaseError for type checks through embedding
func (e *BaseError) Base() *BaseError {
	return e
}

// ExecutionKindOf returns the execution failure kind, or "" for other errors
func ExecutionKindOf(err error) ExecutionKind {
	for err != nil {
		if execErr, ok := err.(*ErrQueryExecutionFailed); ok {
			return execErr.Kind
		}
		wrapped, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = wrapped.Unwrap()
	}
	return ""
}
