package gqlerrors

import (
	"errors"
	"strings"

	"github.com/samber/lo"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

const (
	ValidationFailedError = "GRAPHQL_VALIDATION_FAILED"
	UndefinedError        = "UNDEFINED_ERROR"
	IntrospectionFailed   = "INTROSPECTION_FAILED"
	SchemaConflict        = "SCHEMA_CONFLICT"
	DataAccessFailed      = "DATA_ACCESS_ERROR"
	TransportFailed       = "TRANSPORT_ERROR"
)

type Location struct {
	Line   int `json:"line,omitempty"`
	Column int `json:"column,omitempty"`
}

// Error represents a graphql error
type Error struct {
	Extensions map[string]interface{} `json:"extensions"`
	Message    string                 `json:"message"`
	Locations  []Location             `json:"locations,omitempty"`
	Path       []interface{}          `json:"path,omitempty"`

	cause error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Code returns extensions.code or UndefinedError if it's missing
func (e *Error) Code() string {
	if code, ok := e.Extensions["code"].(string); ok {
		return code
	}
	return UndefinedError
}

// WithPath returns a copy of the error pointing to the given response path
func (e *Error) WithPath(path ...interface{}) *Error {
	cpy := *e
	cpy.Path = path
	return &cpy
}

// NewError returns a graphql error with the given code and message
func NewError(code string, err error) *Error {
	return &Error{
		Message: err.Error(),
		Extensions: map[string]interface{}{
			"code": code,
		},
		cause: err,
	}
}

// ErrorList represents a list of errors
type ErrorList []*Error

// ExtendErrorList adds provided err as *Error
func ExtendErrorList(errs ErrorList, err error) ErrorList {
	return append(errs, FormatError(err)...)
}

// Error returns a string representation of each error
func (list ErrorList) Error() string {
	acc := make([]string, len(list))
	for i, err := range list {
		acc[i] = err.Error()
	}
	return strings.Join(acc, ". ")
}

// Unwrap lets errors.Is and errors.As look into every error of the list
func (list ErrorList) Unwrap() []error {
	return lo.Map(list, func(e *Error, _ int) error { return e })
}

// coded is implemented by the federation error kinds
type coded interface {
	error
	Code() string
}

// FormatError flattens err into graphql errors. Parser errors keep their
// locations and path, errors carrying a Code keep that code, anything else
// becomes UndefinedError.
func FormatError(err error) ErrorList {
	if err == nil {
		return nil
	}

	switch e := err.(type) {
	case ErrorList:
		var list ErrorList
		for _, innerErr := range e {
			list = append(list, FormatError(innerErr)...)
		}
		return list
	case *Error:
		return ErrorList{e}
	case *gqlerror.Error:
		return ErrorList{fromParserError(e)}
	case gqlerror.List:
		var list ErrorList
		for _, innerErr := range e {
			list = append(list, FormatError(innerErr)...)
		}
		return list
	default:
		var c coded
		if errors.As(err, &c) {
			return ErrorList{NewError(c.Code(), err)}
		}
		return ErrorList{
			NewError(UndefinedError, err),
		}
	}
}

func fromParserError(e *gqlerror.Error) *Error {
	var locations []Location
	for _, loc := range e.Locations {
		locations = append(locations, Location(loc))
	}

	var path []interface{}
	for _, el := range e.Path {
		switch el := el.(type) {
		case ast.PathIndex:
			path = append(path, int(el))
		case ast.PathName:
			path = append(path, string(el))
		}
	}

	ext := e.Extensions
	if len(ext) == 0 {
		ext = map[string]interface{}{"code": UndefinedError}
	}

	return &Error{
		Extensions: ext,
		Message:    e.Message,
		Locations:  locations,
		Path:       path,
		cause:      e,
	}
}
