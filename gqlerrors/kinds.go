package gqlerrors

import (
	"fmt"
	"strings"
)

// IntrospectionError is returned when a configured remote service could not be
// introspected. It's fatal at startup.
type IntrospectionError struct {
	Endpoint string
	Err      error
}

func (e *IntrospectionError) Error() string {
	return fmt.Sprintf("introspection of %s failed: %v", e.Endpoint, e.Err)
}

func (e *IntrospectionError) Unwrap() error { return e.Err }

func (e *IntrospectionError) Code() string { return IntrospectionFailed }

// SchemaConflictError is returned by the merger when two schemas declare
// something on the same type which can't be unified.
type SchemaConflictError struct {
	TypeName string
	// FieldName is empty for type level conflicts
	FieldName string
	// Owners lists schemas involved in collision in input order
	Owners []string
	Reason string
}

func (e *SchemaConflictError) Error() string {
	target := e.TypeName
	if e.FieldName != "" {
		target += "." + e.FieldName
	}
	return fmt.Sprintf("schema conflict on %s between [%s]: %s", target, strings.Join(e.Owners, ", "), e.Reason)
}

func (e *SchemaConflictError) Code() string { return SchemaConflict }

// DataAccessError wraps failures of the local persistent store.
type DataAccessError struct {
	Op  string
	Err error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("data access failed on %s: %v", e.Op, e.Err)
}

func (e *DataAccessError) Unwrap() error { return e.Err }

func (e *DataAccessError) Code() string { return DataAccessFailed }

// TransportError wraps failures of delegated calls to remote services.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Code() string { return TransportFailed }
