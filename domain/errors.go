package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransactionState is returned when a collection or object is
	// modified outside of a write transaction.
	ErrTransactionState = errors.New("cannot modify managed objects outside of a write transaction")
	// ErrInvalidInstance is returned when an adapter is built on, or used
	// with, a handle the engine no longer considers valid.
	ErrInvalidInstance = errors.New("access to invalidated collection")
	// ErrSessionClosed is returned by the engine when the session was
	// closed.
	ErrSessionClosed = errors.New("session is closed")
	// ErrNotInTransaction is returned when committing or cancelling without
	// an active write transaction.
	ErrNotInTransaction = errors.New("the session is not in a write transaction")
	// ErrObjectNotFound is returned when an object key or class does not
	// resolve to a live object.
	ErrObjectNotFound = errors.New("object not found")
	// ErrScanBeforeNext is returned when Results.Scan is called before
	// Results.Next.
	ErrScanBeforeNext = errors.New("scan called before next")
	// ErrResultsClosed is returned when closed results are used.
	ErrResultsClosed = errors.New("results closed")
	// ErrDispatcherClosed is returned when waiting on a closed dispatcher.
	ErrDispatcherClosed = errors.New("dispatcher closed")
)

// ErrSchema is returned when an object or property schema declaration is
// rejected during normalization or by the engine at open time.
type ErrSchema struct {
	ObjectType string
	Property   string
	Message    string
	// Err is the underlying cause, if any. It is printed when Message is
	// empty.
	Err error
}

func (e ErrSchema) Error() string {
	var b strings.Builder
	b.WriteString(e.ObjectType)
	if e.Property != "" {
		b.WriteString("#")
		b.WriteString(e.Property)
	}
	if b.Len() > 0 {
		b.WriteString(": ")
	}
	if e.Message != "" || e.Err == nil {
		b.WriteString(e.Message)
	} else {
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e ErrSchema) Unwrap() error { return e.Err }

// ErrConstructor is returned when a [Schemer] declaration cannot be used as an
// object schema constructor. It unwraps to [ErrSchema].
type ErrConstructor struct {
	Type    string
	Message string
}

func (e ErrConstructor) Error() string {
	return fmt.Sprintf("constructor %s: %s", e.Type, e.Message)
}

// Unwrap makes ErrConstructor match [ErrSchema] with errors.As.
func (e ErrConstructor) Unwrap() error {
	return ErrSchema{ObjectType: e.Type, Message: e.Message}
}

// ErrEngine wraps every failure raised by the storage engine while executing
// an operation. Adapters return it unchanged.
type ErrEngine struct {
	Op  string
	Err error
}

func (e ErrEngine) Error() string {
	return fmt.Sprintf("engine %s: %s", e.Op, e.Err)
}

func (e ErrEngine) Unwrap() error { return e.Err }

// ErrIndexOutOfRange is returned by the engine for list or result positions
// outside of [0, Size).
type ErrIndexOutOfRange struct {
	Index int
	Size  int
}

func (e ErrIndexOutOfRange) Error() string {
	return fmt.Sprintf("index %d out of range [0, %d)", e.Index, e.Size)
}

// ErrDuplicatePrimaryKey is returned when an object is created with a primary
// key already in use.
type ErrDuplicatePrimaryKey struct {
	ObjectType string
	Key        any
}

func (e ErrDuplicatePrimaryKey) Error() string {
	return fmt.Sprintf("attempting to create an object of type %q with an existing primary key value %v", e.ObjectType, e.Key)
}

// ErrValueType is returned when a value cannot be converted to the type
// declared for the property receiving it.
type ErrValueType struct {
	Property string
	Expected string
	Got      any
}

func (e ErrValueType) Error() string {
	if e.Property == "" {
		return fmt.Sprintf("expected value of type %s, got %T", e.Expected, e.Got)
	}
	return fmt.Sprintf("property %q: expected value of type %s, got %T", e.Property, e.Expected, e.Got)
}

// ErrCallback is delivered to the notification failure channel when a
// listener panics.
type ErrCallback struct {
	Value any
}

func (e ErrCallback) Error() string {
	return fmt.Sprintf("notification listener panicked: %v", e.Value)
}
