// Package verrors defines the typed error taxonomy used across the Venice
// cluster controller. Every error that crosses a component boundary
// (storage, coordinator, topic manager, mastership, lifecycle) is wrapped
// into a *Error carrying one of the Kind values below, so callers can
// branch on errors.As instead of matching strings.
package verrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for retry and response-mapping purposes.
type Kind string

const (
	// NotLeader is returned when an operation that requires mastership is
	// attempted on a non-leader node for the target cluster.
	NotLeader Kind = "not_leader"

	// NotFound is returned when a store, version, schema, or config
	// record does not exist.
	NotFound Kind = "not_found"

	// AlreadyExists is returned when a create operation targets a name
	// that is already in use.
	AlreadyExists Kind = "already_exists"

	// Conflict is returned when an operation would violate an invariant:
	// a failed compare-and-set, an incompatible schema, a rejected hybrid
	// transition.
	Conflict Kind = "conflict"

	// CoordinatorUnavailable is returned when the resource coordinator
	// backend cannot be reached or times out.
	CoordinatorUnavailable Kind = "coordinator_unavailable"

	// TopicManagerUnavailable is returned when the topic manager backend
	// cannot be reached or times out.
	TopicManagerUnavailable Kind = "topic_manager_unavailable"

	// MetadataUnavailable is returned when the metadata store backend
	// cannot be reached or a transaction fails for reasons unrelated to
	// the CAS contract.
	MetadataUnavailable Kind = "metadata_unavailable"

	// JoinTimeout is returned when a mastership controller fails to
	// establish leadership for a cluster within the configured timeout.
	JoinTimeout Kind = "join_timeout"

	// Fatal marks an error the caller must not retry under any
	// circumstances.
	Fatal Kind = "fatal"
)

// Error is the concrete error type produced by every Venice component.
type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "lifecycle.createStore".
	Op string
	// Tag optionally narrows Kind, e.g. "SchemaIncompatible" under Conflict.
	Tag string
	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Tag != "" {
		msg = fmt.Sprintf("%s[%s]", msg, e.Tag)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an *Error with the given kind and operation name, wrapping an
// underlying cause.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Tagged builds an *Error with a narrowing tag, e.g. Conflict tagged
// "SchemaIncompatible".
func Tagged(kind Kind, op, tag string, err error) *Error {
	return &Error{Kind: kind, Op: op, Tag: tag, Err: err}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind == kind
	}
	return false
}

// IsTagged reports whether err is a *Error of the given kind carrying the
// given narrowing tag. Callers use it to tell a lost compare-and-set
// ("VersionMismatch", worth retrying) apart from a semantic Conflict that
// would fail identically on every retry.
func IsTagged(err error, kind Kind, tag string) bool {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind == kind && ve.Tag == tag
	}
	return false
}

// Retryable reports whether the caller may reasonably retry the operation
// that produced err. Only backend connectivity errors are retryable; data
// invariant violations and NotFound are not, and neither is NotLeader —
// retrying against the same non-leader node can never succeed, the caller
// must re-resolve the leader through discovery instead.
func Retryable(err error) bool {
	var ve *Error
	if !errors.As(err, &ve) {
		return false
	}
	switch ve.Kind {
	case CoordinatorUnavailable, TopicManagerUnavailable, MetadataUnavailable:
		return true
	default:
		return false
	}
}
