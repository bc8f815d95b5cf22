// Package errs defines the typed error taxonomy for the entity resolution
// engine. Callers receive one of these types; translation to transport-level
// codes happens in the HTTP error middleware.
package errs

import (
	"errors"
	"fmt"
)

// NotFoundError indicates a missing entity or decision, or a fetched count
// that did not match the requested count.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// NewNotFound creates a NotFoundError for the given resource and id.
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// NewNotFoundf creates a NotFoundError with a formatted resource description.
func NewNotFoundf(format string, args ...any) *NotFoundError {
	return &NotFoundError{Resource: fmt.Sprintf(format, args...)}
}

// PolicyViolation indicates the actor lacks a clearance required by a
// classification label present on a participant entity.
type PolicyViolation struct {
	Label  string
	UserID string
}

func (e *PolicyViolation) Error() string {
	return fmt.Sprintf("user %q lacks clearance for label %q", e.UserID, e.Label)
}

// NewPolicyViolation creates a PolicyViolation for the given label and actor.
func NewPolicyViolation(label, userID string) *PolicyViolation {
	return &PolicyViolation{Label: label, UserID: userID}
}

// GuardrailFailure indicates the quality gate failed and no override reason
// was supplied.
type GuardrailFailure struct {
	DatasetID string
	Precision float64
	Recall    float64
}

func (e *GuardrailFailure) Error() string {
	return fmt.Sprintf("guardrail failed for dataset %q (precision=%.4f recall=%.4f) and no override reason was given",
		e.DatasetID, e.Precision, e.Recall)
}

// NewGuardrailFailure creates a GuardrailFailure carrying the measured metrics.
func NewGuardrailFailure(datasetID string, precision, recall float64) *GuardrailFailure {
	return &GuardrailFailure{DatasetID: datasetID, Precision: precision, Recall: recall}
}

// ConflictError indicates a requested entity is already mid-absorption: it no
// longer carried the Entity marker when re-verified inside the transaction.
type ConflictError struct {
	EntityID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("entity %q is no longer mergeable (concurrent merge in progress or already absorbed)", e.EntityID)
}

// NewConflict creates a ConflictError for the given entity.
func NewConflict(entityID string) *ConflictError {
	return &ConflictError{EntityID: entityID}
}

// TransactionFailure wraps an underlying graph transaction abort: database
// conflict, connectivity, or constraint violation. The transaction was rolled
// back and no partial state persists.
type TransactionFailure struct {
	Cause error
}

func (e *TransactionFailure) Error() string {
	return fmt.Sprintf("graph transaction failed: %v", e.Cause)
}

func (e *TransactionFailure) Unwrap() error {
	return e.Cause
}

// NewTransactionFailure wraps cause in a TransactionFailure.
func NewTransactionFailure(cause error) *TransactionFailure {
	return &TransactionFailure{Cause: cause}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var t *NotFoundError
	return errors.As(err, &t)
}

// IsPolicyViolation reports whether err is a PolicyViolation.
func IsPolicyViolation(err error) bool {
	var t *PolicyViolation
	return errors.As(err, &t)
}

// IsGuardrailFailure reports whether err is a GuardrailFailure.
func IsGuardrailFailure(err error) bool {
	var t *GuardrailFailure
	return errors.As(err, &t)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var t *ConflictError
	return errors.As(err, &t)
}
