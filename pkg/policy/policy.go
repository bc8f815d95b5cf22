// Package policy implements label-based access control for entity resolution
// operations: classification labels on any participant entity must be covered
// by the acting user's clearance set.
package policy

import (
	"github.com/BrianCLong/summit-sub013/pkg/errs"
	"github.com/BrianCLong/summit-sub013/pkg/models"
)

// DefaultRestrictedLabels are the clearance-gated classification labels
// recognized out of the box.
var DefaultRestrictedLabels = []string{"TS_SCI", "TOP_SECRET", "SECRET", "NOFORN"}

// Authorizer checks a user's clearances against the classification labels of
// the entities named in a request.
type Authorizer struct {
	restricted map[string]bool
}

// NewAuthorizer creates an Authorizer gating the given labels. With no labels
// it falls back to DefaultRestrictedLabels.
func NewAuthorizer(restrictedLabels ...string) *Authorizer {
	if len(restrictedLabels) == 0 {
		restrictedLabels = DefaultRestrictedLabels
	}
	restricted := make(map[string]bool, len(restrictedLabels))
	for _, l := range restrictedLabels {
		restricted[l] = true
	}
	return &Authorizer{restricted: restricted}
}

// Authorize denies with a PolicyViolation when the union of labels across the
// given entities contains a clearance-gated label the actor does not hold.
// It is read-only and runs before any guardrail evaluation or transaction.
func (a *Authorizer) Authorize(user models.UserContext, entities []*models.Entity) error {
	for _, e := range entities {
		for _, label := range e.Labels {
			if a.restricted[label] && !user.HasClearance(label) {
				return errs.NewPolicyViolation(label, user.UserID)
			}
		}
	}
	return nil
}
