package authz

import (
	"errors"
	"fmt"

	"github.com/platinummonkey/chefhub/pkg/identity"
)

// Operation is what an actor wants to do with a target
type Operation string

const (
	OpRead      Operation = "read"
	OpCreate    Operation = "create"
	OpUpdate    Operation = "update"
	OpPublish   Operation = "publish"
	OpArchive   Operation = "archive"
	OpReorder   Operation = "reorder"
	OpViewStats Operation = "view_stats"
	OpEnroll    Operation = "enroll"
)

// IsRead reports whether the operation only reads content
func (o Operation) IsRead() bool {
	return o == OpRead
}

// IsMutation reports whether the operation changes content
func (o Operation) IsMutation() bool {
	switch o {
	case OpCreate, OpUpdate, OpPublish, OpArchive, OpReorder:
		return true
	}
	return false
}

// Kind is the type of entity a target refers to
type Kind string

const (
	KindCourse Kind = "course"
	KindClass  Kind = "class"
	KindRecipe Kind = "recipe"
	KindBook   Kind = "book"
)

// Target holds the facts about an entity that a decision depends on.
// Callers resolve these facts; Decide never loads anything.
type Target struct {
	Kind Kind
	ID   string
	// OwnerID is the chef owning the entity or, for classes and recipes
	// reached through a course, the chef owning that course. Empty when
	// creating a new root entity.
	OwnerID   string
	Published bool
	Archived  bool
	// Gated marks content that requires an active enrollment in CourseID
	Gated    bool
	CourseID string
}

// Effect is the outcome of a decision
type Effect string

const (
	Allow Effect = "allow"
	Deny  Effect = "deny"
	// Gated means access depends on the enrollment ledger
	Gated Effect = "gated"
)

// Reason explains a decision
type Reason string

const (
	ReasonOwner              Reason = "owner"
	ReasonPublicRead         Reason = "public_read"
	ReasonRequiresEnrollment Reason = "requires_enrollment"
	ReasonEnrolled           Reason = "enrolled"
	ReasonPurchasable        Reason = "purchasable"
	ReasonNotOwner           Reason = "not_owner"
	ReasonNotPublished       Reason = "not_published"
	ReasonNotEnrolled        Reason = "not_enrolled"
	ReasonUnauthenticated    Reason = "unauthenticated"
	ReasonRoleNotPermitted   Reason = "role_not_permitted"
)

var (
	ErrNotOwner          = errors.New("not owner")
	ErrNotPublished      = errors.New("not published")
	ErrNotEnrolled       = errors.New("not enrolled")
	ErrUnauthenticated   = identity.ErrUnauthenticated
	ErrRoleNotPermitted  = errors.New("role not permitted")
	errUnexpectedPending = errors.New("decision still requires enrollment check")
)

// Decision is the result of Decide
type Decision struct {
	Effect Effect `json:"effect"`
	Reason Reason `json:"reason"`
}

// Allowed reports whether the decision grants access
func (d Decision) Allowed() bool {
	return d.Effect == Allow
}

// Err converts a non-allow decision into an error matching one of the
// package sentinels, or nil when allowed
func (d Decision) Err() error {
	switch d.Effect {
	case Allow:
		return nil
	case Gated:
		return errUnexpectedPending
	}
	switch d.Reason {
	case ReasonNotOwner:
		return ErrNotOwner
	case ReasonNotPublished:
		return ErrNotPublished
	case ReasonNotEnrolled:
		return ErrNotEnrolled
	case ReasonUnauthenticated:
		return ErrUnauthenticated
	case ReasonRoleNotPermitted:
		return ErrRoleNotPermitted
	}
	return fmt.Errorf("access denied: %s", d.Reason)
}

func allow(r Reason) Decision { return Decision{Effect: Allow, Reason: r} }
func deny(r Reason) Decision  { return Decision{Effect: Deny, Reason: r} }

// Decide evaluates the rules in order and returns the first match. It is
// deterministic and has no side effects.
func Decide(actor identity.Actor, op Operation, target Target) Decision {
	caps := CapabilitiesFor(actor)

	if actor.IsAnonymous() && !op.IsRead() {
		return deny(ReasonUnauthenticated)
	}

	if op == OpEnroll {
		return decideEnroll(caps, target)
	}

	// Creating a new top-level course, recipe or book has no owner yet
	if op == OpCreate && target.ID == "" {
		if caps.Has(CapOwnContentMutation) {
			return allow(ReasonOwner)
		}
		return deny(ReasonRoleNotPermitted)
	}

	if target.OwnerID != "" && actor.UserID == target.OwnerID && caps.Has(CapOwnContentMutation) {
		return allow(ReasonOwner)
	}

	if op.IsRead() && target.Published && !target.Archived {
		if !target.Gated {
			return allow(ReasonPublicRead)
		}
		if actor.IsAnonymous() {
			return deny(ReasonUnauthenticated)
		}
		if caps.Has(CapGatedRead) {
			return Decision{Effect: Gated, Reason: ReasonRequiresEnrollment}
		}
		return deny(ReasonRoleNotPermitted)
	}

	if op.IsRead() {
		return deny(ReasonNotPublished)
	}
	return deny(ReasonNotOwner)
}

func decideEnroll(caps Capabilities, target Target) Decision {
	if target.Kind != KindCourse {
		return deny(ReasonRoleNotPermitted)
	}
	if !caps.Has(CapPurchase) {
		return deny(ReasonRoleNotPermitted)
	}
	if !target.Published || target.Archived {
		return deny(ReasonNotPublished)
	}
	return allow(ReasonPurchasable)
}
