package engine

import (
	"time"

	"gymgate/internal/domain"
)

// Reason classifies why an admission attempt was denied. Denials are
// decision values, never errors crossing the engine boundary.
type Reason string

const (
	ReasonPersonNotFound            Reason = "PERSON_NOT_FOUND"
	ReasonTooEarly                  Reason = "TOO_EARLY"
	ReasonWindowClosed              Reason = "WINDOW_CLOSED"
	ReasonReservationRequired       Reason = "RESERVATION_REQUIRED"
	ReasonNoActiveMembership        Reason = "NO_ACTIVE_MEMBERSHIP"
	ReasonNoMembershipForDiscipline Reason = "NO_MEMBERSHIP_FOR_DISCIPLINE"
	ReasonNoCredits                 Reason = "NO_CREDITS"
	ReasonAlreadyConsumed           Reason = "ALREADY_CONSUMED"

	// ReasonInternalError never leaves the engine as a Decision.
	// Infrastructure failures travel up as Go errors and surface
	// through the transport error envelopes. The code exists so the
	// access log and SDK share one vocabulary for every outcome.
	ReasonInternalError Reason = "INTERNAL_ERROR"
)

type DecisionKind string

const (
	DecisionGranted           DecisionKind = "granted"
	DecisionSelectionRequired DecisionKind = "selection_required"
	DecisionDenied            DecisionKind = "denied"
)

const (
	EntitlementReservation  = "reservation"
	EntitlementDirectAccess = "direct_access"
)

// Entitlement is the unique thing a commit will consume: either an ACTIVE
// reservation (with its class) or a direct-access membership.
type Entitlement struct {
	Kind        string
	Person      domain.Person
	Discipline  domain.Discipline
	Reservation *domain.Reservation
	Class       *domain.Class
	Membership  *domain.Membership
}

// Option is one disambiguation choice offered when more than one
// entitlement is simultaneously valid. The follow-up call carries the
// option's DisciplineID.
type Option struct {
	Kind             string `json:"kind" enum:"reservation,direct_access"`
	DisciplineID     string `json:"discipline_id"`
	Label            string `json:"label"`
	Detail           string `json:"detail,omitempty"`
	ClassStartsAt    string `json:"class_starts_at,omitempty" format:"date-time"`
	RemainingCredits *int   `json:"remaining_credits,omitempty"`
}

// Denial carries the reason code plus the structured detail the formatter
// needs to render a message. WindowEarly is the configured early margin,
// set on temporal denials so the message states the real opening time.
type Denial struct {
	Reason      Reason
	Discipline  string
	ScheduledAt string
	WindowEarly time.Duration
}

// Grant is the committed outcome. RemainingCredits is the post-decrement
// balance, nil for unlimited memberships and reservation check-ins.
type Grant struct {
	Kind             string
	Person           domain.Person
	Discipline       domain.Discipline
	ClassName        string
	ClassStartsAt    string
	RemainingCredits *int
	AttendanceID     string
}

// Resolution is the read-only result of resolve: exactly one of the three
// fields is set. The unique entitlement still has to be committed.
type Resolution struct {
	Entitlement *Entitlement
	Options     []Option
	Denial      *Denial
}

// Decision is the engine's final answer for one check-in attempt.
type Decision struct {
	Kind    DecisionKind
	Grant   *Grant
	Options []Option
	Denial  *Denial
}

func granted(g Grant) Decision {
	return Decision{Kind: DecisionGranted, Grant: &g}
}

func selectionRequired(opts []Option) Decision {
	return Decision{Kind: DecisionSelectionRequired, Options: opts}
}

func denied(d Denial) Decision {
	return Decision{Kind: DecisionDenied, Denial: &d}
}
