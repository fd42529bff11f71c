package server

import (
	"gymgate/internal/engine"
)

type CheckInRequest struct {
	Credential   string `json:"credential" example:"1042"`
	DisciplineID string `json:"discipline_id,omitempty"`
}

// CheckInResponse is the three-way outcome. Decision tags which of the
// optional sections is present.
type CheckInResponse struct {
	Decision string           `json:"decision" enum:"granted,selection_required,denied"`
	Grant    *GrantResponse   `json:"grant,omitempty"`
	Options  []engine.Option  `json:"options,omitempty"`
	Denial   *DenialResponse  `json:"denial,omitempty"`
}

type GrantResponse struct {
	PersonName       string `json:"person_name"`
	PhotoRef         string `json:"photo_ref,omitempty"`
	Discipline       string `json:"discipline"`
	EntitlementType  string `json:"entitlement_type" enum:"reservation,direct_access"`
	ClassName        string `json:"class_name,omitempty"`
	ClassStartsAt    string `json:"class_starts_at,omitempty" format:"date-time"`
	RemainingCredits *int   `json:"remaining_credits,omitempty"`
}

type DenialResponse struct {
	Reason      string `json:"reason"`
	Message     string `json:"message"`
	Discipline  string `json:"discipline,omitempty"`
	ScheduledAt string `json:"scheduled_at,omitempty" format:"date-time"`
}

// checkInResponse renders a Decision for callers. The switch is exhaustive
// over the decision kinds.
func checkInResponse(d engine.Decision) CheckInResponse {
	switch d.Kind {
	case engine.DecisionGranted:
		g := d.Grant
		return CheckInResponse{
			Decision: string(d.Kind),
			Grant: &GrantResponse{
				PersonName:       g.Person.Name,
				PhotoRef:         g.Person.PhotoRef,
				Discipline:       g.Discipline.Name,
				EntitlementType:  g.Kind,
				ClassName:        g.ClassName,
				ClassStartsAt:    g.ClassStartsAt,
				RemainingCredits: g.RemainingCredits,
			},
		}
	case engine.DecisionSelectionRequired:
		return CheckInResponse{
			Decision: string(d.Kind),
			Options:  d.Options,
		}
	case engine.DecisionDenied:
		den := d.Denial
		return CheckInResponse{
			Decision: string(d.Kind),
			Denial: &DenialResponse{
				Reason:      string(den.Reason),
				Message:     den.Message(),
				Discipline:  den.Discipline,
				ScheduledAt: den.ScheduledAt,
			},
		}
	default:
		return CheckInResponse{Decision: string(d.Kind)}
	}
}

type CreatePersonRequest struct {
	Name     string `json:"name"`
	Code     *int64 `json:"code,omitempty"`
	PhotoRef string `json:"photo_ref,omitempty"`
}

type CreateDisciplineRequest struct {
	Name                string `json:"name"`
	RequiresReservation bool   `json:"requires_reservation,omitempty"`
}

type CreatePlanRequest struct {
	Name         string `json:"name"`
	DisciplineID string `json:"discipline_id"`
	Credits      *int   `json:"credits,omitempty"`
	ValidDays    int    `json:"valid_days"`
}

type CreateClassRequest struct {
	DisciplineID string `json:"discipline_id"`
	Name         string `json:"name"`
	StartsAt     string `json:"starts_at" format:"date-time"`
	EndsAt       string `json:"ends_at" format:"date-time"`
	Capacity     int    `json:"capacity"`
}

type CreateReservationRequest struct {
	PersonID string `json:"person_id"`
	ClassID  string `json:"class_id"`
}

type CreateMembershipRequest struct {
	PersonID string `json:"person_id"`
	PlanID   string `json:"plan_id"`
}

type IssueTokenRequest struct {
	PersonID string `json:"person_id"`
}

type IssueTokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at" format:"date-time"`
}
