package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gymgate/internal/audit"
	"gymgate/internal/config"
	"gymgate/internal/domain"
	"gymgate/internal/repo"
)

// Engine is the access resolution engine. Resolve is read-only; Commit is
// the only place that mutates state, inside one transaction per attempt.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) audit() audit.Writer {
	return audit.Writer{DB: e.DB, Now: e.now}
}

func (e Engine) window() Window {
	w := DefaultWindow()
	if e.Config != nil {
		if e.Config.CheckIn.EarlyMinutes > 0 {
			w.Early = e.Config.EarlyWindow()
		}
		if e.Config.CheckIn.LateMinutes > 0 {
			w.Late = e.Config.LateWindow()
		}
	}
	return w
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("stored timestamp %q: %w", s, err)
	}
	return t, nil
}

// CheckInOptions are the inputs for one admission attempt. DisciplineID is
// empty in the automatic kiosk flow and set in the manual flow or when
// completing a SelectionRequired round trip.
type CheckInOptions struct {
	PersonID       string
	DisciplineID   string
	CredentialHint string
}

// CheckIn resolves and, when the entitlement is unique, commits. Denials
// are recorded in the access log and returned as decisions; only
// infrastructure failures surface as errors.
func (e Engine) CheckIn(ctx context.Context, opts CheckInOptions) (Decision, error) {
	res, err := e.Resolve(ctx, opts.PersonID, opts.DisciplineID)
	if err != nil {
		return Decision{}, err
	}
	switch {
	case res.Denial != nil:
		if err := e.recordDenial(ctx, opts.PersonID, opts.CredentialHint, *res.Denial); err != nil {
			return Decision{}, err
		}
		return denied(*res.Denial), nil
	case len(res.Options) > 0:
		return selectionRequired(res.Options), nil
	default:
		return e.Commit(ctx, *res.Entitlement, opts.CredentialHint)
	}
}

// DenyUnresolved records and returns the decision for a credential that
// did not resolve to a person. Kept on the engine so every attempt,
// including malformed ones, lands in the access log.
func (e Engine) DenyUnresolved(ctx context.Context, credentialHint string) (Decision, error) {
	den := Denial{Reason: ReasonPersonNotFound}
	if err := e.audit().Record(ctx, audit.Entry{
		CredentialHint: credentialHint,
		Outcome:        audit.OutcomeDenied,
		Reason:         string(den.Reason),
	}); err != nil {
		return Decision{}, err
	}
	return denied(den), nil
}

func (e Engine) recordDenial(ctx context.Context, personID, hint string, den Denial) error {
	return e.audit().Record(ctx, audit.Entry{
		PersonID:       personID,
		CredentialHint: hint,
		Outcome:        audit.OutcomeDenied,
		Reason:         string(den.Reason),
		Discipline:     den.Discipline,
		Detail:         den.ScheduledAt,
	})
}

// Resolve determines which entitlement, if any, admits the person right
// now. It captures the clock once so the whole decision sees one instant,
// and never mutates anything.
func (e Engine) Resolve(ctx context.Context, personID, disciplineID string) (Resolution, error) {
	now := e.now().UTC()
	person, err := e.Repo.GetPerson(ctx, personID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Resolution{Denial: &Denial{Reason: ReasonPersonNotFound}}, nil
		}
		return Resolution{}, err
	}
	if disciplineID != "" {
		return e.resolveExplicit(ctx, now, person, disciplineID)
	}
	return e.resolveAutomatic(ctx, now, person)
}

// windowedReservations queries reservations whose class could be in the
// admission window and filters them against the exact boundaries. A class
// start s is admissible iff now ∈ [s-early, s+late], so the candidate
// range for s is [now-late, now+early].
func (e Engine) windowedReservations(ctx context.Context, now time.Time, personID, disciplineID string) ([]repo.ReservationCandidate, error) {
	w := e.window()
	cands, err := e.Repo.ActiveReservationsBetween(ctx, personID, fmtTime(now.Add(-w.Late)), fmtTime(now.Add(w.Early)), disciplineID)
	if err != nil {
		return nil, err
	}
	var matched []repo.ReservationCandidate
	for _, rc := range cands {
		starts, err := parseTime(rc.Class.StartsAt)
		if err != nil {
			return nil, err
		}
		if w.Contains(now, starts) {
			matched = append(matched, rc)
		}
	}
	return matched, nil
}

func (e Engine) resolveAutomatic(ctx context.Context, now time.Time, person domain.Person) (Resolution, error) {
	matched, err := e.windowedReservations(ctx, now, person.ID, "")
	if err != nil {
		return Resolution{}, err
	}
	if len(matched) == 1 {
		return Resolution{Entitlement: reservationEntitlement(person, matched[0])}, nil
	}
	if len(matched) > 1 {
		// Concurrent classes are never resolved by arbitrary order; the
		// person chooses.
		opts := make([]Option, 0, len(matched))
		for _, rc := range matched {
			opts = append(opts, reservationOption(rc))
		}
		return Resolution{Options: opts}, nil
	}

	mems, err := e.Repo.ActiveMemberships(ctx, person.ID, fmtTime(now), "")
	if err != nil {
		return Resolution{}, err
	}
	// Memberships whose discipline requires a reservation are unusable
	// here: step one found no booked class in the window.
	var usable, exhausted []repo.MembershipCandidate
	for _, mc := range mems {
		if mc.Discipline.RequiresReservation {
			continue
		}
		if mc.Membership.IsUnlimited || mc.Membership.RemainingCredits > 0 {
			usable = append(usable, mc)
		} else {
			exhausted = append(exhausted, mc)
		}
	}

	if len(usable) == 0 {
		den, err := e.outOfWindowDenial(ctx, now, person.ID)
		if err != nil {
			return Resolution{}, err
		}
		if den != nil {
			return Resolution{Denial: den}, nil
		}
		if len(exhausted) > 0 {
			return Resolution{Denial: &Denial{Reason: ReasonNoCredits, Discipline: exhausted[0].Discipline.Name}}, nil
		}
		total, err := e.Repo.CountMemberships(ctx, person.ID)
		if err != nil {
			return Resolution{}, err
		}
		if total > 0 {
			return Resolution{Denial: &Denial{Reason: ReasonReservationRequired}}, nil
		}
		return Resolution{Denial: &Denial{Reason: ReasonNoActiveMembership}}, nil
	}
	if len(usable) == 1 {
		return Resolution{Entitlement: directAccessEntitlement(person, usable[0])}, nil
	}
	opts := make([]Option, 0, len(usable))
	for _, mc := range usable {
		opts = append(opts, directAccessOption(mc))
	}
	return Resolution{Options: opts}, nil
}

// outOfWindowDenial looks for an ACTIVE reservation today whose class sits
// outside the admission window, to produce a precise temporal denial
// instead of a generic one. Returns nil when no such reservation exists.
func (e Engine) outOfWindowDenial(ctx context.Context, now time.Time, personID string) (*Denial, error) {
	w := e.window()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24*time.Hour - time.Second)
	cands, err := e.Repo.ActiveReservationsBetween(ctx, personID, fmtTime(dayStart), fmtTime(dayEnd), "")
	if err != nil {
		return nil, err
	}
	var upcoming, past *repo.ReservationCandidate
	for i := range cands {
		rc := cands[i]
		if !rc.Discipline.RequiresReservation {
			continue
		}
		starts, err := parseTime(rc.Class.StartsAt)
		if err != nil {
			return nil, err
		}
		if w.Contains(now, starts) {
			continue
		}
		if starts.After(now.Add(w.Late)) {
			if upcoming == nil {
				upcoming = &cands[i]
			}
		} else if starts.Before(now.Add(-w.Late)) {
			past = &cands[i]
		}
	}
	if upcoming != nil {
		return &Denial{
			Reason:      ReasonTooEarly,
			Discipline:  upcoming.Discipline.Name,
			ScheduledAt: upcoming.Class.StartsAt,
			WindowEarly: w.Early,
		}, nil
	}
	if past != nil {
		return &Denial{
			Reason:      ReasonWindowClosed,
			Discipline:  past.Discipline.Name,
			ScheduledAt: past.Class.StartsAt,
		}, nil
	}
	return nil, nil
}

func (e Engine) resolveExplicit(ctx context.Context, now time.Time, person domain.Person, disciplineID string) (Resolution, error) {
	disc, err := e.Repo.GetDiscipline(ctx, disciplineID)
	if err != nil {
		return Resolution{}, err
	}
	matched, err := e.windowedReservations(ctx, now, person.ID, disc.ID)
	if err != nil {
		return Resolution{}, err
	}
	if len(matched) > 0 {
		// Two in-window classes of the same discipline cannot be told
		// apart by another selection round; take the one starting first.
		return Resolution{Entitlement: reservationEntitlement(person, matched[0])}, nil
	}
	if disc.RequiresReservation {
		return Resolution{Denial: &Denial{Reason: ReasonReservationRequired, Discipline: disc.Name}}, nil
	}
	mems, err := e.Repo.ActiveMemberships(ctx, person.ID, fmtTime(now), disc.ID)
	if err != nil {
		return Resolution{}, err
	}
	if len(mems) == 0 {
		return Resolution{Denial: &Denial{Reason: ReasonNoMembershipForDiscipline, Discipline: disc.Name}}, nil
	}
	for _, mc := range mems {
		if mc.Membership.IsUnlimited || mc.Membership.RemainingCredits > 0 {
			return Resolution{Entitlement: directAccessEntitlement(person, mc)}, nil
		}
	}
	return Resolution{Denial: &Denial{Reason: ReasonNoCredits, Discipline: disc.Name}}, nil
}

func reservationEntitlement(person domain.Person, rc repo.ReservationCandidate) *Entitlement {
	res := rc.Reservation
	class := rc.Class
	return &Entitlement{
		Kind:        EntitlementReservation,
		Person:      person,
		Discipline:  rc.Discipline,
		Reservation: &res,
		Class:       &class,
	}
}

func directAccessEntitlement(person domain.Person, mc repo.MembershipCandidate) *Entitlement {
	m := mc.Membership
	return &Entitlement{
		Kind:       EntitlementDirectAccess,
		Person:     person,
		Discipline: mc.Discipline,
		Membership: &m,
	}
}
