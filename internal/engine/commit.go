package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"gymgate/internal/audit"
	"gymgate/internal/domain"
)

// Commit consumes the entitlement atomically: mark the reservation
// attended or spend one credit, insert the attendance fact, and append the
// access-log row, all in one transaction. The guarded updates make the
// consume at-most-once; losing a race yields a denial, never a double
// spend.
func (e Engine) Commit(ctx context.Context, ent Entitlement, credentialHint string) (Decision, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return Decision{}, err
	}
	defer tx.Rollback()

	ts := fmtTime(e.now())
	att := domain.Attendance{
		ID:           uuid.New().String(),
		PersonID:     ent.Person.ID,
		DisciplineID: ent.Discipline.ID,
		TS:           ts,
	}
	grant := Grant{
		Kind:       ent.Kind,
		Person:     ent.Person,
		Discipline: ent.Discipline,
	}
	var detail string

	switch ent.Kind {
	case EntitlementReservation:
		ok, err := e.Repo.MarkAttendedTx(ctx, tx, ent.Reservation.ID)
		if err != nil {
			return Decision{}, fmt.Errorf("mark attended: %w", err)
		}
		if !ok {
			// A concurrent or prior commit already took this reservation.
			tx.Rollback()
			return e.denyAtCommit(ctx, ent, credentialHint, ReasonAlreadyConsumed)
		}
		att.Kind = domain.AttendanceReservation
		att.ReservationID = &ent.Reservation.ID
		grant.ClassName = ent.Class.Name
		grant.ClassStartsAt = ent.Class.StartsAt
		detail = ent.Class.Name

	case EntitlementDirectAccess:
		m := ent.Membership
		att.Kind = domain.AttendanceDirectAccess
		att.MembershipID = &m.ID
		if m.IsUnlimited {
			detail = "unlimited"
		} else {
			ok, err := e.Repo.DecrementCreditsTx(ctx, tx, m.ID)
			if err != nil {
				return Decision{}, fmt.Errorf("decrement credits: %w", err)
			}
			if !ok {
				// Balance already spent between resolve and commit.
				tx.Rollback()
				return e.denyAtCommit(ctx, ent, credentialHint, ReasonNoCredits)
			}
			post, err := e.Repo.GetMembershipTx(ctx, tx, m.ID)
			if err != nil {
				return Decision{}, fmt.Errorf("read membership: %w", err)
			}
			remaining := post.RemainingCredits
			grant.RemainingCredits = &remaining
			detail = fmt.Sprintf("%d credits left", remaining)
		}

	default:
		return Decision{}, fmt.Errorf("unknown entitlement kind %q", ent.Kind)
	}

	if err := e.Repo.InsertAttendanceTx(ctx, tx, att); err != nil {
		return Decision{}, fmt.Errorf("insert attendance: %w", err)
	}
	if err := e.audit().Append(ctx, tx, audit.Entry{
		PersonID:       ent.Person.ID,
		CredentialHint: credentialHint,
		Outcome:        audit.OutcomeGranted,
		Discipline:     ent.Discipline.Name,
		Detail:         detail,
	}); err != nil {
		return Decision{}, fmt.Errorf("append access log: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Decision{}, err
	}
	grant.AttendanceID = att.ID
	return granted(grant), nil
}

func (e Engine) denyAtCommit(ctx context.Context, ent Entitlement, hint string, reason Reason) (Decision, error) {
	den := Denial{Reason: reason, Discipline: ent.Discipline.Name}
	if err := e.recordDenial(ctx, ent.Person.ID, hint, den); err != nil {
		return Decision{}, err
	}
	return denied(den), nil
}
