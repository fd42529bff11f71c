package engine

import (
	"fmt"
	"time"

	"gymgate/internal/repo"
)

// Message renders the user-facing text for a denial. Reason codes stay
// internal; the kiosk shows only this message.
func (d Denial) Message() string {
	switch d.Reason {
	case ReasonPersonNotFound:
		return "We could not identify you. Please see the front desk."
	case ReasonTooEarly:
		if d.WindowEarly > 0 {
			return fmt.Sprintf("Your %s class starts at %s. Check-in opens %d minutes before.", d.Discipline, clock(d.ScheduledAt), int(d.WindowEarly.Minutes()))
		}
		return fmt.Sprintf("Your %s class starts at %s. Check-in has not opened yet.", d.Discipline, clock(d.ScheduledAt))
	case ReasonWindowClosed:
		return fmt.Sprintf("Check-in for your %s class (%s) has closed.", d.Discipline, clock(d.ScheduledAt))
	case ReasonReservationRequired:
		if d.Discipline != "" {
			return fmt.Sprintf("%s requires a booked class. Please make a reservation first.", d.Discipline)
		}
		return "Your membership requires a booked class. Please make a reservation first."
	case ReasonNoActiveMembership:
		return "No active membership on file. Please see the front desk."
	case ReasonNoMembershipForDiscipline:
		return fmt.Sprintf("No membership covers %s. Please see the front desk.", d.Discipline)
	case ReasonNoCredits:
		return fmt.Sprintf("Your %s membership has no credits left.", d.Discipline)
	case ReasonAlreadyConsumed:
		return "This entry was already used. Please see the front desk."
	default:
		return "Something went wrong. Please see the front desk."
	}
}

func clock(rfc3339 string) string {
	t, err := time.Parse(time.RFC3339, rfc3339)
	if err != nil {
		return rfc3339
	}
	return t.Format("15:04")
}

func reservationOption(rc repo.ReservationCandidate) Option {
	return Option{
		Kind:          EntitlementReservation,
		DisciplineID:  rc.Discipline.ID,
		Label:         rc.Class.Name,
		Detail:        fmt.Sprintf("starts %s", clock(rc.Class.StartsAt)),
		ClassStartsAt: rc.Class.StartsAt,
	}
}

func directAccessOption(mc repo.MembershipCandidate) Option {
	opt := Option{
		Kind:         EntitlementDirectAccess,
		DisciplineID: mc.Discipline.ID,
		Label:        mc.Discipline.Name,
	}
	if mc.Membership.IsUnlimited {
		opt.Detail = "unlimited"
	} else {
		remaining := mc.Membership.RemainingCredits
		opt.RemainingCredits = &remaining
		opt.Detail = fmt.Sprintf("%d credits left", remaining)
	}
	return opt
}
