package repo

import (
	"context"
	"database/sql"
	"strings"

	"gymgate/internal/domain"
)

// MembershipCandidate is a membership joined with its discipline, as
// consumed by the resolution engine.
type MembershipCandidate struct {
	Membership domain.Membership
	Discipline domain.Discipline
}

const membershipColumns = `m.id,m.person_id,m.plan_id,m.discipline_id,m.remaining_credits,m.is_unlimited,m.status,m.expires_at,m.created_at`

func (r Repo) InsertMembership(ctx context.Context, m domain.Membership) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO memberships(id,person_id,plan_id,discipline_id,remaining_credits,is_unlimited,status,expires_at,created_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		m.ID, m.PersonID, m.PlanID, m.DisciplineID, m.RemainingCredits, boolInt(m.IsUnlimited), m.Status, m.ExpiresAt, m.CreatedAt)
	return err
}

func scanMembership(row *sql.Row) (domain.Membership, error) {
	var m domain.Membership
	var unlimited int
	err := row.Scan(&m.ID, &m.PersonID, &m.PlanID, &m.DisciplineID, &m.RemainingCredits, &unlimited, &m.Status, &m.ExpiresAt, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	m.IsUnlimited = unlimited != 0
	return m, err
}

func (r Repo) GetMembership(ctx context.Context, id string) (domain.Membership, error) {
	return scanMembership(r.DB.QueryRowContext(ctx, `SELECT `+membershipColumns+` FROM memberships m WHERE m.id=?`, id))
}

func (r Repo) GetMembershipTx(ctx context.Context, tx *sql.Tx, id string) (domain.Membership, error) {
	return scanMembership(tx.QueryRowContext(ctx, `SELECT `+membershipColumns+` FROM memberships m WHERE m.id=?`, id))
}

// ActiveMemberships returns ACTIVE, unexpired memberships for the person,
// each joined with its discipline. disciplineID narrows the search when
// non-empty. Expiry is compared against the caller's captured now so one
// resolution sees one consistent clock.
func (r Repo) ActiveMemberships(ctx context.Context, personID, now, disciplineID string) ([]MembershipCandidate, error) {
	clauses := []string{"m.person_id=?", "m.status=?", "m.expires_at>=?"}
	args := []any{personID, domain.MembershipActive, now}
	if disciplineID != "" {
		clauses = append(clauses, "m.discipline_id=?")
		args = append(args, disciplineID)
	}
	query := `SELECT ` + membershipColumns + `,d.id,d.name,d.requires_reservation
FROM memberships m
JOIN disciplines d ON d.id=m.discipline_id
WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY m.created_at ASC, m.id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []MembershipCandidate
	for rows.Next() {
		var mc MembershipCandidate
		var unlimited, requires int
		if err := rows.Scan(&mc.Membership.ID, &mc.Membership.PersonID, &mc.Membership.PlanID, &mc.Membership.DisciplineID,
			&mc.Membership.RemainingCredits, &unlimited, &mc.Membership.Status, &mc.Membership.ExpiresAt, &mc.Membership.CreatedAt,
			&mc.Discipline.ID, &mc.Discipline.Name, &requires); err != nil {
			return nil, err
		}
		mc.Membership.IsUnlimited = unlimited != 0
		mc.Discipline.RequiresReservation = requires != 0
		res = append(res, mc)
	}
	return res, rows.Err()
}

// CountMemberships reports whether the person holds any membership row at
// all, regardless of status. Used to pick between NO_ACTIVE_MEMBERSHIP and
// RESERVATION_REQUIRED denial wording.
func (r Repo) CountMemberships(ctx context.Context, personID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM memberships WHERE person_id=?`, personID).Scan(&n)
	return n, err
}

// DecrementCreditsTx spends one credit inside the commit transaction. The
// guard refuses unlimited memberships and a zero balance, so concurrent
// commits can never take the balance negative: the loser of the race
// affects zero rows.
func (r Repo) DecrementCreditsTx(ctx context.Context, tx *sql.Tx, membershipID string) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE memberships SET remaining_credits=remaining_credits-1 WHERE id=? AND is_unlimited=0 AND remaining_credits>0`,
		membershipID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r Repo) ListMembershipsForPerson(ctx context.Context, personID string) ([]MembershipCandidate, error) {
	query := `SELECT ` + membershipColumns + `,d.id,d.name,d.requires_reservation
FROM memberships m
JOIN disciplines d ON d.id=m.discipline_id
WHERE m.person_id=? ORDER BY m.created_at DESC, m.id DESC`
	rows, err := r.DB.QueryContext(ctx, query, personID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []MembershipCandidate
	for rows.Next() {
		var mc MembershipCandidate
		var unlimited, requires int
		if err := rows.Scan(&mc.Membership.ID, &mc.Membership.PersonID, &mc.Membership.PlanID, &mc.Membership.DisciplineID,
			&mc.Membership.RemainingCredits, &unlimited, &mc.Membership.Status, &mc.Membership.ExpiresAt, &mc.Membership.CreatedAt,
			&mc.Discipline.ID, &mc.Discipline.Name, &requires); err != nil {
			return nil, err
		}
		mc.Membership.IsUnlimited = unlimited != 0
		mc.Discipline.RequiresReservation = requires != 0
		res = append(res, mc)
	}
	return res, rows.Err()
}
