package repo

import (
	"context"
	"database/sql"
	"strings"

	"gymgate/internal/domain"
)

// ReservationCandidate is a reservation joined with its class and the
// class's discipline, as consumed by the resolution engine.
type ReservationCandidate struct {
	Reservation domain.Reservation
	Class       domain.Class
	Discipline  domain.Discipline
}

const reservationCandidateColumns = `r.id,r.person_id,r.class_id,r.status,r.attended,r.created_at,
c.id,c.discipline_id,c.name,c.starts_at,c.ends_at,c.capacity,
d.id,d.name,d.requires_reservation`

func scanReservationCandidate(rows *sql.Rows) (ReservationCandidate, error) {
	var rc ReservationCandidate
	var attended, requires int
	err := rows.Scan(
		&rc.Reservation.ID, &rc.Reservation.PersonID, &rc.Reservation.ClassID, &rc.Reservation.Status, &attended, &rc.Reservation.CreatedAt,
		&rc.Class.ID, &rc.Class.DisciplineID, &rc.Class.Name, &rc.Class.StartsAt, &rc.Class.EndsAt, &rc.Class.Capacity,
		&rc.Discipline.ID, &rc.Discipline.Name, &requires,
	)
	rc.Reservation.Attended = attended != 0
	rc.Discipline.RequiresReservation = requires != 0
	return rc, err
}

// ActiveReservationsBetween returns ACTIVE, unattended reservations for the
// person whose class starts inside [from, to]. disciplineID narrows the
// search when non-empty.
func (r Repo) ActiveReservationsBetween(ctx context.Context, personID, from, to, disciplineID string) ([]ReservationCandidate, error) {
	clauses := []string{"r.person_id=?", "r.status=?", "r.attended=0", "c.starts_at>=?", "c.starts_at<=?"}
	args := []any{personID, domain.ReservationActive, from, to}
	if disciplineID != "" {
		clauses = append(clauses, "c.discipline_id=?")
		args = append(args, disciplineID)
	}
	query := `SELECT ` + reservationCandidateColumns + `
FROM reservations r
JOIN classes c ON c.id=r.class_id
JOIN disciplines d ON d.id=c.discipline_id
WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY c.starts_at ASC, r.id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ReservationCandidate
	for rows.Next() {
		rc, err := scanReservationCandidate(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rc)
	}
	return res, rows.Err()
}

func (r Repo) InsertReservation(ctx context.Context, res domain.Reservation) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO reservations(id,person_id,class_id,status,attended,created_at) VALUES (?,?,?,?,?,?)`,
		res.ID, res.PersonID, res.ClassID, res.Status, boolInt(res.Attended), res.CreatedAt)
	return err
}

func (r Repo) GetReservation(ctx context.Context, id string) (domain.Reservation, error) {
	var res domain.Reservation
	var attended int
	err := r.DB.QueryRowContext(ctx, `SELECT id,person_id,class_id,status,attended,created_at FROM reservations WHERE id=?`, id).
		Scan(&res.ID, &res.PersonID, &res.ClassID, &res.Status, &attended, &res.CreatedAt)
	if err == sql.ErrNoRows {
		return res, ErrNotFound
	}
	res.Attended = attended != 0
	return res, err
}

func (r Repo) ListReservationsForPerson(ctx context.Context, personID string) ([]ReservationCandidate, error) {
	query := `SELECT ` + reservationCandidateColumns + `
FROM reservations r
JOIN classes c ON c.id=r.class_id
JOIN disciplines d ON d.id=c.discipline_id
WHERE r.person_id=? ORDER BY c.starts_at DESC, r.id DESC`
	rows, err := r.DB.QueryContext(ctx, query, personID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ReservationCandidate
	for rows.Next() {
		rc, err := scanReservationCandidate(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rc)
	}
	return res, rows.Err()
}

// CancelReservation moves an ACTIVE reservation to CANCELLED. Attended
// reservations are immutable.
func (r Repo) CancelReservation(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE reservations SET status=? WHERE id=? AND status=?`,
		domain.ReservationCancelled, id, domain.ReservationActive)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAttendedTx flips an ACTIVE, unattended reservation to ATTENDED inside
// the commit transaction. The guard in the WHERE clause makes the consume
// at-most-once: a row already taken by a concurrent commit affects zero
// rows and the caller must fail closed.
func (r Repo) MarkAttendedTx(ctx context.Context, tx *sql.Tx, reservationID string) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE reservations SET status=?, attended=1 WHERE id=? AND status=? AND attended=0`,
		domain.ReservationAttended, reservationID, domain.ReservationActive)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
