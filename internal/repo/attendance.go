package repo

import (
	"context"
	"database/sql"
	"strings"

	"gymgate/internal/domain"
)

func (r Repo) InsertAttendanceTx(ctx context.Context, tx *sql.Tx, a domain.Attendance) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO attendance(id,person_id,discipline_id,membership_id,reservation_id,kind,ts) VALUES (?,?,?,?,?,?,?)`,
		a.ID, a.PersonID, a.DisciplineID, nullableStringPtr(a.MembershipID), nullableStringPtr(a.ReservationID), a.Kind, a.TS)
	return err
}

type AttendanceFilters struct {
	PersonID     string
	DisciplineID string
	Kind         string
	Limit        int
}

func (r Repo) ListAttendance(ctx context.Context, f AttendanceFilters) ([]domain.Attendance, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.PersonID != "" {
		clauses = append(clauses, "person_id=?")
		args = append(args, f.PersonID)
	}
	if f.DisciplineID != "" {
		clauses = append(clauses, "discipline_id=?")
		args = append(args, f.DisciplineID)
	}
	if f.Kind != "" {
		clauses = append(clauses, "kind=?")
		args = append(args, f.Kind)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := `SELECT id,person_id,discipline_id,membership_id,reservation_id,kind,ts FROM attendance ` + where + ` ORDER BY ts DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Attendance
	for rows.Next() {
		var a domain.Attendance
		var membershipID, reservationID sql.NullString
		if err := rows.Scan(&a.ID, &a.PersonID, &a.DisciplineID, &membershipID, &reservationID, &a.Kind, &a.TS); err != nil {
			return nil, err
		}
		if membershipID.Valid {
			a.MembershipID = &membershipID.String
		}
		if reservationID.Valid {
			a.ReservationID = &reservationID.String
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// CountAttendanceForReservation guards double inserts in tests; attendance
// rows are append-only and written once per consumed reservation.
func (r Repo) CountAttendanceForReservation(ctx context.Context, reservationID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM attendance WHERE reservation_id=?`, reservationID).Scan(&n)
	return n, err
}

// LatestAccessLog returns access-log rows newest first, optionally starting
// below a cursor id.
func (r Repo) LatestAccessLog(ctx context.Context, limit int, cursor int64, personID string) ([]domain.AccessLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"1=1"}
	var args []any
	if personID != "" {
		clauses = append(clauses, "person_id=?")
		args = append(args, personID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := `SELECT id,ts,person_id,credential_hint,outcome,reason,discipline,detail FROM access_log ` + where + ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AccessLogEntry
	for rows.Next() {
		var e domain.AccessLogEntry
		var personID, hint, reason, discipline, detail sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &personID, &hint, &e.Outcome, &reason, &discipline, &detail); err != nil {
			return nil, err
		}
		if personID.Valid {
			e.PersonID = personID.String
		}
		if hint.Valid {
			e.CredentialHint = hint.String
		}
		if reason.Valid {
			e.Reason = reason.String
		}
		if discipline.Valid {
			e.Discipline = discipline.String
		}
		if detail.Valid {
			e.Detail = detail.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
