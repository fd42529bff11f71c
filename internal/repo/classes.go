package repo

import (
	"context"
	"database/sql"
	"strings"

	"gymgate/internal/domain"
)

func (r Repo) InsertClass(ctx context.Context, c domain.Class) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO classes(id,discipline_id,name,starts_at,ends_at,capacity) VALUES (?,?,?,?,?,?)`,
		c.ID, c.DisciplineID, c.Name, c.StartsAt, c.EndsAt, c.Capacity)
	return err
}

func (r Repo) GetClass(ctx context.Context, id string) (domain.Class, error) {
	var c domain.Class
	err := r.DB.QueryRowContext(ctx, `SELECT id,discipline_id,name,starts_at,ends_at,capacity FROM classes WHERE id=?`, id).
		Scan(&c.ID, &c.DisciplineID, &c.Name, &c.StartsAt, &c.EndsAt, &c.Capacity)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

type ClassFilters struct {
	DisciplineID string
	From         string
	To           string
	Limit        int
}

func (r Repo) ListClasses(ctx context.Context, f ClassFilters) ([]domain.Class, error) {
	var clauses []string
	var args []any
	if f.DisciplineID != "" {
		clauses = append(clauses, "discipline_id=?")
		args = append(args, f.DisciplineID)
	}
	if f.From != "" {
		clauses = append(clauses, "starts_at>=?")
		args = append(args, f.From)
	}
	if f.To != "" {
		clauses = append(clauses, "starts_at<=?")
		args = append(args, f.To)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT id,discipline_id,name,starts_at,ends_at,capacity FROM classes ` + where + ` ORDER BY starts_at ASC, id ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Class
	for rows.Next() {
		var c domain.Class
		if err := rows.Scan(&c.ID, &c.DisciplineID, &c.Name, &c.StartsAt, &c.EndsAt, &c.Capacity); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// CountActiveReservations returns the number of ACTIVE reservations held
// against a class, used to enforce capacity at booking time.
func (r Repo) CountActiveReservations(ctx context.Context, classID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM reservations WHERE class_id=? AND status=?`, classID, domain.ReservationActive).Scan(&n)
	return n, err
}
