package repo

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"

	"gymgate/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (r Repo) InsertPerson(ctx context.Context, p domain.Person) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO persons(id,code,name,photo_ref,created_at) VALUES (?,?,?,?,?)`,
		p.ID, p.Code, p.Name, nullable(p.PhotoRef), p.CreatedAt)
	return err
}

func scanPerson(row *sql.Row) (domain.Person, error) {
	var p domain.Person
	var photo sql.NullString
	err := row.Scan(&p.ID, &p.Code, &p.Name, &photo, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if photo.Valid {
		p.PhotoRef = photo.String
	}
	return p, err
}

func (r Repo) GetPerson(ctx context.Context, id string) (domain.Person, error) {
	return scanPerson(r.DB.QueryRowContext(ctx, `SELECT id,code,name,photo_ref,created_at FROM persons WHERE id=?`, id))
}

func (r Repo) GetPersonByCode(ctx context.Context, code int64) (domain.Person, error) {
	return scanPerson(r.DB.QueryRowContext(ctx, `SELECT id,code,name,photo_ref,created_at FROM persons WHERE code=?`, code))
}

func (r Repo) ListPersons(ctx context.Context) ([]domain.Person, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,code,name,photo_ref,created_at FROM persons ORDER BY code ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Person
	for rows.Next() {
		var p domain.Person
		var photo sql.NullString
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &photo, &p.CreatedAt); err != nil {
			return nil, err
		}
		if photo.Valid {
			p.PhotoRef = photo.String
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) NextPersonCode(ctx context.Context) (int64, error) {
	var max sql.NullInt64
	if err := r.DB.QueryRowContext(ctx, `SELECT MAX(code) FROM persons`).Scan(&max); err != nil {
		return 0, err
	}
	if !max.Valid {
		return 1000, nil
	}
	return max.Int64 + 1, nil
}

func (r Repo) InsertDiscipline(ctx context.Context, d domain.Discipline) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO disciplines(id,name,requires_reservation) VALUES (?,?,?)`,
		d.ID, d.Name, boolInt(d.RequiresReservation))
	return err
}

// EnsureDiscipline inserts the discipline unless one with the name exists,
// and returns the stored record either way.
func (r Repo) EnsureDiscipline(ctx context.Context, d domain.Discipline) (domain.Discipline, error) {
	existing, err := r.GetDisciplineByName(ctx, d.Name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return domain.Discipline{}, err
	}
	if err := r.InsertDiscipline(ctx, d); err != nil {
		return domain.Discipline{}, err
	}
	return d, nil
}

func scanDiscipline(row *sql.Row) (domain.Discipline, error) {
	var d domain.Discipline
	var requires int
	err := row.Scan(&d.ID, &d.Name, &requires)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	d.RequiresReservation = requires != 0
	return d, err
}

func (r Repo) GetDiscipline(ctx context.Context, id string) (domain.Discipline, error) {
	return scanDiscipline(r.DB.QueryRowContext(ctx, `SELECT id,name,requires_reservation FROM disciplines WHERE id=?`, id))
}

func (r Repo) GetDisciplineByName(ctx context.Context, name string) (domain.Discipline, error) {
	return scanDiscipline(r.DB.QueryRowContext(ctx, `SELECT id,name,requires_reservation FROM disciplines WHERE name=?`, name))
}

func (r Repo) ListDisciplines(ctx context.Context) ([]domain.Discipline, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,requires_reservation FROM disciplines ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Discipline
	for rows.Next() {
		var d domain.Discipline
		var requires int
		if err := rows.Scan(&d.ID, &d.Name, &requires); err != nil {
			return nil, err
		}
		d.RequiresReservation = requires != 0
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r Repo) InsertPlan(ctx context.Context, p domain.Plan) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO plans(id,name,discipline_id,credits,valid_days) VALUES (?,?,?,?,?)`,
		p.ID, p.Name, p.DisciplineID, nullableIntPtr(p.Credits), p.ValidDays)
	return err
}

// EnsurePlan inserts the plan unless one with the same name and discipline
// exists, and returns the stored record either way.
func (r Repo) EnsurePlan(ctx context.Context, p domain.Plan) (domain.Plan, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,name,discipline_id,credits,valid_days FROM plans WHERE name=? AND discipline_id=?`, p.Name, p.DisciplineID)
	existing, err := scanPlan(row)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return domain.Plan{}, err
	}
	if err := r.InsertPlan(ctx, p); err != nil {
		return domain.Plan{}, err
	}
	return p, nil
}

func scanPlan(row *sql.Row) (domain.Plan, error) {
	var p domain.Plan
	var credits sql.NullInt64
	err := row.Scan(&p.ID, &p.Name, &p.DisciplineID, &credits, &p.ValidDays)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if credits.Valid {
		c := int(credits.Int64)
		p.Credits = &c
	}
	return p, err
}

func (r Repo) GetPlan(ctx context.Context, id string) (domain.Plan, error) {
	return scanPlan(r.DB.QueryRowContext(ctx, `SELECT id,name,discipline_id,credits,valid_days FROM plans WHERE id=?`, id))
}

func (r Repo) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,discipline_id,credits,valid_days FROM plans ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Plan
	for rows.Next() {
		var p domain.Plan
		var credits sql.NullInt64
		if err := rows.Scan(&p.ID, &p.Name, &p.DisciplineID, &credits, &p.ValidDays); err != nil {
			return nil, err
		}
		if credits.Valid {
			c := int(credits.Int64)
			p.Credits = &c
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// HashAPIKey returns the hex sha256 of a raw API key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func (r Repo) InsertAPIKey(ctx context.Context, k domain.APIKey) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO api_keys(id,name,key_hash,created_at) VALUES (?,?,?,?)`,
		k.ID, nullable(k.Name), k.KeyHash, k.CreatedAt)
	return err
}

func (r Repo) GetAPIKeyByHash(ctx context.Context, hash string) (domain.APIKey, error) {
	var k domain.APIKey
	var name sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,key_hash,created_at FROM api_keys WHERE key_hash=?`, hash).
		Scan(&k.ID, &name, &k.KeyHash, &k.CreatedAt)
	if err == sql.ErrNoRows {
		return k, ErrNotFound
	}
	if name.Valid {
		k.Name = name.String
	}
	return k, err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
