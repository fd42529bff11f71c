package audit

import (
	"context"
	"database/sql"
	"time"
)

const (
	OutcomeGranted = "granted"
	OutcomeDenied  = "denied"
)

// Writer appends access-log rows. Rows for granted check-ins are written
// inside the commit transaction so the audit trail and the consumed
// entitlement land atomically.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

// Entry is one admission attempt outcome.
type Entry struct {
	PersonID       string
	CredentialHint string
	Outcome        string
	Reason         string
	Discipline     string
	Detail         string
}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, e Entry) error {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	_, err := tx.ExecContext(ctx, `INSERT INTO access_log(ts,person_id,credential_hint,outcome,reason,discipline,detail) VALUES (?,?,?,?,?,?,?)`,
		ts, nullable(e.PersonID), nullable(e.CredentialHint), e.Outcome, nullable(e.Reason), nullable(e.Discipline), nullable(e.Detail))
	return err
}

// Record writes an entry in its own short transaction, for denial paths
// that never open a commit transaction.
func (w Writer) Record(ctx context.Context, e Entry) error {
	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := w.Append(ctx, tx, e); err != nil {
		return err
	}
	return tx.Commit()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
