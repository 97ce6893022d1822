package consent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	dErrors "loanflow/pkg/domain-errors"
)

// PostgresStore persists consent records. The schema carries a partial
// unique index on (subject_id, consent_type) WHERE revoked_at IS NULL, which
// is the authoritative cross-request idempotency guard.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Save(ctx context.Context, record Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO consent_records
		 (subject_id, consent_type, granted_at, expires_at, revoked_at, recorded_by)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		record.SubjectID, string(record.ConsentType), record.GrantedAt,
		nullableTime(record.ExpiresAt), record.RevokedAt, record.RecordedBy)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505: the partial unique index caught a concurrent duplicate grant.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return dErrors.New(dErrors.CodeConflict, "active consent already exists for subject and type")
		}
		return fmt.Errorf("insert consent record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subjectID string) ([]Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT subject_id, consent_type, granted_at, expires_at, revoked_at, recorded_by
		 FROM consent_records WHERE subject_id = $1 ORDER BY granted_at`,
		subjectID)
	if err != nil {
		return nil, fmt.Errorf("list consent records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			record      Record
			consentType string
			expiresAt   *time.Time
		)
		if err := rows.Scan(&record.SubjectID, &consentType, &record.GrantedAt,
			&expiresAt, &record.RevokedAt, &record.RecordedBy); err != nil {
			return nil, fmt.Errorf("scan consent record: %w", err)
		}
		record.ConsentType = ConsentType(consentType)
		if expiresAt != nil {
			record.ExpiresAt = *expiresAt
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Revoke(ctx context.Context, subjectID string, consentType ConsentType, revokedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE consent_records SET revoked_at = $1
		 WHERE subject_id = $2 AND consent_type = $3 AND revoked_at IS NULL`,
		revokedAt, subjectID, string(consentType))
	if err != nil {
		return fmt.Errorf("revoke consent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return dErrors.New(dErrors.CodeNotFound, "no active consent to revoke")
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
