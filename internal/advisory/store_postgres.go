package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	id "loanflow/pkg/domain"
	dErrors "loanflow/pkg/domain-errors"
)

// PostgresStore persists scoring runs with an optimistic version column.
// Category scores are stored as an ordered jsonb array so replace-on-add
// semantics and insertion order survive the round-trip.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, advisory *CreditAdvisory) error {
	advisory.Version = 1
	scores, err := json.Marshal(advisory.Scores())
	if err != nil {
		return fmt.Errorf("marshal risk scores: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO credit_advisories
		 (id, application_id, status, generated_by, model_version, scores, red_flags,
		  overall_score, overall_rating, recommendation, conditions,
		  created_at, generated_at, failure_reason, version)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		advisory.ID.String(), advisory.ApplicationID.String(), string(advisory.Status),
		generatedByOrNil(advisory.GeneratedBy), advisory.ModelVersion, scores,
		advisory.RedFlags, advisory.OverallScore, string(advisory.OverallRating),
		string(advisory.Recommendation), advisory.Conditions,
		advisory.CreatedAt, advisory.GeneratedAt, advisory.FailureReason, advisory.Version)
	if err != nil {
		return fmt.Errorf("insert advisory: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, advisoryID id.AdvisoryID) (*CreditAdvisory, error) {
	row := s.pool.QueryRow(ctx, selectAdvisory+` WHERE id = $1`, advisoryID.String())
	return scanAdvisory(row)
}

// Update writes the run guarded by its version. A zero-row update means
// another writer got there first.
func (s *PostgresStore) Update(ctx context.Context, advisory *CreditAdvisory) error {
	scores, err := json.Marshal(advisory.Scores())
	if err != nil {
		return fmt.Errorf("marshal risk scores: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE credit_advisories SET
		   status = $1, scores = $2, red_flags = $3, overall_score = $4,
		   overall_rating = $5, recommendation = $6, conditions = $7,
		   generated_at = $8, failure_reason = $9, version = version + 1
		 WHERE id = $10 AND version = $11`,
		string(advisory.Status), scores, advisory.RedFlags, advisory.OverallScore,
		string(advisory.OverallRating), string(advisory.Recommendation), advisory.Conditions,
		advisory.GeneratedAt, advisory.FailureReason, advisory.ID.String(), advisory.Version)
	if err != nil {
		return fmt.Errorf("update advisory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return dErrors.New(dErrors.CodeConflict, "advisory was modified concurrently")
	}
	advisory.Version++
	return nil
}

func (s *PostgresStore) LatestByApplication(ctx context.Context, applicationID id.ApplicationID) (*CreditAdvisory, error) {
	row := s.pool.QueryRow(ctx,
		selectAdvisory+` WHERE application_id = $1 ORDER BY created_at DESC LIMIT 1`,
		applicationID.String())
	return scanAdvisory(row)
}

func (s *PostgresStore) ListByApplication(ctx context.Context, applicationID id.ApplicationID) ([]*CreditAdvisory, error) {
	rows, err := s.pool.Query(ctx,
		selectAdvisory+` WHERE application_id = $1 ORDER BY created_at DESC`,
		applicationID.String())
	if err != nil {
		return nil, fmt.Errorf("list advisories: %w", err)
	}
	defer rows.Close()

	var out []*CreditAdvisory
	for rows.Next() {
		advisory, err := scanAdvisory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, advisory)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "no advisories for application")
	}
	return out, nil
}

const selectAdvisory = `SELECT id, application_id, status, generated_by, model_version, scores, red_flags,
       overall_score, overall_rating, recommendation, conditions,
       created_at, generated_at, failure_reason, version
FROM credit_advisories`

func scanAdvisory(row pgx.Row) (*CreditAdvisory, error) {
	var (
		rawID, rawApp  string
		status, rating string
		recommendation string
		generatedBy    *string
		scores         []byte
		advisory       CreditAdvisory
	)
	err := row.Scan(&rawID, &rawApp, &status, &generatedBy, &advisory.ModelVersion,
		&scores, &advisory.RedFlags, &advisory.OverallScore, &rating, &recommendation,
		&advisory.Conditions, &advisory.CreatedAt, &advisory.GeneratedAt,
		&advisory.FailureReason, &advisory.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, "advisory not found")
		}
		return nil, fmt.Errorf("scan advisory: %w", err)
	}

	if advisory.ID, err = id.ParseAdvisoryID(rawID); err != nil {
		return nil, err
	}
	if advisory.ApplicationID, err = id.ParseApplicationID(rawApp); err != nil {
		return nil, err
	}
	advisory.Status = AdvisoryStatus(status)
	advisory.OverallRating = Rating(rating)
	advisory.Recommendation = Recommendation(recommendation)
	if generatedBy != nil {
		userID, err := id.ParseUserID(*generatedBy)
		if err != nil {
			return nil, err
		}
		advisory.GeneratedBy = userID
	}

	var parsed []RiskScore
	if err := json.Unmarshal(scores, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal risk scores: %w", err)
	}
	advisory.restoreScores(parsed)
	return &advisory, nil
}

func generatedByOrNil(userID id.UserID) *string {
	if userID.IsNil() {
		return nil
	}
	s := userID.String()
	return &s
}
