package committee

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	id "loanflow/pkg/domain"
	dErrors "loanflow/pkg/domain-errors"
)

// PostgresStore persists reviews with an optimistic version column. Members
// and comments live as jsonb on the review row: the aggregate is read and
// written whole, so a vote against a stale panel fails the version check
// instead of silently interleaving.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, review *Review) error {
	review.Version = 1
	members, comments, terms, err := marshalReview(review)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO committee_reviews
		 (id, application_id, committee_type, status, required_votes, minimum_approval_votes,
		  deadline_at, final_decision, decision_rationale, decision_at, decided_by,
		  terms, members, comments, created_at, version)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		review.ID.String(), review.ApplicationID.String(), string(review.CommitteeType),
		string(review.Status), review.RequiredVotes, review.MinimumApprovalVotes,
		review.DeadlineAt, string(review.FinalDecision), review.DecisionRationale,
		review.DecisionAt, decidedByOrNil(review.DecidedBy),
		terms, members, comments, review.CreatedAt, review.Version)
	if err != nil {
		return fmt.Errorf("insert committee review: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, reviewID id.ReviewID) (*Review, error) {
	return s.getBy(ctx, "id = $1", reviewID.String())
}

func (s *PostgresStore) GetByApplication(ctx context.Context, applicationID id.ApplicationID) (*Review, error) {
	return s.getBy(ctx, "application_id = $1", applicationID.String())
}

func (s *PostgresStore) getBy(ctx context.Context, where string, arg any) (*Review, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, application_id, committee_type, status, required_votes, minimum_approval_votes,
		        deadline_at, final_decision, decision_rationale, decision_at, decided_by,
		        terms, members, comments, created_at, version
		 FROM committee_reviews WHERE `+where, arg)
	return scanReview(row)
}

// Update writes the review guarded by its version. A zero-row update means
// another writer got there first.
func (s *PostgresStore) Update(ctx context.Context, review *Review) error {
	members, comments, terms, err := marshalReview(review)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE committee_reviews SET
		   status = $1, final_decision = $2, decision_rationale = $3, decision_at = $4,
		   decided_by = $5, terms = $6, members = $7, comments = $8, version = version + 1
		 WHERE id = $9 AND version = $10`,
		string(review.Status), string(review.FinalDecision), review.DecisionRationale,
		review.DecisionAt, decidedByOrNil(review.DecidedBy),
		terms, members, comments, review.ID.String(), review.Version)
	if err != nil {
		return fmt.Errorf("update committee review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return dErrors.New(dErrors.CodeConflict, "committee review was modified concurrently")
	}
	review.Version++
	return nil
}

func (s *PostgresStore) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*Review, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM committee_reviews
		 WHERE status IN ('circulated', 'voting') AND deadline_at < $1
		 ORDER BY deadline_at LIMIT $2`,
		now, limit)
	if err != nil {
		return nil, fmt.Errorf("list overdue reviews: %w", err)
	}
	defer rows.Close()

	var ids []id.ReviewID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan review id: %w", err)
		}
		reviewID, err := id.ParseReviewID(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, reviewID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*Review, 0, len(ids))
	for _, reviewID := range ids {
		review, err := s.Get(ctx, reviewID)
		if err != nil {
			return nil, err
		}
		out = append(out, review)
	}
	return out, nil
}

func marshalReview(review *Review) (members, comments, terms []byte, err error) {
	if members, err = json.Marshal(review.Members); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal members: %w", err)
	}
	if comments, err = json.Marshal(review.Comments); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal comments: %w", err)
	}
	if terms, err = json.Marshal(review.Terms); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal terms: %w", err)
	}
	return members, comments, terms, nil
}

func scanReview(row pgx.Row) (*Review, error) {
	var (
		rawID, rawApp            string
		committeeType, status    string
		finalDecision            string
		decidedBy                *string
		terms, members, comments []byte
		review                   Review
	)
	err := row.Scan(&rawID, &rawApp, &committeeType, &status,
		&review.RequiredVotes, &review.MinimumApprovalVotes, &review.DeadlineAt,
		&finalDecision, &review.DecisionRationale, &review.DecisionAt, &decidedBy,
		&terms, &members, &comments, &review.CreatedAt, &review.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, "committee review not found")
		}
		return nil, fmt.Errorf("scan committee review: %w", err)
	}

	if review.ID, err = id.ParseReviewID(rawID); err != nil {
		return nil, err
	}
	if review.ApplicationID, err = id.ParseApplicationID(rawApp); err != nil {
		return nil, err
	}
	review.CommitteeType = CommitteeType(committeeType)
	review.Status = ReviewStatus(status)
	review.FinalDecision = Decision(finalDecision)
	if decidedBy != nil {
		userID, err := id.ParseUserID(*decidedBy)
		if err != nil {
			return nil, err
		}
		review.DecidedBy = userID
	}
	if err := json.Unmarshal(terms, &review.Terms); err != nil {
		return nil, fmt.Errorf("unmarshal terms: %w", err)
	}
	if err := json.Unmarshal(members, &review.Members); err != nil {
		return nil, fmt.Errorf("unmarshal members: %w", err)
	}
	if err := json.Unmarshal(comments, &review.Comments); err != nil {
		return nil, fmt.Errorf("unmarshal comments: %w", err)
	}
	return &review, nil
}

func decidedByOrNil(userID id.UserID) *string {
	if userID.IsNil() {
		return nil
	}
	s := userID.String()
	return &s
}
