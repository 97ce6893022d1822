package postgres

import (
	"context"
	"fmt"
)

// Migrate applies the schema idempotently. Intended for dev and test
// environments where running a migration tool is overkill; production
// deployments apply the same DDL through their own pipeline.
func Migrate(ctx context.Context, pool *Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS workflow_definitions (
		id               uuid PRIMARY KEY,
		name             text NOT NULL,
		application_type text NOT NULL,
		version          int  NOT NULL,
		is_active        boolean NOT NULL DEFAULT false,
		stages           jsonb NOT NULL,
		transitions      jsonb NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS workflow_definitions_active_idx
		ON workflow_definitions (application_type) WHERE is_active`,

	`CREATE TABLE IF NOT EXISTS workflow_instances (
		id                 uuid PRIMARY KEY,
		application_id     uuid NOT NULL UNIQUE,
		definition_id      uuid NOT NULL REFERENCES workflow_definitions (id),
		current_status     text NOT NULL,
		current_stage_name text NOT NULL,
		assigned_role      text NOT NULL,
		assigned_to        uuid,
		assigned_at        timestamptz,
		entered_stage_at   timestamptz NOT NULL,
		sla_due_at         timestamptz,
		escalation_level   int NOT NULL DEFAULT 0,
		is_completed       boolean NOT NULL DEFAULT false,
		final_status       text NOT NULL DEFAULT '',
		completed_at       timestamptz,
		version            bigint NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS workflow_instances_sla_idx
		ON workflow_instances (sla_due_at) WHERE NOT is_completed`,

	`CREATE TABLE IF NOT EXISTS workflow_transition_logs (
		instance_id  uuid NOT NULL REFERENCES workflow_instances (id),
		seq          int  NOT NULL,
		from_status  text NOT NULL,
		to_status    text NOT NULL,
		action       text NOT NULL,
		performed_by uuid NOT NULL,
		performed_at timestamptz NOT NULL,
		comment      text NOT NULL DEFAULT '',
		PRIMARY KEY (instance_id, seq)
	)`,

	`CREATE TABLE IF NOT EXISTS committee_reviews (
		id                     uuid PRIMARY KEY,
		application_id         uuid NOT NULL UNIQUE,
		committee_type         text NOT NULL,
		status                 text NOT NULL,
		required_votes         int  NOT NULL,
		minimum_approval_votes int  NOT NULL,
		deadline_at            timestamptz NOT NULL,
		final_decision         text NOT NULL DEFAULT '',
		decision_rationale     text NOT NULL DEFAULT '',
		decision_at            timestamptz,
		decided_by             uuid,
		terms                  jsonb NOT NULL,
		members                jsonb NOT NULL,
		comments               jsonb NOT NULL,
		created_at             timestamptz NOT NULL,
		version                bigint NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS committee_reviews_deadline_idx
		ON committee_reviews (deadline_at) WHERE status IN ('circulated', 'voting')`,

	`CREATE TABLE IF NOT EXISTS credit_advisories (
		id             uuid PRIMARY KEY,
		application_id uuid NOT NULL,
		status         text NOT NULL,
		generated_by   uuid,
		model_version  text NOT NULL,
		scores         jsonb NOT NULL,
		red_flags      text[] NOT NULL DEFAULT '{}',
		overall_score  double precision NOT NULL DEFAULT 0,
		overall_rating text NOT NULL DEFAULT '',
		recommendation text NOT NULL DEFAULT '',
		conditions     text[] NOT NULL DEFAULT '{}',
		created_at     timestamptz NOT NULL,
		generated_at   timestamptz NOT NULL,
		failure_reason text NOT NULL DEFAULT '',
		version        bigint NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS credit_advisories_app_idx
		ON credit_advisories (application_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS consent_records (
		id           bigserial PRIMARY KEY,
		subject_id   text NOT NULL,
		consent_type text NOT NULL,
		granted_at   timestamptz NOT NULL,
		expires_at   timestamptz,
		revoked_at   timestamptz,
		recorded_by  text NOT NULL DEFAULT ''
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS consent_records_active_idx
		ON consent_records (subject_id, consent_type) WHERE revoked_at IS NULL`,
}
