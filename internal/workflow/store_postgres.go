package workflow

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

// PostgresDefinitionStore persists definitions with stages and transitions as
// jsonb; definitions are read whole, never partially.
type PostgresDefinitionStore struct {
	pool *pgxpool.Pool
}

func NewPostgresDefinitionStore(pool *pgxpool.Pool) *PostgresDefinitionStore {
	return &PostgresDefinitionStore{pool: pool}
}

func (s *PostgresDefinitionStore) Save(ctx context.Context, def *Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	stages, err := json.Marshal(def.Stages)
	if err != nil {
		return fmt.Errorf("marshal stages: %w", err)
	}
	transitions, err := json.Marshal(def.Transitions)
	if err != nil {
		return fmt.Errorf("marshal transitions: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save definition: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if def.IsActive {
		_, err = tx.Exec(ctx,
			`UPDATE workflow_definitions SET is_active = false
			 WHERE application_type = $1 AND id <> $2`,
			string(def.ApplicationType), def.ID.String())
		if err != nil {
			return fmt.Errorf("deactivate previous definition: %w", err)
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO workflow_definitions (id, name, application_type, version, is_active, stages, transitions)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET is_active = EXCLUDED.is_active`,
		def.ID.String(), def.Name, string(def.ApplicationType), def.Version, def.IsActive, stages, transitions)
	if err != nil {
		return fmt.Errorf("save definition: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresDefinitionStore) ActiveByType(ctx context.Context, appType id.ApplicationType) (*Definition, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, application_type, version, is_active, stages, transitions
		 FROM workflow_definitions
		 WHERE application_type = $1 AND is_active = true
		 ORDER BY version DESC LIMIT 1`,
		string(appType))
	return scanDefinition(row)
}

func (s *PostgresDefinitionStore) GetByID(ctx context.Context, defID id.DefinitionID) (*Definition, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, application_type, version, is_active, stages, transitions
		 FROM workflow_definitions WHERE id = $1`,
		defID.String())
	return scanDefinition(row)
}

func scanDefinition(row pgx.Row) (*Definition, error) {
	var (
		rawID, name, appType string
		version              int
		isActive             bool
		stages, transitions  []byte
	)
	if err := row.Scan(&rawID, &name, &appType, &version, &isActive, &stages, &transitions); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, "workflow definition not found")
		}
		return nil, fmt.Errorf("scan definition: %w", err)
	}

	defID, err := id.ParseDefinitionID(rawID)
	if err != nil {
		return nil, err
	}

	def := &Definition{
		ID:              defID,
		Name:            name,
		ApplicationType: id.ApplicationType(appType),
		Version:         version,
		IsActive:        isActive,
	}
	if err := json.Unmarshal(stages, &def.Stages); err != nil {
		return nil, fmt.Errorf("unmarshal stages: %w", err)
	}
	if err := json.Unmarshal(transitions, &def.Transitions); err != nil {
		return nil, fmt.Errorf("unmarshal transitions: %w", err)
	}
	return def, nil
}

// PostgresInstanceStore persists instances with an optimistic version column.
// History rows are append-only and written in the same transaction as the
// instance row they describe.
type PostgresInstanceStore struct {
	pool *pgxpool.Pool
}

func NewPostgresInstanceStore(pool *pgxpool.Pool) *PostgresInstanceStore {
	return &PostgresInstanceStore{pool: pool}
}

func (s *PostgresInstanceStore) Create(ctx context.Context, inst *Instance) error {
	inst.Version = 1
	_, err := s.pool.Exec(ctx,
		`INSERT INTO workflow_instances
		 (id, application_id, definition_id, current_status, current_stage_name,
		  assigned_role, assigned_to, assigned_at, entered_stage_at, sla_due_at,
		  escalation_level, is_completed, final_status, completed_at, version)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		inst.ID.String(), inst.ApplicationID.String(), inst.DefinitionID.String(),
		string(inst.CurrentStatus), inst.CurrentStageName, string(inst.AssignedRole),
		userIDOrNil(inst.AssignedTo), inst.AssignedAt, inst.EnteredCurrentStageAt,
		inst.SLADueAt, inst.EscalationLevel, inst.IsCompleted,
		string(inst.FinalStatus), inst.CompletedAt, inst.Version)
	if err != nil {
		return fmt.Errorf("insert workflow instance: %w", err)
	}
	return nil
}

func (s *PostgresInstanceStore) Get(ctx context.Context, instanceID id.InstanceID) (*Instance, error) {
	return s.getBy(ctx, "id = $1", instanceID.String())
}

func (s *PostgresInstanceStore) GetByApplication(ctx context.Context, applicationID id.ApplicationID) (*Instance, error) {
	return s.getBy(ctx, "application_id = $1", applicationID.String())
}

func (s *PostgresInstanceStore) getBy(ctx context.Context, where string, arg any) (*Instance, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, application_id, definition_id, current_status, current_stage_name,
		        assigned_role, assigned_to, assigned_at, entered_stage_at, sla_due_at,
		        escalation_level, is_completed, final_status, completed_at, version
		 FROM workflow_instances WHERE `+where, arg)

	inst, err := scanInstance(row)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT from_status, to_status, action, performed_by, performed_at, comment
		 FROM workflow_transition_logs WHERE instance_id = $1 ORDER BY seq`,
		inst.ID.String())
	if err != nil {
		return nil, fmt.Errorf("load transition history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entry       TransitionLog
			from, to    string
			action      string
			performedBy string
		)
		if err := rows.Scan(&from, &to, &action, &performedBy, &entry.PerformedAt, &entry.Comment); err != nil {
			return nil, fmt.Errorf("scan transition log: %w", err)
		}
		entry.FromStatus = Status(from)
		entry.ToStatus = Status(to)
		entry.Action = Action(action)
		if performedBy != "" {
			userID, err := id.ParseUserID(performedBy)
			if err != nil {
				return nil, err
			}
			entry.PerformedBy = userID
		}
		inst.History = append(inst.History, entry)
	}
	return inst, rows.Err()
}

func scanInstance(row pgx.Row) (*Instance, error) {
	var (
		rawID, rawApp, rawDef          string
		status, stageName, role, final string
		assignedTo                     *string
		inst                           Instance
	)
	err := row.Scan(&rawID, &rawApp, &rawDef, &status, &stageName, &role,
		&assignedTo, &inst.AssignedAt, &inst.EnteredCurrentStageAt, &inst.SLADueAt,
		&inst.EscalationLevel, &inst.IsCompleted, &final, &inst.CompletedAt, &inst.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, "workflow instance not found")
		}
		return nil, fmt.Errorf("scan workflow instance: %w", err)
	}

	if inst.ID, err = id.ParseInstanceID(rawID); err != nil {
		return nil, err
	}
	if inst.ApplicationID, err = id.ParseApplicationID(rawApp); err != nil {
		return nil, err
	}
	if inst.DefinitionID, err = id.ParseDefinitionID(rawDef); err != nil {
		return nil, err
	}
	inst.CurrentStatus = Status(status)
	inst.CurrentStageName = stageName
	inst.AssignedRole = id.Role(role)
	inst.FinalStatus = Status(final)
	if assignedTo != nil {
		userID, err := id.ParseUserID(*assignedTo)
		if err != nil {
			return nil, err
		}
		inst.AssignedTo = &userID
	}
	return &inst, nil
}

// Update writes the instance guarded by its version and appends any history
// entries beyond what is already persisted. A zero-row update means another
// writer got there first.
func (s *PostgresInstanceStore) Update(ctx context.Context, inst *Instance) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin instance update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE workflow_instances SET
		   current_status = $1, current_stage_name = $2, assigned_role = $3,
		   assigned_to = $4, assigned_at = $5, entered_stage_at = $6, sla_due_at = $7,
		   escalation_level = $8, is_completed = $9, final_status = $10,
		   completed_at = $11, version = version + 1
		 WHERE id = $12 AND version = $13`,
		string(inst.CurrentStatus), inst.CurrentStageName, string(inst.AssignedRole),
		userIDOrNil(inst.AssignedTo), inst.AssignedAt, inst.EnteredCurrentStageAt,
		inst.SLADueAt, inst.EscalationLevel, inst.IsCompleted, string(inst.FinalStatus),
		inst.CompletedAt, inst.ID.String(), inst.Version)
	if err != nil {
		return fmt.Errorf("update workflow instance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return dErrors.New(dErrors.CodeConflict, "workflow instance was modified concurrently")
	}

	var persisted int
	if err := tx.QueryRow(ctx,
		`SELECT count(*) FROM workflow_transition_logs WHERE instance_id = $1`,
		inst.ID.String()).Scan(&persisted); err != nil {
		return fmt.Errorf("count transition logs: %w", err)
	}

	for seq := persisted; seq < len(inst.History); seq++ {
		entry := inst.History[seq]
		_, err := tx.Exec(ctx,
			`INSERT INTO workflow_transition_logs
			 (instance_id, seq, from_status, to_status, action, performed_by, performed_at, comment)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			inst.ID.String(), seq, string(entry.FromStatus), string(entry.ToStatus),
			string(entry.Action), entry.PerformedBy.String(), entry.PerformedAt, entry.Comment)
		if err != nil {
			return fmt.Errorf("append transition log: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit instance update: %w", err)
	}
	inst.Version++
	return nil
}

func (s *PostgresInstanceStore) ListSLABreached(ctx context.Context, now time.Time, limit int) ([]*Instance, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM workflow_instances
		 WHERE is_completed = false AND sla_due_at IS NOT NULL AND sla_due_at <= $1
		 ORDER BY sla_due_at LIMIT $2`,
		now, limit)
	if err != nil {
		return nil, fmt.Errorf("list sla breached: %w", err)
	}
	defer rows.Close()

	var ids []id.InstanceID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan instance id: %w", err)
		}
		instanceID, err := id.ParseInstanceID(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, instanceID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*Instance, 0, len(ids))
	for _, instanceID := range ids {
		inst, err := s.Get(ctx, instanceID)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

func userIDOrNil(userID *id.UserID) *string {
	if userID == nil {
		return nil
	}
	s := userID.String()
	return &s
}
