package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Beacon store.
// It can be registered with the grove extension for orchestrated migration
// management (locking, version tracking, rollback support).
var Migrations = migrate.NewGroup("beacon")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_beacon_endpoints",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS beacon_endpoints (
    id                    TEXT PRIMARY KEY,
    url                   TEXT NOT NULL,
    description           TEXT NOT NULL DEFAULT '',
    method                TEXT NOT NULL DEFAULT 'POST',
    secret                TEXT NOT NULL DEFAULT '',
    event_types           TEXT[] NOT NULL DEFAULT '{}',
    filters               JSONB,
    headers               JSONB,
    timeout_ms            BIGINT NOT NULL DEFAULT 0,
    max_attempts          INTEGER NOT NULL DEFAULT 0,
    backoff_base_ms       BIGINT NOT NULL DEFAULT 0,
    rate_limit_per_minute INTEGER NOT NULL DEFAULT 0,
    active                BOOLEAN NOT NULL DEFAULT TRUE,
    total_deliveries      BIGINT NOT NULL DEFAULT 0,
    successful_deliveries BIGINT NOT NULL DEFAULT 0,
    failed_deliveries     BIGINT NOT NULL DEFAULT 0,
    last_attempt_at       TIMESTAMPTZ,
    last_success_at       TIMESTAMPTZ,
    metadata              JSONB,
    created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_beacon_endpoints_active ON beacon_endpoints (active);
CREATE INDEX IF NOT EXISTS idx_beacon_endpoints_event_types ON beacon_endpoints USING GIN (event_types);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS beacon_endpoints`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_beacon_events",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS beacon_events (
    id              TEXT PRIMARY KEY,
    type            TEXT NOT NULL,
    source_type     TEXT NOT NULL DEFAULT '',
    source_id       TEXT NOT NULL DEFAULT '',
    data            JSONB,
    metadata        JSONB,
    context         JSONB,
    idempotency_key TEXT NOT NULL DEFAULT '',
    occurred_at     TIMESTAMPTZ NOT NULL,
    processed       BOOLEAN NOT NULL DEFAULT FALSE,
    processed_at    TIMESTAMPTZ,
    delivery_count  INTEGER NOT NULL DEFAULT 0,
    success_count   INTEGER NOT NULL DEFAULT 0,
    failure_count   INTEGER NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_beacon_events_type_created ON beacon_events (type, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_beacon_events_created ON beacon_events (created_at DESC);
CREATE UNIQUE INDEX IF NOT EXISTS idx_beacon_events_idempotency ON beacon_events (idempotency_key) WHERE idempotency_key != '';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS beacon_events`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_beacon_deliveries",
			Version: "20260101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS beacon_deliveries (
    id               TEXT PRIMARY KEY,
    event_id         TEXT NOT NULL,
    event_type       TEXT NOT NULL DEFAULT '',
    endpoint_id      TEXT NOT NULL,
    state            TEXT NOT NULL DEFAULT 'pending',
    method           TEXT NOT NULL DEFAULT 'POST',
    url              TEXT NOT NULL DEFAULT '',
    request_headers  JSONB,
    request_body     JSONB,
    response_status  INTEGER NOT NULL DEFAULT 0,
    response_headers JSONB,
    response_body    TEXT NOT NULL DEFAULT '',
    latency_ms       BIGINT NOT NULL DEFAULT 0,
    attempt_number   INTEGER NOT NULL DEFAULT 0,
    max_attempts     INTEGER NOT NULL DEFAULT 0,
    next_retry_at    TIMESTAMPTZ,
    last_attempt_at  TIMESTAMPTZ,
    delivered_at     TIMESTAMPTZ,
    error            TEXT NOT NULL DEFAULT '',
    error_kind       TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_beacon_deliveries_retry ON beacon_deliveries (next_retry_at) WHERE state = 'retry';
CREATE INDEX IF NOT EXISTS idx_beacon_deliveries_endpoint ON beacon_deliveries (endpoint_id, state);
CREATE INDEX IF NOT EXISTS idx_beacon_deliveries_event ON beacon_deliveries (event_id);

CREATE TABLE IF NOT EXISTS beacon_attempts (
    id             TEXT PRIMARY KEY,
    delivery_id    TEXT NOT NULL REFERENCES beacon_deliveries (id) ON DELETE CASCADE,
    endpoint_id    TEXT NOT NULL DEFAULT '',
    attempt_number INTEGER NOT NULL,
    status_code    INTEGER NOT NULL DEFAULT 0,
    error          TEXT NOT NULL DEFAULT '',
    error_kind     TEXT NOT NULL DEFAULT '',
    latency_ms     BIGINT NOT NULL DEFAULT 0,
    attempted_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_beacon_attempts_delivery ON beacon_attempts (delivery_id, attempt_number);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS beacon_attempts;
DROP TABLE IF EXISTS beacon_deliveries;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_beacon_workflows",
			Version: "20260101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS beacon_workflows (
    id                 TEXT PRIMARY KEY,
    name               TEXT NOT NULL,
    description        TEXT NOT NULL DEFAULT '',
    steps              JSONB NOT NULL DEFAULT '[]',
    trigger_type       TEXT NOT NULL DEFAULT 'manual',
    trigger_event_type TEXT NOT NULL DEFAULT '',
    audience           JSONB,
    status             TEXT NOT NULL DEFAULT 'draft',
    activated_at       TIMESTAMPTZ,
    paused_at          TIMESTAMPTZ,
    completed_at       TIMESTAMPTZ,
    runs_started       BIGINT NOT NULL DEFAULT 0,
    runs_completed     BIGINT NOT NULL DEFAULT 0,
    runs_failed        BIGINT NOT NULL DEFAULT 0,
    runs_cancelled     BIGINT NOT NULL DEFAULT 0,
    metadata           JSONB,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_beacon_workflows_trigger ON beacon_workflows (trigger_event_type) WHERE status = 'active' AND trigger_type = 'event';
CREATE INDEX IF NOT EXISTS idx_beacon_workflows_status ON beacon_workflows (status, created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS beacon_workflows`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_beacon_runs",
			Version: "20260101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS beacon_runs (
    id             TEXT PRIMARY KEY,
    workflow_id    TEXT NOT NULL,
    subject_id     TEXT NOT NULL,
    current_step   INTEGER NOT NULL DEFAULT 0,
    variables      JSONB,
    status         TEXT NOT NULL DEFAULT 'started',
    trigger_source TEXT NOT NULL DEFAULT 'manual',
    event_id       TEXT NOT NULL DEFAULT '',
    started_at     TIMESTAMPTZ NOT NULL,
    completed_at   TIMESTAMPTZ,
    error          TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_beacon_runs_workflow ON beacon_runs (workflow_id, status);
CREATE INDEX IF NOT EXISTS idx_beacon_runs_subject ON beacon_runs (subject_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_beacon_runs_started ON beacon_runs (status) WHERE status = 'started';

CREATE TABLE IF NOT EXISTS beacon_step_logs (
    id          TEXT PRIMARY KEY,
    run_id      TEXT NOT NULL REFERENCES beacon_runs (id) ON DELETE CASCADE,
    step_index  INTEGER NOT NULL,
    kind        TEXT NOT NULL,
    name        TEXT NOT NULL DEFAULT '',
    outcome     TEXT NOT NULL,
    message     TEXT NOT NULL DEFAULT '',
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL,
    duration_ms BIGINT NOT NULL DEFAULT 0,
    input       JSONB,
    output      JSONB,
    branch_path TEXT NOT NULL DEFAULT '',
    error       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_beacon_step_logs_run ON beacon_step_logs (run_id, started_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS beacon_step_logs;
DROP TABLE IF EXISTS beacon_runs;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_beacon_subjects",
			Version: "20260101000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS beacon_subjects (
    id         TEXT PRIMARY KEY,
    fields     JSONB NOT NULL DEFAULT '{}',
    tags       TEXT[] NOT NULL DEFAULT '{}',
    score      DOUBLE PRECISION NOT NULL DEFAULT 0,
    segments   TEXT[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_beacon_subjects_segments ON beacon_subjects USING GIN (segments);

CREATE TABLE IF NOT EXISTS beacon_tasks (
    id          TEXT PRIMARY KEY,
    subject_id  TEXT NOT NULL,
    run_id      TEXT NOT NULL DEFAULT '',
    title       TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    assignee    TEXT NOT NULL DEFAULT '',
    due_at      TIMESTAMPTZ,
    done        BOOLEAN NOT NULL DEFAULT FALSE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_beacon_tasks_subject ON beacon_tasks (subject_id, created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS beacon_tasks;
DROP TABLE IF EXISTS beacon_subjects;
`)
				return err
			},
		},
	)
}
