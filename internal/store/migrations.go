package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS agents (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL UNIQUE COLLATE NOCASE,
	active     INTEGER NOT NULL DEFAULT 1 CHECK(active IN (0, 1)),
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS clients (
	tax_id     TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	portfolio  TEXT NOT NULL DEFAULT '',
	owner_id   TEXT REFERENCES agents(id) ON DELETE SET NULL,
	active     INTEGER NOT NULL DEFAULT 1 CHECK(active IN (0, 1)),
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_clients_portfolio ON clients(portfolio);
CREATE INDEX IF NOT EXISTS idx_clients_owner_id ON clients(owner_id);

CREATE TABLE IF NOT EXISTS task_templates (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	department       TEXT NOT NULL,
	name             TEXT NOT NULL,
	name_key         TEXT NOT NULL UNIQUE,
	frequency        TEXT NOT NULL CHECK(frequency IN ('MONTHLY', 'WEEKLY', 'ONE_OFF')),
	day_of_month     INTEGER CHECK(day_of_month IS NULL OR day_of_month BETWEEN 1 AND 31),
	weekday          INTEGER CHECK(weekday IS NULL OR weekday BETWEEN 1 AND 7),
	audience         TEXT NOT NULL DEFAULT 'client-facing' CHECK(audience IN ('client-facing', 'internal')),
	default_owner_id TEXT REFERENCES agents(id) ON DELETE SET NULL,
	requires_folder  INTEGER NOT NULL DEFAULT 0 CHECK(requires_folder IN (0, 1)),
	document_code    TEXT NOT NULL DEFAULT '',
	detail           TEXT NOT NULL DEFAULT '',
	active           INTEGER NOT NULL DEFAULT 1 CHECK(active IN (0, 1)),
	created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	CHECK(frequency != 'MONTHLY' OR day_of_month IS NOT NULL),
	CHECK(frequency != 'WEEKLY' OR weekday IS NOT NULL)
);

CREATE INDEX IF NOT EXISTS idx_task_templates_department ON task_templates(department, active);

CREATE TABLE IF NOT EXISTS client_exclusions (
	id             TEXT PRIMARY KEY,
	client_tax_id  TEXT NOT NULL REFERENCES clients(tax_id) ON DELETE CASCADE,
	template_id    INTEGER NOT NULL REFERENCES task_templates(id) ON DELETE CASCADE,
	is_excluded    INTEGER NOT NULL CHECK(is_excluded IN (0, 1)),
	effective_from TEXT,
	reason         TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(client_tax_id, template_id)
);

CREATE INDEX IF NOT EXISTS idx_client_exclusions_template_id ON client_exclusions(template_id);

CREATE TABLE IF NOT EXISTS assigned_tasks (
	id            TEXT PRIMARY KEY,
	template_id   INTEGER NOT NULL REFERENCES task_templates(id),
	client_tax_id TEXT NOT NULL REFERENCES clients(tax_id),
	owner_id      TEXT REFERENCES agents(id) ON DELETE SET NULL,
	due_date      TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'PENDING'
		CHECK(status IN ('PENDING', 'IN_PROGRESS', 'COMPLETED', 'NOT_APPLICABLE')),
	completed_at  DATETIME,
	note          TEXT NOT NULL DEFAULT '',
	folder_ref    TEXT,
	origin        TEXT NOT NULL DEFAULT 'generator',
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Duplicate suppression for every generation path relies on this index.
CREATE UNIQUE INDEX IF NOT EXISTS uq_assigned_tasks_template_client_due
	ON assigned_tasks(template_id, client_tax_id, due_date);

CREATE INDEX IF NOT EXISTS idx_assigned_tasks_client ON assigned_tasks(client_tax_id);
CREATE INDEX IF NOT EXISTS idx_assigned_tasks_due_date ON assigned_tasks(due_date);
CREATE INDEX IF NOT EXISTS idx_assigned_tasks_status ON assigned_tasks(status);
CREATE INDEX IF NOT EXISTS idx_assigned_tasks_owner ON assigned_tasks(owner_id);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS import_runs (
	id             TEXT PRIMARY KEY,
	started_at     DATETIME NOT NULL,
	finished_at    DATETIME NOT NULL,
	rows_total     INTEGER NOT NULL DEFAULT 0,
	rows_invalid   INTEGER NOT NULL DEFAULT 0,
	tasks_created  INTEGER NOT NULL DEFAULT 0,
	tasks_skipped  INTEGER NOT NULL DEFAULT 0,
	ok             INTEGER NOT NULL DEFAULT 0 CHECK(ok IN (0, 1)),
	summary        TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_import_runs_started_at ON import_runs(started_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
