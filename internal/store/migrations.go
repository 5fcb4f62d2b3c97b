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

CREATE TABLE IF NOT EXISTS leads (
	id              TEXT PRIMARY KEY,
	lead_id         INTEGER NOT NULL,
	email           TEXT NOT NULL,
	position        TEXT NOT NULL,
	name            TEXT NOT NULL,
	gender          TEXT NOT NULL DEFAULT 'other'
		CHECK(gender IN ('male', 'female', 'other')),
	address         TEXT NOT NULL,
	birth_date      DATETIME NOT NULL,
	phone           TEXT NOT NULL,
	birth_place     TEXT NOT NULL,
	source_ip       TEXT NOT NULL,
	input_key       TEXT NOT NULL,
	received_at     DATETIME NOT NULL,
	delivery_status TEXT NOT NULL DEFAULT 'pending'
		CHECK(delivery_status IN ('pending', 'sent', 'failed'))
);

CREATE INDEX IF NOT EXISTS idx_leads_lead_id ON leads(lead_id);
CREATE INDEX IF NOT EXISTS idx_leads_email ON leads(email);
CREATE INDEX IF NOT EXISTS idx_leads_delivery_status ON leads(delivery_status);
CREATE INDEX IF NOT EXISTS idx_leads_received_at ON leads(received_at);

CREATE TABLE IF NOT EXISTS statistics (
	date  TEXT PRIMARY KEY,
	count INTEGER NOT NULL DEFAULT 0
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
