package storage

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	created_at    TIMESTAMP NOT NULL,
	request       TEXT NOT NULL,
	result        TEXT NOT NULL,
	best_rating   TEXT NOT NULL,
	iterations    INTEGER NOT NULL,
	accepted      INTEGER NOT NULL,
	model         TEXT NOT NULL DEFAULT '',
	input_tokens  INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	duration_ms   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
`
