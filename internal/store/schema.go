package store

// Schema is the DDL for the truthcheck schema's persisted tables.
// Migrations are out of scope (SPEC_FULL.md §1 "database schema
// migrations ... (offline tooling)"); this constant documents the
// shape the stores above assume.
const Schema = `
CREATE SCHEMA IF NOT EXISTS truthcheck;

CREATE TABLE IF NOT EXISTS truthcheck.analysis_results (
	analysis_id  text PRIMARY KEY,
	label        text NOT NULL,
	confidence   double precision NOT NULL,
	verdict_json jsonb NOT NULL,
	created_at   timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS truthcheck.checkpoint_threads (
	thread_id  text PRIMARY KEY,
	stage      text NOT NULL,
	state_json jsonb NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS truthcheck.evidence_chunks (
	id           bigserial PRIMARY KEY,
	source_url   text NOT NULL,
	source_title text,
	source_type  text,
	page_title   text,
	chunk_text   text NOT NULL,
	chunk_index  int NOT NULL,
	embedding    vector,
	metadata     jsonb,
	tsv          tsvector
);

CREATE INDEX IF NOT EXISTS evidence_chunks_tsv_idx ON truthcheck.evidence_chunks USING gin(tsv);
CREATE INDEX IF NOT EXISTS evidence_chunks_source_idx ON truthcheck.evidence_chunks (source_url, chunk_index);
`
