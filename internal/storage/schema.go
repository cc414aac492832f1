package storage

// Schema contains SQL statements to create database tables.
const Schema = `
-- Responses table: one row per fetch identity fingerprint
CREATE TABLE IF NOT EXISTS responses (
    fingerprint TEXT PRIMARY KEY,
    status_line TEXT NOT NULL,
    status_code INTEGER NOT NULL,
    headers_json TEXT NOT NULL,
    body TEXT NOT NULL,
    stored_at INTEGER NOT NULL
);
`
