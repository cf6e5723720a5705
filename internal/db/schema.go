package db

// Timestamps are unix milliseconds. Audit and sanity rows are insert-only.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS raw_benchmark_results (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  audit_id TEXT NOT NULL UNIQUE,
  host TEXT NOT NULL,
  device_id TEXT NOT NULL,
  device_model TEXT NOT NULL,
  benchmark_type TEXT NOT NULL,
  payload TEXT NOT NULL,
  captured_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS gpu_aggregates (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  host TEXT NOT NULL,
  device_id TEXT NOT NULL,
  device_model TEXT NOT NULL,
  benchmark_type TEXT NOT NULL,
  metric_name TEXT NOT NULL,
  value_count INTEGER NOT NULL,
  value_sum REAL NOT NULL,
  value_min REAL NOT NULL,
  value_max REAL NOT NULL,
  last_value REAL NOT NULL,
  last_updated_at INTEGER NOT NULL,
  UNIQUE (host, device_id, device_model, benchmark_type, metric_name)
);

CREATE TABLE IF NOT EXISTS audit_progress (
  source TEXT PRIMARY KEY,
  marker TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sanity_results (
  device_model TEXT NOT NULL,
  checked_at INTEGER NOT NULL,
  target TEXT NOT NULL,
  verdict TEXT NOT NULL,
  PRIMARY KEY (device_model, checked_at, target)
);

CREATE INDEX IF NOT EXISTS idx_results_identity ON raw_benchmark_results (host, benchmark_type, captured_at);
CREATE INDEX IF NOT EXISTS idx_aggregates_type ON gpu_aggregates (benchmark_type, metric_name);
`

// Tables lists the tables schemaDDL creates, in creation order.
var Tables = []string{"raw_benchmark_results", "gpu_aggregates", "audit_progress", "sanity_results"}
