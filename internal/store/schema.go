package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS plots (
    file_path            TEXT PRIMARY KEY,
    plot_id              TEXT,
    plot_size            INTEGER,
    buckets              INTEGER,
    threads              INTEGER,
    tmp_dirs             TEXT,
    state                TEXT NOT NULL,
    phase                INTEGER,
    total_phases         INTEGER,
    start_time           TEXT,
    end_time             TEXT,
    total_secs           REAL,
    copy_secs            REAL,
    cpu_percent          REAL,
    final_size_gib       REAL,
    created              TEXT,
    modified             TEXT,
    byte_offset          INTEGER NOT NULL,
    snapshot             BLOB,
    file_mtime_ns        INTEGER NOT NULL,
    file_size            INTEGER NOT NULL,
    parsed_at            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS plot_phases (
    file_path            TEXT NOT NULL REFERENCES plots(file_path) ON DELETE CASCADE,
    phase                INTEGER NOT NULL,
    start_time           TEXT,
    end_time             TEXT,
    seconds              REAL,
    cpu_percent          REAL,
    PRIMARY KEY (file_path, phase)
);

CREATE TABLE IF NOT EXISTS file_tracker (
    file_path            TEXT PRIMARY KEY,
    mtime_ns             INTEGER NOT NULL,
    size_bytes           INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tail_offsets (
    file_path            TEXT PRIMARY KEY,
    byte_offset          INTEGER NOT NULL,
    updated_at           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_plots_start ON plots(start_time);
CREATE INDEX IF NOT EXISTS idx_plots_state ON plots(state);
`
