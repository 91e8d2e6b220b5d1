package storage

const (
	initSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    start_time DATETIME NOT NULL,
    source     TEXT     NOT NULL,
    config     TEXT
);

CREATE TABLE IF NOT EXISTS lines (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id  INTEGER  NOT NULL REFERENCES sessions (id),
    received_at DATETIME NOT NULL,
    kind        TEXT     NOT NULL,
    text        TEXT     NOT NULL
);`

	// Indexes are created when the writer closes, so inserts stay cheap
	// during a recording.
	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_lines_session_received ON lines (session_id, received_at);`

	insertSessionSQL = `
INSERT INTO sessions (
                      start_time,
                      source,
                      config)
VALUES (CURRENT_TIMESTAMP, ?, ?)`

	selectSessionSQL = `
SELECT
    id,
    start_time,
    source,
    config
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    source,
    config
FROM sessions
ORDER BY start_time, id`

	insertLineSQL = `
INSERT INTO lines (
                   session_id,
                   received_at,
                   kind,
                   text)
VALUES `

	selectLinesSQL = `
SELECT
    id,
    received_at,
    kind,
    text
FROM lines
WHERE
    session_id = ?
    AND id > ?`
)
