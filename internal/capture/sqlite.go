package capture

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS frames (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	captured_at   TEXT    NOT NULL,
	seq           INTEGER NOT NULL,
	url           TEXT    NOT NULL,
	direction     TEXT    NOT NULL,
	frame_type    TEXT    NOT NULL,
	opcode        INTEGER NOT NULL,
	fin           INTEGER NOT NULL,
	rsv1          INTEGER NOT NULL,
	masked        INTEGER NOT NULL,
	payload_len   INTEGER NOT NULL,
	payload       BLOB
);
CREATE INDEX IF NOT EXISTS frames_url ON frames(url, seq);
`

// SQLiteSink stores records in a SQLite database, so captures from many
// sessions can be queried together.
type SQLiteSink struct {
	db     *sql.DB
	insert *sql.Stmt
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture database: %w", err)
	}
	// one writer; the reader goroutine and senders share it
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create capture schema: %w", err)
	}

	insert, err := db.Prepare(`INSERT INTO frames
		(captured_at, seq, url, direction, frame_type, opcode, fin, rsv1, masked, payload_len, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare capture insert: %w", err)
	}

	return &SQLiteSink{db: db, insert: insert}, nil
}

func (s *SQLiteSink) Write(r Record) error {
	payload, err := r.Payload()
	if err != nil {
		return fmt.Errorf("invalid payload hex: %w", err)
	}
	_, err = s.insert.Exec(
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		r.Seq, r.URL, r.Direction, r.FrameType, int(r.Opcode),
		r.FIN, r.RSV1, r.Masked, r.PayloadLen, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert capture record: %w", err)
	}
	return nil
}

// Records returns the stored frames for url in capture order; an empty url
// returns everything.
func (s *SQLiteSink) Records(url string) ([]Record, error) {
	q := `SELECT captured_at, seq, url, direction, frame_type, opcode, fin, rsv1, masked, payload_len, payload
		FROM frames`
	var args []any
	if url != "" {
		q += ` WHERE url = ?`
		args = append(args, url)
	}
	q += ` ORDER BY id`

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query capture database: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var (
			r       Record
			ts      string
			opcode  int
			payload []byte
		)
		if err := rows.Scan(&ts, &r.Seq, &r.URL, &r.Direction, &r.FrameType, &opcode,
			&r.FIN, &r.RSV1, &r.Masked, &r.PayloadLen, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan capture record: %w", err)
		}
		if r.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("invalid capture timestamp %q: %w", ts, err)
		}
		r.Opcode = byte(opcode)
		r.PayloadHex = fmt.Sprintf("%x", payload)
		r.PayloadASCII = toASCII(payload)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLiteSink) Close() error {
	_ = s.insert.Close()
	return s.db.Close()
}
