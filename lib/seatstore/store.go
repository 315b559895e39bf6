// Package seatstore persists per-course seat availability over time, so
// seat-count history can be charted and openings spotted between polls.
package seatstore

import (
	"context"
	"database/sql"
	"davisweb/lib/catalog"
	"time"

	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

// SeatCount is one course's availability at one poll.
type SeatCount struct {
	Crn           string
	Term          catalog.Term
	Available     int
	MaxEnrollment int
}

type PushRequest struct {
	Time   time.Time
	Counts []SeatCount
}

// Push records one poll's seat counts. All counts in the request share the
// poll timestamp.
func (s Store) Push(ctx context.Context, req PushRequest) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, count := range req.Counts {
		_, err := tx.ExecContext(
			ctx,
			`INSERT OR IGNORE INTO courses (crn, term) VALUES (?, ?)`,
			count.Crn, count.Term.Code(),
		)
		if err != nil {
			return err
		}

		var courseId int64
		err = tx.QueryRowContext(
			ctx,
			`SELECT id FROM courses WHERE crn = ? AND term = ?`,
			count.Crn, count.Term.Code(),
		).Scan(&courseId)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO seat_snapshots (course_id, time, available, max_enrollment)
			 VALUES (?, ?, ?, ?)`,
			courseId, req.Time.Unix(), count.Available, count.MaxEnrollment,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Snapshot is one point of a course's availability series.
type Snapshot struct {
	Time          time.Time
	Available     int
	MaxEnrollment int
}

// Pull returns a course's availability series, oldest first. An unknown
// course yields an empty series.
func (s Store) Pull(ctx context.Context, crn string, term catalog.Term) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT s.time, s.available, s.max_enrollment
		 FROM seat_snapshots s
		 JOIN courses c ON c.id = s.course_id
		 WHERE c.crn = ? AND c.term = ?
		 ORDER BY s.time ASC`,
		crn, term.Code(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var unix int64
		var snap Snapshot
		if err := rows.Scan(&unix, &snap.Available, &snap.MaxEnrollment); err != nil {
			return nil, err
		}
		snap.Time = time.Unix(unix, 0)
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}
