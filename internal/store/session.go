package store

import (
	"context"
	"fmt"
)

// Session is the playback state carried across restarts. QueueIDs hold
// the queue in walk order; QueuePos is -1 when nothing is selected.
type Session struct {
	Volume       int
	Repeat       int
	Shuffled     bool
	QueueIDs     []string
	QueuePos     int
	CurrentTrack string
}

func (s *Store) SaveSession(ctx context.Context, sess Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save session: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_queue`); err != nil {
		return fmt.Errorf("clear session queue: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO session_queue (position, track_id) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare session insert: %w", err)
	}
	defer stmt.Close()
	for i, id := range sess.QueueIDs {
		if _, err := stmt.ExecContext(ctx, i, id); err != nil {
			return fmt.Errorf("insert session item %d: %w", i, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE session_state
		SET volume = ?, repeat_mode = ?, shuffle = ?, queue_pos = ?, current_track = ?
		WHERE id = 1`,
		sess.Volume, sess.Repeat, boolToInt(sess.Shuffled), sess.QueuePos, sess.CurrentTrack); err != nil {
		return fmt.Errorf("update session state: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

func (s *Store) LoadSession(ctx context.Context) (Session, error) {
	var (
		sess    Session
		shuffle int
	)
	err := s.db.QueryRowContext(ctx, `SELECT volume, repeat_mode, shuffle, queue_pos, current_track
		FROM session_state WHERE id = 1`).
		Scan(&sess.Volume, &sess.Repeat, &shuffle, &sess.QueuePos, &sess.CurrentTrack)
	if err != nil {
		return Session{}, fmt.Errorf("load session state: %w", err)
	}
	sess.Shuffled = shuffle != 0

	rows, err := s.db.QueryContext(ctx, `SELECT track_id FROM session_queue ORDER BY position`)
	if err != nil {
		return Session{}, fmt.Errorf("load session queue: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return Session{}, fmt.Errorf("scan session item: %w", err)
		}
		sess.QueueIDs = append(sess.QueueIDs, id)
	}
	if err := rows.Err(); err != nil {
		return Session{}, fmt.Errorf("load session queue: %w", err)
	}
	return sess, nil
}
