package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (s *Store) SaveGeneration(g Generation) error {
	return insertGeneration(s.db, g)
}

// QueueGeneration saves a pending generation and the job that fills it in one
// transaction, so neither exists without the other.
func (s *Store) QueueGeneration(g Generation, job Job) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertGeneration(tx, g); err != nil {
		return fmt.Errorf("saving generation %s: %w", g.ID, err)
	}
	if err := insertJob(tx, job); err != nil {
		return err
	}
	return tx.Commit()
}

func insertGeneration(ex execer, g Generation) error {
	now := time.Now()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	if g.Status == "" {
		g.Status = GenerationPending
	}
	_, err := ex.Exec(`
		INSERT INTO generations (id, prompt, content_type, channel, overrides_json, status, output_json, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Prompt, g.ContentType, g.Channel, g.OverridesJSON, g.Status, g.OutputJSON, g.Error,
		formatTime(g.CreatedAt), formatTime(now),
	)
	return err
}

func (s *Store) GetGeneration(id string) (Generation, error) {
	var g Generation
	var createdAt, updatedAt string
	err := s.db.QueryRow(`
		SELECT id, prompt, content_type, channel, overrides_json, status, output_json, error, created_at, updated_at
		FROM generations WHERE id = ?`, id,
	).Scan(&g.ID, &g.Prompt, &g.ContentType, &g.Channel, &g.OverridesJSON, &g.Status, &g.OutputJSON, &g.Error, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Generation{}, ErrNotFound
	}
	if err != nil {
		return Generation{}, err
	}
	if g.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Generation{}, err
	}
	if g.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return Generation{}, err
	}
	return g, nil
}

// CompleteGeneration stores the output of a finished generation.
func (s *Store) CompleteGeneration(id, outputJSON string) error {
	return s.finishGeneration(id, GenerationCompleted, outputJSON, "")
}

// FailGeneration records a generation error. A retried generation may fail
// and later complete.
func (s *Store) FailGeneration(id, errMsg string) error {
	return s.finishGeneration(id, GenerationFailed, "", errMsg)
}

func (s *Store) finishGeneration(id, status, output, errMsg string) error {
	res, err := s.db.Exec(`UPDATE generations SET status = ?, output_json = ?, error = ?, updated_at = ? WHERE id = ?`,
		status, output, errMsg, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
