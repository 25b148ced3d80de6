package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kalambet/flowcraft/internal/marketing"
)

// SaveFlow inserts or replaces f. Flows whose steps depend on later or
// missing steps are rejected.
func (s *Store) SaveFlow(f *marketing.Flow) error {
	if err := f.ValidateDependencies(); err != nil {
		return err
	}
	body, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding flow: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning flow transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO flows (id, name, status, body_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			body_json = excluded.body_json,
			updated_at = excluded.updated_at`,
		f.ID, f.Name, string(f.Status), string(body), formatTime(f.CreatedAt), formatTime(f.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving flow %s: %w", f.ID, err)
	}

	if _, err := tx.Exec(`DELETE FROM flow_channels WHERE flow_id = ?`, f.ID); err != nil {
		return fmt.Errorf("clearing flow channels: %w", err)
	}
	for _, ch := range f.Channels() {
		if _, err := tx.Exec(`INSERT INTO flow_channels (flow_id, channel) VALUES (?, ?)`, f.ID, string(ch)); err != nil {
			return fmt.Errorf("saving flow channel %s: %w", ch, err)
		}
	}

	return tx.Commit()
}

// GetFlow returns the flow with the given id.
func (s *Store) GetFlow(id string) (*marketing.Flow, error) {
	var body string
	err := s.db.QueryRow(`SELECT body_json FROM flows WHERE id = ?`, id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeFlow(body)
}

// ListFlows returns flows matching filter, most recently updated first.
func (s *Store) ListFlows(filter FlowFilter) ([]*marketing.Flow, error) {
	query := `SELECT f.body_json FROM flows f`
	var args []any
	var where []string

	if filter.Channel != "" {
		query += ` JOIN flow_channels c ON c.flow_id = f.id`
		where = append(where, `c.channel = ?`)
		args = append(args, string(filter.Channel))
	}
	if filter.Status != "" {
		where = append(where, `f.status = ?`)
		args = append(args, string(filter.Status))
	}
	for i, w := range where {
		if i == 0 {
			query += ` WHERE ` + w
		} else {
			query += ` AND ` + w
		}
	}
	query += ` ORDER BY f.updated_at DESC, f.id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flows := []*marketing.Flow{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		f, err := decodeFlow(body)
		if err != nil {
			return nil, err
		}
		flows = append(flows, f)
	}
	return flows, rows.Err()
}

// DeleteFlow removes a flow and its channel index rows.
func (s *Store) DeleteFlow(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM flows WHERE id = ?`, id)
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
	if _, err := tx.Exec(`DELETE FROM flow_channels WHERE flow_id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func decodeFlow(body string) (*marketing.Flow, error) {
	var f marketing.Flow
	if err := json.Unmarshal([]byte(body), &f); err != nil {
		return nil, fmt.Errorf("decoding flow: %w", err)
	}
	if f.ABTests == nil {
		f.ABTests = map[string]marketing.ABTest{}
	}
	return &f, nil
}
