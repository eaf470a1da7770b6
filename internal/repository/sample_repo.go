package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"temperaturebox/internal/models"
)

// SampleSQLite stores the readings of every run for plotting.
type SampleSQLite struct {
	db *sql.DB
}

func NewSampleSQLite(db *sql.DB) *SampleSQLite {
	return &SampleSQLite{db: db}
}

const (
	insertSampleSQL = `
		INSERT INTO box_samples (box_id, taken_at, elapsed_s, setpoint, process_value)
		VALUES (?, ?, ?, ?, ?)
	`
	selectSamplesSQL = `SELECT box_id, taken_at, elapsed_s, setpoint, process_value FROM box_samples WHERE box_id = ?`
)

// Append stores one reading; a zero TakenAt is set to now.
func (r *SampleSQLite) Append(ctx context.Context, s models.Sample) error {
	ts := s.TakenAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}
	_, err := r.db.ExecContext(ctx, insertSampleSQL, s.BoxID, ts, s.ElapsedSeconds, s.Setpoint, s.ProcessValue)
	if err != nil {
		return fmt.Errorf("insert sample for box %d: %w", s.BoxID, err)
	}
	return nil
}

// List returns the samples of a box within [from, to], oldest first.
func (r *SampleSQLite) List(ctx context.Context, box int, from, to time.Time) ([]models.Sample, error) {
	query := selectSamplesSQL
	args := []any{box}
	var conds []string
	if !from.IsZero() {
		conds = append(conds, "taken_at >= ?")
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		conds = append(conds, "taken_at <= ?")
		args = append(args, to.UTC())
	}
	if len(conds) > 0 {
		query += " AND " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY taken_at ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select samples for box %d: %w", box, err)
	}
	defer rows.Close()

	var out []models.Sample
	for rows.Next() {
		var s models.Sample
		if err := rows.Scan(&s.BoxID, &s.TakenAt, &s.ElapsedSeconds, &s.Setpoint, &s.ProcessValue); err != nil {
			return nil, err
		}
		s.TakenAt = s.TakenAt.UTC()
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
