package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pkarpov/duskwatch/internal/night"
)

// NightRecordRepository persists cleared-night outcomes. It implements
// night.RecordStore.
type NightRecordRepository struct {
	pool *pgxpool.Pool
}

// NewNightRecordRepository creates a repository over the given pool.
func NewNightRecordRepository(pool *pgxpool.Pool) *NightRecordRepository {
	return &NightRecordRepository{pool: pool}
}

// SaveNightRecord inserts one cleared-night record.
func (r *NightRecordRepository) SaveNightRecord(ctx context.Context, rec night.Record) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO night_records (day, week, night, total_units, waves, started_at, cleared_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.Day, rec.Week, rec.Night, rec.TotalUnits, rec.Waves, rec.StartedAt, rec.ClearedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting night record for day %d: %w", rec.Day, err)
	}
	return nil
}

// LoadRecent returns the most recently cleared nights, newest first.
func (r *NightRecordRepository) LoadRecent(ctx context.Context, limit int) ([]night.Record, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx,
		`SELECT day, week, night, total_units, waves, started_at, cleared_at
		 FROM night_records ORDER BY cleared_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying night records: %w", err)
	}
	defer rows.Close()

	var records []night.Record
	for rows.Next() {
		var rec night.Record
		if err := rows.Scan(&rec.Day, &rec.Week, &rec.Night, &rec.TotalUnits,
			&rec.Waves, &rec.StartedAt, &rec.ClearedAt); err != nil {
			return nil, fmt.Errorf("scanning night record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating night records: %w", err)
	}
	return records, nil
}
