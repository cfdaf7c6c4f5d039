package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Digital-Shane/tidy-sort/internal/catalog"
	json "github.com/goccy/go-json"
)

// SaveSeries inserts or updates the series stored at series.Path.
func (s *Store) SaveSeries(ctx context.Context, series catalog.Series) error {
	path := filepath.Clean(series.Path)
	id := series.ID
	if id == "" {
		id = catalog.SeriesID(path)
	}

	var ids any
	if len(series.ProviderIDs) > 0 {
		data, err := json.Marshal(series.ProviderIDs)
		if err != nil {
			return fmt.Errorf("encode provider ids: %w", err)
		}
		ids = string(data)
	}

	var year any
	if series.Year > 0 {
		year = series.Year
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO series (id, name, year, path, provider_ids_json, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(path) DO UPDATE SET
            name = excluded.name,
            year = excluded.year,
            provider_ids_json = excluded.provider_ids_json,
            updated_at = excluded.updated_at`,
		id,
		series.Name,
		year,
		path,
		ids,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("save series: %w", err)
	}
	return nil
}

// ListSeries returns every stored series ordered by name then path.
func (s *Store) ListSeries(ctx context.Context) ([]catalog.Series, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id, name, year, path, provider_ids_json FROM series ORDER BY name, path`)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	defer rows.Close()

	var out []catalog.Series
	for rows.Next() {
		var (
			series  catalog.Series
			year    sql.NullInt64
			idsJSON sql.NullString
		)
		if err := rows.Scan(&series.ID, &series.Name, &year, &series.Path, &idsJSON); err != nil {
			return nil, fmt.Errorf("scan series: %w", err)
		}
		series.Year = int(year.Int64)
		series.ProviderIDs = map[string]string{}
		if idsJSON.Valid && idsJSON.String != "" {
			if err := json.Unmarshal([]byte(idsJSON.String), &series.ProviderIDs); err != nil {
				return nil, fmt.Errorf("decode provider ids: %w", err)
			}
		}
		out = append(out, series)
	}
	return out, rows.Err()
}
