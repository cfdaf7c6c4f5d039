package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Digital-Shane/tidy-sort/internal/organize"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

const resultColumns = "id, source_path, file_name, file_size, kind, extracted_name, extracted_year, extracted_season, extracted_episode, extracted_ending_episode, target_path, status, status_message, duplicate_paths_json, created_at"

// ResultFilter narrows List. Zero values match everything.
type ResultFilter struct {
	Status *organize.Status
	Limit  int
}

// ResultID derives the identifier of the result for sourcePath.
func ResultID(sourcePath string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(filepath.Clean(sourcePath))).String()
}

func scanResult(scanner interface{ Scan(dest ...any) error }) (*organize.Result, error) {
	var (
		id             string
		sourcePath     string
		fileName       string
		fileSize       int64
		kind           string
		extractedName  sql.NullString
		extractedYear  sql.NullInt64
		season         sql.NullInt64
		episode        sql.NullInt64
		endingEpisode  sql.NullInt64
		targetPath     sql.NullString
		status         string
		statusMessage  sql.NullString
		duplicatesJSON sql.NullString
		createdRaw     string
	)

	if err := scanner.Scan(
		&id,
		&sourcePath,
		&fileName,
		&fileSize,
		&kind,
		&extractedName,
		&extractedYear,
		&season,
		&episode,
		&endingEpisode,
		&targetPath,
		&status,
		&statusMessage,
		&duplicatesJSON,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	result := &organize.Result{
		ID:                     id,
		OriginalPath:           sourcePath,
		OriginalFileName:       fileName,
		FileSize:               fileSize,
		Kind:                   kind,
		ExtractedName:          extractedName.String,
		ExtractedYear:          intFromNull(extractedYear),
		ExtractedSeason:        intFromNull(season),
		ExtractedEpisode:       intFromNull(episode),
		ExtractedEndingEpisode: intFromNull(endingEpisode),
		TargetPath:             targetPath.String,
		Status:                 organize.Status(status),
		StatusMessage:          statusMessage.String,
	}
	if duplicatesJSON.Valid && duplicatesJSON.String != "" {
		if err := json.Unmarshal([]byte(duplicatesJSON.String), &result.DuplicatePaths); err != nil {
			return nil, fmt.Errorf("decode duplicate paths: %w", err)
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		result.Date = created
	}
	return result, nil
}

// GetByID returns the result with id, or nil when there is none.
func (s *Store) GetByID(ctx context.Context, id string) (*organize.Result, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+resultColumns+` FROM results WHERE id = ?`, id)
	result, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	return result, nil
}

// GetBySourcePath returns the result recorded for path, or nil when there is none.
func (s *Store) GetBySourcePath(ctx context.Context, path string) (*organize.Result, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+resultColumns+` FROM results WHERE source_path = ?`, filepath.Clean(path))
	result, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get result by path: %w", err)
	}
	return result, nil
}

// Save inserts or replaces the result for its source path. An empty ID is
// assigned before writing.
func (s *Store) Save(ctx context.Context, result *organize.Result) error {
	if result == nil {
		return errors.New("save result: nil result")
	}
	if result.OriginalPath == "" {
		return errors.New("save result: empty source path")
	}
	if result.ID == "" {
		result.ID = ResultID(result.OriginalPath)
	}

	var duplicates any
	if len(result.DuplicatePaths) > 0 {
		data, err := json.Marshal(result.DuplicatePaths)
		if err != nil {
			return fmt.Errorf("encode duplicate paths: %w", err)
		}
		duplicates = string(data)
	}

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO results (`+resultColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(source_path) DO UPDATE SET
            id = excluded.id,
            file_name = excluded.file_name,
            file_size = excluded.file_size,
            kind = excluded.kind,
            extracted_name = excluded.extracted_name,
            extracted_year = excluded.extracted_year,
            extracted_season = excluded.extracted_season,
            extracted_episode = excluded.extracted_episode,
            extracted_ending_episode = excluded.extracted_ending_episode,
            target_path = excluded.target_path,
            status = excluded.status,
            status_message = excluded.status_message,
            duplicate_paths_json = excluded.duplicate_paths_json,
            created_at = excluded.created_at`,
		result.ID,
		filepath.Clean(result.OriginalPath),
		result.OriginalFileName,
		result.FileSize,
		result.Kind,
		nullableString(result.ExtractedName),
		nullableInt(result.ExtractedYear),
		nullableInt(result.ExtractedSeason),
		nullableInt(result.ExtractedEpisode),
		nullableInt(result.ExtractedEndingEpisode),
		nullableString(result.TargetPath),
		string(result.Status),
		nullableString(result.StatusMessage),
		duplicates,
		formatTime(result.Date),
	)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

// List returns results newest first.
func (s *Store) List(ctx context.Context, filter ResultFilter) ([]*organize.Result, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}

	query := `SELECT ` + resultColumns + ` FROM results`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, source_path"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []*organize.Result
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// Delete removes the result with id. It reports whether a row was removed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM results WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Clear removes every result and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM results`)
	if err != nil {
		return 0, fmt.Errorf("clear results: %w", err)
	}
	return res.RowsAffected()
}
