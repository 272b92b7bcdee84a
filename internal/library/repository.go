package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines show and playback persistence.
type Repository interface {
	// Show CRUD
	GetByID(ctx context.Context, id string) (*Show, error)
	GetBySlug(ctx context.Context, slug string) (*Show, error)
	List(ctx context.Context) ([]Show, error)
	Create(ctx context.Context, show *Show) error
	Update(ctx context.Context, show *Show) error
	Delete(ctx context.Context, id string) error

	// Playback log
	CreatePlayback(ctx context.Context, p *Playback) error
	EndPlayback(ctx context.Context, id string, status PlaybackStatus, at time.Time) error
	GetPlayback(ctx context.Context, id string) (*Playback, error)
	ListPlaybacks(ctx context.Context, showID string, limit int) ([]Playback, error)
	EndOpenPlaybacks(ctx context.Context, status PlaybackStatus, at time.Time) (int64, error)
}

// showColumns is the SELECT column list for show queries.
const showColumns = `id, name, slug, description, start_time, end_time, tempo,
			repeat_time, cues, created_at, updated_at`

// playbackColumns is the SELECT column list for playback queries.
const playbackColumns = `id, show_id, slot, options, source, status, assigned_at, ended_at`

// playbackTimeLayout has fixed-width fractions so stored times sort as text.
const playbackTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Playback list limits.
const (
	defaultPlaybackLimit = 20
	maxPlaybackLimit     = 200
)

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a show by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Show, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+showColumns+` FROM shows WHERE id = ?`, id)
	show, err := scanShowRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShowNotFound
		}
		return nil, fmt.Errorf("querying show by id: %w", err)
	}
	return show, nil
}

// GetBySlug retrieves a show by its slug.
func (r *SQLiteRepository) GetBySlug(ctx context.Context, slug string) (*Show, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+showColumns+` FROM shows WHERE slug = ?`, slug)
	show, err := scanShowRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShowNotFound
		}
		return nil, fmt.Errorf("querying show by slug: %w", err)
	}
	return show, nil
}

// List retrieves all shows ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Show, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+showColumns+` FROM shows ORDER BY name, slug`)
	if err != nil {
		return nil, fmt.Errorf("querying shows: %w", err)
	}
	defer rows.Close()

	var shows []Show
	for rows.Next() {
		show, scanErr := scanShowRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning show: %w", scanErr)
		}
		shows = append(shows, *show)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating shows: %w", err)
	}
	return shows, nil
}

// Create inserts a new show.
func (r *SQLiteRepository) Create(ctx context.Context, show *Show) error {
	cuesJSON, err := marshalCues(show.Cues)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if show.CreatedAt.IsZero() {
		show.CreatedAt = now
	}
	show.UpdatedAt = now

	query := `
		INSERT INTO shows (
			id, name, slug, description, start_time, end_time, tempo,
			repeat_time, cues, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		show.ID,
		show.Name,
		show.Slug,
		nullableString(show.Description),
		nullableFloat(show.StartTime),
		nullableFloat(show.EndTime),
		show.Tempo,
		show.RepeatTime,
		cuesJSON,
		show.CreatedAt.Format(time.RFC3339),
		show.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrShowExists
		}
		return fmt.Errorf("inserting show: %w", err)
	}
	return nil
}

// Update modifies an existing show.
func (r *SQLiteRepository) Update(ctx context.Context, show *Show) error {
	cuesJSON, err := marshalCues(show.Cues)
	if err != nil {
		return err
	}

	show.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE shows SET
			name = ?, slug = ?, description = ?, start_time = ?, end_time = ?,
			tempo = ?, repeat_time = ?, cues = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		show.Name,
		show.Slug,
		nullableString(show.Description),
		nullableFloat(show.StartTime),
		nullableFloat(show.EndTime),
		show.Tempo,
		show.RepeatTime,
		cuesJSON,
		show.UpdatedAt.Format(time.RFC3339),
		show.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrShowExists
		}
		return fmt.Errorf("updating show: %w", err)
	}
	return checkAffected(result, ErrShowNotFound)
}

// Delete removes a show by ID. Its playback records go with it.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM shows WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting show: %w", err)
	}
	return checkAffected(result, ErrShowNotFound)
}

// CreatePlayback inserts a playback record.
func (r *SQLiteRepository) CreatePlayback(ctx context.Context, p *Playback) error {
	optionsJSON, err := marshalOptions(p.Options)
	if err != nil {
		return err
	}
	if p.AssignedAt.IsZero() {
		p.AssignedAt = time.Now().UTC()
	}

	query := `INSERT INTO playbacks (` + playbackColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		p.ID,
		p.ShowID,
		p.Slot,
		optionsJSON,
		nullableString(p.Source),
		string(p.Status),
		p.AssignedAt.UTC().Format(playbackTimeLayout),
		nullableTime(p.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting playback: %w", err)
	}
	return nil
}

// EndPlayback closes an open playback record with a final status.
// A record that is already closed keeps its first status.
func (r *SQLiteRepository) EndPlayback(ctx context.Context, id string, status PlaybackStatus, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE playbacks SET status = ?, ended_at = ? WHERE id = ? AND ended_at IS NULL`,
		string(status),
		at.UTC().Format(playbackTimeLayout),
		id,
	)
	if err != nil {
		return fmt.Errorf("ending playback: %w", err)
	}
	return checkAffected(result, ErrPlaybackNotFound)
}

// EndOpenPlaybacks closes every open record, used at startup to settle
// rows left open by an unclean shutdown.
func (r *SQLiteRepository) EndOpenPlaybacks(ctx context.Context, status PlaybackStatus, at time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE playbacks SET status = ?, ended_at = ? WHERE ended_at IS NULL`,
		string(status),
		at.UTC().Format(playbackTimeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("ending open playbacks: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// GetPlayback retrieves a playback by ID.
func (r *SQLiteRepository) GetPlayback(ctx context.Context, id string) (*Playback, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+playbackColumns+` FROM playbacks WHERE id = ?`, id)
	p, err := scanPlaybackRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlaybackNotFound
		}
		return nil, fmt.Errorf("querying playback: %w", err)
	}
	return p, nil
}

// ListPlaybacks retrieves the most recent playbacks of a show, newest first.
func (r *SQLiteRepository) ListPlaybacks(ctx context.Context, showID string, limit int) ([]Playback, error) {
	if limit <= 0 {
		limit = defaultPlaybackLimit
	}
	if limit > maxPlaybackLimit {
		limit = maxPlaybackLimit
	}

	query := `SELECT ` + playbackColumns + ` FROM playbacks
		WHERE show_id = ?
		ORDER BY assigned_at DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, showID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying playbacks: %w", err)
	}
	defer rows.Close()

	var out []Playback
	for rows.Next() {
		p, scanErr := scanPlaybackRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning playback: %w", scanErr)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating playbacks: %w", err)
	}
	return out, nil
}

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanShowRow(scanner rowScanner) (*Show, error) {
	var s Show
	var description sql.NullString
	var startTime, endTime sql.NullFloat64
	var cuesJSON, createdAt, updatedAt string

	err := scanner.Scan(
		&s.ID,
		&s.Name,
		&s.Slug,
		&description,
		&startTime,
		&endTime,
		&s.Tempo,
		&s.RepeatTime,
		&cuesJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		s.Description = &description.String
	}
	if startTime.Valid {
		s.StartTime = &startTime.Float64
	}
	if endTime.Valid {
		s.EndTime = &endTime.Float64
	}
	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		s.CreatedAt = t
	}
	if t, parseErr := time.Parse(time.RFC3339, updatedAt); parseErr == nil {
		s.UpdatedAt = t
	}

	if cuesJSON != "" && cuesJSON != "[]" {
		if jsonErr := json.Unmarshal([]byte(cuesJSON), &s.Cues); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling cues: %w", jsonErr)
		}
	}
	if s.Cues == nil {
		s.Cues = []Cue{}
	}
	return &s, nil
}

func scanPlaybackRow(scanner rowScanner) (*Playback, error) {
	var p Playback
	var options, source, endedAt sql.NullString
	var status, assignedAt string

	err := scanner.Scan(
		&p.ID,
		&p.ShowID,
		&p.Slot,
		&options,
		&source,
		&status,
		&assignedAt,
		&endedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = PlaybackStatus(status)
	if source.Valid {
		p.Source = &source.String
	}
	if t, parseErr := time.Parse(playbackTimeLayout, assignedAt); parseErr == nil {
		p.AssignedAt = t
	}
	if endedAt.Valid {
		if t, parseErr := time.Parse(playbackTimeLayout, endedAt.String); parseErr == nil {
			p.EndedAt = &t
		}
	}
	if options.Valid && options.String != "" {
		if jsonErr := json.Unmarshal([]byte(options.String), &p.Options); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling options: %w", jsonErr)
		}
	}
	return &p, nil
}

// ─── SQL Helpers ────────────────────────────────────────────────────────────

func marshalCues(cues []Cue) (string, error) {
	if cues == nil {
		cues = []Cue{}
	}
	data, err := json.Marshal(cues)
	if err != nil {
		return "", fmt.Errorf("marshalling cues: %w", err)
	}
	return string(data), nil
}

func marshalOptions(opts map[string]any) (sql.NullString, error) {
	if len(opts) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(opts)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshalling options: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func checkAffected(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullableFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(playbackTimeLayout), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
