package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CreateItem inserts a new item and returns it.
func (s *Store) CreateItem(ctx context.Context, title string) (*Item, error) {
	now := timestamp(time.Now())
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO items (title, created_at, updated_at) VALUES (?, ?, ?)`,
		title, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetItem(ctx, id)
}

// GetItem fetches one item by id.
func (s *Store) GetItem(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM items WHERE id = ?`, id)

	var item Item
	var created, updated string
	if err := row.Scan(&item.ID, &item.Title, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("item %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("scan item: %w", err)
	}
	item.CreatedAt = parseTimestamp(created)
	item.UpdatedAt = parseTimestamp(updated)
	return &item, nil
}

// AddMedia appends a media to an item, at the end of its media order.
func (s *Store) AddMedia(ctx context.Context, media *Media) (*Media, error) {
	if media == nil {
		return nil, errors.New("nil media")
	}
	if _, err := s.GetItem(ctx, media.ItemID); err != nil {
		return nil, err
	}

	var position int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM media WHERE item_id = ?`,
		media.ItemID,
	).Scan(&position)
	if err != nil {
		return nil, fmt.Errorf("next media position: %w", err)
	}

	derivatives := media.Derivatives
	if derivatives == nil {
		derivatives = map[string]DerivativeFile{}
	}
	derivativesJSON, err := json.Marshal(derivatives)
	if err != nil {
		return nil, fmt.Errorf("marshal derivatives: %w", err)
	}

	now := timestamp(time.Now())
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO media (
            item_id, position, source, storage_id, extension, media_type,
            size, has_original, renderer, extracted_text, derivatives_json,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		media.ItemID, position, media.Source, media.StorageID, media.Extension,
		media.MediaType, media.Size, boolToInt(media.HasOriginal),
		defaultRenderer(media.Renderer), media.ExtractedText,
		string(derivativesJSON), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert media: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetMedia(ctx, id)
}

// GetMedia fetches one media by id.
func (s *Store) GetMedia(ctx context.Context, id int64) (*Media, error) {
	row := s.db.QueryRowContext(ctx, mediaSelect+` WHERE id = ?`, id)
	media, err := scanMedia(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("media %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return media, nil
}

// ListMedia returns an item's media in item order.
func (s *Store) ListMedia(ctx context.Context, itemID int64) ([]*Media, error) {
	rows, err := s.db.QueryContext(ctx, mediaSelect+` WHERE item_id = ? ORDER BY position, id`, itemID)
	if err != nil {
		return nil, fmt.Errorf("query media: %w", err)
	}
	defer rows.Close()

	var result []*Media
	for rows.Next() {
		media, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, media)
	}
	return result, rows.Err()
}

// UpdateMediaDerivatives replaces the derivative metadata map of a media.
// The transcoder persists after every rule so a crash mid-run leaves a
// consistent subset.
func (s *Store) UpdateMediaDerivatives(ctx context.Context, mediaID int64, derivatives map[string]DerivativeFile) error {
	if derivatives == nil {
		derivatives = map[string]DerivativeFile{}
	}
	derivativesJSON, err := json.Marshal(derivatives)
	if err != nil {
		return fmt.Errorf("marshal derivatives: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE media SET derivatives_json = ?, updated_at = ? WHERE id = ?`,
		string(derivativesJSON), timestamp(time.Now()), mediaID,
	)
	if err != nil {
		return fmt.Errorf("update media derivatives: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("media %d: %w", mediaID, ErrNotFound)
	}
	return nil
}

// DeleteMedia removes a media row. Stored derivative files are the
// caller's responsibility; the lifecycle hooks remove them first.
func (s *Store) DeleteMedia(ctx context.Context, mediaID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM media WHERE id = ?`, mediaID)
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("media %d: %w", mediaID, ErrNotFound)
	}
	return nil
}

const mediaSelect = `SELECT id, item_id, position, source, storage_id, extension,
    media_type, size, has_original, renderer, extracted_text,
    derivatives_json, created_at, updated_at FROM media`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMedia(row rowScanner) (*Media, error) {
	var media Media
	var hasOriginal int
	var derivativesJSON, created, updated string
	err := row.Scan(
		&media.ID, &media.ItemID, &media.Position, &media.Source,
		&media.StorageID, &media.Extension, &media.MediaType, &media.Size,
		&hasOriginal, &media.Renderer, &media.ExtractedText,
		&derivativesJSON, &created, &updated,
	)
	if err != nil {
		return nil, err
	}
	media.HasOriginal = hasOriginal != 0
	media.CreatedAt = parseTimestamp(created)
	media.UpdatedAt = parseTimestamp(updated)
	media.Derivatives = map[string]DerivativeFile{}
	if derivativesJSON != "" {
		if err := json.Unmarshal([]byte(derivativesJSON), &media.Derivatives); err != nil {
			return nil, fmt.Errorf("decode derivatives for media %d: %w", media.ID, err)
		}
	}
	return &media, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func defaultRenderer(renderer string) string {
	if renderer == "" {
		return "file"
	}
	return renderer
}
