package store

import (
	"context"
	"fmt"
	"time"
)

// FeedItem is one stored forecast-feed entry for a region.
type FeedItem struct {
	RegionID    int
	GUID        string
	Title       string
	Description string
	PublishedAt time.Time
	FetchedAt   time.Time
}

// ReplaceFeedItems swaps the stored items of a region for items in a single
// transaction.
func (s *SQLiteStore) ReplaceFeedItems(ctx context.Context, regionID int, items []FeedItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin feed tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM feed_items WHERE region_id = ?`, regionID); err != nil {
		tx.Rollback()
		return fmt.Errorf("delete feed items for region %d: %w", regionID, err)
	}

	for _, it := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO feed_items (region_id, guid, title, description, published_at, fetched_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(region_id, guid) DO UPDATE SET
				title = excluded.title,
				description = excluded.description,
				published_at = excluded.published_at,
				fetched_at = excluded.fetched_at
		`, regionID, it.GUID, it.Title, it.Description, it.PublishedAt.UnixMilli(), it.FetchedAt.UnixMilli())
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert feed item %s: %w", it.GUID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit feed items for region %d: %w", regionID, err)
	}
	return nil
}

// FeedItems returns the stored items of a region, newest first.
func (s *SQLiteStore) FeedItems(ctx context.Context, regionID int) ([]FeedItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT region_id, guid, title, description, published_at, fetched_at
		FROM feed_items
		WHERE region_id = ?
		ORDER BY published_at DESC
	`, regionID)
	if err != nil {
		return nil, fmt.Errorf("query feed items: %w", err)
	}
	defer rows.Close()

	var items []FeedItem
	for rows.Next() {
		var it FeedItem
		var published, fetched int64
		if err := rows.Scan(&it.RegionID, &it.GUID, &it.Title, &it.Description, &published, &fetched); err != nil {
			return nil, err
		}
		it.PublishedAt = time.UnixMilli(published).UTC()
		it.FetchedAt = time.UnixMilli(fetched).UTC()
		items = append(items, it)
	}
	return items, rows.Err()
}
