package storage

import (
	"context"
	"fmt"
)

// EstimateStorageUsage returns a best-effort estimate of the on-disk
// size of the store in bytes. Advisory only; freelist pages and WAL
// segments are not counted.
func (db *DB) EstimateStorageUsage(ctx context.Context) (int64, error) {
	var pageCount, pageSize int64

	if err := db.conn.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, fmt.Errorf("failed to read page count: %w", err)
	}
	if err := db.conn.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("failed to read page size: %w", err)
	}

	return pageCount * pageSize, nil
}
