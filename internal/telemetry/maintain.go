package telemetry

import (
	"context"
	"time"

	"github.com/hearthside-robotics/homerover/internal/monitoring"
	"github.com/hearthside-robotics/homerover/internal/timeutil"
)

// Maintain periodically checkpoints the WAL so the database file stays
// bounded on long-running rovers. Blocks until ctx is cancelled.
func (s *Store) Maintain(ctx context.Context, clock timeutil.Clock, interval time.Duration) {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if err := s.Checkpoint(); err != nil {
				monitoring.Logf("telemetry checkpoint: %v", err)
			}
		}
	}
}

// Checkpoint truncates the WAL into the main database file.
func (s *Store) Checkpoint() error {
	_, err := s.Exec(`PRAGMA wal_checkpoint(TRUNCATE);`)
	return err
}
