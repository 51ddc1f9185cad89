package application

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper purges expired sessions on a fixed interval. Expiry is already
// enforced on read; this only keeps the table small.
type Sweeper struct {
	log      *slog.Logger
	svc      *Service
	interval time.Duration
}

func NewSweeper(log *slog.Logger, svc *Service, interval time.Duration) *Sweeper {
	return &Sweeper{log: log, svc: svc, interval: interval}
}

func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("session sweeper stopping")
			return nil
		case <-t.C:
			n, err := s.svc.PurgeExpired(ctx)
			if err != nil {
				s.log.Error("session sweep failed", "err", err)
				continue
			}
			if n > 0 {
				s.log.Info("expired sessions purged", "count", n)
			}
		}
	}
}
