package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/skill-translator/pkg/icron"
	"github.com/MimeLyc/skill-translator/pkg/log"
)

// Purger removes expired cache entries.
type Purger interface {
	Purge(ctx context.Context, expiredOnly bool) (int64, error)
}

type maintenanceService struct {
	purger   Purger
	cronExpr string
	cron     *cron.Cron
	group    singleflight.Group
}

func NewMaintenanceService(purger Purger, c *cron.Cron, cronExpr string) *maintenanceService {
	return &maintenanceService{
		purger:   purger,
		cronExpr: cronExpr,
		cron:     c,
	}
}

// Schedule registers the expired-entry sweep on the cron. Overlapping runs
// collapse into one; failures are logged and the next run tries again.
func (s *maintenanceService) Schedule(ctx context.Context) error {
	if info, err := icron.GetTriggerInfo(s.cronExpr, time.Now()); err == nil {
		log.Info("Cache cleanup scheduled with %q, next run at %s", s.cronExpr, info.Next.Format(time.RFC3339))
	}

	_, err := s.cron.AddFunc(s.cronExpr, func() {
		if _, err := s.Run(ctx); err != nil {
			log.Error("Cache cleanup failed: %v", err)
		}
	})
	return err
}

// Run performs one sweep and returns the number of entries removed.
func (s *maintenanceService) Run(ctx context.Context) (int64, error) {
	v, err, shared := s.group.Do("purge", func() (any, error) {
		log.Info("Running cache cleanup")
		return s.purger.Purge(ctx, true)
	})
	if err != nil {
		return 0, err
	}
	n := v.(int64)
	if !shared {
		log.Info("Cache cleanup removed %d expired entries", n)
	}
	return n, nil
}
