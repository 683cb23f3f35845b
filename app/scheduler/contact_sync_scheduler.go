package scheduler

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	businessflow "github.com/zapflowbr/zapflow/business_flow"
	"github.com/zapflowbr/zapflow/repository"
)

// ContactSyncScheduler periodically pulls the contact books of connected
// numbers into the local contact base
type ContactSyncScheduler struct {
	numberRepo repository.NumberRepository
	syncFlow   businessflow.ContactSyncFlow
	logger     *log.Logger
	interval   time.Duration

	running atomic.Bool
}

// NewContactSyncScheduler creates a new contact sync scheduler instance
func NewContactSyncScheduler(
	numberRepo repository.NumberRepository,
	syncFlow businessflow.ContactSyncFlow,
	logger *log.Logger,
	interval time.Duration,
) *ContactSyncScheduler {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	if logger == nil {
		logger = NewSchedulerLogger("contact_sync.log")
	}
	return &ContactSyncScheduler{
		numberRepo: numberRepo,
		syncFlow:   syncFlow,
		logger:     logger,
		interval:   interval,
	}
}

// Start launches the sync loop in a background goroutine and returns a stop function
func (s *ContactSyncScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (s *ContactSyncScheduler) runOnce(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Printf("scheduler: previous contact sync still running, skipping tick")
		return
	}
	defer s.running.Store(false)

	numbers, err := s.numberRepo.ListSyncable(ctx)
	if err != nil {
		s.logger.Printf("scheduler: list syncable numbers failed: %v", err)
		return
	}
	if len(numbers) == 0 {
		return
	}

	for _, number := range numbers {
		report, err := s.syncFlow.SyncNumber(ctx, number)
		if err != nil {
			s.logger.Printf("scheduler: contact sync failed for number id=%d: %v", number.ID, err)
			continue
		}
		if report.Imported > 0 {
			s.logger.Printf("scheduler: number id=%d synced, %d of %d contacts new", number.ID, report.Imported, report.Total)
		}
	}
}
