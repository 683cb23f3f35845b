// Package scheduler
package scheduler

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/zapflowbr/zapflow/app/queue"
	"github.com/zapflowbr/zapflow/models"
	"github.com/zapflowbr/zapflow/repository"
	"github.com/zapflowbr/zapflow/utils"
	"gopkg.in/natefinch/lumberjack.v2"
)

// CampaignScheduler periodically scans for due campaigns and hands them to
// the dispatch queue. It is the only component that moves campaigns from
// pending/scheduled into queued, and it assumes a single running instance;
// the conditional status transition is the safety net if that assumption
// ever breaks.
type CampaignScheduler struct {
	campaignRepo repository.CampaignRepository
	dispatcher   queue.Dispatcher
	logger       *log.Logger
	interval     time.Duration
	batchSize    int

	// running guards against overlapping ticks when one scan outlasts
	// the interval
	running atomic.Bool
}

// NewCampaignScheduler creates a new campaign scheduler instance
func NewCampaignScheduler(
	campaignRepo repository.CampaignRepository,
	dispatcher queue.Dispatcher,
	logger *log.Logger,
	interval time.Duration,
	batchSize int,
) *CampaignScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if logger == nil {
		logger = NewSchedulerLogger("campaign_scheduler.log")
	}
	return &CampaignScheduler{
		campaignRepo: campaignRepo,
		dispatcher:   dispatcher,
		logger:       logger,
		interval:     interval,
		batchSize:    batchSize,
	}
}

// NewSchedulerLogger builds a logger writing to stdout and a rotating file
// under data/ (or /data in containerized environments)
func NewSchedulerLogger(fileName string) *log.Logger {
	candidates := []string{"data", "/data"}
	for _, dir := range candidates {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			continue
		}
		rotating := &lumberjack.Logger{
			Filename:   filepath.Join(dir, fileName),
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		mw := io.MultiWriter(os.Stdout, rotating)
		return log.New(mw, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
	}
	logger := log.Default()
	logger.Printf("scheduler: could not create log file, logging to stdout only")
	return logger
}

// Start launches the scheduler loop in a background goroutine and returns a stop function
func (s *CampaignScheduler) Start(parent context.Context) func() {
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

// runOnce performs a single scan. A tick arriving while the previous scan
// is still running is skipped, not queued.
func (s *CampaignScheduler) runOnce(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Printf("scheduler: previous scan still running, skipping tick")
		return
	}
	defer s.running.Store(false)

	now := utils.UTCNow()
	due, err := s.campaignRepo.ListDue(ctx, now, s.batchSize)
	if err != nil {
		s.logger.Printf("scheduler: list due campaigns failed: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}
	s.logger.Printf("scheduler: %d campaigns due", len(due))

	var failed int
	for _, campaign := range due {
		if err := s.dispatchCampaign(ctx, campaign, now); err != nil {
			// One broken campaign must not starve the rest of the batch
			s.logger.Printf("scheduler: dispatch campaign id=%d failed: %v", campaign.ID, err)
			failed++
		}
	}
	s.logger.Printf("scheduler: tick done, %d dispatched, %d failed", len(due)-failed, failed)
}

// dispatchCampaign re-checks eligibility, claims the campaign with a
// conditional transition, and enqueues the dispatch job. An enqueue failure
// hands the claim back so the next tick picks the campaign up again;
// nothing here ever produces a job for an unclaimed campaign.
func (s *CampaignScheduler) dispatchCampaign(ctx context.Context, campaign *models.Campaign, now time.Time) error {
	// Re-read: the campaign may have been canceled or paused since the scan
	current, err := s.campaignRepo.ByID(ctx, campaign.ID)
	if err != nil {
		return err
	}
	if current == nil || !current.Due(now) {
		return nil
	}

	moved, err := s.campaignRepo.TransitionStatus(ctx, current.ID,
		[]models.CampaignStatus{models.CampaignStatusPending, models.CampaignStatusScheduled},
		models.CampaignStatusQueued)
	if err != nil {
		return err
	}
	if !moved {
		return nil
	}

	payload := queue.CampaignJob{CampaignID: current.ID, UserID: current.UserID}
	jobID, err := s.dispatcher.Enqueue(ctx, queue.QueueCampaigns, queue.JobTypeDispatchCampaign, payload)
	if err != nil {
		// ListDue only scans pending and scheduled, so the claim must be
		// given back or the campaign would be stuck in queued forever
		reverted, rerr := s.campaignRepo.TransitionStatus(ctx, current.ID,
			[]models.CampaignStatus{models.CampaignStatusQueued},
			models.CampaignStatusScheduled)
		if rerr != nil || !reverted {
			s.logger.Printf("scheduler: revert claim for campaign id=%d failed (reverted=%t): %v", current.ID, reverted, rerr)
		}
		if serr := s.campaignRepo.SetLastError(ctx, current.ID, err.Error()); serr != nil {
			s.logger.Printf("scheduler: set last error for campaign id=%d failed: %v", current.ID, serr)
		}
		return err
	}

	s.logger.Printf("scheduler: campaign id=%d queued as job %s", current.ID, jobID)
	return nil
}
