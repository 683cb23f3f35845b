package scheduler

import (
	"context"
	"errors"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zapflowbr/zapflow/app/queue"
	"github.com/zapflowbr/zapflow/models"
)

// fakeCampaignRepo answers scheduler lookups from in-memory campaigns
type fakeCampaignRepo struct {
	due     []*models.Campaign
	byID    map[uint]*models.Campaign
	byIDErr map[uint]error
	listErr error

	listCalls    atomic.Int32
	transitioned []statusChange
	refuseClaim  bool
	lastErrors   map[uint]string
}

// statusChange records one conditional transition applied through the fake
type statusChange struct {
	id uint
	to models.CampaignStatus
}

func (f *fakeCampaignRepo) ByID(ctx context.Context, id uint) (*models.Campaign, error) {
	if err := f.byIDErr[id]; err != nil {
		return nil, err
	}
	return f.byID[id], nil
}

func (f *fakeCampaignRepo) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	return nil, nil
}

func (f *fakeCampaignRepo) Save(ctx context.Context, entity *models.Campaign) error   { return nil }
func (f *fakeCampaignRepo) SaveBatch(ctx context.Context, e []*models.Campaign) error { return nil }
func (f *fakeCampaignRepo) Update(ctx context.Context, entity *models.Campaign) error { return nil }

func (f *fakeCampaignRepo) Count(ctx context.Context, fl models.CampaignFilter) (int64, error) {
	return 0, nil
}

func (f *fakeCampaignRepo) Exists(ctx context.Context, fl models.CampaignFilter) (bool, error) {
	return false, nil
}

func (f *fakeCampaignRepo) ByUUID(ctx context.Context, uuid string) (*models.Campaign, error) {
	return nil, nil
}

func (f *fakeCampaignRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error) {
	f.listCalls.Add(1)
	if f.listErr != nil {
		return nil, f.listErr
	}
	if limit > 0 && len(f.due) > limit {
		return f.due[:limit], nil
	}
	return f.due, nil
}

func (f *fakeCampaignRepo) TransitionStatus(ctx context.Context, id uint, from []models.CampaignStatus, to models.CampaignStatus) (bool, error) {
	if f.refuseClaim {
		return false, nil
	}
	f.transitioned = append(f.transitioned, statusChange{id: id, to: to})
	return true, nil
}

func (f *fakeCampaignRepo) SetLastError(ctx context.Context, id uint, reason string) error {
	if f.lastErrors == nil {
		f.lastErrors = make(map[uint]string)
	}
	f.lastErrors[id] = reason
	return nil
}

// fakeDispatcher records enqueued jobs
type fakeDispatcher struct {
	calls []dispatchCall
	err   error
}

type dispatchCall struct {
	queueName string
	jobType   string
	payload   any
}

func (f *fakeDispatcher) Enqueue(ctx context.Context, queueName, jobType string, payload any) (string, error) {
	f.calls = append(f.calls, dispatchCall{queueName: queueName, jobType: jobType, payload: payload})
	if f.err != nil {
		return "", f.err
	}
	return "job-1", nil
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func pendingCampaign(id, userID uint) *models.Campaign {
	return &models.Campaign{ID: id, UserID: userID, Status: models.CampaignStatusPending}
}

func newTestScheduler(repo *fakeCampaignRepo, dispatcher *fakeDispatcher) *CampaignScheduler {
	return NewCampaignScheduler(repo, dispatcher, testLogger(), time.Minute, 100)
}

func TestCampaignSchedulerRunOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("claims and enqueues due campaigns", func(t *testing.T) {
		c1 := pendingCampaign(1, 10)
		c2 := pendingCampaign(2, 10)
		repo := &fakeCampaignRepo{
			due:  []*models.Campaign{c1, c2},
			byID: map[uint]*models.Campaign{1: c1, 2: c2},
		}
		dispatcher := &fakeDispatcher{}

		newTestScheduler(repo, dispatcher).runOnce(ctx)

		assert.Equal(t, []statusChange{
			{id: 1, to: models.CampaignStatusQueued},
			{id: 2, to: models.CampaignStatusQueued},
		}, repo.transitioned)
		require.Len(t, dispatcher.calls, 2)
		assert.Equal(t, queue.QueueCampaigns, dispatcher.calls[0].queueName)
		assert.Equal(t, queue.JobTypeDispatchCampaign, dispatcher.calls[0].jobType)
		assert.Equal(t, queue.CampaignJob{CampaignID: 1, UserID: 10}, dispatcher.calls[0].payload)
	})

	t.Run("skips campaigns no longer due on re-read", func(t *testing.T) {
		scanned := pendingCampaign(1, 10)
		canceled := &models.Campaign{ID: 1, UserID: 10, Status: models.CampaignStatusCanceled}
		repo := &fakeCampaignRepo{
			due:  []*models.Campaign{scanned},
			byID: map[uint]*models.Campaign{1: canceled},
		}
		dispatcher := &fakeDispatcher{}

		newTestScheduler(repo, dispatcher).runOnce(ctx)

		assert.Empty(t, repo.transitioned)
		assert.Empty(t, dispatcher.calls)
	})

	t.Run("does not enqueue when the claim is lost", func(t *testing.T) {
		c := pendingCampaign(1, 10)
		repo := &fakeCampaignRepo{
			due:         []*models.Campaign{c},
			byID:        map[uint]*models.Campaign{1: c},
			refuseClaim: true,
		}
		dispatcher := &fakeDispatcher{}

		newTestScheduler(repo, dispatcher).runOnce(ctx)

		assert.Empty(t, dispatcher.calls)
	})

	t.Run("one broken campaign does not starve the batch", func(t *testing.T) {
		c1 := pendingCampaign(1, 10)
		c2 := pendingCampaign(2, 10)
		repo := &fakeCampaignRepo{
			due:     []*models.Campaign{c1, c2},
			byID:    map[uint]*models.Campaign{1: c1, 2: c2},
			byIDErr: map[uint]error{1: errors.New("connection reset")},
		}
		dispatcher := &fakeDispatcher{}

		newTestScheduler(repo, dispatcher).runOnce(ctx)

		assert.Equal(t, []statusChange{{id: 2, to: models.CampaignStatusQueued}}, repo.transitioned)
		require.Len(t, dispatcher.calls, 1)
		assert.Equal(t, queue.CampaignJob{CampaignID: 2, UserID: 10}, dispatcher.calls[0].payload)
	})

	t.Run("enqueue failure hands the claim back", func(t *testing.T) {
		c := pendingCampaign(1, 10)
		repo := &fakeCampaignRepo{
			due:  []*models.Campaign{c},
			byID: map[uint]*models.Campaign{1: c},
		}
		dispatcher := &fakeDispatcher{err: errors.New("redis unavailable")}

		newTestScheduler(repo, dispatcher).runOnce(ctx)

		// The claim is reverted to scheduled so the next tick retries the enqueue
		assert.Equal(t, []statusChange{
			{id: 1, to: models.CampaignStatusQueued},
			{id: 1, to: models.CampaignStatusScheduled},
		}, repo.transitioned)
		assert.Equal(t, "redis unavailable", repo.lastErrors[1])
	})

	t.Run("list failure aborts the scan", func(t *testing.T) {
		repo := &fakeCampaignRepo{listErr: errors.New("timeout")}
		dispatcher := &fakeDispatcher{}

		newTestScheduler(repo, dispatcher).runOnce(ctx)

		assert.Empty(t, dispatcher.calls)
	})

	t.Run("overlapping tick is skipped", func(t *testing.T) {
		repo := &fakeCampaignRepo{}
		s := newTestScheduler(repo, &fakeDispatcher{})

		s.running.Store(true)
		s.runOnce(ctx)

		assert.Equal(t, int32(0), repo.listCalls.Load())
	})

	t.Run("batch limit is respected", func(t *testing.T) {
		repo := &fakeCampaignRepo{}
		for i := uint(1); i <= 5; i++ {
			c := pendingCampaign(i, 10)
			repo.due = append(repo.due, c)
			if repo.byID == nil {
				repo.byID = map[uint]*models.Campaign{}
			}
			repo.byID[i] = c
		}
		dispatcher := &fakeDispatcher{}
		s := NewCampaignScheduler(repo, dispatcher, testLogger(), time.Minute, 3)

		s.runOnce(ctx)

		assert.Len(t, dispatcher.calls, 3)
	})
}

func TestCampaignSchedulerStartStop(t *testing.T) {
	repo := &fakeCampaignRepo{}
	s := NewCampaignScheduler(repo, &fakeDispatcher{}, testLogger(), time.Hour, 10)

	stop := s.Start(context.Background())

	// The loop runs an immediate scan before waiting on the ticker
	assert.Eventually(t, func() bool { return repo.listCalls.Load() >= 1 }, time.Second, 10*time.Millisecond)

	stop()
}
