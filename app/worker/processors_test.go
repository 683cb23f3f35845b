package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zapflowbr/zapflow/app/queue"
	"github.com/zapflowbr/zapflow/app/services"
	businessflow "github.com/zapflowbr/zapflow/business_flow"
	"github.com/zapflowbr/zapflow/models"
)

// workerCampaignRepo applies conditional transitions against an in-memory campaign
type workerCampaignRepo struct {
	campaigns  map[uint]*models.Campaign
	lastErrors map[uint]string
}

func newWorkerCampaignRepo(campaigns ...*models.Campaign) *workerCampaignRepo {
	repo := &workerCampaignRepo{
		campaigns:  make(map[uint]*models.Campaign),
		lastErrors: make(map[uint]string),
	}
	for _, c := range campaigns {
		repo.campaigns[c.ID] = c
	}
	return repo
}

func (f *workerCampaignRepo) ByID(ctx context.Context, id uint) (*models.Campaign, error) {
	return f.campaigns[id], nil
}

func (f *workerCampaignRepo) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	return nil, nil
}

func (f *workerCampaignRepo) Save(ctx context.Context, entity *models.Campaign) error   { return nil }
func (f *workerCampaignRepo) SaveBatch(ctx context.Context, e []*models.Campaign) error { return nil }
func (f *workerCampaignRepo) Update(ctx context.Context, entity *models.Campaign) error { return nil }

func (f *workerCampaignRepo) Count(ctx context.Context, fl models.CampaignFilter) (int64, error) {
	return 0, nil
}

func (f *workerCampaignRepo) Exists(ctx context.Context, fl models.CampaignFilter) (bool, error) {
	return false, nil
}

func (f *workerCampaignRepo) ByUUID(ctx context.Context, uuid string) (*models.Campaign, error) {
	return nil, nil
}

func (f *workerCampaignRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error) {
	return nil, nil
}

func (f *workerCampaignRepo) TransitionStatus(ctx context.Context, id uint, from []models.CampaignStatus, to models.CampaignStatus) (bool, error) {
	campaign, ok := f.campaigns[id]
	if !ok {
		return false, nil
	}
	for _, status := range from {
		if campaign.Status == status {
			campaign.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (f *workerCampaignRepo) SetLastError(ctx context.Context, id uint, reason string) error {
	f.lastErrors[id] = reason
	return nil
}

// workerMessageRepo serves message rows and records outcome updates
type workerMessageRepo struct {
	messages     map[uint]*models.Message
	byJobID      map[string]int64
	markedSent   []uint
	markedFailed map[uint]string
}

func newWorkerMessageRepo(messages ...*models.Message) *workerMessageRepo {
	repo := &workerMessageRepo{
		messages:     make(map[uint]*models.Message),
		byJobID:      make(map[string]int64),
		markedFailed: make(map[uint]string),
	}
	for _, m := range messages {
		repo.messages[m.ID] = m
		repo.byJobID[m.JobID]++
	}
	return repo
}

func (f *workerMessageRepo) ByID(ctx context.Context, id uint) (*models.Message, error) {
	return f.messages[id], nil
}

func (f *workerMessageRepo) ByFilter(ctx context.Context, filter models.MessageFilter, orderBy string, limit, offset int) ([]*models.Message, error) {
	out := make([]*models.Message, 0, len(f.messages))
	for _, m := range f.messages {
		if filter.CampaignID != nil && m.CampaignID != *filter.CampaignID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *workerMessageRepo) Save(ctx context.Context, entity *models.Message) error   { return nil }
func (f *workerMessageRepo) SaveBatch(ctx context.Context, e []*models.Message) error { return nil }
func (f *workerMessageRepo) Update(ctx context.Context, entity *models.Message) error { return nil }

func (f *workerMessageRepo) Count(ctx context.Context, fl models.MessageFilter) (int64, error) {
	return 0, nil
}

func (f *workerMessageRepo) Exists(ctx context.Context, fl models.MessageFilter) (bool, error) {
	return false, nil
}

func (f *workerMessageRepo) MarkSent(ctx context.Context, id uint, at time.Time) error {
	f.markedSent = append(f.markedSent, id)
	return nil
}

func (f *workerMessageRepo) MarkFailed(ctx context.Context, id uint, reason string) error {
	f.markedFailed[id] = reason
	return nil
}

func (f *workerMessageRepo) CountByJobID(ctx context.Context, jobID string) (int64, error) {
	return f.byJobID[jobID], nil
}

// workerPublicRepo serves a single public
type workerPublicRepo struct {
	public *models.Public
}

func (f *workerPublicRepo) ByID(ctx context.Context, id uint) (*models.Public, error) {
	return f.public, nil
}

func (f *workerPublicRepo) ByFilter(ctx context.Context, filter models.PublicFilter, orderBy string, limit, offset int) ([]*models.Public, error) {
	return nil, nil
}

func (f *workerPublicRepo) Save(ctx context.Context, entity *models.Public) error   { return nil }
func (f *workerPublicRepo) SaveBatch(ctx context.Context, e []*models.Public) error { return nil }
func (f *workerPublicRepo) Update(ctx context.Context, entity *models.Public) error { return nil }

func (f *workerPublicRepo) Count(ctx context.Context, fl models.PublicFilter) (int64, error) {
	return 0, nil
}

func (f *workerPublicRepo) Exists(ctx context.Context, fl models.PublicFilter) (bool, error) {
	return false, nil
}

func (f *workerPublicRepo) ByUUID(ctx context.Context, uuid string) (*models.Public, error) {
	return f.public, nil
}

func (f *workerPublicRepo) TransitionStatus(ctx context.Context, id uint, from []models.PublicStatus, to models.PublicStatus) (bool, error) {
	return true, nil
}

func (f *workerPublicRepo) SetResolved(ctx context.Context, id uint, totalContacts int) error {
	return nil
}

func (f *workerPublicRepo) SetLastError(ctx context.Context, id uint, reason string) error {
	return nil
}

// workerNumberRepo serves a single number
type workerNumberRepo struct {
	number *models.Number
}

func (f *workerNumberRepo) ByID(ctx context.Context, id uint) (*models.Number, error) {
	return f.number, nil
}

func (f *workerNumberRepo) ByFilter(ctx context.Context, filter models.NumberFilter, orderBy string, limit, offset int) ([]*models.Number, error) {
	return nil, nil
}

func (f *workerNumberRepo) Save(ctx context.Context, entity *models.Number) error   { return nil }
func (f *workerNumberRepo) SaveBatch(ctx context.Context, e []*models.Number) error { return nil }
func (f *workerNumberRepo) Update(ctx context.Context, entity *models.Number) error { return nil }

func (f *workerNumberRepo) Count(ctx context.Context, fl models.NumberFilter) (int64, error) {
	return 0, nil
}

func (f *workerNumberRepo) Exists(ctx context.Context, fl models.NumberFilter) (bool, error) {
	return false, nil
}

func (f *workerNumberRepo) ByUUID(ctx context.Context, uuid string) (*models.Number, error) {
	return f.number, nil
}

func (f *workerNumberRepo) ListSyncable(ctx context.Context) ([]*models.Number, error) {
	return nil, nil
}

func (f *workerNumberRepo) MarkSynced(ctx context.Context, id uint, at time.Time) error { return nil }

// fakeResolver returns a fixed recipient list
type fakeResolver struct {
	recipients []businessflow.Recipient
	err        error
}

func (f *fakeResolver) Resolve(ctx context.Context, public *models.Public) ([]businessflow.Recipient, error) {
	return f.recipients, f.err
}

func (f *fakeResolver) Count(ctx context.Context, public *models.Public) (int, error) {
	return len(f.recipients), f.err
}

// fakeGuard controls dispatch ownership and records released keys
type fakeGuard struct {
	acquired bool
	err      error
	released []string
}

func (f *fakeGuard) Acquire(ctx context.Context, key, token string) (bool, error) {
	return f.acquired, f.err
}

func (f *fakeGuard) Release(ctx context.Context, key string) error {
	f.released = append(f.released, key)
	return nil
}

// fakeJobDispatcher records enqueued jobs
type fakeJobDispatcher struct {
	calls []enqueuedJob
	err   error
}

type enqueuedJob struct {
	queueName string
	jobType   string
	payload   any
}

func (f *fakeJobDispatcher) Enqueue(ctx context.Context, queueName, jobType string, payload any) (string, error) {
	f.calls = append(f.calls, enqueuedJob{queueName: queueName, jobType: jobType, payload: payload})
	if f.err != nil {
		return "", f.err
	}
	return "job-next", nil
}

// fakeResolutionFlow records resolution calls
type fakeResolutionFlow struct {
	err          error
	resolved     []uint
	markedFailed map[uint]string
}

func (f *fakeResolutionFlow) ResolveSimplified(ctx context.Context, publicID uint) error {
	f.resolved = append(f.resolved, publicID)
	return f.err
}

func (f *fakeResolutionFlow) ResolveCustom(ctx context.Context, publicID uint) error {
	f.resolved = append(f.resolved, publicID)
	return f.err
}

func (f *fakeResolutionFlow) MarkResolutionFailed(ctx context.Context, publicID uint, reason string) error {
	if f.markedFailed == nil {
		f.markedFailed = make(map[uint]string)
	}
	f.markedFailed[publicID] = reason
	return nil
}

func workerLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func makeJob(t *testing.T, jobType string, payload any, attempt, maxAttempts int) *queue.Job {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &queue.Job{
		ID:          "job-1",
		Type:        jobType,
		Payload:     raw,
		Attempt:     attempt,
		MaxAttempts: maxAttempts,
	}
}

// outcomeStep classifies an outcome through the queue's own step logic,
// on a first attempt with retries to spare
func outcomeStep(out queue.Outcome) queue.StepKind {
	job := &queue.Job{Attempt: 1, MaxAttempts: 99}
	policy := queue.Policy{MaxAttempts: 99, BackoffBase: time.Second, BackoffFactor: 2, BackoffCap: time.Minute}
	return queue.NextStep(job, out, policy).Kind
}

func dispatchableCampaign() *models.Campaign {
	return &models.Campaign{
		ID:       1,
		UserID:   10,
		PublicID: 20,
		NumberID: 30,
		Status:   models.CampaignStatusQueued,
		Variants: models.MessageVariants{{Body: "Olá {{nome}}"}},
	}
}

func readyPublic() *models.Public {
	return &models.Public{
		ID:     20,
		UserID: 10,
		Kind:   models.PublicKindLabel,
		Status: models.PublicStatusReady,
	}
}

func TestCampaignProcessorProcess(t *testing.T) {
	ctx := context.Background()

	newProcessor := func(campaignRepo *workerCampaignRepo, messageRepo *workerMessageRepo, publicRepo *workerPublicRepo, resolver *fakeResolver, dispatcher *fakeJobDispatcher, guard *fakeGuard) *CampaignProcessor {
		return NewCampaignProcessor(campaignRepo, publicRepo, messageRepo, resolver, dispatcher, guard, nil, workerLogger())
	}

	t.Run("undecodable payload dead-letters", func(t *testing.T) {
		p := newProcessor(newWorkerCampaignRepo(), newWorkerMessageRepo(), &workerPublicRepo{}, &fakeResolver{}, &fakeJobDispatcher{}, &fakeGuard{acquired: true})

		job := &queue.Job{ID: "job-1", Payload: json.RawMessage(`{broken`), Attempt: 1, MaxAttempts: 5}
		out := p.Process(ctx, job)

		assert.Equal(t, queue.StepDeadLetter, outcomeStep(out))
	})

	t.Run("duplicate job is discarded by the guard", func(t *testing.T) {
		dispatcher := &fakeJobDispatcher{}
		guard := &fakeGuard{acquired: false}
		p := newProcessor(newWorkerCampaignRepo(dispatchableCampaign()), newWorkerMessageRepo(), &workerPublicRepo{public: readyPublic()}, &fakeResolver{}, dispatcher, guard)

		job := makeJob(t, queue.JobTypeDispatchCampaign, queue.CampaignJob{CampaignID: 1, UserID: 10}, 1, 5)
		out := p.Process(ctx, job)

		assert.Equal(t, queue.Discard("campaign dispatch already owned by another job"), out)
		assert.Empty(t, dispatcher.calls)
		// The losing job must not drop a guard it never owned
		assert.Empty(t, guard.released)
	})

	t.Run("canceled campaign is discarded", func(t *testing.T) {
		campaign := dispatchableCampaign()
		campaign.Status = models.CampaignStatusCanceled
		p := newProcessor(newWorkerCampaignRepo(campaign), newWorkerMessageRepo(), &workerPublicRepo{public: readyPublic()}, &fakeResolver{}, &fakeJobDispatcher{}, &fakeGuard{acquired: true})

		job := makeJob(t, queue.JobTypeDispatchCampaign, queue.CampaignJob{CampaignID: 1, UserID: 10}, 1, 5)
		out := p.Process(ctx, job)

		assert.Equal(t, queue.Discard("campaign canceled before dispatch"), out)
	})

	t.Run("redelivered job reuses existing message rows", func(t *testing.T) {
		campaign := dispatchableCampaign()
		campaign.Status = models.CampaignStatusActive
		messageRepo := newWorkerMessageRepo(
			&models.Message{ID: 100, CampaignID: 1, Phone: "5511987650001", Body: "Olá Maria", JobID: "job-1", Status: models.MessageStatusPending},
			&models.Message{ID: 101, CampaignID: 1, Phone: "5511987650002", Body: "Olá João", JobID: "job-1", Status: models.MessageStatusPending},
		)
		resolver := &fakeResolver{err: errors.New("resolver must not run on redelivery")}
		dispatcher := &fakeJobDispatcher{}
		repo := newWorkerCampaignRepo(campaign)
		guard := &fakeGuard{acquired: true}
		p := newProcessor(repo, messageRepo, &workerPublicRepo{public: readyPublic()}, resolver, dispatcher, guard)

		job := makeJob(t, queue.JobTypeDispatchCampaign, queue.CampaignJob{CampaignID: 1, UserID: 10}, 2, 5)
		out := p.Process(ctx, job)

		assert.Equal(t, queue.Success(), out)
		assert.Len(t, dispatcher.calls, 2)
		assert.Equal(t, queue.QueueMessages, dispatcher.calls[0].queueName)
		assert.Equal(t, queue.JobTypeSendMessage, dispatcher.calls[0].jobType)
		assert.Equal(t, models.CampaignStatusCompleted, campaign.Status)
		assert.Equal(t, []string{"campaign:1"}, guard.released)
	})

	t.Run("empty audience completes without fan-out", func(t *testing.T) {
		campaign := dispatchableCampaign()
		dispatcher := &fakeJobDispatcher{}
		p := newProcessor(newWorkerCampaignRepo(campaign), newWorkerMessageRepo(), &workerPublicRepo{public: readyPublic()}, &fakeResolver{}, dispatcher, &fakeGuard{acquired: true})

		job := makeJob(t, queue.JobTypeDispatchCampaign, queue.CampaignJob{CampaignID: 1, UserID: 10}, 1, 5)
		out := p.Process(ctx, job)

		assert.Equal(t, queue.Success(), out)
		assert.Empty(t, dispatcher.calls)
		assert.Equal(t, models.CampaignStatusCompleted, campaign.Status)
	})

	t.Run("canceled public cancels the campaign", func(t *testing.T) {
		campaign := dispatchableCampaign()
		public := readyPublic()
		public.Status = models.PublicStatusCanceled
		p := newProcessor(newWorkerCampaignRepo(campaign), newWorkerMessageRepo(), &workerPublicRepo{public: public}, &fakeResolver{}, &fakeJobDispatcher{}, &fakeGuard{acquired: true})

		job := makeJob(t, queue.JobTypeDispatchCampaign, queue.CampaignJob{CampaignID: 1, UserID: 10}, 1, 5)
		out := p.Process(ctx, job)

		assert.Equal(t, queue.Discard("public canceled during dispatch"), out)
		assert.Equal(t, models.CampaignStatusCanceled, campaign.Status)
	})

	t.Run("exhausted retries mark the campaign failed", func(t *testing.T) {
		campaign := dispatchableCampaign()
		repo := newWorkerCampaignRepo(campaign)
		p := newProcessor(repo, newWorkerMessageRepo(), &workerPublicRepo{public: readyPublic()}, &fakeResolver{}, &fakeJobDispatcher{}, &fakeGuard{err: errors.New("redis unavailable")})

		job := makeJob(t, queue.JobTypeDispatchCampaign, queue.CampaignJob{CampaignID: 1, UserID: 10}, 5, 5)
		out := p.Process(ctx, job)

		assert.Equal(t, queue.Retry(errors.New("redis unavailable")), out)
		assert.Contains(t, repo.lastErrors[1], "redis unavailable")
		assert.Equal(t, models.CampaignStatusFailed, campaign.Status)
	})

	t.Run("retry keeps the guard held", func(t *testing.T) {
		campaign := dispatchableCampaign()
		guard := &fakeGuard{acquired: true}
		p := newProcessor(newWorkerCampaignRepo(campaign), newWorkerMessageRepo(), &workerPublicRepo{public: readyPublic()}, &fakeResolver{err: errors.New("connection reset")}, &fakeJobDispatcher{}, guard)

		job := makeJob(t, queue.JobTypeDispatchCampaign, queue.CampaignJob{CampaignID: 1, UserID: 10}, 1, 5)
		out := p.Process(ctx, job)

		assert.Equal(t, queue.StepRetry, outcomeStep(out))
		// The redelivery re-enters with the same job id, so the key stays taken
		assert.Empty(t, guard.released)
	})

	t.Run("terminal discard releases the guard", func(t *testing.T) {
		campaign := dispatchableCampaign()
		campaign.Status = models.CampaignStatusCanceled
		guard := &fakeGuard{acquired: true}
		p := newProcessor(newWorkerCampaignRepo(campaign), newWorkerMessageRepo(), &workerPublicRepo{public: readyPublic()}, &fakeResolver{}, &fakeJobDispatcher{}, guard)

		job := makeJob(t, queue.JobTypeDispatchCampaign, queue.CampaignJob{CampaignID: 1, UserID: 10}, 1, 5)
		out := p.Process(ctx, job)

		assert.Equal(t, queue.Discard("campaign canceled before dispatch"), out)
		assert.Equal(t, []string{"campaign:1"}, guard.released)
	})
}

func TestPublicProcessor(t *testing.T) {
	ctx := context.Background()

	t.Run("successful resolution", func(t *testing.T) {
		flow := &fakeResolutionFlow{}
		p := NewPublicProcessor(flow, workerLogger())

		job := makeJob(t, queue.JobTypeResolvePublic, queue.SimplifiedPublicJob{PublicID: 20, UserID: 10}, 1, 4)
		out := p.ProcessSimplified(ctx, job)

		assert.Equal(t, queue.Success(), out)
		assert.Equal(t, []uint{20}, flow.resolved)
	})

	t.Run("canceled public is discarded", func(t *testing.T) {
		flow := &fakeResolutionFlow{err: businessflow.ErrPublicCanceled}
		p := NewPublicProcessor(flow, workerLogger())

		job := makeJob(t, queue.JobTypeResolvePublic, queue.CustomPublicJob{PublicID: 20, UserID: 10}, 1, 4)
		out := p.ProcessCustom(ctx, job)

		assert.Equal(t, queue.Discard("public canceled"), out)
		assert.Empty(t, flow.markedFailed)
	})

	t.Run("retries before the last attempt", func(t *testing.T) {
		flow := &fakeResolutionFlow{err: errors.New("file missing")}
		p := NewPublicProcessor(flow, workerLogger())

		job := makeJob(t, queue.JobTypeResolvePublic, queue.CustomPublicJob{PublicID: 20, UserID: 10}, 2, 4)
		out := p.ProcessCustom(ctx, job)

		assert.Equal(t, queue.StepRetry, outcomeStep(out))
		assert.Empty(t, flow.markedFailed)
	})

	t.Run("exhausted retries mark the public failed", func(t *testing.T) {
		flow := &fakeResolutionFlow{err: errors.New("file missing")}
		p := NewPublicProcessor(flow, workerLogger())

		job := makeJob(t, queue.JobTypeResolvePublic, queue.SimplifiedPublicJob{PublicID: 20, UserID: 10}, 4, 4)
		out := p.ProcessSimplified(ctx, job)

		assert.Equal(t, queue.StepRetry, outcomeStep(out))
		assert.Equal(t, "file missing", flow.markedFailed[20])
	})
}

func TestMessageProcessorProcess(t *testing.T) {
	ctx := context.Background()

	payload := queue.MessageJob{
		MessageID:  100,
		CampaignID: 1,
		UserID:     10,
		NumberID:   30,
		Phone:      "5511987650001",
		Body:       "Olá Maria",
	}

	newProcessor := func(messageRepo *workerMessageRepo, campaignRepo *workerCampaignRepo, numberRepo *workerNumberRepo, sender services.ChannelSender) *MessageProcessor {
		return NewMessageProcessor(messageRepo, campaignRepo, numberRepo, sender, workerLogger())
	}

	activeCampaign := func() *models.Campaign {
		c := dispatchableCampaign()
		c.Status = models.CampaignStatusActive
		return c
	}

	pendingMessage := func() *models.Message {
		return &models.Message{ID: 100, CampaignID: 1, Phone: "5511987650001", Body: "Olá Maria", Status: models.MessageStatusPending, JobID: "job-0"}
	}

	connectedNumber := func() *models.Number {
		return &models.Number{ID: 30, UserID: 10, InstanceName: "zap-instance-30"}
	}

	t.Run("delivers through the channel and marks sent", func(t *testing.T) {
		messageRepo := newWorkerMessageRepo(pendingMessage())
		sender := services.NewMockChannelSender()
		p := newProcessor(messageRepo, newWorkerCampaignRepo(activeCampaign()), &workerNumberRepo{number: connectedNumber()}, sender)

		out := p.Process(ctx, makeJob(t, queue.JobTypeSendMessage, payload, 1, 3))

		assert.Equal(t, queue.Success(), out)
		require.Len(t, sender.SentMessages, 1)
		assert.Equal(t, "zap-instance-30", sender.SentMessages[0].InstanceName)
		assert.Equal(t, "5511987650001", sender.SentMessages[0].Phone)
		assert.Equal(t, "Olá Maria", sender.SentMessages[0].Body)
		assert.Equal(t, []uint{100}, messageRepo.markedSent)
	})

	t.Run("already sent message is discarded", func(t *testing.T) {
		sent := pendingMessage()
		sent.Status = models.MessageStatusSent
		sender := services.NewMockChannelSender()
		p := newProcessor(newWorkerMessageRepo(sent), newWorkerCampaignRepo(activeCampaign()), &workerNumberRepo{number: connectedNumber()}, sender)

		out := p.Process(ctx, makeJob(t, queue.JobTypeSendMessage, payload, 2, 3))

		assert.Equal(t, queue.Discard("message already sent"), out)
		assert.Empty(t, sender.SentMessages)
	})

	t.Run("canceled campaign fails the pending send", func(t *testing.T) {
		campaign := activeCampaign()
		campaign.Status = models.CampaignStatusCanceled
		messageRepo := newWorkerMessageRepo(pendingMessage())
		sender := services.NewMockChannelSender()
		p := newProcessor(messageRepo, newWorkerCampaignRepo(campaign), &workerNumberRepo{number: connectedNumber()}, sender)

		out := p.Process(ctx, makeJob(t, queue.JobTypeSendMessage, payload, 1, 3))

		assert.Equal(t, queue.Discard("campaign canceled"), out)
		assert.Equal(t, "campaign canceled", messageRepo.markedFailed[100])
		assert.Empty(t, sender.SentMessages)
	})

	t.Run("missing message dead-letters", func(t *testing.T) {
		p := newProcessor(newWorkerMessageRepo(), newWorkerCampaignRepo(activeCampaign()), &workerNumberRepo{number: connectedNumber()}, services.NewMockChannelSender())

		out := p.Process(ctx, makeJob(t, queue.JobTypeSendMessage, payload, 1, 3))

		assert.Equal(t, queue.StepDeadLetter, outcomeStep(out))
	})

	t.Run("send failure retries without marking failed", func(t *testing.T) {
		messageRepo := newWorkerMessageRepo(pendingMessage())
		sender := services.NewMockChannelSender()
		sender.FailWith = errors.New("instance disconnected")
		p := newProcessor(messageRepo, newWorkerCampaignRepo(activeCampaign()), &workerNumberRepo{number: connectedNumber()}, sender)

		out := p.Process(ctx, makeJob(t, queue.JobTypeSendMessage, payload, 1, 3))

		assert.Equal(t, queue.StepRetry, outcomeStep(out))
		assert.Empty(t, messageRepo.markedFailed)
	})

	t.Run("send failure on the last attempt marks the message failed", func(t *testing.T) {
		messageRepo := newWorkerMessageRepo(pendingMessage())
		sender := services.NewMockChannelSender()
		sender.FailWith = errors.New("instance disconnected")
		p := newProcessor(messageRepo, newWorkerCampaignRepo(activeCampaign()), &workerNumberRepo{number: connectedNumber()}, sender)

		out := p.Process(ctx, makeJob(t, queue.JobTypeSendMessage, payload, 3, 3))

		assert.Equal(t, queue.StepRetry, outcomeStep(out))
		assert.Equal(t, "instance disconnected", messageRepo.markedFailed[100])
	})
}
