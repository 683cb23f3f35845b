package worker

import (
	"context"
	"fmt"
	"log"

	"github.com/zapflowbr/zapflow/app/queue"
	"github.com/zapflowbr/zapflow/app/services"
	businessflow "github.com/zapflowbr/zapflow/business_flow"
	"github.com/zapflowbr/zapflow/models"
	"github.com/zapflowbr/zapflow/repository"
	"github.com/zapflowbr/zapflow/utils"
	"gorm.io/gorm"
)

// CampaignProcessor turns one dispatch-campaign job into message rows and
// per-message send jobs. Dispatch is guarded by an idempotency token and a
// conditional status claim so a redelivered or duplicated job never fans
// out a campaign twice.
type CampaignProcessor struct {
	campaignRepo repository.CampaignRepository
	publicRepo   repository.PublicRepository
	messageRepo  repository.MessageRepository
	resolver     businessflow.AudienceResolver
	dispatcher   queue.Dispatcher
	guard        DispatchGuard
	db           *gorm.DB
	logger       *log.Logger
}

// NewCampaignProcessor creates a new campaign processor
func NewCampaignProcessor(
	campaignRepo repository.CampaignRepository,
	publicRepo repository.PublicRepository,
	messageRepo repository.MessageRepository,
	resolver businessflow.AudienceResolver,
	dispatcher queue.Dispatcher,
	guard DispatchGuard,
	db *gorm.DB,
	logger *log.Logger,
) *CampaignProcessor {
	if logger == nil {
		logger = log.Default()
	}
	return &CampaignProcessor{
		campaignRepo: campaignRepo,
		publicRepo:   publicRepo,
		messageRepo:  messageRepo,
		resolver:     resolver,
		dispatcher:   dispatcher,
		guard:        guard,
		db:           db,
		logger:       logger,
	}
}

// Process handles one delivery of a dispatch-campaign job
func (p *CampaignProcessor) Process(ctx context.Context, job *queue.Job) queue.Outcome {
	var payload queue.CampaignJob
	if err := job.Decode(&payload); err != nil {
		return queue.Fatal(fmt.Errorf("undecodable campaign job: %w", err))
	}

	guardKey := fmt.Sprintf("campaign:%d", payload.CampaignID)
	acquired, err := p.guard.Acquire(ctx, guardKey, job.ID)
	if err != nil {
		return p.retryOrFail(ctx, job, payload.CampaignID, err)
	}
	if !acquired {
		return queue.Discard("campaign dispatch already owned by another job")
	}

	out := p.dispatch(ctx, job, payload.CampaignID)

	// Retries keep the guard so duplicate jobs stay locked out between
	// attempts; terminal outcomes hand the key back so a recreated or
	// manually requeued campaign is not blocked until the TTL runs out
	if out.Terminal() {
		if err := p.guard.Release(ctx, guardKey); err != nil {
			p.logger.Printf("worker: release dispatch guard %s failed: %v", guardKey, err)
		}
	}
	return out
}

// dispatch runs the guarded part of a campaign delivery
func (p *CampaignProcessor) dispatch(ctx context.Context, job *queue.Job, campaignID uint) queue.Outcome {
	// Claim the campaign. Accepting active lets a redelivered job resume a
	// dispatch its previous attempt left half-done.
	claimable := []models.CampaignStatus{models.CampaignStatusQueued, models.CampaignStatusActive}
	moved, err := p.campaignRepo.TransitionStatus(ctx, campaignID, claimable, models.CampaignStatusActive)
	if err != nil {
		return p.retryOrFail(ctx, job, campaignID, err)
	}

	campaign, err := p.campaignRepo.ByID(ctx, campaignID)
	if err != nil {
		return p.retryOrFail(ctx, job, campaignID, err)
	}
	if campaign == nil {
		return queue.Fatal(fmt.Errorf("campaign %d not found", campaignID))
	}
	if campaign.Status == models.CampaignStatusCanceled {
		return queue.Discard("campaign canceled before dispatch")
	}
	if !moved {
		return queue.Discard(fmt.Sprintf("campaign not dispatchable in status %s", campaign.Status))
	}

	messages, err := p.buildMessages(ctx, job, campaign)
	if err != nil {
		if businessflow.IsPublicCanceled(err) {
			p.markCanceled(ctx, campaign.ID)
			return queue.Discard("public canceled during dispatch")
		}
		return p.retryOrFail(ctx, job, campaign.ID, err)
	}

	// Cancellation checkpoint between audience resolution and fan-out
	current, err := p.campaignRepo.ByID(ctx, campaign.ID)
	if err != nil {
		return p.retryOrFail(ctx, job, campaign.ID, err)
	}
	if current == nil || current.Status == models.CampaignStatusCanceled {
		return queue.Discard("campaign canceled during dispatch")
	}

	for _, m := range messages {
		sendJob := queue.MessageJob{
			MessageID:  m.ID,
			CampaignID: campaign.ID,
			UserID:     campaign.UserID,
			NumberID:   campaign.NumberID,
			Phone:      m.Phone,
			Body:       m.Body,
		}
		if _, err := p.dispatcher.Enqueue(ctx, queue.QueueMessages, queue.JobTypeSendMessage, sendJob); err != nil {
			return p.retryOrFail(ctx, job, campaign.ID, fmt.Errorf("failed to enqueue message %d: %w", m.ID, err))
		}
	}

	moved, err = p.campaignRepo.TransitionStatus(ctx, campaign.ID,
		[]models.CampaignStatus{models.CampaignStatusActive}, models.CampaignStatusCompleted)
	if err != nil {
		return p.retryOrFail(ctx, job, campaign.ID, err)
	}
	if !moved {
		// Canceled while the fan-out ran; the pending sends check again
		return queue.Discard("campaign canceled during fan-out")
	}

	p.logger.Printf("worker: campaign id=%d dispatched %d messages", campaign.ID, len(messages))
	return queue.Success()
}

// buildMessages resolves the audience and writes one message row per
// recipient, cycling through the campaign's variants. A redelivered job
// whose previous attempt already created the rows reuses them.
func (p *CampaignProcessor) buildMessages(ctx context.Context, job *queue.Job, campaign *models.Campaign) ([]*models.Message, error) {
	existing, err := p.messageRepo.CountByJobID(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return p.messageRepo.ByFilter(ctx, models.MessageFilter{CampaignID: &campaign.ID}, "id ASC", 0, 0)
	}

	public, err := p.publicRepo.ByID(ctx, campaign.PublicID)
	if err != nil {
		return nil, err
	}
	if public == nil {
		return nil, fmt.Errorf("public %d not found", campaign.PublicID)
	}
	if public.Canceled() {
		return nil, businessflow.ErrPublicCanceled
	}

	recipients, err := p.resolver.Resolve(ctx, public)
	if err != nil {
		return nil, err
	}

	messages := make([]*models.Message, 0, len(recipients))
	for i, rec := range recipients {
		variant := campaign.Variants[i%len(campaign.Variants)]
		messages = append(messages, &models.Message{
			CampaignID: campaign.ID,
			UserID:     campaign.UserID,
			ContactID:  rec.ContactID,
			Phone:      rec.Phone,
			Body:       variant.Body,
			Status:     models.MessageStatusPending,
			JobID:      job.ID,
		})
	}

	if len(messages) > 0 {
		err = repository.WithTransaction(ctx, p.db, func(txCtx context.Context) error {
			return p.messageRepo.SaveBatch(txCtx, messages)
		})
		if err != nil {
			return nil, err
		}
	}
	return messages, nil
}

// retryOrFail asks for a retry, stamping the campaign failed when this was
// the last attempt
func (p *CampaignProcessor) retryOrFail(ctx context.Context, job *queue.Job, campaignID uint, err error) queue.Outcome {
	if job.Attempt >= job.MaxAttempts {
		if serr := p.campaignRepo.SetLastError(ctx, campaignID, err.Error()); serr != nil {
			p.logger.Printf("worker: set last error for campaign id=%d failed: %v", campaignID, serr)
		}
		if _, terr := p.campaignRepo.TransitionStatus(ctx, campaignID,
			[]models.CampaignStatus{models.CampaignStatusQueued, models.CampaignStatusActive},
			models.CampaignStatusFailed); terr != nil {
			p.logger.Printf("worker: mark campaign id=%d failed errored: %v", campaignID, terr)
		}
	}
	return queue.Retry(err)
}

func (p *CampaignProcessor) markCanceled(ctx context.Context, campaignID uint) {
	if _, err := p.campaignRepo.TransitionStatus(ctx, campaignID,
		[]models.CampaignStatus{models.CampaignStatusActive},
		models.CampaignStatusCanceled); err != nil {
		p.logger.Printf("worker: mark campaign id=%d canceled errored: %v", campaignID, err)
	}
}

// PublicProcessor materializes simplified and custom publics
type PublicProcessor struct {
	flow   businessflow.PublicResolutionFlow
	logger *log.Logger
}

// NewPublicProcessor creates a new public processor
func NewPublicProcessor(flow businessflow.PublicResolutionFlow, logger *log.Logger) *PublicProcessor {
	if logger == nil {
		logger = log.Default()
	}
	return &PublicProcessor{flow: flow, logger: logger}
}

// ProcessSimplified handles one delivery on the simplified-public queue
func (p *PublicProcessor) ProcessSimplified(ctx context.Context, job *queue.Job) queue.Outcome {
	var payload queue.SimplifiedPublicJob
	if err := job.Decode(&payload); err != nil {
		return queue.Fatal(fmt.Errorf("undecodable public job: %w", err))
	}
	return p.resolve(ctx, job, payload.PublicID, p.flow.ResolveSimplified)
}

// ProcessCustom handles one delivery on the custom-public queue
func (p *PublicProcessor) ProcessCustom(ctx context.Context, job *queue.Job) queue.Outcome {
	var payload queue.CustomPublicJob
	if err := job.Decode(&payload); err != nil {
		return queue.Fatal(fmt.Errorf("undecodable public job: %w", err))
	}
	return p.resolve(ctx, job, payload.PublicID, p.flow.ResolveCustom)
}

func (p *PublicProcessor) resolve(ctx context.Context, job *queue.Job, publicID uint, fn func(context.Context, uint) error) queue.Outcome {
	err := fn(ctx, publicID)
	if err == nil {
		p.logger.Printf("worker: public id=%d resolved", publicID)
		return queue.Success()
	}
	if businessflow.IsPublicCanceled(err) {
		return queue.Discard("public canceled")
	}
	if job.Attempt >= job.MaxAttempts {
		if merr := p.flow.MarkResolutionFailed(ctx, publicID, err.Error()); merr != nil {
			p.logger.Printf("worker: mark public id=%d failed errored: %v", publicID, merr)
		}
	}
	return queue.Retry(err)
}

// MessageProcessor delivers one rendered message through the channel
type MessageProcessor struct {
	messageRepo  repository.MessageRepository
	campaignRepo repository.CampaignRepository
	numberRepo   repository.NumberRepository
	sender       services.ChannelSender
	logger       *log.Logger
}

// NewMessageProcessor creates a new message processor
func NewMessageProcessor(
	messageRepo repository.MessageRepository,
	campaignRepo repository.CampaignRepository,
	numberRepo repository.NumberRepository,
	sender services.ChannelSender,
	logger *log.Logger,
) *MessageProcessor {
	if logger == nil {
		logger = log.Default()
	}
	return &MessageProcessor{
		messageRepo:  messageRepo,
		campaignRepo: campaignRepo,
		numberRepo:   numberRepo,
		sender:       sender,
		logger:       logger,
	}
}

// Process handles one delivery of a send-message job
func (p *MessageProcessor) Process(ctx context.Context, job *queue.Job) queue.Outcome {
	var payload queue.MessageJob
	if err := job.Decode(&payload); err != nil {
		return queue.Fatal(fmt.Errorf("undecodable message job: %w", err))
	}

	message, err := p.messageRepo.ByID(ctx, payload.MessageID)
	if err != nil {
		return queue.Retry(err)
	}
	if message == nil {
		return queue.Fatal(fmt.Errorf("message %d not found", payload.MessageID))
	}
	if message.Status == models.MessageStatusSent {
		return queue.Discard("message already sent")
	}

	// Pending sends honor a cancellation that arrived after fan-out
	campaign, err := p.campaignRepo.ByID(ctx, payload.CampaignID)
	if err != nil {
		return queue.Retry(err)
	}
	if campaign != nil && campaign.Status == models.CampaignStatusCanceled {
		if merr := p.messageRepo.MarkFailed(ctx, message.ID, "campaign canceled"); merr != nil {
			p.logger.Printf("worker: mark message id=%d failed errored: %v", message.ID, merr)
		}
		return queue.Discard("campaign canceled")
	}

	number, err := p.numberRepo.ByID(ctx, payload.NumberID)
	if err != nil {
		return queue.Retry(err)
	}
	if number == nil {
		return queue.Fatal(fmt.Errorf("number %d not found", payload.NumberID))
	}

	if _, err := p.sender.SendText(ctx, number.InstanceName, payload.Phone, payload.Body); err != nil {
		if job.Attempt >= job.MaxAttempts {
			if merr := p.messageRepo.MarkFailed(ctx, message.ID, err.Error()); merr != nil {
				p.logger.Printf("worker: mark message id=%d failed errored: %v", message.ID, merr)
			}
		}
		return queue.Retry(fmt.Errorf("channel send failed: %w", err))
	}

	if err := p.messageRepo.MarkSent(ctx, message.ID, utils.UTCNow()); err != nil {
		// The message went out; retrying would send it twice
		p.logger.Printf("worker: mark message id=%d sent errored: %v", message.ID, err)
	}
	return queue.Success()
}
