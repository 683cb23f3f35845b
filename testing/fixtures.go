package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/zapflowbr/zapflow/models"
	"github.com/zapflowbr/zapflow/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	db *TestDB
}

// NewTestFixtures creates a new test fixtures helper
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{db: db}
}

// CreateTestNumber creates a connected, enabled channel number for a user
func (tf *TestFixtures) CreateTestNumber(userID uint) (*models.Number, error) {
	number := &models.Number{
		UUID:            uuid.New(),
		UserID:          userID,
		InstanceName:    fmt.Sprintf("instance-%d-%d", userID, rand.Intn(100000)),
		OwnerPhone:      randomPhone(),
		Enabled:         utils.ToPtr(true),
		ConnectionState: models.ConnectionStateConnected,
		CreatedAt:       utils.UTCNow(),
		UpdatedAt:       utils.UTCNow(),
	}
	if err := tf.db.DB.Create(number).Error; err != nil {
		return nil, fmt.Errorf("failed to create test number: %w", err)
	}
	return number, nil
}

// CreateTestContact creates an active contact tied to a number
func (tf *TestFixtures) CreateTestContact(userID uint, number *models.Number, labels ...string) (*models.Contact, error) {
	contact := &models.Contact{
		UserID:       userID,
		NumberID:     number.ID,
		CelOwner:     number.OwnerPhone,
		Phone:        randomPhone(),
		Name:         fmt.Sprintf("Contato %d", rand.Intn(100000)),
		Labels:       pq.StringArray(labels),
		LabelSummary: joinLabels(labels),
		Status:       models.ContactStatusActive,
		CreatedAt:    utils.UTCNow(),
	}
	if err := tf.db.DB.Create(contact).Error; err != nil {
		return nil, fmt.Errorf("failed to create test contact: %w", err)
	}
	return contact, nil
}

// CreateTestLabelPublic creates a ready label-kind public
func (tf *TestFixtures) CreateTestLabelPublic(userID uint, labels ...string) (*models.Public, error) {
	public := &models.Public{
		UUID:       uuid.New(),
		UserID:     userID,
		Name:       fmt.Sprintf("Public %d", rand.Intn(100000)),
		Kind:       models.PublicKindLabel,
		Status:     models.PublicStatusReady,
		Labels:     pq.StringArray(labels),
		LabelMatch: models.LabelMatchAny,
		CreatedAt:  utils.UTCNow(),
	}
	if err := tf.db.DB.Create(public).Error; err != nil {
		return nil, fmt.Errorf("failed to create test public: %w", err)
	}
	return public, nil
}

// CreateTestCampaign creates a pending campaign over the given public and number
func (tf *TestFixtures) CreateTestCampaign(userID uint, public *models.Public, number *models.Number, scheduleAt *time.Time) (*models.Campaign, error) {
	campaign := &models.Campaign{
		UUID:     uuid.New(),
		UserID:   userID,
		PublicID: public.ID,
		NumberID: number.ID,
		Variants: models.MessageVariants{
			{Body: "Olá {{nome}}, tudo bem?"},
			{Body: "Oi {{nome}}! Temos novidades."},
		},
		ScheduleAt:    scheduleAt,
		TotalContacts: public.TotalContacts,
		CreatedAt:     utils.UTCNow(),
	}
	if scheduleAt != nil {
		campaign.Status = models.CampaignStatusScheduled
	} else {
		campaign.Status = models.CampaignStatusPending
	}
	if err := tf.db.DB.Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to create test campaign: %w", err)
	}
	return campaign, nil
}

// CreateTestMessage creates a pending message row for a campaign
func (tf *TestFixtures) CreateTestMessage(campaign *models.Campaign, contact *models.Contact, jobID string) (*models.Message, error) {
	message := &models.Message{
		CampaignID: campaign.ID,
		UserID:     campaign.UserID,
		ContactID:  &contact.ID,
		Phone:      contact.Phone,
		Body:       campaign.Variants[0].Body,
		Status:     models.MessageStatusPending,
		JobID:      jobID,
		CreatedAt:  utils.UTCNow(),
	}
	if err := tf.db.DB.Create(message).Error; err != nil {
		return nil, fmt.Errorf("failed to create test message: %w", err)
	}
	return message, nil
}

// CreateTestSnapshot creates one materialized snapshot row for a public
func (tf *TestFixtures) CreateTestSnapshot(public *models.Public, contact *models.Contact) (*models.PublicContact, error) {
	row := &models.PublicContact{
		PublicID:  public.ID,
		Phone:     contact.Phone,
		Name:      contact.Name,
		ContactID: &contact.ID,
		CreatedAt: utils.UTCNow(),
	}
	if err := tf.db.DB.Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to create test snapshot row: %w", err)
	}
	return row, nil
}

// randomPhone returns a normalized BR mobile phone (55 + DDD + 9 digits)
func randomPhone() string {
	return fmt.Sprintf("55119%08d", rand.Intn(100000000))
}

func joinLabels(labels []string) string {
	summary := ""
	for i, l := range labels {
		if i > 0 {
			summary += ", "
		}
		summary += l
	}
	return summary
}
