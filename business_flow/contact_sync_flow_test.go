package businessflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapflowbr/zapflow/app/services"
	"github.com/zapflowbr/zapflow/models"
)

func TestContactSyncFlowSyncNumber(t *testing.T) {
	ctx := context.Background()

	number := importTestNumber(10)
	number.InstanceName = "inst-7"

	t.Run("imports unknown contacts and stamps the sync time", func(t *testing.T) {
		puller := services.NewMockChannelSender()
		puller.Contacts[number.InstanceName] = []services.ChannelContact{
			{Phone: "5511987650001", Name: "Maria"},
			{Phone: "5511987650002", Name: "João"},
			{Phone: "5511987650003", Name: "Ana"},
		}
		contactRepo := &fakeContactRepo{
			existing: map[string]bool{"5511987650002": true},
		}
		numberRepo := &fakeNumberRepo{number: number}

		flow := NewContactSyncFlow(contactRepo, numberRepo, puller)
		report, err := flow.SyncNumber(ctx, number)
		require.NoError(t, err)

		assert.Equal(t, SyncReport{Total: 3, Imported: 2}, report)
		require.Len(t, contactRepo.saved, 2)
		first := contactRepo.saved[0]
		assert.Equal(t, number.UserID, first.UserID)
		assert.Equal(t, number.ID, first.NumberID)
		assert.Equal(t, number.OwnerPhone, first.CelOwner)
		assert.Equal(t, "5511987650001", first.Phone)
		assert.Equal(t, "Maria", first.Name)
		assert.Equal(t, models.ContactStatusActive, first.Status)
		assert.Equal(t, "5511987650003", contactRepo.saved[1].Phone)
		assert.Equal(t, []uint{number.ID}, numberRepo.synced)
	})

	t.Run("empty contact book still stamps the sync time", func(t *testing.T) {
		puller := services.NewMockChannelSender()
		contactRepo := &fakeContactRepo{}
		numberRepo := &fakeNumberRepo{number: number}

		flow := NewContactSyncFlow(contactRepo, numberRepo, puller)
		report, err := flow.SyncNumber(ctx, number)
		require.NoError(t, err)

		assert.Equal(t, SyncReport{Total: 0, Imported: 0}, report)
		assert.Empty(t, contactRepo.saved)
		assert.Equal(t, []uint{number.ID}, numberRepo.synced)
	})

	t.Run("pull failure propagates without touching the store", func(t *testing.T) {
		puller := services.NewMockChannelSender()
		puller.FailWith = errors.New("instance disconnected")
		contactRepo := &fakeContactRepo{}
		numberRepo := &fakeNumberRepo{number: number}

		flow := NewContactSyncFlow(contactRepo, numberRepo, puller)
		report, err := flow.SyncNumber(ctx, number)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "instance disconnected")

		assert.Equal(t, SyncReport{}, report)
		assert.Empty(t, contactRepo.saved)
		assert.Empty(t, numberRepo.synced)
	})
}
