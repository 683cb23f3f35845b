package businessflow

import (
	"context"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zapflowbr/zapflow/models"
)

// fakePublicContactRepo serves materialized snapshot rows for one public
type fakePublicContactRepo struct {
	rows []*models.PublicContact
	err  error
}

func (f *fakePublicContactRepo) ByID(ctx context.Context, id uint) (*models.PublicContact, error) {
	return nil, nil
}

func (f *fakePublicContactRepo) ByFilter(ctx context.Context, filter models.PublicContactFilter, orderBy string, limit, offset int) ([]*models.PublicContact, error) {
	return f.rows, f.err
}

func (f *fakePublicContactRepo) Save(ctx context.Context, entity *models.PublicContact) error {
	return nil
}

func (f *fakePublicContactRepo) SaveBatch(ctx context.Context, entities []*models.PublicContact) error {
	return nil
}

func (f *fakePublicContactRepo) Update(ctx context.Context, entity *models.PublicContact) error {
	return nil
}

func (f *fakePublicContactRepo) Count(ctx context.Context, fl models.PublicContactFilter) (int64, error) {
	return int64(len(f.rows)), f.err
}

func (f *fakePublicContactRepo) Exists(ctx context.Context, fl models.PublicContactFilter) (bool, error) {
	return len(f.rows) > 0, f.err
}

func (f *fakePublicContactRepo) ListByPublic(ctx context.Context, publicID uint) ([]*models.PublicContact, error) {
	return f.rows, f.err
}

func (f *fakePublicContactRepo) DeleteByPublic(ctx context.Context, publicID uint) error {
	return nil
}

func uintPtr(v uint) *uint { return &v }

func TestDedupeByPhone(t *testing.T) {
	tests := []struct {
		name     string
		input    []Recipient
		expected []string
	}{
		{
			name:     "no duplicates",
			input:    []Recipient{{Phone: "5511987650001"}, {Phone: "5511987650002"}},
			expected: []string{"5511987650001", "5511987650002"},
		},
		{
			name: "first occurrence wins",
			input: []Recipient{
				{Phone: "5511987650001", Name: "Maria"},
				{Phone: "5511987650002", Name: "João"},
				{Phone: "5511987650001", Name: "Maria Repetida"},
			},
			expected: []string{"5511987650001", "5511987650002"},
		},
		{
			name:     "empty input",
			input:    nil,
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := DedupeByPhone(tt.input)

			phones := make([]string, 0, len(out))
			for _, rec := range out {
				phones = append(phones, rec.Phone)
			}
			assert.Equal(t, tt.expected, phones)
		})
	}

	t.Run("keeps the first recipient's data", func(t *testing.T) {
		out := DedupeByPhone([]Recipient{
			{Phone: "5511987650001", Name: "Maria"},
			{Phone: "5511987650001", Name: "Outra"},
		})

		require.Len(t, out, 1)
		assert.Equal(t, "Maria", out[0].Name)
	})
}

func TestAudienceResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("label public matches active contacts", func(t *testing.T) {
		contactRepo := &fakeContactRepo{
			contacts: []*models.Contact{
				{ID: 1, Phone: "5511987650001", Name: "Maria"},
				{ID: 2, Phone: "5511987650002", Name: "João"},
				{ID: 3, Phone: "5511987650001", Name: "Maria de Novo"},
			},
		}
		resolver := NewAudienceResolver(contactRepo, &fakePublicContactRepo{})

		public := &models.Public{
			ID:         10,
			UserID:     1,
			Kind:       models.PublicKindLabel,
			Labels:     pq.StringArray{"vip", "clientes"},
			LabelMatch: models.LabelMatchAll,
		}

		recipients, err := resolver.Resolve(ctx, public)

		require.NoError(t, err)
		require.Len(t, recipients, 2)
		assert.Equal(t, "5511987650001", recipients[0].Phone)
		require.NotNil(t, recipients[0].ContactID)
		assert.Equal(t, uint(1), *recipients[0].ContactID)

		require.NotNil(t, contactRepo.lastFilter.UserID)
		assert.Equal(t, uint(1), *contactRepo.lastFilter.UserID)
		require.NotNil(t, contactRepo.lastFilter.Status)
		assert.Equal(t, models.ContactStatusActive, *contactRepo.lastFilter.Status)
		assert.Equal(t, models.LabelMatchAll, contactRepo.lastFilter.LabelMatch)
	})

	t.Run("label match defaults to any", func(t *testing.T) {
		contactRepo := &fakeContactRepo{}
		resolver := NewAudienceResolver(contactRepo, &fakePublicContactRepo{})

		public := &models.Public{
			ID:     10,
			UserID: 1,
			Kind:   models.PublicKindLabel,
			Labels: pq.StringArray{"vip"},
		}

		_, err := resolver.Resolve(ctx, public)

		require.NoError(t, err)
		assert.Equal(t, models.LabelMatchAny, contactRepo.lastFilter.LabelMatch)
	})

	t.Run("simplified public reads snapshot rows", func(t *testing.T) {
		publicContactRepo := &fakePublicContactRepo{
			rows: []*models.PublicContact{
				{PublicID: 10, ContactID: uintPtr(5), Phone: "5511987650001", Name: "Maria"},
				{PublicID: 10, Phone: "5511987650002", Name: "Avulso"},
			},
		}
		resolver := NewAudienceResolver(&fakeContactRepo{}, publicContactRepo)

		public := &models.Public{ID: 10, UserID: 1, Kind: models.PublicKindSimplified}

		recipients, err := resolver.Resolve(ctx, public)

		require.NoError(t, err)
		require.Len(t, recipients, 2)
		assert.Nil(t, recipients[1].ContactID)
		assert.Equal(t, "Avulso", recipients[1].Name)
	})

	t.Run("custom public deduplicates snapshot rows", func(t *testing.T) {
		publicContactRepo := &fakePublicContactRepo{
			rows: []*models.PublicContact{
				{PublicID: 10, Phone: "5511987650001", Name: "Primeira"},
				{PublicID: 10, Phone: "5511987650001", Name: "Segunda"},
			},
		}
		resolver := NewAudienceResolver(&fakeContactRepo{}, publicContactRepo)

		public := &models.Public{ID: 10, UserID: 1, Kind: models.PublicKindCustom}

		recipients, err := resolver.Resolve(ctx, public)

		require.NoError(t, err)
		require.Len(t, recipients, 1)
		assert.Equal(t, "Primeira", recipients[0].Name)
	})

	t.Run("unknown kind", func(t *testing.T) {
		resolver := NewAudienceResolver(&fakeContactRepo{}, &fakePublicContactRepo{})

		_, err := resolver.Resolve(ctx, &models.Public{Kind: "banana"})

		assert.ErrorIs(t, err, ErrUnsupportedPublicKind)
	})
}

func TestAudienceResolver_Count(t *testing.T) {
	ctx := context.Background()

	t.Run("label public counts matching contacts", func(t *testing.T) {
		contactRepo := &fakeContactRepo{
			contacts: []*models.Contact{{ID: 1}, {ID: 2}, {ID: 3}},
		}
		resolver := NewAudienceResolver(contactRepo, &fakePublicContactRepo{})

		count, err := resolver.Count(ctx, &models.Public{
			Kind:   models.PublicKindLabel,
			Labels: pq.StringArray{"vip"},
		})

		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("ready materialized public uses stored total", func(t *testing.T) {
		resolver := NewAudienceResolver(&fakeContactRepo{}, &fakePublicContactRepo{})

		count, err := resolver.Count(ctx, &models.Public{
			Kind:          models.PublicKindSimplified,
			Status:        models.PublicStatusReady,
			TotalContacts: 42,
		})

		require.NoError(t, err)
		assert.Equal(t, 42, count)
	})

	t.Run("pending materialized public counts snapshot rows", func(t *testing.T) {
		publicContactRepo := &fakePublicContactRepo{
			rows: []*models.PublicContact{{PublicID: 10}, {PublicID: 10}},
		}
		resolver := NewAudienceResolver(&fakeContactRepo{}, publicContactRepo)

		count, err := resolver.Count(ctx, &models.Public{
			ID:     10,
			Kind:   models.PublicKindCustom,
			Status: models.PublicStatusResolving,
		})

		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})
}
