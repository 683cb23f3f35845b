package businessflow

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"github.com/zapflowbr/zapflow/app/dto"
	"github.com/zapflowbr/zapflow/models"
	"github.com/zapflowbr/zapflow/utils"
)

// fakeNumberRepo serves a single number for import lookups
type fakeNumberRepo struct {
	number *models.Number
	synced []uint
	err    error
}

func (f *fakeNumberRepo) ByID(ctx context.Context, id uint) (*models.Number, error) {
	return f.number, f.err
}

func (f *fakeNumberRepo) ByFilter(ctx context.Context, filter models.NumberFilter, orderBy string, limit, offset int) ([]*models.Number, error) {
	return nil, nil
}

func (f *fakeNumberRepo) Save(ctx context.Context, entity *models.Number) error   { return nil }
func (f *fakeNumberRepo) SaveBatch(ctx context.Context, e []*models.Number) error { return nil }
func (f *fakeNumberRepo) Update(ctx context.Context, entity *models.Number) error { return nil }

func (f *fakeNumberRepo) Count(ctx context.Context, fl models.NumberFilter) (int64, error) {
	return 0, nil
}

func (f *fakeNumberRepo) Exists(ctx context.Context, fl models.NumberFilter) (bool, error) {
	return false, nil
}

func (f *fakeNumberRepo) ByUUID(ctx context.Context, uuid string) (*models.Number, error) {
	return f.number, f.err
}

func (f *fakeNumberRepo) ListSyncable(ctx context.Context) ([]*models.Number, error) {
	return nil, nil
}

func (f *fakeNumberRepo) MarkSynced(ctx context.Context, id uint, at time.Time) error {
	f.synced = append(f.synced, id)
	return nil
}

// fakeContactRepo records batch saves and answers phone existence lookups
type fakeContactRepo struct {
	existing   map[string]bool
	contacts   []*models.Contact
	lastFilter models.ContactFilter
	saved      []*models.Contact
	saveCalls  int
	err        error
}

func (f *fakeContactRepo) ByID(ctx context.Context, id uint) (*models.Contact, error) {
	return nil, nil
}

func (f *fakeContactRepo) ByFilter(ctx context.Context, filter models.ContactFilter, orderBy string, limit, offset int) ([]*models.Contact, error) {
	f.lastFilter = filter
	return f.contacts, f.err
}

func (f *fakeContactRepo) Save(ctx context.Context, entity *models.Contact) error {
	f.saved = append(f.saved, entity)
	return nil
}

func (f *fakeContactRepo) SaveBatch(ctx context.Context, entities []*models.Contact) error {
	f.saveCalls++
	f.saved = append(f.saved, entities...)
	return nil
}

func (f *fakeContactRepo) Update(ctx context.Context, entity *models.Contact) error { return nil }

func (f *fakeContactRepo) Count(ctx context.Context, fl models.ContactFilter) (int64, error) {
	f.lastFilter = fl
	return int64(len(f.contacts)), f.err
}

func (f *fakeContactRepo) Exists(ctx context.Context, fl models.ContactFilter) (bool, error) {
	return false, nil
}

func (f *fakeContactRepo) ExistsByPhone(ctx context.Context, userID, numberID uint, phone string) (bool, error) {
	return f.existing[phone], nil
}

func (f *fakeContactRepo) SoftDelete(ctx context.Context, id uint) error { return nil }

func importTestNumber(userID uint) *models.Number {
	return &models.Number{
		ID:         7,
		UUID:       uuid.New(),
		UserID:     userID,
		OwnerPhone: "5511999990000",
		Enabled:    utils.ToPtr(true),
	}
}

func importRequest(number *models.Number, dryRun bool) *dto.ImportContactsRequest {
	return &dto.ImportContactsRequest{
		UserID:     number.UserID,
		NumberUUID: number.UUID.String(),
		FileName:   "contatos.csv",
		DryRun:     dryRun,
	}
}

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		name     string
		sample   string
		expected rune
	}{
		{"comma separated header", "telefone,nome\n11987654321,Maria", ','},
		{"semicolon separated header", "telefone;nome\n11987654321;Maria", ';'},
		{"semicolons only on later lines", "telefone,nome\na;b;c;d", ','},
		{"semicolon wins over extra commas", "Silva, da Costa, João;11987654321", ';'},
		{"empty sample defaults to comma", "", ','},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sniffDelimiter([]byte(tt.sample)))
		})
	}
}

func TestProbeColumns(t *testing.T) {
	tests := []struct {
		name      string
		header    []string
		phoneIdx  int
		nameIdx   int
		hasHeader bool
	}{
		{"portuguese headings", []string{"telefone", "nome"}, 0, 1, true},
		{"english headings reordered", []string{"name", "phone"}, 1, 0, true},
		{"case insensitive with padding", []string{" Celular ", "NOME"}, 0, 1, true},
		{"phone column only", []string{"whatsapp", "email"}, 0, -1, true},
		{"headerless with two columns", []string{"11987654321", "Maria"}, 0, 1, false},
		{"headerless single column", []string{"5511987654321"}, 0, -1, false},
		{"no recognizable columns", []string{"email", "cidade"}, -1, -1, false},
		{"empty header", []string{}, -1, -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			phoneIdx, nameIdx, hasHeader := probeColumns(tt.header)
			assert.Equal(t, tt.phoneIdx, phoneIdx)
			assert.Equal(t, tt.nameIdx, nameIdx)
			assert.Equal(t, tt.hasHeader, hasHeader)
		})
	}
}

func TestParseContactRows(t *testing.T) {
	t.Run("comma separated with header", func(t *testing.T) {
		content := "telefone,nome\n11987654321,Maria\n11987654322,João\n"
		rows, err := parseContactRows("contatos.csv", strings.NewReader(content))

		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, importRow{Line: 2, Phone: "11987654321", Name: "Maria"}, rows[0])
		assert.Equal(t, importRow{Line: 3, Phone: "11987654322", Name: "João"}, rows[1])
	})

	t.Run("semicolon separated", func(t *testing.T) {
		content := "nome;telefone\nMaria;11987654321\n"
		rows, err := parseContactRows("contatos.csv", strings.NewReader(content))

		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "11987654321", rows[0].Phone)
		assert.Equal(t, "Maria", rows[0].Name)
	})

	t.Run("headerless file with phone first", func(t *testing.T) {
		content := "11987654321,Maria\n11987654322,João\n"
		rows, err := parseContactRows("contatos.csv", strings.NewReader(content))

		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, importRow{Line: 1, Phone: "11987654321", Name: "Maria"}, rows[0])
	})

	t.Run("blank lines are skipped", func(t *testing.T) {
		content := "telefone,nome\n11987654321,Maria\n,\n\n11987654322,João\n"
		rows, err := parseContactRows("contatos.csv", strings.NewReader(content))

		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, 2, rows[0].Line)
		assert.Equal(t, 5, rows[1].Line)
	})

	t.Run("no phone column", func(t *testing.T) {
		content := "email,cidade\nmaria@example.com,São Paulo\n"
		rows, err := parseContactRows("contatos.csv", strings.NewReader(content))

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrImportColumnsNotFound)
		assert.Nil(t, rows)
	})

	t.Run("xlsx workbook first sheet", func(t *testing.T) {
		workbook := excelize.NewFile()
		defer workbook.Close()

		sheet := workbook.GetSheetName(0)
		require.NoError(t, workbook.SetCellValue(sheet, "A1", "Telefone"))
		require.NoError(t, workbook.SetCellValue(sheet, "B1", "Nome"))
		require.NoError(t, workbook.SetCellValue(sheet, "A2", "11987654321"))
		require.NoError(t, workbook.SetCellValue(sheet, "B2", "Maria"))

		buffer, err := workbook.WriteToBuffer()
		require.NoError(t, err)

		rows, err := parseContactRows("contatos.xlsx", bytes.NewReader(buffer.Bytes()))

		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "11987654321", rows[0].Phone)
		assert.Equal(t, "Maria", rows[0].Name)
	})
}

func TestContactImportFlow_Import(t *testing.T) {
	ctx := context.Background()
	metadata := NewClientMetadata("127.0.0.1", "test-agent")

	t.Run("number not found", func(t *testing.T) {
		flow := NewContactImportFlow(&fakeContactRepo{}, &fakeNumberRepo{}, nil)
		number := importTestNumber(1)

		_, err := flow.Import(ctx, importRequest(number, true), strings.NewReader(""), metadata)

		require.Error(t, err)
		assert.True(t, IsNumberNotFound(err))
	})

	t.Run("number owned by another user", func(t *testing.T) {
		number := importTestNumber(1)
		flow := NewContactImportFlow(&fakeContactRepo{}, &fakeNumberRepo{number: number}, nil)

		req := importRequest(number, true)
		req.UserID = 99

		_, err := flow.Import(ctx, req, strings.NewReader(""), metadata)

		require.Error(t, err)
		assert.True(t, IsNumberAccessDenied(err))
	})

	t.Run("header only file is empty", func(t *testing.T) {
		number := importTestNumber(1)
		flow := NewContactImportFlow(&fakeContactRepo{}, &fakeNumberRepo{number: number}, nil)

		_, err := flow.Import(ctx, importRequest(number, true), strings.NewReader("telefone,nome\n"), metadata)

		require.Error(t, err)
		assert.True(t, IsImportFileEmpty(err))
	})

	t.Run("dry run summarizes without touching the store", func(t *testing.T) {
		number := importTestNumber(1)
		contactRepo := &fakeContactRepo{
			// Known to the store, but dry runs never consult it
			existing: map[string]bool{"5511987650004": true},
		}
		flow := NewContactImportFlow(contactRepo, &fakeNumberRepo{number: number}, nil)

		content := "telefone,nome\n" +
			"11987650001,Maria\n" +
			"11987650002,João\n" +
			"123,Curto\n" + // invalid phone
			"11987650001,Maria Repetida\n" + // duplicate within the file
			"11987650004,Já Cadastrada\n"

		resp, err := flow.Import(ctx, importRequest(number, true), strings.NewReader(content), metadata)

		require.NoError(t, err)
		assert.Equal(t, 5, resp.Summary.TotalLines)
		assert.Equal(t, 3, resp.Summary.Imported)
		assert.Equal(t, 1, resp.Summary.Duplicates)
		assert.Equal(t, 1, resp.Summary.Invalid)
		require.Len(t, resp.Summary.Errors, 1)
		assert.Equal(t, 4, resp.Summary.Errors[0].Line)
		require.Len(t, resp.Summary.Preview, 3)
		assert.Equal(t, "5511987650001", resp.Summary.Preview[0].Phone)
		assert.Equal(t, "Maria", resp.Summary.Preview[0].Name)
		assert.Equal(t, "5511987650004", resp.Summary.Preview[2].Phone)

		assert.Equal(t, 0, contactRepo.saveCalls)
	})

	t.Run("label is stamped onto imported contacts", func(t *testing.T) {
		number := importTestNumber(1)
		flow := NewContactImportFlow(&fakeContactRepo{}, &fakeNumberRepo{number: number}, nil)

		req := importRequest(number, true)
		req.Label = "promo-agosto"

		resp, err := flow.Import(ctx, req, strings.NewReader("telefone,nome\n11987650001,Maria\n"), metadata)

		require.NoError(t, err)
		require.Len(t, resp.Summary.Preview, 1)
		assert.Equal(t, []string{"promo-agosto"}, resp.Summary.Preview[0].Labels)
		assert.Equal(t, "promo-agosto", resp.Summary.Preview[0].LabelSummary)
	})

	t.Run("dry run preview is capped", func(t *testing.T) {
		number := importTestNumber(1)
		contactRepo := &fakeContactRepo{}
		flow := NewContactImportFlow(contactRepo, &fakeNumberRepo{number: number}, nil)

		var content strings.Builder
		content.WriteString("telefone,nome\n")
		for i := 0; i < utils.DryRunPreviewSize+3; i++ {
			content.WriteString(fmt.Sprintf("119876500%02d,Contato %d\n", i+1, i+1))
		}

		resp, err := flow.Import(ctx, importRequest(number, true), strings.NewReader(content.String()), metadata)

		require.NoError(t, err)
		assert.Equal(t, utils.DryRunPreviewSize+3, resp.Summary.Imported)
		assert.Len(t, resp.Summary.Preview, utils.DryRunPreviewSize)
	})

	t.Run("row errors are capped", func(t *testing.T) {
		number := importTestNumber(1)
		flow := NewContactImportFlow(&fakeContactRepo{}, &fakeNumberRepo{number: number}, nil)

		var content strings.Builder
		content.WriteString("telefone,nome\n")
		for i := 0; i < utils.MaxImportErrors+4; i++ {
			content.WriteString(fmt.Sprintf("12%d,Inválido\n", i))
		}

		resp, err := flow.Import(ctx, importRequest(number, true), strings.NewReader(content.String()), metadata)

		require.NoError(t, err)
		assert.Equal(t, utils.MaxImportErrors+4, resp.Summary.Invalid)
		assert.Len(t, resp.Summary.Errors, utils.MaxImportErrors)
	})

	t.Run("real run with only duplicates writes nothing", func(t *testing.T) {
		number := importTestNumber(1)
		contactRepo := &fakeContactRepo{
			existing: map[string]bool{"5511987650001": true},
		}
		flow := NewContactImportFlow(contactRepo, &fakeNumberRepo{number: number}, nil)

		content := "telefone,nome\n11987650001,Maria\n11987650001,Maria\n"

		resp, err := flow.Import(ctx, importRequest(number, false), strings.NewReader(content), metadata)

		require.NoError(t, err)
		assert.Equal(t, 0, resp.Summary.Imported)
		assert.Equal(t, 2, resp.Summary.Duplicates)
		assert.Equal(t, 0, contactRepo.saveCalls)
		assert.Equal(t, "Contacts imported successfully", resp.Message)
	})
}
