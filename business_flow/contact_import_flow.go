// Package businessflow contains the core business logic and use cases for contact import workflows
package businessflow

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/lib/pq"
	"github.com/xuri/excelize/v2"
	"github.com/zapflowbr/zapflow/app/dto"
	"github.com/zapflowbr/zapflow/models"
	"github.com/zapflowbr/zapflow/repository"
	"github.com/zapflowbr/zapflow/utils"
	"gorm.io/gorm"
)

// Column headings recognized when probing an import file. Matching is
// case-insensitive and accent-free headings are expected.
var (
	phoneHeadings = []string{"telefone", "phone", "numero", "number", "cel", "celular", "fone", "whatsapp"}
	nameHeadings  = []string{"nome", "name", "nome completo", "full name", "contato"}
)

// ContactImportFlow handles spreadsheet contact imports
type ContactImportFlow interface {
	Import(ctx context.Context, req *dto.ImportContactsRequest, file io.Reader, metadata *ClientMetadata) (*dto.ImportContactsResponse, error)
}

// ContactImportFlowImpl implements the contact import business flow
type ContactImportFlowImpl struct {
	contactRepo repository.ContactRepository
	numberRepo  repository.NumberRepository
	db          *gorm.DB
}

// NewContactImportFlow creates a new contact import flow instance
func NewContactImportFlow(
	contactRepo repository.ContactRepository,
	numberRepo repository.NumberRepository,
	db *gorm.DB,
) ContactImportFlow {
	return &ContactImportFlowImpl{
		contactRepo: contactRepo,
		numberRepo:  numberRepo,
		db:          db,
	}
}

// Import parses the uploaded file and creates one contact per valid,
// previously unknown phone. In dry-run mode nothing is written and the
// summary carries a preview of the first rows that would be imported.
func (s *ContactImportFlowImpl) Import(ctx context.Context, req *dto.ImportContactsRequest, file io.Reader, metadata *ClientMetadata) (*dto.ImportContactsResponse, error) {
	number, err := s.numberRepo.ByUUID(ctx, req.NumberUUID)
	if err != nil {
		return nil, NewBusinessError("NUMBER_LOOKUP_FAILED", "Failed to lookup number", err)
	}
	if number == nil {
		return nil, NewBusinessError("NUMBER_NOT_FOUND", "Number not found", ErrNumberNotFound)
	}
	if number.UserID != req.UserID {
		return nil, NewBusinessError("NUMBER_ACCESS_DENIED", "Number access denied", ErrNumberAccessDenied)
	}

	rows, err := parseContactRows(req.FileName, file)
	if err != nil {
		return nil, NewBusinessError("IMPORT_PARSE_FAILED", "Failed to parse import file", err)
	}
	if len(rows) == 0 {
		return nil, NewBusinessError("IMPORT_FILE_EMPTY", "Import file is empty", ErrImportFileEmpty)
	}

	summary := dto.ImportSummaryDTO{TotalLines: len(rows)}
	seen := make(map[string]struct{}, len(rows))
	var pending []*models.Contact

	for _, row := range rows {
		phone := utils.NormalizePhone(row.Phone)
		if !utils.IsValidBrazilianPhone(phone) {
			summary.Invalid++
			if len(summary.Errors) < utils.MaxImportErrors {
				summary.Errors = append(summary.Errors, dto.ImportRowError{
					Line:   row.Line,
					Reason: fmt.Sprintf("invalid phone %q", row.Phone),
				})
			}
			continue
		}

		if _, dup := seen[phone]; dup {
			summary.Duplicates++
			continue
		}
		seen[phone] = struct{}{}

		// Dry runs validate the file only and never consult the store
		if !req.DryRun {
			exists, err := s.contactRepo.ExistsByPhone(ctx, req.UserID, number.ID, phone)
			if err != nil {
				return nil, NewBusinessError("IMPORT_LOOKUP_FAILED", "Failed to check existing contacts", err)
			}
			if exists {
				summary.Duplicates++
				continue
			}
		}

		contact := &models.Contact{
			UserID:   req.UserID,
			NumberID: number.ID,
			CelOwner: number.OwnerPhone,
			Phone:    phone,
			Name:     strings.TrimSpace(row.Name),
			Status:   models.ContactStatusActive,
		}
		if label := strings.TrimSpace(req.Label); label != "" {
			contact.Labels = pq.StringArray{label}
			contact.LabelSummary = label
		}
		pending = append(pending, contact)
		summary.Imported++

		if req.DryRun && len(summary.Preview) < utils.DryRunPreviewSize {
			summary.Preview = append(summary.Preview, ToContactDTO(*contact))
		}
	}

	if !req.DryRun && len(pending) > 0 {
		err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
			return s.contactRepo.SaveBatch(txCtx, pending)
		})
		if err != nil {
			return nil, NewBusinessError("IMPORT_SAVE_FAILED", "Failed to save imported contacts", err)
		}
	}

	message := "Contacts imported successfully"
	if req.DryRun {
		message = "Import dry run completed"
	}
	return &dto.ImportContactsResponse{
		Message: message,
		Summary: summary,
	}, nil
}

// importRow is one data line of an import file, with its original line number
type importRow struct {
	Line  int
	Phone string
	Name  string
}

// parseContactRows reads an uploaded spreadsheet into phone/name rows.
// CSV delimiters are sniffed (Brazilian exports commonly use semicolons),
// xlsx files are read from their first sheet, and the header line is probed
// for known phone and name column headings. A file whose first line already
// looks like a phone number is treated as headerless with phone in the first
// column and name in the second.
func parseContactRows(fileName string, file io.Reader) ([]importRow, error) {
	var records []fileRecord
	var err error

	if strings.HasSuffix(strings.ToLower(fileName), ".xlsx") {
		records, err = readXLSXRecords(file)
	} else {
		records, err = readCSVRecords(file)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	phoneIdx, nameIdx, hasHeader := probeColumns(records[0].cells)
	if phoneIdx < 0 {
		return nil, ErrImportColumnsNotFound
	}

	start := 0
	if hasHeader {
		start = 1
	}

	rows := make([]importRow, 0, len(records)-start)
	for _, record := range records[start:] {
		if isBlankRecord(record.cells) {
			continue
		}
		row := importRow{Line: record.line}
		if phoneIdx < len(record.cells) {
			row.Phone = strings.TrimSpace(record.cells[phoneIdx])
		}
		if nameIdx >= 0 && nameIdx < len(record.cells) {
			row.Name = strings.TrimSpace(record.cells[nameIdx])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// fileRecord is one parsed record together with the file line it came from.
// Line numbers come from the reader, not the record index: the CSV reader
// silently drops fully-empty lines, so the two drift apart after any blank.
type fileRecord struct {
	line  int
	cells []string
}

// readCSVRecords parses CSV content with a sniffed delimiter
func readCSVRecords(file io.Reader) ([]fileRecord, error) {
	buffered := bufio.NewReader(file)
	sample, _ := buffered.Peek(4096)

	reader := csv.NewReader(buffered)
	reader.Comma = sniffDelimiter(sample)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var records []fileRecord
	for {
		cells, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV content: %w", err)
		}
		line, _ := reader.FieldPos(0)
		records = append(records, fileRecord{line: line, cells: cells})
	}
}

// readXLSXRecords parses the first sheet of an xlsx workbook
func readXLSXRecords(file io.Reader) ([]fileRecord, error) {
	workbook, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx workbook: %w", err)
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrImportFileEmpty
	}

	rows, err := workbook.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read xlsx sheet: %w", err)
	}
	records := make([]fileRecord, 0, len(rows))
	for i, cells := range rows {
		records = append(records, fileRecord{line: i + 1, cells: cells})
	}
	return records, nil
}

// sniffDelimiter picks the CSV delimiter from the first line of the sample.
// Any semicolon selects semicolon, since comma-delimited Brazilian exports
// don't put semicolons in headings but names routinely contain commas.
func sniffDelimiter(sample []byte) rune {
	line := string(sample)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if strings.Contains(line, ";") {
		return ';'
	}
	return ','
}

// probeColumns locates the phone and name columns. Returns hasHeader=false
// when the first record is already data.
func probeColumns(header []string) (phoneIdx, nameIdx int, hasHeader bool) {
	phoneIdx, nameIdx = -1, -1
	for i, cell := range header {
		heading := strings.ToLower(strings.TrimSpace(cell))
		if phoneIdx < 0 && matchesHeading(heading, phoneHeadings) {
			phoneIdx = i
		}
		if nameIdx < 0 && matchesHeading(heading, nameHeadings) {
			nameIdx = i
		}
	}
	if phoneIdx >= 0 {
		return phoneIdx, nameIdx, true
	}

	// Headerless file: accept when the first cell is a plausible phone
	if len(header) > 0 && utils.IsValidBrazilianPhone(utils.NormalizePhone(header[0])) {
		nameIdx = -1
		if len(header) > 1 {
			nameIdx = 1
		}
		return 0, nameIdx, false
	}
	return -1, -1, false
}

func matchesHeading(heading string, candidates []string) bool {
	for _, c := range candidates {
		if heading == c {
			return true
		}
	}
	return false
}

func isBlankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
