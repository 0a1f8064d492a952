package receipt

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dhowland/receipt-relay/internal/freeagent"
	"github.com/dhowland/receipt-relay/internal/normalize"
	"github.com/dhowland/receipt-relay/internal/reconcile"
	"github.com/dhowland/receipt-relay/internal/scanning"
)

// IDGenerator generates unique IDs for history entries
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Orchestrator relays a normalized receipt into the accounting system.
// *reconcile.Orchestrator satisfies it.
type Orchestrator interface {
	Process(ctx context.Context, kind freeagent.RecordKind, fields freeagent.Fields, file freeagent.FileData) (*reconcile.Outcome, error)
}

// ValidationError rejects a request before any upstream call is made.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ErrNoExtractableData means the scanner read the document but found
// nothing usable in it.
var ErrNoExtractableData = errors.New("no extractable data in receipt")

// Service handles receipt analysis and record creation
type Service struct {
	db           DB
	scanner      scanning.Scanner
	storage      Storage
	orchestrator Orchestrator
	idGenerator  IDGenerator
	timeSource   TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, scanner scanning.Scanner, storage Storage, orchestrator Orchestrator) *Service {
	return &Service{
		db:           db,
		scanner:      scanner,
		storage:      storage,
		orchestrator: orchestrator,
		idGenerator:  &defaultIDGenerator{},
		timeSource:   &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, orchestrator Orchestrator, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:           db,
		scanner:      scanner,
		storage:      storage,
		orchestrator: orchestrator,
		idGenerator:  idGen,
		timeSource:   timeSrc,
	}
}

// AnalyzeResult carries the extracted fields back to the caller for
// review, with the file echoed so the follow-up create request can carry
// it without a second upload.
type AnalyzeResult struct {
	Merchant string `json:"merchant"`
	Date     string `json:"date"`
	Total    string `json:"total"`
	VAT      string `json:"vat_amount"`
	RawText  string `json:"raw_text,omitempty"`
	FileB64  string `json:"file_b64"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
}

// Analyze runs the scanner over a receipt image and returns the
// extracted fields, normalized where normalization succeeds. The date
// falls back to scanning the raw OCR text when no labelled date field
// came back usable.
func (s *Service) Analyze(filename string, data []byte, contentType string) (*AnalyzeResult, error) {
	fields, err := s.scanner.ScanReceipt(data, contentType)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}

	if fields.Merchant == "" && fields.Total == "" {
		return nil, ErrNoExtractableData
	}

	date := normalize.Date(fields.Date)
	if date == "" {
		date = normalize.DateFromText(fields.RawText)
	}

	total := normalize.Amount(fields.Total)
	if total == "" {
		total = strings.TrimSpace(fields.Total)
	}
	vat := normalize.Amount(fields.VAT)

	return &AnalyzeResult{
		Merchant: normalize.Merchant(fields.Merchant),
		Date:     date,
		Total:    total,
		VAT:      vat,
		RawText:  fields.RawText,
		FileB64:  base64.StdEncoding.EncodeToString(data),
		FileName: filename,
		FileType: contentType,
	}, nil
}

// CreateRecordRequest is the reviewed field set a record is created
// from.
type CreateRecordRequest struct {
	Kind     string `json:"kind"`
	Merchant string `json:"merchant"`
	Date     string `json:"date"`
	Total    string `json:"total"`
	VAT      string `json:"vat"`
	FileB64  string `json:"file_b64"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
}

// CreateRecordResult is a successful relay: the history entry plus the
// orchestration outcome.
type CreateRecordResult struct {
	Processed *ProcessedReceipt
	Outcome   *reconcile.Outcome
}

// CreateRecord validates and normalizes the reviewed fields, relays the
// receipt into the accounting system, then archives the image and
// appends a history entry. Validation failures happen before any
// upstream call.
func (s *Service) CreateRecord(ctx context.Context, req CreateRecordRequest) (*CreateRecordResult, error) {
	gross := normalize.Amount(req.Total)
	if gross == "" {
		return nil, &ValidationError{Message: "Missing total"}
	}
	if strings.TrimSpace(req.FileB64) == "" {
		return nil, &ValidationError{Message: "Missing file"}
	}
	data, err := base64.StdEncoding.DecodeString(req.FileB64)
	if err != nil {
		return nil, &ValidationError{Message: "Invalid file encoding"}
	}
	if len(data) == 0 {
		return nil, &ValidationError{Message: "Missing file"}
	}

	var kind freeagent.RecordKind
	switch req.Kind {
	case "bill":
		kind = freeagent.KindBill
	case "expense":
		kind = freeagent.KindExpense
	default:
		return nil, &ValidationError{Message: fmt.Sprintf("Invalid record kind %q", req.Kind)}
	}

	date := normalize.Date(req.Date)
	if date == "" {
		// Missing or unparseable dates fall back to the processing date
		date = s.timeSource.Now().Format("2006-01-02")
	}

	fields := freeagent.Fields{
		Merchant:    normalize.Merchant(req.Merchant),
		DatedOn:     date,
		GrossAmount: gross,
		TaxAmount:   normalize.Amount(req.VAT),
	}

	contentType := req.FileType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	fileName := normalize.Filename(fields.Merchant, date, gross)

	outcome, err := s.orchestrator.Process(ctx, kind, fields, freeagent.FileData{
		Bytes:       data,
		Name:        fileName,
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("relaying receipt: %w", err)
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	// The record already exists upstream at this point, so archival is
	// best-effort: a failure is logged, not surfaced.
	archived, err := s.storage.Save(fmt.Sprintf("%s_%s", id, fileName), data)
	if err != nil {
		slog.Warn("Failed to archive receipt image", "filename", fileName, "error", err)
	}

	processed := &ProcessedReceipt{
		ID:          id,
		Kind:        string(kind),
		Merchant:    fields.Merchant,
		DatedOn:     date,
		GrossAmount: gross,
		TaxAmount:   fields.TaxAmount,
		RecordURL:   outcome.RecordURL,
		AttachedVia: outcome.AttachedVia,
		Filename:    archived,
		ContentType: contentType,
		CreatedAt:   now,
	}
	if err := s.db.SaveProcessed(processed); err != nil {
		slog.Warn("Failed to save history entry", "id", id, "error", err)
	}

	return &CreateRecordResult{Processed: processed, Outcome: outcome}, nil
}

// GetProcessed retrieves a history entry by ID
func (s *Service) GetProcessed(id string) (*ProcessedReceipt, error) {
	processed, err := s.db.GetProcessed(id)
	if err != nil {
		return nil, fmt.Errorf("getting processed receipt: %w", err)
	}
	return processed, nil
}

// ListProcessed returns all history entries
func (s *Service) ListProcessed() ([]*ProcessedReceipt, error) {
	processed, err := s.db.ListProcessed()
	if err != nil {
		return nil, fmt.Errorf("listing processed receipts: %w", err)
	}
	return processed, nil
}

// DeleteProcessed removes a history entry and its archived image
func (s *Service) DeleteProcessed(id string) error {
	processed, err := s.db.GetProcessed(id)
	if err != nil {
		return fmt.Errorf("getting processed receipt for deletion: %w", err)
	}

	if processed.Filename != "" {
		if err := s.storage.Delete(processed.Filename); err != nil {
			// Log error but continue with database deletion
			slog.Warn("Failed to delete archived file", "filename", processed.Filename, "error", err)
		}
	}

	if err := s.db.DeleteProcessed(id); err != nil {
		return fmt.Errorf("deleting processed receipt: %w", err)
	}
	return nil
}

// GetProcessedFile retrieves the archived image for a history entry
func (s *Service) GetProcessedFile(id string) ([]byte, string, error) {
	processed, err := s.db.GetProcessed(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting processed receipt: %w", err)
	}

	data, err := s.storage.Get(processed.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting archived file: %w", err)
	}

	return data, processed.ContentType, nil
}
