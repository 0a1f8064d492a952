// Package reconcile sequences a normalized receipt through the
// accounting API: resolve the counterparty, build the record payload,
// create the record, bind the receipt image. Steps are strictly
// sequential because each step's output feeds the next.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dhowland/receipt-relay/internal/freeagent"
)

// Books is the accounting API surface the orchestrator drives.
// *freeagent.Client satisfies it.
type Books interface {
	ResolveContact(ctx context.Context, name string) (string, error)
	CurrentUserURL(ctx context.Context) (string, error)
	BuildBill(fields freeagent.Fields, contactURL string) *freeagent.RecordPayload
	BuildExpense(fields freeagent.Fields, userURL string) *freeagent.RecordPayload
	CreateRecord(ctx context.Context, payload *freeagent.RecordPayload) (*freeagent.CreatedRecord, error)
	AttachReceipt(ctx context.Context, record *freeagent.CreatedRecord, payload *freeagent.RecordPayload, file freeagent.FileData) (*freeagent.BindResult, error)
}

// Outcome is the result of a completed reconciliation.
type Outcome struct {
	Kind        freeagent.RecordKind
	RecordURL   string
	AttachedVia string
}

// StepError identifies which orchestration step failed, with the
// upstream status and a truncated body when one is available.
type StepError struct {
	Step    string
	Status  int
	Details string
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Orchestrator runs the reconciliation workflow. It holds no per-request
// state, so one instance serves concurrent requests.
type Orchestrator struct {
	books Books
}

// New creates an Orchestrator over the given accounting API.
func New(books Books) *Orchestrator {
	return &Orchestrator{books: books}
}

// Process relays one receipt into the accounting system as the given
// record kind. It halts on the first failure; a created record whose
// attachment failed is left as-is, with no rollback.
func (o *Orchestrator) Process(ctx context.Context, kind freeagent.RecordKind, fields freeagent.Fields, file freeagent.FileData) (*Outcome, error) {
	var payload *freeagent.RecordPayload

	switch kind {
	case freeagent.KindBill:
		contactURL, err := o.books.ResolveContact(ctx, counterpartyName(fields.Merchant))
		if err != nil {
			return nil, stepError("resolving counterparty", err)
		}
		payload = o.books.BuildBill(fields, contactURL)
	case freeagent.KindExpense:
		userURL, err := o.books.CurrentUserURL(ctx)
		if err != nil {
			return nil, stepError("looking up user", err)
		}
		payload = o.books.BuildExpense(fields, userURL)
	default:
		return nil, stepError("building record", fmt.Errorf("unknown record kind %q", kind))
	}

	record, err := o.books.CreateRecord(ctx, payload)
	if err != nil {
		return nil, stepError("creating record", err)
	}
	slog.Info("Created record", "kind", kind, "url", record.URL)

	bind, err := o.books.AttachReceipt(ctx, record, payload, file)
	if err != nil {
		return nil, stepError("attaching receipt", err)
	}

	return &Outcome{
		Kind:        kind,
		RecordURL:   bind.RecordURL,
		AttachedVia: bind.Strategy,
	}, nil
}

// counterpartyName picks the name a counterparty is resolved under.
func counterpartyName(merchant string) string {
	if merchant == "" {
		return "Unknown supplier"
	}
	return merchant
}

// stepError labels a failure with the step it happened in and pulls the
// upstream status and body out of the typed client errors.
func stepError(step string, err error) *StepError {
	stepErr := &StepError{Step: step, Err: err}

	var authErr *freeagent.AuthError
	var upstreamErr *freeagent.UpstreamError
	var attachErr *freeagent.AttachmentError
	switch {
	case errors.As(err, &authErr):
		stepErr.Status = authErr.Status
		stepErr.Details = authErr.Body
	case errors.As(err, &upstreamErr):
		stepErr.Status = upstreamErr.Status
		stepErr.Details = upstreamErr.Body
	case errors.As(err, &attachErr):
		stepErr.Status = attachErr.Status
		stepErr.Details = attachErr.Body
	}
	return stepErr
}
