// Package linker links payment records to the counter tickets, recurring
// charges and site visits their references point at.
package linker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trackvia-tools/tv-cli/internal/api"
	"github.com/trackvia-tools/tv-cli/internal/ledger"
)

// Records is the part of the TrackVia client the job needs.
// api.RecordsService satisfies it.
type Records interface {
	List(ctx context.Context, viewID int64, page api.Page) (*api.Response, error)
	Find(ctx context.Context, viewID int64, q string, page api.Page) (*api.Response, error)
	Update(ctx context.Context, viewID, recordID int64, data any) (*api.Response, error)
}

// Status is the result of one payment/rule decision.
type Status string

const (
	StatusLinked        Status = "linked"
	StatusPlanned       Status = "planned"
	StatusAlreadyLinked Status = "already_linked"
	StatusShort         Status = "short_reference"
	StatusUnmatched     Status = "unmatched"
	StatusMissing       Status = "missing"
	StatusFailed        Status = "failed"
)

// Outcome records what happened to one payment for one rule. Payments that
// never reach a rule carry an empty Rule.
type Outcome struct {
	PaymentID  int64  `json:"payment_id" yaml:"payment_id"`
	Reference  string `json:"reference" yaml:"reference"`
	Rule       string `json:"rule,omitempty" yaml:"rule,omitempty"`
	TargetView int64  `json:"target_view,omitempty" yaml:"target_view,omitempty"`
	TargetID   int64  `json:"target_id,omitempty" yaml:"target_id,omitempty"`
	Status     Status `json:"status" yaml:"status"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report summarises a run.
type Report struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	DryRun     bool      `json:"dry_run" yaml:"dry_run"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	Pages      int       `json:"pages" yaml:"pages"`
	Scanned    int       `json:"scanned" yaml:"scanned"`
	Skipped    int       `json:"skipped" yaml:"skipped"`
	Planned    int       `json:"planned" yaml:"planned"`
	Linked     int       `json:"linked" yaml:"linked"`
	Missing    int       `json:"missing" yaml:"missing"`
	Failed     int       `json:"failed" yaml:"failed"`
	Outcomes   []Outcome `json:"outcomes" yaml:"outcomes"`
}

func (r *Report) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case StatusLinked:
		r.Linked++
	case StatusPlanned:
		r.Planned++
	case StatusMissing:
		r.Missing++
	case StatusFailed:
		r.Failed++
	default:
		r.Skipped++
	}
}

// Linker runs the linking job.
type Linker struct {
	records Records
	cfg     Config
	ledger  ledger.Store
	log     *zap.Logger
	dryRun  bool
	now     func() time.Time
}

// Option configures a Linker.
type Option func(*Linker)

// WithLedger sets the store consulted before and updated after each link.
func WithLedger(store ledger.Store) Option {
	return func(l *Linker) {
		if store != nil {
			l.ledger = store
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(l *Linker) {
		if log != nil {
			l.log = log
		}
	}
}

// WithDryRun plans links without updating records or the ledger.
func WithDryRun(dryRun bool) Option {
	return func(l *Linker) {
		l.dryRun = dryRun
	}
}

// New validates cfg and returns a Linker.
func New(records Records, cfg Config, opts ...Option) (*Linker, error) {
	if records == nil {
		return nil, errors.New("linker requires a records client")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := &Linker{
		records: records,
		cfg:     cfg,
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.ledger == nil {
		l.ledger = ledger.None()
	}
	return l, nil
}

// Run processes the payments view once. Per-payment API failures are
// recorded in the report; transport errors, ledger errors and cancellation
// stop the run and return the partial report with the error.
func (l *Linker) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		DryRun:    l.dryRun,
		StartedAt: l.now(),
		Outcomes:  []Outcome{},
	}
	log := l.log.With(zap.String("run_id", report.RunID))
	log.Debug("link run started",
		zap.Int64("payments_view", l.cfg.PaymentsView),
		zap.Int("page_size", l.cfg.PageSize),
		zap.Bool("all_pages", l.cfg.AllPages),
		zap.Bool("dry_run", l.dryRun))

	err := l.run(ctx, log, report)
	report.FinishedAt = l.now()

	fields := []zap.Field{
		zap.Int("scanned", report.Scanned),
		zap.Int("linked", report.Linked),
		zap.Int("planned", report.Planned),
		zap.Int("skipped", report.Skipped),
		zap.Int("missing", report.Missing),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	}
	if err != nil {
		log.Warn("link run aborted", append(fields, zap.Error(err))...)
		return report, err
	}
	log.Info("link run finished", fields...)
	return report, nil
}

func (l *Linker) run(ctx context.Context, log *zap.Logger, report *Report) error {
	start := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, err := l.records.List(ctx, l.cfg.PaymentsView, api.Page{Start: start, Max: l.cfg.PageSize})
		if err != nil {
			return fmt.Errorf("list payments (start %d): %w", start, err)
		}
		page, err := api.DecodeRecordPage(resp)
		if err != nil {
			return fmt.Errorf("decode payments page (start %d): %w", start, err)
		}
		report.Pages++

		for _, payment := range page.Data {
			report.Scanned++
			if err := l.process(ctx, log, report, payment); err != nil {
				return err
			}
		}

		if !l.cfg.AllPages || len(page.Data) < l.cfg.PageSize {
			return nil
		}
		start += len(page.Data)
	}
}

func (l *Linker) process(ctx context.Context, log *zap.Logger, report *Report, payment api.Record) error {
	id, ok := payment.ID()
	reference := payment.String(l.cfg.ReferenceField)
	if !ok {
		report.add(Outcome{Reference: reference, Status: StatusFailed, Error: "payment record has no id"})
		log.Debug("payment without id", zap.String("reference", reference))
		return nil
	}

	if utf8.RuneCountInString(reference) < l.cfg.MinReferenceLength {
		report.add(Outcome{PaymentID: id, Reference: reference, Status: StatusShort})
		log.Debug("reference too short", zap.Int64("payment_id", id), zap.String("reference", reference))
		return nil
	}

	matched := false
	for _, rule := range l.cfg.Rules {
		if !rule.Matches(reference) {
			continue
		}
		matched = true
		outcome, err := l.apply(ctx, rule, id, reference)
		if err != nil {
			return err
		}
		report.add(outcome)
		log.Debug("payment processed",
			zap.Int64("payment_id", id),
			zap.String("reference", reference),
			zap.String("rule", rule.Name),
			zap.String("status", string(outcome.Status)),
			zap.Int64("target_id", outcome.TargetID),
			zap.String("error", outcome.Error))
	}
	if !matched {
		report.add(Outcome{PaymentID: id, Reference: reference, Status: StatusUnmatched})
		log.Debug("no rule matched", zap.Int64("payment_id", id), zap.String("reference", reference))
	}
	return nil
}

func (l *Linker) apply(ctx context.Context, rule Rule, paymentID int64, reference string) (Outcome, error) {
	out := Outcome{PaymentID: paymentID, Reference: reference, Rule: rule.Name, TargetView: rule.View}
	key := ledger.Key{PaymentID: paymentID, Rule: rule.Name}

	linked, err := l.ledger.Linked(ctx, key)
	if err != nil {
		return out, fmt.Errorf("ledger lookup %s: %w", key, err)
	}
	if linked {
		out.Status = StatusAlreadyLinked
		return out, nil
	}

	resp, err := l.records.Find(ctx, rule.View, reference, api.Page{Start: 0, Max: 1})
	if err != nil {
		return l.recordFailure(out, fmt.Errorf("find in view %d: %w", rule.View, err))
	}
	hits, err := api.DecodeRecordPage(resp)
	if err != nil {
		out.Status = StatusFailed
		out.Error = fmt.Sprintf("decode find result: %v", err)
		return out, nil
	}
	if len(hits.Data) == 0 {
		out.Status = StatusMissing
		return out, nil
	}
	targetID, ok := hits.Data[0].ID()
	if !ok {
		out.Status = StatusFailed
		out.Error = fmt.Sprintf("first match in view %d has no id", rule.View)
		return out, nil
	}
	out.TargetID = targetID

	if l.dryRun {
		out.Status = StatusPlanned
		return out, nil
	}

	update := []map[string]any{{rule.LinkField: targetID}}
	if _, err := l.records.Update(ctx, l.cfg.PaymentsView, paymentID, update); err != nil {
		return l.recordFailure(out, fmt.Errorf("update payment %d: %w", paymentID, err))
	}
	if err := l.ledger.MarkLinked(ctx, key, targetID); err != nil {
		return out, fmt.Errorf("ledger record %s: %w", key, err)
	}
	out.Status = StatusLinked
	return out, nil
}

// recordFailure turns per-record API failures into a failed outcome and
// passes everything else up to abort the run.
func (l *Linker) recordFailure(out Outcome, err error) (Outcome, error) {
	if isFatal(err) {
		return out, err
	}
	out.Status = StatusFailed
	out.Error = err.Error()
	return out, nil
}

func isFatal(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if api.IsAuthError(err) {
		return true
	}
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		// An unauthorized response that survived the refresh retry fails every
		// later request too.
		return apiErr.StatusCode == http.StatusUnauthorized
	}
	var unexpected *api.UnexpectedResponseError
	return !errors.As(err, &unexpected)
}
