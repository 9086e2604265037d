package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/qbo-connector/internal/metrics"
	"github.com/Checker-Finance/qbo-connector/internal/quickbooks"
	"github.com/Checker-Finance/qbo-connector/pkg/model"
)

// Client is the read surface of a QuickBooks session used by a sync.
type Client interface {
	RealmID() string
	Accounts(ctx context.Context) ([]quickbooks.Account, error)
	Customers(ctx context.Context) ([]quickbooks.Customer, error)
	Invoices(ctx context.Context, start, end string) ([]quickbooks.Invoice, error)
	Bills(ctx context.Context, start, end string) ([]quickbooks.Bill, error)
	Payments(ctx context.Context, start, end string) ([]quickbooks.Payment, error)
	ProfitAndLoss(ctx context.Context, start, end string) (json.RawMessage, error)
	BalanceSheet(ctx context.Context, asOf string) (json.RawMessage, error)
	CashFlow(ctx context.Context, start, end string) (json.RawMessage, error)
}

// SnapshotStore persists the latest successful sync.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap model.Snapshot) error
}

// EventPublisher announces completed syncs.
type EventPublisher interface {
	PublishSyncCompleted(ctx context.Context, evt model.SyncCompletedEvent) error
}

// Orchestrator turns a SyncConfig into a SyncResult. Categories are fetched
// one after another; the first failure aborts the run and nothing partial is
// returned or persisted.
type Orchestrator struct {
	logger    *zap.Logger
	snapshots SnapshotStore
	events    EventPublisher
	now       func() time.Time
}

// New creates an Orchestrator. snapshots and events may be nil.
func New(logger *zap.Logger, snapshots SnapshotStore, events EventPublisher) *Orchestrator {
	return &Orchestrator{
		logger:    logger,
		snapshots: snapshots,
		events:    events,
		now:       time.Now,
	}
}

type step struct {
	category string
	enabled  bool
	fetch    func(ctx context.Context) (any, int, error)
}

func (o *Orchestrator) steps(c Client, cfg model.SyncConfig) []step {
	start, end := cfg.StartDate, cfg.EndDate
	return []step{
		{model.CategoryAccounts, cfg.SyncAccounts, func(ctx context.Context) (any, int, error) {
			raw, err := c.Accounts(ctx)
			recs := NormalizeAccounts(raw)
			return recs, len(recs), err
		}},
		{model.CategoryCustomers, cfg.SyncCustomers, func(ctx context.Context) (any, int, error) {
			raw, err := c.Customers(ctx)
			recs := NormalizeCustomers(raw)
			return recs, len(recs), err
		}},
		{model.CategoryInvoices, cfg.SyncInvoices, func(ctx context.Context) (any, int, error) {
			raw, err := c.Invoices(ctx, start, end)
			recs := NormalizeInvoices(raw)
			return recs, len(recs), err
		}},
		{model.CategoryBills, cfg.SyncBills, func(ctx context.Context) (any, int, error) {
			raw, err := c.Bills(ctx, start, end)
			recs := NormalizeBills(raw)
			return recs, len(recs), err
		}},
		{model.CategoryPayments, cfg.SyncPayments, func(ctx context.Context) (any, int, error) {
			raw, err := c.Payments(ctx, start, end)
			recs := NormalizePayments(raw)
			return recs, len(recs), err
		}},
		{model.CategoryReports, cfg.WantsReports(), func(ctx context.Context) (any, int, error) {
			r, err := fetchReports(ctx, c, start, end)
			return r, 3, err
		}},
	}
}

func fetchReports(ctx context.Context, c Client, start, end string) (*model.Reports, error) {
	pl, err := c.ProfitAndLoss(ctx, start, end)
	if err != nil {
		return nil, err
	}
	bs, err := c.BalanceSheet(ctx, end)
	if err != nil {
		return nil, err
	}
	cf, err := c.CashFlow(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return &model.Reports{ProfitAndLoss: pl, BalanceSheet: bs, CashFlow: cf}, nil
}

// Run executes one sync for c. It never returns a Go error: failures are
// reported in the result, which keeps the failing category and error kind.
func (o *Orchestrator) Run(ctx context.Context, c Client, cfg model.SyncConfig) model.SyncResult {
	started := o.now()
	realmID := c.RealmID()
	log := o.logger.With(zap.String("realm_id", realmID))

	if err := quickbooks.ValidateRange(cfg.StartDate, cfg.EndDate); err != nil {
		return o.fail(log, realmID, "", err, started)
	}

	data := make(map[string]any)
	counts := make(map[string]int)
	for _, st := range o.steps(c, cfg) {
		if !st.enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return o.fail(log, realmID, st.category, quickbooks.Classify(err), started)
		}

		recs, n, err := st.fetch(ctx)
		if err != nil {
			return o.fail(log, realmID, st.category, err, started)
		}
		data[st.category] = recs
		counts[st.category] = n
		log.Debug("sync.category_fetched", zap.String("category", st.category), zap.Int("records", n))
	}

	capturedAt := o.now().UTC()
	if o.snapshots != nil {
		snap := model.Snapshot{RealmID: realmID, Data: data, CapturedAt: capturedAt}
		if err := o.snapshots.SaveSnapshot(ctx, snap); err != nil {
			return o.fail(log, realmID, "", fmt.Errorf("persist snapshot: %w", err), started)
		}
	}

	o.publish(ctx, log, realmID, counts, capturedAt)

	metrics.IncSyncRun("ok", "")
	metrics.ObserveDuration(metrics.SyncDuration, started, "ok")
	log.Info("sync.completed", zap.Any("counts", counts), zap.Duration("elapsed", o.now().Sub(started)))

	return model.SyncResult{
		Success:    true,
		RealmID:    realmID,
		Data:       data,
		CapturedAt: capturedAt,
	}
}

func (o *Orchestrator) fail(log *zap.Logger, realmID, category string, err error, started time.Time) model.SyncResult {
	qe := quickbooks.Classify(err)

	msg := "Sync failed: " + qe.Error()
	if category != "" {
		msg = fmt.Sprintf("Sync failed while fetching %s: %s", category, qe.Error())
	}

	metrics.IncSyncRun("failed", string(qe.Kind))
	metrics.ObserveDuration(metrics.SyncDuration, started, "failed")
	log.Warn("sync.failed",
		zap.String("category", category),
		zap.String("kind", string(qe.Kind)),
		zap.Error(err))

	return model.SyncResult{
		Success:    false,
		RealmID:    realmID,
		Error:      msg,
		ErrorKind:  string(qe.Kind),
		Category:   category,
		CapturedAt: o.now().UTC(),
	}
}

func (o *Orchestrator) publish(ctx context.Context, log *zap.Logger, realmID string, counts map[string]int, capturedAt time.Time) {
	if o.events == nil {
		return
	}
	categories := make([]string, 0, len(counts))
	for c := range counts {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	_, hasReports := counts[model.CategoryReports]
	evt := model.SyncCompletedEvent{
		RealmID:    realmID,
		Categories: categories,
		Counts:     counts,
		HasReports: hasReports,
		CapturedAt: capturedAt,
	}
	if err := o.events.PublishSyncCompleted(ctx, evt); err != nil {
		log.Warn("sync.event_publish_failed", zap.Error(err))
	}
}
