package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/odyssey-erp/ardash/internal/jobs"
	"github.com/odyssey-erp/ardash/internal/receivables"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ReceivablesReader is the subset of the receivables service the scan reads.
type ReceivablesReader interface {
	KPISummary(ctx context.Context, filter receivables.KPIFilter) (receivables.KPISummary, error)
	TopCustomers(ctx context.Context, filter receivables.TopCustomersFilter) ([]receivables.TopCustomer, error)
}

// GaugeSink receives the scan results.
type GaugeSink interface {
	SetReceivables(invoiced, outstanding, overduePercent float64, at time.Time)
}

// OverdueScanJob computes the unfiltered receivables position, logs the top
// debtors and publishes the totals as gauges.
type OverdueScanJob struct {
	Reports ReceivablesReader
	Gauges  GaugeSink
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewOverdueScanJob initialises the overdue scan handler.
func NewOverdueScanJob(reports ReceivablesReader, gauges GaugeSink, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueScanJob {
	return &OverdueScanJob{
		Reports: reports,
		Gauges:  gauges,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one scan.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Reports == nil {
		return errors.New("overdue scan: handler not configured")
	}
	var payload OverdueScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.TopLimit <= 0 {
		payload.TopLimit = receivables.DefaultTopCustomersLimit
	}

	start := j.now()
	tracker := j.metrics().Track(TaskOverdueScan)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger()
	logger.Info("starting overdue scan", slog.Int("top_limit", payload.TopLimit))

	var (
		summary receivables.KPISummary
		top     []receivables.TopCustomer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := j.Reports.KPISummary(gctx, receivables.KPIFilter{})
		if err != nil {
			return err
		}
		summary = s
		return nil
	})
	g.Go(func() error {
		customers, err := j.Reports.TopCustomers(gctx, receivables.TopCustomersFilter{Limit: payload.TopLimit})
		if err != nil {
			return err
		}
		top = customers
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return err
	}

	if j.Gauges != nil {
		j.Gauges.SetReceivables(
			summary.TotalInvoiced.InexactFloat64(),
			summary.TotalOutstanding.InexactFloat64(),
			summary.PercentOverdue.InexactFloat64(),
			start,
		)
	}
	j.metrics().SetOverdueInvoices(summary.OverdueInvoices)

	for rank, c := range top {
		logger.Warn("outstanding receivable",
			slog.Int("rank", rank+1),
			slog.Int64("customer_id", c.ID),
			slog.String("customer", c.Name),
			slog.String("outstanding", c.Outstanding.StringFixed(2)),
		)
	}

	logger.Info("completed overdue scan",
		slog.Int64("invoices", summary.TotalInvoices),
		slog.Int64("overdue", summary.OverdueInvoices),
		slog.String("percent_overdue", summary.PercentOverdue.StringFixed(2)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *OverdueScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskOverdueScan))
	}
	return slog.Default().With(slog.String("job", TaskOverdueScan))
}

func (j *OverdueScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *OverdueScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
