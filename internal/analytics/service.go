package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/vitrinhq/vitrin/internal/common/cnst"
	"github.com/vitrinhq/vitrin/internal/common/config"
	"github.com/vitrinhq/vitrin/internal/visitor"
	"github.com/vitrinhq/vitrin/pkg/trace"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// HistorySource reads the visitor history of the trailing hours
type HistorySource interface {
	History(ctx context.Context, windowHours int) ([]*visitor.HistoryRecord, error)
}

// Service builds reports from the live history
type Service struct {
	logger *zap.Logger
	source HistorySource
	loc    *time.Location
	now    func() time.Time
}

// NewService creates the report service; hour labels use cfg.TimeZone
func NewService(logger *zap.Logger, source HistorySource, cfg *config.AnalyticsConfig) (*Service, error) {
	loc := time.Local
	if cfg != nil && cfg.TimeZone != "" {
		var err error
		loc, err = time.LoadLocation(cfg.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("invalid analytics time zone %q: %w", cfg.TimeZone, err)
		}
	}
	return &Service{
		logger: logger.Named("analytics"),
		source: source,
		loc:    loc,
		now:    time.Now,
	}, nil
}

// Report fetches the history of the range, and at least a day of it so the
// hourly chart is always complete, then aggregates it.
func (s *Service) Report(ctx context.Context, r Range) (*Report, error) {
	scope := trace.Tracer(cnst.TraceAnalytics).Start(ctx, cnst.SpanAnalyticsRun)
	defer scope.End()
	scope.WithAttrs(attribute.String("analytics.range", string(r)))

	hours := max(r.Hours(), 24)
	records, err := s.source.History(scope.Ctx, hours)
	if err != nil {
		scope.Fail(err)
		s.logger.Error("failed to read visitor history", zap.String("range", string(r)), zap.Error(err))
		return nil, err
	}
	return Build(records, s.now(), r, s.loc), nil
}
