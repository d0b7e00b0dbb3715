package geo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vitrinhq/vitrin/internal/common/cnst"
	"github.com/vitrinhq/vitrin/internal/common/config"
	"github.com/vitrinhq/vitrin/internal/visitor"
	"github.com/vitrinhq/vitrin/pkg/trace"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Stage names an enrichment step
type Stage string

const (
	StageIP  Stage = "ip"
	StageGeo Stage = "geo"
)

// StageError reports which step of an enrichment failed
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s lookup: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// UnknownLocation is the result when nothing could be resolved
func UnknownLocation() visitor.Location {
	return visitor.Location{IP: cnst.Unknown, City: cnst.Unknown, Country: cnst.Unknown, Region: cnst.Unknown}
}

// Service runs the two-step lookup: public address, then geolocation.
// Each step has its own deadline and circuit breaker; geolocation calls are rate limited.
type Service struct {
	logger     *zap.Logger
	resolver   Resolver
	locator    Locator
	timeout    time.Duration
	disabled   bool
	limiter    *rate.Limiter
	ipBreaker  *gobreaker.CircuitBreaker[string]
	geoBreaker *gobreaker.CircuitBreaker[*visitor.Location]
	// fallbackOnce guards the warning about resolving the server's own address
	fallbackOnce sync.Once
}

// NewService builds the HTTP-backed service from configuration
func NewService(logger *zap.Logger, cfg *config.EnrichmentConfig) *Service {
	client := NewHTTPClient()
	return NewServiceWith(logger, cfg,
		NewHTTPResolver(client, cfg.IPURL, cfg.IPPath),
		NewHTTPLocator(client, cfg.GeoURL, cfg.CityPath, cfg.CountryPath, cfg.RegionPath),
	)
}

// NewServiceWith builds the service around custom lookups
func NewServiceWith(logger *zap.Logger, cfg *config.EnrichmentConfig, resolver Resolver, locator Locator) *Service {
	logger = logger.Named("geo")
	return &Service{
		logger:     logger,
		resolver:   resolver,
		locator:    locator,
		timeout:    cfg.Timeout,
		disabled:   cfg.Disabled,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		ipBreaker:  gobreaker.NewCircuitBreaker[string](breakerSettings(logger, "geo.ip", cfg.Breaker)),
		geoBreaker: gobreaker.NewCircuitBreaker[*visitor.Location](breakerSettings(logger, "geo.locate", cfg.Breaker)),
	}
}

func breakerSettings(logger *zap.Logger, name string, cfg config.BreakerConfig) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
}

// Enrich resolves the location of a visitor. The returned location is always
// complete: anything that failed is cnst.Unknown, and the error lists the failed stages.
// A public clientIP is used as is; otherwise the resolver is asked.
func (s *Service) Enrich(ctx context.Context, clientIP string) (visitor.Location, error) {
	loc := UnknownLocation()
	if s.disabled {
		return loc, nil
	}

	scope := trace.Tracer(cnst.TraceGeo).Start(ctx, cnst.SpanEnrich)
	defer scope.End()
	ctx = scope.Ctx

	ip := clientIP
	if !IsPublicIP(ip) {
		s.fallbackOnce.Do(func() {
			s.logger.Warn("client address is not public, resolving through the ip endpoint; "+
				"visitors share the server's address unless trusted_proxies is set or the page reports its ip",
				zap.String("client_ip", clientIP))
		})
		var err error
		ip, err = s.publicIP(ctx)
		if err != nil {
			return loc, &StageError{Stage: StageIP, Err: err}
		}
	}
	loc.IP = ip
	scope.WithAttrs(attribute.String("visitor.ip", ip))

	found, err := s.locate(ctx, ip)
	if err != nil {
		return loc, &StageError{Stage: StageGeo, Err: err}
	}
	loc.City, loc.Country, loc.Region = found.City, found.Country, found.Region
	return loc, nil
}

func (s *Service) publicIP(ctx context.Context) (string, error) {
	scope := trace.Tracer(cnst.TraceGeo).Start(ctx, cnst.SpanGeoPublicIP)
	defer scope.End()
	ctx, cancel := context.WithTimeout(scope.Ctx, s.timeout)
	defer cancel()

	ip, err := s.ipBreaker.Execute(func() (string, error) {
		return s.resolver.PublicIP(ctx)
	})
	scope.Fail(err)
	return ip, err
}

func (s *Service) locate(ctx context.Context, ip string) (*visitor.Location, error) {
	scope := trace.Tracer(cnst.TraceGeo).Start(ctx, cnst.SpanGeoLocate)
	defer scope.End()
	ctx, cancel := context.WithTimeout(scope.Ctx, s.timeout)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		scope.Fail(err)
		return nil, fmt.Errorf("rate limited: %w", err)
	}
	loc, err := s.geoBreaker.Execute(func() (*visitor.Location, error) {
		return s.locator.Locate(ctx, ip)
	})
	scope.Fail(err)
	return loc, err
}

// IsBreakerOpen reports whether err came from an open or saturated breaker
func IsBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
