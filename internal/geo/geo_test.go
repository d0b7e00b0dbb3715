package geo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vitrinhq/vitrin/internal/common/cnst"
	"github.com/vitrinhq/vitrin/internal/common/config"
	"github.com/vitrinhq/vitrin/internal/visitor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func testConfig(ipURL, geoURL string) *config.EnrichmentConfig {
	cfg := &config.PresenceConfig{Enrichment: config.EnrichmentConfig{
		Timeout:   200 * time.Millisecond,
		IPURL:     ipURL,
		GeoURL:    geoURL,
		RateLimit: 1000,
		RateBurst: 1000,
	}}
	var full config.VitrinConfig
	full.Presence = *cfg
	full.ApplyDefaults()
	return &full.Presence.Enrichment
}

func newBackend(t *testing.T, ipBody string, geo http.HandlerFunc) (*httptest.Server, *atomic.Int32, *atomic.Int32) {
	t.Helper()
	var ipCalls, geoCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/ip", func(w http.ResponseWriter, r *http.Request) {
		ipCalls.Add(1)
		_, _ = w.Write([]byte(ipBody))
	})
	mux.HandleFunc("/geo/", func(w http.ResponseWriter, r *http.Request) {
		geoCalls.Add(1)
		geo(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &ipCalls, &geoCalls
}

func TestIsPublicIP(t *testing.T) {
	for _, ip := range []string{"85.105.12.34", "8.8.8.8", "2a02:e0:1::1", "::ffff:85.105.12.34"} {
		assert.True(t, IsPublicIP(ip), ip)
	}
	for _, ip := range []string{"", "garbage", "127.0.0.1", "10.1.2.3", "172.16.0.1", "192.168.1.10",
		"169.254.0.1", "100.64.1.1", "::1", "fe80::1", "fd00::1", "0.0.0.0", "224.0.0.1"} {
		assert.False(t, IsPublicIP(ip), ip)
	}
}

func TestEnrich_ResolvesThroughBothEndpoints(t *testing.T) {
	srv, ipCalls, geoCalls := newBackend(t, `{"ip":"85.105.12.34"}`, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geo/85.105.12.34/json/", r.URL.Path)
		_, _ = w.Write([]byte(`{"ip":"85.105.12.34","city":"İstanbul","country_name":"Turkey","region":"Istanbul"}`))
	})

	svc := NewService(zap.NewNop(), testConfig(srv.URL+"/ip", srv.URL+"/geo/%s/json/"))
	loc, err := svc.Enrich(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, visitor.Location{IP: "85.105.12.34", City: "İstanbul", Country: "Turkey", Region: "Istanbul"}, loc)
	assert.EqualValues(t, 1, ipCalls.Load())
	assert.EqualValues(t, 1, geoCalls.Load())
}

func TestEnrich_WarnsOnceAboutServerSideLookup(t *testing.T) {
	srv, _, _ := newBackend(t, `{"ip":"85.105.12.34"}`, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"city":"Ankara","country_name":"Turkey"}`))
	})
	core, logs := observer.New(zap.WarnLevel)

	svc := NewService(zap.New(core), testConfig(srv.URL+"/ip", srv.URL+"/geo/%s/json/"))
	for _, ip := range []string{"10.0.0.5", "10.0.0.6", "88.230.1.2"} {
		_, err := svc.Enrich(context.Background(), ip)
		require.NoError(t, err)
	}
	warned := logs.FilterMessageSnippet("client address is not public")
	require.Equal(t, 1, warned.Len())
	assert.Equal(t, "10.0.0.5", warned.All()[0].ContextMap()["client_ip"])
}

func TestEnrich_PublicClientIPSkipsResolver(t *testing.T) {
	srv, ipCalls, _ := newBackend(t, `{"ip":"1.1.1.1"}`, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"city":"Ankara","country_name":"Turkey"}`))
	})

	svc := NewService(zap.NewNop(), testConfig(srv.URL+"/ip", srv.URL+"/geo/%s/json/"))
	loc, err := svc.Enrich(context.Background(), "88.230.1.2")
	require.NoError(t, err)
	assert.Equal(t, "88.230.1.2", loc.IP)
	assert.Equal(t, "Ankara", loc.City)
	assert.Equal(t, cnst.Unknown, loc.Region, "missing fields become unknown")
	assert.EqualValues(t, 0, ipCalls.Load())
}

func TestEnrich_IPTimeoutDegradesToUnknown(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/ip", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	svc := NewService(zap.NewNop(), testConfig(srv.URL+"/ip", srv.URL+"/geo/%s/json/"))
	start := time.Now()
	loc, err := svc.Enrich(context.Background(), "")
	elapsed := time.Since(start)

	require.Error(t, err)
	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageIP, stageErr.Stage)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, UnknownLocation(), loc)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestEnrich_GeoFailureKeepsIP(t *testing.T) {
	srv, _, _ := newBackend(t, `{"ip":"85.105.12.34"}`, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	svc := NewService(zap.NewNop(), testConfig(srv.URL+"/ip", srv.URL+"/geo/%s/json/"))
	loc, err := svc.Enrich(context.Background(), "")
	require.Error(t, err)
	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageGeo, stageErr.Stage)
	assert.Equal(t, "85.105.12.34", loc.IP)
	assert.Equal(t, cnst.Unknown, loc.City)
	assert.Equal(t, cnst.Unknown, loc.Country)
}

func TestEnrich_ErrorPayload(t *testing.T) {
	srv, _, _ := newBackend(t, `{"ip":"85.105.12.34"}`, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":true,"reason":"RateLimited"}`))
	})

	svc := NewService(zap.NewNop(), testConfig(srv.URL+"/ip", srv.URL+"/geo/%s/json/"))
	_, err := svc.Enrich(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RateLimited")
}

func TestEnrich_BadIPPayload(t *testing.T) {
	srv, _, geoCalls := newBackend(t, `{"address":"x"}`, func(w http.ResponseWriter, r *http.Request) {})

	svc := NewService(zap.NewNop(), testConfig(srv.URL+"/ip", srv.URL+"/geo/%s/json/"))
	loc, err := svc.Enrich(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoAddress)
	assert.Equal(t, cnst.Unknown, loc.IP)
	assert.EqualValues(t, 0, geoCalls.Load())
}

func TestEnrich_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1/ip", "http://127.0.0.1:1/%s")
	cfg.Disabled = true
	loc, err := NewService(zap.NewNop(), cfg).Enrich(context.Background(), "85.105.12.34")
	assert.NoError(t, err)
	assert.Equal(t, UnknownLocation(), loc)
}

type failingLocator struct{ calls atomic.Int32 }

func (f *failingLocator) Locate(context.Context, string) (*visitor.Location, error) {
	f.calls.Add(1)
	return nil, fmt.Errorf("down")
}

func TestEnrich_BreakerOpensAfterFailures(t *testing.T) {
	cfg := testConfig("", "")
	cfg.Breaker.FailureThreshold = 3
	loc := &failingLocator{}
	svc := NewServiceWith(zap.NewNop(), cfg, nil, loc)

	for i := 0; i < 5; i++ {
		_, err := svc.Enrich(context.Background(), "85.105.12.34")
		require.Error(t, err)
		if i >= 3 {
			assert.True(t, IsBreakerOpen(err), "attempt %d", i)
		}
	}
	assert.EqualValues(t, 3, loc.calls.Load())
}
