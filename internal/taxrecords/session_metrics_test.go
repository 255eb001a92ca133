package taxrecords_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bevanyudira/IPBB-sub000/internal/cache"
	"github.com/bevanyudira/IPBB-sub000/internal/metrics"
	"github.com/bevanyudira/IPBB-sub000/internal/nop"
	"github.com/bevanyudira/IPBB-sub000/internal/obligation"
	"github.com/bevanyudira/IPBB-sub000/internal/taxrecords"
)

const sessionNOP = "510203000102400180"

func fetchSamples(t *testing.T, reg *prometheus.Registry) uint64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	var n uint64
	for _, mf := range families {
		if mf.GetName() != "pbb_taxrecords_fetch_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			n += m.GetHistogram().GetSampleCount()
		}
	}
	return n
}

// Client and Aggregator share one Metrics in production. Each HTTP call must
// be observed once, and cache hits not at all.
func TestSessionFetchMetricsMatchUpstreamCalls(t *testing.T) {
	var calls atomic.Uint64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sppt/"+sessionNOP+"/years", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"availableYears":[{"year":"2024","nm_wp_sppt":"I MADE SUKA"}]}`))
	})
	mux.HandleFunc("/api/sppt/"+sessionNOP+"/years/2024", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"thn_pajak_sppt":"2024","tgl_jatuh_tempo_sppt":"2024-08-31","pbb_yg_harus_dibayar_sppt":432044,"status_pembayaran_sppt":"0"}`))
	})
	mux.HandleFunc("/api/payments/"+sessionNOP+"/years/2024", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`null`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	client, err := taxrecords.NewClient(srv.URL, taxrecords.WithMetrics(m), taxrecords.WithBackoff(time.Millisecond))
	require.NoError(t, err)
	fetcher := taxrecords.NewCachedClient(client, cache.NewMemoryStore(), time.Minute, m, nil)
	agg := obligation.New(fetcher, nil, nil, obligation.WithMetrics(m))

	id, err := nop.Decode(sessionNOP)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for range 2 {
		s, err := agg.Start(ctx, id)
		require.NoError(t, err)
		snap, err := s.Wait(ctx)
		require.NoError(t, err)
		require.Len(t, snap.Rows, 1)
		assert.False(t, snap.Rows[0].Error)
	}

	// First session: list, detail and payment. Second: payment only.
	assert.Equal(t, uint64(4), calls.Load())
	assert.Equal(t, calls.Load(), fetchSamples(t, reg))
}
