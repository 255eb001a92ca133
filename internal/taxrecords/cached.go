package taxrecords

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bevanyudira/IPBB-sub000/internal/cache"
	"github.com/bevanyudira/IPBB-sub000/internal/logger"
	"github.com/bevanyudira/IPBB-sub000/internal/metrics"
	"github.com/bevanyudira/IPBB-sub000/internal/models"
)

// Fetcher is the set of tax-records calls the cache decorates.
type Fetcher interface {
	ListTaxYears(ctx context.Context, nop string) ([]models.YearListing, error)
	GetTaxYearDetail(ctx context.Context, year, nop string) (*models.TaxYearDetail, error)
	GetPaymentDetail(ctx context.Context, year, nop string) (*models.PaymentDetail, error)
}

// CachedClient caches year listings and SPPT details. Payment history is
// always fetched upstream since it changes whenever a payment is posted.
// Cache failures fall through to the upstream service.
type CachedClient struct {
	upstream Fetcher
	store    cache.Store
	ttl      time.Duration
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// NewCachedClient wraps upstream with store.
func NewCachedClient(upstream Fetcher, store cache.Store, ttl time.Duration, m *metrics.Metrics, log *logger.Logger) *CachedClient {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedClient{
		upstream: upstream,
		store:    store,
		ttl:      ttl,
		metrics:  m,
		log:      log,
	}
}

func yearsKey(nop string) string        { return "sppt:years:" + nop }
func detailKey(nop, year string) string { return "sppt:detail:" + nop + ":" + year }

// ListTaxYears implements Fetcher. Empty listings are not cached so that a
// newly registered SPPT shows up on the next call.
func (c *CachedClient) ListTaxYears(ctx context.Context, nop string) ([]models.YearListing, error) {
	var years []models.YearListing
	if c.lookup(ctx, yearsKey(nop), &years) {
		return years, nil
	}

	years, err := c.upstream.ListTaxYears(ctx, nop)
	if err != nil {
		return nil, err
	}
	if len(years) > 0 {
		c.save(ctx, yearsKey(nop), years)
	}
	return years, nil
}

// GetTaxYearDetail implements Fetcher. Nil details are not cached.
func (c *CachedClient) GetTaxYearDetail(ctx context.Context, year, nop string) (*models.TaxYearDetail, error) {
	var detail models.TaxYearDetail
	if c.lookup(ctx, detailKey(nop, year), &detail) {
		return &detail, nil
	}

	d, err := c.upstream.GetTaxYearDetail(ctx, year, nop)
	if err != nil || d == nil {
		return d, err
	}
	c.save(ctx, detailKey(nop, year), d)
	return d, nil
}

// GetPaymentDetail implements Fetcher.
func (c *CachedClient) GetPaymentDetail(ctx context.Context, year, nop string) (*models.PaymentDetail, error) {
	return c.upstream.GetPaymentDetail(ctx, year, nop)
}

func (c *CachedClient) lookup(ctx context.Context, key string, out any) bool {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn("Cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		return false
	}
	if ok {
		if err := json.Unmarshal(raw, out); err != nil {
			c.log.Warn("Discarding malformed cache entry", map[string]interface{}{"key": key, "error": err.Error()})
			ok = false
		}
	}
	c.metrics.IncCacheLookup(ok)
	return ok
}

func (c *CachedClient) save(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("Failed to encode cache entry", map[string]interface{}{"key": key, "error": err.Error()})
		return
	}
	if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
		c.log.Warn("Cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}
