package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	summaryKeyPrefix = "stock:summary:"
	summaryTTL       = 5 * time.Minute
)

// ProductSummary cached stock snapshot for one product.
type ProductSummary struct {
	ProductID    string `json:"product_id"`
	Quantity     int    `json:"quantity"`
	ActiveLots   int    `json:"active_lots"`
	ExpiringSoon int    `json:"expiring_soon"`
}

// SummaryCache read-through redis cache for product stock summaries. A cache
// miss or redis outage never fails the request; callers fall back to the
// database.
type SummaryCache struct {
	rdb *redis.Client
}

func NewSummaryCache(rdb *redis.Client) *SummaryCache {
	return &SummaryCache{rdb: rdb}
}

func (c *SummaryCache) Get(ctx context.Context, productID string) (*ProductSummary, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, summaryKeyPrefix+productID).Bytes()
	if err != nil {
		return nil, false
	}
	var summary ProductSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, false
	}
	return &summary, true
}

func (c *SummaryCache) Set(ctx context.Context, summary *ProductSummary) {
	if c == nil || c.rdb == nil {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, summaryKeyPrefix+summary.ProductID, raw, summaryTTL)
}

func (c *SummaryCache) Invalidate(ctx context.Context, productID string) {
	if c == nil || c.rdb == nil {
		return
	}
	c.rdb.Del(ctx, summaryKeyPrefix+productID)
}
