package sqlstore

import (
	"context"
	"fmt"
	"net/url"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-whatsapp/core"
)

const journalCacheKeyPrefix = "go-whatsapp::webhook_journal::v1"

// CachedNotificationJournal serves journal reads through a cache so the
// dedupe lookup on the hot dispatch path skips the database for deliveries
// the process already saw. Writes invalidate the cached entry.
type CachedNotificationJournal struct {
	base  core.NotificationJournal
	cache repositorycache.CacheService
}

func NewCachedNotificationJournal(
	base core.NotificationJournal,
	cacheService repositorycache.CacheService,
) (*CachedNotificationJournal, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base notification journal is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: journal cache service is required")
	}
	return &CachedNotificationJournal{base: base, cache: cacheService}, nil
}

// JournalCacheKey returns the deterministic cache key for a delivery:
// go-whatsapp::webhook_journal::v1::<delivery_id> with the id URL-path
// escaped.
func JournalCacheKey(deliveryID string) string {
	return journalCacheKeyPrefix + "::" + url.PathEscape(deliveryID)
}

func (j *CachedNotificationJournal) Reserve(
	ctx context.Context,
	deliveryID string,
	payload []byte,
) (core.JournalRecord, bool, error) {
	if j == nil || j.base == nil || j.cache == nil {
		return core.JournalRecord{}, false, fmt.Errorf("sqlstore: cached notification journal is not configured")
	}
	record, duplicate, err := j.base.Reserve(ctx, deliveryID, payload)
	if err != nil {
		return core.JournalRecord{}, false, err
	}
	if err := j.cache.Delete(ctx, JournalCacheKey(deliveryID)); err != nil {
		return core.JournalRecord{}, false, err
	}
	return record, duplicate, nil
}

func (j *CachedNotificationJournal) MarkProcessed(ctx context.Context, deliveryID string) error {
	if j == nil || j.base == nil || j.cache == nil {
		return fmt.Errorf("sqlstore: cached notification journal is not configured")
	}
	if err := j.base.MarkProcessed(ctx, deliveryID); err != nil {
		return err
	}
	return j.cache.Delete(ctx, JournalCacheKey(deliveryID))
}

func (j *CachedNotificationJournal) Get(ctx context.Context, deliveryID string) (core.JournalRecord, error) {
	if j == nil || j.base == nil || j.cache == nil {
		return core.JournalRecord{}, fmt.Errorf("sqlstore: cached notification journal is not configured")
	}
	record, err := repositorycache.GetOrFetch(ctx, j.cache, JournalCacheKey(deliveryID), func(ctx context.Context) (core.JournalRecord, error) {
		return j.base.Get(ctx, deliveryID)
	})
	if err != nil {
		return core.JournalRecord{}, err
	}
	return record, nil
}

var _ core.NotificationJournal = (*CachedNotificationJournal)(nil)
