package sqlstore

import (
	"fmt"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-whatsapp/core"
)

// NewJournal builds the SQL-backed notification journal from either a
// *bun.DB or anything exposing DB() *bun.DB, such as the go-persistence-bun
// client.
func NewJournal(persistenceClient any) (core.NotificationJournal, error) {
	db, err := resolveBunDB(persistenceClient)
	if err != nil {
		return nil, err
	}
	return NewNotificationJournalStore(db)
}

// NewCachedJournal layers the read cache on top of the SQL journal. A nil
// cache service falls back to the default in-process cache.
func NewCachedJournal(persistenceClient any, cacheService repositorycache.CacheService) (core.NotificationJournal, error) {
	base, err := NewJournal(persistenceClient)
	if err != nil {
		return nil, err
	}
	if cacheService == nil {
		cacheService, err = repositorycache.NewCacheService(repositorycache.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("sqlstore: build journal cache service: %w", err)
		}
	}
	return NewCachedNotificationJournal(base, cacheService)
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
