package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-whatsapp/core"
)

// NotificationJournalStore persists one row per webhook delivery. The
// delivery id carries a unique index, so a concurrent duplicate insert
// collapses onto the existing row and reports duplicate=true.
type NotificationJournalStore struct {
	db   *bun.DB
	repo repository.Repository[*journalRecord]
}

func NewNotificationJournalStore(db *bun.DB) (*NotificationJournalStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*journalRecord](db, journalHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid journal repository wiring: %w", err)
		}
	}
	return &NotificationJournalStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *NotificationJournalStore) Reserve(
	ctx context.Context,
	deliveryID string,
	payload []byte,
) (core.JournalRecord, bool, error) {
	if s == nil || s.db == nil {
		return core.JournalRecord{}, false, fmt.Errorf("sqlstore: notification journal is not configured")
	}
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return core.JournalRecord{}, false, fmt.Errorf("sqlstore: delivery id is required")
	}

	record := &journalRecord{
		ID:         uuid.NewString(),
		DeliveryID: deliveryID,
		Status:     core.JournalStatusPending,
		Attempts:   1,
		Payload:    append([]byte(nil), payload...),
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			existing, getErr := s.Get(ctx, deliveryID)
			if getErr != nil {
				return core.JournalRecord{}, false, getErr
			}
			return existing, true, nil
		}
		return core.JournalRecord{}, false, err
	}
	return journalToDomain(record), false, nil
}

func (s *NotificationJournalStore) Get(ctx context.Context, deliveryID string) (core.JournalRecord, error) {
	if s == nil || s.db == nil {
		return core.JournalRecord{}, fmt.Errorf("sqlstore: notification journal is not configured")
	}
	record := &journalRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.delivery_id = ?", strings.TrimSpace(deliveryID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.JournalRecord{}, fmt.Errorf(
				"sqlstore: journal entry not found for delivery %q",
				deliveryID,
			)
		}
		return core.JournalRecord{}, err
	}
	return journalToDomain(record), nil
}

func (s *NotificationJournalStore) MarkProcessed(ctx context.Context, deliveryID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: notification journal is not configured")
	}
	now := time.Now().UTC()
	_, err := s.db.NewUpdate().
		Model((*journalRecord)(nil)).
		Set("status = ?", core.JournalStatusProcessed).
		Set("updated_at = ?", now).
		Where("delivery_id = ?", strings.TrimSpace(deliveryID)).
		Exec(ctx)
	return err
}

func journalToDomain(record *journalRecord) core.JournalRecord {
	if record == nil {
		return core.JournalRecord{}
	}
	return core.JournalRecord{
		ID:         record.ID,
		DeliveryID: record.DeliveryID,
		Status:     record.Status,
		Attempts:   record.Attempts,
		Payload:    append([]byte(nil), record.Payload...),
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

var _ core.NotificationJournal = (*NotificationJournalStore)(nil)
