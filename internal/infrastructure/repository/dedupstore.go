package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"atelier/internal/domain/billing"
	"atelier/internal/infrastructure/persistence/models"
	"atelier/internal/shared/biztime"
	"atelier/internal/shared/db"
	"atelier/internal/shared/logger"
)

// abandonedClaimAge is how long a bare claim may sit without an ack before a
// redelivery is allowed to take it over. A winner that crashed between
// claiming and committing would otherwise block the event until the retention
// purge runs.
const abandonedClaimAge = 5 * time.Minute

// DedupStoreImpl implements the event idempotency gate on a unique index over
// the event id. Insert winners own processing; losers read back the stored ack.
type DedupStoreImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

func NewDedupStore(db *gorm.DB, logger logger.Interface) billing.DedupStore {
	return &DedupStoreImpl{
		db:     db,
		logger: logger,
	}
}

func (s *DedupStoreImpl) Begin(ctx context.Context, eventID string) (bool, *billing.Ack, error) {
	claim := models.ProcessedEventModel{
		EventID:   eventID,
		CreatedAt: biztime.NowUTC(),
	}

	err := db.GetTxFromContext(ctx, s.db).Create(&claim).Error
	if err == nil {
		return true, nil, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		s.logger.Errorw("failed to claim event", "event_id", eventID, "error", err)
		return false, nil, fmt.Errorf("failed to claim event: %w", err)
	}

	// Someone else holds or held the claim. A stored ack means processing
	// finished; a bare claim means the winner is still in flight.
	var existing models.ProcessedEventModel
	if err := db.GetTxFromContext(ctx, s.db).Where("event_id = ?", eventID).First(&existing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Winner released its claim between our insert and this read;
			// treat as in flight and let redelivery retry.
			return false, nil, nil
		}
		s.logger.Errorw("failed to read event claim", "event_id", eventID, "error", err)
		return false, nil, fmt.Errorf("failed to read event claim: %w", err)
	}

	if len(existing.Ack) == 0 {
		if biztime.NowUTC().Sub(existing.CreatedAt) >= abandonedClaimAge {
			return s.reclaimAbandoned(ctx, eventID)
		}
		return false, nil, nil
	}

	var ack billing.Ack
	if err := json.Unmarshal(existing.Ack, &ack); err != nil {
		s.logger.Errorw("failed to unmarshal stored ack", "event_id", eventID, "error", err)
		return false, nil, fmt.Errorf("failed to unmarshal stored ack: %w", err)
	}
	return false, &ack, nil
}

// reclaimAbandoned takes over a bare claim whose winner never committed. The
// conditional update refreshes the claim timestamp; RowsAffected settles who
// wins when several redeliveries try to reclaim at once.
func (s *DedupStoreImpl) reclaimAbandoned(ctx context.Context, eventID string) (bool, *billing.Ack, error) {
	cutoff := biztime.NowUTC().Add(-abandonedClaimAge)
	result := db.GetTxFromContext(ctx, s.db).Model(&models.ProcessedEventModel{}).
		Where("event_id = ? AND ack IS NULL AND created_at < ?", eventID, cutoff).
		Update("created_at", biztime.NowUTC())
	if result.Error != nil {
		s.logger.Errorw("failed to reclaim abandoned event claim", "event_id", eventID, "error", result.Error)
		return false, nil, fmt.Errorf("failed to reclaim abandoned event claim: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Another delivery reclaimed or completed the event first.
		return false, nil, nil
	}

	s.logger.Warnw("reclaimed abandoned event claim", "event_id", eventID)
	return true, nil, nil
}

func (s *DedupStoreImpl) Complete(ctx context.Context, eventID string, ack billing.Ack) error {
	payload, err := json.Marshal(ack)
	if err != nil {
		return fmt.Errorf("failed to marshal ack: %w", err)
	}

	now := biztime.NowUTC()
	result := db.GetTxFromContext(ctx, s.db).Model(&models.ProcessedEventModel{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"ack":          payload,
			"processed_at": &now,
		})
	if result.Error != nil {
		s.logger.Errorw("failed to store ack", "event_id", eventID, "error", result.Error)
		return fmt.Errorf("failed to store ack: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("no claim found for event %s", eventID)
	}
	return nil
}

func (s *DedupStoreImpl) Release(ctx context.Context, eventID string) error {
	// Only bare claims are released; a completed ack is never discarded.
	result := db.GetTxFromContext(ctx, s.db).
		Where("event_id = ? AND ack IS NULL", eventID).
		Delete(&models.ProcessedEventModel{})
	if result.Error != nil {
		s.logger.Errorw("failed to release event claim", "event_id", eventID, "error", result.Error)
		return fmt.Errorf("failed to release event claim: %w", result.Error)
	}
	return nil
}

func (s *DedupStoreImpl) PurgeOlderThan(ctx context.Context, window time.Duration) (int64, error) {
	cutoff := biztime.NowUTC().Add(-window)

	result := db.GetTxFromContext(ctx, s.db).
		Where("created_at < ?", cutoff).
		Delete(&models.ProcessedEventModel{})
	if result.Error != nil {
		s.logger.Errorw("failed to purge processed events", "error", result.Error)
		return 0, fmt.Errorf("failed to purge processed events: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.logger.Infow("purged processed events", "count", result.RowsAffected, "cutoff", cutoff)
	}
	return result.RowsAffected, nil
}
