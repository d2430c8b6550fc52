package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"atelier/internal/domain/ledger"
	"atelier/internal/infrastructure/persistence/mappers"
	"atelier/internal/infrastructure/persistence/models"
	"atelier/internal/shared/constants"
	"atelier/internal/shared/db"
	"atelier/internal/shared/logger"
)

type LedgerEntryRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.LedgerEntryMapper
	logger logger.Interface
}

func NewLedgerEntryRepository(
	db *gorm.DB,
	logger logger.Interface,
) ledger.EntryRepository {
	return &LedgerEntryRepositoryImpl{
		db:     db,
		mapper: mappers.NewLedgerEntryMapper(),
		logger: logger,
	}
}

func (r *LedgerEntryRepositoryImpl) Create(ctx context.Context, entry *ledger.Entry) error {
	model, err := r.mapper.ToModel(entry)
	if err != nil {
		r.logger.Errorw("failed to map ledger entry to model", "error", err)
		return fmt.Errorf("failed to map ledger entry: %w", err)
	}

	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Same provider payment ref already recorded: the append is a replay.
			return ledger.ErrDuplicateEntry
		}
		r.logger.Errorw("failed to create ledger entry in database", "error", err)
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}

	entry.SetID(model.ID)

	r.logger.Infow("ledger entry created",
		"id", model.ID,
		"provider_payment_ref", model.ProviderPaymentRef,
		"kind", model.Kind,
		"amount_minor", model.AmountMinor)
	return nil
}

func (r *LedgerEntryRepositoryImpl) GetByID(ctx context.Context, entryID uint) (*ledger.Entry, error) {
	var model models.LedgerEntryModel

	if err := db.GetTxFromContext(ctx, r.db).First(&model, entryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Errorw("failed to get ledger entry by ID", "id", entryID, "error", err)
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}

	return r.toEntity(&model)
}

func (r *LedgerEntryRepositoryImpl) GetBySID(ctx context.Context, sid string) (*ledger.Entry, error) {
	var model models.LedgerEntryModel

	if err := db.GetTxFromContext(ctx, r.db).Where("sid = ?", sid).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Errorw("failed to get ledger entry by SID", "sid", sid, "error", err)
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}

	return r.toEntity(&model)
}

func (r *LedgerEntryRepositoryImpl) GetByProviderPaymentRef(ctx context.Context, ref string) (*ledger.Entry, error) {
	var model models.LedgerEntryModel

	if err := db.GetTxFromContext(ctx, r.db).Where("provider_payment_ref = ?", ref).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Errorw("failed to get ledger entry by payment ref", "provider_payment_ref", ref, "error", err)
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}

	return r.toEntity(&model)
}

func (r *LedgerEntryRepositoryImpl) GetBySubscriptionID(ctx context.Context, subscriptionID uint) ([]*ledger.Entry, error) {
	var entryModels []*models.LedgerEntryModel

	if err := db.GetTxFromContext(ctx, r.db).Where("subscription_id = ?", subscriptionID).Order("occurred_at ASC").Find(&entryModels).Error; err != nil {
		r.logger.Errorw("failed to get ledger entries by subscription ID", "subscription_id", subscriptionID, "error", err)
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}

	entities, err := r.mapper.ToEntities(entryModels)
	if err != nil {
		r.logger.Errorw("failed to map ledger entry models", "error", err)
		return nil, fmt.Errorf("failed to map ledger entries: %w", err)
	}
	return entities, nil
}

// Update persists outcome and refund changes guarded by the version loaded
// from storage. Amount, kind, and the provider ref are append-only and never
// written here.
func (r *LedgerEntryRepositoryImpl) Update(ctx context.Context, entry *ledger.Entry) error {
	model, err := r.mapper.ToModel(entry)
	if err != nil {
		r.logger.Errorw("failed to map ledger entry to model", "id", entry.ID(), "error", err)
		return fmt.Errorf("failed to map ledger entry: %w", err)
	}

	result := db.GetTxFromContext(ctx, r.db).Model(&models.LedgerEntryModel{}).
		Where("id = ? AND version = ?", model.ID, entry.PersistedVersion()).
		Updates(map[string]interface{}{
			"outcome":        model.Outcome,
			"refunded_minor": model.RefundedMinor,
			"failure_reason": model.FailureReason,
			"metadata":       model.Metadata,
			"version":        model.Version,
			"updated_at":     model.UpdatedAt,
		})

	if result.Error != nil {
		r.logger.Errorw("failed to update ledger entry", "id", model.ID, "error", result.Error)
		return fmt.Errorf("failed to update ledger entry: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ledger.ErrStaleEntry
	}

	return nil
}

// SumSucceededByCreator reports net recognized revenue for one creator:
// succeeded amounts minus whatever was later refunded, over occurred_at range.
func (r *LedgerEntryRepositoryImpl) SumSucceededByCreator(ctx context.Context, creatorID uint, from, to time.Time) (int64, error) {
	return r.sumNet(ctx, db.GetTxFromContext(ctx, r.db).Where("creator_id = ?", creatorID), from, to)
}

// SumSucceededByPeriod reports platform-wide net recognized revenue.
func (r *LedgerEntryRepositoryImpl) SumSucceededByPeriod(ctx context.Context, from, to time.Time) (int64, error) {
	return r.sumNet(ctx, db.GetTxFromContext(ctx, r.db), from, to)
}

func (r *LedgerEntryRepositoryImpl) sumNet(ctx context.Context, query *gorm.DB, from, to time.Time) (int64, error) {
	var total int64

	err := query.
		Table(constants.TableLedgerEntries).
		Select("COALESCE(SUM(amount_minor - refunded_minor), 0)").
		Where("outcome IN ?", []string{"succeeded", "refunded"}).
		Where("occurred_at >= ? AND occurred_at < ?", from, to).
		Scan(&total).Error
	if err != nil {
		r.logger.Errorw("failed to sum ledger entries", "error", err)
		return 0, fmt.Errorf("failed to sum ledger entries: %w", err)
	}

	return total, nil
}

func (r *LedgerEntryRepositoryImpl) toEntity(model *models.LedgerEntryModel) (*ledger.Entry, error) {
	entity, err := r.mapper.ToEntity(model)
	if err != nil {
		r.logger.Errorw("failed to map ledger entry model to entity", "id", model.ID, "error", err)
		return nil, fmt.Errorf("failed to map ledger entry: %w", err)
	}
	return entity, nil
}
