package mappers

import (
	"encoding/json"
	"fmt"

	"atelier/internal/domain/ledger"
	vo "atelier/internal/domain/ledger/valueobjects"
	"atelier/internal/infrastructure/persistence/models"
)

type LedgerEntryMapper interface {
	ToEntity(model *models.LedgerEntryModel) (*ledger.Entry, error)
	ToModel(entity *ledger.Entry) (*models.LedgerEntryModel, error)
	ToEntities(models []*models.LedgerEntryModel) ([]*ledger.Entry, error)
}

type LedgerEntryMapperImpl struct{}

func NewLedgerEntryMapper() LedgerEntryMapper {
	return &LedgerEntryMapperImpl{}
}

func (m *LedgerEntryMapperImpl) ToEntity(model *models.LedgerEntryModel) (*ledger.Entry, error) {
	if model == nil {
		return nil, nil
	}

	var metadata map[string]interface{}
	if model.Metadata != nil {
		if err := json.Unmarshal(model.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	entity, err := ledger.ReconstructEntry(ledger.EntryReconstructParams{
		ID:                 model.ID,
		SID:                model.SID,
		ProviderPaymentRef: model.ProviderPaymentRef,
		SubscriberID:       model.SubscriberID,
		CreatorID:          model.CreatorID,
		SubscriptionID:     model.SubscriptionID,
		Kind:               vo.EntryKind(model.Kind),
		Outcome:            vo.Outcome(model.Outcome),
		Amount:             vo.NewMoney(model.AmountMinor, model.Currency),
		RefundedMinor:      model.RefundedMinor,
		FailureReason:      model.FailureReason,
		OccurredAt:         model.OccurredAt,
		Metadata:           metadata,
		Version:            model.Version,
		CreatedAt:          model.CreatedAt,
		UpdatedAt:          model.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct ledger entry: %w", err)
	}

	return entity, nil
}

func (m *LedgerEntryMapperImpl) ToModel(entity *ledger.Entry) (*models.LedgerEntryModel, error) {
	if entity == nil {
		return nil, nil
	}

	metadata, err := json.Marshal(entity.Metadata())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	return &models.LedgerEntryModel{
		ID:                 entity.ID(),
		SID:                entity.SID(),
		ProviderPaymentRef: entity.ProviderPaymentRef(),
		SubscriberID:       entity.SubscriberID(),
		CreatorID:          entity.CreatorID(),
		SubscriptionID:     entity.SubscriptionID(),
		Kind:               entity.Kind().String(),
		Outcome:            entity.Outcome().String(),
		AmountMinor:        entity.Amount().AmountMinor(),
		Currency:           entity.Amount().Currency(),
		RefundedMinor:      entity.RefundedMinor(),
		FailureReason:      entity.FailureReason(),
		OccurredAt:         entity.OccurredAt(),
		Metadata:           metadata,
		Version:            entity.Version(),
		CreatedAt:          entity.CreatedAt(),
		UpdatedAt:          entity.UpdatedAt(),
	}, nil
}

func (m *LedgerEntryMapperImpl) ToEntities(entryModels []*models.LedgerEntryModel) ([]*ledger.Entry, error) {
	entities := make([]*ledger.Entry, 0, len(entryModels))
	for _, model := range entryModels {
		entity, err := m.ToEntity(model)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}
