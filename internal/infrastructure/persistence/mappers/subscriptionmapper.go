package mappers

import (
	"encoding/json"
	"fmt"

	"atelier/internal/domain/subscription"
	vo "atelier/internal/domain/subscription/valueobjects"
	"atelier/internal/infrastructure/persistence/models"
)

type SubscriptionMapper interface {
	ToEntity(model *models.SubscriptionModel) (*subscription.Subscription, error)
	ToModel(entity *subscription.Subscription) (*models.SubscriptionModel, error)
	ToEntities(models []*models.SubscriptionModel) ([]*subscription.Subscription, error)
}

type SubscriptionMapperImpl struct{}

func NewSubscriptionMapper() SubscriptionMapper {
	return &SubscriptionMapperImpl{}
}

func (m *SubscriptionMapperImpl) ToEntity(model *models.SubscriptionModel) (*subscription.Subscription, error) {
	if model == nil {
		return nil, nil
	}

	status := vo.SubscriptionStatus(model.Status)
	if !vo.ValidStatuses[status] {
		return nil, fmt.Errorf("invalid subscription status: %s", model.Status)
	}
	tier, err := vo.ParseTier(model.Tier)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tier: %w", err)
	}

	var metadata map[string]interface{}
	if model.Metadata != nil {
		if err := json.Unmarshal(model.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	entity, err := subscription.ReconstructSubscription(subscription.SubscriptionReconstructParams{
		ID:                    model.ID,
		SID:                   model.SID,
		SubscriberID:          model.SubscriberID,
		CreatorID:             model.CreatorID,
		Tier:                  tier,
		ExternalRef:           model.ExternalRef,
		Status:                status,
		CurrentPeriodStart:    model.CurrentPeriodStart,
		CurrentPeriodEnd:      model.CurrentPeriodEnd,
		CancelAtPeriodEnd:     model.CancelAtPeriodEnd,
		CanceledAt:            model.CanceledAt,
		PendingReconciliation: model.PendingReconciliation,
		Metadata:              metadata,
		Version:               model.Version,
		CreatedAt:             model.CreatedAt,
		UpdatedAt:             model.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct subscription entity: %w", err)
	}

	return entity, nil
}

func (m *SubscriptionMapperImpl) ToModel(entity *subscription.Subscription) (*models.SubscriptionModel, error) {
	if entity == nil {
		return nil, nil
	}

	metadata, err := json.Marshal(entity.Metadata())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	model := &models.SubscriptionModel{
		ID:                    entity.ID(),
		SID:                   entity.SID(),
		SubscriberID:          entity.SubscriberID(),
		CreatorID:             entity.CreatorID(),
		Tier:                  entity.Tier().String(),
		ExternalRef:           entity.ExternalRef(),
		Status:                entity.Status().String(),
		ActivePairKey:         ActivePairKey(entity),
		CurrentPeriodStart:    entity.CurrentPeriodStart(),
		CurrentPeriodEnd:      entity.CurrentPeriodEnd(),
		CancelAtPeriodEnd:     entity.CancelAtPeriodEnd(),
		CanceledAt:            entity.CanceledAt(),
		PendingReconciliation: entity.PendingReconciliation(),
		Metadata:              metadata,
		Version:               entity.Version(),
		CreatedAt:             entity.CreatedAt(),
		UpdatedAt:             entity.UpdatedAt(),
	}

	return model, nil
}

func (m *SubscriptionMapperImpl) ToEntities(subscriptionModels []*models.SubscriptionModel) ([]*subscription.Subscription, error) {
	entities := make([]*subscription.Subscription, 0, len(subscriptionModels))
	for _, model := range subscriptionModels {
		entity, err := m.ToEntity(model)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

// ActivePairKey derives the unique-constraint column that keeps at most one
// non-terminal record per (subscriber, creator) pair. Terminal records carry
// NULL so the index never blocks a new subscription after cancellation.
func ActivePairKey(entity *subscription.Subscription) *string {
	if entity.IsTerminal() {
		return nil
	}
	creator := uint(0)
	if entity.CreatorID() != nil {
		creator = *entity.CreatorID()
	}
	key := fmt.Sprintf("%d:%d", entity.SubscriberID(), creator)
	return &key
}
