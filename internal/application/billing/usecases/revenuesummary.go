package usecases

import (
	"context"
	"fmt"
	"time"

	"atelier/internal/domain/ledger"
	"atelier/internal/shared/logger"
)

type RevenueSummaryQuery struct {
	CreatorID *uint
	From      time.Time
	To        time.Time
}

type RevenueSummary struct {
	TotalMinor int64
	From       time.Time
	To         time.Time
}

// RevenueSummaryUseCase aggregates succeeded ledger entries for revenue
// attribution. Read-only projection over the ledger, never a write path.
type RevenueSummaryUseCase struct {
	ledgerRepo ledger.EntryRepository
	logger     logger.Interface
}

func NewRevenueSummaryUseCase(
	ledgerRepo ledger.EntryRepository,
	logger logger.Interface,
) *RevenueSummaryUseCase {
	return &RevenueSummaryUseCase{
		ledgerRepo: ledgerRepo,
		logger:     logger,
	}
}

func (uc *RevenueSummaryUseCase) Execute(ctx context.Context, q RevenueSummaryQuery) (*RevenueSummary, error) {
	var (
		total int64
		err   error
	)
	if q.CreatorID != nil {
		total, err = uc.ledgerRepo.SumSucceededByCreator(ctx, *q.CreatorID, q.From, q.To)
	} else {
		total, err = uc.ledgerRepo.SumSucceededByPeriod(ctx, q.From, q.To)
	}
	if err != nil {
		uc.logger.Errorw("failed to aggregate revenue", "error", err)
		return nil, fmt.Errorf("failed to aggregate revenue: %w", err)
	}

	return &RevenueSummary{
		TotalMinor: total,
		From:       q.From,
		To:         q.To,
	}, nil
}
