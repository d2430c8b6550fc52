package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	billingUsecases "atelier/internal/application/billing/usecases"
	"atelier/internal/shared/biztime"
	"atelier/internal/shared/logger"
	"atelier/internal/shared/utils"
)

type LedgerHandler struct {
	refundUC  *billingUsecases.RefundPaymentUseCase
	summaryUC *billingUsecases.RevenueSummaryUseCase
	logger    logger.Interface
}

func NewLedgerHandler(
	refundUC *billingUsecases.RefundPaymentUseCase,
	summaryUC *billingUsecases.RevenueSummaryUseCase,
	logger logger.Interface,
) *LedgerHandler {
	return &LedgerHandler{
		refundUC:  refundUC,
		summaryUC: summaryUC,
		logger:    logger,
	}
}

type RefundRequest struct {
	AmountMinor int64 `json:"amount_minor" binding:"required,gt=0"`
}

func (h *LedgerHandler) Refund(c *gin.Context) {
	paymentRef := c.Param("ref")

	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	err := h.refundUC.Execute(c.Request.Context(), billingUsecases.RefundPaymentCommand{
		ProviderPaymentRef: paymentRef,
		AmountMinor:        req.AmountMinor,
	})
	if err != nil {
		h.logger.Errorw("failed to refund payment", "error", err, "payment_ref", paymentRef)
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "refund recorded successfully", nil)
}

type RevenueSummaryResponse struct {
	TotalMinor int64  `json:"total_minor"`
	From       string `json:"from"`
	To         string `json:"to"`
}

// RevenueSummary reports net recognized revenue over a window, optionally
// scoped to one creator. Defaults to the current calendar month.
func (h *LedgerHandler) RevenueSummary(c *gin.Context) {
	now := biztime.NowUTC()
	from := biztime.StartOfMonthUTC(now.Year(), now.Month())
	to := biztime.StartOfMonthUTC(now.Year(), now.Month()+1)

	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "invalid from timestamp")
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "invalid to timestamp")
			return
		}
		to = parsed
	}

	var creatorID *uint
	if raw := c.Query("creator_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "invalid creator_id")
			return
		}
		v := uint(parsed)
		creatorID = &v
	}

	summary, err := h.summaryUC.Execute(c.Request.Context(), billingUsecases.RevenueSummaryQuery{
		CreatorID: creatorID,
		From:      from,
		To:        to,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", RevenueSummaryResponse{
		TotalMinor: summary.TotalMinor,
		From:       summary.From.Format(time.RFC3339),
		To:         summary.To.Format(time.RFC3339),
	})
}
