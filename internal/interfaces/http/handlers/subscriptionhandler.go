package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	subscriptionUsecases "atelier/internal/application/subscription/usecases"
	"atelier/internal/domain/subscription"
	"atelier/internal/shared/logger"
	"atelier/internal/shared/utils"
)

type SubscriptionHandler struct {
	createUC     *subscriptionUsecases.CreateSubscriptionUseCase
	cancelUC     *subscriptionUsecases.CancelSubscriptionUseCase
	reactivateUC *subscriptionUsecases.ReactivateSubscriptionUseCase
	getUC        *subscriptionUsecases.GetSubscriptionUseCase
	listUC       *subscriptionUsecases.ListSubscriberSubscriptionsUseCase
	accessUC     *subscriptionUsecases.CheckAccessUseCase
	logger       logger.Interface
}

func NewSubscriptionHandler(
	createUC *subscriptionUsecases.CreateSubscriptionUseCase,
	cancelUC *subscriptionUsecases.CancelSubscriptionUseCase,
	reactivateUC *subscriptionUsecases.ReactivateSubscriptionUseCase,
	getUC *subscriptionUsecases.GetSubscriptionUseCase,
	listUC *subscriptionUsecases.ListSubscriberSubscriptionsUseCase,
	accessUC *subscriptionUsecases.CheckAccessUseCase,
	logger logger.Interface,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		createUC:     createUC,
		cancelUC:     cancelUC,
		reactivateUC: reactivateUC,
		getUC:        getUC,
		listUC:       listUC,
		accessUC:     accessUC,
		logger:       logger,
	}
}

type CreateSubscriptionRequest struct {
	SubscriberID uint   `json:"subscriber_id" binding:"required"`
	CreatorID    *uint  `json:"creator_id"`
	Tier         string `json:"tier" binding:"required"`
	AmountMinor  int64  `json:"amount_minor" binding:"required,gt=0"`
	Currency     string `json:"currency"`
}

type CancelSubscriptionRequest struct {
	Immediate bool `json:"immediate"`
}

type SubscriptionResponse struct {
	ID                    uint   `json:"id"`
	SID                   string `json:"sid"`
	SubscriberID          uint   `json:"subscriber_id"`
	CreatorID             *uint  `json:"creator_id,omitempty"`
	Tier                  string `json:"tier"`
	Status                string `json:"status"`
	CurrentPeriodStart    string `json:"current_period_start"`
	CurrentPeriodEnd      string `json:"current_period_end"`
	CancelAtPeriodEnd     bool   `json:"cancel_at_period_end"`
	CanceledAt            string `json:"canceled_at,omitempty"`
	PendingReconciliation bool   `json:"pending_reconciliation"`
	CreatedAt             string `json:"created_at"`
}

func toSubscriptionResponse(sub *subscription.Subscription) SubscriptionResponse {
	resp := SubscriptionResponse{
		ID:                    sub.ID(),
		SID:                   sub.SID(),
		SubscriberID:          sub.SubscriberID(),
		CreatorID:             sub.CreatorID(),
		Tier:                  sub.Tier().String(),
		Status:                sub.Status().String(),
		CurrentPeriodStart:    sub.CurrentPeriodStart().Format(time.RFC3339),
		CurrentPeriodEnd:      sub.CurrentPeriodEnd().Format(time.RFC3339),
		CancelAtPeriodEnd:     sub.CancelAtPeriodEnd(),
		PendingReconciliation: sub.PendingReconciliation(),
		CreatedAt:             sub.CreatedAt().Format(time.RFC3339),
	}
	if canceledAt := sub.CanceledAt(); canceledAt != nil {
		resp.CanceledAt = canceledAt.Format(time.RFC3339)
	}
	return resp
}

func (h *SubscriptionHandler) Create(c *gin.Context) {
	var req CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	sub, err := h.createUC.Execute(c.Request.Context(), subscriptionUsecases.CreateSubscriptionCommand{
		SubscriberID: req.SubscriberID,
		CreatorID:    req.CreatorID,
		Tier:         req.Tier,
		AmountMinor:  req.AmountMinor,
		Currency:     req.Currency,
	})
	if err != nil {
		h.logger.Errorw("failed to create subscription", "error", err, "subscriber_id", req.SubscriberID)
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.CreatedResponse(c, toSubscriptionResponse(sub), "subscription created successfully")
}

func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	subscriptionID, ok := parseIDParam(c)
	if !ok {
		return
	}

	// Body is optional; an empty body means cancel at period end.
	var req CancelSubscriptionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
			return
		}
	}

	err := h.cancelUC.Execute(c.Request.Context(), subscriptionUsecases.CancelSubscriptionCommand{
		SubscriptionID: subscriptionID,
		Immediate:      req.Immediate,
	})
	if err != nil {
		h.logger.Errorw("failed to cancel subscription", "error", err, "subscription_id", subscriptionID)
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "subscription canceled successfully", nil)
}

func (h *SubscriptionHandler) Reactivate(c *gin.Context) {
	subscriptionID, ok := parseIDParam(c)
	if !ok {
		return
	}

	sub, err := h.reactivateUC.Execute(c.Request.Context(), subscriptionUsecases.ReactivateSubscriptionCommand{
		SubscriptionID: subscriptionID,
	})
	if err != nil {
		h.logger.Errorw("failed to reactivate subscription", "error", err, "subscription_id", subscriptionID)
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "subscription reactivated successfully", toSubscriptionResponse(sub))
}

func (h *SubscriptionHandler) Get(c *gin.Context) {
	subscriptionID, ok := parseIDParam(c)
	if !ok {
		return
	}

	sub, err := h.getUC.Execute(c.Request.Context(), subscriptionID)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", toSubscriptionResponse(sub))
}

func (h *SubscriptionHandler) ListBySubscriber(c *gin.Context) {
	subscriberID, err := strconv.ParseUint(c.Query("subscriber_id"), 10, 32)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid subscriber_id")
		return
	}

	subs, err := h.listUC.Execute(c.Request.Context(), uint(subscriberID))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	items := make([]SubscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		items = append(items, toSubscriptionResponse(sub))
	}
	utils.SuccessResponse(c, http.StatusOK, "", items)
}

type AccessResponse struct {
	Allowed bool   `json:"allowed"`
	Tier    string `json:"tier"`
}

// CheckAccess answers entitlement checks from the local record only; it never
// calls the billing provider.
func (h *SubscriptionHandler) CheckAccess(c *gin.Context) {
	subscriberID, err := strconv.ParseUint(c.Query("subscriber_id"), 10, 32)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid subscriber_id")
		return
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

	tier := c.Query("tier")

	allowed, err := h.accessUC.Execute(c.Request.Context(), subscriptionUsecases.CheckAccessQuery{
		SubscriberID: uint(subscriberID),
		CreatorID:    creatorID,
		Tier:         tier,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", AccessResponse{Allowed: allowed, Tier: tier})
}

func parseIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid subscription id")
		return 0, false
	}
	return uint(id), true
}
