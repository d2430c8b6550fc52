package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	billingUsecases "atelier/internal/application/billing/usecases"
	"atelier/internal/domain/billing"
	"atelier/internal/shared/logger"
	"atelier/internal/shared/utils"
)

// maxWebhookBodySize bounds provider event payloads (1MB)
const maxWebhookBodySize = 1 << 20

type WebhookHandler struct {
	ingestUC *billingUsecases.IngestProviderEventUseCase
	logger   logger.Interface
}

func NewWebhookHandler(
	ingestUC *billingUsecases.IngestProviderEventUseCase,
	logger logger.Interface,
) *WebhookHandler {
	return &WebhookHandler{
		ingestUC: ingestUC,
		logger:   logger,
	}
}

// HandleBillingEvent ingests one provider event. The response code drives the
// provider's redelivery: 2xx acknowledges the event, anything else makes the
// provider retry. Processing failures therefore return non-2xx on purpose.
func (h *WebhookHandler) HandleBillingEvent(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodySize))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "failed to read request body")
		return
	}

	ack, err := h.ingestUC.Execute(c.Request.Context(), payload)
	if err != nil {
		if errors.Is(err, billing.ErrEventInFlight) {
			// Another delivery of the same event is mid-processing; tell the
			// provider to come back.
			utils.ErrorResponse(c, http.StatusConflict, "event is being processed")
			return
		}
		h.logger.Errorw("failed to process billing event", "error", err)
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", ack)
}
