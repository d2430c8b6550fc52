package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	domainbilling "atelier/internal/domain/billing"
	"atelier/internal/shared/config"
	"atelier/internal/shared/logger"
)

const (
	// Maximum response body size for provider API responses (256KB)
	maxResponseSize = 256 << 10
	// Default timeout when the config leaves it unset
	defaultRequestTimeout = 10 * time.Second
)

// remoteSubscriptionResponse is the provider's wire shape for subscription calls.
type remoteSubscriptionResponse struct {
	Ref                string `json:"ref"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
}

// paymentIntentResponse is the provider's wire shape for payment intent calls.
type paymentIntentResponse struct {
	Ref          string `json:"ref"`
	ClientSecret string `json:"client_secret"`
	AmountMinor  int64  `json:"amount_minor"`
	Currency     string `json:"currency"`
}

type providerErrorResponse struct {
	Error string `json:"error"`
}

// HTTPGateway implements the billing Gateway against the provider's REST API.
// Every call carries its own timeout. Timeouts and transport failures surface
// as ErrProviderUnavailable so callers can distinguish "provider state
// unknown" from a definitive rejection.
type HTTPGateway struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	logger     logger.Interface
}

func NewHTTPGateway(cfg *config.BillingConfig, log logger.Interface) *HTTPGateway {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &HTTPGateway{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log,
	}
}

var _ domainbilling.Gateway = (*HTTPGateway)(nil)

func (g *HTTPGateway) CreateRemoteSubscription(ctx context.Context, req domainbilling.CreateSubscriptionRequest) (*domainbilling.RemoteSubscription, error) {
	body := map[string]interface{}{
		"subscriber_id": req.SubscriberID,
		"tier":          req.Tier,
		"amount_minor":  req.AmountMinor,
		"currency":      req.Currency,
		"metadata":      req.Metadata,
	}
	if req.CreatorID != nil {
		body["creator_id"] = *req.CreatorID
	}

	var resp remoteSubscriptionResponse
	if err := g.do(ctx, http.MethodPost, "/v1/subscriptions", body, &resp); err != nil {
		return nil, err
	}
	return toRemoteSubscription(&resp), nil
}

func (g *HTTPGateway) CancelRemoteSubscription(ctx context.Context, ref string, immediate bool) error {
	body := map[string]interface{}{
		"immediate": immediate,
	}
	return g.do(ctx, http.MethodPost, fmt.Sprintf("/v1/subscriptions/%s/cancel", ref), body, nil)
}

func (g *HTTPGateway) ReactivateRemoteSubscription(ctx context.Context, ref string) (*domainbilling.RemoteSubscription, error) {
	var resp remoteSubscriptionResponse
	if err := g.do(ctx, http.MethodPost, fmt.Sprintf("/v1/subscriptions/%s/reactivate", ref), nil, &resp); err != nil {
		return nil, err
	}
	return toRemoteSubscription(&resp), nil
}

func (g *HTTPGateway) CreatePaymentIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*domainbilling.PaymentIntent, error) {
	body := map[string]interface{}{
		"amount_minor": amountMinor,
		"currency":     currency,
		"metadata":     metadata,
	}

	var resp paymentIntentResponse
	if err := g.do(ctx, http.MethodPost, "/v1/payment_intents", body, &resp); err != nil {
		return nil, err
	}
	return &domainbilling.PaymentIntent{
		Ref:          resp.Ref,
		ClientSecret: resp.ClientSecret,
		AmountMinor:  resp.AmountMinor,
		Currency:     resp.Currency,
	}, nil
}

func (g *HTTPGateway) RefundPayment(ctx context.Context, paymentRef string, amountMinor int64) error {
	body := map[string]interface{}{
		"amount_minor": amountMinor,
	}
	return g.do(ctx, http.MethodPost, fmt.Sprintf("/v1/payments/%s/refund", paymentRef), body, nil)
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// The provider dedupes writes on this key.
	if method != http.MethodGet {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Warnw("billing provider request failed", "method", method, "path", path, "error", err)
		if isTimeoutOrTransport(err) {
			return fmt.Errorf("%w: %v", domainbilling.ErrProviderUnavailable, err)
		}
		return fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", domainbilling.ErrProviderUnavailable, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		g.logger.Warnw("billing provider returned server error", "method", method, "path", path, "status", resp.StatusCode)
		return fmt.Errorf("%w: provider returned %d", domainbilling.ErrProviderUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var perr providerErrorResponse
		_ = json.Unmarshal(data, &perr)
		if perr.Error == "" {
			perr.Error = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("provider rejected request (%d): %s", resp.StatusCode, perr.Error)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode provider response: %w", err)
		}
	}
	return nil
}

func isTimeoutOrTransport(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

func toRemoteSubscription(resp *remoteSubscriptionResponse) *domainbilling.RemoteSubscription {
	return &domainbilling.RemoteSubscription{
		Ref:                resp.Ref,
		Status:             resp.Status,
		CurrentPeriodStart: time.Unix(resp.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:   time.Unix(resp.CurrentPeriodEnd, 0).UTC(),
	}
}
