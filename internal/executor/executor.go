// Package executor submits and cancels orders against the exchange's REST
// API, classifying every transport outcome into one of three buckets:
//
//   - NotSent: the request never left this process. Safe to retry with the
//     same nonce.
//   - DeliveryUncertain: the request may or may not have reached the
//     exchange (timeout, connection reset mid-flight, 5xx after the body was
//     sent). MUST NOT be retried with the same nonce.
//   - Rejected: the exchange received the request and its response failed
//     the operation's acceptance predicate.
//
// Two backends implement the OrderExecutor interface: Live (submits real
// requests over HTTP) and Paper (posts to the dry-run endpoint for submit,
// and synthesizes an unsupported rejection for cancel, since the exchange
// has no paper-cancel operation). Selecting an unsupported mode at
// construction time is a hard error — there is no silent fallback.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/etherealmm/quoter/pkg/types"
)

// OrderExecutor submits and cancels orders against one execution backend.
type OrderExecutor interface {
	Submit(ctx context.Context, req types.SubmitRequest) (types.OrderStatus, error)
	Cancel(ctx context.Context, req types.CancelRequest) error
}

// submitResponse is the POST /v1/order and /v1/order/dry-run response shape.
// Status is read for logging only; acceptance never depends on it.
type submitResponse struct {
	ID     string            `json:"id"`
	Status types.OrderStatus `json:"status"`
	Result string            `json:"result"`
	Code   string            `json:"code"`
}

// submitAcceptable reports whether a submit response counts as accepted: a
// string field `result`, or (when `result` is absent) `code`, equal to "Ok".
func submitAcceptable(resp submitResponse) bool {
	if resp.Result != "" {
		return resp.Result == "Ok"
	}
	return resp.Code == "Ok"
}

// cancelResponse is the POST /v1/order/cancel response shape.
type cancelResponse struct {
	Data []cancelItemResult `json:"data"`
}

type cancelItemResult struct {
	ClientOrderID string `json:"clientOrderId"`
	Result        string `json:"result"`
}

// cancelAcceptableResults are the per-item cancel results that count as
// success, including the idempotent terminal states a resting order may
// already be in by the time the cancel reaches the exchange.
var cancelAcceptableResults = map[string]bool{
	"Ok":              true,
	"AlreadyCanceled": true,
	"AlreadyExpired":  true,
	"AlreadyFilled":   true,
	"NotFound":        true,
}

// cancelAcceptable reports whether every item in a non-empty data array is
// one of the acceptable idempotent results. An empty or missing data array
// is never accepted.
func cancelAcceptable(resp cancelResponse) bool {
	if len(resp.Data) == 0 {
		return false
	}
	for _, item := range resp.Data {
		if !cancelAcceptableResults[item.Result] {
			return false
		}
	}
	return true
}

// New constructs the OrderExecutor for mode. It returns
// types.ErrExecutionModeNotImplemented for any mode other than Live or Paper.
func New(mode types.ExecutionMode, baseURL string, logger *slog.Logger) (OrderExecutor, error) {
	switch mode {
	case types.ModeLive:
		return NewLive(baseURL, logger), nil
	case types.ModePaper:
		return NewPaper(baseURL, logger), nil
	default:
		return nil, fmt.Errorf("mode %q: %w", mode, types.ErrExecutionModeNotImplemented)
	}
}

func newHTTPClient(baseURL string) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json")
}

// postSubmit posts body to path and classifies the response into the
// three-way transport outcome plus the submit acceptance predicate. It is
// shared by Live.Submit (posts the full SubmitRequest to /v1/order) and
// Paper.Submit (posts a data-only envelope to /v1/order/dry-run).
func postSubmit(ctx context.Context, client *resty.Client, rl *TokenBucket, path string, body any) (types.OrderStatus, error) {
	if err := rl.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", types.ErrRequestNotSent)
	}

	var result submitResponse
	resp, err := client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post(path)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return "", fmt.Errorf("submit canceled: %w", types.ErrRequestNotSent)
		}
		return "", fmt.Errorf("submit order: %w", types.ErrRequestDeliveryUncertain)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf(
			"submit order: status %d: %s: %w",
			resp.StatusCode(), resp.String(), types.ErrRequestDeliveryUncertain,
		)
	}

	if !submitAcceptable(result) {
		return types.StatusRejected, fmt.Errorf(
			"order %s result=%q code=%q: %w", result.ID, result.Result, result.Code, types.ErrOrderRejected,
		)
	}

	status := result.Status
	if status == "" {
		status = types.StatusNew
	}
	return status, nil
}

// ————————————————————————————————————————————————————————————————————————
// Live
// ————————————————————————————————————————————————————————————————————————

// Live submits real requests to the exchange's REST API.
type Live struct {
	http   *resty.Client
	rl     *RateLimiter
	logger *slog.Logger
}

// NewLive builds a Live executor bound to baseURL. The underlying resty
// client performs no automatic retries: a resent request would carry the
// same signed nonce, which a DeliveryUncertain outcome must never do.
func NewLive(baseURL string, logger *slog.Logger) *Live {
	return &Live{
		http:   newHTTPClient(baseURL),
		rl:     NewRateLimiter(),
		logger: logger.With("component", "executor_live"),
	}
}

// Submit places a signed order.
func (l *Live) Submit(ctx context.Context, req types.SubmitRequest) (types.OrderStatus, error) {
	status, err := postSubmit(ctx, l.http, l.rl.Order, "/v1/order", req)
	if err != nil {
		return status, err
	}
	l.logger.Info("order submitted", "client_order_id", req.Data.ClientOrderID, "status", status)
	return status, nil
}

// Cancel requests cancellation of one or more orders. The response's data
// array must be non-empty and every item's result must satisfy
// cancelAcceptableResults for the call to succeed.
func (l *Live) Cancel(ctx context.Context, req types.CancelRequest) error {
	if err := l.rl.Cancel.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", types.ErrRequestNotSent)
	}

	var result cancelResponse
	resp, err := l.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post("/v1/order/cancel")
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return fmt.Errorf("cancel canceled: %w", types.ErrRequestNotSent)
		}
		return fmt.Errorf("cancel order: %w", types.ErrRequestDeliveryUncertain)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf(
			"cancel order: status %d: %s: %w",
			resp.StatusCode(), resp.String(), types.ErrRequestDeliveryUncertain,
		)
	}

	if !cancelAcceptable(result) {
		return fmt.Errorf("cancel rejected: data=%+v: %w", result.Data, types.ErrCancelRejected)
	}

	l.logger.Info("cancel accepted", "count", len(result.Data))
	return nil
}

// ————————————————————————————————————————————————————————————————————————
// Paper
// ————————————————————————————————————————————————————————————————————————

// dryRunRequest is the POST /v1/order/dry-run body: the signed data without
// its signature, per spec §6.
type dryRunRequest struct {
	Data types.TradeOrderData `json:"data"`
}

// Paper posts submits to the exchange's dry-run endpoint and classifies the
// response the same way Live classifies a real submit. Cancel has no
// dry-run counterpart on the exchange, so it always returns a synthetic
// rejection carrying a PaperCancelUnsupported sentinel.
type Paper struct {
	http   *resty.Client
	rl     *RateLimiter
	logger *slog.Logger
}

// NewPaper builds a Paper executor bound to baseURL for its dry-run submits.
func NewPaper(baseURL string, logger *slog.Logger) *Paper {
	return &Paper{
		http:   newHTTPClient(baseURL),
		rl:     NewRateLimiter(),
		logger: logger.With("component", "executor_paper"),
	}
}

// Submit posts to /v1/order/dry-run and classifies the response through the
// same acceptance predicate as a live submit.
func (p *Paper) Submit(ctx context.Context, req types.SubmitRequest) (types.OrderStatus, error) {
	status, err := postSubmit(ctx, p.http, p.rl.Order, "/v1/order/dry-run", dryRunRequest{Data: req.Data})
	if err != nil {
		return status, err
	}
	p.logger.Info("paper submit accepted", "client_order_id", req.Data.ClientOrderID, "status", status)
	return status, nil
}

// Cancel always rejects: the exchange exposes no dry-run cancel operation.
// The rejection payload mirrors what a real cancel rejection looks like so
// callers exercise the exact same error path.
func (p *Paper) Cancel(_ context.Context, req types.CancelRequest) error {
	result := cancelResponse{Data: []cancelItemResult{{Result: "PaperCancelUnsupported"}}}
	p.logger.Warn("paper cancel requested but unsupported", "client_order_ids", req.Data.ClientOrderIDs)

	if cancelAcceptable(result) {
		return nil
	}
	return fmt.Errorf("cancel rejected: data=%+v: %w", result.Data, types.ErrCancelRejected)
}
