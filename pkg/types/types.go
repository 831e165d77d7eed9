// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the quoting bot — signing
// payloads, wire DTOs, order-book-adjacent events, and the small error
// taxonomy the runtime and strategy layers classify transport outcomes
// against. It has no dependencies on internal packages, so it can be
// imported by any layer.
package types

import (
	"errors"
	"math/big"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Scaling
// ————————————————————————————————————————————————————————————————————————

// OrderDecimals is the fixed-point scale applied to all raw price and
// quantity integers: a raw value of OrderDecimals represents 1.0.
var OrderDecimals = big.NewInt(1_000_000_000)

// OrderDecimalPlaces is the number of fractional digits OrderDecimals encodes.
const OrderDecimalPlaces = 9

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side represents the direction of an order: Buy or Sell.
type Side uint8

const (
	Buy  Side = 0
	Sell Side = 1
)

func (s Side) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

// TimeInForce enumerates the supported order lifecycles.
type TimeInForce string

const (
	TimeInForceGTD TimeInForce = "GTD"
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceFOK TimeInForce = "FOK"
)

// OrderStatus is the normalized lifecycle status of a resting order.
type OrderStatus string

const (
	StatusNew           OrderStatus = "NEW"
	StatusPending       OrderStatus = "PENDING"
	StatusFilledPartial OrderStatus = "FILLED_PARTIAL"
	StatusFilled        OrderStatus = "FILLED"
	StatusRejected      OrderStatus = "REJECTED"
	StatusCanceled      OrderStatus = "CANCELED"
	StatusExpired       OrderStatus = "EXPIRED"
)

// IsTerminal reports whether status marks the end of an order's lifecycle.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusRejected, StatusCanceled, StatusExpired:
		return true
	default:
		return false
	}
}

// ExecutionMode selects which Order Executor backend is used.
type ExecutionMode string

const (
	ModeLive  ExecutionMode = "live"
	ModePaper ExecutionMode = "paper"
)

// ————————————————————————————————————————————————————————————————————————
// EIP-712 signing payloads
// ————————————————————————————————————————————————————————————————————————

// TradeOrder is the EIP-712 signing payload for a new order. Field order
// matches the typed-data struct exactly; it determines the EIP-712 hash.
type TradeOrder struct {
	Sender     [20]byte // address
	Subaccount [32]byte
	Quantity   *big.Int // uint128, scaled by OrderDecimals
	Price      *big.Int // uint128, scaled by OrderDecimals
	ReduceOnly bool
	Side       Side
	EngineType uint8 // always 0
	ProductID  uint32
	Nonce      uint64
	SignedAt   uint64 // unix seconds
}

// CancelOrder is the EIP-712 signing payload for a cancel request.
type CancelOrder struct {
	Sender     [20]byte
	Subaccount [32]byte
	Nonce      uint64
}

// Domain is the constant EIP-712 domain separator for the process lifetime.
type Domain struct {
	Name            string
	Version         string
	ChainID         *big.Int
	VerifyingContract [20]byte
}

// ————————————————————————————————————————————————————————————————————————
// Wire DTOs
// ————————————————————————————————————————————————————————————————————————

// SubmitRequest is the POST /v1/order (and /v1/order/dry-run) request body.
type SubmitRequest struct {
	Data      TradeOrderData `json:"data"`
	Signature string         `json:"signature"`
}

// TradeOrderData is the TradeOrder fields reshaped for the wire: quantity and
// price are stringified decimals, and a few submission-only fields are added.
type TradeOrderData struct {
	Sender        string      `json:"sender"`
	Subaccount    string      `json:"subaccount"`
	Quantity      string      `json:"quantity"`
	Price         string      `json:"price"`
	ReduceOnly    bool        `json:"reduceOnly"`
	Side          uint8       `json:"side"`
	EngineType    uint8       `json:"engineType"`
	OnchainID     uint32      `json:"onchainId"`
	Nonce         string      `json:"nonce"`
	SignedAt      uint64      `json:"signedAt"`
	Type          string      `json:"type"`
	TimeInForce   TimeInForce `json:"timeInForce"`
	PostOnly      bool        `json:"postOnly"`
	ClientOrderID uuid.UUID   `json:"clientOrderId"`
}

// CancelRequest is the POST /v1/order/cancel request body.
type CancelRequest struct {
	Data      CancelOrderData `json:"data"`
	Signature string          `json:"signature"`
}

// CancelOrderData is the CancelOrder fields reshaped for the wire.
type CancelOrderData struct {
	Sender         string      `json:"sender"`
	Subaccount     string      `json:"subaccount"`
	Nonce          string      `json:"nonce"`
	OrderIDs       []uuid.UUID `json:"orderIds"`
	ClientOrderIDs []uuid.UUID `json:"clientOrderIds"`
}

// ————————————————————————————————————————————————————————————————————————
// Events
// ————————————————————————————————————————————————————————————————————————

// OrderUpdate is a server-pushed order lifecycle event.
type OrderUpdate struct {
	ID            uuid.UUID   `json:"id"`
	Status        OrderStatus `json:"status"`
	CreatedAt     int64       `json:"createdAt"` // epoch millis
	UpdatedAt     int64       `json:"updatedAt"` // epoch millis
	ClientOrderID uuid.UUID   `json:"clientOrderId"`
}

// MarketPrice is a server-pushed top-of-book / reference price tick.
type MarketPrice struct {
	ProductID      uuid.UUID       `json:"productId"`
	BestBidPrice   decimal.Decimal `json:"bestBidPrice"`
	BestAskPrice   decimal.Decimal `json:"bestAskPrice"`
	OraclePrice    decimal.Decimal `json:"oraclePrice"`
	Price24hAgo    decimal.Decimal `json:"price24hAgo"`
}

// ————————————————————————————————————————————————————————————————————————
// Error taxonomy (§7)
// ————————————————————————————————————————————————————————————————————————

var (
	// ErrInvalidURL is a construction-time error, fatal before runtime start.
	ErrInvalidURL = errors.New("invalid url")
	// ErrConnection marks a WS handshake that didn't reach 101 Switching
	// Protocols, or a stream connection that failed or closed afterwards.
	ErrConnection = errors.New("failed connecting to the exchange")
	// ErrRequestNotSent marks a request that never left the client; safe to
	// retry with the same nonce.
	ErrRequestNotSent = errors.New("request was not sent to exchange")
	// ErrRequestDeliveryUncertain marks a request whose outcome is unknown;
	// MUST NOT be retried with the same nonce.
	ErrRequestDeliveryUncertain = errors.New("request delivery is uncertain and may have reached exchange")
	// ErrOrderRejected marks a submit whose acceptance predicate failed.
	ErrOrderRejected = errors.New("order was rejected by exchange")
	// ErrCancelRejected marks a cancel whose acceptance predicate failed.
	ErrCancelRejected = errors.New("cancel request was rejected by exchange")
	// ErrExecutionModeNotImplemented is a construction-time refusal.
	ErrExecutionModeNotImplemented = errors.New("execution mode is not implemented")
)
