// Package codec builds wire DTOs from signed orders and parses the
// Engine.IO/Socket.IO frame grammar the exchange speaks over its
// WebSocket stream.
//
// Frame grammar (see runtime/mod.rs in the retained reference material):
//
//	"2"                          -> ping, reply with "3"
//	"3"                          -> pong, ignore
//	"0{...}"                     -> Engine.IO OPEN handshake packet, ignore
//	"40/v1/stream,"              -> namespace connect ack, ignore
//	"42/v1/stream,[\"ev\", obj]" -> event frame: event name + JSON payload
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/etherealmm/quoter/pkg/types"
)

const (
	namespace = "/v1/stream"

	frameOpen      = '0'
	framePing      = "2"
	framePong      = "3"
	frameConnect   = "40" + namespace + ","
	frameEventPrfx = "42" + namespace + ","
)

// BuildTradeOrderData reshapes a signed TradeOrder into its wire DTO.
// Quantity and price are stringified via exact base-10 scaling — no
// floating-point division is performed anywhere in this path.
func BuildTradeOrderData(
	order types.TradeOrder,
	signature string,
	productID uuid.UUID,
	clientOrderID uuid.UUID,
	tif types.TimeInForce,
	postOnly bool,
) types.SubmitRequest {
	data := types.TradeOrderData{
		Sender:        addressHex(order.Sender),
		Subaccount:    bytes32Hex(order.Subaccount),
		Quantity:      scaledDecimalString(order.Quantity),
		Price:         scaledDecimalString(order.Price),
		ReduceOnly:    order.ReduceOnly,
		Side:          uint8(order.Side),
		EngineType:    order.EngineType,
		OnchainID:     order.ProductID,
		Nonce:         fmt.Sprintf("%d", order.Nonce),
		SignedAt:      order.SignedAt,
		Type:          "LIMIT",
		TimeInForce:   tif,
		PostOnly:      postOnly,
		ClientOrderID: clientOrderID,
	}
	_ = productID // unused: the DTO carries only the on-chain id (OnchainID)

	return types.SubmitRequest{Data: data, Signature: signature}
}

// BuildCancelOrderData reshapes a signed CancelOrder into its wire DTO.
func BuildCancelOrderData(
	order types.CancelOrder,
	signature string,
	clientOrderIDs []uuid.UUID,
) types.CancelRequest {
	data := types.CancelOrderData{
		Sender:         addressHex(order.Sender),
		Subaccount:     bytes32Hex(order.Subaccount),
		Nonce:          fmt.Sprintf("%d", order.Nonce),
		OrderIDs:       nil,
		ClientOrderIDs: clientOrderIDs,
	}
	return types.CancelRequest{Data: data, Signature: signature}
}

// scaledDecimalString renders a raw OrderDecimals-scaled integer as an
// exact base-10 decimal string, e.g. 1_500_000_000 -> "1.5". Both price and
// quantity use this same exact path — no lossy float division anywhere.
func scaledDecimalString(raw *big.Int) string {
	return decimal.NewFromBigInt(raw, -int32(types.OrderDecimalPlaces)).String()
}

func addressHex(addr [20]byte) string {
	return "0x" + hexEncode(addr[:])
}

func bytes32Hex(b [32]byte) string {
	return "0x" + hexEncode(b[:])
}

func hexEncode(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0x0f]
	}
	return string(out)
}

// ————————————————————————————————————————————————————————————————————————
// Frame parsing
// ————————————————————————————————————————————————————————————————————————

// FrameKind classifies a decoded Engine.IO/Socket.IO frame.
type FrameKind int

const (
	FrameUnknown FrameKind = iota
	FramePing
	FramePong
	FrameOpenHandshake
	FrameNamespaceAck
	FrameEvent
)

// Frame is a decoded incoming WebSocket text frame.
type Frame struct {
	Kind      FrameKind
	EventName string          // set when Kind == FrameEvent
	Payload   json.RawMessage // set when Kind == FrameEvent
}

// ParseFrame classifies a raw text frame per the Engine.IO/Socket.IO grammar.
func ParseFrame(raw string) (Frame, error) {
	switch {
	case raw == framePing:
		return Frame{Kind: FramePing}, nil
	case raw == framePong:
		return Frame{Kind: FramePong}, nil
	case len(raw) > 0 && raw[0] == frameOpen:
		return Frame{Kind: FrameOpenHandshake}, nil
	case strings.HasPrefix(raw, frameConnect):
		return Frame{Kind: FrameNamespaceAck}, nil
	case strings.HasPrefix(raw, frameEventPrfx):
		body := strings.TrimPrefix(raw, frameEventPrfx)
		return parseEventBody(body)
	default:
		return Frame{Kind: FrameUnknown}, fmt.Errorf("unrecognized frame: %q", raw)
	}
}

// parseEventBody decodes a `["event_name", payload]` JSON array.
func parseEventBody(body string) (Frame, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(body), &elems); err != nil {
		return Frame{}, fmt.Errorf("decode event array: %w", err)
	}
	if len(elems) != 2 {
		return Frame{}, fmt.Errorf("event array has %d elements, want 2", len(elems))
	}

	var name string
	if err := json.Unmarshal(elems[0], &name); err != nil {
		return Frame{}, fmt.Errorf("decode event name: %w", err)
	}

	return Frame{Kind: FrameEvent, EventName: name, Payload: elems[1]}, nil
}

// normalizeEventPayload applies the payload normalization rules: a
// {"data": [...]} envelope is unwrapped to its array, a {"data": <value>}
// envelope wraps that single value, a bare array is used directly, and any
// other object is wrapped as a single-element array. The result is always a
// slice of raw elements, one per OrderUpdate/MarketPrice to decode.
func normalizeEventPayload(payload json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty event payload")
	}

	switch trimmed[0] {
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil, fmt.Errorf("decode event payload array: %w", err)
		}
		return elems, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, fmt.Errorf("decode event payload object: %w", err)
		}
		data, ok := obj["data"]
		if !ok {
			return []json.RawMessage{trimmed}, nil
		}
		dataTrimmed := bytes.TrimSpace(data)
		if len(dataTrimmed) > 0 && dataTrimmed[0] == '[' {
			var elems []json.RawMessage
			if err := json.Unmarshal(dataTrimmed, &elems); err != nil {
				return nil, fmt.Errorf("decode event payload data array: %w", err)
			}
			return elems, nil
		}
		return []json.RawMessage{dataTrimmed}, nil
	default:
		return nil, fmt.Errorf("event payload is neither object nor array: %q", trimmed)
	}
}

// DecodeOrderUpdates normalizes and decodes an OrderUpdate event payload,
// returning one OrderUpdate per element per the §4.2 normalization rules.
func DecodeOrderUpdates(payload json.RawMessage) ([]types.OrderUpdate, error) {
	elems, err := normalizeEventPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("normalize order update payload: %w", err)
	}

	updates := make([]types.OrderUpdate, len(elems))
	for i, elem := range elems {
		if err := json.Unmarshal(elem, &updates[i]); err != nil {
			return nil, fmt.Errorf("decode order update: %w", err)
		}
	}
	return updates, nil
}

// DecodeMarketPrices normalizes and decodes a MarketPrice event payload,
// returning one MarketPrice per element per the §4.2 normalization rules.
func DecodeMarketPrices(payload json.RawMessage) ([]types.MarketPrice, error) {
	elems, err := normalizeEventPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("normalize market price payload: %w", err)
	}

	prices := make([]types.MarketPrice, len(elems))
	for i, elem := range elems {
		if err := json.Unmarshal(elem, &prices[i]); err != nil {
			return nil, fmt.Errorf("decode market price: %w", err)
		}
	}
	return prices, nil
}

// BuildSubscribeOrderUpdates builds the outgoing subscribe frame for
// order-update events scoped to a subaccount.
func BuildSubscribeOrderUpdates(subaccountID string) (string, error) {
	return buildSubscribeFrame(map[string]string{
		"type":         "OrderUpdate",
		"subaccountId": subaccountID,
	})
}

// BuildSubscribeMarketPrice builds the outgoing subscribe frame for
// market-price events scoped to a product.
func BuildSubscribeMarketPrice(productID string) (string, error) {
	return buildSubscribeFrame(map[string]string{
		"type":      "MarketPrice",
		"productId": productID,
	})
}

func buildSubscribeFrame(topic map[string]string) (string, error) {
	payload, err := json.Marshal([]interface{}{"subscribe", topic})
	if err != nil {
		return "", fmt.Errorf("encode subscribe frame: %w", err)
	}
	return frameEventPrfx + string(payload), nil
}

// NowUnixSeconds is provided so callers in this package's tests can stub
// the system clock without importing time in every call site.
var NowUnixSeconds = func() uint64 { return uint64(time.Now().Unix()) }
