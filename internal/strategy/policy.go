package strategy

import (
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/etherealmm/quoter/pkg/types"
)

// maxRawValue bounds decimalToRaw's output to what fits in an int64, since
// raw prices/quantities cross the strategy/runtime boundary as int64 rather
// than *big.Int (that wider type is reserved for the EIP-712 signing
// payload in pkg/types, where uint128 precision actually matters).
var maxRawValue = decimal.NewFromInt(math.MaxInt64)

// Config holds the per-run strategy parameters: which product to quote,
// how much size, the exchange's tick size, and the minimum spread required
// before quoting at all.
type Config struct {
	Subaccount       [32]byte
	ProductID        uuid.UUID
	OnchainProductID uint32
	QtyRaw           int64
	PostOnly         bool
	TimeInForce      types.TimeInForce
	TickSizeRaw      int64
	MinSpreadTicks   uint32
}

// ActionKind identifies what an Action asks the runtime to do.
type ActionKind int

const (
	ActionPlace ActionKind = iota
	ActionCancel
	ActionReplace
)

// Action is one instruction the policy emits for a single side: place a new
// quote, cancel the resting one, or replace it (cancel then place).
type Action struct {
	Kind             ActionKind
	PriceRaw         int64
	QtyRaw           int64
	OldClientOrderID uuid.UUID // set for Cancel and Replace
}

// DecideActions is the pure policy function: given the current state and a
// market tick, it returns the action (if any) for each side. It performs no
// I/O and has no side effects — every decision is derivable from its inputs.
func DecideActions(config Config, state StrategyState, tick types.MarketPrice) (buy, sell *Action) {
	if tick.ProductID != config.ProductID {
		return nil, nil
	}

	bestBidRaw, ok := decimalToRaw(tick.BestBidPrice)
	if !ok {
		return nil, nil
	}
	bestAskRaw, ok := decimalToRaw(tick.BestAskPrice)
	if !ok {
		return nil, nil
	}

	spreadRaw := bestAskRaw - bestBidRaw
	minSpreadRaw := config.TickSizeRaw * int64(config.MinSpreadTicks)

	if bestAskRaw <= bestBidRaw || (config.MinSpreadTicks > 0 && spreadRaw < minSpreadRaw) {
		return cancelIfActive(&state.Buy), cancelIfActive(&state.Sell)
	}

	desiredBuyRaw := quantizeToTick(bestBidRaw, config.TickSizeRaw)
	desiredSellRaw := quantizeToTick(bestAskRaw, config.TickSizeRaw)

	return decideSideAction(&state.Buy, desiredBuyRaw, config.QtyRaw),
		decideSideAction(&state.Sell, desiredSellRaw, config.QtyRaw)
}

func decideSideAction(side *SideState, desiredPriceRaw, qtyRaw int64) *Action {
	if side.Inflight {
		return nil
	}

	if side.ActiveClientOrderID == nil {
		return &Action{Kind: ActionPlace, PriceRaw: desiredPriceRaw, QtyRaw: qtyRaw}
	}

	if side.LastQuotedPriceRaw != nil && *side.LastQuotedPriceRaw == desiredPriceRaw {
		return nil
	}

	return &Action{
		Kind:             ActionReplace,
		PriceRaw:         desiredPriceRaw,
		QtyRaw:           qtyRaw,
		OldClientOrderID: *side.ActiveClientOrderID,
	}
}

func cancelIfActive(side *SideState) *Action {
	if side.Inflight {
		return nil
	}
	if side.ActiveClientOrderID == nil {
		return nil
	}
	return &Action{Kind: ActionCancel, OldClientOrderID: *side.ActiveClientOrderID}
}

// quantizeToTick rounds priceRaw down to the nearest multiple of tickSizeRaw.
func quantizeToTick(priceRaw, tickSizeRaw int64) int64 {
	if tickSizeRaw == 0 {
		return priceRaw
	}
	return (priceRaw / tickSizeRaw) * tickSizeRaw
}

// decimalToRaw converts a decimal price/quantity to its OrderDecimals-scaled
// raw integer, truncating (not rounding) any precision beyond the scale.
// Returns false for negative values, which have no raw representation, and
// for values that would overflow int64 — overflow must yield false, never a
// silently wrapped value from decimal.IntPart().
func decimalToRaw(value decimal.Decimal) (int64, bool) {
	scaled := value.Shift(types.OrderDecimalPlaces).Truncate(0)
	if scaled.IsNegative() {
		return 0, false
	}
	if scaled.Cmp(maxRawValue) > 0 {
		return 0, false
	}
	return scaled.IntPart(), true
}
