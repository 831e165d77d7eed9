// Package strategy implements the two-sided quoting policy: given the
// current per-side order state and a market price tick, decide whether to
// place, cancel, or replace the resting quote on each side, then drive a
// runtime to carry out that decision.
package strategy

import (
	"github.com/google/uuid"

	"github.com/etherealmm/quoter/pkg/types"
)

// SideState tracks the single resting order (if any) this process
// maintains on one side of the book.
type SideState struct {
	ActiveClientOrderID *uuid.UUID
	LastQuotedPriceRaw  *int64
	// Inflight is true for the span of an in-progress submit or cancel
	// request on this side. While true, the policy will not issue a new
	// action for this side — it waits for the in-flight request to settle.
	Inflight bool
}

// StrategyState is the full per-run state: one SideState per side plus the
// most recent market tick observed.
type StrategyState struct {
	Buy        SideState
	Sell       SideState
	LastMarket *types.MarketPrice
}

// Side returns a pointer to the SideState for side.
func (s *StrategyState) Side(side types.Side) *SideState {
	if side == types.Sell {
		return &s.Sell
	}
	return &s.Buy
}
