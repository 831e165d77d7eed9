package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/etherealmm/quoter/internal/runtime"
	"github.com/etherealmm/quoter/pkg/types"
)

// OrderRuntime is the surface the strategy loop drives. runtime.Runtime
// satisfies it; tests substitute a scripted double.
type OrderRuntime interface {
	PlaceOrder(ctx context.Context, side types.Side, price, quantity int64, tif types.TimeInForce, postOnly bool) (uuid.UUID, types.OrderStatus, error)
	CancelOrder(ctx context.Context, clientOrderIDs []uuid.UUID) error
	SubscribeOrderUpdates(ctx context.Context, subaccountID string) error
	SubscribeMarketPrice(ctx context.Context, productID string) error
	Events() <-chan runtime.Event
}

// Loop fuses the runtime's order-update and market-price events and drives
// DecideActions off of them.
type Loop struct {
	config Config
	rt     OrderRuntime
	logger *slog.Logger
}

// New builds a Loop for config, driving rt.
func New(config Config, rt OrderRuntime, logger *slog.Logger) *Loop {
	return &Loop{config: config, rt: rt, logger: logger.With("component", "strategy")}
}

// Run subscribes to the two event streams and processes events until ctx is
// cancelled or the event stream closes. A closed stream is always an error:
// it means the underlying connection died, and in-flight order state can no
// longer be trusted.
func (l *Loop) Run(ctx context.Context, subaccountID string) error {
	if err := l.rt.SubscribeOrderUpdates(ctx, subaccountID); err != nil {
		return fmt.Errorf("subscribe order updates: %w", err)
	}
	if err := l.rt.SubscribeMarketPrice(ctx, l.config.ProductID.String()); err != nil {
		return fmt.Errorf("subscribe market price: %w", err)
	}

	state := &StrategyState{}
	events := l.rt.Events()

	for {
		evt, ok, err := recvEvent(ctx, events)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("runtime event stream closed: %w", types.ErrConnection)
		}

		var latestTick *types.MarketPrice
		l.applyEvent(state, evt, &latestTick)

		l.drainBuffered(state, events, &latestTick)

		if latestTick != nil {
			state.LastMarket = latestTick
			if err := l.handleTick(ctx, state, *latestTick); err != nil {
				l.logger.Warn("strategy tick processing failed", "error", err)
			}
		}
	}
}

// drainBuffered consumes every currently-buffered event non-blockingly,
// latching only the freshest market tick while reconciling every order
// update it sees along the way.
func (l *Loop) drainBuffered(state *StrategyState, events <-chan runtime.Event, latestTick **types.MarketPrice) {
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			l.applyEvent(state, evt, latestTick)
		default:
			return
		}
	}
}

func recvEvent(ctx context.Context, events <-chan runtime.Event) (runtime.Event, bool, error) {
	select {
	case <-ctx.Done():
		return runtime.Event{}, false, ctx.Err()
	case evt, ok := <-events:
		return evt, ok, nil
	}
}

func (l *Loop) applyEvent(state *StrategyState, evt runtime.Event, latestTick **types.MarketPrice) {
	if evt.MarketPrice != nil && evt.MarketPrice.ProductID == l.config.ProductID {
		*latestTick = evt.MarketPrice
	}
	if evt.OrderUpdate != nil {
		l.reconcileOrderUpdate(state, evt.OrderUpdate)
	}
}

func (l *Loop) reconcileOrderUpdate(state *StrategyState, update *types.OrderUpdate) {
	buyMatched := reconcileSideOrderUpdate(&state.Buy, update)
	sellMatched := reconcileSideOrderUpdate(&state.Sell, update)
	if buyMatched || sellMatched {
		l.logger.Info("strategy state reconciled from order update",
			"client_order_id", update.ClientOrderID, "status", update.Status)
	}
}

func reconcileSideOrderUpdate(side *SideState, update *types.OrderUpdate) bool {
	if side.ActiveClientOrderID == nil || *side.ActiveClientOrderID != update.ClientOrderID {
		return false
	}

	side.Inflight = false
	if update.Status.IsTerminal() {
		side.ActiveClientOrderID = nil
		side.LastQuotedPriceRaw = nil
	}
	return true
}

func (l *Loop) handleTick(ctx context.Context, state *StrategyState, tick types.MarketPrice) error {
	if tick.ProductID != l.config.ProductID {
		return nil
	}

	buyAction, sellAction := DecideActions(l.config, *state, tick)

	buyErr := l.executeAction(ctx, state, types.Buy, buyAction)
	sellErr := l.executeAction(ctx, state, types.Sell, sellAction)
	return errors.Join(buyErr, sellErr)
}

func (l *Loop) executeAction(ctx context.Context, state *StrategyState, side types.Side, action *Action) error {
	if action == nil {
		l.logger.Debug("strategy action: skip", "side", side)
		return nil
	}

	switch action.Kind {
	case ActionPlace:
		return l.placeSideOrder(ctx, state, side, action.PriceRaw, action.QtyRaw)
	case ActionCancel:
		return l.cancelSideOrder(ctx, state, side, action.OldClientOrderID)
	case ActionReplace:
		if err := l.cancelSideOrder(ctx, state, side, action.OldClientOrderID); err != nil {
			return err
		}
		return l.placeSideOrder(ctx, state, side, action.PriceRaw, action.QtyRaw)
	default:
		return fmt.Errorf("unknown action kind %v", action.Kind)
	}
}

// placeSideOrder marks side in-flight across the span of the submit
// request. Inflight is cleared once the call returns, regardless of
// outcome — a failed submit must not leave the side permanently blocked
// from further quoting.
func (l *Loop) placeSideOrder(ctx context.Context, state *StrategyState, side types.Side, priceRaw, qtyRaw int64) error {
	sideState := state.Side(side)
	sideState.Inflight = true
	clientOrderID, _, err := l.rt.PlaceOrder(ctx, side, priceRaw, qtyRaw, l.config.TimeInForce, l.config.PostOnly)
	sideState.Inflight = false
	if err != nil {
		return fmt.Errorf("place %s order: %w", side, err)
	}

	sideState.ActiveClientOrderID = &clientOrderID
	price := priceRaw
	sideState.LastQuotedPriceRaw = &price

	l.logger.Info("strategy action: place",
		"side", side, "client_order_id", clientOrderID, "price_raw", priceRaw, "qty_raw", qtyRaw)
	return nil
}

// cancelSideOrder marks side in-flight across the span of the cancel
// request, clearing it unconditionally once the call returns.
func (l *Loop) cancelSideOrder(ctx context.Context, state *StrategyState, side types.Side, clientOrderID uuid.UUID) error {
	sideState := state.Side(side)
	sideState.Inflight = true
	err := l.rt.CancelOrder(ctx, []uuid.UUID{clientOrderID})
	sideState.Inflight = false
	if err != nil {
		return fmt.Errorf("cancel %s order: %w", side, err)
	}

	sideState.ActiveClientOrderID = nil
	sideState.LastQuotedPriceRaw = nil

	l.logger.Info("strategy action: cancel", "side", side, "client_order_id", clientOrderID)
	return nil
}
