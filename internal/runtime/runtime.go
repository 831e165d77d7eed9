// Package runtime composes the signer, order executor, and WebSocket
// session into the single surface the strategy layer drives: PlaceOrder,
// CancelOrder, and a fused event stream of order updates and market price
// ticks.
//
// Runtime owns the one piece of mutable shared state outside the strategy's
// own StrategyState: the nonce counter. Nonces must be monotonically
// increasing across every signed message this process sends, so they are
// minted from a single mutex-guarded source rather than threaded through
// the strategy loop.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/etherealmm/quoter/internal/codec"
	"github.com/etherealmm/quoter/internal/executor"
	"github.com/etherealmm/quoter/internal/signer"
	"github.com/etherealmm/quoter/internal/wsclient"
	"github.com/etherealmm/quoter/pkg/types"
)

// Event is re-exported from wsclient for strategy-layer convenience.
type Event = wsclient.Event

// Runtime wires signing, REST execution, and the WebSocket session.
type Runtime struct {
	signer   *signer.Signer
	exec     executor.OrderExecutor
	session  *wsclient.Session
	domain   types.Domain
	productOnchainID uint32

	nonceMu  sync.Mutex
	lastNonce uint64

	logger *slog.Logger
}

// New builds a Runtime. The WebSocket session must already be dialed and
// handshaken (see wsclient.Dial) before constructing a Runtime, since the
// handshake itself has no executor/signer dependency.
func New(
	s *signer.Signer,
	exec executor.OrderExecutor,
	session *wsclient.Session,
	domain types.Domain,
	productOnchainID uint32,
	logger *slog.Logger,
) *Runtime {
	return &Runtime{
		signer:           s,
		exec:             exec,
		session:          session,
		domain:           domain,
		productOnchainID: productOnchainID,
		logger:           logger.With("component", "runtime"),
	}
}

// nextNonce mints a nonce that is strictly greater than every nonce minted
// so far, clamped against the wall clock so a restarted process picks up
// roughly where it left off rather than reusing a small counter.
func (r *Runtime) nextNonce() uint64 {
	r.nonceMu.Lock()
	defer r.nonceMu.Unlock()

	now := uint64(time.Now().UnixNano())
	next := r.lastNonce + 1
	if now > next {
		next = now
	}
	r.lastNonce = next
	return next
}

// PlaceOrder signs and submits a new order. It returns the order's reported
// status on acceptance, or a classified transport error
// (ErrRequestNotSent / ErrRequestDeliveryUncertain / ErrOrderRejected).
func (r *Runtime) PlaceOrder(
	ctx context.Context,
	side types.Side,
	price, quantity int64,
	tif types.TimeInForce,
	postOnly bool,
) (uuid.UUID, types.OrderStatus, error) {
	clientOrderID := uuid.New()
	nonce := r.nextNonce()

	order := types.TradeOrder{
		Sender:     r.signer.Address(),
		Subaccount: r.signer.Subaccount(),
		Quantity:   bigFromInt64(quantity),
		Price:      bigFromInt64(price),
		ReduceOnly: false,
		Side:       side,
		EngineType: 0,
		ProductID:  r.productOnchainID,
		Nonce:      nonce,
		SignedAt:   uint64(time.Now().Unix()),
	}

	sigBytes, err := r.signer.SignTradeOrder(order, r.domain)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("sign trade order: %w", types.ErrRequestNotSent)
	}

	req := codec.BuildTradeOrderData(order, hexSignature(sigBytes), uuid.Nil, clientOrderID, tif, postOnly)

	status, err := r.exec.Submit(ctx, req)
	if err != nil {
		return clientOrderID, status, err
	}
	return clientOrderID, status, nil
}

// CancelOrder signs and submits a cancel for the given client order IDs.
func (r *Runtime) CancelOrder(ctx context.Context, clientOrderIDs []uuid.UUID) error {
	nonce := r.nextNonce()

	cancel := types.CancelOrder{
		Sender:     r.signer.Address(),
		Subaccount: r.signer.Subaccount(),
		Nonce:      nonce,
	}

	sigBytes, err := r.signer.SignCancelOrder(cancel, r.domain)
	if err != nil {
		return fmt.Errorf("sign cancel order: %w", types.ErrRequestNotSent)
	}

	req := codec.BuildCancelOrderData(cancel, hexSignature(sigBytes), clientOrderIDs)
	return r.exec.Cancel(ctx, req)
}

// SubscribeOrderUpdates requests the order-update stream for subaccountID.
func (r *Runtime) SubscribeOrderUpdates(ctx context.Context, subaccountID string) error {
	return r.session.SubscribeOrderUpdates(ctx, subaccountID)
}

// SubscribeMarketPrice requests the market-price stream for productID.
func (r *Runtime) SubscribeMarketPrice(ctx context.Context, productID string) error {
	return r.session.SubscribeMarketPrice(ctx, productID)
}

// Events returns the fused event channel from the underlying session.
func (r *Runtime) Events() <-chan Event {
	return r.session.Events()
}

// Run drives the underlying WebSocket session until ctx is cancelled or the
// connection fails. A connection failure is fatal for this Runtime — the
// caller is responsible for deciding whether to build a new one.
func (r *Runtime) Run(ctx context.Context) error {
	return r.session.Run(ctx)
}

func bigFromInt64(v int64) *big.Int {
	return big.NewInt(v)
}

func hexSignature(sig []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 2+len(sig)*2)
	out[0], out[1] = '0', 'x'
	for i, b := range sig {
		out[2+i*2] = hexDigits[b>>4]
		out[2+i*2+1] = hexDigits[b&0x0f]
	}
	return string(out)
}
