package runtime

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/etherealmm/quoter/internal/signer"
	"github.com/etherealmm/quoter/pkg/types"
)

const testPrivateKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// scriptedExecutor is a test double for executor.OrderExecutor that returns
// pre-scripted results and records every call it receives.
type scriptedExecutor struct {
	submitStatus types.OrderStatus
	submitErr    error
	cancelErr    error

	submitCalls []types.SubmitRequest
	cancelCalls []types.CancelRequest
}

func (s *scriptedExecutor) Submit(_ context.Context, req types.SubmitRequest) (types.OrderStatus, error) {
	s.submitCalls = append(s.submitCalls, req)
	return s.submitStatus, s.submitErr
}

func (s *scriptedExecutor) Cancel(_ context.Context, req types.CancelRequest) error {
	s.cancelCalls = append(s.cancelCalls, req)
	return s.cancelErr
}

func newTestRuntime(t *testing.T, exec *scriptedExecutor) *Runtime {
	t.Helper()
	s, err := signer.New(testPrivateKey, [32]byte{0x01})
	if err != nil {
		t.Fatalf("signer.New: %v", err)
	}
	domain := signer.NewDomain(1337, common.HexToAddress("0x1111111111111111111111111111111111111111"))
	return New(s, exec, nil, domain, 7, discardLogger())
}

func TestPlaceOrderSubmitsSignedRequest(t *testing.T) {
	t.Parallel()

	exec := &scriptedExecutor{submitStatus: types.StatusNew}
	rt := newTestRuntime(t, exec)

	clientOrderID, status, err := rt.PlaceOrder(context.Background(), types.Buy, 1_000_000_000, 500_000_000, types.TimeInForceGTD, true)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if status != types.StatusNew {
		t.Errorf("status = %v, want StatusNew", status)
	}
	if clientOrderID == uuid.Nil {
		t.Errorf("clientOrderID is nil")
	}
	if len(exec.submitCalls) != 1 {
		t.Fatalf("submit calls = %d, want 1", len(exec.submitCalls))
	}
	req := exec.submitCalls[0]
	if req.Data.ClientOrderID != clientOrderID {
		t.Errorf("submitted clientOrderId = %v, want %v", req.Data.ClientOrderID, clientOrderID)
	}
	if req.Signature == "" {
		t.Errorf("signature is empty")
	}
	if req.Data.Quantity != "0.5" {
		t.Errorf("quantity = %q, want 0.5", req.Data.Quantity)
	}
}

func TestPlaceOrderPropagatesExecutorError(t *testing.T) {
	t.Parallel()

	exec := &scriptedExecutor{submitErr: types.ErrOrderRejected}
	rt := newTestRuntime(t, exec)

	_, _, err := rt.PlaceOrder(context.Background(), types.Sell, 1, 1, types.TimeInForceGTD, false)
	if !errors.Is(err, types.ErrOrderRejected) {
		t.Errorf("err = %v, want ErrOrderRejected", err)
	}
}

func TestCancelOrderSignsAndSubmits(t *testing.T) {
	t.Parallel()

	exec := &scriptedExecutor{}
	rt := newTestRuntime(t, exec)

	ids := []uuid.UUID{uuid.New()}
	if err := rt.CancelOrder(context.Background(), ids); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if len(exec.cancelCalls) != 1 {
		t.Fatalf("cancel calls = %d, want 1", len(exec.cancelCalls))
	}
	if len(exec.cancelCalls[0].Data.ClientOrderIDs) != 1 {
		t.Errorf("ClientOrderIDs len = %d, want 1", len(exec.cancelCalls[0].Data.ClientOrderIDs))
	}
}

func TestNextNonceIsStrictlyIncreasing(t *testing.T) {
	t.Parallel()

	exec := &scriptedExecutor{submitStatus: types.StatusNew}
	rt := newTestRuntime(t, exec)

	seen := make(map[uint64]bool)
	var prev uint64
	for i := 0; i < 50; i++ {
		n := rt.nextNonce()
		if n <= prev && i > 0 {
			t.Fatalf("nonce %d did not increase: prev=%d got=%d", i, prev, n)
		}
		if seen[n] {
			t.Fatalf("nonce %d reused", n)
		}
		seen[n] = true
		prev = n
	}
}
