package executor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/etherealmm/quoter/pkg/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestNewRejectsUnknownMode(t *testing.T) {
	t.Parallel()

	_, err := New(types.ExecutionMode("bogus"), "http://localhost", discardLogger())
	if !errors.Is(err, types.ErrExecutionModeNotImplemented) {
		t.Errorf("err = %v, want ErrExecutionModeNotImplemented", err)
	}
}

func TestNewBuildsLiveAndPaper(t *testing.T) {
	t.Parallel()

	for _, mode := range []types.ExecutionMode{types.ModeLive, types.ModePaper} {
		mode := mode
		t.Run(string(mode), func(t *testing.T) {
			t.Parallel()
			exec, err := New(mode, "http://localhost", discardLogger())
			if err != nil {
				t.Fatalf("New(%s): %v", mode, err)
			}
			if exec == nil {
				t.Fatalf("New(%s) returned nil executor", mode)
			}
		})
	}
}

func TestPaperSubmitPostsDryRunAndAccepts(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/order/dry-run" {
			t.Errorf("path = %s, want /v1/order/dry-run", r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["data"]; !ok {
			t.Errorf("request body missing data envelope: %+v", body)
		}
		if _, ok := body["signature"]; ok {
			t.Errorf("dry-run body must not carry a signature: %+v", body)
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"result": "Ok", "status": "NEW"})
	}))
	defer srv.Close()

	p := NewPaper(srv.URL, discardLogger())
	status, err := p.Submit(context.Background(), types.SubmitRequest{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if status != types.StatusNew {
		t.Errorf("status = %v, want NEW", status)
	}
}

func TestPaperSubmitRejectsOnNonOkResult(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"result": "Error"})
	}))
	defer srv.Close()

	p := NewPaper(srv.URL, discardLogger())
	_, err := p.Submit(context.Background(), types.SubmitRequest{})
	if !errors.Is(err, types.ErrOrderRejected) {
		t.Errorf("err = %v, want ErrOrderRejected", err)
	}
}

func TestPaperCancelAlwaysRejectsAsUnsupported(t *testing.T) {
	t.Parallel()

	p := NewPaper("http://localhost", discardLogger())
	err := p.Cancel(context.Background(), types.CancelRequest{})
	if !errors.Is(err, types.ErrCancelRejected) {
		t.Errorf("err = %v, want ErrCancelRejected", err)
	}
}

func TestLiveSubmitAccepted(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/order" {
			t.Errorf("path = %s, want /v1/order", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"id": orderID, "status": "NEW", "result": "Ok"})
	}))
	defer srv.Close()

	live := NewLive(srv.URL, discardLogger())
	status, err := live.Submit(context.Background(), types.SubmitRequest{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if status != types.StatusNew {
		t.Errorf("status = %v, want NEW", status)
	}
}

func TestLiveSubmitRejectedByResultField(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"id": uuid.New(), "status": "REJECTED", "result": "Error"})
	}))
	defer srv.Close()

	live := NewLive(srv.URL, discardLogger())
	_, err := live.Submit(context.Background(), types.SubmitRequest{})
	if !errors.Is(err, types.ErrOrderRejected) {
		t.Errorf("err = %v, want ErrOrderRejected", err)
	}
}

func TestLiveSubmitFallsBackToCodeFieldWhenResultAbsent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"code": "Ok", "status": "NEW"})
	}))
	defer srv.Close()

	live := NewLive(srv.URL, discardLogger())
	_, err := live.Submit(context.Background(), types.SubmitRequest{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
}

func TestLiveSubmitServerErrorIsDeliveryUncertain(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	live := NewLive(srv.URL, discardLogger())
	_, err := live.Submit(context.Background(), types.SubmitRequest{})
	if !errors.Is(err, types.ErrRequestDeliveryUncertain) {
		t.Errorf("err = %v, want ErrRequestDeliveryUncertain", err)
	}
}

func TestLiveCancelAcceptsIdempotentStates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		result  string
		wantErr bool
	}{
		{"ok", "Ok", false},
		{"already canceled", "AlreadyCanceled", false},
		{"already expired", "AlreadyExpired", false},
		{"already filled", "AlreadyFilled", false},
		{"not found", "NotFound", false},
		{"unknown rejection", "InsufficientMargin", true},
		{"nonce already used", "NonceAlreadyUsed", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				json.NewEncoder(w).Encode(map[string]any{
					"data": []map[string]any{
						{"clientOrderId": uuid.New(), "result": tt.result},
					},
				})
			}))
			defer srv.Close()

			live := NewLive(srv.URL, discardLogger())
			err := live.Cancel(context.Background(), types.CancelRequest{})
			if (err != nil) != tt.wantErr {
				t.Errorf("Cancel() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, types.ErrCancelRejected) {
				t.Errorf("err = %v, want ErrCancelRejected", err)
			}
		})
	}
}

func TestLiveCancelRejectsEmptyOrMissingData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body map[string]any
	}{
		{"empty data array", map[string]any{"data": []map[string]any{}}},
		{"missing data key", map[string]any{}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				json.NewEncoder(w).Encode(tt.body)
			}))
			defer srv.Close()

			live := NewLive(srv.URL, discardLogger())
			err := live.Cancel(context.Background(), types.CancelRequest{})
			if !errors.Is(err, types.ErrCancelRejected) {
				t.Errorf("err = %v, want ErrCancelRejected", err)
			}
		})
	}
}

func TestTokenBucketWaitRespectsContext(t *testing.T) {
	t.Parallel()

	tb := NewTokenBucket(0, 0.001)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := tb.Wait(ctx); err == nil {
		t.Errorf("Wait() err = nil, want context error")
	}
}

func TestTokenBucketAllowsBurstUpToCapacity(t *testing.T) {
	t.Parallel()

	tb := NewTokenBucket(3, 1)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := tb.Wait(ctx); err != nil {
			t.Fatalf("Wait() iteration %d: %v", i, err)
		}
	}
}
