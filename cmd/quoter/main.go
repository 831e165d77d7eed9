// Ethereal quoting client — a two-sided market maker for a single Ethereal
// product, driven by exchange-pushed market price ticks and order updates
// over a Socket.IO WebSocket stream.
//
// Architecture:
//
//	main.go                    — entry point: loads config, wires runtime + strategy, waits for SIGINT/SIGTERM
//	internal/config/config.go  — viper-based YAML + env configuration
//	internal/signer/signer.go  — EIP-712 signing of trade/cancel orders
//	internal/codec/codec.go    — wire DTO construction and Socket.IO frame parsing
//	internal/executor/         — Live (REST) and Paper order execution backends
//	internal/wsclient/         — Socket.IO-over-WebSocket session management
//	internal/runtime/runtime.go — composes signer + executor + session into one surface
//	internal/strategy/         — the quoting policy and its event-driven loop
//
// How it makes money:
//
//	The client posts a bid at the exchange's best bid and an ask at the
//	exchange's best ask, refusing to quote inside the configured minimum
//	spread. As the market moves, it replaces its quotes to track the new
//	best bid/ask, earning the spread on round-trip fills.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/etherealmm/quoter/internal/config"
	"github.com/etherealmm/quoter/internal/executor"
	"github.com/etherealmm/quoter/internal/runtime"
	"github.com/etherealmm/quoter/internal/signer"
	"github.com/etherealmm/quoter/internal/strategy"
	"github.com/etherealmm/quoter/internal/wsclient"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("ETHEREAL_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)

	if err := run(*cfg, logger); err != nil {
		logger.Error("quoter exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	sub, err := signer.ParseSubaccount(cfg.Signer.Subaccount)
	if err != nil {
		return err
	}
	signr, err := signer.New(cfg.Signer.PrivateKey, sub)
	if err != nil {
		return err
	}

	exec, err := executor.New(cfg.ExecutionMode, cfg.Exchange.RestURL, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, err := wsclient.Dial(ctx, cfg.Exchange.WSURL, logger)
	if err != nil {
		return err
	}

	domain := signer.NewDomain(cfg.Exchange.ChainID, common.HexToAddress(cfg.Exchange.ExchangeAddress))
	rt := runtime.New(signr, exec, session, domain, cfg.Strategy.OnchainProductID, logger)

	strategyConfig := strategy.Config{
		Subaccount:       sub,
		ProductID:        cfg.Strategy.ProductID,
		OnchainProductID: cfg.Strategy.OnchainProductID,
		QtyRaw:           cfg.Strategy.QtyRaw,
		PostOnly:         cfg.Strategy.PostOnly,
		TimeInForce:      cfg.Strategy.TimeInForce,
		TickSizeRaw:      cfg.Strategy.TickSizeRaw,
		MinSpreadTicks:   cfg.Strategy.MinSpreadTicks,
	}
	loop := strategy.New(strategyConfig, rt, logger)

	errCh := make(chan error, 2)
	go func() { errCh <- rt.Run(ctx) }()
	go func() { errCh <- loop.Run(ctx, subaccountHex(sub)) }()

	logger.Info("quoter started",
		"execution_mode", cfg.ExecutionMode,
		"product_id", cfg.Strategy.ProductID,
		"qty_raw", cfg.Strategy.QtyRaw,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
		<-errCh
		<-errCh
		return nil
	case err := <-errCh:
		cancel()
		<-errCh
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}

func subaccountHex(sub [32]byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 2+64)
	out[0], out[1] = '0', 'x'
	for i, b := range sub {
		out[2+i*2] = hexDigits[b>>4]
		out[2+i*2+1] = hexDigits[b&0x0f]
	}
	return string(out)
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
