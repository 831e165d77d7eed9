// Package wsclient implements the exchange's Socket.IO-over-WebSocket
// session: connect, complete the namespace handshake, keep the connection
// alive with ping/pong, and dispatch decoded event frames to callers.
//
// Unlike a typical production feed, a read-loop failure here is fatal for
// this session — there is no reconnect-and-resubscribe loop. A dropped
// connection means in-flight order state is uncertain, and silently
// resubscribing would hide that from the strategy layer.
package wsclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/etherealmm/quoter/internal/codec"
	"github.com/etherealmm/quoter/pkg/types"
)

const (
	writeTimeout   = 10 * time.Second
	readTimeout    = 90 * time.Second
	writeQueueSize = 32
)

// Event is a decoded, typed message arriving from the stream.
type Event struct {
	OrderUpdate *types.OrderUpdate
	MarketPrice *types.MarketPrice
}

// Session manages a single WebSocket connection to the exchange stream.
type Session struct {
	conn   *websocket.Conn
	connMu sync.Mutex

	writeCh chan string
	events  chan Event

	logger *slog.Logger
}

// Dial opens a connection to baseURL's Socket.IO endpoint, completes the
// Engine.IO/Socket.IO handshake, and returns a Session ready to subscribe
// and read events. It returns types.ErrConnection if the handshake does not
// reach the websocket upgrade.
func Dial(ctx context.Context, baseURL string, logger *slog.Logger) (*Session, error) {
	url := baseURL + "/socket.io/?EIO=4&transport=websocket"

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, types.ErrConnection)
	}
	if resp.StatusCode != 101 {
		conn.Close()
		return nil, fmt.Errorf("dial %s: status %d: %w", url, resp.StatusCode, types.ErrConnection)
	}

	// Discard the Engine.IO OPEN packet ("0{...}").
	if _, _, err := conn.ReadMessage(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read open packet: %w", types.ErrConnection)
	}

	s := &Session{
		conn:    conn,
		writeCh: make(chan string, writeQueueSize),
		events:  make(chan Event, 256),
		logger:  logger.With("component", "wsclient"),
	}

	if err := s.writeRaw("40" + namespaceSuffix()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send namespace connect: %w", types.ErrConnection)
	}

	// Discard the namespace connect ack ("40/v1/stream,").
	if _, _, err := conn.ReadMessage(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read namespace ack: %w", types.ErrConnection)
	}

	return s, nil
}

func namespaceSuffix() string { return "/v1/stream," }

// Events returns the channel of decoded events. Closed when Run returns.
func (s *Session) Events() <-chan Event { return s.events }

// Run drains the write queue and the read loop concurrently. It blocks
// until ctx is cancelled or the connection fails, and always returns a
// non-nil error on connection failure — callers must treat that as fatal
// for this session rather than retrying internally.
func (s *Session) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() { errCh <- s.writeLoop(ctx) }()
	go func() { errCh <- s.readLoop(ctx) }()

	defer close(s.events)
	defer s.conn.Close()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// SubscribeOrderUpdates requests order-update events for subaccountID.
func (s *Session) SubscribeOrderUpdates(ctx context.Context, subaccountID string) error {
	frame, err := codec.BuildSubscribeOrderUpdates(subaccountID)
	if err != nil {
		return err
	}
	return s.enqueue(ctx, frame)
}

// SubscribeMarketPrice requests market-price events for productID.
func (s *Session) SubscribeMarketPrice(ctx context.Context, productID string) error {
	frame, err := codec.BuildSubscribeMarketPrice(productID)
	if err != nil {
		return err
	}
	return s.enqueue(ctx, frame)
}

func (s *Session) enqueue(ctx context.Context, frame string) error {
	select {
	case s.writeCh <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame := <-s.writeCh:
			if err := s.writeRaw(frame); err != nil {
				return fmt.Errorf("write frame: %w", types.ErrConnection)
			}
		}
	}
}

func (s *Session) writeRaw(frame string) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

func (s *Session) readLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", types.ErrConnection)
		}

		if err := s.dispatch(ctx, string(msg)); err != nil {
			s.logger.Warn("dropping malformed frame", "error", err)
		}
	}
}

func (s *Session) dispatch(ctx context.Context, raw string) error {
	frame, err := codec.ParseFrame(raw)
	if err != nil {
		return err
	}

	switch frame.Kind {
	case codec.FramePing:
		return s.enqueue(ctx, "3")
	case codec.FramePong, codec.FrameOpenHandshake, codec.FrameNamespaceAck:
		return nil
	case codec.FrameEvent:
		return s.dispatchEvent(ctx, frame)
	default:
		return fmt.Errorf("unhandled frame kind %v", frame.Kind)
	}
}

// dispatchEvent normalizes and decodes frame's payload, emitting one Event
// per decoded element (a single frame may carry a batch of updates).
func (s *Session) dispatchEvent(ctx context.Context, frame codec.Frame) error {
	switch frame.EventName {
	case "OrderUpdate":
		updates, err := codec.DecodeOrderUpdates(frame.Payload)
		if err != nil {
			return err
		}
		for i := range updates {
			if err := s.emit(ctx, Event{OrderUpdate: &updates[i]}); err != nil {
				return err
			}
		}
		return nil
	case "MarketPrice":
		prices, err := codec.DecodeMarketPrices(frame.Payload)
		if err != nil {
			return err
		}
		for i := range prices {
			if err := s.emit(ctx, Event{MarketPrice: &prices[i]}); err != nil {
				return err
			}
		}
		return nil
	default:
		s.logger.Debug("ignoring unrecognized event", "name", frame.EventName)
		return nil
	}
}

func (s *Session) emit(ctx context.Context, evt Event) error {
	select {
	case s.events <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
