// Package hostengine is the host-side dispatch loop (C10): it owns one
// shared Transport to a device, the page-fault Server answering from the
// page stores, and the msgchannel Inbox/Outbox pair serving xsend/xrecv.
// Because the protocol is strictly half-duplex with a single outstanding
// interrupt at a time (I7), one goroutine reading frames and routing them
// by command code is both necessary and sufficient — the device never
// issues a second request before the host has answered the first. A
// second goroutine pumps queued to_app buffers into the Outbox as soon as
// it drains, so Send never blocks the caller on the device's xrecv pace.
package hostengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vanadium-project/vanadium-go/log"
	"github.com/vanadium-project/vanadium-go/metrics"
	"github.com/vanadium-project/vanadium-go/msgchannel"
	"github.com/vanadium-project/vanadium-go/pagefault"
	"github.com/vanadium-project/vanadium-go/transport"
	"github.com/vanadium-project/vanadium-go/wire"
)

var logger = log.Default().Module("hostengine")

// ErrUnrecognizedCommand is returned when a frame's leading byte decodes to
// a ClientCommandCode the engine has no handler registered for.
var ErrUnrecognizedCommand = errors.New("hostengine: unrecognized command code")

// drainPollInterval bounds how long the from_app pump waits before
// rechecking Outbox.Idle after a busy Enqueue, so it never blocks forever
// on a device that never issues another xrecv.
const drainPollInterval = 5 * time.Millisecond

// Engine multiplexes the page-fault and message-channel protocols over a
// single Transport.
type Engine struct {
	conn   transport.Transport
	server *pagefault.Server
	inbox  *msgchannel.Inbox
	outbox *msgchannel.Outbox

	mu        sync.Mutex
	sendQueue chan []byte
}

// New builds an Engine. onVAppMessage is invoked with each buffer the
// device pushes via xsend (or the Panic/Print buffer types riscv.CPU
// reuses the same path for); outboxChunkBytes of 0 selects the default.
func New(conn transport.Transport, server *pagefault.Server, onVAppMessage func(typ wire.BufferType, data []byte) error, outboxChunkBytes int) *Engine {
	e := &Engine{
		conn:      conn,
		server:    server,
		outbox:    msgchannel.NewOutbox(outboxChunkBytes),
		sendQueue: make(chan []byte, 16),
	}
	e.inbox = msgchannel.NewInbox(onVAppMessage)
	return e
}

// Send queues data as the next to_app buffer the device will drain with
// xrecv. It is the engine's async Send API: it never blocks on the
// device's pace, only on the send queue filling up.
func (e *Engine) Send(data []byte) {
	e.sendQueue <- append([]byte(nil), data...)
}

// Run drives the transport-reader loop and the from_app pump concurrently
// until the transport closes, ctx is cancelled, or either fails. Cancelling
// ctx, or either loop failing, closes the transport.
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	stopClose := context.AfterFunc(gctx, func() { e.conn.Close() })
	defer stopClose()
	pumpCtx, stopPump := context.WithCancel(gctx)
	defer stopPump()
	g.Go(func() error {
		defer stopPump()
		return e.serve(gctx)
	})
	g.Go(func() error {
		err := e.pump(pumpCtx)
		if errors.Is(err, context.Canceled) && gctx.Err() == nil {
			return nil
		}
		return err
	})
	return g.Wait()
}

func (e *Engine) serve(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame, err := e.conn.RecvFrame()
		if err != nil {
			if errors.Is(err, transport.ErrClosed) {
				logger.Debug("transport closed, engine stopping")
				return nil
			}
			metrics.EngineFatalErrors.Inc()
			logger.Error("frame receive failed", "err", err)
			return err
		}

		resp, err := e.dispatch(frame)
		if err != nil {
			metrics.EngineFatalErrors.Inc()
			logger.Error("dispatch failed", "err", err)
			return err
		}
		if resp == nil {
			continue
		}
		if err := e.conn.SendFrame(resp); err != nil {
			metrics.EngineFatalErrors.Inc()
			return err
		}
	}
}

// pump drains queued to_app buffers into the Outbox as soon as the
// previous one has been fully served, without holding up Send's caller.
func (e *Engine) pump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data := <-e.sendQueue:
			for {
				e.mu.Lock()
				err := e.outbox.Enqueue(data)
				e.mu.Unlock()
				if err == nil {
					break
				}
				if !errors.Is(err, msgchannel.ErrMessageInFlight) {
					return err
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(drainPollInterval):
				}
			}
		}
	}
}

func (e *Engine) dispatch(frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, wire.ErrInvalidDataLength
	}
	code, err := wire.ParseClientCommandCode(frame[0])
	if err != nil {
		return nil, err
	}

	switch code {
	case wire.GetPage, wire.GetPageProof, wire.GetPageProofContinued,
		wire.CommitPage, wire.CommitPageContent, wire.CommitPageProofContinued:
		return e.server.HandleFrame(frame)
	case wire.SendBuffer, wire.SendBufferContinued:
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.inbox.HandleFrame(frame)
	case wire.ReceiveBuffer:
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.outbox.HandleFrame(frame)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnrecognizedCommand, code)
	}
}
