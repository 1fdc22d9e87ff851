package hostengine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vanadium-project/vanadium-go/hostengine"
	"github.com/vanadium-project/vanadium-go/msgchannel"
	"github.com/vanadium-project/vanadium-go/pagefault"
	"github.com/vanadium-project/vanadium-go/pagestore"
	"github.com/vanadium-project/vanadium-go/transport"
	"github.com/vanadium-project/vanadium-go/wire"
	"github.com/vanadium-project/vanadium-go/witness"
)

const dataStart = 0x1000

func TestEngineServesPageFaultAndXsendOnSharedTransport(t *testing.T) {
	store := pagestore.NewZeroFilled(wire.Data, dataStart, dataStart+wire.PageSize)
	w := witness.New(wire.Data, dataStart, dataStart+wire.PageSize, 1, store.Root())

	deviceConn, hostConn := transport.LoopbackPair()
	server := pagefault.NewServer(map[wire.SectionKind]*pagestore.Store{wire.Data: store}, 0)

	received := make(chan struct {
		typ  wire.BufferType
		data []byte
	}, 1)
	engine := hostengine.New(hostConn, server, func(typ wire.BufferType, data []byte) error {
		received <- struct {
			typ  wire.BufferType
			data []byte
		}{typ, append([]byte(nil), data...)}
		return nil
	}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	resolver := pagefault.NewResolver(deviceConn, map[wire.SectionKind]*witness.Witness{wire.Data: w}, 0)

	// A page fault and an xsend share the same transport, exercising the
	// engine's dispatch across both protocols without a dedicated
	// transport per concern.
	page, err := resolver.ResolveRead(wire.Data, 0)
	if err != nil {
		t.Fatalf("ResolveRead: %v", err)
	}
	if len(page) != wire.PageSize {
		t.Fatalf("page size = %d, want %d", len(page), wire.PageSize)
	}

	sender := msgchannel.NewSender(deviceConn, 0)
	if err := sender.Send(wire.VAppMessage, []byte("hello host")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case msg := <-received:
		if msg.typ != wire.VAppMessage {
			t.Fatalf("buffer type = %v, want VAppMessage", msg.typ)
		}
		if string(msg.data) != "hello host" {
			t.Fatalf("buffer data = %q, want %q", msg.data, "hello host")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reassembled xsend buffer")
	}

	deviceConn.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("engine.Run returned %v, want nil on clean close", err)
		}
	case <-time.After(time.Second):
		t.Fatal("engine did not stop after transport close")
	}
}

func TestEngineSendDeliversQueuedBufferOnXrecv(t *testing.T) {
	store := pagestore.NewZeroFilled(wire.Data, dataStart, dataStart+wire.PageSize)
	deviceConn, hostConn := transport.LoopbackPair()
	defer deviceConn.Close()

	server := pagefault.NewServer(map[wire.SectionKind]*pagestore.Store{wire.Data: store}, 0)
	engine := hostengine.New(hostConn, server, func(wire.BufferType, []byte) error { return nil }, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.Run(ctx)

	engine.Send([]byte("to_app payload"))

	receiver := msgchannel.NewReceiver(deviceConn)
	data, err := receiver.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if string(data) != "to_app payload" {
		t.Fatalf("received %q, want %q", data, "to_app payload")
	}
}

func TestEngineRejectsUnrecognizedCommand(t *testing.T) {
	store := pagestore.NewZeroFilled(wire.Data, dataStart, dataStart+wire.PageSize)
	deviceConn, hostConn := transport.LoopbackPair()
	defer deviceConn.Close()

	server := pagefault.NewServer(map[wire.SectionKind]*pagestore.Store{wire.Data: store}, 0)
	engine := hostengine.New(hostConn, server, func(wire.BufferType, []byte) error { return nil }, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	if err := deviceConn.SendFrame([]byte{0xff}); err != nil {
		t.Fatalf("SendFrame: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, hostengine.ErrUnrecognizedCommand) {
			t.Fatalf("engine.Run error = %v, want ErrUnrecognizedCommand", err)
		}
	case <-time.After(time.Second):
		t.Fatal("engine did not stop on an unrecognized command")
	}
}
