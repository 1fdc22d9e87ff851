package transport

import (
	"bytes"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLoopbackRoundTrip(t *testing.T) {
	a, b := LoopbackPair()
	defer a.Close()
	defer b.Close()

	done := make(chan error, 1)
	go func() {
		frame, err := b.RecvFrame()
		if err != nil {
			done <- err
			return
		}
		done <- b.SendFrame(append([]byte("reply:"), frame...))
	}()

	if err := a.SendFrame([]byte("request")); err != nil {
		t.Fatalf("SendFrame: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("peer goroutine: %v", err)
	}
	reply, err := a.RecvFrame()
	if err != nil {
		t.Fatalf("RecvFrame: %v", err)
	}
	if !bytes.Equal(reply, []byte("reply:request")) {
		t.Fatalf("reply = %q", reply)
	}
}

func TestLoopbackCloseUnblocksPeer(t *testing.T) {
	a, b := LoopbackPair()
	errCh := make(chan error, 1)
	go func() {
		_, err := a.RecvFrame()
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)
	b.Close()
	if err := <-errCh; err != ErrClosed {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
	a.Close()
}

func TestTCPRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	serverDone := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			serverDone <- err
			return
		}
		server := NewTCPTransport(conn)
		frame, err := server.RecvFrame()
		if err != nil {
			serverDone <- err
			return
		}
		serverDone <- server.SendFrame(append([]byte("echo:"), frame...))
	}()

	client, err := DialTCP(ln.Addr().String())
	if err != nil {
		t.Fatalf("DialTCP: %v", err)
	}
	defer client.Close()

	if err := client.SendFrame([]byte("hello")); err != nil {
		t.Fatalf("SendFrame: %v", err)
	}
	if err := <-serverDone; err != nil {
		t.Fatalf("server: %v", err)
	}
	reply, err := client.RecvFrame()
	if err != nil {
		t.Fatalf("RecvFrame: %v", err)
	}
	if !bytes.Equal(reply, []byte("echo:hello")) {
		t.Fatalf("reply = %q", reply)
	}
}

func TestTCPRecvFrameRejectsOversizedLength(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		var hdr [4]byte
		hdr[0] = 0xFF // announce a frame far larger than MaxFrameSize
		conn.Write(hdr[:])
	}()

	client, err := DialTCP(ln.Addr().String())
	if err != nil {
		t.Fatalf("DialTCP: %v", err)
	}
	defer client.Close()

	if _, err := client.RecvFrame(); err == nil {
		t.Fatal("expected error for oversized announced frame length")
	}
}

func TestWSRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := UpgradeWS(w, r)
		if err != nil {
			return
		}
		defer conn.Close()
		frame, err := conn.RecvFrame()
		if err != nil {
			return
		}
		conn.SendFrame(append([]byte("ws-echo:"), frame...))
	}))
	defer srv.Close()

	url := "ws" + srv.URL[len("http"):]
	client, err := DialWS(url, nil)
	if err != nil {
		t.Fatalf("DialWS: %v", err)
	}
	defer client.Close()

	if err := client.SendFrame([]byte("ping")); err != nil {
		t.Fatalf("SendFrame: %v", err)
	}
	reply, err := client.RecvFrame()
	if err != nil {
		t.Fatalf("RecvFrame: %v", err)
	}
	if !bytes.Equal(reply, []byte("ws-echo:ping")) {
		t.Fatalf("reply = %q", reply)
	}
}

func TestAPDURoundTrip(t *testing.T) {
	a := APDU{CLA: 0xE0, INS: 0x01, P1: 0x02, P2: 0x03, Data: []byte("payload")}
	encoded, err := EncodeAPDU(a)
	if err != nil {
		t.Fatalf("EncodeAPDU: %v", err)
	}
	decoded, err := DecodeAPDU(encoded)
	if err != nil {
		t.Fatalf("DecodeAPDU: %v", err)
	}
	if decoded.CLA != a.CLA || decoded.INS != a.INS || decoded.P1 != a.P1 || decoded.P2 != a.P2 {
		t.Fatalf("header mismatch: %+v", decoded)
	}
	if !bytes.Equal(decoded.Data, a.Data) {
		t.Fatalf("data mismatch: %q", decoded.Data)
	}
}

func TestDecodeAPDUTooShort(t *testing.T) {
	if _, err := DecodeAPDU([]byte{0xE0, 0x01}); err != ErrAPDUTooShort {
		t.Fatalf("err = %v, want ErrAPDUTooShort", err)
	}
	if _, err := DecodeAPDU([]byte{0xE0, 0x01, 0x00, 0x00, 0x00, 0x05, 'a'}); err != ErrAPDUTooShort {
		t.Fatalf("err = %v, want ErrAPDUTooShort (declared length exceeds buffer)", err)
	}
}
