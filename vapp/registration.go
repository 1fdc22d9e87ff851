package vapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/vanadium-project/vanadium-go/log"
)

var logger = log.Default().Module("vapp")

// MACSize is the fixed size of the app-integrity MAC exchanged during
// registration (§6).
const MACSize = 32

// MAC is the 32-byte app-integrity MAC that pins a Manifest to a device.
type MAC [MACSize]byte

var (
	// ErrNotRegistered is returned by Verify before any manifest has been
	// registered.
	ErrNotRegistered = errors.New("vapp: manifest not yet registered")
	// ErrMACMismatch is returned when a presented MAC does not match the
	// one derived at registration time. Per §6/§7 this is fatal: the
	// caller reports VMRuntimeError and aborts.
	ErrMACMismatch = errors.New("vapp: manifest MAC mismatch")
)

// DeriveMAC computes the app-integrity MAC for a manifest's deterministic
// encoding under a device-local key: HMAC-SHA256(key, encoding).
func DeriveMAC(key []byte, encoding []byte) MAC {
	h := hmac.New(sha256.New, key)
	h.Write(encoding)
	var out MAC
	copy(out[:], h.Sum(nil))
	return out
}

// Registration is the device-side state of the two-phase registration
// exchange: on first contact with a manifest, the device derives and pins
// its integrity MAC; every later execute exchange re-derives the MAC and
// checks it against what the host presents.
type Registration struct {
	key      []byte
	mac      MAC
	pinned   bool
	manifest *Manifest
}

// NewRegistration builds a Registration keyed by a device-local secret. The
// key never leaves the device and is not part of the wire protocol.
func NewRegistration(key []byte) *Registration {
	return &Registration{key: append([]byte(nil), key...)}
}

// Register performs the device's half of the first-contact exchange: it
// derives the manifest's MAC, pins it (and the manifest) for subsequent
// Verify calls, and returns the MAC for the host to cache.
func (r *Registration) Register(m *Manifest) (MAC, error) {
	enc, err := m.Encode()
	if err != nil {
		return MAC{}, fmt.Errorf("vapp: encoding manifest for registration: %w", err)
	}
	r.mac = DeriveMAC(r.key, enc)
	r.manifest = m
	r.pinned = true
	logger.Info("registered vapp manifest", "entrypoint", m.Entrypoint)
	return r.mac, nil
}

// Verify checks the MAC the host presents on a later execute exchange
// against the one pinned at registration. It also re-derives the MAC from
// m so a manifest substituted after registration is caught even if the
// presented MAC happens to match the pinned one.
func (r *Registration) Verify(m *Manifest, presented MAC) error {
	if !r.pinned {
		return ErrNotRegistered
	}
	enc, err := m.Encode()
	if err != nil {
		return fmt.Errorf("vapp: encoding manifest for verification: %w", err)
	}
	derived := DeriveMAC(r.key, enc)
	if derived != r.mac || presented != r.mac {
		logger.Error("manifest MAC mismatch", "entrypoint", m.Entrypoint)
		return ErrMACMismatch
	}
	return nil
}

// HostRegistry is the host-side counterpart: it caches the MAC the device
// returned from the first registration exchange and re-presents it on
// every subsequent execute call, per §6 ("The host caches the MAC and
// presents it on subsequent execute exchanges").
type HostRegistry struct {
	mac MAC
	set bool
}

// Cache stores the MAC returned by the device's Register call.
func (h *HostRegistry) Cache(mac MAC) {
	h.mac = mac
	h.set = true
}

// MAC returns the cached MAC and whether one has been cached yet.
func (h *HostRegistry) MAC() (MAC, bool) {
	return h.mac, h.set
}
