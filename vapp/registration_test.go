package vapp_test

import (
	"errors"
	"testing"

	"github.com/vanadium-project/vanadium-go/vapp"
)

func TestRegistrationPinsAndVerifiesMAC(t *testing.T) {
	m := sampleManifest()
	device := vapp.NewRegistration([]byte("device-local-key"))

	mac, err := device.Register(m)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	host := &vapp.HostRegistry{}
	host.Cache(mac)

	cached, ok := host.MAC()
	if !ok {
		t.Fatal("host MAC not cached")
	}
	if err := device.Verify(m, cached); err != nil {
		t.Fatalf("Verify with matching MAC: %v", err)
	}
}

func TestRegistrationRejectsMismatchedMAC(t *testing.T) {
	m := sampleManifest()
	device := vapp.NewRegistration([]byte("device-local-key"))
	if _, err := device.Register(m); err != nil {
		t.Fatalf("Register: %v", err)
	}

	var forged vapp.MAC
	copy(forged[:], []byte("not the real mac at all........"))

	if err := device.Verify(m, forged); !errors.Is(err, vapp.ErrMACMismatch) {
		t.Fatalf("Verify with forged MAC = %v, want ErrMACMismatch", err)
	}
}

func TestRegistrationRejectsSubstitutedManifest(t *testing.T) {
	original := sampleManifest()
	device := vapp.NewRegistration([]byte("device-local-key"))
	mac, err := device.Register(original)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	substituted := sampleManifest()
	substituted.Entrypoint = original.Entrypoint + 4

	if err := device.Verify(substituted, mac); !errors.Is(err, vapp.ErrMACMismatch) {
		t.Fatalf("Verify with substituted manifest = %v, want ErrMACMismatch", err)
	}
}

func TestVerifyBeforeRegisterFails(t *testing.T) {
	device := vapp.NewRegistration([]byte("device-local-key"))
	if err := device.Verify(sampleManifest(), vapp.MAC{}); !errors.Is(err, vapp.ErrNotRegistered) {
		t.Fatalf("Verify before Register = %v, want ErrNotRegistered", err)
	}
}

func TestDifferentKeysProduceDifferentMACs(t *testing.T) {
	m := sampleManifest()
	enc, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	a := vapp.DeriveMAC([]byte("key-a"), enc)
	b := vapp.DeriveMAC([]byte("key-b"), enc)
	if a == b {
		t.Fatal("different keys produced the same MAC")
	}
}
