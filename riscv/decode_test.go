package riscv

import "testing"

func TestDecodeUncompressed(t *testing.T) {
	cases := []struct {
		name string
		word uint32
		want Op
	}{
		{"nop", 0x00000013, Op{Kind: Addi, Rd: 0, Rs1: 0, Imm: 0}},
		{"addi x1, x0, 1", 0x00100093, Op{Kind: Addi, Rd: 1, Rs1: 0, Imm: 1}},
		{"ret (jalr x0, x1, 0)", 0x00008067, Op{Kind: Jalr, Rd: 0, Rs1: 1, Imm: 0}},
		{"lui x5, 0x10", 0x000102b7, Op{Kind: Lui, Rd: 5, Imm: 0x10000}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			op, n := Decode(tc.word)
			if n != 4 {
				t.Fatalf("length = %d, want 4", n)
			}
			if op != tc.want {
				t.Fatalf("decode(%#x) = %+v, want %+v", tc.word, op, tc.want)
			}
		})
	}
}

func TestDecodeCompressedNop(t *testing.T) {
	op, n := Decode(0x0001)
	if n != 2 {
		t.Fatalf("length = %d, want 2", n)
	}
	want := Op{Kind: Addi, Rd: 0, Rs1: 0, Imm: 0}
	if op != want {
		t.Fatalf("decode(0x0001) = %+v, want %+v", op, want)
	}
}

func TestDecodeDistinguishesByLowBits(t *testing.T) {
	// Any word whose low two bits are not 0b11 must decode as a 2-byte
	// compressed instruction regardless of the upper 16 bits.
	op, n := Decode(0xdeadbeee) // low bits 0b10
	if n != 2 {
		t.Fatalf("length = %d, want 2", n)
	}
	_ = op

	_, n = Decode(0x00000013) // low bits 0b11
	if n != 4 {
		t.Fatalf("length = %d, want 4", n)
	}
}

func TestDecodeUnknownOpcode(t *testing.T) {
	op, _ := Decode(0x0000007f) // opcode 0x7f is not a valid RV32IM opcode
	if op.Kind != Unknown {
		t.Fatalf("kind = %v, want Unknown", op.Kind)
	}
}
