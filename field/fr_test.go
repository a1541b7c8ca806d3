package field

import (
	"math/big"
	"testing"
)

func TestBitsRoundTrip(t *testing.T) {
	tests := []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		big.NewInt(255),
		new(big.Int).Lsh(big.NewInt(1), 252),
	}
	for _, v := range tests {
		e := FromBigInt(v)
		bits := BitsLE(e, BitWidth)
		got := FromBitsLE(bits)
		if !got.Equal(&e) {
			t.Errorf("BitsLE/FromBitsLE round trip failed for %v", v)
		}
	}
}

func TestUintBitsRoundTrip(t *testing.T) {
	v := big.NewInt(123456789)
	bits := UintBitsLE(v, 64)
	got := BitsToUint(bits)
	if got.Cmp(v) != 0 {
		t.Fatalf("got %v, want %v", got, v)
	}
}

func TestReverseBits(t *testing.T) {
	bits := []bool{true, false, false}
	rev := ReverseBits(bits)
	want := []bool{false, false, true}
	for i := range want {
		if rev[i] != want[i] {
			t.Fatalf("ReverseBits(%v) = %v, want %v", bits, rev, want)
		}
	}
	// double reverse is identity
	if rr := ReverseBits(rev); rr[0] != bits[0] || rr[1] != bits[1] || rr[2] != bits[2] {
		t.Fatalf("double reverse not identity: %v", rr)
	}
}

func TestFitsInBits(t *testing.T) {
	tests := []struct {
		v     *big.Int
		width int
		want  bool
	}{
		{big.NewInt(0), 8, true},
		{big.NewInt(255), 8, true},
		{big.NewInt(256), 8, false},
		{big.NewInt(-1), 8, false},
	}
	for _, tt := range tests {
		if got := FitsInBits(tt.v, tt.width); got != tt.want {
			t.Errorf("FitsInBits(%v, %d) = %v, want %v", tt.v, tt.width, got, tt.want)
		}
	}
}

func TestFromUint64(t *testing.T) {
	e := FromUint64(42)
	got := ToBigInt(e)
	if got.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("got %v, want 42", got)
	}
}
