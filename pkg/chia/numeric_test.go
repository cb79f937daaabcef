package chia

import (
	"math"
	"testing"
)

func TestIntToBytes(t *testing.T) {
	intT(t, 0, "")
	intT(t, 1, "01")
	intT(t, 127, "7f")
	intT(t, 128, "0080")
	intT(t, 255, "00ff")
	intT(t, 256, "0100")
	intT(t, 1000, "03e8")
	intT(t, 1_000_000_000_000, "00e8d4a51000")
	intT(t, 1<<63, "008000000000000000")
	intT(t, math.MaxUint64, "00ffffffffffffffff")
}

func TestBytesToUint64(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 1000, 1_000_000_000_000, 1 << 63, math.MaxUint64} {
		got, err := BytesToUint64(IntToBytes(v))
		if err != nil {
			t.Errorf("BytesToUint64(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("BytesToUint64: round trip %d gave %d", v, got)
		}
	}
	// redundant leading zeroes are tolerated
	if v, err := BytesToUint64(hx2b("000003e8")); err != nil || v != 1000 {
		t.Errorf("BytesToUint64: padded 1000 gave %d, %v", v, err)
	}
	if _, err := BytesToUint64(hx2b("80")); err == nil {
		t.Errorf("BytesToUint64: accepted a negative atom")
	}
	if _, err := BytesToUint64(hx2b("010000000000000000")); err == nil {
		t.Errorf("BytesToUint64: accepted a 65-bit atom")
	}
}

func TestMojoToDecimal(t *testing.T) {
	if s := MojoToDecimal(1_500_000_000_000).String(); s != "1.5" {
		t.Errorf("MojoToDecimal: wrong value %s", s)
	}
	if s := MojoToDecimal(1).String(); s != "0.000000000001" {
		t.Errorf("MojoToDecimal: wrong value %s", s)
	}
}

func intT(t *testing.T, val uint64, hex string) {
	if res := HexEncode(IntToBytes(val)); res != hex {
		t.Errorf("IntToBytes(%d): wrong encoding: %s vs %s", val, res, hex)
	}
}
