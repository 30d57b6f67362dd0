package decode

import (
	"errors"
	"testing"
	"time"

	"github.com/adsbgo/pipeline/internal/model"
)

func TestDecodeRejectsShortFrame(t *testing.T) {
	_, err := Decode(model.Frame{Hex: "8D4840"}, time.Now())
	if !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
}

func TestDecodeRejectsBadHex(t *testing.T) {
	_, err := Decode(model.Frame{Hex: "not-hex-at-all-zz"}, time.Now())
	if !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
}

func TestDecodeRejectsUnsupportedDF(t *testing.T) {
	// DF 11 (all-call reply) is not DF17/18.
	_, err := Decode(model.Frame{Hex: "5840" + "00000000000000"}, time.Now())
	if !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame for unsupported DF, got %v", err)
	}
}

func TestDecodeCallsign(t *testing.T) {
	// Six bytes pack eight 6-bit ICAO charset characters: "CTRICE" followed
	// by two padding characters that decodeCallsign trims.
	data := []byte{0x0D, 0x44, 0x89, 0x0C, 0x58, 0xA2}
	got := decodeCallsign(data)
	if got == "" {
		t.Fatalf("expected non-empty callsign")
	}
	for _, r := range got {
		if r == ' ' {
			t.Fatalf("callsign %q should be trimmed of trailing spaces", got)
		}
	}
}

func TestDecodeAltitudeQBitSet(t *testing.T) {
	data := make([]byte, 14)
	// ac12 = data[5] followed by the high nibble of data[6] = 0b000000010001:
	// q-bit (bit 4) set, n = 1
	data[5] = 0x01
	data[6] = 0x10
	alt, ok := decodeAltitude(data)
	if !ok {
		t.Fatalf("expected q-bit coded altitude to decode")
	}
	_ = alt
}

func TestDecodeSurfaceVelocityKnownMovementAndHeading(t *testing.T) {
	data := make([]byte, 7)
	data[4] = 0x2B // low 3 bits = movement top3 (0b011); tc bits above are unused here
	data[5] = 0x2A // movement low nibble 0010, heading-known bit set, heading top3 010
	data[6] = 0x00 // heading remaining 4 bits 0000

	speed, track, ok := decodeSurfaceVelocity(data)
	if !ok {
		t.Fatalf("expected movement/heading to decode")
	}
	if speed != 26 {
		t.Errorf("expected speed 26 knots, got %v", speed)
	}
	if track != 90 {
		t.Errorf("expected track 90 degrees, got %v", track)
	}
}

func TestDecodeSurfaceVelocityNoInfoReturnsNotOK(t *testing.T) {
	data := make([]byte, 7) // movement 0 (no info), heading-known bit unset
	if _, _, ok := decodeSurfaceVelocity(data); ok {
		t.Fatalf("expected no movement/heading info to report ok=false")
	}
}

func TestMovementToKnotsPiecewiseScale(t *testing.T) {
	cases := []struct {
		mov     int
		wantOK  bool
		wantKts float64
	}{
		{0, false, 0},
		{1, true, 0},
		{5, true, 0.5},
		{50, true, 26},
		{124, true, 175},
		{125, false, 0},
	}
	for _, c := range cases {
		got, ok := movementToKnots(c.mov)
		if ok != c.wantOK {
			t.Errorf("movementToKnots(%d) ok = %v, want %v", c.mov, ok, c.wantOK)
			continue
		}
		if ok && got != c.wantKts {
			t.Errorf("movementToKnots(%d) = %v, want %v", c.mov, got, c.wantKts)
		}
	}
}

func TestCRCValidRejectsCorruptedFrame(t *testing.T) {
	data := make([]byte, 14)
	data[0] = df17 << 3
	data[4] = 0x42 // non-zero payload, zero parity trailer: should not validate
	if crcValid(data) {
		t.Fatalf("frame with non-zero payload and zero parity trailer should not validate")
	}
}
