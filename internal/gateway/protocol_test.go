package gateway

import (
	"errors"
	"strings"
	"testing"

	"lightfun-controller/internal/core"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		cmd  core.Command
		want []string
	}{
		{core.Command{Kind: core.KindSetColor, Color: 0xFF0000}, []string{"/rgb?0xff0000"}},
		{core.Command{Kind: core.KindSetColor, Color: 0x000001}, []string{"/rgb?0x000001"}},
		{core.Command{Kind: core.KindSetWarmBrightness, Brightness: 42}, []string{"/warm?42"}},
		{core.Command{Kind: core.KindSetOnOff, On: true}, []string{"/on"}},
		{core.Command{Kind: core.KindSetOnOff, On: false}, []string{"/off"}},
		{core.Command{Kind: core.KindSetMode, Mode: core.ModeDisco}, []string{"/disco"}},
		{core.Command{Kind: core.KindSetMode, Mode: core.ModeCool}, []string{"/cool"}},
		{core.Command{Kind: core.KindSetMode, Mode: core.ModeSoft}, []string{"/soft"}},
		{core.Command{Kind: core.KindQueryState}, []string{"/color", "/ison"}},
	}
	for _, tt := range tests {
		got, err := Encode(&tt.cmd)
		if err != nil {
			t.Fatalf("Encode(%v): %v", &tt.cmd, err)
		}
		if strings.Join(got, " ") != strings.Join(tt.want, " ") {
			t.Errorf("Encode(%v) = %q, want %q", &tt.cmd, got, tt.want)
		}
	}
}

func TestEncodeUnknownKind(t *testing.T) {
	if _, err := Encode(&core.Command{Kind: core.Kind(99)}); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestColorRoundTrip(t *testing.T) {
	reqs, err := Encode(&core.Command{Kind: core.KindSetColor, Color: 0x1A2B3C})
	if err != nil {
		t.Fatal(err)
	}
	echoed := strings.TrimPrefix(reqs[0], "/rgb?")
	got, err := ParseColor(echoed)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x1A2B3C {
		t.Errorf("got %s, want #1A2B3C", got.Hex())
	}
}

func TestParseColorRejects(t *testing.T) {
	for _, in := range []string{"", "0x12345", "0x1234567", "0xzzzzzz", "0x-12345"} {
		if _, err := ParseColor(in); !errors.Is(err, ErrBadColor) {
			t.Errorf("ParseColor(%q) err = %v, want ErrBadColor", in, err)
		}
	}
}

func TestParseState(t *testing.T) {
	st, err := ParseState("0xff8800", "off")
	if err != nil {
		t.Fatal(err)
	}
	if st.IsOn || st.Color != 0xFF8800 {
		t.Errorf("got %+v", st)
	}
	if _, err := ParseState("0xff8800", "maybe"); !errors.Is(err, ErrBadPower) {
		t.Errorf("got %v, want ErrBadPower", err)
	}
}

func TestCheckReply(t *testing.T) {
	if err := checkReply(ReplyBadRequest); !errors.Is(err, ErrBadRequest) {
		t.Errorf("got %v, want ErrBadRequest", err)
	}
	if err := checkReply(ReplyOffline); !errors.Is(err, ErrOffline) {
		t.Errorf("got %v, want ErrOffline", err)
	}
	if err := checkReply("OK"); err != nil {
		t.Errorf("got %v for OK", err)
	}
}
