package protocol

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestRoundTripWelcome(t *testing.T) {
	m := Welcome{PlayerID: "player_7"}
	b, err := Encode(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, m) {
		t.Fatalf("round trip mismatch: got %#v want %#v", got, m)
	}
}

func TestRoundTripInput(t *testing.T) {
	m := Input{Direction: Vec2{X: -0.5, Y: 1}, Seq: 42}
	b, err := Encode(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, m) {
		t.Fatalf("round trip mismatch: got %#v want %#v", got, m)
	}
}

func TestRoundTripState(t *testing.T) {
	m := State{
		Tick: 128,
		Players: []PlayerState{
			{ID: "player_1", X: 10.5, Y: 20.25, Score: 3},
			{ID: "player_2", X: 0, Y: 600, Score: 0},
		},
		Coins: []CoinState{
			{ID: "c-1", X: 400, Y: 300},
		},
	}
	b, err := Encode(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, m) {
		t.Fatalf("round trip mismatch: got %#v want %#v", got, m)
	}
}

func TestRoundTripEmptyState(t *testing.T) {
	b, err := Encode(State{Tick: 0})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	st, ok := got.(State)
	if !ok {
		t.Fatalf("decoded %T, want State", got)
	}
	if st.Players == nil || st.Coins == nil {
		t.Fatalf("empty state must decode with non-nil slices: %#v", st)
	}
}

func TestWireFieldNames(t *testing.T) {
	// 字段名是兼容面的一部分，编码结果必须逐字匹配
	b, err := Encode(Welcome{PlayerID: "p1"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["type"] != "welcome" || raw["player_id"] != "p1" {
		t.Fatalf("unexpected wire form: %s", b)
	}

	b, err = Encode(Input{Direction: Vec2{X: 1, Y: 0}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	raw = nil
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	dir, ok := raw["direction"].(map[string]any)
	if !ok || dir["x"] != 1.0 || dir["y"] != 0.0 {
		t.Fatalf("unexpected wire form: %s", b)
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"not json", `{{{`},
		{"missing type", `{"player_id":"p1"}`},
		{"unknown type", `{"type":"teleport","x":1}`},
		{"welcome missing player_id", `{"type":"welcome"}`},
		{"input missing direction", `{"type":"input","seq":3}`},
		{"state missing tick", `{"type":"state","players":[],"coins":[]}`},
		{"state missing players", `{"type":"state","tick":1,"coins":[]}`},
		{"state null coins", `{"type":"state","tick":1,"players":[],"coins":null}`},
	}
	for _, tc := range cases {
		_, err := Decode([]byte(tc.in))
		if err == nil {
			t.Fatalf("%s: expected error, got nil", tc.name)
		}
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("%s: error %v does not wrap ErrMalformed", tc.name, err)
		}
	}
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	// 带多余字段的合法消息应当照常解码（向前兼容）
	got, err := Decode([]byte(`{"type":"input","direction":{"x":0,"y":1},"extra":true}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	in, ok := got.(Input)
	if !ok || in.Direction.Y != 1 {
		t.Fatalf("unexpected decode result: %#v", got)
	}
}
