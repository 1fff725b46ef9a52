package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed 表示消息格式非法（未知类型、缺少必填字段等）
// 调用方应当丢弃该条消息，连接保持打开，绝不因此断开或退出循环
var ErrMalformed = errors.New("malformed message")

// 编码用信封：在载荷外补上 type 判别字段
type welcomeWire struct {
	Type     string `json:"type"`
	PlayerID string `json:"player_id"`
}

type inputWire struct {
	Type      string `json:"type"`
	Direction *Vec2  `json:"direction"` // 指针用于区分“缺失”与“零值”
	Seq       int64  `json:"seq,omitempty"`
}

type stateWire struct {
	Type    string        `json:"type"`
	Tick    *int64        `json:"tick"`
	Players []PlayerState `json:"players"`
	Coins   []CoinState   `json:"coins"`
}

// 仅探测判别字段，载荷延后按类型解码
type probe struct {
	Type string `json:"type"`
}

// Encode 将三种消息之一编码为单个 JSON 对象
func Encode(m Message) ([]byte, error) {
	switch v := m.(type) {
	case Welcome:
		return json.Marshal(welcomeWire{Type: MsgWelcome, PlayerID: v.PlayerID})
	case Input:
		d := v.Direction
		return json.Marshal(inputWire{Type: MsgInput, Direction: &d, Seq: v.Seq})
	case State:
		t := v.Tick
		players := v.Players
		if players == nil {
			players = []PlayerState{}
		}
		coins := v.Coins
		if coins == nil {
			coins = []CoinState{}
		}
		return json.Marshal(stateWire{Type: MsgState, Tick: &t, Players: players, Coins: coins})
	default:
		return nil, fmt.Errorf("encode: unsupported message %T", m)
	}
}

// Decode 按 type 判别字段解码为对应消息
// 未知类型与缺少必填字段均返回包裹 ErrMalformed 的错误
func Decode(b []byte) (Message, error) {
	var p probe
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", ErrMalformed, err)
	}
	switch p.Type {
	case MsgWelcome:
		var w welcomeWire
		if err := json.Unmarshal(b, &w); err != nil {
			return nil, fmt.Errorf("%w: welcome: %v", ErrMalformed, err)
		}
		if w.PlayerID == "" {
			return nil, fmt.Errorf("%w: welcome missing player_id", ErrMalformed)
		}
		return Welcome{PlayerID: w.PlayerID}, nil
	case MsgInput:
		var in inputWire
		if err := json.Unmarshal(b, &in); err != nil {
			return nil, fmt.Errorf("%w: input: %v", ErrMalformed, err)
		}
		if in.Direction == nil {
			return nil, fmt.Errorf("%w: input missing direction", ErrMalformed)
		}
		return Input{Direction: *in.Direction, Seq: in.Seq}, nil
	case MsgState:
		var st stateWire
		if err := json.Unmarshal(b, &st); err != nil {
			return nil, fmt.Errorf("%w: state: %v", ErrMalformed, err)
		}
		if st.Tick == nil {
			return nil, fmt.Errorf("%w: state missing tick", ErrMalformed)
		}
		if st.Players == nil || st.Coins == nil {
			return nil, fmt.Errorf("%w: state missing players/coins", ErrMalformed)
		}
		return State{Tick: *st.Tick, Players: st.Players, Coins: st.Coins}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, p.Type)
	}
}
