package main

import (
	"encoding/json"
	"math"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Client -> Server message types
const (
	MsgJoin     = "join"
	MsgKeyState = "keystate"
	MsgPong     = "pong"
)

// Server -> Client message types
const (
	MsgObjects = "objects"
	MsgPing    = "ping"
	MsgError   = "error"
)

// MsgFinish travels both ways: the server announces the final standings, and
// a client acknowledges them to tear the room down.
const MsgFinish = "finish"

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	Type string `json:"type" msgpack:"type"`
	Data any    `json:"data,omitempty" msgpack:"data,omitempty"`
}

// InEnvelope is used for incoming messages; Data is decoded per type
type InEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ObjectKind discriminates the renderable objects sent to clients.
type ObjectKind string

const (
	KindShip   ObjectKind = "ship"
	KindBullet ObjectKind = "bullet"
	KindText   ObjectKind = "text"
)

// GameObject is one renderable object on the wire. Data is a ShipState,
// BulletState or TextState matching Type; use the constructors below.
type GameObject struct {
	Type ObjectKind `json:"type" msgpack:"type"`
	Data any        `json:"data" msgpack:"data"`
}

// ShipObject tags a ship for the wire.
func ShipObject(s *Ship) GameObject {
	return GameObject{Type: KindShip, Data: s.ToState()}
}

// BulletObject tags a bullet for the wire.
func BulletObject(b *Bullet) GameObject {
	return GameObject{Type: KindBullet, Data: b.ToState()}
}

// TextObject tags a label for the wire.
func TextObject(t Text) GameObject {
	return GameObject{Type: KindText, Data: t.ToState()}
}

// ShipState is broadcast per ship each tick
type ShipState struct {
	Number         int     `json:"number" msgpack:"number"`
	X              float64 `json:"x" msgpack:"x"`
	Y              float64 `json:"y" msgpack:"y"`
	Rad            float64 `json:"rad" msgpack:"rad"`
	Color          string  `json:"color" msgpack:"color"`
	Lives          int     `json:"lives" msgpack:"lives"`
	IsAlive        bool    `json:"isAlive" msgpack:"isAlive"`
	IsAccelerating bool    `json:"isAccelerating" msgpack:"isAccelerating"`
	IsReady        bool    `json:"isReady" msgpack:"isReady"`
}

// BulletState is broadcast per bullet
type BulletState struct {
	X     float64 `json:"x" msgpack:"x"`
	Y     float64 `json:"y" msgpack:"y"`
	Color string  `json:"color" msgpack:"color"`
}

// TextState is broadcast per label
type TextState struct {
	Body  string  `json:"text" msgpack:"text"`
	X     float64 `json:"x" msgpack:"x"`
	Y     float64 `json:"y" msgpack:"y"`
	Color string  `json:"color" msgpack:"color"`
	Size  int     `json:"size" msgpack:"size"`
}

// RoomInfo is used in the room list
type RoomInfo struct {
	ID        RoomID    `json:"id"`
	Players   int       `json:"players"`
	Playing   bool      `json:"playing"`
	Phase     string    `json:"phase"`
	CreatedAt time.Time `json:"created_at"`
}

// CreatedMsg answers a room creation request
type CreatedMsg struct {
	ID RoomID `json:"id"`
}

// ErrorMsg sends error to client
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// Encoding selects how frames are written to a client.
type Encoding int

const (
	EncodingJSON Encoding = iota
	EncodingMsgpack
)

// ParseEncoding maps the enc query parameter; anything unknown is JSON.
func ParseEncoding(s string) Encoding {
	if s == "msgpack" {
		return EncodingMsgpack
	}
	return EncodingJSON
}

// Binary reports whether frames use websocket binary messages.
func (e Encoding) Binary() bool {
	return e == EncodingMsgpack
}

// Marshal encodes an envelope for the wire.
func (e Encoding) Marshal(env Envelope) ([]byte, error) {
	if e == EncodingMsgpack {
		return msgpack.Marshal(env)
	}
	return json.Marshal(env)
}

const encodingCount = 2

// Frame is an outgoing envelope whose encodings are computed once and
// shared by every listener that receives it. A Frame is encoded only by the
// goroutine delivering it.
type Frame struct {
	Env   Envelope
	bufs  [encodingCount][]byte
	errs  [encodingCount]error
	ready [encodingCount]bool
}

// NewFrame wraps env for delivery.
func NewFrame(env Envelope) *Frame {
	return &Frame{Env: env}
}

// Bytes returns env encoded with e. The result is shared; callers must not
// modify it.
func (f *Frame) Bytes(e Encoding) ([]byte, error) {
	if !f.ready[e] {
		f.bufs[e], f.errs[e] = e.Marshal(f.Env)
		f.ready[e] = true
	}
	return f.bufs[e], f.errs[e]
}

func (e Encoding) String() string {
	if e == EncodingMsgpack {
		return "msgpack"
	}
	return "json"
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
