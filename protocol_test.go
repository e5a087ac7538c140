package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestKeyStateWireNames(t *testing.T) {
	var ks KeyState
	raw := `{"ArrowLeft":true,"ArrowRight":false,"ArrowUp":true," ":true}`
	require.NoError(t, json.Unmarshal([]byte(raw), &ks))
	assert.Equal(t, KeyState{Left: true, Up: true, Fire: true}, ks)
}

func TestObjectsFrameJSON(t *testing.T) {
	s := NewShip(0)
	b := NewBullet(s.Color, NewVector(10, 20), 0)
	frame := Envelope{Type: MsgObjects, Data: []GameObject{
		ShipObject(s),
		BulletObject(&b),
		TextObject(NewText("HI", 300, 40, TextSizeLarge)),
	}}

	raw, err := EncodingJSON.Marshal(frame)
	require.NoError(t, err)

	var decoded struct {
		Type string `json:"type"`
		Data []struct {
			Type string         `json:"type"`
			Data map[string]any `json:"data"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "objects", decoded.Type)
	require.Len(t, decoded.Data, 3)
	assert.Equal(t, "ship", decoded.Data[0].Type)
	assert.Equal(t, 150.0, decoded.Data[0].Data["x"])
	assert.Equal(t, true, decoded.Data[0].Data["isAlive"])
	assert.Equal(t, "bullet", decoded.Data[1].Type)
	assert.Equal(t, "text", decoded.Data[2].Type)
	assert.Equal(t, "HI", decoded.Data[2].Data["text"])
}

func TestEncodingMsgpack(t *testing.T) {
	enc := ParseEncoding("msgpack")
	assert.True(t, enc.Binary())
	assert.Equal(t, "msgpack", enc.String())

	raw, err := enc.Marshal(Envelope{Type: MsgPing})
	require.NoError(t, err)
	var env map[string]any
	require.NoError(t, msgpack.Unmarshal(raw, &env))
	assert.Equal(t, "ping", env["type"])

	assert.Equal(t, EncodingJSON, ParseEncoding(""))
	assert.Equal(t, EncodingJSON, ParseEncoding("xml"))
	assert.False(t, EncodingJSON.Binary())
}

func TestFinishTexts(t *testing.T) {
	texts := finishTexts([]int{2, 0, 3})
	require.Len(t, texts, 4)
	assert.Equal(t, "GAME OVER", texts[0].Body)
	assert.Equal(t, "1st  PLAYER 3", texts[1].Body)
	assert.Equal(t, ShipColor(2), texts[1].Color)
	assert.Equal(t, "3rd  PLAYER 4", texts[3].Body)
	assert.Less(t, texts[1].Pos.Y, texts[2].Pos.Y)
}

func TestOrdinal(t *testing.T) {
	for n, want := range map[int]string{1: "1st", 2: "2nd", 3: "3rd", 4: "4th", 11: "11th", 12: "12th", 21: "21st"} {
		assert.Equal(t, want, ordinal(n))
	}
}

func TestFrameEncodesOncePerEncoding(t *testing.T) {
	f := NewFrame(Envelope{Type: MsgObjects, Data: []GameObject{
		TextObject(NewText("HI", 300, 40, TextSizeLarge)),
	}})

	for _, enc := range []Encoding{EncodingJSON, EncodingMsgpack} {
		first, err := f.Bytes(enc)
		require.NoError(t, err)
		want, err := enc.Marshal(f.Env)
		require.NoError(t, err)
		assert.Equal(t, want, first, enc.String())

		again, err := f.Bytes(enc)
		require.NoError(t, err)
		assert.Same(t, &first[0], &again[0], "%s bytes are reused", enc)
	}

	j, _ := f.Bytes(EncodingJSON)
	m, _ := f.Bytes(EncodingMsgpack)
	assert.NotEqual(t, j, m)
}
