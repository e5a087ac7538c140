package main

import (
	"crypto/rand"
	"encoding/binary"
)

// randomUint64 draws uniformly over the full 64-bit range.
func randomUint64() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// NewPlayerID returns a random connection id.
func NewPlayerID() PlayerID {
	return PlayerID(randomUint64())
}

// NewRoomID returns a random non-zero room id.
func NewRoomID() RoomID {
	for {
		if id := RoomID(randomUint64()); id != 0 {
			return id
		}
	}
}
