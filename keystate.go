package main

// KeyState is the latest snapshot of a player's buttons. Updates replace the
// whole snapshot; fields are never merged.
type KeyState struct {
	Left  bool `json:"ArrowLeft" msgpack:"ArrowLeft"`
	Right bool `json:"ArrowRight" msgpack:"ArrowRight"`
	Up    bool `json:"ArrowUp" msgpack:"ArrowUp"`
	Fire  bool `json:" " msgpack:" "`
}
