package main

import (
	"slices"
	"sync"
	"time"
)

// RoomID identifies a room.
type RoomID uint32

// PlayerID identifies a connection for its whole lifetime.
type PlayerID uint64

// RoomPhase represents the lifecycle of a room
type RoomPhase int

const (
	PhaseLobby     RoomPhase = 0
	PhaseCountdown RoomPhase = 1
	PhasePlaying   RoomPhase = 2
	PhaseFinished  RoomPhase = 3
)

// CountdownDelay is how long every ship must have been ready before play starts.
const CountdownDelay = time.Second

func (p RoomPhase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseCountdown:
		return "countdown"
	case PhasePlaying:
		return "playing"
	case PhaseFinished:
		return "finished"
	}
	return "unknown"
}

// Deliverer receives frames for one listener. Deliver must not block.
type Deliverer interface {
	Deliver(f *Frame)
}

// Room holds the mutable state of one arena. Every field below mu is guarded
// by it; the simulation holds mu for a whole room step so control operations
// never observe a half-finished tick.
type Room struct {
	ID        RoomID
	CreatedAt time.Time

	mu        sync.Mutex
	listeners map[PlayerID]Deliverer
	ships     map[PlayerID]*Ship
	keys      map[PlayerID]KeyState
	bullets   []Bullet
	playing   bool
	finished  bool
	deleted   bool
	readyAt   time.Time // first tick every ship was ready; never cleared
	startedAt time.Time
	ranking   []int // eliminated player numbers, in order
}

// NewRoom creates an empty room in the lobby phase.
func NewRoom(id RoomID) *Room {
	return &Room{
		ID:        id,
		CreatedAt: time.Now(),
		listeners: make(map[PlayerID]Deliverer),
		ships:     make(map[PlayerID]*Ship),
		keys:      make(map[PlayerID]KeyState),
	}
}

// admit registers id as a listener. When claim is non-nil and the room has
// not started, claim is asked for a player number and a ship is spawned on
// that slot. It returns the ship's number and whether one was created.
func (r *Room) admit(id PlayerID, d Deliverer, claim func() (int, bool)) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted {
		return 0, false
	}
	r.listeners[id] = d
	if claim == nil || r.playing {
		return 0, false
	}
	number, ok := claim()
	if !ok {
		return 0, false
	}
	r.ships[id] = NewShip(number)
	r.keys[id] = KeyState{}
	return number, true
}

// leave drops every trace of id. It returns the number of the ship the
// player still owned, if any.
func (r *Room) leave(id PlayerID) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.listeners, id)
	delete(r.keys, id)
	ship, ok := r.ships[id]
	if !ok {
		return 0, false
	}
	delete(r.ships, id)
	return ship.Number, true
}

// setKeys replaces the stored input snapshot of a player with a ship.
func (r *Room) setKeys(id PlayerID, ks KeyState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.keys[id]; !ok {
		return false
	}
	r.keys[id] = ks
	return true
}

// teardown empties the room and flags it so a tick that already holds a
// pointer to it leaves it alone.
func (r *Room) teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.deleted = true
	r.listeners = make(map[PlayerID]Deliverer)
	r.ships = make(map[PlayerID]*Ship)
	r.keys = make(map[PlayerID]KeyState)
	r.bullets = nil
}

// IsPlaying reports whether the match has started.
func (r *Room) IsPlaying() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playing
}

// Phase returns the room's lifecycle phase.
func (r *Room) Phase() RoomPhase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phaseLocked()
}

func (r *Room) phaseLocked() RoomPhase {
	switch {
	case r.finished:
		return PhaseFinished
	case r.playing:
		return PhasePlaying
	case !r.readyAt.IsZero():
		return PhaseCountdown
	}
	return PhaseLobby
}

// ShipCount returns the number of ships still in the room.
func (r *Room) ShipCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ships)
}

// ListenerCount returns the number of subscribed connections.
func (r *Room) ListenerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

// Ranking returns the eliminated player numbers so far; once finished it is
// the final standings, winner first.
func (r *Room) Ranking() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.ranking)
}

// numberPool hands out player numbers first-in first-out.
type numberPool struct {
	free []int
}

func newNumberPool() *numberPool {
	p := &numberPool{free: make([]int, 0, MaxPlayers)}
	for n := 0; n < MaxPlayers; n++ {
		p.free = append(p.free, n)
	}
	return p
}

// Pop takes the number at the front of the pool.
func (p *numberPool) Pop() (int, bool) {
	if len(p.free) == 0 {
		return 0, false
	}
	n := p.free[0]
	p.free = p.free[1:]
	return n, true
}

// Push returns a number to the back of the pool.
func (p *numberPool) Push(n int) {
	if slices.Contains(p.free, n) {
		return
	}
	p.free = append(p.free, n)
}

// Len returns how many numbers are free.
func (p *numberPool) Len() int {
	return len(p.free)
}
