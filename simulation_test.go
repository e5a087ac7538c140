package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Unix(1_000_000, 0)

// simRoom is a room with n players (ids 1..n) and one watcher (id 100).
type simRoom struct {
	sim     *Simulation
	store   *Store
	room    *Room
	rec     *recorder
	players []*mockDeliverer
	watcher *mockDeliverer
}

func newSimRoom(t *testing.T, n int) *simRoom {
	t.Helper()
	store := NewStore()
	rec := &recorder{}
	r := NewRoom(1)
	require.True(t, store.Add(r))
	pool := newNumberPool()

	sr := &simRoom{
		sim:     NewSimulation(store, rec, testLogger()),
		store:   store,
		room:    r,
		rec:     rec,
		watcher: &mockDeliverer{},
	}
	for i := 1; i <= n; i++ {
		d := &mockDeliverer{}
		_, ok := r.admit(PlayerID(i), d, pool.Pop)
		require.True(t, ok)
		sr.players = append(sr.players, d)
	}
	r.admit(100, sr.watcher, nil)
	return sr
}

func (sr *simRoom) ship(id PlayerID) *Ship {
	return sr.room.ships[id]
}

// startPlaying skips the lobby without relocating ships.
func (sr *simRoom) startPlaying() {
	sr.room.playing = true
	sr.room.startedAt = t0
}

func TestLobbyShipsStayPut(t *testing.T) {
	sr := newSimRoom(t, 2)
	before := sr.ship(1).Pos
	sr.room.setKeys(1, KeyState{Up: true, Left: true})

	for i := 0; i < 30; i++ {
		sr.sim.Step(t0.Add(time.Duration(i) * TickDuration))
	}
	assert.Equal(t, before, sr.ship(1).Pos)
	assert.Equal(t, uint64(30), sr.sim.Ticks())
	assert.Equal(t, 30, sr.players[0].count())
}

func TestLobbyPersonalTexts(t *testing.T) {
	sr := newSimRoom(t, 2)
	sr.sim.Step(t0)

	own := textBodies(t, sr.players[0].last())
	assert.Contains(t, own, "YOU ARE PLAYER 1")
	assert.Contains(t, own, "YOU")
	assert.Contains(t, own, "PRESS SPACE WHEN READY")
	assert.NotContains(t, own, "YOU ARE PLAYER 2")

	other := textBodies(t, sr.players[1].last())
	assert.Contains(t, other, "YOU ARE PLAYER 2")

	assert.Empty(t, textBodies(t, sr.watcher.last()), "watchers get no personal labels")
	assert.Len(t, objectsOf(t, sr.watcher.last(), KindShip), 2)
}

func TestLobbyReadyLatch(t *testing.T) {
	sr := newSimRoom(t, 2)
	sr.room.setKeys(1, KeyState{Fire: true})
	sr.sim.Step(t0)
	require.True(t, sr.ship(1).Ready)

	sr.room.setKeys(1, KeyState{})
	sr.sim.Step(t0.Add(TickDuration))
	assert.True(t, sr.ship(1).Ready, "ready never resets in the lobby")

	frame := sr.watcher.last()
	assert.Equal(t, []string{"READY"}, textBodies(t, frame))
	own := textBodies(t, sr.players[0].last())
	assert.NotContains(t, own, "PRESS SPACE WHEN READY")
}

func TestSinglePlayerNeverStarts(t *testing.T) {
	sr := newSimRoom(t, 1)
	sr.room.setKeys(1, KeyState{Fire: true})
	for i := 0; i < 200; i++ {
		sr.sim.Step(t0.Add(time.Duration(i) * TickDuration))
	}
	assert.False(t, sr.room.IsPlaying())
	assert.Equal(t, PhaseLobby, sr.room.Phase())
}

func TestReadyToPlaying(t *testing.T) {
	sr := newSimRoom(t, 2)
	sr.room.setKeys(1, KeyState{Fire: true})
	sr.room.setKeys(2, KeyState{Fire: true})

	sr.sim.Step(t0)
	assert.Equal(t, PhaseCountdown, sr.room.Phase())

	sr.sim.Step(t0.Add(59 * TickDuration))
	assert.False(t, sr.room.IsPlaying(), "not playing within the countdown")

	sr.sim.Step(t0.Add(61 * TickDuration))
	assert.True(t, sr.room.IsPlaying())
	assert.Equal(t, PhasePlaying, sr.room.Phase())
	assert.True(t, sr.rec.has(EvtGameStarted))

	for _, s := range sr.room.ships {
		sp := spawnPoints[s.Number]
		assert.NotEqual(t, NewVector(sp.X, sp.Y), s.Pos, "ship %d still on its lobby slot", s.Number)
		assert.True(t, inArena(s.Pos))
		assert.Equal(t, Vector{}, s.Vel)
	}

	sr.room.setKeys(1, KeyState{})
	sr.room.setKeys(2, KeyState{})
	sr.sim.Step(t0.Add(62 * TickDuration))
	assert.Empty(t, textBodies(t, sr.players[0].last()), "no lobby labels once playing")
}

// The first all-ready sighting starts the clock; a late joiner does not
// reset it.
func TestCountdownIgnoresLateJoiner(t *testing.T) {
	sr := newSimRoom(t, 2)
	sr.room.setKeys(1, KeyState{Fire: true})
	sr.room.setKeys(2, KeyState{Fire: true})
	sr.sim.Step(t0)

	pool := newNumberPool()
	pool.Pop()
	pool.Pop()
	_, ok := sr.room.admit(3, &mockDeliverer{}, pool.Pop)
	require.True(t, ok)

	sr.sim.Step(t0.Add(CountdownDelay + time.Millisecond))
	assert.True(t, sr.room.IsPlaying())
	assert.False(t, sr.ship(3).Ready)
}

func TestPlayingShipsMoveAndFire(t *testing.T) {
	sr := newSimRoom(t, 2)
	sr.startPlaying()
	start := sr.ship(1).Pos
	sr.room.setKeys(1, KeyState{Up: true, Fire: true})

	sr.sim.Step(t0)
	sr.sim.Step(t0.Add(TickDuration))
	assert.NotEqual(t, start, sr.ship(1).Pos)
	assert.Len(t, sr.room.bullets, 1, "second shot is still charging")

	sr.sim.Step(t0.Add(ChargeTime + time.Millisecond))
	assert.Len(t, sr.room.bullets, 2)

	bullets := objectsOf(t, sr.watcher.last(), KindBullet)
	assert.Len(t, bullets, 2)
	assert.Equal(t, ShipColor(0), bullets[0].Data.(BulletState).Color)
}

func TestSharedFrameOutsideLobby(t *testing.T) {
	sr := newSimRoom(t, 2)
	other := &mockDeliverer{}
	sr.room.admit(101, other, nil)

	sr.sim.Step(t0)
	require.NotNil(t, sr.watcher.lastFrame())
	assert.Same(t, sr.watcher.lastFrame(), other.lastFrame(), "watchers share one frame")
	assert.NotSame(t, sr.players[0].lastFrame(), sr.players[1].lastFrame(), "lobby players get their own labels")

	sr.startPlaying()
	sr.sim.Step(t0.Add(TickDuration))
	shared := sr.watcher.lastFrame()
	for _, p := range sr.players {
		assert.Same(t, shared, p.lastFrame())
	}
}

func TestMissingKeyStateSkipsShip(t *testing.T) {
	sr := newSimRoom(t, 2)
	sr.startPlaying()
	delete(sr.room.keys, 1)

	assert.NotPanics(t, func() { sr.sim.Step(t0) })
	assert.Equal(t, 1, sr.players[0].count())
}

func TestCollisionToElimination(t *testing.T) {
	sr := newSimRoom(t, 2)
	sr.startPlaying()
	a := sr.ship(1)
	a.Lives = 1
	sr.room.bullets = []Bullet{{Pos: a.Pos}}

	sr.sim.Step(t0)
	require.False(t, a.Alive)
	sr.room.bullets = nil

	sr.sim.Step(t0.Add(RespawnDelay))
	assert.False(t, a.Alive, "respawn waits the full delay")
	assert.Equal(t, 2, sr.room.ShipCount())

	sr.sim.Step(t0.Add(RespawnDelay + time.Millisecond))
	assert.Equal(t, 0, a.Lives)
	assert.Equal(t, PhaseFinished, sr.room.Phase())
	assert.Equal(t, []int{1, 0}, sr.room.Ranking(), "winner first")
	assert.Equal(t, 0, sr.room.ShipCount())

	finish := sr.watcher.ofType(MsgFinish)
	require.Len(t, finish, 1)
	assert.Equal(t, []string{"GAME OVER", "1st  PLAYER 2", "2nd  PLAYER 1"}, textBodies(t, finish[0]))

	// the eliminated ship is not drawn in the last objects frame
	objects := sr.watcher.ofType(MsgObjects)
	ships := objectsOf(t, objects[len(objects)-1], KindShip)
	require.Len(t, ships, 1)
	assert.Equal(t, 1, ships[0].Data.(ShipState).Number)

	require.True(t, sr.rec.has(EvtGameFinished))
	var rec finishRecord
	require.NoError(t, json.Unmarshal([]byte(sr.rec.data[EvtGameFinished]), &rec))
	assert.Equal(t, []int{1, 0}, rec.Ranking)
}

func TestFinishedRoomIsFrozen(t *testing.T) {
	sr := newSimRoom(t, 2)
	sr.startPlaying()
	sr.ship(1).Lives = 0

	sr.sim.Step(t0)
	require.Equal(t, PhaseFinished, sr.room.Phase())
	frames := sr.watcher.count()

	sr.sim.Step(t0.Add(TickDuration))
	assert.Equal(t, frames, sr.watcher.count(), "no frames after finish")
	assert.True(t, sr.room.IsPlaying())
}

func TestSimultaneousElimination(t *testing.T) {
	sr := newSimRoom(t, 2)
	sr.startPlaying()
	sr.ship(1).Lives = 0
	sr.ship(2).Lives = 0

	sr.sim.Step(t0)
	assert.Equal(t, PhaseFinished, sr.room.Phase())
	assert.Equal(t, []int{1, 0}, sr.room.Ranking())
}

func TestRepeatedHitsSuppressRespawn(t *testing.T) {
	sr := newSimRoom(t, 2)
	sr.startPlaying()
	a := sr.ship(1)
	sr.room.bullets = []Bullet{{Pos: a.Pos}} // parked on the wreck

	for i := 0; i < 5*TickRate; i++ {
		sr.sim.Step(t0.Add(time.Duration(i) * TickDuration))
	}
	assert.False(t, a.Alive)
	assert.Equal(t, ShipMaxLives, a.Lives)
}

func TestDeletedRoomSkipped(t *testing.T) {
	sr := newSimRoom(t, 2)
	sr.room.teardown()

	sr.sim.Step(t0)
	assert.Equal(t, 0, sr.players[0].count())
}

type panicDeliverer struct{}

func (panicDeliverer) Deliver(*Frame) { panic("boom") }

func TestRoomPanicContained(t *testing.T) {
	sr := newSimRoom(t, 2)

	bad := NewRoom(0)
	bad.admit(50, panicDeliverer{}, nil)
	require.True(t, sr.store.Add(bad))

	assert.NotPanics(t, func() { sr.sim.Step(t0) })
	assert.Equal(t, 1, sr.players[0].count(), "other rooms still tick")

	// the panicking room's lock was released
	assert.Equal(t, 1, bad.ListenerCount())
}

func TestBulletsExpireInSimulation(t *testing.T) {
	sr := newSimRoom(t, 2)
	sr.startPlaying()
	sr.room.bullets = []Bullet{NewBullet("#fff", NewVector(590, 10), 0)}

	for i := 0; i < 10; i++ {
		sr.sim.Step(t0.Add(time.Duration(i) * TickDuration))
	}
	assert.Empty(t, sr.room.bullets)
}
