package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"runtime/debug"
	"slices"
	"sync/atomic"
	"time"
)

const (
	TickRate     = 60 // physics ticks per second
	TickDuration = time.Second / TickRate
)

// Simulation advances every room once per tick. It is the only writer of
// ship and bullet physics.
type Simulation struct {
	store  *Store
	events Recorder
	logger *slog.Logger
	ticks  atomic.Uint64
}

// NewSimulation creates a simulation over the rooms in store.
func NewSimulation(store *Store, events Recorder, logger *slog.Logger) *Simulation {
	if events == nil {
		events = nopRecorder{}
	}
	return &Simulation{
		store:  store,
		events: events,
		logger: logger,
	}
}

// Run ticks at TickRate until ctx is cancelled.
func (s *Simulation) Run(ctx context.Context) error {
	ticker := time.NewTicker(TickDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.Step(now)
		}
	}
}

// Ticks returns the number of completed ticks.
func (s *Simulation) Ticks() uint64 {
	return s.ticks.Load()
}

// Step runs one tick for every room as of now.
func (s *Simulation) Step(now time.Time) {
	for _, r := range s.store.Snapshot() {
		s.stepRoom(r, now)
	}
	s.ticks.Add(1)
}

// stepRoom runs the tick phases for one room under its lock. A panic is
// contained to the room that raised it.
func (s *Simulation) stepRoom(r *Room, now time.Time) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("simulation: room step panicked, skipping room this tick",
				"room", r.ID, "panic", rec, "stack", string(debug.Stack()))
		}
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted || r.finished {
		return
	}

	ids := shipOrder(r)
	labels := s.updateShips(r, ids, now)
	s.checkCountdown(r, now)
	s.updateBullets(r)
	doomed := s.resolveHits(r, ids, now)
	s.broadcast(r, ids, labels)
	s.eliminate(r, doomed)
	s.checkFinish(r, now)
}

// shipOrder lists ship owners by player number so every tick walks ships in
// the same order.
func shipOrder(r *Room) []PlayerID {
	ids := slices.Collect(maps.Keys(r.ships))
	slices.SortFunc(ids, func(a, b PlayerID) int {
		return r.ships[a].Number - r.ships[b].Number
	})
	return ids
}

// updateShips applies each player's input. In the lobby ships stay put and
// fire only latches the ready flag; the returned labels mark ready ships.
func (s *Simulation) updateShips(r *Room, ids []PlayerID, now time.Time) []Text {
	var labels []Text
	for _, id := range ids {
		ship := r.ships[id]
		keys, ok := r.keys[id]
		if !ok {
			s.logger.Warn("simulation: ship has no key state", "room", r.ID, "player", id)
			continue
		}

		if r.playing {
			ship.Control(keys)
			if keys.Fire {
				if b, fired := ship.Fire(now); fired {
					r.bullets = append(r.bullets, b)
				}
			}
			ship.Respawn(now)
			continue
		}

		if keys.Fire {
			ship.Ready = true
		}
		if ship.Ready {
			labels = append(labels, readyLabel(ship))
		}
	}
	return labels
}

// checkCountdown starts the match CountdownDelay after all ships were first
// seen ready. The first sighting is kept even if a player drops out later.
func (s *Simulation) checkCountdown(r *Room, now time.Time) {
	if r.playing {
		return
	}
	if r.readyAt.IsZero() && len(r.ships) > 1 && allReady(r.ships) {
		r.readyAt = now
	}
	if r.readyAt.IsZero() || now.Sub(r.readyAt) <= CountdownDelay {
		return
	}

	r.playing = true
	r.startedAt = now
	for _, ship := range r.ships {
		ship.PutOnRandomPlace()
	}
	s.logger.Info("game started", "room", r.ID, "ships", len(r.ships))
	s.events.Track(EvtGameStarted, 0, r.ID, "")
}

func allReady(ships map[PlayerID]*Ship) bool {
	for _, ship := range ships {
		if !ship.Ready {
			return false
		}
	}
	return true
}

// updateBullets drops expired bullets and moves the rest one step.
func (s *Simulation) updateBullets(r *Room) {
	live := r.bullets[:0]
	for _, b := range r.bullets {
		if !b.IsAlive() {
			continue
		}
		b.Move()
		live = append(live, b)
	}
	clear(r.bullets[len(live):])
	r.bullets = live
}

// resolveHits tests every ship against every bullet and returns the ships
// that are out of lives.
func (s *Simulation) resolveHits(r *Room, ids []PlayerID, now time.Time) []PlayerID {
	var doomed []PlayerID
	for _, id := range ids {
		ship := r.ships[id]
		for i := range r.bullets {
			if r.bullets[i].Hits(ship) {
				ship.Hit(now)
			}
		}
		if ship.GameOver() {
			doomed = append(doomed, id)
		}
	}
	return doomed
}

// broadcast sends the frame to every listener. Players still in the lobby
// get their own labels appended; everyone else shares one encoded frame.
func (s *Simulation) broadcast(r *Room, ids []PlayerID, labels []Text) {
	objects := make([]GameObject, 0, len(ids)+len(r.bullets)+len(labels))
	for _, id := range ids {
		if ship := r.ships[id]; !ship.GameOver() {
			objects = append(objects, ShipObject(ship))
		}
	}
	for i := range r.bullets {
		objects = append(objects, BulletObject(&r.bullets[i]))
	}
	for _, t := range labels {
		objects = append(objects, TextObject(t))
	}
	objects = slices.Clip(objects)
	shared := NewFrame(Envelope{Type: MsgObjects, Data: objects})

	for lid, conn := range r.listeners {
		ship, ok := r.ships[lid]
		if !ok || r.playing {
			conn.Deliver(shared)
			continue
		}
		own := objects
		for _, t := range lobbyTexts(ship) {
			own = append(own, TextObject(t))
		}
		conn.Deliver(NewFrame(Envelope{Type: MsgObjects, Data: own}))
	}
}

// eliminate removes ships that ran out of lives and ranks them.
func (s *Simulation) eliminate(r *Room, doomed []PlayerID) {
	for _, id := range doomed {
		ship, ok := r.ships[id]
		if !ok {
			continue
		}
		delete(r.ships, id)
		delete(r.keys, id)
		r.ranking = append(r.ranking, ship.Number)
		s.logger.Info("ship eliminated", "room", r.ID, "player", id, "number", ship.Number)
	}
}

type finishRecord struct {
	Ranking  []int   `json:"ranking"`
	Duration float64 `json:"duration"`
}

// checkFinish ends a match once at most one ship is left. The room keeps its
// listeners and bookkeeping until a client deletes it.
func (s *Simulation) checkFinish(r *Room, now time.Time) {
	if !r.playing || len(r.ships) > 1 {
		return
	}

	order := slices.Clone(r.ranking)
	for _, id := range shipOrder(r) {
		order = append(order, r.ships[id].Number)
	}
	slices.Reverse(order)
	r.ranking = order
	r.finished = true

	texts := finishTexts(order)
	objects := make([]GameObject, 0, len(texts))
	for _, t := range texts {
		objects = append(objects, TextObject(t))
	}
	frame := NewFrame(Envelope{Type: MsgFinish, Data: objects})
	for _, conn := range r.listeners {
		conn.Deliver(frame)
	}

	r.ships = make(map[PlayerID]*Ship)
	r.keys = make(map[PlayerID]KeyState)
	r.bullets = nil

	duration := now.Sub(r.startedAt).Seconds()
	s.logger.Info("game finished", "room", r.ID, "ranking", order, "duration", duration)
	data, err := json.Marshal(finishRecord{Ranking: order, Duration: duration})
	if err != nil {
		s.logger.Warn("simulation: encode finish record", "room", r.ID, "error", err)
		return
	}
	s.events.Track(EvtGameFinished, 0, r.ID, string(data))
}
