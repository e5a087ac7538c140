package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// idleRoomTTL is how long a room with nobody connected is kept before the
// next CreateRoom reaps it.
const idleRoomTTL = 5 * time.Minute

var (
	ErrCoordinatorClosed = errors.New("coordinator closed")
	ErrTooManyRooms      = errors.New("too many active rooms")
	ErrRoomNotFound      = errors.New("room not found")
)

// Recorder receives lifecycle events. Track must not block.
type Recorder interface {
	Track(evtType string, playerID PlayerID, roomID RoomID, data string)
}

type nopRecorder struct{}

func (nopRecorder) Track(string, PlayerID, RoomID, string) {}

// JoinResult is the outcome of a join request.
type JoinResult struct {
	Accepted bool // false: unknown room, the caller should hang up
	Watching bool // effective mode; a full room turns players into watchers
	HasShip  bool
	Number   int // player number, valid when HasShip
}

// roomBook is the coordinator's private bookkeeping for one room.
type roomBook struct {
	occupancy int // joined non-watchers
	pool      *numberPool
	joined    bool      // someone has joined at least once
	idleSince time.Time // last moment the room became empty
}

// Coordinator serializes every control operation through one goroutine.
// Room and session bookkeeping is owned by that goroutine; room contents are
// shared with the simulation through the Store and each room's lock.
type Coordinator struct {
	store    *Store
	events   Recorder
	logger   *slog.Logger
	maxRooms int
	now      func() time.Time

	inbox chan any
	done  chan struct{}

	// owned by Run
	books    map[RoomID]*roomBook
	sessions map[PlayerID]RoomID
}

// NewCoordinator creates a coordinator over store. maxRooms <= 0 disables the
// live-room cap.
func NewCoordinator(store *Store, events Recorder, logger *slog.Logger, maxRooms int) *Coordinator {
	if events == nil {
		events = nopRecorder{}
	}
	return &Coordinator{
		store:    store,
		events:   events,
		logger:   logger,
		maxRooms: maxRooms,
		now:      time.Now,
		inbox:    make(chan any, 256),
		done:     make(chan struct{}),
		books:    make(map[RoomID]*roomBook),
		sessions: make(map[PlayerID]RoomID),
	}
}

type connectReq struct {
	reply chan PlayerID
}

type createRoomReq struct {
	reply chan createRoomResult
}

type createRoomResult struct {
	id  RoomID
	err error
}

type deleteRoomReq struct {
	room  RoomID
	reply chan bool
}

type joinReq struct {
	id    PlayerID
	room  RoomID
	conn  Deliverer
	watch bool
	reply chan JoinResult
}

type disconnectReq struct {
	id    PlayerID
	room  RoomID
	watch bool
	reply chan struct{}
}

type keyUpdateReq struct {
	id    PlayerID
	keys  KeyState
	reply chan bool
}

type playerCountReq struct {
	room  RoomID
	reply chan int
}

type isPlayingReq struct {
	room  RoomID
	reply chan bool
}

type listRoomsReq struct {
	reply chan []RoomInfo
}

type roomInfoReq struct {
	room  RoomID
	reply chan roomInfoResult
}

type roomInfoResult struct {
	info RoomInfo
	ok   bool
}

// Run processes control messages until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-c.inbox:
			c.handle(msg)
		}
	}
}

func (c *Coordinator) handle(msg any) {
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("coordinator: message panicked", "msg", fmt.Sprintf("%T", msg), "panic", rec)
		}
	}()

	switch m := msg.(type) {
	case connectReq:
		m.reply <- NewPlayerID()
	case createRoomReq:
		id, err := c.createRoom()
		m.reply <- createRoomResult{id: id, err: err}
	case deleteRoomReq:
		m.reply <- c.deleteRoom(m.room)
	case joinReq:
		m.reply <- c.join(m)
	case disconnectReq:
		c.disconnect(m)
		m.reply <- struct{}{}
	case keyUpdateReq:
		m.reply <- c.keyUpdate(m.id, m.keys)
	case playerCountReq:
		if book, ok := c.books[m.room]; ok {
			m.reply <- book.occupancy
		} else {
			m.reply <- 0
		}
	case isPlayingReq:
		if r := c.store.Get(m.room); r != nil {
			m.reply <- r.IsPlaying()
		} else {
			m.reply <- false
		}
	case listRoomsReq:
		m.reply <- c.listRooms()
	case roomInfoReq:
		info, ok := c.roomInfo(m.room)
		m.reply <- roomInfoResult{info: info, ok: ok}
	default:
		c.logger.Warn("coordinator: unknown message", "msg", fmt.Sprintf("%T", msg))
	}
}

func (c *Coordinator) createRoom() (RoomID, error) {
	now := c.now()
	c.reapIdle(now)
	if c.maxRooms > 0 && c.liveRooms() >= c.maxRooms {
		return 0, ErrTooManyRooms
	}
	var r *Room
	for {
		r = NewRoom(NewRoomID())
		r.CreatedAt = now
		if _, taken := c.books[r.ID]; !taken && c.store.Add(r) {
			break
		}
	}
	c.books[r.ID] = &roomBook{pool: newNumberPool(), idleSince: now}

	c.logger.Info("room created", "room", r.ID)
	c.events.Track(EvtRoomCreated, 0, r.ID, "")
	return r.ID, nil
}

// idle reports whether nobody holds a slot or listens in the room.
func (c *Coordinator) idle(id RoomID, book *roomBook) bool {
	if book.occupancy > 0 {
		return false
	}
	r := c.store.Get(id)
	return r == nil || r.ListenerCount() == 0
}

// liveRooms counts the rooms held against the cap: rooms with someone
// connected, plus fresh rooms nobody has joined yet.
func (c *Coordinator) liveRooms() int {
	n := 0
	for id, book := range c.books {
		if !book.joined || !c.idle(id, book) {
			n++
		}
	}
	return n
}

// reapIdle deletes rooms that have been empty for longer than idleRoomTTL.
func (c *Coordinator) reapIdle(now time.Time) {
	for id, book := range c.books {
		if c.idle(id, book) && now.Sub(book.idleSince) > idleRoomTTL {
			c.logger.Info("reaping idle room", "room", id, "idle", now.Sub(book.idleSince))
			c.deleteRoom(id)
		}
	}
}

func (c *Coordinator) deleteRoom(id RoomID) bool {
	removed := false
	if r := c.store.Remove(id); r != nil {
		r.teardown()
		removed = true
	}
	if _, ok := c.books[id]; ok {
		delete(c.books, id)
		removed = true
	}
	for pid, rid := range c.sessions {
		if rid == id {
			delete(c.sessions, pid)
		}
	}
	if removed {
		c.logger.Info("room deleted", "room", id)
		c.events.Track(EvtRoomDeleted, 0, id, "")
	}
	return removed
}

func (c *Coordinator) join(m joinReq) JoinResult {
	r := c.store.Get(m.room)
	book, ok := c.books[m.room]
	if r == nil || !ok {
		return JoinResult{}
	}

	watch := m.watch
	if !watch && book.occupancy >= MaxPlayers {
		c.logger.Info("room full, joining as watcher", "room", m.room, "player", m.id)
		watch = true
	}

	var claim func() (int, bool)
	if !watch {
		claim = book.pool.Pop
		book.occupancy++
	}
	number, hasShip := r.admit(m.id, m.conn, claim)
	c.sessions[m.id] = m.room
	book.joined = true

	c.logger.Debug("player joined", "room", m.room, "player", m.id, "watch", watch, "ship", hasShip, "number", number)
	c.events.Track(EvtPlayerJoined, m.id, m.room, "")
	return JoinResult{Accepted: true, Watching: watch, HasShip: hasShip, Number: number}
}

func (c *Coordinator) disconnect(m disconnectReq) {
	if rid, ok := c.sessions[m.id]; ok && rid == m.room {
		delete(c.sessions, m.id)
	}
	r := c.store.Get(m.room)
	book, ok := c.books[m.room]
	if r == nil || !ok {
		return
	}
	if !m.watch && book.occupancy > 0 {
		book.occupancy--
	}
	if number, owned := r.leave(m.id); owned {
		book.pool.Push(number)
	}
	if c.idle(m.room, book) {
		book.idleSince = c.now()
	}

	c.logger.Debug("player left", "room", m.room, "player", m.id, "watch", m.watch)
	c.events.Track(EvtPlayerLeft, m.id, m.room, "")
}

func (c *Coordinator) keyUpdate(id PlayerID, ks KeyState) bool {
	rid, ok := c.sessions[id]
	if !ok {
		return false
	}
	r := c.store.Get(rid)
	if r == nil {
		return false
	}
	return r.setKeys(id, ks)
}

func (c *Coordinator) roomInfo(id RoomID) (RoomInfo, bool) {
	book, ok := c.books[id]
	if !ok {
		return RoomInfo{}, false
	}
	info := RoomInfo{ID: id, Players: book.occupancy}
	if r := c.store.Get(id); r != nil {
		info.CreatedAt = r.CreatedAt
		phase := r.Phase()
		info.Playing = phase == PhasePlaying || phase == PhaseFinished
		info.Phase = phase.String()
	}
	return info, true
}

func (c *Coordinator) listRooms() []RoomInfo {
	list := make([]RoomInfo, 0, len(c.books))
	for id, book := range c.books {
		if book.occupancy == 0 {
			continue
		}
		info, _ := c.roomInfo(id)
		list = append(list, info)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// request posts msg and waits for its typed reply.
func request[T any](ctx context.Context, c *Coordinator, msg func(reply chan T) any) (T, error) {
	var zero T
	reply := make(chan T, 1)
	select {
	case c.inbox <- msg(reply):
	case <-c.done:
		return zero, ErrCoordinatorClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-c.done:
		return zero, ErrCoordinatorClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Connect assigns a fresh random player id.
func (c *Coordinator) Connect(ctx context.Context) (PlayerID, error) {
	return request(ctx, c, func(reply chan PlayerID) any {
		return connectReq{reply: reply}
	})
}

// CreateRoom allocates an unused room id with an empty lobby.
func (c *Coordinator) CreateRoom(ctx context.Context) (RoomID, error) {
	res, err := request(ctx, c, func(reply chan createRoomResult) any {
		return createRoomReq{reply: reply}
	})
	if err != nil {
		return 0, err
	}
	if res.err != nil {
		return 0, fmt.Errorf("create room: %w", res.err)
	}
	return res.id, nil
}

// DeleteRoom removes every trace of a room. It reports whether anything was
// removed; deleting an absent room is a no-op.
func (c *Coordinator) DeleteRoom(ctx context.Context, room RoomID) (bool, error) {
	return request(ctx, c, func(reply chan bool) any {
		return deleteRoomReq{room: room, reply: reply}
	})
}

// Join subscribes conn to room. Unless watch is set, the player takes an
// occupancy slot and, while the room is still in its lobby, a ship.
func (c *Coordinator) Join(ctx context.Context, id PlayerID, room RoomID, conn Deliverer, watch bool) (JoinResult, error) {
	return request(ctx, c, func(reply chan JoinResult) any {
		return joinReq{id: id, room: room, conn: conn, watch: watch, reply: reply}
	})
}

// Disconnect releases everything id holds in room. watch must be the
// effective mode returned by Join.
func (c *Coordinator) Disconnect(ctx context.Context, id PlayerID, room RoomID, watch bool) error {
	_, err := request(ctx, c, func(reply chan struct{}) any {
		return disconnectReq{id: id, room: room, watch: watch, reply: reply}
	})
	return err
}

// KeyUpdate replaces the stored input snapshot for id. It reports whether
// the player had a ship to steer.
func (c *Coordinator) KeyUpdate(ctx context.Context, id PlayerID, keys KeyState) (bool, error) {
	return request(ctx, c, func(reply chan bool) any {
		return keyUpdateReq{id: id, keys: keys, reply: reply}
	})
}

// GetPlayerCount returns the room's occupancy, 0 for unknown rooms.
func (c *Coordinator) GetPlayerCount(ctx context.Context, room RoomID) (int, error) {
	return request(ctx, c, func(reply chan int) any {
		return playerCountReq{room: room, reply: reply}
	})
}

// IsPlaying reports whether the room's match has started.
func (c *Coordinator) IsPlaying(ctx context.Context, room RoomID) (bool, error) {
	return request(ctx, c, func(reply chan bool) any {
		return isPlayingReq{room: room, reply: reply}
	})
}

// ListRooms returns rooms with at least one player, ordered by id.
func (c *Coordinator) ListRooms(ctx context.Context) ([]RoomInfo, error) {
	return request(ctx, c, func(reply chan []RoomInfo) any {
		return listRoomsReq{reply: reply}
	})
}

// RoomInfo describes one room, including empty ones. It returns
// ErrRoomNotFound for unknown ids.
func (c *Coordinator) RoomInfo(ctx context.Context, room RoomID) (RoomInfo, error) {
	res, err := request(ctx, c, func(reply chan roomInfoResult) any {
		return roomInfoReq{room: room, reply: reply}
	})
	if err != nil {
		return RoomInfo{}, err
	}
	if !res.ok {
		return RoomInfo{}, fmt.Errorf("room %d: %w", room, ErrRoomNotFound)
	}
	return res.info, nil
}
