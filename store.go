package main

import (
	"sort"
	"sync"
)

// Store is the shared table of live rooms. The coordinator is its only
// writer; the simulation takes snapshots of it every tick.
type Store struct {
	mu    sync.RWMutex
	rooms map[RoomID]*Room
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{
		rooms: make(map[RoomID]*Room),
	}
}

// Add inserts a room. It returns false if the id is taken.
func (s *Store) Add(r *Room) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[r.ID]; ok {
		return false
	}
	s.rooms[r.ID] = r
	return true
}

// Get returns a room by ID
func (s *Store) Get(id RoomID) *Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms[id]
}

// Remove unlinks a room and returns it, or nil if it was not present.
func (s *Store) Remove(id RoomID) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil
	}
	delete(s.rooms, id)
	return r
}

// Len returns the number of rooms
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Snapshot returns the current rooms ordered by id.
func (s *Store) Snapshot() []*Room {
	s.mu.RLock()
	list := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		list = append(list, r)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}
