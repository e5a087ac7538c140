package main

import (
	"math"
	"math/rand/v2"
	"time"
)

const (
	MaxPlayers      = 4
	ShipMaxLives    = 3
	ShipRotateSpeed = 0.07  // radians per tick
	ShipAccel       = 0.03  // units/tick² while thrusting
	ShipDamping     = 0.005 // fraction of velocity lost every tick
	ShipNoseOffset  = 15.0  // bullet spawn distance ahead of the hull centre
	ChargeTime      = 500 * time.Millisecond
	RespawnDelay    = time.Second
)

var shipColors = [MaxPlayers]string{"#ff5555", "#55aaff", "#55ff55", "#ffff55"}

type spawnPoint struct {
	X, Y float64
	Rad  float64
}

// One slot per quadrant, nose toward the arena centre.
var spawnPoints = [MaxPlayers]spawnPoint{
	{X: 150, Y: 150, Rad: math.Pi / 4},
	{X: 450, Y: 450, Rad: 5 * math.Pi / 4},
	{X: 450, Y: 150, Rad: 3 * math.Pi / 4},
	{X: 150, Y: 450, Rad: 7 * math.Pi / 4},
}

// ShipColor returns the hull color for a player number.
func ShipColor(number int) string {
	if number < 0 || number >= MaxPlayers {
		return "#ffffff"
	}
	return shipColors[number]
}

// Ship is a player's vessel inside one room.
type Ship struct {
	Number       int
	Color        string
	Pos          Vector
	Rad          float64
	Vel          Vector
	Lives        int
	Alive        bool
	Accelerating bool
	Ready        bool
	LastFire     time.Time
	LastHit      time.Time
}

// NewShip places a fresh ship on the spawn slot for its player number.
func NewShip(number int) *Ship {
	sp := spawnPoints[number%MaxPlayers]
	return &Ship{
		Number: number,
		Color:  ShipColor(number),
		Pos:    NewVector(sp.X, sp.Y),
		Rad:    sp.Rad,
		Lives:  ShipMaxLives,
		Alive:  true,
	}
}

// Control advances the ship one playing tick under the given input.
func (s *Ship) Control(keys KeyState) {
	s.Accelerating = keys.Up
	if s.Alive {
		if keys.Up {
			s.Vel = s.Vel.Add(NewVector(ShipAccel, 0).Rotate(s.Rad))
		}
		if keys.Right {
			s.Rad += ShipRotateSpeed
		}
		if keys.Left {
			s.Rad -= ShipRotateSpeed
		}
	}
	s.Vel = s.Vel.Mul(1 - ShipDamping)
	s.Pos = s.Pos.Add(s.Vel)
}

// Head is the point bullets leave from.
func (s *Ship) Head() Vector {
	return s.Pos.Add(NewVector(ShipNoseOffset, 0).Rotate(s.Rad))
}

// Fire returns a bullet when the ship is alive and charged. A successful
// call restarts the charge timer.
func (s *Ship) Fire(now time.Time) (Bullet, bool) {
	if !s.Alive || now.Sub(s.LastFire) <= ChargeTime {
		return Bullet{}, false
	}
	s.LastFire = now
	return NewBullet(s.Color, s.Head(), s.Rad), true
}

// Hit marks the ship destroyed. Every hit refreshes LastHit, so a wreck kept
// under fire does not respawn.
func (s *Ship) Hit(now time.Time) {
	s.Alive = false
	s.LastHit = now
}

// Respawn revives a wreck whose respawn delay has passed, spending one life.
// It reports whether the ship was revived.
func (s *Ship) Respawn(now time.Time) bool {
	if s.Alive || s.Lives <= 0 || now.Sub(s.LastHit) <= RespawnDelay {
		return false
	}
	s.Lives--
	s.Alive = true
	s.PutOnRandomPlace()
	return true
}

// GameOver reports whether the ship has no lives left.
func (s *Ship) GameOver() bool {
	return s.Lives <= 0
}

// PutOnRandomPlace moves the ship to a uniform random spot and heading and
// stops it.
func (s *Ship) PutOnRandomPlace() {
	s.Pos = NewVector(rand.Float64()*ArenaWidth, rand.Float64()*ArenaHeight)
	s.Rad = rand.Float64() * 2 * math.Pi
	s.Vel = Vector{}
}

// ToState converts to protocol state
func (s *Ship) ToState() ShipState {
	return ShipState{
		Number:         s.Number,
		X:              round1(s.Pos.X),
		Y:              round1(s.Pos.Y),
		Rad:            s.Rad,
		Color:          s.Color,
		Lives:          s.Lives,
		IsAlive:        s.Alive,
		IsAccelerating: s.Accelerating,
		IsReady:        s.Ready,
	}
}
