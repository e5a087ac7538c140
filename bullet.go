package main

const (
	BulletSpeed   = 7.0  // units per tick
	BulletEpsilon = 1.0  // slack on the step-length check
	HitRadius     = 12.0 // ship/bullet contact distance
)

// Bullet is a projectile. It has no owner once fired.
type Bullet struct {
	Color string
	Pos   Vector
	Vel   Vector
}

// NewBullet creates a bullet at pos travelling along rad.
func NewBullet(color string, pos Vector, rad float64) Bullet {
	return Bullet{
		Color: color,
		Pos:   pos,
		Vel:   NewVector(BulletSpeed, 0).Rotate(rad),
	}
}

// Move advances the bullet one tick.
func (b *Bullet) Move() {
	b.Pos = b.Pos.Add(b.Vel)
}

// IsAlive reports whether the next step stays on this side of the wrap seam.
// Crossing the seam makes the folded position jump far further than one
// step, so bullets expire at the arena edge instead of wrapping.
func (b *Bullet) IsAlive() bool {
	next := b.Pos.Add(b.Vel)
	return Dist2(b.Pos, next) <= BulletSpeed*BulletSpeed+BulletEpsilon
}

// Hits reports whether the bullet is touching ship s.
func (b *Bullet) Hits(s *Ship) bool {
	return Dist2(b.Pos, s.Pos) < HitRadius*HitRadius
}

// ToState converts to protocol state
func (b *Bullet) ToState() BulletState {
	return BulletState{
		X:     round1(b.Pos.X),
		Y:     round1(b.Pos.Y),
		Color: b.Color,
	}
}
