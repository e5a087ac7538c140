package main

import "math"

// Arena geometry. Positions live on a torus slightly larger than the visible
// field so objects can slide fully off one edge before reappearing.
const (
	ArenaWidth  = 600.0
	ArenaHeight = 600.0
	ArenaMargin = 15.0
)

// wrapLimit bounds the subtraction loop; anything further out is reduced with
// math.Mod first.
const wrapLimit = 1e6

// Vector is a 2-D point or velocity folded onto the arena torus.
// Every constructor and operator returns a normalized value.
type Vector struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// NewVector returns (x, y) folded into [-margin, size+margin) on both axes.
func NewVector(x, y float64) Vector {
	return Vector{X: wrap(x, ArenaWidth), Y: wrap(y, ArenaHeight)}
}

func wrap(v, size float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	span := size + 2*ArenaMargin
	if math.Abs(v) > wrapLimit {
		v = math.Mod(v, span)
	}
	for v >= size+ArenaMargin {
		v -= span
	}
	for v < -ArenaMargin {
		v += span
	}
	return v
}

// Add returns v + o.
func (v Vector) Add(o Vector) Vector {
	return NewVector(v.X+o.X, v.Y+o.Y)
}

// Sub returns v - o.
func (v Vector) Sub(o Vector) Vector {
	return NewVector(v.X-o.X, v.Y-o.Y)
}

// Mul scales v by k.
func (v Vector) Mul(k float64) Vector {
	return NewVector(v.X*k, v.Y*k)
}

// Div divides v by k.
func (v Vector) Div(k float64) Vector {
	return NewVector(v.X/k, v.Y/k)
}

// Rotate applies the standard rotation matrix for rad radians.
func (v Vector) Rotate(rad float64) Vector {
	sin, cos := math.Sincos(rad)
	return NewVector(v.X*cos-v.Y*sin, v.X*sin+v.Y*cos)
}

// Dist2 returns the squared straight-line distance between a and b.
// It does not look across the wrap seam.
func Dist2(a, b Vector) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return dx*dx + dy*dy
}

// Dist returns the straight-line distance between a and b.
func Dist(a, b Vector) float64 {
	return math.Sqrt(Dist2(a, b))
}
