package geometry

import "math"

// Route is a straight connection between two rectangles, clipped to their
// edges, with the midpoint used for label placement.
type Route struct {
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	X2    float64 `json:"x2"`
	Y2    float64 `json:"y2"`
	MidX  float64 `json:"midX"`
	MidY  float64 `json:"midY"`
	Angle float64 `json:"angle"`
}

// EdgePoint returns where a ray leaving r's centre at angle (radians) crosses
// r's boundary. The ray exits through the left or right edge when
// |cos a|*h/2 > |sin a|*w/2, otherwise through the top or bottom edge.
//
// The divisor in each branch is the component the branch condition proves
// non-zero, so angles at or near ±π/2 never divide by zero.
func EdgePoint(r Rect, angle float64) Point {
	c := r.Center()
	hw, hh := r.W/2, r.H/2
	if hw <= 0 || hh <= 0 {
		return c
	}
	cos, sin := math.Cos(angle), math.Sin(angle)
	if math.Abs(cos)*hh > math.Abs(sin)*hw {
		return Point{
			X: c.X + math.Copysign(hw, cos),
			Y: c.Y + hw*sin/math.Abs(cos),
		}
	}
	return Point{
		X: c.X + hh*cos/math.Abs(sin),
		Y: c.Y + math.Copysign(hh, sin),
	}
}

// RouteConnection routes a straight line from the edge of from to the edge of
// to. Rectangles sharing a centre produce a zero-length route at that centre.
func RouteConnection(from, to Rect) Route {
	cf, ct := from.Center(), to.Center()
	if cf == ct {
		return Route{X1: cf.X, Y1: cf.Y, X2: ct.X, Y2: ct.Y, MidX: cf.X, MidY: cf.Y}
	}
	angle := math.Atan2(ct.Y-cf.Y, ct.X-cf.X)
	p1 := EdgePoint(from, angle)
	p2 := EdgePoint(to, angle+math.Pi)
	return Route{
		X1:    p1.X,
		Y1:    p1.Y,
		X2:    p2.X,
		Y2:    p2.Y,
		MidX:  (p1.X + p2.X) / 2,
		MidY:  (p1.Y + p2.Y) / 2,
		Angle: angle,
	}
}

// ArrowheadPoints returns a filled triangle for an arrow whose line arrives
// at the tip travelling in direction angle: the two wings sit length behind
// the tip at angle±halfAngle, ordered wing, tip, wing.
func ArrowheadPoints(tipX, tipY, angle, length, halfAngle float64) [3]Point {
	return [3]Point{
		{X: tipX - length*math.Cos(angle-halfAngle), Y: tipY - length*math.Sin(angle-halfAngle)},
		{X: tipX, Y: tipY},
		{X: tipX - length*math.Cos(angle+halfAngle), Y: tipY - length*math.Sin(angle+halfAngle)},
	}
}
