package landmark

// Hand pose fixtures for tests: hand-built normalized landmark layouts
// representing recognizable poses.

// OpenPalm returns an Observation with all four non-thumb fingers extended.
func OpenPalm() Observation {
	o := Observation{Handedness: Right, Score: 0.95}
	o.Points[Wrist] = Point{X: 0.5, Y: 0.8, Z: 0.0}

	o.Points[ThumbCMC] = Point{X: 0.55, Y: 0.75, Z: 0.02}
	o.Points[ThumbMCP] = Point{X: 0.62, Y: 0.70, Z: 0.03}
	o.Points[ThumbIP] = Point{X: 0.68, Y: 0.65, Z: 0.03}
	o.Points[ThumbTip] = Point{X: 0.73, Y: 0.60, Z: 0.03}

	o.Points[IndexMCP] = Point{X: 0.55, Y: 0.68, Z: 0.0}
	o.Points[IndexPIP] = Point{X: 0.57, Y: 0.55, Z: 0.0}
	o.Points[IndexDIP] = Point{X: 0.58, Y: 0.45, Z: 0.0}
	o.Points[IndexTip] = Point{X: 0.58, Y: 0.35, Z: 0.0}

	o.Points[MiddleMCP] = Point{X: 0.50, Y: 0.66, Z: 0.0}
	o.Points[MiddlePIP] = Point{X: 0.50, Y: 0.52, Z: 0.0}
	o.Points[MiddleDIP] = Point{X: 0.50, Y: 0.40, Z: 0.0}
	o.Points[MiddleTip] = Point{X: 0.50, Y: 0.28, Z: 0.0}

	o.Points[RingMCP] = Point{X: 0.45, Y: 0.68, Z: 0.0}
	o.Points[RingPIP] = Point{X: 0.43, Y: 0.55, Z: 0.0}
	o.Points[RingDIP] = Point{X: 0.42, Y: 0.45, Z: 0.0}
	o.Points[RingTip] = Point{X: 0.42, Y: 0.35, Z: 0.0}

	o.Points[PinkyMCP] = Point{X: 0.40, Y: 0.70, Z: 0.0}
	o.Points[PinkyPIP] = Point{X: 0.37, Y: 0.60, Z: 0.0}
	o.Points[PinkyDIP] = Point{X: 0.35, Y: 0.50, Z: 0.0}
	o.Points[PinkyTip] = Point{X: 0.34, Y: 0.42, Z: 0.0}

	return o
}

// ClosedFist returns an Observation with every fingertip curled near the
// palm center.
func ClosedFist() Observation {
	o := Observation{Handedness: Right, Score: 0.95}
	o.Points[Wrist] = Point{X: 0.5, Y: 0.8, Z: 0.0}

	o.Points[ThumbCMC] = Point{X: 0.55, Y: 0.75, Z: 0.0}
	o.Points[ThumbMCP] = Point{X: 0.58, Y: 0.72, Z: 0.0}
	o.Points[ThumbIP] = Point{X: 0.57, Y: 0.70, Z: 0.0}
	o.Points[ThumbTip] = Point{X: 0.56, Y: 0.71, Z: 0.0}

	o.Points[IndexMCP] = Point{X: 0.55, Y: 0.70, Z: -0.02}
	o.Points[IndexPIP] = Point{X: 0.55, Y: 0.68, Z: -0.05}
	o.Points[IndexDIP] = Point{X: 0.52, Y: 0.70, Z: -0.04}
	o.Points[IndexTip] = Point{X: 0.50, Y: 0.72, Z: -0.02}

	o.Points[MiddleMCP] = Point{X: 0.50, Y: 0.68, Z: -0.02}
	o.Points[MiddlePIP] = Point{X: 0.50, Y: 0.66, Z: -0.05}
	o.Points[MiddleDIP] = Point{X: 0.47, Y: 0.68, Z: -0.04}
	o.Points[MiddleTip] = Point{X: 0.45, Y: 0.70, Z: -0.02}

	o.Points[RingMCP] = Point{X: 0.45, Y: 0.70, Z: -0.02}
	o.Points[RingPIP] = Point{X: 0.45, Y: 0.68, Z: -0.05}
	o.Points[RingDIP] = Point{X: 0.42, Y: 0.70, Z: -0.04}
	o.Points[RingTip] = Point{X: 0.40, Y: 0.72, Z: -0.02}

	o.Points[PinkyMCP] = Point{X: 0.40, Y: 0.72, Z: -0.02}
	o.Points[PinkyPIP] = Point{X: 0.40, Y: 0.70, Z: -0.05}
	o.Points[PinkyDIP] = Point{X: 0.37, Y: 0.72, Z: -0.04}
	o.Points[PinkyTip] = Point{X: 0.35, Y: 0.74, Z: -0.02}

	return o
}

// Pinch returns an Observation with the thumb tip and index tip placed
// `distance` apart (in normalized XY), held out in front of the palm.
// When the thumb and index are apart the pose reads as neither an open
// palm (only two fingers extended) nor a closed fist (every tip is well
// clear of the palm center), so tests see exactly the pinch transitions.
func Pinch(distance float64) Observation {
	o := Observation{Handedness: Right, Score: 0.95}
	o.Points[Wrist] = Point{X: 0.50, Y: 0.80, Z: 0.0}

	o.Points[ThumbCMC] = Point{X: 0.55, Y: 0.75, Z: 0.0}
	o.Points[ThumbMCP] = Point{X: 0.58, Y: 0.68, Z: 0.0}
	o.Points[ThumbIP] = Point{X: 0.55, Y: 0.60, Z: 0.0}
	o.Points[ThumbTip] = Point{X: 0.50, Y: 0.50, Z: 0.0}

	o.Points[IndexMCP] = Point{X: 0.55, Y: 0.68, Z: 0.0}
	o.Points[IndexPIP] = Point{X: 0.56, Y: 0.58, Z: 0.0}
	o.Points[IndexDIP] = Point{X: 0.57, Y: 0.53, Z: 0.0}
	o.Points[IndexTip] = Point{X: 0.50 + distance, Y: 0.50, Z: 0.0}

	o.Points[MiddleMCP] = Point{X: 0.50, Y: 0.66, Z: 0.0}
	o.Points[MiddlePIP] = Point{X: 0.50, Y: 0.52, Z: 0.0}
	o.Points[MiddleDIP] = Point{X: 0.50, Y: 0.40, Z: 0.0}
	o.Points[MiddleTip] = Point{X: 0.50, Y: 0.28, Z: 0.0}

	o.Points[RingMCP] = Point{X: 0.45, Y: 0.68, Z: 0.0}
	o.Points[RingPIP] = Point{X: 0.43, Y: 0.60, Z: 0.0}
	o.Points[RingDIP] = Point{X: 0.41, Y: 0.57, Z: 0.0}
	o.Points[RingTip] = Point{X: 0.38, Y: 0.60, Z: 0.0}

	o.Points[PinkyMCP] = Point{X: 0.40, Y: 0.70, Z: 0.0}
	o.Points[PinkyPIP] = Point{X: 0.38, Y: 0.62, Z: 0.0}
	o.Points[PinkyDIP] = Point{X: 0.37, Y: 0.60, Z: 0.0}
	o.Points[PinkyTip] = Point{X: 0.35, Y: 0.61, Z: 0.0}

	return o
}

// AtCenter returns a copy of o with every landmark translated so the hand's
// Center() lands on (x, y); used to build swipe/push sequences.
func AtCenter(o Observation, x, y float64) Observation {
	c := o.Center()
	dx, dy := x-c.X, y-c.Y
	out := o
	for i := range out.Points {
		out.Points[i].X += dx
		out.Points[i].Y += dy
	}
	return out
}

// Scaled returns a copy of o with every landmark scaled about the wrist by
// factor, simulating a hand moving closer to (factor>1) or away from
// (factor<1) the camera.
func Scaled(o Observation, factor float64) Observation {
	wrist := o.Points[Wrist]
	out := o
	for i := range out.Points {
		out.Points[i].X = wrist.X + (out.Points[i].X-wrist.X)*factor
		out.Points[i].Y = wrist.Y + (out.Points[i].Y-wrist.Y)*factor
		out.Points[i].Z = wrist.Z + (out.Points[i].Z-wrist.Z)*factor
	}
	return out
}
