package geometry

// IsConvex returns true if the polygon vertices form a strictly convex
// polygon in either winding. Collinear consecutive vertices and
// self-intersecting outlines report false.
func IsConvex(polygon []Point2D) bool {
	if len(polygon) < 3 {
		return false
	}

	n := len(polygon)
	var sign int

	for i := 0; i < n; i++ {
		cross := crossProduct(
			polygon[i],
			polygon[(i+1)%n],
			polygon[(i+2)%n],
		)
		if cross == 0 {
			return false
		}

		currentSign := 1
		if cross < 0 {
			currentSign = -1
		}
		if sign == 0 {
			sign = currentSign
		} else if currentSign != sign {
			return false
		}
	}

	return true
}

// IsConvex reports whether the quad is strictly convex.
func (q Quad) IsConvex() bool {
	return IsConvex(q[:])
}

// crossProduct computes the cross product of vectors OA and OB.
func crossProduct(o, a, b Point2D) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}
