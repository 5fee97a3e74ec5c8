package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned when a projective transform cannot be solved
// from the given correspondences (coincident or collinear corners).
var ErrSingular = errors.New("singular projective system")

// Homography is a 3x3 projective transform stored row-major.
//
//	[h0 h1 h2]
//	[h3 h4 h5]
//	[h6 h7 h8]
type Homography [9]float64

// IdentityHomography returns the identity projective transform.
func IdentityHomography() Homography {
	return Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// QuadToQuad computes the homography mapping each corner of src onto the
// corresponding corner of dst. h8 is fixed to 1 and the remaining eight
// unknowns come from the linear system
//
//	x' = (h0 x + h1 y + h2) / (h6 x + h7 y + 1)
//	y' = (h3 x + h4 y + h5) / (h6 x + h7 y + 1)
func QuadToQuad(src, dst Quad) (Homography, error) {
	A := mat.NewDense(8, 8, nil)
	B := mat.NewVecDense(8, nil)

	for i := 0; i < 4; i++ {
		x, y := src[i].X, src[i].Y
		xp, yp := dst[i].X, dst[i].Y

		A.Set(i*2, 0, x)
		A.Set(i*2, 1, y)
		A.Set(i*2, 2, 1)
		A.Set(i*2, 6, -x*xp)
		A.Set(i*2, 7, -y*xp)
		B.SetVec(i*2, xp)

		A.Set(i*2+1, 3, x)
		A.Set(i*2+1, 4, y)
		A.Set(i*2+1, 5, 1)
		A.Set(i*2+1, 6, -x*yp)
		A.Set(i*2+1, 7, -y*yp)
		B.SetVec(i*2+1, yp)
	}

	var params mat.VecDense
	if err := params.SolveVec(A, B); err != nil {
		// An ill-conditioned but solvable system still yields usable
		// parameters; only an infinite condition number means singular.
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return Homography{}, fmt.Errorf("%w: %v", ErrSingular, err)
		}
	}

	var h Homography
	for i := 0; i < 8; i++ {
		v := params.AtVec(i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Homography{}, ErrSingular
		}
		h[i] = v
	}
	h[8] = 1

	// A collapsed destination still solves, but to a rank-deficient matrix.
	maxAbs := 0.0
	for _, v := range h {
		maxAbs = math.Max(maxAbs, math.Abs(v))
	}
	if math.Abs(h.Det()) <= 1e-12*maxAbs*maxAbs*maxAbs {
		return Homography{}, ErrSingular
	}
	return h, nil
}

// Det returns the determinant of the 3x3 matrix.
func (h Homography) Det() float64 {
	return h[0]*(h[4]*h[8]-h[5]*h[7]) -
		h[1]*(h[3]*h[8]-h[5]*h[6]) +
		h[2]*(h[3]*h[7]-h[4]*h[6])
}

// Apply maps a point through the homography. ok is false when the point
// lands on the line at infinity.
func (h Homography) Apply(p Point2D) (Point2D, bool) {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if math.Abs(w) < 1e-12 {
		return Point2D{}, false
	}
	return Point2D{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}, true
}

// Adjugate returns the transpose of the cofactor matrix. Homographies are
// defined up to scale, so the adjugate acts as the inverse without dividing
// by the determinant.
func (h Homography) Adjugate() Homography {
	return Homography{
		h[4]*h[8] - h[5]*h[7],
		h[2]*h[7] - h[1]*h[8],
		h[1]*h[5] - h[2]*h[4],

		h[5]*h[6] - h[3]*h[8],
		h[0]*h[8] - h[2]*h[6],
		h[2]*h[3] - h[0]*h[5],

		h[3]*h[7] - h[4]*h[6],
		h[1]*h[6] - h[0]*h[7],
		h[0]*h[4] - h[1]*h[3],
	}
}

// Inverse returns the inverse homography normalised so that h8 is 1 where
// possible. ok is false if the transform is singular.
func (h Homography) Inverse() (Homography, bool) {
	det := h.Det()
	if math.Abs(det) < 1e-15 {
		return Homography{}, false
	}
	adj := h.Adjugate()
	scale := 1 / det
	if math.Abs(adj[8]) > 1e-15 {
		scale = 1 / adj[8]
	}
	for i := range adj {
		adj[i] *= scale
	}
	return adj, true
}

// Matrix returns the homography as a 3x3 array.
func (h Homography) Matrix() [3][3]float64 {
	return [3][3]float64{
		{h[0], h[1], h[2]},
		{h[3], h[4], h[5]},
		{h[6], h[7], h[8]},
	}
}
