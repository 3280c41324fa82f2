package transform

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Extrinsics is the rigid transform from one camera's frame into another's: p' = R*p + T.
type Extrinsics struct {
	Rotation    *mat.Dense
	Translation r3.Vector
}

// NewTranslationExtrinsics returns extrinsics with an identity rotation.
func NewTranslationExtrinsics(t r3.Vector) *Extrinsics {
	return &Extrinsics{Rotation: eye(3), Translation: t}
}

// Apply moves a point into the target frame.
func (e *Extrinsics) Apply(p r3.Vector) r3.Vector {
	if e == nil {
		return p
	}
	rot := e.Rotation
	if rot == nil {
		rot = eye(3)
	}
	var out mat.VecDense
	out.MulVec(rot, mat.NewVecDense(3, []float64{p.X, p.Y, p.Z}))
	return r3.Vector{
		X: out.AtVec(0) + e.Translation.X,
		Y: out.AtVec(1) + e.Translation.Y,
		Z: out.AtVec(2) + e.Translation.Z,
	}
}

func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
