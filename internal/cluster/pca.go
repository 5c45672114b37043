package cluster

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Project2D projects the rows of x onto their first two principal
// components. Each returned column has its largest-magnitude entry positive
// so the layout is stable from run to run. When there are fewer than two
// components, the missing coordinates are zero.
func Project2D(x *mat.Dense) (*mat.Dense, error) {
	n, d := x.Dims()
	out := mat.NewDense(n, 2, nil)
	if n < 2 {
		return out, nil
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return nil, errors.New("principal component analysis did not converge")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	_, ncomp := vecs.Dims()
	if ncomp > 2 {
		ncomp = 2
	}

	centered := mat.DenseCopyOf(x)
	means := make([]float64, d)
	col := make([]float64, n)
	for j := range d {
		mat.Col(col, j, x)
		means[j] = stat.Mean(col, nil)
	}
	for i := range n {
		row := centered.RawRowView(i)
		for j := range d {
			row[j] -= means[j]
		}
	}

	var proj mat.Dense
	proj.Mul(centered, vecs.Slice(0, d, 0, ncomp))
	for c := range ncomp {
		mat.Col(col, c, &proj)
		flip := largestIsNegative(col)
		for i := range n {
			v := col[i]
			if flip {
				v = -v
			}
			out.Set(i, c, v)
		}
	}
	return out, nil
}

func largestIsNegative(v []float64) bool {
	best := 0.0
	for _, x := range v {
		if math.Abs(x) > math.Abs(best) {
			best = x
		}
	}
	return best < 0
}
