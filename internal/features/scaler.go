package features

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// constantStd is the std below which a column is treated as constant.
const constantStd = 10 * 2.220446049250313e-16 // 10 * float64 machine epsilon

// Scaling holds the per-column statistics used by Standardize.
type Scaling struct {
	Mean []float64
	Std  []float64
}

// Standardize rescales every column to zero mean and unit population variance.
// Zero-variance columns become all zeros. Non-finite inputs are not filtered here;
// they surface as NaN and the cluster engine rejects them.
func Standardize(x *mat.Dense) (*mat.Dense, Scaling) {
	if x == nil || x.IsEmpty() {
		return x, Scaling{}
	}
	r, c := x.Dims()
	s := Scaling{Mean: make([]float64, c), Std: make([]float64, c)}
	out := mat.NewDense(r, c, nil)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		mean, std := stat.PopMeanStdDev(col, nil)
		s.Mean[j], s.Std[j] = mean, std
		for i, v := range col {
			if std < constantStd {
				out.Set(i, j, 0)
				continue
			}
			out.Set(i, j, (v-mean)/std)
		}
	}
	return out, s
}
