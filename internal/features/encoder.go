// Package features turns a loaded table into the numeric matrix the cluster engine consumes.
package features

import (
	"errors"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/KaramelBytes/personaloom/internal/dataset"
)

// ErrNoNumericData is returned when no column qualifies for the feature matrix.
var ErrNoNumericData = errors.New("no numeric columns available for clustering")

// EncodeOptions controls which columns enter the matrix.
type EncodeOptions struct {
	// IncludeCategorical appends label-encoded categorical columns after the numeric ones.
	IncludeCategorical bool
}

// Encoded is the feature matrix with its column bookkeeping.
type Encoded struct {
	Matrix  *mat.Dense
	Columns []string
	// Codes maps an encoded categorical column to its category table; code i is Codes[col][i].
	Codes map[string][]string
}

// LabelEncode assigns codes 0..d-1 to the sorted distinct non-missing values.
// Missing rows get 0. The returned slice is the category table.
func LabelEncode(values []string, missing []bool) ([]float64, []string) {
	seen := map[string]struct{}{}
	for i, v := range values {
		if isMissing(missing, i) {
			continue
		}
		seen[v] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Strings(classes)
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	codes := make([]float64, len(values))
	for i, v := range values {
		if isMissing(missing, i) {
			continue
		}
		codes[i] = float64(index[v])
	}
	return codes, classes
}

// Encode builds the N x M matrix: numeric columns in table order with missing cells set to 0,
// then, when requested, the label codes of the categorical columns. Datetime columns never enter.
func Encode(t *dataset.Table, opt EncodeOptions) (*Encoded, error) {
	if t == nil || t.Rows == 0 {
		return nil, ErrNoNumericData
	}
	var cols [][]float64
	enc := &Encoded{Codes: map[string][]string{}}
	for _, j := range t.ColumnsOfKind(dataset.KindNumeric) {
		c := t.Columns[j]
		v := make([]float64, t.Rows)
		for i := range v {
			if !c.Missing[i] {
				v[i] = c.Numbers[i]
			}
		}
		cols = append(cols, v)
		enc.Columns = append(enc.Columns, c.Name)
	}
	if opt.IncludeCategorical {
		for _, j := range t.ColumnsOfKind(dataset.KindCategorical) {
			c := t.Columns[j]
			codes, classes := LabelEncode(c.Values, c.Missing)
			cols = append(cols, codes)
			enc.Columns = append(enc.Columns, c.Name)
			enc.Codes[c.Name] = classes
		}
	}
	if len(cols) == 0 {
		return nil, ErrNoNumericData
	}
	m := mat.NewDense(t.Rows, len(cols), nil)
	for j, v := range cols {
		m.SetCol(j, v)
	}
	enc.Matrix = m
	return enc, nil
}

func isMissing(missing []bool, i int) bool {
	return i < len(missing) && missing[i]
}
