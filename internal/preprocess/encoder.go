package preprocess

import "sort"

// LabelEncoder maps string categories onto stable integer codes. Categories
// unseen at fit time share a reserved trailing code.
type LabelEncoder struct {
	Classes map[string]int
}

// NewLabelEncoder returns an unfitted encoder.
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{Classes: map[string]int{}}
}

// Fit assigns codes in lexical order for reproducibility.
func (e *LabelEncoder) Fit(values []string) {
	seen := map[string]struct{}{}
	for _, v := range values {
		seen[v] = struct{}{}
	}
	ordered := make([]string, 0, len(seen))
	for v := range seen {
		ordered = append(ordered, v)
	}
	sort.Strings(ordered)

	e.Classes = make(map[string]int, len(ordered))
	for i, v := range ordered {
		e.Classes[v] = i
	}
}

// UnknownCode is the code shared by categories unseen at fit time.
func (e *LabelEncoder) UnknownCode() int { return len(e.Classes) }

// Transform encodes values, mapping unseen categories to UnknownCode.
func (e *LabelEncoder) Transform(values []string) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if code, ok := e.Classes[v]; ok {
			out[i] = float64(code)
		} else {
			out[i] = float64(e.UnknownCode())
		}
	}
	return out
}

// FitTransform fits then encodes in one step.
func (e *LabelEncoder) FitTransform(values []string) []float64 {
	e.Fit(values)
	return e.Transform(values)
}
