package scoring

import "sort"

const maxExplainTerms = 20

// TermWeight is one shared term and its weight in an explanation.
type TermWeight struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// Explain lists the terms shared by resume and description, weighted by the
// smaller of their two TF-IDF weights, heaviest first.
func Explain(resume, description string) []TermWeight {
	vecs := vectorizer{
		minDF:       1,
		maxDFRatio:  1,
		maxFeatures: DefaultMaxFeatures,
	}.fitTransform([]string{resume, description})

	r, j := vecs[0], vecs[1]
	out := []TermWeight{}
	for _, term := range r.terms {
		jw, ok := j.weights[term]
		if !ok {
			continue
		}
		w := r.weights[term]
		if jw < w {
			w = jw
		}
		out = append(out, TermWeight{Term: term, Weight: w})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Weight > out[b].Weight })
	if len(out) > maxExplainTerms {
		out = out[:maxExplainTerms]
	}
	return out
}
