package scoring

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// vectorizer builds L2-normalised TF-IDF vectors over unigrams and bigrams
// with English stopwords removed. Idf is smoothed: ln((1+n)/(1+df)) + 1.
type vectorizer struct {
	minDF       int     // terms in fewer documents are dropped
	maxDFRatio  float64 // terms in more than ratio*n documents are dropped
	sublinearTF bool
	maxFeatures int
}

// vector keeps its terms sorted so sums are accumulated in a fixed order
// and repeated runs are bit-for-bit identical.
type vector struct {
	terms   []string
	weights map[string]float64
}

var wordRe = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

func analyze(doc string) []string {
	words := wordRe.FindAllString(strings.ToLower(doc), -1)
	kept := words[:0]
	for _, w := range words {
		if _, stop := englishStopWords[w]; !stop {
			kept = append(kept, w)
		}
	}
	terms := make([]string, 0, 2*len(kept))
	terms = append(terms, kept...)
	for i := 0; i+1 < len(kept); i++ {
		terms = append(terms, kept[i]+" "+kept[i+1])
	}
	return terms
}

// fitTransform returns one vector per document. Documents with no surviving
// terms get an empty vector.
func (v vectorizer) fitTransform(docs []string) []vector {
	n := len(docs)
	counts := make([]map[string]int, n)
	df := map[string]int{}
	total := map[string]int{}
	for i, doc := range docs {
		tf := map[string]int{}
		for _, term := range analyze(doc) {
			tf[term]++
			total[term]++
		}
		for term := range tf {
			df[term]++
		}
		counts[i] = tf
	}

	maxDocs := v.maxDFRatio * float64(n)
	vocab := make([]string, 0, len(df))
	for term, d := range df {
		if d < v.minDF || float64(d) > maxDocs {
			continue
		}
		vocab = append(vocab, term)
	}
	if v.maxFeatures > 0 && len(vocab) > v.maxFeatures {
		sort.Slice(vocab, func(i, j int) bool {
			if total[vocab[i]] != total[vocab[j]] {
				return total[vocab[i]] > total[vocab[j]]
			}
			return vocab[i] < vocab[j]
		})
		vocab = vocab[:v.maxFeatures]
	}
	sort.Strings(vocab)

	idf := make(map[string]float64, len(vocab))
	for _, term := range vocab {
		idf[term] = math.Log(float64(1+n)/float64(1+df[term])) + 1
	}

	out := make([]vector, n)
	for i, tf := range counts {
		vec := vector{weights: map[string]float64{}}
		var norm float64
		for _, term := range vocab {
			c := tf[term]
			if c == 0 {
				continue
			}
			w := float64(c)
			if v.sublinearTF {
				w = 1 + math.Log(w)
			}
			w *= idf[term]
			vec.terms = append(vec.terms, term)
			vec.weights[term] = w
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for _, term := range vec.terms {
				vec.weights[term] /= norm
			}
		}
		out[i] = vec
	}
	return out
}

func cosine(a, b vector) float64 {
	if len(a.terms) == 0 || len(b.terms) == 0 {
		return 0
	}
	var dot, na, nb float64
	for _, term := range a.terms {
		w := a.weights[term]
		dot += w * b.weights[term]
		na += w * w
	}
	for _, term := range b.terms {
		w := b.weights[term]
		nb += w * w
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if math.IsNaN(sim) {
		return 0
	}
	return sim
}
