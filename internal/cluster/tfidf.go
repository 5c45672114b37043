package cluster

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/IshaanNene/NewsLens/internal/types"
)

// tokenPattern matches runs of two or more word characters.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Tokenize lowercases text and splits it into terms, dropping English stop
// words.
func Tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, tok := range raw {
		if _, stop := englishStopWords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Vectorizer turns documents into L2-normalized TF-IDF vectors over a
// vocabulary of at most MaxFeatures terms.
type Vectorizer struct {
	MaxFeatures int

	// Vocabulary is sorted alphabetically; column j of the matrix is term j.
	Vocabulary []string
	IDF        []float64
}

// NewVectorizer creates a Vectorizer with the given vocabulary cap.
func NewVectorizer(maxFeatures int) *Vectorizer {
	return &Vectorizer{MaxFeatures: maxFeatures}
}

// FitTransform learns the vocabulary and idf weights from docs and returns
// the documents-by-terms TF-IDF matrix. The result depends only on docs
// and MaxFeatures.
func (v *Vectorizer) FitTransform(docs []string) (*mat.Dense, error) {
	tokens := make([][]string, len(docs))
	corpusFreq := make(map[string]int)
	docFreq := make(map[string]int)
	for i, doc := range docs {
		tokens[i] = Tokenize(doc)
		seen := make(map[string]bool, len(tokens[i]))
		for _, tok := range tokens[i] {
			corpusFreq[tok]++
			if !seen[tok] {
				seen[tok] = true
				docFreq[tok]++
			}
		}
	}
	if len(corpusFreq) == 0 {
		return nil, types.ErrEmptyVocabulary
	}

	v.Vocabulary = selectVocabulary(corpusFreq, v.MaxFeatures)
	index := make(map[string]int, len(v.Vocabulary))
	for j, term := range v.Vocabulary {
		index[term] = j
	}

	n := float64(len(docs))
	v.IDF = make([]float64, len(v.Vocabulary))
	for j, term := range v.Vocabulary {
		v.IDF[j] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}

	x := mat.NewDense(len(docs), len(v.Vocabulary), nil)
	for i, toks := range tokens {
		row := x.RawRowView(i)
		for _, tok := range toks {
			if j, ok := index[tok]; ok {
				row[j]++
			}
		}
		floats.Mul(row, v.IDF)
		if norm := floats.Norm(row, 2); norm > 0 {
			floats.Scale(1/norm, row)
		}
	}
	return x, nil
}

// selectVocabulary keeps the max most frequent terms across the corpus,
// breaking ties alphabetically, and returns them in alphabetical order.
func selectVocabulary(freq map[string]int, max int) []string {
	terms := make([]string, 0, len(freq))
	for term := range freq {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	if max > 0 && len(terms) > max {
		sort.SliceStable(terms, func(a, b int) bool {
			return freq[terms[a]] > freq[terms[b]]
		})
		terms = terms[:max]
		sort.Strings(terms)
	}
	return terms
}
