// Package scoring computes normalized text similarity between a requester
// and each candidate responder.
//
// IDF weights are computed over an immutable snapshot of the responder
// corpus taken per ranking call; nothing here is shared mutable state.
// Results are bit-reproducible for a given snapshot: documents are ordered
// by responder id ascending and every summation iterates terms in sorted
// order.
package scoring

import (
	"math"
	"sort"

	"github.com/enmusubi/enmusubi/internal/domain/text"
)

// Document pairs a responder id with its term-frequency vector.
type Document struct {
	ID  string
	Vec text.Vector
}

type weightedDoc struct {
	weights map[string]float64
	norm    float64
}

// Snapshot holds TF-IDF weighted responder vectors for one ranking call.
type Snapshot struct {
	n    int
	idf  map[string]float64
	docs map[string]weightedDoc
}

// NewSnapshot builds the IDF table and weighted vectors over docs.
// Fails with ErrEmptyCorpus when the candidate pool is empty.
func NewSnapshot(docs []Document) (*Snapshot, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyCorpus
	}

	ordered := make([]Document, len(docs))
	copy(ordered, docs)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	df := make(map[string]int)
	for _, d := range ordered {
		for term := range d.Vec {
			df[term]++
		}
	}

	s := &Snapshot{
		n:    len(ordered),
		idf:  make(map[string]float64, len(df)),
		docs: make(map[string]weightedDoc, len(ordered)),
	}
	for term, n := range df {
		s.idf[term] = s.idfFor(n)
	}
	for _, d := range ordered {
		s.docs[d.ID] = s.weigh(d.Vec)
	}
	return s, nil
}

// idfFor uses smoothed inverse document frequency so corpus-wide terms
// still carry a small positive weight.
func (s *Snapshot) idfFor(docFreq int) float64 {
	return math.Log(float64(1+s.n)/float64(1+docFreq)) + 1
}

func (s *Snapshot) weigh(vec text.Vector) weightedDoc {
	terms := vec.Terms()
	sort.Strings(terms)

	w := make(map[string]float64, len(terms))
	var norm float64
	for _, term := range terms {
		idf, ok := s.idf[term]
		if !ok {
			idf = s.idfFor(0)
		}
		x := vec[term] * idf
		w[term] = x
		norm += x * x
	}
	return weightedDoc{weights: w, norm: math.Sqrt(norm)}
}

// Similarity returns the TF-IDF cosine between the requester vector and the
// responder's snapshot vector, clamped to [0,1]. Empty text on either side
// yields 0, not an error. Unknown responder ids yield 0.
func (s *Snapshot) Similarity(query text.Vector, responderID string) float64 {
	doc, ok := s.docs[responderID]
	if !ok {
		return 0
	}
	q := s.weigh(query)
	if q.norm == 0 || doc.norm == 0 {
		return 0
	}

	terms := make([]string, 0, len(q.weights))
	for term := range q.weights {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	var dot float64
	for _, term := range terms {
		if dw, ok := doc.weights[term]; ok {
			dot += q.weights[term] * dw
		}
	}

	sim := dot / (q.norm * doc.norm)
	return math.Min(1, math.Max(0, sim))
}

// Size returns the number of documents in the snapshot.
func (s *Snapshot) Size() int {
	return s.n
}
