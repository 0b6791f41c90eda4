package text

import "strings"

// Vector is a sparse term -> term-frequency map.
type Vector map[string]float64

// Terms returns the vector's term set.
func (v Vector) Terms() []string {
	out := make([]string, 0, len(v))
	for t := range v {
		out = append(out, t)
	}
	return out
}

// Option applies a configuration option to the Vectorizer.
type Option func(*Vectorizer)

// WithSegmenter overrides the segmenter, disabling the automatic
// dictionary-or-shingles selection.
func WithSegmenter(seg Segmenter) Option {
	return func(v *Vectorizer) {
		if seg != nil {
			v.seg = seg
			_, v.wordBigrams = seg.(*MorphologicalSegmenter)
		}
	}
}

// Vectorizer is a pure function of input text: no corpus state, no side
// effects. Word-mode output adds adjacent bigrams on top of unigrams;
// shingle mode already encodes adjacency in the terms themselves.
type Vectorizer struct {
	seg         Segmenter
	wordBigrams bool
}

// NewVectorizer builds a vectorizer, preferring morphological segmentation
// and falling back to character shingles when the dictionary is unusable.
func NewVectorizer(opts ...Option) *Vectorizer {
	v := &Vectorizer{}
	for _, opt := range opts {
		opt(v)
	}
	if v.seg == nil {
		if seg, err := NewMorphologicalSegmenter(); err == nil {
			v.seg = seg
			v.wordBigrams = true
		} else {
			v.seg = NewShingleSegmenter(2, 3)
		}
	}
	return v
}

// Vectorize produces the sparse term-frequency vector for text.
func (v *Vectorizer) Vectorize(text string) Vector {
	// Squeeze runs of whitespace so field concatenation seams vanish.
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return Vector{}
	}

	terms := v.seg.Segment(text)
	vec := make(Vector, len(terms))
	for _, t := range terms {
		vec[t]++
	}
	if v.wordBigrams {
		for i := 0; i+1 < len(terms); i++ {
			vec[terms[i]+" "+terms[i+1]]++
		}
	}
	return vec
}
