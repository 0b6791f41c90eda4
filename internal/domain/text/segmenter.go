// Package text turns free-text profile fields into sparse term vectors.
//
// Content is mostly Japanese and not whitespace-delimited, so terms come
// from morphological segmentation. When the dictionary cannot be loaded the
// package falls back to fixed-length character shingles, which keeps the
// vector space convention identical: a sparse term -> frequency map.
package text

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// Segmenter splits normalized text into terms.
type Segmenter interface {
	Segment(s string) []string
}

// MorphologicalSegmenter segments with the IPA dictionary.
type MorphologicalSegmenter struct {
	t *tokenizer.Tokenizer
}

// NewMorphologicalSegmenter builds a dictionary-backed segmenter.
func NewMorphologicalSegmenter() (*MorphologicalSegmenter, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, fmt.Errorf("init tokenizer: %w", err)
	}
	return &MorphologicalSegmenter{t: t}, nil
}

// Segment returns surface forms, dropping whitespace-only tokens.
func (m *MorphologicalSegmenter) Segment(s string) []string {
	var out []string
	for _, surface := range m.t.Wakati(s) {
		surface = strings.TrimSpace(surface)
		if surface == "" {
			continue
		}
		out = append(out, strings.ToLower(surface))
	}
	return out
}

// ShingleSegmenter is the deterministic fallback: rune windows of length
// minN..maxN over the text with whitespace squeezed out.
type ShingleSegmenter struct {
	minN int
	maxN int
}

// NewShingleSegmenter builds a shingle segmenter. Sizes outside 1..maxN are
// clamped to the defaults (2..3, mirroring character bigrams and trigrams).
func NewShingleSegmenter(minN, maxN int) *ShingleSegmenter {
	if minN < 1 || maxN < minN {
		minN, maxN = 2, 3
	}
	return &ShingleSegmenter{minN: minN, maxN: maxN}
}

// Segment emits every rune window of each configured length, in order.
func (g *ShingleSegmenter) Segment(s string) []string {
	var compact []rune
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) {
			continue
		}
		compact = append(compact, r)
	}
	var out []string
	for n := g.minN; n <= g.maxN; n++ {
		if len(compact) < n {
			// Keep very short documents representable.
			if n == g.minN && len(compact) > 0 {
				out = append(out, string(compact))
			}
			continue
		}
		for i := 0; i+n <= len(compact); i++ {
			out = append(out, string(compact[i:i+n]))
		}
	}
	return out
}
