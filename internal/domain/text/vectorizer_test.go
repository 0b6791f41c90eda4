package text_test

import (
	"testing"

	text "github.com/enmusubi/enmusubi/internal/domain/text"
	. "github.com/smartystreets/goconvey/convey"
)

func TestShingleSegmenter(t *testing.T) {
	Convey("Given a shingle segmenter with window 2..3", t, func() {
		seg := text.NewShingleSegmenter(2, 3)

		Convey("When segmenting plain text", func() {
			terms := seg.Segment("abcd")

			Convey("Then it should emit every bigram and trigram in order", func() {
				So(terms, ShouldResemble, []string{"ab", "bc", "cd", "abc", "bcd"})
			})
		})

		Convey("When segmenting text with whitespace", func() {
			terms := seg.Segment("a b\tc")

			Convey("Then whitespace should be squeezed out before windowing", func() {
				So(terms, ShouldResemble, []string{"ab", "bc", "abc"})
			})
		})

		Convey("When the text is shorter than the smallest window", func() {
			terms := seg.Segment("x")

			Convey("Then the whole text should still be representable", func() {
				So(terms, ShouldResemble, []string{"x"})
			})
		})

		Convey("When segmenting Japanese text", func() {
			terms := seg.Segment("機械学習")

			Convey("Then windows should be rune-based, not byte-based", func() {
				So(terms, ShouldContain, "機械")
				So(terms, ShouldContain, "械学")
				So(terms, ShouldContain, "機械学")
			})
		})

		Convey("When segmenting uppercase text", func() {
			terms := seg.Segment("AB")

			Convey("Then terms should be lowercased", func() {
				So(terms, ShouldResemble, []string{"ab"})
			})
		})
	})

	Convey("Given invalid window sizes", t, func() {
		seg := text.NewShingleSegmenter(0, -1)

		Convey("Then the segmenter should fall back to the 2..3 defaults", func() {
			So(seg.Segment("abc"), ShouldResemble, []string{"ab", "bc", "abc"})
		})
	})
}

func TestMorphologicalSegmenter(t *testing.T) {
	Convey("Given a dictionary-backed segmenter", t, func() {
		seg, err := text.NewMorphologicalSegmenter()
		So(err, ShouldBeNil)

		Convey("When segmenting Japanese text", func() {
			terms := seg.Segment("機械学習を学ぶ")

			Convey("Then it should produce word-level terms", func() {
				So(len(terms), ShouldBeGreaterThan, 1)
				for _, term := range terms {
					So(term, ShouldNotBeEmpty)
				}
			})
		})

		Convey("When segmenting empty text", func() {
			Convey("Then no terms should be produced", func() {
				So(seg.Segment(""), ShouldBeEmpty)
			})
		})
	})
}

func TestVectorizer(t *testing.T) {
	Convey("Given a vectorizer over character shingles", t, func() {
		v := text.NewVectorizer(text.WithSegmenter(text.NewShingleSegmenter(2, 2)))

		Convey("When vectorizing text", func() {
			vec := v.Vectorize("abab")

			Convey("Then term frequencies should be counted", func() {
				So(vec["ab"], ShouldEqual, 2)
				So(vec["ba"], ShouldEqual, 1)
			})
		})

		Convey("When vectorizing empty or blank text", func() {
			Convey("Then the vector should be empty", func() {
				So(v.Vectorize(""), ShouldBeEmpty)
				So(v.Vectorize("   \t  "), ShouldBeEmpty)
			})
		})

		Convey("When vectorizing the same text twice", func() {
			a := v.Vectorize("機械学習の話")
			b := v.Vectorize("機械学習の話")

			Convey("Then the output should be identical", func() {
				So(a, ShouldResemble, b)
			})
		})
	})

	Convey("Given the default vectorizer", t, func() {
		v := text.NewVectorizer()

		Convey("When vectorizing mixed-language text", func() {
			vec := v.Vectorize("Goで機械学習")

			Convey("Then the vector should be non-empty", func() {
				So(len(vec), ShouldBeGreaterThan, 0)
			})
		})
	})
}
