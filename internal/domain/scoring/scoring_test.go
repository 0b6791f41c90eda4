package scoring_test

import (
	"testing"

	scoring "github.com/enmusubi/enmusubi/internal/domain/scoring"
	text "github.com/enmusubi/enmusubi/internal/domain/text"
	. "github.com/smartystreets/goconvey/convey"
)

func vectorize(s string) text.Vector {
	v := text.NewVectorizer(text.WithSegmenter(text.NewShingleSegmenter(2, 3)))
	return v.Vectorize(s)
}

func TestNewSnapshot(t *testing.T) {
	Convey("Given an empty candidate pool", t, func() {
		Convey("Then snapshot construction should fail with ErrEmptyCorpus", func() {
			snapshot, err := scoring.NewSnapshot(nil)
			So(err, ShouldEqual, scoring.ErrEmptyCorpus)
			So(snapshot, ShouldBeNil)
		})
	})

	Convey("Given a pool of documents", t, func() {
		docs := []scoring.Document{
			{ID: "res-b", Vec: vectorize("機械学習と時系列予測")},
			{ID: "res-a", Vec: vectorize("分散システムの設計")},
		}
		snapshot, err := scoring.NewSnapshot(docs)

		Convey("Then the snapshot should cover every document", func() {
			So(err, ShouldBeNil)
			So(snapshot.Size(), ShouldEqual, 2)
		})
	})
}

func TestSimilarity(t *testing.T) {
	Convey("Given a snapshot over responder documents", t, func() {
		docs := []scoring.Document{
			{ID: "res-ml", Vec: vectorize("機械学習モデルの運用と時系列予測")},
			{ID: "res-go", Vec: vectorize("Goによる分散システムと負荷試験")},
			{ID: "res-empty", Vec: vectorize("")},
		}
		snapshot, err := scoring.NewSnapshot(docs)
		So(err, ShouldBeNil)

		Convey("When the query matches a document exactly", func() {
			sim := snapshot.Similarity(vectorize("機械学習モデルの運用と時系列予測"), "res-ml")

			Convey("Then similarity should be 1", func() {
				So(sim, ShouldAlmostEqual, 1, 1e-9)
			})
		})

		Convey("When the query shares vocabulary with a document", func() {
			simNear := snapshot.Similarity(vectorize("機械学習の相談"), "res-ml")
			simFar := snapshot.Similarity(vectorize("機械学習の相談"), "res-go")

			Convey("Then the overlapping document should score higher", func() {
				So(simNear, ShouldBeGreaterThan, simFar)
			})

			Convey("And scores should stay within [0,1]", func() {
				So(simNear, ShouldBeBetweenOrEqual, 0, 1)
				So(simFar, ShouldBeBetweenOrEqual, 0, 1)
			})
		})

		Convey("When the query is empty", func() {
			Convey("Then similarity should be 0, not an error", func() {
				So(snapshot.Similarity(vectorize(""), "res-ml"), ShouldEqual, 0)
			})
		})

		Convey("When the document is empty", func() {
			Convey("Then similarity should be 0", func() {
				So(snapshot.Similarity(vectorize("機械学習"), "res-empty"), ShouldEqual, 0)
			})
		})

		Convey("When the responder id is unknown", func() {
			Convey("Then similarity should be 0", func() {
				So(snapshot.Similarity(vectorize("機械学習"), "res-missing"), ShouldEqual, 0)
			})
		})

		Convey("When the same scoring runs repeatedly over the same snapshot", func() {
			query := vectorize("Goのマイクロサービスと負荷試験の設計")
			first := snapshot.Similarity(query, "res-go")

			Convey("Then every run should be bit-identical", func() {
				for i := 0; i < 50; i++ {
					So(snapshot.Similarity(query, "res-go"), ShouldEqual, first)
				}
			})
		})
	})

	Convey("Given two snapshots built from the same pool in different input order", t, func() {
		a := []scoring.Document{
			{ID: "res-1", Vec: vectorize("機械学習の案件")},
			{ID: "res-2", Vec: vectorize("フロントエンドの設計")},
			{ID: "res-3", Vec: vectorize("機械学習とデータ基盤")},
		}
		b := []scoring.Document{a[2], a[0], a[1]}

		snapA, err := scoring.NewSnapshot(a)
		So(err, ShouldBeNil)
		snapB, err := scoring.NewSnapshot(b)
		So(err, ShouldBeNil)

		Convey("Then scoring should not depend on input order", func() {
			query := vectorize("機械学習を始めたい")
			for _, id := range []string{"res-1", "res-2", "res-3"} {
				So(snapA.Similarity(query, id), ShouldEqual, snapB.Similarity(query, id))
			}
		})
	})
}
