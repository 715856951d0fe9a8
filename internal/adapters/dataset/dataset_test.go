package dataset_test

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/cadenza/internal/adapters/dataset"
	"github.com/okian/cadenza/internal/domain/merge"
	"github.com/okian/cadenza/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func sampleRows() []merge.Row {
	return []merge.Row{
		{
			Identity: model.NewTrackIdentity("Four Tet", "Baby"),
			Source:   "acousticbrainz",
			Features: map[string]merge.Value{
				merge.FeatTempo: {Number: 122, Numeric: true},
				merge.FeatMood:  {Text: "calm"},
			},
		},
		{
			Identity: model.NewTrackIdentity("Radiohead", "Reckoner"),
			Source:   "cyanite",
			Features: map[string]merge.Value{
				merge.FeatTempo:  {Number: 104, Numeric: true},
				merge.FeatEnergy: {Number: 0.62, Numeric: true},
			},
		},
	}
}

func TestWriter_Replace(t *testing.T) {
	Convey("Given a writer targeting a fresh path", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "out", "enriched.csv")
		w := dataset.NewWriter(path)

		Convey("When replacing with merged rows", func() {
			err := w.Replace(ctx, sampleRows())
			So(err, ShouldBeNil)

			f, err := os.Open(path)
			So(err, ShouldBeNil)
			defer f.Close()
			records, err := csv.NewReader(f).ReadAll()
			So(err, ShouldBeNil)

			Convey("Then the header carries each feature with a presence flag", func() {
				header := records[0]
				So(header[0], ShouldEqual, "artist")
				So(header[1], ShouldEqual, "track")
				So(header[2], ShouldEqual, "source")
				So(header, ShouldContain, "tempo")
				So(header, ShouldContain, "has_tempo")
				So(len(header), ShouldEqual, 3+2*len(merge.Vocabulary()))
			})

			Convey("And each row flags present and absent features", func() {
				So(len(records), ShouldEqual, 3)
				row := records[1] // Four Tet
				So(row[0], ShouldEqual, "Four Tet")
				So(row[3], ShouldEqual, "122")   // tempo value
				So(row[4], ShouldEqual, "true")  // has_tempo
				So(row[5], ShouldEqual, "")      // energy absent
				So(row[6], ShouldEqual, "false") // has_energy
			})
		})

		Convey("When replacing twice", func() {
			So(w.Replace(ctx, sampleRows()), ShouldBeNil)
			So(w.Replace(ctx, sampleRows()[:1]), ShouldBeNil)

			Convey("Then the file reflects only the last replace", func() {
				keys, err := dataset.EnrichedKeys(ctx, path)
				So(err, ShouldBeNil)
				So(len(keys), ShouldEqual, 1)
			})
		})
	})
}

func TestRows(t *testing.T) {
	Convey("Given a written dataset", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "enriched.csv")
		So(dataset.NewWriter(path).Replace(ctx, sampleRows()), ShouldBeNil)

		Convey("When reading it back", func() {
			rows, err := dataset.Rows(ctx, path)
			So(err, ShouldBeNil)

			Convey("Then identities, sources, and features survive the round trip", func() {
				So(len(rows), ShouldEqual, 2)
				So(rows[0].Identity, ShouldResemble, model.NewTrackIdentity("Four Tet", "Baby"))
				So(rows[0].Source, ShouldEqual, "acousticbrainz")
				So(rows[0].Features[merge.FeatTempo], ShouldResemble, merge.Value{Number: 122, Numeric: true})
				So(rows[0].Features[merge.FeatMood], ShouldResemble, merge.Value{Text: "calm"})
				So(rows[0].Has(merge.FeatEnergy), ShouldBeFalse)
				So(rows[1].Features[merge.FeatEnergy], ShouldResemble, merge.Value{Number: 0.62, Numeric: true})
			})

			Convey("And rewriting those rows yields the identical file", func() {
				before, rerr := os.ReadFile(path)
				So(rerr, ShouldBeNil)
				So(dataset.NewWriter(path).Replace(ctx, rows), ShouldBeNil)
				after, rerr := os.ReadFile(path)
				So(rerr, ShouldBeNil)
				So(string(after), ShouldEqual, string(before))
			})
		})
	})

	Convey("Given no dataset file", t, func() {
		rows, err := dataset.Rows(context.Background(), filepath.Join(t.TempDir(), "none.csv"))

		Convey("Then there are no rows and no error", func() {
			So(err, ShouldBeNil)
			So(rows, ShouldBeNil)
		})
	})
}

func TestEnrichedKeys(t *testing.T) {
	Convey("Given a written dataset", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "enriched.csv")
		So(dataset.NewWriter(path).Replace(ctx, sampleRows()), ShouldBeNil)

		Convey("Then the keys match the rows' identities", func() {
			keys, err := dataset.EnrichedKeys(ctx, path)
			So(err, ShouldBeNil)
			So(len(keys), ShouldEqual, 2)
			_, ok := keys[model.NewTrackIdentity("radiohead", "RECKONER").Key()]
			So(ok, ShouldBeTrue)
		})
	})

	Convey("Given no dataset file", t, func() {
		keys, err := dataset.EnrichedKeys(context.Background(), filepath.Join(t.TempDir(), "none.csv"))

		Convey("Then the set is empty, not an error", func() {
			So(err, ShouldBeNil)
			So(keys, ShouldBeEmpty)
		})
	})
}
