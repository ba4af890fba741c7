// Package matchpoints extracts the normalized values records are matched on.
package matchpoints

import (
	"strconv"

	"github.com/CMSgov/xc-harvester/transformation/marc"
)

// Field names a match point by MARC tag and subfields.
type Field string

const (
	LCCN                Field = "010a"
	ISBN                Field = "020a"
	ISSN                Field = "022a"
	OtherStandardID     Field = "024a"
	PublisherNumber     Field = "028a"
	SystemControlNumber Field = "035a"
	UniformTitle        Field = "130a"
	UniformTitle240     Field = "240a"
	Title               Field = "245a"
	Imprint             Field = "260abc"
)

// Fields lists every match point in extraction order.
var Fields = []Field{LCCN, ISBN, ISSN, OtherStandardID, PublisherNumber,
	SystemControlNumber, UniformTitle, UniformTitle240, Title, Imprint}

// Table is the table holding the match point's values.
func (f Field) Table() string {
	return "matchpoints_" + string(f)
}

// Point is one value of a record. Numeric is set for ISBNs made only of
// digits.
type Point struct {
	Field   Field
	Value   string
	Numeric *int64
}

type extractor struct {
	tag       string
	subfields string
	normalize func(string) string
}

var extractors = map[Field]extractor{
	LCCN:                {"010", "a", NormalizeLCCN},
	ISBN:                {"020", "a", NormalizeISBN},
	ISSN:                {"022", "a", NormalizeISSN},
	OtherStandardID:     {"024", "a", Normalize},
	PublisherNumber:     {"028", "a", Normalize},
	SystemControlNumber: {"035", "a", NormalizeSystemControlNumber},
	UniformTitle:        {"130", "a", NormalizeText},
	UniformTitle240:     {"240", "a", NormalizeText},
	Imprint:             {"260", "abc", NormalizeText},
}

// Extract returns the record's match points, each (field, value) once.
func Extract(rec *marc.Record) []Point {
	var (
		out  []Point
		seen = make(map[string]struct{})
	)
	add := func(f Field, v string) {
		if v == "" {
			return
		}
		key := string(f) + "\x00" + v
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}

		p := Point{Field: f, Value: v}
		if f == ISBN {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				p.Numeric = &n
			}
		}
		out = append(out, p)
	}

	for _, f := range Fields {
		if f == Title {
			for _, df := range rec.Fields("245") {
				if v, ok := df.First("a"); ok {
					add(f, NormalizeText(skipNonfiling(v, df.Ind2)))
				}
			}
			continue
		}

		e := extractors[f]
		for _, df := range rec.Fields(e.tag) {
			if len(e.subfields) == 1 {
				for _, v := range df.Values(e.subfields) {
					add(f, e.normalize(v))
				}
				continue
			}
			add(f, e.normalize(df.Join(e.subfields)))
		}
	}
	return out
}

// skipNonfiling drops the leading characters the 245 second indicator marks
// as nonfiling ("The ", "A ").
func skipNonfiling(title, ind2 string) string {
	n, err := strconv.Atoi(ind2)
	if err != nil || n <= 0 || n >= len(title) {
		return title
	}
	return title[n:]
}
