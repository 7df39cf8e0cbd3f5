package classify

import (
	"strconv"
	"strings"

	"github.com/ppiankov/decadal/internal/model"
)

// DefaultDecades returns the five decade ranges in output order.
// Bounds are exclusive on both ends.
func DefaultDecades() []model.DecadeRange {
	return []model.DecadeRange{
		{Name: "seventies", Lower: 1969, Upper: 1980},
		{Name: "eighties", Lower: 1979, Upper: 1990},
		{Name: "nineties", Lower: 1989, Upper: 2000},
		{Name: "aughties", Lower: 1999, Upper: 2010},
		{Name: "teensies", Lower: 2009, Upper: 2020},
	}
}

// Contains reports whether year lies strictly between the range bounds
func Contains(r model.DecadeRange, year int) bool {
	return year > r.Lower && year < r.Upper
}

// Year parses the date_inscribed value of a record
func Year(rec model.Record) (int, error) {
	return strconv.Atoi(strings.TrimSpace(rec[model.FieldDateInscribed]))
}

// Classify derives one bucket per default decade range
func Classify(ds *model.Dataset) ([]model.Bucket, error) {
	return ClassifyRanges(ds, DefaultDecades())
}

// ClassifyRanges tests every record against every range independently and
// returns one bucket per range, in range order. Records keep their dataset
// order within a bucket. A record whose year falls in no range appears in no
// bucket.
func ClassifyRanges(ds *model.Dataset, ranges []model.DecadeRange) ([]model.Bucket, error) {
	buckets := make([]model.Bucket, len(ranges))
	for i, r := range ranges {
		buckets[i] = model.Bucket{Range: r, Records: []model.Record{}}
	}
	if ds == nil {
		return buckets, nil
	}

	for i, rec := range ds.Records {
		year, err := Year(rec)
		if err != nil {
			return nil, &model.ValueError{
				Row:   i + 1,
				ID:    rec.ID(),
				Field: model.FieldDateInscribed,
				Value: rec[model.FieldDateInscribed],
				Err:   err,
			}
		}

		for j := range buckets {
			if Contains(buckets[j].Range, year) {
				buckets[j].Records = append(buckets[j].Records, rec)
			}
		}
	}

	return buckets, nil
}

// Unbucketed counts dataset records that landed in no bucket
func Unbucketed(ds *model.Dataset, buckets []model.Bucket) int {
	placed := 0
	for _, b := range buckets {
		placed += len(b.Records)
	}
	return ds.Len() - placed
}
