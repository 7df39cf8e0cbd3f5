package model

// Field names of the World Heritage Sites export
const (
	FieldUniqueNumber  = "unique_number"
	FieldIDNo          = "id_no"
	FieldNameEN        = "name_en"
	FieldDateInscribed = "date_inscribed"
	FieldCategory      = "category"
)

// Record is one site's attribute set, keyed by column name.
// All values are kept verbatim as strings.
type Record map[string]string

// ID returns a human-readable identifier for diagnostics
func (r Record) ID() string {
	if id := r[FieldIDNo]; id != "" {
		return id
	}
	return r[FieldUniqueNumber]
}

// Dataset is the complete ordered collection of records from one input
type Dataset struct {
	Source  string   // Path or URL the rows were read from
	Fields  []string // Distinct header names in first-appearance order
	Records []Record // Rows in input order

	// DuplicateFields lists header names that appeared more than once.
	// Each collapses to a single key holding the right-most column's value.
	DuplicateFields []string
}

// Len returns the number of records
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// DecadeRange is an exclusive-bound integer interval tested against date_inscribed
type DecadeRange struct {
	Name  string `json:"name" yaml:"name"`
	Lower int    `json:"lower" yaml:"lower"` // exclusive
	Upper int    `json:"upper" yaml:"upper"` // exclusive
}

// First returns the first year inside the range
func (r DecadeRange) First() int { return r.Lower + 1 }

// Last returns the last year inside the range
func (r DecadeRange) Last() int { return r.Upper - 1 }

// Bucket is a decade-scoped subsequence of a Dataset.
// Buckets are derived once and never mutated.
type Bucket struct {
	Range   DecadeRange
	Records []Record
}

// Name returns the bucket name, which is also the artifact base name
func (b Bucket) Name() string { return b.Range.Name }
