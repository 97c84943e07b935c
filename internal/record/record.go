package record

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"time"
)

// Record is a single observation in a dataset: a point in time with string
// dimensions and numeric measures.
type Record struct {
	ID         string             `json:"id,omitempty"`
	Dataset    string             `json:"dataset"`
	Time       time.Time          `json:"time"`
	Seq        int64              `json:"seq,omitempty"`
	Dimensions map[string]string  `json:"dimensions,omitempty"`
	Measures   map[string]float64 `json:"measures"`
}

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// reservedKeys collide with the fixed columns of exported CSV files.
var reservedKeys = map[string]bool{"id": true, "time": true, "seq": true, "dataset": true}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid record")

// ValidName reports whether s can be used as a dataset name or attribute key.
func ValidName(s string) bool {
	return namePattern.MatchString(s)
}

// Validate checks the structural rules a record must satisfy before it is
// hashed and stored.
func Validate(r Record) error {
	if !ValidName(r.Dataset) {
		return fmt.Errorf("%w: dataset %q must match %s", ErrInvalid, r.Dataset, namePattern)
	}
	if r.Time.IsZero() {
		return fmt.Errorf("%w: time is required", ErrInvalid)
	}
	if len(r.Measures) == 0 {
		return fmt.Errorf("%w: at least one measure is required", ErrInvalid)
	}
	for k, v := range r.Measures {
		if err := validKey(k); err != nil {
			return fmt.Errorf("%w: measure %w", ErrInvalid, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: measure %q is not finite", ErrInvalid, k)
		}
	}
	for k := range r.Dimensions {
		if err := validKey(k); err != nil {
			return fmt.Errorf("%w: dimension %w", ErrInvalid, err)
		}
		if _, clash := r.Measures[k]; clash {
			return fmt.Errorf("%w: %q is both a dimension and a measure", ErrInvalid, k)
		}
	}
	return nil
}

func validKey(k string) error {
	if !ValidName(k) {
		return fmt.Errorf("key %q must match %s", k, namePattern)
	}
	if reservedKeys[k] {
		return fmt.Errorf("key %q is reserved", k)
	}
	return nil
}

// Stamp validates r, normalises its time to UTC and fills in its ID.
func Stamp(r Record) (Record, error) {
	if err := Validate(r); err != nil {
		return Record{}, err
	}
	r.Time = r.Time.UTC().Truncate(time.Millisecond)
	id, err := RecordID(r)
	if err != nil {
		return Record{}, err
	}
	r.ID = id
	return r, nil
}

// DimensionKeys returns the dimension keys of r in sorted order.
func (r Record) DimensionKeys() []string {
	return sortedKeys(r.Dimensions)
}

// MeasureKeys returns the measure keys of r in sorted order.
func (r Record) MeasureKeys() []string {
	return sortedKeys(r.Measures)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
