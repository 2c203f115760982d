package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// UtilityType selects the meter a reading belongs to.
type UtilityType string

const (
	UtilityWater UtilityType = "water"
	UtilityGas   UtilityType = "gas"
)

// IsValid returns true if the type is a recognized utility.
func (t UtilityType) IsValid() bool {
	return t == UtilityWater || t == UtilityGas
}

// Label returns the display name.
func (t UtilityType) Label() string {
	switch t {
	case UtilityWater:
		return "Water"
	case UtilityGas:
		return "Gas"
	}
	return string(t)
}

// ReadingInput is one editable reading row.
type ReadingInput struct {
	Type    UtilityType `json:"type"`
	Reading string      `json:"reading"`
}

// IsBlank reports whether the operator left the reading empty.
func (r ReadingInput) IsBlank() bool {
	return strings.TrimSpace(r.Reading) == ""
}

// UtilityReading is a validated reading ready to post.
type UtilityReading struct {
	Type  UtilityType `json:"type"`
	Value float64     `json:"value"`
}

// ReadingDraft is the ordered list of initial meter readings.
type ReadingDraft struct {
	Rows []ReadingInput `json:"rows"`
}

// NewReadingDraft returns the default draft: a single water row.
func NewReadingDraft() ReadingDraft {
	return ReadingDraft{Rows: []ReadingInput{{Type: UtilityWater}}}
}

// AddRow appends an empty water row.
func (d *ReadingDraft) AddRow() {
	d.Rows = append(d.Rows, ReadingInput{Type: UtilityWater})
}

// RemoveRow drops the row at index. The last remaining row is kept.
func (d *ReadingDraft) RemoveRow(index int) {
	if len(d.Rows) <= 1 || index < 0 || index >= len(d.Rows) {
		return
	}
	d.Rows = append(d.Rows[:index], d.Rows[index+1:]...)
}

// RemoveRows drops the rows at the given indices, e.g. readings already
// posted. An emptied draft falls back to the default row.
func (d *ReadingDraft) RemoveRows(indices []int) {
	drop := make(map[int]bool, len(indices))
	for _, i := range indices {
		drop[i] = true
	}
	kept := d.Rows[:0:0]
	for i, row := range d.Rows {
		if !drop[i] {
			kept = append(kept, row)
		}
	}
	if len(kept) == 0 {
		kept = NewReadingDraft().Rows
	}
	d.Rows = kept
}

// Parse converts a non-blank row into a reading.
func (r ReadingInput) Parse() (UtilityReading, error) {
	const op = "reading.parse"
	if !r.Type.IsValid() {
		return UtilityReading{}, NewValidationError(op, "type", "Utility type must be water or gas")
	}
	v, ok := parseReading(r.Reading)
	if !ok {
		return UtilityReading{}, NewValidationError(op, "reading", "Reading must be a non-negative number")
	}
	return UtilityReading{Type: r.Type, Value: v}, nil
}

// ValidateReadings checks only the rows that carry a value.
func ValidateReadings(d ReadingDraft) FieldErrors {
	errs := FieldErrors{}
	for i, row := range d.Rows {
		if !row.Type.IsValid() {
			errs.Add(fmt.Sprintf("reading%d_type", i), "Utility type must be water or gas")
		}
		if row.IsBlank() {
			continue
		}
		if _, ok := parseReading(row.Reading); !ok {
			errs.Add(fmt.Sprintf("reading%d_reading", i), "Reading must be a non-negative number")
		}
	}
	return errs
}

// ValidReadings returns the non-blank rows in insertion order. Blank rows are
// dropped silently; any invalid row fails the whole draft.
func (d ReadingDraft) ValidReadings() ([]UtilityReading, error) {
	if err := ValidateReadings(d).Err("readings.validate"); err != nil {
		return nil, err
	}
	var out []UtilityReading
	for _, row := range d.Rows {
		if row.IsBlank() {
			continue
		}
		v, _ := parseReading(row.Reading)
		out = append(out, UtilityReading{Type: row.Type, Value: v})
	}
	return out, nil
}

func parseReading(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, v >= 0
}
