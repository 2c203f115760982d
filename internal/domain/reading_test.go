package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateReadings(t *testing.T) {
	d := ReadingDraft{Rows: []ReadingInput{
		{Type: UtilityWater, Reading: "12.5"},
		{Type: UtilityGas, Reading: ""},
		{Type: UtilityGas, Reading: "-1"},
		{Type: UtilityWater, Reading: "abc"},
		{Type: UtilityWater, Reading: "NaN"},
		{Type: "electricity", Reading: "3"},
	}}

	errs := ValidateReadings(d)

	assert.Equal(t, FieldErrors{
		"reading2_reading": "Reading must be a non-negative number",
		"reading3_reading": "Reading must be a non-negative number",
		"reading4_reading": "Reading must be a non-negative number",
		"reading5_type":    "Utility type must be water or gas",
	}, errs)
}

func TestReadingDraft_ValidReadingsSkipsBlankRows(t *testing.T) {
	d := ReadingDraft{Rows: []ReadingInput{
		{Type: UtilityGas, Reading: "0"},
		{Type: UtilityWater, Reading: "  "},
		{Type: UtilityWater, Reading: "104.25"},
	}}

	readings, err := d.ValidReadings()

	require.NoError(t, err)
	assert.Equal(t, []UtilityReading{
		{Type: UtilityGas, Value: 0},
		{Type: UtilityWater, Value: 104.25},
	}, readings)
}

func TestReadingDraft_AllBlankYieldsNothing(t *testing.T) {
	readings, err := NewReadingDraft().ValidReadings()

	require.NoError(t, err)
	assert.Empty(t, readings)
}

func TestReadingDraft_AddRemove(t *testing.T) {
	d := NewReadingDraft()
	d.RemoveRow(0)
	assert.Len(t, d.Rows, 1)

	d.AddRow()
	d.Rows[1].Type = UtilityGas
	d.RemoveRow(0)

	require.Len(t, d.Rows, 1)
	assert.Equal(t, UtilityGas, d.Rows[0].Type)
}

func TestReadingDraft_RemoveRows(t *testing.T) {
	d := ReadingDraft{Rows: []ReadingInput{
		{Type: UtilityWater, Reading: "1"},
		{Type: UtilityGas, Reading: "2"},
		{Type: UtilityWater, Reading: "3"},
	}}

	d.RemoveRows([]int{0, 1})
	assert.Equal(t, []ReadingInput{{Type: UtilityWater, Reading: "3"}}, d.Rows)

	d.RemoveRows([]int{0})
	assert.Equal(t, NewReadingDraft().Rows, d.Rows)
}

func TestReadingInput_Parse(t *testing.T) {
	r, err := ReadingInput{Type: UtilityGas, Reading: " 7.5 "}.Parse()
	require.NoError(t, err)
	assert.Equal(t, UtilityReading{Type: UtilityGas, Value: 7.5}, r)

	_, err = ReadingInput{Type: UtilityGas, Reading: "-1"}.Parse()
	assert.Equal(t, EINVALID, ErrorCode(err))
}
