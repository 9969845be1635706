package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivedHints_AbsentFieldsAreOmitted(t *testing.T) {
	heat := 5
	hints := DerivedHints{HeatHoursGE33C: &heat}

	raw, err := json.Marshal(hints)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, float64(5), decoded["heat_hours_ge_33c"])
	// nil hints must be omitted entirely, never serialized as 0.
	assert.NotContains(t, decoded, "rain_run_max_days")
	assert.NotContains(t, decoded, "wet_nights_count")
	assert.NotContains(t, decoded, "diurnal_range_max")
	assert.NotContains(t, decoded, "first_warning_type")
}

func TestDailyRecord_OptionalFieldsOmitted(t *testing.T) {
	d := DailyRecord{Date: NewDate(2025, 10, 29), Source: SourceKMA}

	raw, err := json.Marshal(d)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "2025-10-29", decoded["date"])
	assert.NotContains(t, decoded, "tmax_c")
	assert.NotContains(t, decoded, "precip_probability_pct")
}
