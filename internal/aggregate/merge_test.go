package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parut/agri-advisor/internal/model"
)

func fptr(v float64) *float64 { return &v }

func day(offset int) model.Date {
	return model.NewDate(2025, time.October, 29).AddDays(offset)
}

func dailyAt(offset int, src model.Source, mutate func(*model.DailyRecord)) model.DailyRecord {
	rec := model.DailyRecord{Date: day(offset), Source: src}
	if mutate != nil {
		mutate(&rec)
	}
	return rec
}

func TestMergeDailyEnrichment(t *testing.T) {
	om := []model.DailyRecord{
		dailyAt(0, model.SourceOpenMeteo, func(r *model.DailyRecord) {
			r.TmaxC = fptr(20)
			r.TminC = fptr(10)
		}),
	}
	kma := []model.DailyRecord{
		dailyAt(0, model.SourceKMA, func(r *model.DailyRecord) {
			r.Summary = "Clear"
			r.PrecipProbabilityPct = fptr(30)
			// Conflicting numerics that must never win.
			r.TmaxC = fptr(99)
			r.TminC = fptr(-99)
		}),
	}

	merged := mergeDaily(day(0), kma, om)
	require.Len(t, merged, 1)

	rec := merged[0]
	assert.Equal(t, 20.0, *rec.TmaxC)
	assert.Equal(t, 10.0, *rec.TminC)
	assert.Equal(t, "Clear", rec.Summary)
	assert.Equal(t, 30.0, *rec.PrecipProbabilityPct)
	assert.Equal(t, model.SourceOpenMeteo, rec.Source)
}

func TestMergeDailyEnrichmentDoesNotOverwrite(t *testing.T) {
	om := []model.DailyRecord{
		dailyAt(0, model.SourceOpenMeteo, func(r *model.DailyRecord) {
			r.Summary = "흐림"
			r.PrecipProbabilityPct = fptr(10)
		}),
	}
	kma := []model.DailyRecord{
		dailyAt(0, model.SourceKMA, func(r *model.DailyRecord) {
			r.Summary = "맑음"
			r.PrecipProbabilityPct = fptr(80)
		}),
	}

	merged := mergeDaily(day(0), kma, om)
	require.Len(t, merged, 1)
	assert.Equal(t, "흐림", merged[0].Summary)
	assert.Equal(t, 10.0, *merged[0].PrecipProbabilityPct)
}

func TestMergeDailyShortRangeOnlyDay(t *testing.T) {
	kma := []model.DailyRecord{
		dailyAt(2, model.SourceKMA, func(r *model.DailyRecord) {
			r.TmaxC = fptr(18)
		}),
	}

	merged := mergeDaily(day(0), kma, nil)
	require.Len(t, merged, 1)
	assert.Equal(t, day(2), merged[0].Date)
	assert.Equal(t, model.SourceKMA, merged[0].Source)
}

func TestMergeDailyHorizon(t *testing.T) {
	var om []model.DailyRecord
	// 14 consecutive days; only the first 11 fit the horizon.
	for offset := 0; offset < 14; offset++ {
		om = append(om, dailyAt(offset, model.SourceOpenMeteo, nil))
	}

	merged := mergeDaily(day(5), nil, om)
	require.Len(t, merged, 11)
	assert.Equal(t, day(0), merged[0].Date)
	assert.Equal(t, day(10), merged[len(merged)-1].Date)
}

func TestMergeDailyStartsAtEarliestSourceDate(t *testing.T) {
	kma := []model.DailyRecord{dailyAt(0, model.SourceKMA, nil)}
	om := []model.DailyRecord{dailyAt(10, model.SourceOpenMeteo, nil)}

	// The fallback "today" is far from the data; the horizon must anchor
	// on the earliest source date instead.
	merged := mergeDaily(day(7), kma, om)
	require.Len(t, merged, 2)
	assert.Equal(t, day(0), merged[0].Date)
	assert.Equal(t, day(10), merged[1].Date)
}

func TestMergeDailyOmitsUncoveredDays(t *testing.T) {
	om := []model.DailyRecord{
		dailyAt(0, model.SourceOpenMeteo, nil),
		dailyAt(4, model.SourceOpenMeteo, nil),
	}

	merged := mergeDaily(day(0), nil, om)
	require.Len(t, merged, 2)
	assert.Equal(t, day(0), merged[0].Date)
	assert.Equal(t, day(4), merged[1].Date)
}

func TestMergeDailyEmpty(t *testing.T) {
	assert.Empty(t, mergeDaily(day(0), nil, nil))
}

func TestMergeDailyDeterminism(t *testing.T) {
	kma := []model.DailyRecord{
		dailyAt(0, model.SourceKMA, func(r *model.DailyRecord) { r.Summary = "맑음" }),
		dailyAt(3, model.SourceKMA, func(r *model.DailyRecord) { r.PrecipProbabilityPct = fptr(40) }),
	}
	om := []model.DailyRecord{
		dailyAt(0, model.SourceOpenMeteo, func(r *model.DailyRecord) { r.TmaxC = fptr(21) }),
		dailyAt(1, model.SourceOpenMeteo, func(r *model.DailyRecord) { r.TmaxC = fptr(22) }),
	}

	first := mergeDaily(day(0), kma, om)
	second := mergeDaily(day(0), kma, om)
	assert.Equal(t, first, second)
}

func hourAt(h int, src model.Source, temp float64) model.HourlyRecord {
	return model.HourlyRecord{
		TS:     time.Date(2025, 10, 29, 0, 0, 0, 0, model.Seoul()).Add(time.Duration(h) * time.Hour),
		TC:     fptr(temp),
		Source: src,
	}
}

func TestMergeHourlyPrefersShortRange(t *testing.T) {
	kma := []model.HourlyRecord{hourAt(0, model.SourceKMA, 10), hourAt(1, model.SourceKMA, 11)}
	om := []model.HourlyRecord{hourAt(1, model.SourceOpenMeteo, 99), hourAt(2, model.SourceOpenMeteo, 12)}

	merged := mergeHourly(kma, om)
	require.Len(t, merged, 3)
	assert.Equal(t, model.SourceKMA, merged[0].Source)
	assert.Equal(t, model.SourceKMA, merged[1].Source)
	assert.Equal(t, 11.0, *merged[1].TC)
	assert.Equal(t, model.SourceOpenMeteo, merged[2].Source)
}

func TestMergeHourlyWindowAndDedup(t *testing.T) {
	var om []model.HourlyRecord
	for h := 0; h < 100; h++ {
		om = append(om, hourAt(h, model.SourceOpenMeteo, float64(h)))
	}

	merged := mergeHourly(nil, om)
	require.Len(t, merged, 72)

	seen := map[int64]bool{}
	for _, rec := range merged {
		assert.False(t, seen[rec.TS.Unix()], "duplicate timestamp %v", rec.TS)
		seen[rec.TS.Unix()] = true
	}
	span := merged[len(merged)-1].TS.Sub(merged[0].TS)
	assert.Less(t, span, 72*time.Hour)
}

func TestMergeHourlyEmpty(t *testing.T) {
	assert.Empty(t, mergeHourly(nil, nil))
}

func TestMergeProvenance(t *testing.T) {
	assert.Equal(t,
		[]string{"KMA(2025-10-29)", "NPMS(2025-10-27)"},
		mergeProvenance("KMA(2025-10-29)", "", "NPMS(2025-10-27)"),
	)
	assert.Empty(t, mergeProvenance("", "", ""))
}

func TestMergeIssuedAt(t *testing.T) {
	now := time.Date(2025, 10, 29, 12, 0, 0, 0, model.Seoul())
	early := now.Add(-3 * time.Hour)
	late := now.Add(-1 * time.Hour)

	assert.Equal(t, late, mergeIssuedAt(now, &early, &late))
	assert.Equal(t, late, mergeIssuedAt(now, nil, &late))
	assert.Equal(t, now, mergeIssuedAt(now, nil, nil))
}
