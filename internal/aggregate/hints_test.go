package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parut/agri-advisor/internal/model"
)

func rainDay(offset int, precip *float64) model.DailyRecord {
	return model.DailyRecord{Date: day(offset), PrecipMM: precip}
}

func TestRainRunMaxDays(t *testing.T) {
	tests := []struct {
		name    string
		precips []*float64
		want    *int
	}{
		{"no data", nil, nil},
		{"all dry", []*float64{fptr(0), fptr(0)}, nil},
		{"single wet day", []*float64{fptr(0), fptr(5.2), fptr(0)}, iptr(1)},
		{"run broken by dry day", []*float64{fptr(1), fptr(2), fptr(0), fptr(3)}, iptr(2)},
		{"run broken by missing value", []*float64{fptr(1), fptr(2), nil, fptr(3)}, iptr(2)},
		{"run at the tail", []*float64{fptr(0), fptr(1), fptr(2), fptr(3)}, iptr(3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var daily []model.DailyRecord
			for i, p := range tt.precips {
				daily = append(daily, rainDay(i, p))
			}
			assert.Equal(t, tt.want, rainRunMaxDays(daily))
		})
	}
}

func TestHeatAndWindHours(t *testing.T) {
	hourly := []model.HourlyRecord{
		{TS: nightTS(12), TC: fptr(33.0), WindMS: fptr(10.0)},
		{TS: nightTS(13), TC: fptr(34.1), WindMS: fptr(9.9)},
		{TS: nightTS(14), TC: fptr(32.9), WindMS: nil},
	}

	hints := ComputeDerivedHints(nil, hourly, nil)
	require.NotNil(t, hints.HeatHoursGE33C)
	assert.Equal(t, 2, *hints.HeatHoursGE33C, "threshold is inclusive")
	require.NotNil(t, hints.WindHoursGE10MS)
	assert.Equal(t, 1, *hints.WindHoursGE10MS)
}

func TestDerivedHintsNilNotZero(t *testing.T) {
	hints := ComputeDerivedHints(nil, nil, nil)
	require.NotNil(t, hints)
	assert.Nil(t, hints.RainRunMaxDays)
	assert.Nil(t, hints.HeatHoursGE33C)
	assert.Nil(t, hints.WindHoursGE10MS)
	assert.Nil(t, hints.WetNightsCount)
	assert.Nil(t, hints.DiurnalRangeMax)
	assert.Nil(t, hints.FirstWarningType)
}

func nightTS(hour int) time.Time {
	return time.Date(2025, 10, 29, hour, 0, 0, 0, model.Seoul())
}

func humidHour(ts time.Time, rh float64) model.HourlyRecord {
	return model.HourlyRecord{TS: ts, RHPct: fptr(rh)}
}

func TestWetNightsCount(t *testing.T) {
	t.Run("three humid evening hours make one wet night", func(t *testing.T) {
		hourly := []model.HourlyRecord{
			humidHour(nightTS(21), 92),
			humidHour(nightTS(22), 95),
			humidHour(nightTS(23), 91),
		}
		got := wetNightsCount(hourly)
		require.NotNil(t, got)
		assert.Equal(t, 1, *got)
	})

	t.Run("early-morning hours belong to the previous night", func(t *testing.T) {
		hourly := []model.HourlyRecord{
			humidHour(nightTS(23), 92),
			humidHour(nightTS(24), 95), // 2025-10-30 00:00
			humidHour(nightTS(25), 93), // 2025-10-30 01:00
		}
		got := wetNightsCount(hourly)
		require.NotNil(t, got)
		assert.Equal(t, 1, *got)
	})

	t.Run("two humid hours are not enough", func(t *testing.T) {
		hourly := []model.HourlyRecord{
			humidHour(nightTS(22), 92),
			humidHour(nightTS(23), 95),
		}
		assert.Nil(t, wetNightsCount(hourly))
	})

	t.Run("daytime humidity never counts", func(t *testing.T) {
		hourly := []model.HourlyRecord{
			humidHour(nightTS(10), 99),
			humidHour(nightTS(11), 99),
			humidHour(nightTS(12), 99),
		}
		assert.Nil(t, wetNightsCount(hourly))
	})

	t.Run("below-threshold humidity never counts", func(t *testing.T) {
		hourly := []model.HourlyRecord{
			humidHour(nightTS(21), 89.9),
			humidHour(nightTS(22), 89.9),
			humidHour(nightTS(23), 89.9),
		}
		assert.Nil(t, wetNightsCount(hourly))
	})
}

func TestDiurnalRangeMax(t *testing.T) {
	daily := []model.DailyRecord{
		{Date: day(0), TmaxC: fptr(30), TminC: fptr(22)},
		{Date: day(1), TmaxC: fptr(28), TminC: fptr(15)},
		{Date: day(2), TmaxC: fptr(25)}, // incomplete, skipped
	}
	got := diurnalRangeMax(daily)
	require.NotNil(t, got)
	assert.InDelta(t, 13.0, *got, 0.001)
}

func TestFirstWarningType(t *testing.T) {
	warnings := []model.WeatherWarning{
		{Type: model.WarningRain, Level: model.LevelWarning},
		{Type: model.WarningHeat, Level: model.LevelWatch},
	}
	hints := ComputeDerivedHints(nil, nil, warnings)
	require.NotNil(t, hints.FirstWarningType)
	assert.Equal(t, model.WarningRain, *hints.FirstWarningType)
}

func iptr(v int) *int { return &v }
