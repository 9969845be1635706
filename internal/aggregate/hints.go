package aggregate

import (
	"github.com/parut/agri-advisor/internal/model"
)

// ComputeDerivedHints derives secondary signals from the merged series.
// Every hint is nil, not zero, when no qualifying data exists: "not enough
// information" and "confirmed zero" are different statements.
func ComputeDerivedHints(daily []model.DailyRecord, hourly []model.HourlyRecord, warnings []model.WeatherWarning) *model.DerivedHints {
	return &model.DerivedHints{
		RainRunMaxDays:  rainRunMaxDays(daily),
		HeatHoursGE33C:  countHours(hourly, func(r model.HourlyRecord) *float64 { return r.TC }, 33.0),
		WindHoursGE10MS: countHours(hourly, func(r model.HourlyRecord) *float64 { return r.WindMS }, 10.0),
		WetNightsCount:  wetNightsCount(hourly),
		DiurnalRangeMax: diurnalRangeMax(daily),
		FirstWarningType: func() *model.WarningType {
			if len(warnings) == 0 {
				return nil
			}
			t := warnings[0].Type
			return &t
		}(),
	}
}

// rainRunMaxDays is the longest run of consecutive days, in daily order,
// with positive precipitation.
func rainRunMaxDays(daily []model.DailyRecord) *int {
	run, best := 0, 0
	for _, d := range daily {
		if d.PrecipMM != nil && *d.PrecipMM > 0 {
			run++
			if run > best {
				best = run
			}
		} else {
			run = 0
		}
	}
	if best == 0 {
		return nil
	}
	return &best
}

func countHours(hourly []model.HourlyRecord, value func(model.HourlyRecord) *float64, threshold float64) *int {
	total := 0
	for _, h := range hourly {
		if v := value(h); v != nil && *v >= threshold {
			total++
		}
	}
	if total == 0 {
		return nil
	}
	return &total
}

// wetNightsCount counts nights with at least three high-humidity hours
// (rh >= 90%). Hours from 21:00 belong to that calendar night; hours before
// 06:00 belong to the previous calendar night.
func wetNightsCount(hourly []model.HourlyRecord) *int {
	perNight := map[model.Date]int{}
	for _, h := range hourly {
		if h.RHPct == nil || *h.RHPct < 90 {
			continue
		}
		switch hour := h.TS.Hour(); {
		case hour >= 21:
			perNight[model.DateOf(h.TS)]++
		case hour <= 5:
			perNight[model.DateOf(h.TS.AddDate(0, 0, -1))]++
		}
	}

	nights := 0
	for _, hours := range perNight {
		if hours >= 3 {
			nights++
		}
	}
	if nights == 0 {
		return nil
	}
	return &nights
}

func diurnalRangeMax(daily []model.DailyRecord) *float64 {
	var best *float64
	for _, d := range daily {
		if d.TmaxC == nil || d.TminC == nil {
			continue
		}
		r := *d.TmaxC - *d.TminC
		if best == nil || r > *best {
			best = &r
		}
	}
	return best
}
