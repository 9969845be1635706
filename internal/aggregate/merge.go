package aggregate

import (
	"sort"
	"time"

	"github.com/parut/agri-advisor/internal/model"
)

const (
	dailyHorizonDays = 11
	hourlyWindow     = 72 * time.Hour
)

// mergeDaily builds a horizon of up to 11 calendar days starting from the
// earliest date either source reports (fallback: today). The fallback
// source's record is the base when present; the short-range record then
// enriches it field by field, filling only the narrative summary and the
// precipitation probability when the base lacks them. Numeric fields on the
// base are never overwritten, and days neither source covers are omitted.
func mergeDaily(today model.Date, kma, om []model.DailyRecord) []model.DailyRecord {
	kmaByDate := dailyMap(kma)
	omByDate := dailyMap(om)

	start := today
	if earliest, ok := earliestDate(kmaByDate, omByDate); ok {
		start = earliest
	}

	var merged []model.DailyRecord
	for offset := 0; offset < dailyHorizonDays; offset++ {
		day := start.AddDays(offset)
		base, haveOM := omByDate[day]
		enrich, haveKMA := kmaByDate[day]

		switch {
		case haveOM:
			if haveKMA {
				if base.Summary == "" && enrich.Summary != "" {
					base.Summary = enrich.Summary
				}
				if base.PrecipProbabilityPct == nil && enrich.PrecipProbabilityPct != nil {
					base.PrecipProbabilityPct = enrich.PrecipProbabilityPct
				}
			}
			merged = append(merged, base)
		case haveKMA:
			merged = append(merged, enrich)
		}
	}
	return merged
}

// mergeHourly collects both sources' timestamps, keeps those within 72
// hours of the earliest one, and picks the short-range record whenever both
// sources report the same hour.
func mergeHourly(kma, om []model.HourlyRecord) []model.HourlyRecord {
	kmaByTS := hourlyMap(kma)
	omByTS := hourlyMap(om)

	if len(kmaByTS) == 0 && len(omByTS) == 0 {
		return nil
	}

	stamps := make([]time.Time, 0, len(kmaByTS)+len(omByTS))
	seen := make(map[int64]struct{}, len(kmaByTS)+len(omByTS))
	for _, m := range []map[int64]model.HourlyRecord{kmaByTS, omByTS} {
		for key, rec := range m {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			stamps = append(stamps, rec.TS)
		}
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })

	limit := stamps[0].Add(hourlyWindow)
	var merged []model.HourlyRecord
	for _, ts := range stamps {
		if !ts.Before(limit) {
			break
		}
		if rec, ok := kmaByTS[ts.Unix()]; ok {
			merged = append(merged, rec)
			continue
		}
		merged = append(merged, omByTS[ts.Unix()])
	}
	return merged
}

// mergeProvenance keeps the fixed source order, omitting sources that
// produced nothing.
func mergeProvenance(labels ...string) []string {
	var out []string
	for _, l := range labels {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

// mergeIssuedAt is the maximum of the non-nil source timestamps, falling
// back to now when no source reports one.
func mergeIssuedAt(now time.Time, candidates ...*time.Time) time.Time {
	var best *time.Time
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if best == nil || c.After(*best) {
			best = c
		}
	}
	if best == nil {
		return now
	}
	return *best
}

func dailyMap(records []model.DailyRecord) map[model.Date]model.DailyRecord {
	m := make(map[model.Date]model.DailyRecord, len(records))
	for _, r := range records {
		m[r.Date] = r
	}
	return m
}

func hourlyMap(records []model.HourlyRecord) map[int64]model.HourlyRecord {
	m := make(map[int64]model.HourlyRecord, len(records))
	for _, r := range records {
		m[r.TS.Unix()] = r
	}
	return m
}

func earliestDate(maps ...map[model.Date]model.DailyRecord) (model.Date, bool) {
	var earliest model.Date
	found := false
	for _, m := range maps {
		for d := range m {
			if !found || d.Before(earliest) {
				earliest = d
				found = true
			}
		}
	}
	return earliest, found
}
