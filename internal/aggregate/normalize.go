package aggregate

import (
	"time"

	"github.com/parut/agri-advisor/internal/model"
	"github.com/parut/agri-advisor/internal/upstream"
)

// NormalizedSource is one source's raw bundle converted into the common
// schema. A nil bundle normalizes to an all-empty source, never an error.
type NormalizedSource struct {
	IssuedAt     *time.Time
	Daily        []model.DailyRecord
	Hourly       []model.HourlyRecord
	Warnings     []model.WeatherWarning
	Observations []model.PestObservation
	Bulletins    []model.PestBulletin
	Provenance   string
}

var warningTypes = map[string]model.WarningType{
	string(model.WarningHeat):    model.WarningHeat,
	string(model.WarningRain):    model.WarningRain,
	string(model.WarningWind):    model.WarningWind,
	string(model.WarningCold):    model.WarningCold,
	string(model.WarningTyphoon): model.WarningTyphoon,
}

var warningLevels = map[string]model.WarningLevel{
	string(model.LevelWatch):   model.LevelWatch,
	string(model.LevelWarning): model.LevelWarning,
}

var riskLevels = map[string]model.RiskLevel{
	string(model.RiskLow):      model.RiskLow,
	string(model.RiskModerate): model.RiskModerate,
	string(model.RiskHigh):     model.RiskHigh,
	string(model.RiskAlert):    model.RiskAlert,
}

// NormalizeKMA converts a raw KMA bundle. KMA is the only source that
// carries weather warnings.
func NormalizeKMA(b *upstream.Bundle) NormalizedSource {
	out := NormalizedSource{}
	if b == nil {
		return out
	}

	out.IssuedAt = coerceTime(b.IssuedAt)
	out.Provenance = b.Provenance
	out.Daily = normalizeDaily(b.Daily, model.SourceKMA)
	out.Hourly = normalizeHourly(b.Hourly, model.SourceKMA)

	for _, e := range b.Warnings {
		w := model.WeatherWarning{
			Type:  model.WarningHeat,
			Level: model.LevelWatch,
			Area:  coerceString(field(e, "area")),
		}
		if t, ok := warningTypes[coerceString(field(e, "type"))]; ok {
			w.Type = t
		}
		if l, ok := warningLevels[coerceString(field(e, "level"))]; ok {
			w.Level = l
		}
		if from := coerceTime(field(e, "from")); from != nil {
			w.From = *from
		}
		if to := coerceTime(field(e, "to")); to != nil {
			w.To = *to
		}
		out.Warnings = append(out.Warnings, w)
	}
	return out
}

// NormalizeOpenMeteo converts a raw Open-Meteo bundle. Any warnings in the
// payload are ignored; the fallback provider never supplies them.
func NormalizeOpenMeteo(b *upstream.Bundle) NormalizedSource {
	out := NormalizedSource{}
	if b == nil {
		return out
	}

	out.IssuedAt = coerceTime(b.IssuedAt)
	out.Provenance = b.Provenance
	out.Daily = normalizeDaily(b.Daily, model.SourceOpenMeteo)
	out.Hourly = normalizeHourly(b.Hourly, model.SourceOpenMeteo)
	return out
}

// NormalizePest converts a raw pest bundle. Observations with a nil or
// zero value are filtered out here, once, so no later stage ever sees them.
func NormalizePest(b *upstream.Bundle) NormalizedSource {
	out := NormalizedSource{}
	if b == nil {
		return out
	}

	out.IssuedAt = coerceTime(b.IssuedAt)
	out.Provenance = b.Provenance

	for _, e := range b.Observations {
		value := coerceFloat(field(e, "value"))
		if value == nil || *value == 0 {
			continue
		}
		out.Observations = append(out.Observations, model.PestObservation{
			Pest:   coerceString(field(e, "pest")),
			Metric: coerceString(field(e, "metric")),
			Code:   coerceString(field(e, "code")),
			Value:  value,
			Area:   coerceString(field(e, "area")),
			Unit:   coerceString(field(e, "unit")),
		})
	}

	for _, e := range b.Bulletins {
		bl := model.PestBulletin{
			Pest:    coerceString(field(e, "pest")),
			Risk:    model.RiskLow,
			Summary: coerceString(field(e, "summary")),
		}
		if r, ok := riskLevels[coerceString(field(e, "risk"))]; ok {
			bl.Risk = r
		}
		if since, ok := coerceDate(field(e, "since")); ok {
			bl.Since = since
		}
		out.Bulletins = append(out.Bulletins, bl)
	}
	return out
}

func normalizeDaily(entries []upstream.Entry, src model.Source) []model.DailyRecord {
	var out []model.DailyRecord
	for _, e := range entries {
		date, ok := coerceDate(field(e, "date"))
		if !ok {
			continue
		}
		out = append(out, model.DailyRecord{
			Date:                 date,
			TmaxC:                coerceFloat(field(e, "tmax_c", "tmax")),
			TminC:                coerceFloat(field(e, "tmin_c", "tmin")),
			PrecipMM:             coerceFloat(field(e, "precip_mm")),
			WindMS:               coerceFloat(field(e, "wind_ms", "wind")),
			Summary:              coerceString(field(e, "summary")),
			PrecipProbabilityPct: coerceFloat(field(e, "precip_probability_pct", "pop")),
			Source:               src,
		})
	}
	return out
}

func normalizeHourly(entries []upstream.Entry, src model.Source) []model.HourlyRecord {
	var out []model.HourlyRecord
	for _, e := range entries {
		ts := coerceTime(field(e, "ts"))
		if ts == nil {
			continue
		}
		out = append(out, model.HourlyRecord{
			TS:                *ts,
			TC:                coerceFloat(field(e, "t_c", "t")),
			RHPct:             coerceFloat(field(e, "rh_pct", "rh")),
			WindMS:            coerceFloat(field(e, "wind_ms", "wind")),
			GustMS:            coerceFloat(field(e, "gust_ms", "gust")),
			PrecipMM:          coerceFloat(field(e, "precip_mm")),
			SolarRadiationWM2: coerceFloat(field(e, "swrad_wm2", "swrad")),
			Source:            src,
		})
	}
	return out
}
