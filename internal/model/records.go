package model

import "time"

// Source labels which upstream provider a record came from. Sources are
// metadata on merged records, not part of the uniqueness key.
type Source string

// Known record sources.
const (
	SourceKMA       Source = "kma"
	SourceOpenMeteo Source = "open-meteo"
)

// DailyRecord is one calendar day of forecast data from one reporting
// source. The uniqueness key is Date alone; overlapping sources are merged
// per date, never kept side by side.
type DailyRecord struct {
	Date                 Date     `json:"date"`
	TmaxC                *float64 `json:"tmax_c,omitempty"`
	TminC                *float64 `json:"tmin_c,omitempty"`
	PrecipMM             *float64 `json:"precip_mm,omitempty"`
	WindMS               *float64 `json:"wind_ms,omitempty"`
	Summary              string   `json:"summary,omitempty"`
	PrecipProbabilityPct *float64 `json:"precip_probability_pct,omitempty"`
	Source               Source   `json:"src,omitempty"`
}

// HourlyRecord is one hour of forecast data. The uniqueness key is TS,
// which is always timezone-aware (normalized to KST at the normalization
// boundary).
type HourlyRecord struct {
	TS                time.Time `json:"ts"`
	TC                *float64  `json:"t_c,omitempty"`
	RHPct             *float64  `json:"rh_pct,omitempty"`
	WindMS            *float64  `json:"wind_ms,omitempty"`
	GustMS            *float64  `json:"gust_ms,omitempty"`
	PrecipMM          *float64  `json:"precip_mm,omitempty"`
	SolarRadiationWM2 *float64  `json:"swrad_wm2,omitempty"`
	Source            Source    `json:"src,omitempty"`
}

// WarningType categorizes an official weather warning.
type WarningType string

// Warning types issued by the official provider.
const (
	WarningHeat    WarningType = "HEAT"
	WarningRain    WarningType = "RAIN"
	WarningWind    WarningType = "WIND"
	WarningCold    WarningType = "COLD"
	WarningTyphoon WarningType = "TYPHOON"
)

// WarningLevel is the escalation level of a warning.
type WarningLevel string

// Warning levels, in ascending severity.
const (
	LevelWatch   WarningLevel = "WATCH"
	LevelWarning WarningLevel = "WARNING"
)

// WeatherWarning is an official advisory for an area and time window.
// Warnings are always attributed to the regional/official source; the
// fallback provider never supplies them.
type WeatherWarning struct {
	Type  WarningType  `json:"type"`
	Level WarningLevel `json:"level"`
	Area  string       `json:"area"`
	From  time.Time    `json:"from"`
	To    time.Time    `json:"to"`
}

// PestObservation is a single trap-count or disease-index reading for one
// administrative area. Observations with a nil or zero Value are filtered
// out at normalization; a zero reading carries no advisory value.
type PestObservation struct {
	Pest   string   `json:"pest"`
	Metric string   `json:"metric"`
	Code   string   `json:"code"`
	Value  *float64 `json:"value,omitempty"`
	Area   string   `json:"area"`
	Unit   string   `json:"unit,omitempty"`
}

// RiskLevel grades a pest bulletin.
type RiskLevel string

// Bulletin risk levels, in ascending severity.
const (
	RiskLow      RiskLevel = "LOW"
	RiskModerate RiskLevel = "MODERATE"
	RiskHigh     RiskLevel = "HIGH"
	RiskAlert    RiskLevel = "ALERT"
)

// PestBulletin is a narrative risk advisory for a named pest, distinct from
// raw observations.
type PestBulletin struct {
	Pest    string    `json:"pest"`
	Risk    RiskLevel `json:"risk"`
	Since   Date      `json:"since"`
	Summary string    `json:"summary"`
}
