package model

import "time"

// DerivedHints are secondary signals computed from the merged series. Every
// field is a pointer: nil means "not enough information", which is distinct
// from a confirmed zero and must survive serialization (the field is
// omitted, never emitted as 0).
type DerivedHints struct {
	RainRunMaxDays   *int         `json:"rain_run_max_days,omitempty"`
	HeatHoursGE33C   *int         `json:"heat_hours_ge_33c,omitempty"`
	WindHoursGE10MS  *int         `json:"wind_hours_ge_10ms,omitempty"`
	WetNightsCount   *int         `json:"wet_nights_count,omitempty"`
	DiurnalRangeMax  *float64     `json:"diurnal_range_max,omitempty"`
	FirstWarningType *WarningType `json:"first_warning_type,omitempty"`
}

// EvidencePack is the merged, normalized output combining climate and pest
// data for one profile. It is created fresh per request, never mutated after
// construction, and handed read-only to the report pipeline.
type EvidencePack struct {
	Profile  Profile   `json:"profile"`
	IssuedAt time.Time `json:"issued_at"`

	Daily    []DailyRecord    `json:"daily"`
	Hourly   []HourlyRecord   `json:"hourly"`
	Warnings []WeatherWarning `json:"warnings"`

	PestObservations []PestObservation `json:"pest_observations"`
	PestBulletins    []PestBulletin    `json:"pest_bulletins"`
	PestHints        []string          `json:"pest_hints"`

	// Provenance lists a label per source that contributed any data, in a
	// fixed source order.
	Provenance []string `json:"provenance"`

	Derived *DerivedHints `json:"derived_hints,omitempty"`
}

// Advisory is a delivered farm advisory: the derived texts of one evidence
// pack, persisted by the storage layer. The pack itself is not stored.
type Advisory struct {
	ID             string    `json:"id"`
	Profile        Profile   `json:"profile"`
	IssuedAt       time.Time `json:"issued_at"`
	DetailedReport string    `json:"detailed_report"`
	Brief          string    `json:"brief"`
	Provenance     []string  `json:"provenance"`
	CreatedAt      time.Time `json:"created_at"`
}
