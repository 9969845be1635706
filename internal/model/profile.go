package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Crop identifies a supported crop. Unsupported crops are a hard resolution
// failure, not a soft degradation.
type Crop string

// Supported crops.
const (
	CropApple  Crop = "apple"
	CropTomato Crop = "tomato"
)

// SupportedCrops lists every crop the resolver has coverage data for.
var SupportedCrops = []Crop{CropApple, CropTomato}

// ParseCrop validates a raw crop string against the supported set.
func ParseCrop(s string) (Crop, error) {
	c := Crop(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range SupportedCrops {
		if c == known {
			return c, nil
		}
	}
	return "", eris.Errorf("model: unsupported crop %q", s)
}

// Profile identifies what evidence to gather: a region, a crop, and the
// crop's growth stage. Immutable once constructed.
type Profile struct {
	Region string `json:"region"`
	Crop   Crop   `json:"crop"`
	Stage  string `json:"stage"`
}

// Validate checks that all profile fields are populated and the crop is
// supported.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Region) == "" {
		return eris.New("model: profile region is required")
	}
	if strings.TrimSpace(p.Stage) == "" {
		return eris.New("model: profile stage is required")
	}
	if _, err := ParseCrop(string(p.Crop)); err != nil {
		return err
	}
	return nil
}

// GridPoint is a forecast grid coordinate used by the short-range gridded
// forecast API.
type GridPoint struct {
	NX int `json:"nx"`
	NY int `json:"ny"`
}

// ResolvedProfile is a Profile enriched with the identifiers each upstream
// source requires. A missing identifier silently disables the corresponding
// fetch: the fetcher returns "no data" rather than an error.
type ResolvedProfile struct {
	Profile Profile `json:"profile"`

	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`

	// Grid addresses the short-range gridded forecast; nil disables it.
	Grid *GridPoint `json:"grid,omitempty"`

	// MidRangeAreaCode addresses the mid-range forecast; empty disables it.
	MidRangeAreaCode string `json:"mid_range_area_code,omitempty"`

	// PestRegionCode addresses the pest observation API; empty disables it.
	PestRegionCode string `json:"pest_region_code,omitempty"`
}
