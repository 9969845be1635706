package aggregate

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/parut/agri-advisor/internal/model"
)

type coverageKey struct {
	region string
	crop   model.Crop
}

type coverageRecord struct {
	lat            float64
	lon            float64
	grid           *model.GridPoint
	midAreaCode    string
	pestRegionCode string
}

// Resolver maps a (region, crop) pair to the identifiers each upstream
// source requires. Pure lookup; unknown pairs fail closed with
// ErrNoCoverage rather than guessing coordinates.
type Resolver struct {
	records map[coverageKey]coverageRecord
}

// NewResolver creates a resolver with the built-in coverage table.
func NewResolver() *Resolver {
	return &Resolver{
		records: map[coverageKey]coverageRecord{
			{region: "andong-si", crop: model.CropApple}: {
				lat:  36.568,
				lon:  128.729,
				grid: &model.GridPoint{NX: 91, NY: 106},
				// 경상북도 중기육상예보 지역코드
				midAreaCode:    "11H10000",
				pestRegionCode: "47170",
			},
		},
	}
}

// Resolve looks up the coverage record for a profile. The region is
// matched case-insensitively.
func (r *Resolver) Resolve(profile model.Profile) (*model.ResolvedProfile, error) {
	if err := profile.Validate(); err != nil {
		return nil, eris.Wrap(ErrInvalidProfile, err.Error())
	}

	key := coverageKey{region: strings.ToLower(profile.Region), crop: profile.Crop}
	rec, ok := r.records[key]
	if !ok {
		return nil, eris.Wrapf(ErrNoCoverage, "%s/%s", profile.Region, profile.Crop)
	}

	return &model.ResolvedProfile{
		Profile:          profile,
		Lat:              rec.lat,
		Lon:              rec.lon,
		Grid:             rec.grid,
		MidRangeAreaCode: rec.midAreaCode,
		PestRegionCode:   rec.pestRegionCode,
	}, nil
}
