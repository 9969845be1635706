package aggregate

import (
	"context"

	"go.uber.org/zap"

	"github.com/parut/agri-advisor/internal/model"
	"github.com/parut/agri-advisor/internal/upstream"
	"github.com/parut/agri-advisor/pkg/kma"
	"github.com/parut/agri-advisor/pkg/npms"
	"github.com/parut/agri-advisor/pkg/openmeteo"
)

// Fetcher retrieves one source's raw payload for a resolved profile. A nil
// bundle means "source unavailable for this request". Fetchers absorb their
// own errors: a transport failure or malformed payload is logged and
// contributes nothing, it never fails the aggregation.
type Fetcher interface {
	Fetch(ctx context.Context, resolved *model.ResolvedProfile) *upstream.Bundle
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, resolved *model.ResolvedProfile) *upstream.Bundle

func (f FetcherFunc) Fetch(ctx context.Context, resolved *model.ResolvedProfile) *upstream.Bundle {
	return f(ctx, resolved)
}

// NewKMAFetcher adapts a KMA client into the absorbing Fetcher contract.
func NewKMAFetcher(client kma.Client) Fetcher {
	return FetcherFunc(func(ctx context.Context, resolved *model.ResolvedProfile) *upstream.Bundle {
		q := kma.Query{
			Crop:     string(resolved.Profile.Crop),
			Lat:      resolved.Lat,
			Lon:      resolved.Lon,
			AreaCode: resolved.MidRangeAreaCode,
		}
		if resolved.Grid != nil {
			q.Grid = &kma.Grid{NX: resolved.Grid.NX, NY: resolved.Grid.NY}
		}

		bundle, err := client.Fetch(ctx, q)
		if err != nil {
			zap.L().Warn("aggregate: kma fetch failed", zap.Error(err))
			return nil
		}
		return bundle
	})
}

// NewOpenMeteoFetcher adapts an Open-Meteo client into the absorbing
// Fetcher contract.
func NewOpenMeteoFetcher(client openmeteo.Client) Fetcher {
	return FetcherFunc(func(ctx context.Context, resolved *model.ResolvedProfile) *upstream.Bundle {
		bundle, err := client.Fetch(ctx, openmeteo.Query{
			Crop: string(resolved.Profile.Crop),
			Lat:  resolved.Lat,
			Lon:  resolved.Lon,
		})
		if err != nil {
			zap.L().Warn("aggregate: open-meteo fetch failed", zap.Error(err))
			return nil
		}
		return bundle
	})
}

// NewPestFetcher adapts an NPMS client into the absorbing Fetcher contract.
func NewPestFetcher(client npms.Client) Fetcher {
	return FetcherFunc(func(ctx context.Context, resolved *model.ResolvedProfile) *upstream.Bundle {
		bundle, err := client.Fetch(ctx, npms.Query{
			Crop:       string(resolved.Profile.Crop),
			Lat:        resolved.Lat,
			Lon:        resolved.Lon,
			RegionCode: resolved.PestRegionCode,
		})
		if err != nil {
			zap.L().Warn("aggregate: npms fetch failed", zap.Error(err))
			return nil
		}
		return bundle
	})
}
