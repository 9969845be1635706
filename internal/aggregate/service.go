// Package aggregate resolves a (region, crop, stage) profile, fetches the
// weather and pest sources concurrently, and merges the normalized series
// into one evidence pack.
package aggregate

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/parut/agri-advisor/internal/model"
	"github.com/parut/agri-advisor/internal/upstream"
)

// Request is one aggregation call. Demo bypasses the live fetchers and
// serves a scripted bundle for the profile.
type Request struct {
	Region string `json:"region"`
	Crop   string `json:"crop"`
	Stage  string `json:"stage"`
	Demo   bool   `json:"demo,omitempty"`
}

// Service coordinates resolution, fan-out fetching, normalization, and the
// merge into an evidence pack. Fetcher instances are injected so tests can
// swap in fakes.
type Service struct {
	resolver  *Resolver
	kma       Fetcher
	openMeteo Fetcher
	pest      Fetcher
	clock     clockwork.Clock
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock overrides the clock used for the issued-at fallback and the
// daily horizon origin.
func WithClock(clock clockwork.Clock) ServiceOption {
	return func(s *Service) {
		s.clock = clock
	}
}

// NewService creates the aggregation service.
func NewService(resolver *Resolver, kmaF, openMeteoF, pestF Fetcher, opts ...ServiceOption) *Service {
	s := &Service{
		resolver:  resolver,
		kma:       kmaF,
		openMeteo: openMeteoF,
		pest:      pestF,
		clock:     clockwork.NewRealClock(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Aggregate produces the evidence pack for one request. It fails only on a
// resolution miss or when every source came back empty; partial source
// failure shows up as missing provenance entries, not as an error.
func (s *Service) Aggregate(ctx context.Context, req Request) (*model.EvidencePack, error) {
	crop, err := model.ParseCrop(req.Crop)
	if err != nil {
		return nil, eris.Wrap(ErrInvalidProfile, err.Error())
	}
	profile := model.Profile{Region: req.Region, Crop: crop, Stage: req.Stage}

	if req.Demo {
		bundle := demoBundleFor(profile.Region, profile.Crop)
		if bundle == nil {
			return nil, eris.Wrapf(ErrNoDemoData, "%s/%s", profile.Region, profile.Crop)
		}
		return s.assemble(profile, bundle.KMA, bundle.OpenMeteo, bundle.NPMS)
	}

	resolved, err := s.resolver.Resolve(profile)
	if err != nil {
		return nil, err
	}

	started := s.clock.Now()
	var kmaRaw, omRaw, pestRaw *upstream.Bundle

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		kmaRaw = s.kma.Fetch(gctx, resolved)
		return nil
	})
	g.Go(func() error {
		omRaw = s.openMeteo.Fetch(gctx, resolved)
		return nil
	})
	g.Go(func() error {
		pestRaw = s.pest.Fetch(gctx, resolved)
		return nil
	})
	_ = g.Wait()

	zap.L().Info("aggregation fetch complete",
		zap.String("region", profile.Region),
		zap.String("crop", string(profile.Crop)),
		zap.Bool("kma_fetched", kmaRaw != nil),
		zap.Bool("open_meteo_fetched", omRaw != nil),
		zap.Bool("pest_fetched", pestRaw != nil),
		zap.Duration("duration", s.clock.Since(started)),
	)

	return s.assemble(profile, kmaRaw, omRaw, pestRaw)
}

// assemble runs the shared normalize/merge path over three raw bundles.
func (s *Service) assemble(profile model.Profile, kmaRaw, omRaw, pestRaw *upstream.Bundle) (*model.EvidencePack, error) {
	if kmaRaw.IsEmpty() && omRaw.IsEmpty() && pestRaw.IsEmpty() {
		return nil, ErrUpstreamUnavailable
	}

	kmaNorm := NormalizeKMA(kmaRaw)
	omNorm := NormalizeOpenMeteo(omRaw)
	pestNorm := NormalizePest(pestRaw)

	now := s.clock.Now().In(model.Seoul())
	issuedAt := mergeIssuedAt(now, kmaNorm.IssuedAt, omNorm.IssuedAt)

	daily := mergeDaily(model.DateOf(issuedAt), kmaNorm.Daily, omNorm.Daily)
	hourly := mergeHourly(kmaNorm.Hourly, omNorm.Hourly)
	warnings := kmaNorm.Warnings

	pack := &model.EvidencePack{
		Profile:          profile,
		IssuedAt:         issuedAt,
		Daily:            daily,
		Hourly:           hourly,
		Warnings:         warnings,
		PestObservations: pestNorm.Observations,
		PestBulletins:    pestNorm.Bulletins,
		PestHints:        ComputePestHints(pestNorm.Observations),
		Provenance:       mergeProvenance(kmaNorm.Provenance, omNorm.Provenance, pestNorm.Provenance),
		Derived:          ComputeDerivedHints(daily, hourly, warnings),
	}
	return pack, nil
}
