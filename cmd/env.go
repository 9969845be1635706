package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/parut/agri-advisor/internal/aggregate"
	"github.com/parut/agri-advisor/internal/report"
	"github.com/parut/agri-advisor/internal/store"
	"github.com/parut/agri-advisor/pkg/anthropic"
	"github.com/parut/agri-advisor/pkg/kma"
	"github.com/parut/agri-advisor/pkg/npms"
	"github.com/parut/agri-advisor/pkg/openmeteo"
	"github.com/parut/agri-advisor/pkg/solapi"
)

// appEnv bundles the wired application components shared by the commands.
type appEnv struct {
	Store     store.Store
	Service   *aggregate.Service
	Generator report.Generator
	SMS       solapi.Client
}

func (e *appEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

// initEnv wires every component from configuration. The aggregation service
// is always available; the report generator requires an Anthropic key.
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	kmaClient := kma.NewClient(cfg.KMA.AuthKey, kma.WithBaseURL(cfg.KMA.BaseURL))
	omClient := openmeteo.NewClient(openmeteo.WithBaseURL(cfg.OpenMeteo.BaseURL))
	npmsClient := npms.NewClient(cfg.NPMS.APIKey,
		npms.WithBaseURL(cfg.NPMS.BaseURL),
		npms.WithDefaultInsectKey(cfg.NPMS.DefaultInsectKey),
	)

	service := aggregate.NewService(
		aggregate.NewResolver(),
		aggregate.NewKMAFetcher(kmaClient),
		aggregate.NewOpenMeteoFetcher(omClient),
		aggregate.NewPestFetcher(npmsClient),
	)

	env := &appEnv{
		Store:   st,
		Service: service,
		SMS: solapi.NewClient(solapi.Config{
			APIKey:    cfg.SMS.APIKey,
			APISecret: cfg.SMS.APISecret,
			Sender:    cfg.SMS.Sender,
			DryRun:    cfg.SMS.DryRun,
		}),
	}

	if cfg.Anthropic.Key != "" {
		client := anthropic.NewClient(cfg.Anthropic.Key, anthropic.WithModel(cfg.Anthropic.Model))
		env.Generator = report.NewPipeline(client)
	}

	return env, nil
}

// requireGenerator returns the report generator or a configuration error.
func (e *appEnv) requireGenerator() (report.Generator, error) {
	if e.Generator == nil {
		return nil, eris.New("anthropic key is not configured; set AGRI_ANTHROPIC_KEY")
	}
	return e.Generator, nil
}

func openStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite", "":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}
