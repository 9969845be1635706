// Package report turns an evidence pack into farmer-facing text in two
// stages: a detailed Korean report, then an SMS-ready brief distilled from
// it.
package report

import (
	"context"

	"github.com/parut/agri-advisor/internal/model"
)

// Result is the output of the full pipeline for one evidence pack.
type Result struct {
	DetailedReport string `json:"detailed_report"`
	Brief          string `json:"brief"`
}

// Generator produces both report stages for an evidence pack. The
// aggregation service and CLI consume this interface so tests can inject
// fakes.
type Generator interface {
	Generate(ctx context.Context, pack *model.EvidencePack) (*Result, error)
}
