package report

import (
	"context"

	"github.com/parut/agri-advisor/internal/model"
	"github.com/parut/agri-advisor/pkg/anthropic"
)

// Pipeline is the two-stage Generator: detailed report first, brief second.
type Pipeline struct {
	writer  *Writer
	refiner *Refiner
}

// NewPipeline assembles the pipeline on one model client.
func NewPipeline(client anthropic.Client) *Pipeline {
	return &Pipeline{
		writer:  NewWriter(client),
		refiner: NewRefiner(client),
	}
}

// Generate runs both stages. A refiner failure fails the whole generation;
// an advisory without a brief cannot be delivered.
func (p *Pipeline) Generate(ctx context.Context, pack *model.EvidencePack) (*Result, error) {
	detailed, err := p.writer.Write(ctx, pack)
	if err != nil {
		return nil, err
	}

	brief, err := p.refiner.Refine(ctx, detailed)
	if err != nil {
		return nil, err
	}

	return &Result{DetailedReport: detailed, Brief: brief}, nil
}
