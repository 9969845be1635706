package report

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/parut/agri-advisor/internal/aggregate"
	"github.com/parut/agri-advisor/internal/model"
	"github.com/parut/agri-advisor/pkg/anthropic"
)

const writerSystem = "당신은 농업 기상과 병해충 데이터를 바탕으로 향후 2주 농작업 보고서를 작성하는 전문가입니다. " +
	"제공된 근거 자료만 사용하고, 출처와 연도를 인용하며, 구조화된 단락으로 작성하세요."

const writerMaxTokens int64 = 2048

// Writer produces the detailed Korean report from an evidence pack.
type Writer struct {
	client anthropic.Client
}

// NewWriter creates a detailed-report writer.
func NewWriter(client anthropic.Client) *Writer {
	return &Writer{client: client}
}

// Write renders the evidence prompt and asks the model for the detailed
// report.
func (w *Writer) Write(ctx context.Context, pack *model.EvidencePack) (string, error) {
	prompt := aggregate.BuildEvidencePrompt(pack)

	resp, err := w.client.Generate(ctx, anthropic.GenerateRequest{
		System:    writerSystem,
		Prompt:    prompt,
		MaxTokens: writerMaxTokens,
	})
	if err != nil {
		return "", eris.Wrap(err, "report: generate detailed report")
	}

	resp.Usage.LogCost(resp.Model, "detailed_report")
	zap.L().Debug("detailed report generated",
		zap.String("region", pack.Profile.Region),
		zap.String("crop", string(pack.Profile.Crop)),
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("report_chars", len(resp.Text)),
	)
	return resp.Text, nil
}
