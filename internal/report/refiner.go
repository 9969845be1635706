package report

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/parut/agri-advisor/pkg/anthropic"
)

const refinerSystem = "당신은 농업 전문가로서, 상세 보고서를 현장의 농업인에게 문자로 전달할 요약으로 바꿉니다."

const refinerInstructions = "아래 보고서를 분석해서, 농장주가 향후 2주간 가장 시급하게 대응해야 할 사항을 중심으로 요약해 주세요. " +
	"최대한 간결하게 필요한 내용만 총 130자 내로 작성해주세요.\n" +
	"조건:\n" +
	"- 대상: 농사일로 바쁜 농장주가 쉽게 이해할 수 있도록 작성\n" +
	"- 형식: 가장 중요한 순서대로 최대 3개 항목에 번호를 매겨 목록으로 정리, 본문만, 마크다운 없이 작성\n" +
	"- 내용: 각 항목에 '무엇을(What)', '언제(When)' 해야 하는지 한 문장으로, 간략하게 작성\n" +
	"- 언어: 전문 용어 대신 쉽고 간결한 표현 사용, 고유명사는 그대로\n\n" +
	"=== 보고서 원문 ===\n"

const (
	refinerMaxTokens = 512

	// briefMaxRunes caps the final brief so it never spills into a
	// multi-part SMS.
	briefMaxRunes = 450
)

// Refiner compresses a detailed report into an SMS-ready brief.
type Refiner struct {
	client anthropic.Client
}

// NewRefiner creates a brief refiner.
func NewRefiner(client anthropic.Client) *Refiner {
	return &Refiner{client: client}
}

// Refine produces the brief for a detailed report. The model output is
// trimmed and hard-capped at the SMS length bound.
func (r *Refiner) Refine(ctx context.Context, detailedReport string) (string, error) {
	if strings.TrimSpace(detailedReport) == "" {
		return "", eris.New("report: empty detailed report")
	}

	resp, err := r.client.Generate(ctx, anthropic.GenerateRequest{
		System:    refinerSystem,
		Prompt:    refinerInstructions + detailedReport,
		MaxTokens: refinerMaxTokens,
	})
	if err != nil {
		return "", eris.Wrap(err, "report: refine brief")
	}
	resp.Usage.LogCost(resp.Model, "brief")

	return capRunes(strings.TrimSpace(resp.Text), briefMaxRunes), nil
}

func capRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
