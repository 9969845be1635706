package aggregate

import (
	"fmt"
	"strings"

	"github.com/parut/agri-advisor/internal/model"
)

// BuildEvidencePrompt renders an evidence pack as the prompt handed to the
// detailed-report writer: profile header, up to 11 daily summary lines,
// the pest observation block, deterministic hints, and fixed authoring
// instructions.
func BuildEvidencePrompt(pack *model.EvidencePack) string {
	var b strings.Builder

	fmt.Fprintf(&b, "지역: %s\n작물: %s / 생육 단계: %s\n", pack.Profile.Region, pack.Profile.Crop, pack.Profile.Stage)
	fmt.Fprintf(&b, "자료 기준 시각: %s (KST)\n", pack.IssuedAt.Format("2006-01-02 15:04"))

	b.WriteString("\n[기상 요약]\n")
	daily := pack.Daily
	if len(daily) > dailyHorizonDays {
		daily = daily[:dailyHorizonDays]
	}
	for _, d := range daily {
		if line := formatDailyLine(d); line != "" {
			b.WriteString("- " + line + "\n")
		}
	}
	if len(pack.Provenance) > 0 {
		b.WriteString("출처: " + strings.Join(pack.Provenance, ", ") + "\n")
	}

	b.WriteString("\n[병해충 관측(필터링)]\n")
	if len(pack.PestObservations) == 0 && len(pack.PestBulletins) == 0 {
		b.WriteString("- (없음)\n")
	}
	for _, obs := range pack.PestObservations {
		if obs.Value == nil {
			continue
		}
		fmt.Fprintf(&b, "- %s %s(%s) = %s", obs.Area, obs.Pest, obs.Metric, formatCount(*obs.Value))
		if obs.Unit != "" {
			b.WriteString(obs.Unit)
		}
		b.WriteString("\n")
	}
	for _, bl := range pack.PestBulletins {
		fmt.Fprintf(&b, "- %s 위험도 %s (%s): %s\n", bl.Pest, bl.Risk, bl.Since, bl.Summary)
	}

	b.WriteString("\n[참고 힌트]\n")
	if len(pack.PestHints) == 0 {
		b.WriteString("- (없음)\n")
	}
	for _, h := range pack.PestHints {
		b.WriteString("- " + h + "\n")
	}

	b.WriteString("\n[작성 지침]\n" +
		"- 한국어로 간결하고 실용적인 보고서를 작성하세요.\n" +
		"- 상위 3가지 권고를 제시하고, 각 권고마다 시기(언제)와 트리거(무엇)를 명확히 하세요.\n" +
		"- 최소 1개 이상의 출처+연도를 괄호로 인용하세요 (예: KMA 2025, NPMS 2025).\n" +
		"- 의학적/약제 직접 지시를 피하고, 필요 시 '검토 권고' 형태로 표현하세요.\n" +
		"- 원시 기상/관측 데이터가 힌트와 상충하면 원시 데이터를 우선하세요.\n")

	return b.String()
}

// formatDailyLine renders one daily record, omitting empty fields.
func formatDailyLine(d model.DailyRecord) string {
	parts := []string{d.Date.String()}

	if d.TminC != nil || d.TmaxC != nil {
		parts = append(parts, fmt.Sprintf("tmin/tmax=%s°C/%s°C", formatOptional(d.TminC), formatOptional(d.TmaxC)))
	}
	if d.PrecipMM != nil {
		parts = append(parts, fmt.Sprintf("precip_mm=%s", formatCount(*d.PrecipMM)))
	}
	if d.WindMS != nil {
		parts = append(parts, fmt.Sprintf("wind_ms=%s", formatCount(*d.WindMS)))
	}
	if d.Summary != "" {
		parts = append(parts, "summary="+d.Summary)
	}
	if d.PrecipProbabilityPct != nil {
		parts = append(parts, fmt.Sprintf("pop=%s%%", formatCount(*d.PrecipProbabilityPct)))
	}
	return strings.Join(parts, " | ")
}

func formatOptional(v *float64) string {
	if v == nil {
		return "-"
	}
	return formatCount(*v)
}
