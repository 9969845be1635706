package aggregate

import (
	"fmt"
	"strings"

	"github.com/parut/agri-advisor/internal/model"
)

const (
	// targetMetricCode is the NPMS series for 복숭아순나방 트랩당마리수.
	targetMetricCode = "SS0127"

	peachMothThreshold = 10.0
)

// ComputePestHints emits advisory strings for observations at or above the
// action threshold. It operates on the normalized, zero-filtered list, never
// on raw fetcher output.
func ComputePestHints(observations []model.PestObservation) []string {
	var hints []string
	for _, obs := range observations {
		if obs.Code != targetMetricCode {
			continue
		}
		if obs.Value == nil || *obs.Value < peachMothThreshold {
			continue
		}

		area := obs.Area
		if area == "" {
			area = "안동시"
		}
		hints = append(hints, fmt.Sprintf(
			"%s 복숭아순나방(트랩당마리수) %s마리 관측 — 10마리 이상으로 높음. 살충제 방제 검토를 권장합니다 (출처: NPMS SVC53).",
			area, formatCount(*obs.Value),
		))
	}
	return hints
}

// formatCount renders a trap count with up to two decimals and no trailing
// zeros.
func formatCount(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
