package report

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parut/agri-advisor/internal/model"
	"github.com/parut/agri-advisor/pkg/anthropic"
)

// fakeModel scripts one response per Generate call, in order.
type fakeModel struct {
	responses []string
	err       error
	requests  []anthropic.GenerateRequest
}

func (f *fakeModel) Generate(_ context.Context, req anthropic.GenerateRequest) (*anthropic.GenerateResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	text := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return &anthropic.GenerateResponse{Text: text, Model: "fake-model"}, nil
}

func testPack() *model.EvidencePack {
	return &model.EvidencePack{
		Profile: model.Profile{Region: "andong-si", Crop: model.CropApple, Stage: "수확기"},
	}
}

func TestWriterBuildsEvidencePrompt(t *testing.T) {
	fake := &fakeModel{responses: []string{"상세 보고서 본문"}}
	w := NewWriter(fake)

	detailed, err := w.Write(context.Background(), testPack())
	require.NoError(t, err)
	assert.Equal(t, "상세 보고서 본문", detailed)

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	assert.Contains(t, req.System, "농업 기상")
	assert.Contains(t, req.Prompt, "지역: andong-si")
	assert.Contains(t, req.Prompt, "[작성 지침]")
	assert.Equal(t, writerMaxTokens, req.MaxTokens)
}

func TestWriterPropagatesError(t *testing.T) {
	fake := &fakeModel{err: eris.New("api down")}
	w := NewWriter(fake)

	_, err := w.Write(context.Background(), testPack())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generate detailed report")
}

func TestRefinerWrapsReport(t *testing.T) {
	fake := &fakeModel{responses: []string{"1. 방제 준비\n2. 환기 점검\n"}}
	r := NewRefiner(fake)

	brief, err := r.Refine(context.Background(), "상세 보고서 본문")
	require.NoError(t, err)
	assert.Equal(t, "1. 방제 준비\n2. 환기 점검", brief, "output is trimmed")

	require.Len(t, fake.requests, 1)
	assert.Contains(t, fake.requests[0].Prompt, "130자")
	assert.Contains(t, fake.requests[0].Prompt, "=== 보고서 원문 ===")
	assert.Contains(t, fake.requests[0].Prompt, "상세 보고서 본문")
}

func TestRefinerCapsLength(t *testing.T) {
	long := strings.Repeat("가", 600)
	fake := &fakeModel{responses: []string{long}}
	r := NewRefiner(fake)

	brief, err := r.Refine(context.Background(), "상세 보고서")
	require.NoError(t, err)
	runes := []rune(brief)
	assert.Len(t, runes, briefMaxRunes)
	assert.Equal(t, '…', runes[len(runes)-1])
}

func TestRefinerRejectsEmptyReport(t *testing.T) {
	r := NewRefiner(&fakeModel{})

	_, err := r.Refine(context.Background(), "   ")
	require.Error(t, err)
}

func TestPipelineGenerate(t *testing.T) {
	fake := &fakeModel{responses: []string{"상세 보고서 본문", "1. 방제 준비"}}
	p := NewPipeline(fake)

	res, err := p.Generate(context.Background(), testPack())
	require.NoError(t, err)
	assert.Equal(t, "상세 보고서 본문", res.DetailedReport)
	assert.Equal(t, "1. 방제 준비", res.Brief)
	assert.Len(t, fake.requests, 2)
	// The refiner sees the writer's output, not the evidence prompt.
	assert.Contains(t, fake.requests[1].Prompt, "상세 보고서 본문")
}

func TestPipelineStopsOnWriterFailure(t *testing.T) {
	fake := &fakeModel{err: eris.New("quota exceeded")}
	p := NewPipeline(fake)

	_, err := p.Generate(context.Background(), testPack())
	require.Error(t, err)
	assert.Len(t, fake.requests, 1)
}
