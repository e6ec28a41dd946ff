package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTagged(t *testing.T) {
	response := "Some preamble.\n<evaluation>\n{\"score\": 7}\n</evaluation>\nTrailing notes."

	block, err := ExtractTagged(response, EvaluationTag)
	require.NoError(t, err)
	assert.JSONEq(t, `{"score": 7}`, string(block))
}

func TestExtractTaggedMissingOpenMarker(t *testing.T) {
	_, err := ExtractTagged(`{"score": 7}</evaluation>`, EvaluationTag)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "<evaluation>")
}

func TestExtractTaggedMissingCloseMarker(t *testing.T) {
	_, err := ExtractTagged(`<evaluation>{"score": 7}`, EvaluationTag)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "</evaluation>")
}

func TestExtractTaggedRejectsInvalidJSON(t *testing.T) {
	_, err := ExtractTagged("<evaluation>not json</evaluation>", EvaluationTag)
	require.Error(t, err)
}

func TestParseAnalysis(t *testing.T) {
	response := "<evaluation>{\"clarity\": {\"score\": 6, \"max_score\": 10}}</evaluation>\n" +
		"<feedback>{\"strengths\": [\"good range\"]}</feedback>"

	analysis, err := ParseAnalysis(response)
	require.NoError(t, err)
	assert.JSONEq(t, `{"clarity": {"score": 6, "max_score": 10}}`, string(analysis.Evaluation))
	assert.JSONEq(t, `{"strengths": ["good range"]}`, string(analysis.Feedback))
}

func TestParseAnalysisRequiresBothBlocks(t *testing.T) {
	_, err := ParseAnalysis(`<evaluation>{"a": 1}</evaluation>`)
	require.Error(t, err)
}

func TestEvaluationUnmarshalSkipsNonObjectEntries(t *testing.T) {
	raw := `{
		"clarity": {"score": 6, "max_score": 10, "justification": "ok"},
		"notes": "free-form scratch text",
		"overall": {"score": 7, "max_score": 10, "strengths": ["s"], "areas_for_improvement": ["a"], "summary": "fine"}
	}`

	var evaluation Evaluation
	require.NoError(t, evaluation.UnmarshalJSON([]byte(raw)))

	assert.Len(t, evaluation.Criteria, 1)
	assert.Equal(t, 6.0, evaluation.Criteria["clarity"].Score)
	assert.Equal(t, 7.0, evaluation.Overall.Score)
	assert.Equal(t, "fine", evaluation.Overall.Summary)
}
