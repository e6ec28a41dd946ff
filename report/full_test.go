package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"englishbuddy/logger"
	"englishbuddy/questionnaire"
)

func analysisResponse(label string) string {
	return fmt.Sprintf(
		`<evaluation>{"clarity": {"score": 5, "max_score": 10, "justification": "%s"}, "overall": {"score": 6, "max_score": 10, "summary": "%s"}}</evaluation>`+
			`<feedback>{"notes": ["%s"]}</feedback>`,
		label, label, label)
}

const studyPlanResponse = `<output>
{
	"introduction": {"summary": "solid base", "key_areas_for_improvement": ["tenses"]},
	"detailed_improvement_plan": {
		"1_month_plan": {"goals": ["g1"], "action_steps": ["s1"]},
		"3_month_plan": {"goals": ["g3"], "action_steps": ["s3"]},
		"6_month_plan": {"goals": ["g6"], "action_steps": ["s6"]},
		"12_month_plan": {"goals": ["g12"], "action_steps": ["s12"]}
	},
	"action_schedule": {"daily_actions": ["d"], "weekly_actions": ["w"], "monthly_actions": ["m"]},
	"resources": {"books": ["b1"], "series": ["s1"]}
}
</output>`

type fakeTextAnalyzer struct {
	mu     sync.Mutex
	inputs map[string]string

	vocabularyErr error
	studyPlanErr  error
	planInput     string
}

func (f *fakeTextAnalyzer) record(name, input string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inputs == nil {
		f.inputs = map[string]string{}
	}
	f.inputs[name] = input
}

func (f *fakeTextAnalyzer) AnalyzeVocabulary(ctx context.Context, responses string) (string, error) {
	f.record("vocabulary", responses)
	if f.vocabularyErr != nil {
		return "", f.vocabularyErr
	}
	return analysisResponse("vocabulary"), nil
}

func (f *fakeTextAnalyzer) AnalyzeTenses(ctx context.Context, responses string) (string, error) {
	f.record("tense", responses)
	return analysisResponse("tense"), nil
}

func (f *fakeTextAnalyzer) AnalyzeStyle(ctx context.Context, responses string) (string, error) {
	f.record("style", responses)
	return analysisResponse("style"), nil
}

func (f *fakeTextAnalyzer) AnalyzeGrammar(ctx context.Context, responses string) (string, error) {
	f.record("grammar", responses)
	return analysisResponse("grammar"), nil
}

func (f *fakeTextAnalyzer) RunStudyPlan(ctx context.Context, payload string) (string, error) {
	f.planInput = payload
	if f.studyPlanErr != nil {
		return "", f.studyPlanErr
	}
	return studyPlanResponse, nil
}

type fakePronunciationAnalyzer struct {
	input string
	err   error
}

func (f *fakePronunciationAnalyzer) EvaluatePronunciation(ctx context.Context, transcripts string) (string, error) {
	f.input = transcripts
	if f.err != nil {
		return "", f.err
	}
	return analysisResponse("pronunciation"), nil
}

type fakeRenderer struct {
	data *FullReportData
	path string
	err  error
}

func (f *fakeRenderer) Render(data *FullReportData) (string, error) {
	f.data = data
	if f.err != nil {
		return "", f.err
	}
	return f.path, nil
}

func completedStore() *fakeReportStore {
	return &fakeReportStore{
		info: []string{"Anna Lee", "25", "anna@example.com"},
		responses: []string{
			"эссе один", "эссе два", "эссе три",
			"transcript one", "transcript two", "transcript three",
		},
	}
}

func newFullAssembler(store *fakeReportStore, text *fakeTextAnalyzer, pron *fakePronunciationAnalyzer, renderer *fakeRenderer) *FullAssembler {
	return NewFullAssembler(FullAssemblerProps{
		Logger:        logger.Connect(logger.LoggerConnectProps{}),
		Catalog:       questionnaire.DefaultCatalog(),
		Store:         store,
		Text:          text,
		Pronunciation: pron,
		Renderer:      renderer,
	})
}

func TestFullAssemblePipeline(t *testing.T) {
	store := completedStore()
	text := &fakeTextAnalyzer{}
	pron := &fakePronunciationAnalyzer{}
	renderer := &fakeRenderer{path: "reports/anna.pdf"}

	path, err := newFullAssembler(store, text, pron, renderer).Assemble(context.Background(), "anna")
	require.NoError(t, err)
	assert.Equal(t, "reports/anna.pdf", path)
	assert.Equal(t, 1, store.fullSentMarks)

	// Essay analyses get the essays, pronunciation gets the transcripts.
	for _, name := range []string{"vocabulary", "tense", "style", "grammar"} {
		assert.Contains(t, text.inputs[name], "эссе один", name)
		assert.NotContains(t, text.inputs[name], "transcript one", name)
	}
	assert.Contains(t, pron.input, "transcript one")
	assert.NotContains(t, pron.input, "эссе один")

	require.NotNil(t, renderer.data)
	assert.Equal(t, "Anna Lee", renderer.data.UserInfo.Name)
	assert.Equal(t, "25", renderer.data.UserInfo.Age)
	assert.Equal(t, "anna@example.com", renderer.data.UserInfo.Email)
	assert.Equal(t, "solid base", renderer.data.StudyPlan.Introduction.Summary)
	assert.Equal(t, []string{"g12"}, renderer.data.StudyPlan.DetailedImprovementPlan.TwelveMonth.Goals)

	// The study plan payload carries all five analyses through unchanged.
	var payload map[string]Analysis
	require.NoError(t, json.Unmarshal([]byte(text.planInput), &payload))
	assert.Len(t, payload, 5)
	assert.Contains(t, string(payload["pronunciation"].Evaluation), "pronunciation")
}

func TestFullAssembleFailsOnAnalysisError(t *testing.T) {
	store := completedStore()
	text := &fakeTextAnalyzer{vocabularyErr: errors.New("rate limited")}
	renderer := &fakeRenderer{path: "x.pdf"}

	_, err := newFullAssembler(store, text, &fakePronunciationAnalyzer{}, renderer).Assemble(context.Background(), "anna")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vocabulary")
	assert.Zero(t, store.fullSentMarks)
}

func TestFullAssembleFailsOnStudyPlanError(t *testing.T) {
	store := completedStore()
	text := &fakeTextAnalyzer{studyPlanErr: errors.New("timeout")}

	_, err := newFullAssembler(store, text, &fakePronunciationAnalyzer{}, &fakeRenderer{path: "x.pdf"}).Assemble(context.Background(), "anna")
	require.Error(t, err)
	assert.Zero(t, store.fullSentMarks)
}

func TestFullAssembleFailsOnIncompleteResponses(t *testing.T) {
	store := completedStore()
	store.responses = store.responses[:4]

	_, err := newFullAssembler(store, &fakeTextAnalyzer{}, &fakePronunciationAnalyzer{}, &fakeRenderer{path: "x.pdf"}).Assemble(context.Background(), "anna")
	require.Error(t, err)
}

func TestFullAssembleFailsOnIncompleteBasicInfo(t *testing.T) {
	store := completedStore()
	store.info = []string{"Anna Lee"}

	_, err := newFullAssembler(store, &fakeTextAnalyzer{}, &fakePronunciationAnalyzer{}, &fakeRenderer{path: "x.pdf"}).Assemble(context.Background(), "anna")
	require.Error(t, err)
}

func TestFullAssembleDoesNotMarkSentOnRenderFailure(t *testing.T) {
	store := completedStore()
	renderer := &fakeRenderer{err: errors.New("disk full")}

	_, err := newFullAssembler(store, &fakeTextAnalyzer{}, &fakePronunciationAnalyzer{}, renderer).Assemble(context.Background(), "anna")
	require.Error(t, err)
	assert.Zero(t, store.fullSentMarks)
}
