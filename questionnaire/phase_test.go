package questionnaire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyBoundaries(t *testing.T) {
	catalog := DefaultCatalog()

	tests := []struct {
		index int
		phase Phase
		local int
	}{
		{-1, PhaseNotStarted, 0},
		{0, PhaseNotStarted, 0},
		{1, PhaseBasic, 0},
		{3, PhaseBasic, 2},
		{4, PhaseChoice, 0},
		{11, PhaseChoice, 7},
		{12, PhaseEssay, 0},
		{14, PhaseEssay, 2},
		{15, PhaseAudio, 0},
		{17, PhaseAudio, 2},
		{18, PhaseCompleted, 0},
		{100, PhaseCompleted, 0},
	}

	for _, tc := range tests {
		phase, local := catalog.Classify(tc.index)
		assert.Equal(t, tc.phase, phase, "index %d", tc.index)
		assert.Equal(t, tc.local, local, "index %d", tc.index)
	}
}

func TestClassifyCoversEveryIndexExactlyOnce(t *testing.T) {
	catalog := DefaultCatalog()
	total := catalog.TotalQuestions()

	counts := map[Phase]int{}
	for index := 0; index <= total+5; index++ {
		phase, local := catalog.Classify(index)
		counts[phase]++
		assert.GreaterOrEqual(t, local, 0, "index %d", index)
	}

	assert.Equal(t, 1, counts[PhaseNotStarted])
	assert.Equal(t, len(catalog.BasicQuestions), counts[PhaseBasic])
	assert.Equal(t, len(catalog.ChoiceQuestions), counts[PhaseChoice])
	assert.Equal(t, len(catalog.EssayQuestions), counts[PhaseEssay])
	assert.Equal(t, len(catalog.AudioQuestions), counts[PhaseAudio])
	assert.Equal(t, 6, counts[PhaseCompleted])
}

func TestClassifyLocalIndexStaysInPhaseRange(t *testing.T) {
	catalog := DefaultCatalog()

	sizes := map[Phase]int{
		PhaseBasic:  len(catalog.BasicQuestions),
		PhaseChoice: len(catalog.ChoiceQuestions),
		PhaseEssay:  len(catalog.EssayQuestions),
		PhaseAudio:  len(catalog.AudioQuestions),
	}

	for index := 1; index <= catalog.TotalQuestions(); index++ {
		phase, local := catalog.Classify(index)
		assert.Less(t, local, sizes[phase], "index %d phase %s", index, phase)
	}
}
