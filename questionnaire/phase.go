package questionnaire

// Phase identifies which contiguous range of the questionnaire an absolute
// question index falls into.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseBasic
	PhaseChoice
	PhaseEssay
	PhaseAudio
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not_started"
	case PhaseBasic:
		return "basic"
	case PhaseChoice:
		return "choice"
	case PhaseEssay:
		return "essay"
	case PhaseAudio:
		return "audio"
	case PhaseCompleted:
		return "completed"
	}
	return "unknown"
}

// Classify maps an absolute question index to its phase and the 0-based index
// within that phase. Index 0 is the pre-start sentinel and anything past the
// last audio question is completed; the local index is 0 for both.
func (c *Catalog) Classify(index int) (Phase, int) {
	basic := len(c.BasicQuestions)
	choice := len(c.ChoiceQuestions)
	essay := len(c.EssayQuestions)
	audio := len(c.AudioQuestions)

	switch {
	case index <= 0:
		return PhaseNotStarted, 0
	case index <= basic:
		return PhaseBasic, index - 1
	case index <= basic+choice:
		return PhaseChoice, index - basic - 1
	case index <= basic+choice+essay:
		return PhaseEssay, index - basic - choice - 1
	case index <= basic+choice+essay+audio:
		return PhaseAudio, index - basic - choice - essay - 1
	default:
		return PhaseCompleted, 0
	}
}
