package report

import (
	"context"
	"encoding/json"
)

// Analysis is one agent's raw evaluation+feedback pair. Raw JSON is kept so
// the study-plan payload can carry the blocks through unchanged; the PDF
// renderer parses them into the typed shapes below.
type Analysis struct {
	Evaluation json.RawMessage `json:"evaluation"`
	Feedback   json.RawMessage `json:"feedback"`
}

// CriterionScore is one scored metric inside an evaluation block.
type CriterionScore struct {
	Score         float64 `json:"score"`
	MaxScore      float64 `json:"max_score"`
	Justification string  `json:"justification"`
}

// OverallScore is the "overall" entry of an evaluation block.
type OverallScore struct {
	Score               float64  `json:"score"`
	MaxScore            float64  `json:"max_score"`
	Strengths           []string `json:"strengths"`
	AreasForImprovement []string `json:"areas_for_improvement"`
	Summary             string   `json:"summary"`
}

// Evaluation is a parsed evaluation block: named criteria plus the overall
// entry.
type Evaluation struct {
	Criteria map[string]CriterionScore
	Overall  OverallScore
}

func (e *Evaluation) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	e.Criteria = make(map[string]CriterionScore)
	for name, block := range raw {
		if name == "overall" {
			if err := json.Unmarshal(block, &e.Overall); err != nil {
				return err
			}
			continue
		}
		var score CriterionScore
		if err := json.Unmarshal(block, &score); err != nil {
			// Non-object entries (scratch notes etc.) are skipped rather
			// than failing the whole report.
			continue
		}
		e.Criteria[name] = score
	}
	return nil
}

// Feedback is a parsed feedback block keyed by the fixed section names the
// agents are prompted with.
type Feedback map[string][]string

type UserInfo struct {
	Username string
	Name     string
	Age      string
	Email    string
}

type PeriodPlan struct {
	Goals       []string `json:"goals"`
	ActionSteps []string `json:"action_steps"`
}

type StudyPlan struct {
	Introduction struct {
		Summary                string   `json:"summary"`
		KeyAreasForImprovement []string `json:"key_areas_for_improvement"`
	} `json:"introduction"`
	DetailedImprovementPlan struct {
		OneMonth    PeriodPlan `json:"1_month_plan"`
		ThreeMonth  PeriodPlan `json:"3_month_plan"`
		SixMonth    PeriodPlan `json:"6_month_plan"`
		TwelveMonth PeriodPlan `json:"12_month_plan"`
	} `json:"detailed_improvement_plan"`
	ActionSchedule struct {
		DailyActions   []string `json:"daily_actions"`
		WeeklyActions  []string `json:"weekly_actions"`
		MonthlyActions []string `json:"monthly_actions"`
	} `json:"action_schedule"`
	Resources map[string][]string `json:"resources"`
}

// FullReportData is the assembled payload handed to the document renderer.
type FullReportData struct {
	UserInfo   UserInfo
	Vocabulary Analysis
	Tense      Analysis
	Style      Analysis
	Grammar    Analysis
	Audio      Analysis
	StudyPlan  StudyPlan
}

// Store is the persistence slice the assemblers need.
type Store interface {
	GetUserInfo(ctx context.Context, username string, below int) ([]string, error)
	GetAllUserResponses(ctx context.Context, username string) ([]string, error)
	MarkFullReportSent(ctx context.Context, username string) error
}

// TextAnalyzer runs the four essay analyses and the study plan.
type TextAnalyzer interface {
	AnalyzeVocabulary(ctx context.Context, responses string) (string, error)
	AnalyzeTenses(ctx context.Context, responses string) (string, error)
	AnalyzeStyle(ctx context.Context, responses string) (string, error)
	AnalyzeGrammar(ctx context.Context, responses string) (string, error)
	RunStudyPlan(ctx context.Context, payload string) (string, error)
}

// PronunciationAnalyzer evaluates the transcribed voice answers.
type PronunciationAnalyzer interface {
	EvaluatePronunciation(ctx context.Context, transcripts string) (string, error)
}

// MiniAgent produces the teaser evaluation.
type MiniAgent interface {
	RunMiniReport(ctx context.Context, responses string) (string, error)
}

// Renderer turns the assembled payload into a document on disk.
type Renderer interface {
	Render(data *FullReportData) (string, error)
}
