package report

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"englishbuddy/logger"
	"englishbuddy/questionnaire"
)

type FullAssemblerProps struct {
	Logger        *logger.LogMiddleware
	Catalog       *questionnaire.Catalog
	Store         Store
	Text          TextAnalyzer
	Pronunciation PronunciationAnalyzer
	Renderer      Renderer
}

// FullAssembler orchestrates the paid report: five specialized analyses, the
// study plan, and the rendered document. The full-report-sent flag is only
// written after the whole pipeline succeeds.
type FullAssembler struct {
	logger        *logger.LogMiddleware
	catalog       *questionnaire.Catalog
	store         Store
	text          TextAnalyzer
	pronunciation PronunciationAnalyzer
	renderer      Renderer
}

func NewFullAssembler(args FullAssemblerProps) *FullAssembler {
	return &FullAssembler{
		logger:        args.Logger,
		catalog:       args.Catalog,
		store:         args.Store,
		text:          args.Text,
		pronunciation: args.Pronunciation,
		renderer:      args.Renderer,
	}
}

// studyPlanPayload folds the five analyses into the study-plan agent's input.
type studyPlanPayload struct {
	Vocabulary    Analysis `json:"vocabulary"`
	Tenses        Analysis `json:"tenses"`
	Style         Analysis `json:"style"`
	Grammar       Analysis `json:"grammar"`
	Pronunciation Analysis `json:"pronunciation"`
}

// Assemble runs the whole full-report pipeline and returns the path of the
// rendered document.
func (a *FullAssembler) Assemble(ctx context.Context, username string) (string, error) {
	tracer := otel.Tracer("report/FullAssemble")
	ctx, span := tracer.Start(ctx, "Assemble")
	defer span.End()

	span.SetAttributes(attribute.String("user.username", username))
	log := a.logger.Logger(ctx)
	log.Info("[Report] Generating full report", zap.String("username", username))

	data, err := a.collectAnalyses(ctx, username)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	path, err := a.renderer.Render(data)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("could not render report document: %w", err)
	}

	if err := a.store.MarkFullReportSent(ctx, username); err != nil {
		span.RecordError(err)
		return "", err
	}

	log.Info("[Report] Full report assembled",
		zap.String("username", username),
		zap.String("path", path),
	)
	return path, nil
}

func (a *FullAssembler) collectAnalyses(ctx context.Context, username string) (*FullReportData, error) {
	basicCount := len(a.catalog.BasicQuestions)
	info, err := a.store.GetUserInfo(ctx, username, basicCount+1)
	if err != nil {
		return nil, err
	}
	if len(info) < basicCount {
		return nil, fmt.Errorf("user %s has incomplete basic info (%d of %d fields)", username, len(info), basicCount)
	}

	responses, err := a.store.GetAllUserResponses(ctx, username)
	if err != nil {
		return nil, err
	}
	essayCount := len(a.catalog.EssayQuestions)
	audioCount := len(a.catalog.AudioQuestions)
	if len(responses) < essayCount+audioCount {
		return nil, fmt.Errorf("user %s has %d responses, need %d", username, len(responses), essayCount+audioCount)
	}

	essays := FormatQuestionAnswers(a.catalog.EssayQuestions, responses[:essayCount])
	transcripts := FormatQuestionAnswers(a.catalog.AudioQuestions, responses[essayCount:essayCount+audioCount])

	data := &FullReportData{
		UserInfo: UserInfo{
			Username: username,
			Name:     info[0],
			Age:      info[1],
			Email:    info[2],
		},
	}

	group, groupCtx := errgroup.WithContext(ctx)

	run := func(name string, analyze func(context.Context, string) (string, error), input string, target *Analysis) {
		group.Go(func() error {
			raw, err := analyze(groupCtx, input)
			if err != nil {
				return fmt.Errorf("%s analysis failed: %w", name, err)
			}
			analysis, err := ParseAnalysis(raw)
			if err != nil {
				return fmt.Errorf("%s analysis unusable: %w", name, err)
			}
			*target = analysis
			return nil
		})
	}

	run("vocabulary", a.text.AnalyzeVocabulary, essays, &data.Vocabulary)
	run("tense", a.text.AnalyzeTenses, essays, &data.Tense)
	run("style", a.text.AnalyzeStyle, essays, &data.Style)
	run("grammar", a.text.AnalyzeGrammar, essays, &data.Grammar)
	run("pronunciation", a.pronunciation.EvaluatePronunciation, transcripts, &data.Audio)

	if err := group.Wait(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(studyPlanPayload{
		Vocabulary:    data.Vocabulary,
		Tenses:        data.Tense,
		Style:         data.Style,
		Grammar:       data.Grammar,
		Pronunciation: data.Audio,
	})
	if err != nil {
		return nil, fmt.Errorf("could not fold study plan payload: %w", err)
	}

	rawPlan, err := a.text.RunStudyPlan(ctx, string(payload))
	if err != nil {
		return nil, fmt.Errorf("study plan failed: %w", err)
	}

	planBlock, err := ExtractTagged(rawPlan, OutputTag)
	if err != nil {
		return nil, fmt.Errorf("study plan response unusable: %w", err)
	}
	if err := json.Unmarshal(planBlock, &data.StudyPlan); err != nil {
		return nil, fmt.Errorf("could not parse study plan: %w", err)
	}

	return data, nil
}
