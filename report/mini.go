package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"englishbuddy/logger"
	"englishbuddy/questionnaire"
)

// MiniEvaluation is the structured block the mini-report agent embeds in its
// response.
type MiniEvaluation struct {
	EnglishLevel    string   `json:"english_level"`
	MistakesCount   int      `json:"mistakes_count"`
	WeakestAreas    []string `json:"weakest_areas"`
	MonthsToImprove int      `json:"months_to_improve"`
}

type MiniAssemblerProps struct {
	Logger  *logger.LogMiddleware
	Catalog *questionnaire.Catalog
	Store   Store
	Agent   MiniAgent
}

// MiniAssembler builds the free teaser report from the essay answers. There
// is no retry here: a malformed agent response propagates to the caller.
type MiniAssembler struct {
	logger  *logger.LogMiddleware
	catalog *questionnaire.Catalog
	store   Store
	agent   MiniAgent
}

func NewMiniAssembler(args MiniAssemblerProps) *MiniAssembler {
	return &MiniAssembler{
		logger:  args.Logger,
		catalog: args.Catalog,
		store:   args.Store,
		agent:   args.Agent,
	}
}

// Assemble pairs the essay answers with their prompts, runs the mini agent
// and renders the teaser text.
func (a *MiniAssembler) Assemble(ctx context.Context, username string) (string, error) {
	tracer := otel.Tracer("report/MiniAssemble")
	ctx, span := tracer.Start(ctx, "Assemble")
	defer span.End()

	span.SetAttributes(attribute.String("user.username", username))
	a.logger.Logger(ctx).Info("[Report] Generating mini report", zap.String("username", username))

	responses, err := a.store.GetAllUserResponses(ctx, username)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	essayCount := len(a.catalog.EssayQuestions)
	if len(responses) < essayCount {
		return "", fmt.Errorf("user %s has %d responses, need %d essays", username, len(responses), essayCount)
	}

	bundle := FormatQuestionAnswers(a.catalog.EssayQuestions, responses[:essayCount])

	raw, err := a.agent.RunMiniReport(ctx, bundle)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	block, err := ExtractTagged(raw, EvaluationTag)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("mini report response unusable: %w", err)
	}

	var evaluation MiniEvaluation
	if err := json.Unmarshal(block, &evaluation); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("could not parse mini evaluation: %w", err)
	}

	a.logger.Logger(ctx).Info("[Report] Mini report assembled",
		zap.String("username", username),
		zap.String("english_level", evaluation.EnglishLevel),
		zap.Int("mistakes_count", evaluation.MistakesCount),
	)

	return RenderMiniReport(evaluation, time.Now()), nil
}

// FormatQuestionAnswers pairs prompts with answers as "question:answer"
// blocks separated by "---", the format every text agent is prompted with.
func FormatQuestionAnswers(questions, answers []string) string {
	pairs := make([]string, 0, len(answers))
	for i, answer := range answers {
		question := ""
		if i < len(questions) {
			question = questions[i]
		}
		pairs = append(pairs, question+":"+answer)
	}
	return strings.Join(pairs, "\n---\n")
}

// RenderMiniReport fills the fixed teaser template. The discount window is 15
// minutes from now.
func RenderMiniReport(evaluation MiniEvaluation, now time.Time) string {
	expiry := now.Add(15 * time.Minute).Format("15:04")
	return "Ваш отчет готов! 🎉\n\n" +
		fmt.Sprintf("📚 Уровень Языка: %s\n", evaluation.EnglishLevel) +
		fmt.Sprintf("❌ Найдено ошибок: %d\n", evaluation.MistakesCount) +
		fmt.Sprintf("❗️ Главная трудность: %s\n", strings.Join(evaluation.WeakestAreas, " / ")) +
		fmt.Sprintf("⭐️ Возможность исправить всё за: %d месяцев\n", evaluation.MonthsToImprove) +
		"--------------------------------------------------------------------------------\n\n" +
		"🎁 Вам доступна скидка!\n\n" +
		"В течение ближайших 15 минут вы можете получить полный отчет от нашего авторского искусственного интеллекта (ИИ) со скидкой $130! 📉\n\n" +
		"Полный отчет включает:\n\n" +
		"🎯 Точная оценка вашего уровня языка\n" +
		"     💰 обычная цена 10$\n\n" +
		"🗣 Анализ акцента с персональными упражнениями\n" +
		"     💰 обычная цена 20$\n\n" +
		"⏰ Полный анализ понимания времен\n" +
		"     💰 обычная цена 15$\n\n" +
		"🎓 Оценка произношения по методике Кембриджа\n" +
		"     💰 обычная цена 30$\n\n" +
		"📋 Индивидуальный план обучения (1-3-12 месяцев)\n" +
		"     💰 обычная цена 40$\n\n" +
		"📚 Подборка книг, фильмов и сериалов\n" +
		"     💰 обычная цена 10$\n\n" +
		"📝 Доступ к 5 гайдам по изучению английского\n" +
		"     💰 обычная цена 25$\n\n" +
		"--------------------------------------------------------------------------------\n\n" +
		fmt.Sprintf("🔥 Эксклюзивная Цена Только До %s:\n\n", expiry) +
		"$̶1̶5̶0̶ ➔ $19.99 (10.000 тенге)"
}
