package questionnaire

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"englishbuddy/logger"
)

const (
	welcomeText = "Привет! Я бот English Buddy AI. Давайте оценим ваши навыки английского языка и создадим персонализированный план обучения."

	notStartedText     = "Пожалуйста, используйте команду /start, чтобы начать опрос."
	textAnswerRequired = "Пожалуйста, предоставьте текстовый ответ."
	useButtonsText     = "Пожалуйста, выберите один из вариантов, используя кнопки ниже."
	audioInstruction   = "Пожалуйста, запишите аудио ответ на следующий вопрос:\n\n"
	thankYouText       = "Спасибо за заполнение анкеты!\n\n"

	completedUnpaidText = "Вы уже заполнили опросник!\n\n" +
		"Для приобретения полного отчета используйте команду /full_report"
	completedPaidText = "Вы уже приобрели полный отчет. " +
		"Если вы не получили документ, используйте команду /full_report."

	pickAtLeastOneAlert = "Пожалуйста, выберите хотя бы один вариант"
	confirmLabel        = "Подтвердить выбор"

	choiceDataPrefix  = "choice_"
	submitChoicesData = "submit_choices"
)

var basicErrorMessages = map[int]string{
	0: "Пожалуйста, введите имя и фамилию, используя только буквы и пробелы.",
	1: "Пожалуйста, введите корректный возраст от 10 до 100 лет.",
	2: "Пожалуйста, введите действительный email адрес.",
}

var basicValidators = map[int]func(string) bool{
	0: ValidateName,
	1: ValidateAge,
	2: ValidateEmail,
}

// ProgressStore is the persistence surface the engine drives. All operations
// key on the user handle and are safe to call before a row exists. The
// *AndAdvance operations must save the answer and bump the current question
// as one transaction.
type ProgressStore interface {
	GetCurrentQuestion(ctx context.Context, username string) (int, error)
	UpdateCurrentQuestion(ctx context.Context, username string, question int) error
	SaveUserInfoAndAdvance(ctx context.Context, username string, question int, info string) error
	SaveUserResponseAndAdvance(ctx context.Context, username string, responseNumber int, response string, nextQuestion int) error
	CheckPaymentStatus(ctx context.Context, username string) (bool, error)
}

// Transcriber turns a voice answer into text before it is persisted.
type Transcriber interface {
	Transcribe(ctx context.Context, fileID string) (string, error)
}

// VoiceMessage is the voice part of an inbound update.
type VoiceMessage struct {
	FileID   string
	Duration int
}

// Incoming is one inbound non-command update.
type Incoming struct {
	Text  string
	Voice *VoiceMessage
}

// Button is one labeled keyboard option with its opaque callback payload.
type Button struct {
	Label string
	Data  string
}

// Message is one outbound prompt, optionally with a button keyboard.
type Message struct {
	Text     string
	Keyboard []Button
}

// Reply is everything the transport must do in response to one update.
// Edit replaces the originating message's text and keyboard in place; the
// transport falls back to sending it fresh if the edit target is stale.
type Reply struct {
	Messages  []Message
	Edit      *Message
	Alert     string
	Completed bool
}

type EngineProps struct {
	Logger      *logger.LogMiddleware
	Catalog     *Catalog
	Store       ProgressStore
	Transcriber Transcriber
}

// Engine is the questionnaire state machine. It reads the user's current
// question, routes the update by phase, validates, persists and produces the
// next prompt. Multi-select toggle state lives here, not in rendered labels.
type Engine struct {
	logger      *logger.LogMiddleware
	catalog     *Catalog
	store       ProgressStore
	transcriber Transcriber
	selections  *selectionState
}

func NewEngine(args EngineProps) *Engine {
	return &Engine{
		logger:      args.Logger,
		catalog:     args.Catalog,
		store:       args.Store,
		transcriber: args.Transcriber,
		selections:  newSelectionState(),
	}
}

// Start begins a questionnaire pass: welcome, first basic question, index 1.
func (e *Engine) Start(ctx context.Context, username string) (*Reply, error) {
	tracer := otel.Tracer("questionnaire/Start")
	ctx, span := tracer.Start(ctx, "Start")
	defer span.End()

	if err := e.store.UpdateCurrentQuestion(ctx, username, 1); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("could not start questionnaire: %w", err)
	}
	e.selections.clear(username)

	e.logger.Logger(ctx).Info("[Questionnaire] User started questionnaire", zap.String("username", username))

	return &Reply{Messages: []Message{
		{Text: welcomeText},
		{Text: e.catalog.BasicQuestions[0]},
	}}, nil
}

// HandleMessage routes one text or voice update through the state machine.
func (e *Engine) HandleMessage(ctx context.Context, username string, msg Incoming) (*Reply, error) {
	tracer := otel.Tracer("questionnaire/HandleMessage")
	ctx, span := tracer.Start(ctx, "HandleMessage")
	defer span.End()

	current, err := e.store.GetCurrentQuestion(ctx, username)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	phase, local := e.catalog.Classify(current)
	span.SetAttributes(
		attribute.String("user.username", username),
		attribute.Int("question.current", current),
		attribute.String("question.phase", phase.String()),
	)

	switch phase {
	case PhaseNotStarted:
		return &Reply{Messages: []Message{{Text: notStartedText}}}, nil
	case PhaseBasic:
		return e.handleBasic(ctx, username, current, local, msg)
	case PhaseChoice:
		// Free text during the choice phase: re-prompt with the current keyboard.
		return &Reply{Messages: []Message{
			{Text: useButtonsText},
			e.choicePrompt(username, local),
		}}, nil
	case PhaseEssay:
		return e.handleEssay(ctx, username, current, local, msg)
	case PhaseAudio:
		return e.handleAudio(ctx, username, current, local, msg)
	case PhaseCompleted:
		return e.handleCompleted(ctx, username, msg)
	}

	// Unreachable given the classifier's exhaustive ranges.
	return nil, fmt.Errorf("unclassifiable question index %d for user %s", current, username)
}

func (e *Engine) handleBasic(ctx context.Context, username string, current, local int, msg Incoming) (*Reply, error) {
	if msg.Voice != nil || msg.Text == "" {
		return &Reply{Messages: []Message{{Text: textAnswerRequired}}}, nil
	}

	if validate, ok := basicValidators[local]; ok && !validate(msg.Text) {
		return &Reply{Messages: []Message{{Text: basicErrorMessages[local]}}}, nil
	}

	if err := e.store.SaveUserInfoAndAdvance(ctx, username, current, msg.Text); err != nil {
		return nil, err
	}

	e.logger.Logger(ctx).Info("[Questionnaire] Basic answer accepted",
		zap.String("username", username),
		zap.Int("question", current),
	)

	if local == len(e.catalog.BasicQuestions)-1 {
		return &Reply{Messages: []Message{e.choicePrompt(username, 0)}}, nil
	}
	return &Reply{Messages: []Message{{Text: e.catalog.BasicQuestions[local+1]}}}, nil
}

func (e *Engine) handleEssay(ctx context.Context, username string, current, local int, msg Incoming) (*Reply, error) {
	if msg.Voice != nil || msg.Text == "" {
		return &Reply{Messages: []Message{{Text: textAnswerRequired}}}, nil
	}

	if ok, reason := ValidateEssayLength(msg.Text); !ok {
		return &Reply{Messages: []Message{{Text: reason}}}, nil
	}

	if err := e.store.SaveUserResponseAndAdvance(ctx, username, local, msg.Text, current+1); err != nil {
		return nil, err
	}

	e.logger.Logger(ctx).Info("[Questionnaire] Essay answer accepted",
		zap.String("username", username),
		zap.Int("essay_question", local),
	)

	if local == len(e.catalog.EssayQuestions)-1 {
		return &Reply{Messages: []Message{{Text: audioInstruction + e.catalog.AudioQuestions[0]}}}, nil
	}
	return &Reply{Messages: []Message{{Text: e.catalog.EssayQuestions[local+1]}}}, nil
}

func (e *Engine) handleAudio(ctx context.Context, username string, current, local int, msg Incoming) (*Reply, error) {
	hasVoice := msg.Voice != nil
	duration := 0
	if hasVoice {
		duration = msg.Voice.Duration
	}
	if ok, reason := ValidateVoice(hasVoice, duration); !ok {
		return &Reply{Messages: []Message{{Text: reason}}}, nil
	}

	transcript, err := e.transcriber.Transcribe(ctx, msg.Voice.FileID)
	if err != nil {
		return nil, fmt.Errorf("could not transcribe voice answer: %w", err)
	}

	responseNumber := local + len(e.catalog.EssayQuestions)
	if err := e.store.SaveUserResponseAndAdvance(ctx, username, responseNumber, transcript, current+1); err != nil {
		return nil, err
	}

	e.logger.Logger(ctx).Info("[Questionnaire] Audio answer accepted",
		zap.String("username", username),
		zap.Int("audio_question", local),
		zap.Int("duration", duration),
	)

	if local == len(e.catalog.AudioQuestions)-1 {
		return &Reply{
			Messages:  []Message{{Text: thankYouText}},
			Completed: true,
		}, nil
	}
	return &Reply{Messages: []Message{{Text: audioInstruction + e.catalog.AudioQuestions[local+1]}}}, nil
}

func (e *Engine) handleCompleted(ctx context.Context, username string, msg Incoming) (*Reply, error) {
	if strings.HasPrefix(msg.Text, "/") {
		// Commands have their own handlers.
		return &Reply{}, nil
	}

	paid, err := e.store.CheckPaymentStatus(ctx, username)
	if err != nil {
		return nil, err
	}
	if paid {
		return &Reply{Messages: []Message{{Text: completedPaidText}}}, nil
	}
	return &Reply{Messages: []Message{{Text: completedUnpaidText}}}, nil
}

// HandleCallback routes one button press. Presses landing outside the choice
// phase come from stale keyboards and are acknowledged without effect.
func (e *Engine) HandleCallback(ctx context.Context, username string, data string) (*Reply, error) {
	tracer := otel.Tracer("questionnaire/HandleCallback")
	ctx, span := tracer.Start(ctx, "HandleCallback")
	defer span.End()

	current, err := e.store.GetCurrentQuestion(ctx, username)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	phase, local := e.catalog.Classify(current)
	span.SetAttributes(
		attribute.String("user.username", username),
		attribute.Int("question.current", current),
		attribute.String("callback.data", data),
	)

	if phase != PhaseChoice {
		e.logger.Logger(ctx).Warn("[Questionnaire] Callback outside choice phase ignored",
			zap.String("username", username),
			zap.Int("question", current),
		)
		return &Reply{}, nil
	}

	question := e.catalog.ChoiceQuestions[local]

	if data == submitChoicesData {
		if !question.MultiSelect {
			return &Reply{}, nil
		}
		return e.submitChoices(ctx, username, current, local)
	}

	ordinal, ok := parseChoiceData(data)
	if !ok || ordinal < 0 || ordinal >= len(question.Options) {
		return &Reply{}, nil
	}

	if question.MultiSelect {
		e.selections.toggle(username, local, len(question.Options), ordinal)
		edit := e.choicePrompt(username, local)
		return &Reply{Edit: &edit}, nil
	}

	return e.acceptChoice(ctx, username, current, local, question.Options[ordinal])
}

func (e *Engine) submitChoices(ctx context.Context, username string, current, local int) (*Reply, error) {
	picked := e.selections.picked(username, local, e.catalog.ChoiceQuestions[local].Options)
	if len(picked) == 0 {
		return &Reply{Alert: pickAtLeastOneAlert}, nil
	}
	reply, err := e.acceptChoice(ctx, username, current, local, strings.Join(picked, ", "))
	if err != nil {
		return nil, err
	}
	e.selections.clear(username)
	return reply, nil
}

func (e *Engine) acceptChoice(ctx context.Context, username string, current, local int, answer string) (*Reply, error) {
	if err := e.store.SaveUserInfoAndAdvance(ctx, username, current, answer); err != nil {
		return nil, err
	}

	e.logger.Logger(ctx).Info("[Questionnaire] Choice answer accepted",
		zap.String("username", username),
		zap.Int("choice_question", local),
		zap.String("answer", answer),
	)

	if local == len(e.catalog.ChoiceQuestions)-1 {
		return &Reply{Messages: []Message{{Text: e.catalog.EssayQuestions[0]}}}, nil
	}
	next := e.choicePrompt(username, local+1)
	return &Reply{Edit: &next}, nil
}

// choicePrompt builds the prompt+keyboard for a choice question, projecting
// any current multi-select state into the labels.
func (e *Engine) choicePrompt(username string, local int) Message {
	return Message{
		Text:     e.catalog.ChoiceQuestions[local].Prompt,
		Keyboard: e.choiceKeyboard(username, local),
	}
}

func (e *Engine) choiceKeyboard(username string, local int) []Button {
	question := e.catalog.ChoiceQuestions[local]
	buttons := make([]Button, 0, len(question.Options)+1)
	for i, option := range question.Options {
		label := option
		if question.MultiSelect && e.selections.isPicked(username, local, i) {
			label += " ✓"
		}
		buttons = append(buttons, Button{Label: label, Data: choiceDataPrefix + strconv.Itoa(i)})
	}
	if question.MultiSelect {
		buttons = append(buttons, Button{Label: confirmLabel, Data: submitChoicesData})
	}
	return buttons
}

func parseChoiceData(data string) (int, bool) {
	if !strings.HasPrefix(data, choiceDataPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(data, choiceDataPrefix))
	if err != nil {
		return 0, false
	}
	return n, true
}
