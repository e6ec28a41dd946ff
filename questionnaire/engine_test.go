package questionnaire

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"englishbuddy/logger"
)

type fakeStore struct {
	current   map[string]int
	info      map[int]string
	responses map[int]string
	paid      bool
	saveErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		current:   make(map[string]int),
		info:      make(map[int]string),
		responses: make(map[int]string),
	}
}

func (s *fakeStore) GetCurrentQuestion(ctx context.Context, username string) (int, error) {
	return s.current[username], nil
}

func (s *fakeStore) UpdateCurrentQuestion(ctx context.Context, username string, question int) error {
	s.current[username] = question
	return nil
}

func (s *fakeStore) SaveUserInfoAndAdvance(ctx context.Context, username string, question int, info string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.info[question] = info
	s.current[username] = question + 1
	return nil
}

func (s *fakeStore) SaveUserResponseAndAdvance(ctx context.Context, username string, responseNumber int, response string, nextQuestion int) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.responses[responseNumber] = response
	s.current[username] = nextQuestion
	return nil
}

func (s *fakeStore) CheckPaymentStatus(ctx context.Context, username string) (bool, error) {
	return s.paid, nil
}

type fakeTranscriber struct {
	transcript string
	err        error
	calls      int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, fileID string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.transcript, nil
}

func newTestEngine(store *fakeStore, transcriber *fakeTranscriber) *Engine {
	if transcriber == nil {
		transcriber = &fakeTranscriber{transcript: "hello there"}
	}
	return NewEngine(EngineProps{
		Logger:      logger.Connect(logger.LoggerConnectProps{}),
		Catalog:     DefaultCatalog(),
		Store:       store,
		Transcriber: transcriber,
	})
}

func TestStartSetsFirstQuestion(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store, nil)

	reply, err := engine.Start(context.Background(), "anna")
	require.NoError(t, err)

	assert.Equal(t, 1, store.current["anna"])
	require.Len(t, reply.Messages, 2)
	assert.Contains(t, reply.Messages[0].Text, "English Buddy")
	assert.Equal(t, "Как вас зовут?", reply.Messages[1].Text)
}

func TestStartRestartsFromScratch(t *testing.T) {
	store := newFakeStore()
	store.current["anna"] = 9
	engine := newTestEngine(store, nil)

	_, err := engine.Start(context.Background(), "anna")
	require.NoError(t, err)
	assert.Equal(t, 1, store.current["anna"])
}

func TestMessageBeforeStart(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store, nil)

	reply, err := engine.HandleMessage(context.Background(), "anna", Incoming{Text: "hi"})
	require.NoError(t, err)
	require.Len(t, reply.Messages, 1)
	assert.Contains(t, reply.Messages[0].Text, "/start")
	assert.Equal(t, 0, store.current["anna"])
}

func TestBasicRejectsInvalidAnswerWithoutAdvancing(t *testing.T) {
	store := newFakeStore()
	store.current["anna"] = 1
	engine := newTestEngine(store, nil)

	reply, err := engine.HandleMessage(context.Background(), "anna", Incoming{Text: "Anna123"})
	require.NoError(t, err)

	assert.Equal(t, 1, store.current["anna"])
	assert.Empty(t, store.info)
	require.Len(t, reply.Messages, 1)
	assert.Contains(t, reply.Messages[0].Text, "имя и фамилию")
}

func TestBasicAcceptsValidAnswerAndAdvances(t *testing.T) {
	store := newFakeStore()
	store.current["anna"] = 1
	engine := newTestEngine(store, nil)

	reply, err := engine.HandleMessage(context.Background(), "anna", Incoming{Text: "Anna Lee"})
	require.NoError(t, err)

	assert.Equal(t, 2, store.current["anna"])
	assert.Equal(t, "Anna Lee", store.info[1])
	require.Len(t, reply.Messages, 1)
	assert.Equal(t, "Сколько вам лет?", reply.Messages[0].Text)
}

func TestBasicRequiresText(t *testing.T) {
	store := newFakeStore()
	store.current["anna"] = 2
	engine := newTestEngine(store, nil)

	reply, err := engine.HandleMessage(context.Background(), "anna", Incoming{
		Voice: &VoiceMessage{FileID: "f", Duration: 30},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, store.current["anna"])
	require.Len(t, reply.Messages, 1)
	assert.Contains(t, reply.Messages[0].Text, "текстовый ответ")
}

func TestLastBasicLeadsToFirstChoiceKeyboard(t *testing.T) {
	store := newFakeStore()
	store.current["anna"] = 3
	engine := newTestEngine(store, nil)

	reply, err := engine.HandleMessage(context.Background(), "anna", Incoming{Text: "anna@example.com"})
	require.NoError(t, err)

	assert.Equal(t, 4, store.current["anna"])
	require.Len(t, reply.Messages, 1)
	assert.Equal(t, "Для чего вам необходимо овладеть английским?", reply.Messages[0].Text)
	require.Len(t, reply.Messages[0].Keyboard, 5)
	assert.Equal(t, "choice_0", reply.Messages[0].Keyboard[0].Data)
}

func TestFreeTextDuringChoicePhaseReprompts(t *testing.T) {
	store := newFakeStore()
	store.current["anna"] = 4
	engine := newTestEngine(store, nil)

	reply, err := engine.HandleMessage(context.Background(), "anna", Incoming{Text: "работа"})
	require.NoError(t, err)

	assert.Equal(t, 4, store.current["anna"])
	require.Len(t, reply.Messages, 2)
	assert.Contains(t, reply.Messages[0].Text, "кнопки")
	assert.NotEmpty(t, reply.Messages[1].Keyboard)
}

func TestSingleChoiceCallbackSavesAndEditsToNext(t *testing.T) {
	store := newFakeStore()
	store.current["anna"] = 4
	engine := newTestEngine(store, nil)

	reply, err := engine.HandleCallback(context.Background(), "anna", "choice_1")
	require.NoError(t, err)

	assert.Equal(t, 5, store.current["anna"])
	assert.Equal(t, "Путешествий", store.info[4])
	require.NotNil(t, reply.Edit)
	assert.Equal(t, "Каков ваш текущий уровень владения английским?", reply.Edit.Text)
}

func TestChoiceCallbackOutOfRangeIgnored(t *testing.T) {
	store := newFakeStore()
	store.current["anna"] = 4
	engine := newTestEngine(store, nil)

	reply, err := engine.HandleCallback(context.Background(), "anna", "choice_99")
	require.NoError(t, err)

	assert.Equal(t, 4, store.current["anna"])
	assert.Empty(t, store.info)
	assert.Nil(t, reply.Edit)
	assert.Empty(t, reply.Messages)
}

func TestStaleCallbackOutsideChoicePhaseIgnored(t *testing.T) {
	store := newFakeStore()
	store.current["anna"] = 12
	engine := newTestEngine(store, nil)

	reply, err := engine.HandleCallback(context.Background(), "anna", "choice_0")
	require.NoError(t, err)

	assert.Equal(t, 12, store.current["anna"])
	assert.Empty(t, reply.Messages)
	assert.Nil(t, reply.Edit)
}

func TestMultiSelectToggleKeepsKeyboardState(t *testing.T) {
	store := newFakeStore()
	store.current["anna"] = 10 // interests question
	engine := newTestEngine(store, nil)

	reply, err := engine.HandleCallback(context.Background(), "anna", "choice_0")
	require.NoError(t, err)

	// Toggle alone persists nothing.
	assert.Equal(t, 10, store.current["anna"])
	assert.Empty(t, store.info)

	require.NotNil(t, reply.Edit)
	assert.Equal(t, "Аниме ✓", reply.Edit.Keyboard[0].Label)
	assert.Equal(t, "Подтвердить выбор", reply.Edit.Keyboard[len(reply.Edit.Keyboard)-1].Label)

	// Second press untoggles.
	reply, err = engine.HandleCallback(context.Background(), "anna", "choice_0")
	require.NoError(t, err)
	assert.Equal(t, "Аниме", reply.Edit.Keyboard[0].Label)
}

func TestMultiSelectConfirmWithoutPicksAlerts(t *testing.T) {
	store := newFakeStore()
	store.current["anna"] = 10
	engine := newTestEngine(store, nil)

	reply, err := engine.HandleCallback(context.Background(), "anna", "submit_choices")
	require.NoError(t, err)

	assert.Equal(t, 10, store.current["anna"])
	assert.Empty(t, store.info)
	assert.Equal(t, "Пожалуйста, выберите хотя бы один вариант", reply.Alert)
}

func TestMultiSelectPersistsInCatalogOrder(t *testing.T) {
	store := newFakeStore()
	store.current["anna"] = 10
	engine := newTestEngine(store, nil)
	ctx := context.Background()

	// Picked in reverse catalog order on purpose.
	_, err := engine.HandleCallback(ctx, "anna", "choice_8") // Футбол
	require.NoError(t, err)
	_, err = engine.HandleCallback(ctx, "anna", "choice_0") // Аниме
	require.NoError(t, err)

	reply, err := engine.HandleCallback(ctx, "anna", "submit_choices")
	require.NoError(t, err)

	assert.Equal(t, 11, store.current["anna"])
	assert.Equal(t, "Аниме, Футбол", store.info[10])
	require.NotNil(t, reply.Edit)
	assert.Contains(t, reply.Edit.Text, "экзамены")
}

func TestSubmitOnSingleChoiceIgnored(t *testing.T) {
	store := newFakeStore()
	store.current["anna"] = 4
	engine := newTestEngine(store, nil)

	reply, err := engine.HandleCallback(context.Background(), "anna", "submit_choices")
	require.NoError(t, err)
	assert.Equal(t, 4, store.current["anna"])
	assert.Empty(t, reply.Alert)
	assert.Nil(t, reply.Edit)
}

func TestLastChoiceLeadsToFirstEssay(t *testing.T) {
	store := newFakeStore()
	store.current["anna"] = 11 // exams question, multi-select
	engine := newTestEngine(store, nil)
	ctx := context.Background()

	_, err := engine.HandleCallback(ctx, "anna", "choice_0")
	require.NoError(t, err)
	reply, err := engine.HandleCallback(ctx, "anna", "submit_choices")
	require.NoError(t, err)

	assert.Equal(t, 12, store.current["anna"])
	assert.Equal(t, "IELTS", store.info[11])
	require.Len(t, reply.Messages, 1)
	assert.Equal(t, "Где вы родились и когда, где живете сейчас и чем занимаетесь.", reply.Messages[0].Text)
}

func TestEssayTooShortRejectedWithoutAdvancing(t *testing.T) {
	store := newFakeStore()
	store.current["anna"] = 12
	engine := newTestEngine(store, nil)

	reply, err := engine.HandleMessage(context.Background(), "anna", Incoming{Text: "короткий ответ"})
	require.NoError(t, err)

	assert.Equal(t, 12, store.current["anna"])
	assert.Empty(t, store.responses)
	require.Len(t, reply.Messages, 1)
	assert.Contains(t, reply.Messages[0].Text, "400")
}

func TestEssayAcceptedAndAdvances(t *testing.T) {
	store := newFakeStore()
	store.current["anna"] = 12
	engine := newTestEngine(store, nil)

	essay := strings.Repeat("я учу английский ", 30)
	reply, err := engine.HandleMessage(context.Background(), "anna", Incoming{Text: essay})
	require.NoError(t, err)

	assert.Equal(t, 13, store.current["anna"])
	assert.Equal(t, essay, store.responses[0])
	require.Len(t, reply.Messages, 1)
	assert.Equal(t, "Чем вы больше всего любите заниматься? Какие у вас хобби?", reply.Messages[0].Text)
}

func TestLastEssayLeadsToAudioInstruction(t *testing.T) {
	store := newFakeStore()
	store.current["anna"] = 14
	engine := newTestEngine(store, nil)

	essay := strings.Repeat("потому что это важно ", 25)
	reply, err := engine.HandleMessage(context.Background(), "anna", Incoming{Text: essay})
	require.NoError(t, err)

	assert.Equal(t, 15, store.current["anna"])
	assert.Equal(t, essay, store.responses[2])
	require.Len(t, reply.Messages, 1)
	assert.Contains(t, reply.Messages[0].Text, "запишите аудио ответ")
	assert.Contains(t, reply.Messages[0].Text, "распорядок дня")
}

func TestAudioRequiresVoice(t *testing.T) {
	store := newFakeStore()
	store.current["anna"] = 15
	transcriber := &fakeTranscriber{transcript: "irrelevant"}
	engine := newTestEngine(store, transcriber)

	reply, err := engine.HandleMessage(context.Background(), "anna", Incoming{Text: "печатаю вместо записи"})
	require.NoError(t, err)

	assert.Equal(t, 15, store.current["anna"])
	assert.Zero(t, transcriber.calls)
	require.Len(t, reply.Messages, 1)
	assert.Contains(t, reply.Messages[0].Text, "голосовое сообщение")
}

func TestAudioTooShortRejected(t *testing.T) {
	store := newFakeStore()
	store.current["anna"] = 15
	transcriber := &fakeTranscriber{transcript: "irrelevant"}
	engine := newTestEngine(store, transcriber)

	reply, err := engine.HandleMessage(context.Background(), "anna", Incoming{
		Voice: &VoiceMessage{FileID: "f1", Duration: 5},
	})
	require.NoError(t, err)

	assert.Equal(t, 15, store.current["anna"])
	assert.Zero(t, transcriber.calls)
	assert.Contains(t, reply.Messages[0].Text, "10 секунд")
}

func TestAudioAnswerTranscribedAndSaved(t *testing.T) {
	store := newFakeStore()
	store.current["anna"] = 15
	transcriber := &fakeTranscriber{transcript: "my day starts at seven"}
	engine := newTestEngine(store, transcriber)

	reply, err := engine.HandleMessage(context.Background(), "anna", Incoming{
		Voice: &VoiceMessage{FileID: "f1", Duration: 30},
	})
	require.NoError(t, err)

	assert.Equal(t, 16, store.current["anna"])
	assert.Equal(t, "my day starts at seven", store.responses[3])
	assert.False(t, reply.Completed)
	assert.Contains(t, reply.Messages[0].Text, "запоминающейся поездке")
}

func TestTranscriptionFailureDoesNotAdvance(t *testing.T) {
	store := newFakeStore()
	store.current["anna"] = 15
	transcriber := &fakeTranscriber{err: errors.New("upstream down")}
	engine := newTestEngine(store, transcriber)

	_, err := engine.HandleMessage(context.Background(), "anna", Incoming{
		Voice: &VoiceMessage{FileID: "f1", Duration: 30},
	})
	require.Error(t, err)
	assert.Equal(t, 15, store.current["anna"])
	assert.Empty(t, store.responses)
}

func TestLastAudioCompletesQuestionnaire(t *testing.T) {
	store := newFakeStore()
	store.current["anna"] = 17
	transcriber := &fakeTranscriber{transcript: "I plan to study abroad"}
	engine := newTestEngine(store, transcriber)

	reply, err := engine.HandleMessage(context.Background(), "anna", Incoming{
		Voice: &VoiceMessage{FileID: "f3", Duration: 45},
	})
	require.NoError(t, err)

	assert.Equal(t, 18, store.current["anna"])
	assert.Equal(t, "I plan to study abroad", store.responses[5])
	assert.True(t, reply.Completed)
	assert.Contains(t, reply.Messages[0].Text, "Спасибо")
}

func TestSaveFailurePropagates(t *testing.T) {
	store := newFakeStore()
	store.current["anna"] = 1
	store.saveErr = errors.New("db down")
	engine := newTestEngine(store, nil)

	_, err := engine.HandleMessage(context.Background(), "anna", Incoming{Text: "Anna Lee"})
	require.Error(t, err)
	assert.Equal(t, 1, store.current["anna"])
}

func TestCompletedUnpaidPointsToFullReport(t *testing.T) {
	store := newFakeStore()
	store.current["anna"] = 18
	engine := newTestEngine(store, nil)

	reply, err := engine.HandleMessage(context.Background(), "anna", Incoming{Text: "привет"})
	require.NoError(t, err)
	require.Len(t, reply.Messages, 1)
	assert.Contains(t, reply.Messages[0].Text, "/full_report")
}

func TestCompletedPaidMentionsPurchase(t *testing.T) {
	store := newFakeStore()
	store.current["anna"] = 18
	store.paid = true
	engine := newTestEngine(store, nil)

	reply, err := engine.HandleMessage(context.Background(), "anna", Incoming{Text: "привет"})
	require.NoError(t, err)
	require.Len(t, reply.Messages, 1)
	assert.Contains(t, reply.Messages[0].Text, "уже приобрели")
}

func TestCompletedCommandsAreLeftToTheirHandlers(t *testing.T) {
	store := newFakeStore()
	store.current["anna"] = 18
	engine := newTestEngine(store, nil)

	reply, err := engine.HandleMessage(context.Background(), "anna", Incoming{Text: "/full_report"})
	require.NoError(t, err)
	assert.Empty(t, reply.Messages)
}
