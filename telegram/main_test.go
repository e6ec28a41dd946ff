package telegram

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"englishbuddy/logger"
)

type fakeBot struct {
	sent []tgbotapi.Chattable
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.sent = append(b.sent, c)
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.sent = append(b.sent, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error) {
	return tgbotapi.File{}, nil
}

func (b *fakeBot) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return nil
}

func (b *fakeBot) sentTexts() []string {
	var texts []string
	for _, c := range b.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			texts = append(texts, msg.Text)
		}
	}
	return texts
}

type fakeTransportStore struct {
	chatIDs  map[string]int64
	paid     bool
	miniSent bool
	fullSent bool

	miniMarks int
}

func (s *fakeTransportStore) SaveChatID(ctx context.Context, username string, chatID int64) error {
	if s.chatIDs == nil {
		s.chatIDs = map[string]int64{}
	}
	s.chatIDs[username] = chatID
	return nil
}

func (s *fakeTransportStore) GetChatID(ctx context.Context, username string) (int64, error) {
	return s.chatIDs[username], nil
}

func (s *fakeTransportStore) CheckPaymentStatus(ctx context.Context, username string) (bool, error) {
	return s.paid, nil
}

func (s *fakeTransportStore) CheckReportSent(ctx context.Context, username string) (bool, bool, error) {
	return s.miniSent, s.fullSent, nil
}

func (s *fakeTransportStore) MarkMiniReportSent(ctx context.Context, username string) error {
	s.miniMarks++
	return nil
}

func newTestTelegram(bot *fakeBot, store *fakeTransportStore) *Telegram {
	return &Telegram{
		logger: logger.Connect(logger.LoggerConnectProps{}),
		bot:    bot,
		db:     store,
	}
}

func TestPaymentDeepLinkAloneGrantsNothing(t *testing.T) {
	bot := &fakeBot{}
	store := &fakeTransportStore{paid: false}
	tg := newTestTelegram(bot, store)

	// A user typing /start payment_success_<own-handle> by hand: no webhook
	// has confirmed anything, so no report and no paid acknowledgement.
	err := tg.handlePaymentReturn(context.Background(), 7, "anna", "anna")
	require.NoError(t, err)

	texts := bot.sentTexts()
	require.Len(t, texts, 1)
	assert.Equal(t, paymentPendingText, texts[0])
	for _, c := range bot.sent {
		_, isDocument := c.(tgbotapi.DocumentConfig)
		assert.False(t, isDocument)
	}
}

func TestPaymentDeepLinkForAnotherHandleIgnored(t *testing.T) {
	bot := &fakeBot{}
	store := &fakeTransportStore{paid: true}
	tg := newTestTelegram(bot, store)

	err := tg.handlePaymentReturn(context.Background(), 7, "anna", "boris")
	require.NoError(t, err)
	assert.Empty(t, bot.sent)
}

func TestPaymentReturnOutcome(t *testing.T) {
	tests := []struct {
		paidFor  string
		username string
		paid     bool
		deliver  bool
		reply    string
	}{
		{"anna", "anna", true, true, paymentDoneText},
		{"anna", "anna", false, false, paymentPendingText},
		{"boris", "anna", true, false, ""},
		{"boris", "anna", false, false, ""},
	}

	for _, tc := range tests {
		deliver, reply := paymentReturnOutcome(tc.paidFor, tc.username, tc.paid)
		assert.Equal(t, tc.deliver, deliver, "paidFor=%s paid=%v", tc.paidFor, tc.paid)
		assert.Equal(t, tc.reply, reply, "paidFor=%s paid=%v", tc.paidFor, tc.paid)
	}
}

func TestMiniReportNotSentTwice(t *testing.T) {
	bot := &fakeBot{}
	store := &fakeTransportStore{miniSent: true}
	tg := newTestTelegram(bot, store)

	// Restarted and re-completed questionnaire: the teaser stays sent-once.
	tg.sendMiniReport(context.Background(), 7, "anna")

	assert.Empty(t, bot.sent)
	assert.Zero(t, store.miniMarks)
}

func TestFullReportAlreadySentShortCircuits(t *testing.T) {
	bot := &fakeBot{}
	store := &fakeTransportStore{paid: true, fullSent: true}
	tg := newTestTelegram(bot, store)

	err := tg.handleFullReport(context.Background(), 7, "anna")
	require.NoError(t, err)

	texts := bot.sentTexts()
	require.Len(t, texts, 1)
	assert.Equal(t, reportAlreadySent, texts[0])
}
