package telegram

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"englishbuddy/database/postgres"
	"englishbuddy/httpmiddleware"
	"englishbuddy/logger"
	"englishbuddy/modelapi/deepgramapi"
	"englishbuddy/modelapi/geminiapi"
	"englishbuddy/modelapi/openaiapi"
	"englishbuddy/payments/stripeapi"
	"englishbuddy/questionnaire"
	"englishbuddy/report"
)

const (
	genericErrorText = "Извините, что-то пошло не так. Пожалуйста, попробуйте еще раз."

	miniReportWaitText = "Генерация краткого отчета... Пожалуйста, подождите."
	fullReportWaitText = "Генерация полного отчета... Это может занять около минуты."
	reportAlreadySent  = "Отчет уже был отправлен ранее."
	paymentNeededText  = "Для получения полного отчета необходимо произвести оплату."
	paymentFailedText  = "Произошла ошибка при создании платежа. Пожалуйста, попробуйте позже."
	paymentDoneText    = "Оплата получена! Готовим ваш полный отчет."
	paymentPendingText = "Мы еще не получили подтверждение оплаты. Как только платеж подтвердится, отчет придет автоматически, либо используйте команду /full_report чуть позже."
	paymentCancelText  = "Оплата отменена. Вы можете вернуться к покупке в любой момент командой /full_report."

	payButtonLabel        = "Оплатить $19.99"
	fullReportButtonLabel = "Получить полный отчет за $19.99"
	fullReportButtonData  = "request_full_report"

	paymentSuccessPrefix   = "payment_success_"
	paymentCancelledPrefix = "payment_cancelled_"
)

type TelegramConnectProps struct {
	Logger   *logger.LogMiddleware
	DB       *postgres.Database
	Deepgram *deepgramapi.DeepgramAPI
	OpenAI   *openaiapi.OpenAI
	Gemini   *geminiapi.Gemini
	Stripe   *stripeapi.Stripe
}

// botAPI is the slice of the bot client the transport uses. Payment status
// is deliberately absent from transportStore: the verified Stripe webhook is
// the only writer of has_paid, the transport only reads it.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
}

type transportStore interface {
	SaveChatID(ctx context.Context, username string, chatID int64) error
	GetChatID(ctx context.Context, username string) (int64, error)
	CheckPaymentStatus(ctx context.Context, username string) (bool, error)
	CheckReportSent(ctx context.Context, username string) (miniSent bool, fullSent bool, err error)
	MarkMiniReportSent(ctx context.Context, username string) error
}

type Telegram struct {
	logger   *logger.LogMiddleware
	bot      botAPI
	token    string
	db       transportStore
	deepgram *deepgramapi.DeepgramAPI
	stripe   *stripeapi.Stripe
	engine   *questionnaire.Engine
	mini     *report.MiniAssembler
	full     *report.FullAssembler

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func Connect(ctx context.Context, args TelegramConnectProps) *Telegram {
	tracer := otel.Tracer("telegram/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		args.Logger.Logger(ctx).Fatal("TELEGRAM_BOT_TOKEN environment variable not set")
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		args.Logger.Logger(ctx).Fatal("Failed to create Telegram bot", zap.Error(err))
	}

	debug := os.Getenv("TELEGRAM_DEBUG") == "true"
	bot.Debug = debug

	span.SetAttributes(
		attribute.String("bot.username", bot.Self.UserName),
		attribute.Bool("bot.debug", debug),
	)

	t := &Telegram{
		logger:   args.Logger,
		bot:      bot,
		token:    botToken,
		db:       args.DB,
		deepgram: args.Deepgram,
		stripe:   args.Stripe,
		locks:    make(map[string]*sync.Mutex),
	}

	catalog := questionnaire.DefaultCatalog()
	t.engine = questionnaire.NewEngine(questionnaire.EngineProps{
		Logger:      args.Logger,
		Catalog:     catalog,
		Store:       args.DB,
		Transcriber: t,
	})
	t.mini = report.NewMiniAssembler(report.MiniAssemblerProps{
		Logger:  args.Logger,
		Catalog: catalog,
		Store:   args.DB,
		Agent:   args.OpenAI,
	})
	t.full = report.NewFullAssembler(report.FullAssemblerProps{
		Logger:        args.Logger,
		Catalog:       catalog,
		Store:         args.DB,
		Text:          args.OpenAI,
		Pronunciation: args.Gemini,
		Renderer: report.NewPDFRenderer(report.PDFRendererProps{
			Logger:    args.Logger,
			FontDir:   os.Getenv("PDF_FONT_DIR"),
			OutputDir: os.Getenv("PDF_OUTPUT_DIR"),
		}),
	})

	args.Logger.Logger(ctx).Info("Telegram bot connected successfully",
		zap.String("username", bot.Self.UserName),
		zap.Bool("debug", debug),
	)

	return t
}

func (t *Telegram) Listen(ctx context.Context) {
	tracer := otel.Tracer("telegram/Listen")
	ctx, span := tracer.Start(ctx, "Listen")
	defer span.End()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.bot.GetUpdatesChan(u)

	t.logger.Logger(ctx).Info("Starting Telegram bot message listener")

	for {
		select {
		case <-ctx.Done():
			t.logger.Logger(ctx).Info("Shutting down Telegram bot listener")
			return
		case update := <-updates:
			// Analysis runs take seconds; one user's report must not
			// stall everyone else's conversation.
			go t.handleUpdate(ctx, update)
		}
	}
}

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	tracer := otel.Tracer("telegram/handleUpdate")
	ctx, span := tracer.Start(ctx, "handleUpdate")
	defer span.End()

	switch {
	case update.Message != nil:
		t.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		t.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}

// userLock serializes processing per user so duplicate taps cannot race the
// read-validate-persist-advance sequence. Users stay independent.
func (t *Telegram) userLock(username string) *sync.Mutex {
	t.locksMu.Lock()
	defer t.locksMu.Unlock()

	lock, ok := t.locks[username]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[username] = lock
	}
	return lock
}

func userHandle(user *tgbotapi.User) string {
	if user.UserName != "" {
		return user.UserName
	}
	return strconv.FormatInt(user.ID, 10)
}

func (t *Telegram) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	tracer := otel.Tracer("telegram/handleMessage")
	ctx, span := tracer.Start(ctx, "handleMessage")
	defer span.End()

	if message.From == nil {
		return
	}

	username := userHandle(message.From)
	span.SetAttributes(
		attribute.Int64("user.id", message.From.ID),
		attribute.String("user.username", username),
	)

	lock := t.userLock(username)
	lock.Lock()
	defer lock.Unlock()

	t.logger.Logger(ctx).Info("Received message",
		zap.String("username", username),
		zap.Bool("voice", message.Voice != nil),
	)

	var err error
	if message.IsCommand() {
		err = t.handleCommand(ctx, message, username)
	} else {
		err = t.handleUserInteraction(ctx, message, username)
	}

	if err != nil {
		t.logger.Logger(ctx).Error("Error processing message",
			zap.Error(err),
			zap.String("username", username),
		)
		span.RecordError(err)
		t.sendText(ctx, message.Chat.ID, genericErrorText)
	}
}

func (t *Telegram) handleCommand(ctx context.Context, message *tgbotapi.Message, username string) error {
	switch message.Command() {
	case "start":
		return t.handleStart(ctx, message, username)
	case "full_report":
		return t.handleFullReport(ctx, message.Chat.ID, username)
	default:
		return nil
	}
}

func (t *Telegram) handleStart(ctx context.Context, message *tgbotapi.Message, username string) error {
	if err := t.db.SaveChatID(ctx, username, message.Chat.ID); err != nil {
		return err
	}

	payload := message.CommandArguments()
	switch {
	case strings.HasPrefix(payload, paymentSuccessPrefix):
		return t.handlePaymentReturn(ctx, message.Chat.ID, username, strings.TrimPrefix(payload, paymentSuccessPrefix))
	case strings.HasPrefix(payload, paymentCancelledPrefix):
		t.sendText(ctx, message.Chat.ID, paymentCancelText)
		return nil
	}

	reply, err := t.engine.Start(ctx, username)
	if err != nil {
		return err
	}
	return t.applyReply(ctx, message.Chat.ID, nil, reply)
}

// handlePaymentReturn processes the checkout success deep link. The payload
// is user-typed text, so it proves nothing: the stored payment flag, written
// only by the verified webhook, decides whether anything is delivered.
func (t *Telegram) handlePaymentReturn(ctx context.Context, chatID int64, username, paidFor string) error {
	paid, err := t.db.CheckPaymentStatus(ctx, username)
	if err != nil {
		return err
	}

	deliver, replyText := paymentReturnOutcome(paidFor, username, paid)
	if replyText == "" {
		t.logger.Logger(ctx).Warn("Payment return for mismatched user",
			zap.String("username", username),
			zap.String("paid_for", paidFor),
		)
		return nil
	}
	t.sendText(ctx, chatID, replyText)
	if !deliver {
		return nil
	}

	_, fullSent, err := t.db.CheckReportSent(ctx, username)
	if err != nil {
		return err
	}
	if fullSent {
		return nil
	}
	return t.deliverFullReport(ctx, chatID, username)
}

// paymentReturnOutcome maps a checkout deep link onto a response. A payload
// naming someone else is a stale link and gets no reply; the sender's own
// handle yields delivery only when the webhook has already confirmed payment.
func paymentReturnOutcome(paidFor, username string, paid bool) (deliver bool, replyText string) {
	if paidFor != username {
		return false, ""
	}
	if !paid {
		return false, paymentPendingText
	}
	return true, paymentDoneText
}

func (t *Telegram) handleUserInteraction(ctx context.Context, message *tgbotapi.Message, username string) error {
	incoming := questionnaire.Incoming{Text: message.Text}
	if message.Voice != nil {
		incoming.Voice = &questionnaire.VoiceMessage{
			FileID:   message.Voice.FileID,
			Duration: message.Voice.Duration,
		}
	}

	reply, err := t.engine.HandleMessage(ctx, username, incoming)
	if err != nil {
		return err
	}

	if err := t.applyReply(ctx, message.Chat.ID, nil, reply); err != nil {
		return err
	}

	if reply.Completed {
		t.sendMiniReport(ctx, message.Chat.ID, username)
	}
	return nil
}

// sendMiniReport runs the teaser assembly after the last audio answer. The
// questionnaire index has already been persisted, so a failure here is
// reported to the user without losing their progress. A user who restarts
// with /start and completes again does not get a second teaser.
func (t *Telegram) sendMiniReport(ctx context.Context, chatID int64, username string) {
	tracer := otel.Tracer("telegram/sendMiniReport")
	ctx, span := tracer.Start(ctx, "sendMiniReport")
	defer span.End()

	miniSent, _, err := t.db.CheckReportSent(ctx, username)
	if err != nil {
		t.logger.Logger(ctx).Error("Could not check mini report status",
			zap.Error(err),
			zap.String("username", username),
		)
		span.RecordError(err)
		t.sendText(ctx, chatID, genericErrorText)
		return
	}
	if miniSent {
		t.logger.Logger(ctx).Info("Mini report already sent, skipping",
			zap.String("username", username),
		)
		return
	}

	t.sendText(ctx, chatID, miniReportWaitText)

	text, err := t.mini.Assemble(ctx, username)
	if err != nil {
		t.logger.Logger(ctx).Error("Mini report generation failed",
			zap.Error(err),
			zap.String("username", username),
		)
		span.RecordError(err)
		t.sendText(ctx, chatID, genericErrorText)
		return
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fullReportButtonLabel, fullReportButtonData),
		),
	)
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Logger(ctx).Error("Failed to send mini report", zap.Error(err))
		return
	}

	if err := t.db.MarkMiniReportSent(ctx, username); err != nil {
		t.logger.Logger(ctx).Error("Failed to mark mini report sent", zap.Error(err))
	}
}

func (t *Telegram) handleFullReport(ctx context.Context, chatID int64, username string) error {
	_, fullSent, err := t.db.CheckReportSent(ctx, username)
	if err != nil {
		return err
	}
	if fullSent {
		t.sendText(ctx, chatID, reportAlreadySent)
		return nil
	}

	paid, err := t.db.CheckPaymentStatus(ctx, username)
	if err != nil {
		return err
	}
	if !paid {
		return t.sendPaymentPrompt(ctx, chatID, username)
	}

	return t.deliverFullReport(ctx, chatID, username)
}

func (t *Telegram) sendPaymentPrompt(ctx context.Context, chatID int64, username string) error {
	checkoutURL, err := t.stripe.CreateCheckoutSession(ctx, username)
	if err != nil {
		t.logger.Logger(ctx).Error("Could not create payment session",
			zap.Error(err),
			zap.String("username", username),
		)
		t.sendText(ctx, chatID, paymentFailedText)
		return nil
	}

	msg := tgbotapi.NewMessage(chatID, paymentNeededText)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(payButtonLabel, checkoutURL),
		),
	)
	_, err = t.bot.Send(msg)
	return err
}

func (t *Telegram) deliverFullReport(ctx context.Context, chatID int64, username string) error {
	t.sendText(ctx, chatID, fullReportWaitText)

	path, err := t.full.Assemble(ctx, username)
	if err != nil {
		return err
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	if _, err := t.bot.Send(doc); err != nil {
		return fmt.Errorf("could not send report document: %w", err)
	}
	return nil
}

// DeliverFullReportTo is the webhook entry point: payment confirmation
// arrived out of band, so the chat id comes from the store.
func (t *Telegram) DeliverFullReportTo(ctx context.Context, username string) error {
	lock := t.userLock(username)
	lock.Lock()
	defer lock.Unlock()

	chatID, err := t.db.GetChatID(ctx, username)
	if err != nil {
		return err
	}

	_, fullSent, err := t.db.CheckReportSent(ctx, username)
	if err != nil {
		return err
	}
	if fullSent {
		return nil
	}
	return t.deliverFullReport(ctx, chatID, username)
}

func (t *Telegram) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	tracer := otel.Tracer("telegram/handleCallbackQuery")
	ctx, span := tracer.Start(ctx, "handleCallbackQuery")
	defer span.End()

	if query.From == nil {
		return
	}

	username := userHandle(query.From)
	span.SetAttributes(
		attribute.String("user.username", username),
		attribute.String("callback.data", query.Data),
	)

	lock := t.userLock(username)
	lock.Lock()
	defer lock.Unlock()

	t.logger.Logger(ctx).Info("Received callback query",
		zap.String("username", username),
		zap.String("data", query.Data),
	)

	var chatID int64
	if query.Message != nil {
		chatID = query.Message.Chat.ID
	}

	if query.Data == fullReportButtonData {
		t.bot.Request(tgbotapi.NewCallback(query.ID, ""))
		if err := t.handleFullReport(ctx, chatID, username); err != nil {
			t.logger.Logger(ctx).Error("Error processing full report request",
				zap.Error(err),
				zap.String("username", username),
			)
			span.RecordError(err)
			t.sendText(ctx, chatID, genericErrorText)
		}
		return
	}

	reply, err := t.engine.HandleCallback(ctx, username, query.Data)
	if err != nil {
		t.logger.Logger(ctx).Error("Error processing callback",
			zap.Error(err),
			zap.String("username", username),
		)
		span.RecordError(err)
		t.bot.Request(tgbotapi.NewCallbackWithAlert(query.ID, genericErrorText))
		return
	}

	if reply != nil && reply.Alert != "" {
		t.bot.Request(tgbotapi.NewCallbackWithAlert(query.ID, reply.Alert))
		return
	}

	if err := t.applyReply(ctx, chatID, query.Message, reply); err != nil {
		t.logger.Logger(ctx).Error("Error applying callback reply",
			zap.Error(err),
			zap.String("username", username),
		)
		t.bot.Request(tgbotapi.NewCallbackWithAlert(query.ID, genericErrorText))
		return
	}

	t.bot.Request(tgbotapi.NewCallback(query.ID, ""))
}

// applyReply sends the engine's outbound messages. Edits target the message
// the pressed keyboard was attached to and fall back to a fresh message when
// the target is stale.
func (t *Telegram) applyReply(ctx context.Context, chatID int64, editTarget *tgbotapi.Message, reply *questionnaire.Reply) error {
	if reply == nil {
		return nil
	}

	if reply.Edit != nil {
		markup := keyboardMarkup(reply.Edit.Keyboard)
		edited := false
		if editTarget != nil {
			edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, editTarget.MessageID, reply.Edit.Text, markup)
			if _, err := t.bot.Send(edit); err == nil {
				edited = true
			} else {
				t.logger.Logger(ctx).Warn("Keyboard edit failed, sending new message", zap.Error(err))
			}
		}
		if !edited {
			msg := tgbotapi.NewMessage(chatID, reply.Edit.Text)
			msg.ReplyMarkup = markup
			if _, err := t.bot.Send(msg); err != nil {
				return err
			}
		}
	}

	for _, message := range reply.Messages {
		msg := tgbotapi.NewMessage(chatID, message.Text)
		if len(message.Keyboard) > 0 {
			msg.ReplyMarkup = keyboardMarkup(message.Keyboard)
		}
		if _, err := t.bot.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

func keyboardMarkup(buttons []questionnaire.Button) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, button := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(button.Label, button.Data),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (t *Telegram) sendText(ctx context.Context, chatID int64, text string) {
	if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		t.logger.Logger(ctx).Error("Failed to send message", zap.Error(err))
	}
}

// Transcribe implements the questionnaire transcriber. The voice file is
// fetched through the bot file API and handed to Deepgram as raw bytes.
func (t *Telegram) Transcribe(ctx context.Context, fileID string) (string, error) {
	tracer := otel.Tracer("telegram/Transcribe")
	ctx, span := tracer.Start(ctx, "Transcribe")
	defer span.End()

	file, err := t.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("could not resolve voice file: %w", err)
	}

	fileURL := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", t.token, file.FilePath)
	audio, err := httpmiddleware.HttpRequest(httpmiddleware.HttpRequestStruct{
		Method: "GET",
		Url:    fileURL,
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("could not download voice file: %w", err)
	}

	return t.deepgram.Transcribe(ctx, audio)
}
