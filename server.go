package main

import (
	"context"
	"encoding/json"
	"englishbuddy/database/postgres"
	"englishbuddy/logger"
	"englishbuddy/modelapi/deepgramapi"
	"englishbuddy/modelapi/geminiapi"
	"englishbuddy/modelapi/openaiapi"
	"englishbuddy/payments/stripeapi"
	"englishbuddy/telegram"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/stripe/stripe-go/v82"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/hyperdxio/opentelemetry-logs-go/exporters/otlp/otlplogs"
	sdk "github.com/hyperdxio/opentelemetry-logs-go/sdk/logs"
	"github.com/hyperdxio/otel-config-go/otelconfig"
)

const defaultPort = "80"

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}
	godotenv.Load()
	production := os.Getenv("PRODUCTION") != ""

	otelShutdown, err := otelconfig.ConfigureOpenTelemetry()
	if err != nil {
		log.Fatalf("Error setting up OTel SDK - %e", err)
	}
	defer otelShutdown()
	ctx := context.Background()

	logExporter, _ := otlplogs.NewExporter(ctx)
	loggerProvider := sdk.NewLoggerProvider(sdk.WithBatcher(logExporter))
	defer loggerProvider.Shutdown(ctx)

	LogMiddleware := logger.Connect(logger.LoggerConnectProps{Production: production, LoggerProvider: loggerProvider})

	db := postgres.Connect(ctx, postgres.DatabaseConnectProps{Logger: LogMiddleware})
	openaiClient := openaiapi.Connect(ctx, openaiapi.OpenAIConnectProps{Logger: LogMiddleware})
	geminiClient := geminiapi.Connect(ctx, geminiapi.GeminiConnectProps{Logger: LogMiddleware})
	deepgramClient := deepgramapi.Connect(LogMiddleware)
	stripeClient := stripeapi.Connect(ctx, stripeapi.StripeConnectProps{Logger: LogMiddleware})

	telegramBot := telegram.Connect(ctx, telegram.TelegramConnectProps{
		Logger:   LogMiddleware,
		DB:       db,
		Deepgram: deepgramClient,
		OpenAI:   openaiClient,
		Gemini:   geminiClient,
		Stripe:   stripeClient,
	})

	Logger := LogMiddleware.Logger(ctx)

	if production == false {
		Logger.Info("[Telegram] Bot starting in development mode")
	} else {
		Logger.Info("[Telegram] Bot starting in production mode")
	}

	router := chi.NewRouter()
	router.Use(requestLoggerMiddleware(LogMiddleware))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	router.Post("/stripe/webhook", stripeWebhookHandler(LogMiddleware, db, stripeClient, telegramBot))

	go func() {
		handler := otelhttp.NewHandler(router, "server")
		Logger.Info("[Server] HTTP server listening", zap.String("port", port))
		if err := http.ListenAndServe(":"+port, handler); err != nil {
			Logger.Error("[Server] HTTP server stopped", zap.Error(err))
		}
	}()

	// Start Telegram bot (blocking call)
	telegramBot.Listen(ctx)
}

// stripeWebhookHandler confirms payment out of band. The checkout session's
// client reference id carries the Telegram handle the session was opened for.
func stripeWebhookHandler(lm *logger.LogMiddleware, db *postgres.Database, stripeClient *stripeapi.Stripe, bot *telegram.Telegram) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 65536))
		if err != nil {
			lm.Logger(ctx).Error("[Stripe] Could not read webhook payload", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		event, err := stripeClient.VerifyEvent(payload, r.Header.Get("Stripe-Signature"))
		if err != nil {
			lm.Logger(ctx).Error("[Stripe] Webhook signature verification failed", zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if event.Type != "checkout.session.completed" {
			w.WriteHeader(http.StatusOK)
			return
		}

		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			lm.Logger(ctx).Error("[Stripe] Could not parse checkout session", zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		username := session.ClientReferenceID
		if username == "" {
			lm.Logger(ctx).Warn("[Stripe] Checkout session without client reference id", zap.String("session", session.ID))
			w.WriteHeader(http.StatusOK)
			return
		}

		if err := db.UpdatePaymentStatus(ctx, username, true); err != nil {
			lm.Logger(ctx).Error("[Stripe] Could not record payment", zap.Error(err), zap.String("username", username))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		lm.Logger(ctx).Info("[Stripe] Payment confirmed", zap.String("username", username))

		// Deliver in the background; Stripe only needs the acknowledgement.
		go func() {
			if err := bot.DeliverFullReportTo(context.Background(), username); err != nil {
				lm.Logger(context.Background()).Error("[Stripe] Could not deliver full report after payment",
					zap.Error(err), zap.String("username", username))
			}
		}()

		w.WriteHeader(http.StatusOK)
	}
}

func requestLoggerMiddleware(logger *logger.LogMiddleware) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger.Logger(ctx).Info("Request Received", zap.String("url", r.URL.Path), zap.String("method", r.Method))
			next.ServeHTTP(w, r)
			logger.Logger(ctx).Info("Request Completed", zap.String("path", r.URL.Path), zap.String("method", r.Method))
		})
	}
}
