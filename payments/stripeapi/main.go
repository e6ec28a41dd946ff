package stripeapi

import (
	"context"
	"fmt"
	"os"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"englishbuddy/logger"
)

const fullReportPriceCents = 1999

type StripeConnectProps struct {
	Logger *logger.LogMiddleware
}

type Stripe struct {
	logger        *logger.LogMiddleware
	webhookSecret string
	botUsername   string
}

func Connect(ctx context.Context, args StripeConnectProps) *Stripe {
	tracer := otel.Tracer("stripeapi/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	secretKey := os.Getenv("STRIPE_SECRET_KEY")
	if secretKey == "" {
		args.Logger.Logger(ctx).Warn("[Stripe] STRIPE_SECRET_KEY not set, payments disabled")
	}
	stripe.Key = secretKey

	return &Stripe{
		logger:        args.Logger,
		webhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		botUsername:   os.Getenv("TELEGRAM_BOT_USERNAME"),
	}
}

// CreateCheckoutSession returns a checkout URL for the full report. The
// success URL deep-links back into the bot carrying a status token and the
// user handle, so completion arrives as a /start payload as well as through
// the webhook.
func (s *Stripe) CreateCheckoutSession(ctx context.Context, username string) (string, error) {
	tracer := otel.Tracer("stripeapi/CreateCheckoutSession")
	ctx, span := tracer.Start(ctx, "CreateCheckoutSession")
	defer span.End()

	span.SetAttributes(attribute.String("user.username", username))

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(username),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(string(stripe.CurrencyUSD)),
					UnitAmount: stripe.Int64(fullReportPriceCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Полный отчет English Buddy AI"),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(fmt.Sprintf("https://t.me/%s?start=payment_success_%s", s.botUsername, username)),
		CancelURL:  stripe.String(fmt.Sprintf("https://t.me/%s?start=payment_cancelled_%s", s.botUsername, username)),
	}
	params.Context = ctx

	checkout, err := session.New(params)
	if err != nil {
		span.RecordError(err)
		s.logger.Logger(ctx).Error("[Stripe] Could not create checkout session",
			zap.Error(err),
			zap.String("username", username),
		)
		return "", fmt.Errorf("could not create checkout session: %w", err)
	}

	s.logger.Logger(ctx).Info("[Stripe] Checkout session created",
		zap.String("username", username),
		zap.String("session_id", checkout.ID),
	)
	return checkout.URL, nil
}

// VerifyEvent authenticates a webhook payload against the endpoint secret.
func (s *Stripe) VerifyEvent(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("could not verify webhook event: %w", err)
	}
	return event, nil
}
