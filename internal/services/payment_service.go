package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	domain "github.com/supplynet/api/internal/domain"
	"github.com/supplynet/api/internal/events"
	"github.com/supplynet/api/internal/payments"
	"github.com/supplynet/api/internal/platform/requestctx"
	"github.com/supplynet/api/internal/repositories"
)

const paymentMethodStripe = "stripe"

// PaymentServiceDeps wires the dependencies required by the payment service.
type PaymentServiceDeps struct {
	Registry   repositories.Registry
	Provider   payments.CheckoutProvider
	Verifier   payments.WebhookVerifier
	Events     events.Publisher
	SuccessURL string
	CancelURL  string
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
	// NewIdempotencyKey supplies the PSP idempotency key for session creation.
	NewIdempotencyKey func() string
	// CheckoutTimeout bounds the outbound session-creation call; zero disables it.
	CheckoutTimeout time.Duration
}

type paymentService struct {
	registry        repositories.Registry
	provider        payments.CheckoutProvider
	verifier        payments.WebhookVerifier
	events          events.Publisher
	successURL      string
	cancelURL       string
	checkoutTimeout time.Duration
	now             func() time.Time
	logger          func(ctx context.Context, event string, fields map[string]any)
	newKey          func() string
}

// NewPaymentService constructs a PaymentService validating required dependencies.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Registry == nil {
		return nil, errors.New("payment service: registry is required")
	}
	if deps.Provider == nil {
		return nil, errors.New("payment service: checkout provider is required")
	}
	if deps.Verifier == nil {
		return nil, errors.New("payment service: webhook verifier is required")
	}
	publisher := deps.Events
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	newKey := deps.NewIdempotencyKey
	if newKey == nil {
		newKey = uuid.NewString
	}
	return &paymentService{
		registry:        deps.Registry,
		provider:        deps.Provider,
		verifier:        deps.Verifier,
		events:          publisher,
		successURL:      deps.SuccessURL,
		cancelURL:       deps.CancelURL,
		checkoutTimeout: deps.CheckoutTimeout,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
		newKey: newKey,
	}, nil
}

// CreateCheckoutSession starts a hosted payment flow for an unpaid invoice and
// stores the session reference so the webhook can resolve it later.
func (s *paymentService) CreateCheckoutSession(ctx context.Context, cmd CreateCheckoutSessionCommand) (CheckoutRedirect, error) {
	invoice, err := s.registry.Invoices().FindByID(ctx, strings.TrimSpace(cmd.InvoiceID))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return CheckoutRedirect{}, fmt.Errorf("%w: invoice", ErrNotFound)
		}
		return CheckoutRedirect{}, fmt.Errorf("load invoice: %w", err)
	}
	if !cmd.Principal.OwnsBusiness(invoice.BusinessID) {
		return CheckoutRedirect{}, fmt.Errorf("%w: no access to this invoice", ErrForbidden)
	}
	if invoice.Status == domain.InvoiceStatusPaid {
		return CheckoutRedirect{}, fmt.Errorf("%w: invoice is already paid", ErrConflict)
	}
	if !invoice.Total.IsPositive() {
		return CheckoutRedirect{}, fmt.Errorf("%w: invoice total must be greater than zero", ErrInvalidInput)
	}

	checkoutCtx := ctx
	if s.checkoutTimeout > 0 {
		var cancel context.CancelFunc
		checkoutCtx, cancel = context.WithTimeout(ctx, s.checkoutTimeout)
		defer cancel()
	}
	session, err := s.provider.CreateCheckoutSession(checkoutCtx, payments.CheckoutSessionRequest{
		InvoiceID:      invoice.ID,
		InvoiceNumber:  invoice.InvoiceNumber,
		Amount:         invoice.Total,
		Currency:       invoice.Currency,
		SuccessURL:     s.successURL,
		CancelURL:      s.cancelURL,
		IdempotencyKey: s.newKey(),
	})
	if err != nil {
		s.logger(ctx, "payments.session.create_failed", map[string]any{
			"invoiceId": invoice.ID,
			"error":     err.Error(),
		})
		return CheckoutRedirect{}, fmt.Errorf("%w: %v", ErrPaymentUnavailable, err)
	}

	invoice.CheckoutSessionID = session.ID
	invoice.UpdatedAt = s.now()
	if err := s.registry.Invoices().Update(ctx, invoice); err != nil {
		return CheckoutRedirect{}, fmt.Errorf("store session reference: %w", err)
	}

	s.logger(ctx, "payments.session.created", map[string]any{
		"invoiceId": invoice.ID,
		"sessionId": session.ID,
	})
	return CheckoutRedirect{URL: session.RedirectURL, SessionID: session.ID}, nil
}

// HandleWebhook finalizes payment for the invoice referenced by a completed
// checkout session. The flow is check, lock, recheck, act: after the fast-path
// paid check the invoice is re-read under a row-level write lock so concurrent
// redeliveries of the same event settle on exactly one completed payment.
func (s *paymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookOutcome, error) {
	event, err := s.verifier.VerifyAndParse(payload, signature)
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			return WebhookOutcome{}, fmt.Errorf("%w: %v", ErrWebhookSignature, err)
		}
		return WebhookOutcome{}, fmt.Errorf("parse webhook: %w", err)
	}
	if event.Type != payments.EventCheckoutCompleted {
		return WebhookOutcome{}, nil
	}
	if event.SessionID == "" {
		return WebhookOutcome{}, nil
	}

	invoice, err := s.registry.Invoices().FindByCheckoutSessionID(ctx, event.SessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.logger(ctx, "payments.webhook.unknown_session", map[string]any{
				"sessionId": event.SessionID,
				"eventId":   event.ID,
			})
			return WebhookOutcome{}, nil
		}
		return WebhookOutcome{}, fmt.Errorf("resolve invoice by session: %w", err)
	}

	if invoice.Status == domain.InvoiceStatusPaid && invoice.PaidAt != nil {
		return WebhookOutcome{InvoiceID: invoice.ID}, nil
	}

	now := s.now()
	var payment domain.Payment
	processed := false
	err = s.registry.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.registry.Invoices().FindByIDForUpdate(txCtx, invoice.ID)
		if err != nil {
			return fmt.Errorf("lock invoice: %w", err)
		}
		if locked.Status == domain.InvoiceStatusPaid {
			return nil
		}

		locked.Status = domain.InvoiceStatusPaid
		locked.PaidAt = &now
		locked.UpdatedAt = now
		if err := s.registry.Invoices().Update(txCtx, locked); err != nil {
			return fmt.Errorf("mark invoice paid: %w", err)
		}

		payment = domain.Payment{
			ID:              newID(),
			InvoiceID:       locked.ID,
			BusinessID:      locked.BusinessID,
			Amount:          locked.Total,
			Currency:        locked.Currency,
			Status:          domain.PaymentStatusCompleted,
			Method:          paymentMethodStripe,
			PaymentIntentID: event.IntentID,
			SessionID:       event.SessionID,
			PaidAt:          &now,
			CreatedAt:       now,
		}
		if err := s.registry.Payments().Insert(txCtx, payment); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		processed = true
		return nil
	})
	if err != nil {
		return WebhookOutcome{}, err
	}
	if !processed {
		return WebhookOutcome{InvoiceID: invoice.ID}, nil
	}

	if _, err := s.events.Publish(ctx, events.NewEnvelope(events.TypePaymentCompleted, now, map[string]any{
		"payment_id": payment.ID,
		"invoice_id": payment.InvoiceID,
		"amount":     payment.Amount.String(),
		"currency":   payment.Currency,
	})); err != nil {
		s.logger(ctx, "payments.event.publish_failed", map[string]any{
			"paymentId": payment.ID,
			"error":     err.Error(),
		})
	}
	s.logger(ctx, "payments.completed", map[string]any{
		"paymentId": payment.ID,
		"invoiceId": payment.InvoiceID,
		"sessionId": event.SessionID,
	})
	return WebhookOutcome{Processed: true, InvoiceID: invoice.ID, PaymentID: payment.ID}, nil
}

// ListPayments returns payments visible through any of the principal's
// business or provider memberships, newest first.
func (s *paymentService) ListPayments(ctx context.Context, principal requestctx.Principal, page domain.Pagination) (domain.CursorPage[domain.Payment], error) {
	businessIDs := principal.BusinessIDs()
	providerIDs := principal.ProviderIDs()
	if len(businessIDs) == 0 && len(providerIDs) == 0 {
		return domain.CursorPage[domain.Payment]{Items: []domain.Payment{}}, nil
	}
	result, err := s.registry.Payments().ListForAccounts(ctx, businessIDs, providerIDs, page)
	if err != nil {
		return domain.CursorPage[domain.Payment]{}, fmt.Errorf("list payments: %w", err)
	}
	return result, nil
}
