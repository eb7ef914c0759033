package payments

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrProviderUnavailable is returned when the PSP rejects or cannot service a request.
var ErrProviderUnavailable = errors.New("payments: provider unavailable")

// CheckoutLineItem describes a single invoice line to include in a checkout session.
type CheckoutLineItem struct {
	Description string
	Quantity    int64
	Amount      decimal.Decimal
	Currency    string
}

// CheckoutSessionRequest captures the payload required to create a hosted checkout session.
type CheckoutSessionRequest struct {
	InvoiceID      string
	InvoiceNumber  string
	Amount         decimal.Decimal
	Currency       string
	SuccessURL     string
	CancelURL      string
	Metadata       map[string]string
	IdempotencyKey string
	Items          []CheckoutLineItem
}

// CheckoutSession represents the PSP session returned to the client.
type CheckoutSession struct {
	ID          string
	RedirectURL string
	IntentID    string
	ExpiresAt   time.Time
}

// WebhookEvent is the normalised shape of a PSP notification after signature
// verification. Only the fields the reconciliation flow needs are surfaced.
type WebhookEvent struct {
	ID           string
	Type         string
	SessionID    string
	IntentID     string
	AmountTotal  decimal.Decimal
	Currency     string
	ReceivedAt   time.Time
}

// EventCheckoutCompleted is the only event type the reconciliation flow acts on.
const EventCheckoutCompleted = "checkout.session.completed"

// CheckoutProvider defines the contract for PSP adapters.
type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error)
}

// WebhookVerifier authenticates and decodes raw webhook deliveries.
type WebhookVerifier interface {
	VerifyAndParse(payload []byte, signature string) (WebhookEvent, error)
}

// ErrInvalidSignature is returned when a webhook payload fails signature verification.
var ErrInvalidSignature = errors.New("payments: invalid webhook signature")
