package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mstgnz/mediapay/provider"
	stripego "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/refund"
	"github.com/stripe/stripe-go/v82/webhook"
)

const (
	providerName = "stripe"

	headerSignature = "Stripe-Signature"
	metadataOrderID = "order_id"
	sessionTTL      = 30 * time.Minute

	eventSessionCompleted    = "checkout.session.completed"
	eventAsyncPaymentSuccess = "checkout.session.async_payment_succeeded"
	eventAsyncPaymentFailed  = "checkout.session.async_payment_failed"
	eventSessionExpired      = "checkout.session.expired"
	eventPaymentFailed       = "payment_intent.payment_failed"
)

// Provider implements provider.Gateway for Stripe hosted Checkout
type Provider struct {
	conf     provider.Config
	sessions session.Client
	refunds  refund.Client
	now      func() time.Time
}

// NewProvider creates a Stripe gateway. Secret is the API key and WebhookSecret the
// endpoint signing secret; APIURL overrides the API base for stripe-mock.
func NewProvider(conf provider.Config) (provider.Gateway, error) {
	if err := conf.Require(map[string]string{"webhookSecret": conf.WebhookSecret}); err != nil {
		return nil, err
	}

	backendConfig := &stripego.BackendConfig{
		HTTPClient:        &http.Client{Timeout: conf.Timeout},
		MaxNetworkRetries: stripego.Int64(int64(conf.RetryCount)),
	}
	if conf.APIURL != "" {
		backendConfig.URL = stripego.String(conf.APIURL)
	}
	backend := stripego.GetBackendWithConfig(stripego.APIBackend, backendConfig)

	return &Provider{
		conf:     conf,
		sessions: session.Client{B: backend, Key: conf.Secret},
		refunds:  refund.Client{B: backend, Key: conf.Secret},
		now:      time.Now,
	}, nil
}

// ProviderID returns the registry key of this gateway
func (p *Provider) ProviderID() string { return providerName }

// BuildPaymentURL creates a Checkout Session and returns its hosted URL
func (p *Provider) BuildPaymentURL(ctx context.Context, request provider.PaymentURLRequest) (string, error) {
	if request.OrderID == "" {
		return "", &provider.Error{Kind: provider.KindEncoding, Provider: providerName, Op: "build", Err: errors.New("order id is required")}
	}
	amount, err := provider.ToMinorUnits(request.Amount)
	if err != nil {
		return "", &provider.Error{Kind: provider.KindEncoding, Provider: providerName, Op: "build", Err: err}
	}

	description := request.Description
	if description == "" {
		description = "Order " + request.OrderID
	}
	cancelURL := p.conf.CancelURL
	if cancelURL == "" {
		cancelURL = p.conf.ReturnURL
	}

	params := &stripego.CheckoutSessionParams{
		Params:            stripego.Params{Context: ctx},
		Mode:              stripego.String(string(stripego.CheckoutSessionModePayment)),
		ClientReferenceID: stripego.String(request.OrderID),
		SuccessURL:        stripego.String(p.conf.ReturnURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripego.String(cancelURL),
		ExpiresAt:         stripego.Int64(p.now().Add(sessionTTL).Unix()),
		LineItems: []*stripego.CheckoutSessionLineItemParams{
			{
				PriceData: &stripego.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripego.String(strings.ToLower(p.conf.Currency)),
					UnitAmount: stripego.Int64(amount),
					ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripego.String(description),
					},
				},
				Quantity: stripego.Int64(1),
			},
		},
		PaymentIntentData: &stripego.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{metadataOrderID: request.OrderID},
		},
	}
	if request.Locale != "" {
		params.Locale = stripego.String(request.Locale)
	}
	params.AddMetadata(metadataOrderID, request.OrderID)

	s, err := p.sessions.New(params)
	if err != nil {
		return "", provider.NetworkError(providerName, "checkout", err)
	}
	if s.URL == "" {
		return "", provider.NetworkError(providerName, "checkout", errors.New("checkout session without url"))
	}
	return s.URL, nil
}

// verifiedEvent checks the Stripe-Signature header before the body is trusted
func (p *Provider) verifiedEvent(callback provider.Callback) (stripego.Event, error) {
	header := callback.Header.Get(headerSignature)
	if header == "" || len(callback.Body) == 0 {
		return stripego.Event{}, provider.SignatureError(providerName)
	}
	event, err := webhook.ConstructEventWithOptions(callback.Body, header, p.conf.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return stripego.Event{}, &provider.Error{Kind: provider.KindSignature, Provider: providerName, Op: "verify", Err: err}
	}
	return event, nil
}

// eventOutcome is the provider-neutral reading of a webhook event
type eventOutcome struct {
	orderID string
	txnNo   string
	code    string
	amount  int64
	content string
}

func readEvent(event stripego.Event) (*eventOutcome, error) {
	switch string(event.Type) {
	case eventSessionCompleted, eventAsyncPaymentSuccess, eventAsyncPaymentFailed, eventSessionExpired:
		var s stripego.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, provider.CallbackError(providerName, "invalid checkout session: %v", err)
		}
		out := &eventOutcome{
			orderID: s.ClientReferenceID,
			txnNo:   s.ID,
			amount:  s.AmountTotal,
			content: s.ID,
		}
		if out.orderID == "" {
			out.orderID = s.Metadata[metadataOrderID]
		}
		if s.PaymentIntent != nil && s.PaymentIntent.ID != "" {
			out.txnNo = s.PaymentIntent.ID
		}
		switch string(event.Type) {
		case eventSessionExpired:
			out.code = codeExpired
		case eventAsyncPaymentFailed:
			out.code = codeFailed
		default:
			out.code = string(s.PaymentStatus)
			if out.code == "" {
				out.code = codeUnpaid
			}
		}
		return out, nil

	case eventPaymentFailed:
		var pi stripego.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, provider.CallbackError(providerName, "invalid payment intent: %v", err)
		}
		out := &eventOutcome{
			orderID: pi.Metadata[metadataOrderID],
			txnNo:   pi.ID,
			amount:  pi.Amount,
			code:    codeFailed,
		}
		if e := pi.LastPaymentError; e != nil {
			out.content = e.Msg
			switch {
			case e.DeclineCode != "":
				out.code = string(e.DeclineCode)
			case e.Code != "":
				out.code = string(e.Code)
			}
		}
		return out, nil
	}
	return nil, provider.CallbackError(providerName, "unsupported event type %q", event.Type)
}

// OrderReference verifies the webhook and returns the order it refers to
func (p *Provider) OrderReference(callback provider.Callback) (string, error) {
	event, err := p.verifiedEvent(callback)
	if err != nil {
		return "", err
	}
	out, err := readEvent(event)
	if err != nil {
		return "", err
	}
	if out.orderID == "" {
		return "", provider.CallbackError(providerName, "event %s carries no order reference", event.ID)
	}
	return out.orderID, nil
}

// ParseCallback verifies the webhook signature and normalizes the event
func (p *Provider) ParseCallback(callback provider.Callback, order provider.OrderContext) (*provider.TransactionRecord, error) {
	event, err := p.verifiedEvent(callback)
	if err != nil {
		return nil, err
	}
	out, err := readEvent(event)
	if err != nil {
		return nil, err
	}
	if out.orderID == "" {
		return nil, provider.CallbackError(providerName, "event %s carries no order reference", event.ID)
	}
	if out.txnNo == "" {
		return nil, provider.CallbackError(providerName, "event %s carries no transaction id", event.ID)
	}

	paidAt := p.now()
	if event.Created > 0 {
		paidAt = time.Unix(event.Created, 0)
	}

	return &provider.TransactionRecord{
		Provider:      providerName,
		OrderID:       out.orderID,
		ProviderTxnNo: out.txnNo,
		ResultCode:    out.code,
		Success:       codeTable.IsSuccess(out.code),
		Amount:        provider.FromMinorUnits(out.amount),
		Content:       out.content,
		PaidAt:        paidAt,
		Order:         order,
		Raw: map[string]string{
			"event_id":   event.ID,
			"event_type": string(event.Type),
		},
	}, nil
}

// Classify maps a session outcome or decline code onto the business taxonomy
func (p *Provider) Classify(code string) error {
	return codeTable.Classify(code)
}

// RequestRefund refunds the payment intent recorded as ProviderTxnNo
func (p *Provider) RequestRefund(ctx context.Context, request provider.RefundRequest) (*provider.RefundResponse, error) {
	txnNo := request.Transaction.ProviderTxnNo
	if !strings.HasPrefix(txnNo, "pi_") {
		return nil, &provider.Error{Kind: provider.KindRefundRejected, Provider: providerName, Op: "refund",
			Err: fmt.Errorf("transaction %q is not a payment intent", txnNo)}
	}
	amount, err := provider.ToMinorUnits(request.RefundAmount())
	if err != nil {
		return nil, &provider.Error{Kind: provider.KindEncoding, Provider: providerName, Op: "refund", Err: err}
	}

	params := &stripego.RefundParams{
		Params:        stripego.Params{Context: ctx},
		PaymentIntent: stripego.String(txnNo),
		Amount:        stripego.Int64(amount),
		Reason:        stripego.String(string(stripego.RefundReasonRequestedByCustomer)),
	}
	params.AddMetadata(metadataOrderID, request.Transaction.OrderID)
	if request.OperatorID != "" {
		params.AddMetadata("operator_id", request.OperatorID)
	}
	if request.RequestID != "" {
		params.SetIdempotencyKey(request.RequestID)
	}

	r, err := p.refunds.New(params)
	if err != nil {
		var se *stripego.Error
		if errors.As(err, &se) && se.HTTPStatusCode > 0 && se.HTTPStatusCode < http.StatusInternalServerError {
			return nil, &provider.Error{Kind: provider.KindRefundRejected, Provider: providerName, Op: "refund", Err: err}
		}
		return nil, provider.NetworkError(providerName, "refund", err)
	}

	resp := &provider.RefundResponse{StatusCode: http.StatusOK}
	if r.LastResponse != nil {
		resp.RequestID = r.LastResponse.RequestID
		resp.StatusCode = r.LastResponse.StatusCode
		resp.Body = r.LastResponse.RawJSON
	}
	if len(resp.Body) == 0 {
		resp.Body, _ = json.Marshal(r)
	}
	return resp, nil
}

// ParseRefund reads a refund object. Pending refunds count as accepted.
func (p *Provider) ParseRefund(raw []byte) (*provider.RefundResult, error) {
	var r stripego.Refund
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, &provider.Error{Kind: provider.KindRefundRejected, Provider: providerName, Op: "refund",
			Err: fmt.Errorf("malformed refund response: %w", err)}
	}
	if r.ID == "" {
		return nil, &provider.Error{Kind: provider.KindRefundRejected, Provider: providerName, Op: "refund",
			Err: errors.New("refund response without id")}
	}

	status := string(r.Status)
	return &provider.RefundResult{
		Success:  status == string(stripego.RefundStatusSucceeded) || status == string(stripego.RefundStatusPending),
		Code:     status,
		Message:  string(r.FailureReason),
		RefundID: r.ID,
	}, nil
}
