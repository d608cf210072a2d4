package onepay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mstgnz/mediapay/provider"
)

const (
	providerName = "onepay"

	// API URLs
	paySandboxURL    = "https://mtf.onepay.vn/paygate/vpcpay.op"
	payProductionURL = "https://onepay.vn/paygate/vpcpay.op"
	apiSandboxURL    = "https://mtf.onepay.vn/onecomm-pay/Vpcdps.op"
	apiProductionURL = "https://onepay.vn/onecomm-pay/Vpcdps.op"

	// Default Values
	defaultVersion  = "2"
	defaultLocale   = "vn"
	defaultCurrency = "VND"
	defaultTitle    = "OnePay Payment Gateway"

	paramSecureHash     = "vpc_SecureHash"
	paramSecureHashType = "vpc_SecureHashType"
)

// Provider implements provider.Gateway and provider.Acknowledger for OnePay
type Provider struct {
	conf   provider.Config
	signer *provider.Signer
	client *provider.ProviderHTTPClient
	payURL string
	apiURL string

	now          func() time.Time
	newRequestID func() string
}

// NewProvider creates a OnePay gateway. Secret is the hex-encoded hash key and
// AccessCode the merchant access code.
func NewProvider(conf provider.Config) (provider.Gateway, error) {
	if err := conf.Require(map[string]string{"accessCode": conf.AccessCode}); err != nil {
		return nil, err
	}
	signer, err := provider.NewHexKeySigner(conf.Secret, provider.HMACSHA256)
	if err != nil {
		return nil, provider.ConfigError(providerName, "%v", err)
	}

	p := &Provider{
		conf:   conf,
		signer: signer,
		payURL: conf.PayURL,
		apiURL: conf.APIURL,
		now:    time.Now,
		newRequestID: func() string {
			return strings.ReplaceAll(uuid.New().String(), "-", "")[:20]
		},
	}
	if p.conf.Version == "" {
		p.conf.Version = defaultVersion
	}
	if p.conf.Currency == "" {
		p.conf.Currency = defaultCurrency
	}
	if p.payURL == "" {
		p.payURL = paySandboxURL
		if conf.IsProduction() {
			p.payURL = payProductionURL
		}
	}
	if p.apiURL == "" {
		p.apiURL = apiSandboxURL
		if conf.IsProduction() {
			p.apiURL = apiProductionURL
		}
	}

	p.client = provider.NewProviderHTTPClient(&provider.HTTPClientConfig{
		Provider:   providerName,
		BaseURL:    p.apiURL,
		Timeout:    conf.Timeout,
		RetryCount: conf.RetryCount,
	})

	return p, nil
}

// ProviderID returns the registry key of this gateway
func (p *Provider) ProviderID() string { return providerName }

func signedKey(key string) bool {
	if key == paramSecureHash || key == paramSecureHashType {
		return false
	}
	return strings.HasPrefix(key, "vpc_") || strings.HasPrefix(key, "user_")
}

// sign returns the uppercase digest over the signed keys of params, values unencoded
func (p *Provider) sign(params map[string]string) (string, error) {
	_, sig, err := p.signer.Sign(params, provider.WithoutEncoding(), provider.WithKeyFilter(signedKey))
	if err != nil {
		return "", err
	}
	return strings.ToUpper(sig), nil
}

func (p *Provider) verify(params map[string]string) bool {
	sig := params[paramSecureHash]
	return sig != "" && p.signer.Verify(params, sig, provider.WithoutEncoding(), provider.WithKeyFilter(signedKey))
}

// BuildPaymentURL assembles the signed checkout URL. No network call is made.
func (p *Provider) BuildPaymentURL(ctx context.Context, request provider.PaymentURLRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if request.OrderID == "" {
		return "", &provider.Error{Kind: provider.KindEncoding, Provider: providerName, Op: "build", Err: errors.New("order id is required")}
	}
	amount, err := provider.FormatMinorUnits(request.Amount)
	if err != nil {
		return "", &provider.Error{Kind: provider.KindEncoding, Provider: providerName, Op: "build", Err: err}
	}

	locale := request.Locale
	if locale == "" {
		locale = p.conf.Locale
	}
	if locale == "" {
		locale = defaultLocale
	}
	orderInfo := request.Description
	if orderInfo == "" {
		orderInfo = "Order " + request.OrderID
	}
	clientIP := request.ClientIP
	if clientIP == "" {
		clientIP = "127.0.0.1"
	}
	againLink := p.conf.CancelURL
	if againLink == "" {
		againLink = p.conf.ReturnURL
	}

	params := map[string]string{
		"vpc_Version":     p.conf.Version,
		"vpc_Command":     "pay",
		"vpc_AccessCode":  p.conf.AccessCode,
		"vpc_Merchant":    p.conf.MerchantCode,
		"vpc_Locale":      locale,
		"vpc_Currency":    p.conf.Currency,
		"vpc_ReturnURL":   p.conf.ReturnURL,
		"vpc_MerchTxnRef": request.OrderID,
		"vpc_OrderInfo":   orderInfo,
		"vpc_Amount":      amount,
		"vpc_TicketNo":    clientIP,
		"AgainLink":       againLink,
		"Title":           defaultTitle,
	}

	signature, err := p.sign(params)
	if err != nil {
		return "", err
	}
	return p.payURL + "?" + provider.Canonicalize(params) + "&" + paramSecureHash + "=" + signature, nil
}

// OrderReference returns vpc_MerchTxnRef
func (p *Provider) OrderReference(callback provider.Callback) (string, error) {
	ref := callback.Params["vpc_MerchTxnRef"]
	if ref == "" {
		return "", provider.CallbackError(providerName, "missing vpc_MerchTxnRef")
	}
	return ref, nil
}

// ParseCallback verifies vpc_SecureHash and normalizes the return or IPN parameters
func (p *Provider) ParseCallback(callback provider.Callback, order provider.OrderContext) (*provider.TransactionRecord, error) {
	params := callback.Params
	if !p.verify(params) {
		return nil, provider.SignatureError(providerName)
	}

	if merchant := params["vpc_Merchant"]; merchant != "" && merchant != p.conf.MerchantCode {
		return nil, provider.CallbackError(providerName, "callback addressed to merchant %q", merchant)
	}

	ref := params["vpc_MerchTxnRef"]
	code := params["vpc_TxnResponseCode"]
	rawAmount := params["vpc_Amount"]
	switch {
	case ref == "":
		return nil, provider.CallbackError(providerName, "missing vpc_MerchTxnRef")
	case code == "":
		return nil, provider.CallbackError(providerName, "missing vpc_TxnResponseCode")
	case rawAmount == "":
		return nil, provider.CallbackError(providerName, "missing vpc_Amount")
	}
	amount, err := provider.ParseMinorUnits(rawAmount)
	if err != nil {
		return nil, provider.CallbackError(providerName, "%v", err)
	}

	raw := make(map[string]string, len(params))
	for k, v := range params {
		raw[k] = v
	}

	return &provider.TransactionRecord{
		Provider:      providerName,
		OrderID:       ref,
		ProviderTxnNo: params["vpc_TransactionNo"],
		ResultCode:    code,
		Success:       codeTable.IsSuccess(code),
		Amount:        amount,
		Content:       params["vpc_OrderInfo"],
		CardType:      params["vpc_Card"],
		PaidAt:        p.now(),
		Order:         order,
		Raw:           raw,
	}, nil
}

// Classify maps a vpc_TxnResponseCode onto the business taxonomy
func (p *Provider) Classify(code string) error {
	return codeTable.Classify(code)
}

// RequestRefund posts a signed refund form to the query API
func (p *Provider) RequestRefund(ctx context.Context, request provider.RefundRequest) (*provider.RefundResponse, error) {
	if err := p.conf.Require(map[string]string{"user": p.conf.User, "password": p.conf.Password}); err != nil {
		return nil, err
	}

	txn := request.Transaction
	refundAmount := request.RefundAmount()
	if refundAmount.GreaterThan(txn.Amount) {
		return nil, &provider.Error{Kind: provider.KindEncoding, Provider: providerName, Op: "refund",
			Err: fmt.Errorf("refund amount %s exceeds paid amount %s", refundAmount, txn.Amount)}
	}
	amount, err := provider.FormatMinorUnits(refundAmount)
	if err != nil {
		return nil, &provider.Error{Kind: provider.KindEncoding, Provider: providerName, Op: "refund", Err: err}
	}

	operator := request.OperatorID
	if operator == "" {
		operator = p.conf.User
	}

	form := map[string]string{
		"vpc_Command":       "refund",
		"vpc_Version":       p.conf.Version,
		"vpc_Merchant":      p.conf.MerchantCode,
		"vpc_AccessCode":    p.conf.AccessCode,
		"vpc_MerchTxnRef":   p.merchTxnRef(request),
		"vpc_TransactionNo": txn.ProviderTxnNo,
		"vpc_Amount":        amount,
		"vpc_Operator":      operator,
		"vpc_User":          p.conf.User,
		"vpc_Password":      p.conf.Password,
	}
	signature, err := p.sign(form)
	if err != nil {
		return nil, err
	}
	form[paramSecureHash] = signature

	resp, err := p.client.PostForm(ctx, "refund", p.apiURL, form)
	if err != nil {
		return nil, err
	}
	return &provider.RefundResponse{
		RequestID:  form["vpc_MerchTxnRef"],
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
	}, nil
}

// merchTxnRef is the vpc_MerchTxnRef of a refund, capped at 20 characters
func (p *Provider) merchTxnRef(request provider.RefundRequest) string {
	ref := strings.ReplaceAll(request.RequestID, "-", "")
	if ref == "" {
		return p.newRequestID()
	}
	if len(ref) > 20 {
		ref = ref[:20]
	}
	return ref
}

// ParseRefund reads the form-encoded refund answer. A signed answer must verify.
func (p *Provider) ParseRefund(raw []byte) (*provider.RefundResult, error) {
	values, err := url.ParseQuery(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, &provider.Error{Kind: provider.KindRefundRejected, Provider: providerName, Op: "refund",
			Err: fmt.Errorf("malformed refund response: %w", err)}
	}
	params := make(map[string]string, len(values))
	for k := range values {
		params[k] = values.Get(k)
	}

	code := params["vpc_TxnResponseCode"]
	if code == "" {
		return nil, &provider.Error{Kind: provider.KindRefundRejected, Provider: providerName, Op: "refund",
			Err: errors.New("refund response without vpc_TxnResponseCode")}
	}
	if params[paramSecureHash] != "" && !p.verify(params) {
		return nil, provider.SignatureError(providerName)
	}

	return &provider.RefundResult{
		Success:  code == successCode,
		Code:     code,
		Message:  params["vpc_Message"],
		RefundID: params["vpc_TransactionNo"],
	}, nil
}

// Acknowledge renders the IPN reply OnePay expects
func (p *Provider) Acknowledge(outcome provider.AckOutcome) provider.Ack {
	body := ackFail
	if outcome == provider.AckConfirmed || outcome == provider.AckAlreadyConfirmed {
		body = ackSuccess
	}
	return provider.Ack{
		StatusCode:  http.StatusOK,
		ContentType: "text/plain; charset=utf-8",
		Body:        []byte(body),
	}
}
