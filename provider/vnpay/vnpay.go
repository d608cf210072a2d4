package vnpay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mstgnz/mediapay/provider"
)

const (
	providerName = "vnpay"

	// API URLs
	paySandboxURL    = "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"
	payProductionURL = "https://pay.vnpay.vn/vpcpay.html"
	apiSandboxURL    = "https://sandbox.vnpayment.vn/merchant_webapi/api/transaction"
	apiProductionURL = "https://merchant.vnpay.vn/merchant_webapi/api/transaction"

	// Default Values
	defaultVersion  = "2.1.0"
	defaultLocale   = "vn"
	defaultCurrency = "VND"
	defaultTimezone = "Asia/Ho_Chi_Minh"
	orderType       = "other"
	timeLayout      = "20060102150405"
	paymentTTL      = 15 * time.Minute

	transactionFullRefund    = "02"
	transactionPartialRefund = "03"

	paramSecureHash     = "vnp_SecureHash"
	paramSecureHashType = "vnp_SecureHashType"
)

// Provider implements provider.Gateway and provider.Acknowledger for VNPay
type Provider struct {
	conf   provider.Config
	signer *provider.Signer
	client *provider.ProviderHTTPClient
	loc    *time.Location
	payURL string
	apiURL string

	now          func() time.Time
	newRequestID func() string
}

// NewProvider creates a VNPay gateway from a validated configuration
func NewProvider(conf provider.Config) (provider.Gateway, error) {
	signer, err := provider.NewSigner(conf.Secret, provider.HMACSHA512)
	if err != nil {
		return nil, provider.ConfigError(providerName, "%v", err)
	}

	loc := conf.LocationOr(nil)
	if loc == nil {
		loc, err = time.LoadLocation(defaultTimezone)
		if err != nil {
			loc = time.FixedZone("ICT", 7*60*60)
		}
	}

	p := &Provider{
		conf:   conf,
		signer: signer,
		loc:    loc,
		payURL: conf.PayURL,
		apiURL: conf.APIURL,
		now:    time.Now,
		newRequestID: func() string {
			return strings.ReplaceAll(uuid.New().String(), "-", "")
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

// BuildPaymentURL assembles the signed checkout URL. No network call is made.
func (p *Provider) BuildPaymentURL(ctx context.Context, request provider.PaymentURLRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if request.OrderID == "" {
		return "", &provider.Error{Kind: provider.KindEncoding, Provider: providerName, Op: "build", Err: fmt.Errorf("order id is required")}
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
		orderInfo = "Thanh toan don hang " + request.OrderID
	}
	clientIP := request.ClientIP
	if clientIP == "" {
		clientIP = "127.0.0.1"
	}

	created := p.now().In(p.loc)
	params := map[string]string{
		"vnp_Version":    p.conf.Version,
		"vnp_Command":    "pay",
		"vnp_TmnCode":    p.conf.MerchantCode,
		"vnp_Amount":     amount,
		"vnp_CurrCode":   p.conf.Currency,
		"vnp_Locale":     locale,
		"vnp_IpAddr":     clientIP,
		"vnp_ReturnUrl":  p.conf.ReturnURL,
		"vnp_TxnRef":     request.OrderID,
		"vnp_OrderInfo":  orderInfo,
		"vnp_OrderType":  orderType,
		"vnp_BankCode":   request.BankCode,
		"vnp_CreateDate": created.Format(timeLayout),
		"vnp_ExpireDate": created.Add(paymentTTL).Format(timeLayout),
	}

	canonical, signature, err := p.signer.Sign(params)
	if err != nil {
		return "", err
	}
	return p.payURL + "?" + canonical + "&" + paramSecureHash + "=" + signature, nil
}

// OrderReference returns vnp_TxnRef
func (p *Provider) OrderReference(callback provider.Callback) (string, error) {
	ref := callback.Params["vnp_TxnRef"]
	if ref == "" {
		return "", provider.CallbackError(providerName, "missing vnp_TxnRef")
	}
	return ref, nil
}

func signedKey(key string) bool {
	return strings.HasPrefix(key, "vnp_") && key != paramSecureHash && key != paramSecureHashType
}

// ParseCallback verifies vnp_SecureHash and normalizes the return or IPN parameters
func (p *Provider) ParseCallback(callback provider.Callback, order provider.OrderContext) (*provider.TransactionRecord, error) {
	params := callback.Params
	signature := params[paramSecureHash]
	if signature == "" || !p.signer.Verify(params, signature, provider.WithKeyFilter(signedKey)) {
		return nil, provider.SignatureError(providerName)
	}

	if tmn := params["vnp_TmnCode"]; tmn != "" && tmn != p.conf.MerchantCode {
		return nil, provider.CallbackError(providerName, "callback addressed to terminal %q", tmn)
	}

	ref := params["vnp_TxnRef"]
	code := params["vnp_ResponseCode"]
	rawAmount := params["vnp_Amount"]
	switch {
	case ref == "":
		return nil, provider.CallbackError(providerName, "missing vnp_TxnRef")
	case code == "":
		return nil, provider.CallbackError(providerName, "missing vnp_ResponseCode")
	case rawAmount == "":
		return nil, provider.CallbackError(providerName, "missing vnp_Amount")
	}
	amount, err := provider.ParseMinorUnits(rawAmount)
	if err != nil {
		return nil, provider.CallbackError(providerName, "%v", err)
	}

	// a successful response code with a failed transaction status is a failure
	status := params["vnp_TransactionStatus"]
	if code == successCode && status != "" && status != successCode {
		code = status
	}

	paidAt := p.now()
	if raw := params["vnp_PayDate"]; raw != "" {
		if t, err := time.ParseInLocation(timeLayout, raw, p.loc); err == nil {
			paidAt = t
		}
	}

	raw := make(map[string]string, len(params))
	for k, v := range params {
		raw[k] = v
	}

	return &provider.TransactionRecord{
		Provider:      providerName,
		OrderID:       ref,
		ProviderTxnNo: params["vnp_TransactionNo"],
		ResultCode:    code,
		Success:       codeTable.IsSuccess(code),
		Amount:        amount,
		Content:       params["vnp_OrderInfo"],
		BankCode:      params["vnp_BankCode"],
		BankTxnNo:     params["vnp_BankTranNo"],
		CardType:      params["vnp_CardType"],
		PaidAt:        paidAt,
		Order:         order,
		Raw:           raw,
	}, nil
}

// Classify maps a vnp_ResponseCode onto the business taxonomy
func (p *Provider) Classify(code string) error {
	return codeTable.Classify(code)
}

// RequestRefund sends a signed refund request to the merchant API
func (p *Provider) RequestRefund(ctx context.Context, request provider.RefundRequest) (*provider.RefundResponse, error) {
	txn := request.Transaction
	refundAmount := request.RefundAmount()
	amount, err := provider.FormatMinorUnits(refundAmount)
	if err != nil {
		return nil, &provider.Error{Kind: provider.KindEncoding, Provider: providerName, Op: "refund", Err: err}
	}
	if refundAmount.GreaterThan(txn.Amount) {
		return nil, &provider.Error{Kind: provider.KindEncoding, Provider: providerName, Op: "refund",
			Err: fmt.Errorf("refund amount %s exceeds paid amount %s", refundAmount, txn.Amount)}
	}

	transactionType := transactionFullRefund
	if !refundAmount.Equal(txn.Amount) {
		transactionType = transactionPartialRefund
	}
	orderInfo := request.Reason
	if orderInfo == "" {
		orderInfo = "Hoan tien don hang " + txn.OrderID
	}
	clientIP := request.ClientIP
	if clientIP == "" {
		clientIP = "127.0.0.1"
	}

	body := map[string]string{
		"vnp_RequestId":       p.requestID(request),
		"vnp_Version":         p.conf.Version,
		"vnp_Command":         "refund",
		"vnp_TmnCode":         p.conf.MerchantCode,
		"vnp_TransactionType": transactionType,
		"vnp_TxnRef":          txn.OrderID,
		"vnp_Amount":          amount,
		"vnp_TransactionNo":   txn.ProviderTxnNo,
		"vnp_TransactionDate": txn.PaidAt.In(p.loc).Format(timeLayout),
		"vnp_CreateBy":        request.OperatorID,
		"vnp_CreateDate":      p.now().In(p.loc).Format(timeLayout),
		"vnp_IpAddr":          clientIP,
		"vnp_OrderInfo":       orderInfo,
	}

	hash, err := p.signer.SignString(joinFields(body,
		"vnp_RequestId", "vnp_Version", "vnp_Command", "vnp_TmnCode", "vnp_TransactionType",
		"vnp_TxnRef", "vnp_Amount", "vnp_TransactionNo", "vnp_TransactionDate", "vnp_CreateBy",
		"vnp_CreateDate", "vnp_IpAddr", "vnp_OrderInfo",
	))
	if err != nil {
		return nil, err
	}
	body[paramSecureHash] = hash

	resp, err := p.client.PostJSON(ctx, "refund", p.apiURL, body)
	if err != nil {
		return nil, err
	}
	return &provider.RefundResponse{
		RequestID:  body["vnp_RequestId"],
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
	}, nil
}

// requestID is the vnp_RequestId of a refund; at most 32 alphanumeric characters
func (p *Provider) requestID(request provider.RefundRequest) string {
	id := strings.ReplaceAll(request.RequestID, "-", "")
	if id == "" {
		return p.newRequestID()
	}
	if len(id) > 32 {
		id = id[:32]
	}
	return id
}

// refundResponse is the merchant API answer to a refund request
type refundResponse struct {
	ResponseID        string `json:"vnp_ResponseId"`
	Command           string `json:"vnp_Command"`
	ResponseCode      string `json:"vnp_ResponseCode"`
	Message           string `json:"vnp_Message"`
	TmnCode           string `json:"vnp_TmnCode"`
	TxnRef            string `json:"vnp_TxnRef"`
	Amount            string `json:"vnp_Amount"`
	BankCode          string `json:"vnp_BankCode"`
	PayDate           string `json:"vnp_PayDate"`
	TransactionNo     string `json:"vnp_TransactionNo"`
	TransactionType   string `json:"vnp_TransactionType"`
	TransactionStatus string `json:"vnp_TransactionStatus"`
	OrderInfo         string `json:"vnp_OrderInfo"`
	SecureHash        string `json:"vnp_SecureHash"`
}

// ParseRefund interprets the merchant API answer. A signed answer must verify.
func (p *Provider) ParseRefund(raw []byte) (*provider.RefundResult, error) {
	var resp refundResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &provider.Error{Kind: provider.KindRefundRejected, Provider: providerName, Op: "refund",
			Err: fmt.Errorf("malformed refund response: %w", err)}
	}
	if resp.ResponseCode == "" {
		return nil, &provider.Error{Kind: provider.KindRefundRejected, Provider: providerName, Op: "refund",
			Err: fmt.Errorf("refund response without vnp_ResponseCode")}
	}

	if resp.SecureHash != "" {
		data := strings.Join([]string{
			resp.ResponseID, resp.Command, resp.ResponseCode, resp.Message, resp.TmnCode,
			resp.TxnRef, resp.Amount, resp.BankCode, resp.PayDate, resp.TransactionNo,
			resp.TransactionType, resp.TransactionStatus, resp.OrderInfo,
		}, "|")
		expected, err := p.signer.SignString(data)
		if err != nil {
			return nil, err
		}
		if !provider.VerifyHex(expected, resp.SecureHash) {
			return nil, provider.SignatureError(providerName)
		}
	}

	return &provider.RefundResult{
		Success:  resp.ResponseCode == successCode,
		Code:     resp.ResponseCode,
		Message:  resp.Message,
		RefundID: resp.TransactionNo,
	}, nil
}

// Acknowledge renders the IPN reply VNPay expects
func (p *Provider) Acknowledge(outcome provider.AckOutcome) provider.Ack {
	code, ok := ackCodes[outcome]
	if !ok {
		code = ackCodes[provider.AckUnknownError]
	}
	body, _ := json.Marshal(map[string]string{"RspCode": code[0], "Message": code[1]})
	return provider.Ack{
		StatusCode:  http.StatusOK,
		ContentType: "application/json",
		Body:        body,
	}
}

func joinFields(values map[string]string, keys ...string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = values[k]
	}
	return strings.Join(parts, "|")
}
