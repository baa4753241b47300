package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/pkg/errors"
)

// VNPay protocol constants.
const (
	vnpVersion = "2.1.0"
	vnpCommand = "pay"
	vnpLocale  = "vn"

	// ResponseCodeSuccess is the gateway's code for a settled payment.
	ResponseCodeSuccess = "00"
	// ResponseCodeExpired is returned when the payment window lapsed.
	ResponseCodeExpired = "11"

	dateLayout = "20060102150405"
)

// ErrInvalidSignature is returned when a callback's signature does not match
// the recomputation. The message deliberately carries no signature material.
var ErrInvalidSignature = apperrors.Unauthorized("payment callback signature mismatch")

// Config holds the merchant credentials and endpoints for the VNPay gateway.
// All fields are required at startup.
type Config struct {
	TmnCode    string
	HashSecret string
	BaseURL    string
	ReturnURL  string
}

// Client builds signed payment URLs and verifies inbound callbacks.
type Client struct {
	cfg Config
	now func() time.Time
}

// NewClient creates a gateway client from the given merchant configuration.
func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg, now: time.Now}
}

// PaymentRequest describes one payment to be collected through the gateway.
type PaymentRequest struct {
	TxnRef    string
	Amount    int64
	OrderInfo string
	IPAddr    string
	ExpiresIn time.Duration
}

// Callback is the parsed, signature-verified gateway return payload.
type Callback struct {
	TxnRef        string
	Amount        int64
	ResponseCode  string
	TransactionNo string
	BankCode      string
	PayDate       time.Time
}

// Success reports whether the gateway settled the payment.
func (c *Callback) Success() bool {
	return c.ResponseCode == ResponseCodeSuccess
}

// Expired reports whether the payment window lapsed before settlement.
func (c *Callback) Expired() bool {
	return c.ResponseCode == ResponseCodeExpired
}

// BuildPaymentURL constructs the signed redirect URL that sends the shopper
// to the gateway's payment page. The amount is sent in the gateway's minor
// unit convention (value multiplied by 100).
func (cl *Client) BuildPaymentURL(req PaymentRequest) (string, error) {
	if req.TxnRef == "" {
		return "", apperrors.InvalidInput("transaction reference is required")
	}
	if req.Amount <= 0 {
		return "", apperrors.InvalidInput("payment amount must be positive")
	}

	now := cl.now()
	expire := req.ExpiresIn
	if expire <= 0 {
		expire = 15 * time.Minute
	}

	params := url.Values{}
	params.Set("vnp_Version", vnpVersion)
	params.Set("vnp_Command", vnpCommand)
	params.Set("vnp_TmnCode", cl.cfg.TmnCode)
	params.Set("vnp_Amount", strconv.FormatInt(req.Amount*100, 10))
	params.Set("vnp_CurrCode", "VND")
	params.Set("vnp_TxnRef", req.TxnRef)
	params.Set("vnp_OrderInfo", req.OrderInfo)
	params.Set("vnp_OrderType", "other")
	params.Set("vnp_Locale", vnpLocale)
	params.Set("vnp_ReturnUrl", cl.cfg.ReturnURL)
	params.Set("vnp_IpAddr", req.IPAddr)
	params.Set("vnp_CreateDate", now.Format(dateLayout))
	params.Set("vnp_ExpireDate", now.Add(expire).Format(dateLayout))

	signed := cl.sign(params)
	params.Set("vnp_SecureHash", signed)

	return cl.cfg.BaseURL + "?" + params.Encode(), nil
}

// VerifyCallback checks the callback signature and parses the payload.
// A mismatch returns ErrInvalidSignature with no further detail.
func (cl *Client) VerifyCallback(values url.Values) (*Callback, error) {
	received := values.Get("vnp_SecureHash")
	if received == "" {
		return nil, ErrInvalidSignature
	}

	unsigned := url.Values{}
	for k, vs := range values {
		if k == "vnp_SecureHash" || k == "vnp_SecureHashType" {
			continue
		}
		for _, v := range vs {
			unsigned.Add(k, v)
		}
	}

	expected := cl.sign(unsigned)
	if !hmac.Equal([]byte(strings.ToLower(received)), []byte(expected)) {
		return nil, ErrInvalidSignature
	}

	cb := &Callback{
		TxnRef:        values.Get("vnp_TxnRef"),
		ResponseCode:  values.Get("vnp_ResponseCode"),
		TransactionNo: values.Get("vnp_TransactionNo"),
		BankCode:      values.Get("vnp_BankCode"),
	}

	if raw := values.Get("vnp_Amount"); raw != "" {
		minor, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, apperrors.InvalidInput("malformed callback amount")
		}
		cb.Amount = minor / 100
	}

	if raw := values.Get("vnp_PayDate"); raw != "" {
		t, err := time.ParseInLocation(dateLayout, raw, time.FixedZone("ICT", 7*3600))
		if err == nil {
			cb.PayDate = t.UTC()
		}
	}

	return cb, nil
}

// sign computes the lowercase hex HMAC-SHA512 over the parameters sorted by
// key and encoded as a query string.
func (cl *Client) sign(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		fmt.Fprintf(&b, "%s=%s", k, url.QueryEscape(params.Get(k)))
	}

	mac := hmac.New(sha512.New, []byte(cl.cfg.HashSecret))
	mac.Write([]byte(b.String()))
	return hex.EncodeToString(mac.Sum(nil))
}
