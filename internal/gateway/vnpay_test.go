package gateway

import (
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/pkg/errors"
)

func testClient() *Client {
	cl := NewClient(Config{
		TmnCode:    "TESTTMN1",
		HashSecret: "SUPERSECRETKEY",
		BaseURL:    "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "https://shop.example.com/api/v1/payment-gateway/return",
	})
	cl.now = func() time.Time {
		return time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC)
	}
	return cl
}

// signedCallback builds a callback payload signed with the test secret.
func signedCallback(cl *Client, overrides map[string]string) url.Values {
	values := url.Values{}
	values.Set("vnp_TxnRef", "260901_ORD-0001")
	values.Set("vnp_Amount", "68000000") // 680,000 in minor units
	values.Set("vnp_ResponseCode", "00")
	values.Set("vnp_TransactionNo", "14581253")
	values.Set("vnp_BankCode", "NCB")
	values.Set("vnp_PayDate", "20260901173000")
	for k, v := range overrides {
		values.Set(k, v)
	}
	values.Set("vnp_SecureHash", cl.sign(values))
	return values
}

// ============================================================================
// BuildPaymentURL Tests
// ============================================================================

func TestBuildPaymentURL_Success(t *testing.T) {
	cl := testClient()

	raw, err := cl.BuildPaymentURL(PaymentRequest{
		TxnRef:    "260901_ORD-0001",
		Amount:    680000,
		OrderInfo: "Thanh toan don hang ORD-0001",
		IPAddr:    "203.0.113.10",
	})
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()

	assert.Equal(t, "sandbox.vnpayment.vn", u.Host)
	assert.Equal(t, "2.1.0", q.Get("vnp_Version"))
	assert.Equal(t, "TESTTMN1", q.Get("vnp_TmnCode"))
	assert.Equal(t, strconv.Itoa(680000*100), q.Get("vnp_Amount"))
	assert.Equal(t, "260901_ORD-0001", q.Get("vnp_TxnRef"))
	assert.Equal(t, "20260901103000", q.Get("vnp_CreateDate"))
	assert.Equal(t, "20260901104500", q.Get("vnp_ExpireDate"))
	assert.NotEmpty(t, q.Get("vnp_SecureHash"))
}

func TestBuildPaymentURL_SignatureRoundTrips(t *testing.T) {
	cl := testClient()

	raw, err := cl.BuildPaymentURL(PaymentRequest{
		TxnRef: "260901_ORD-0001",
		Amount: 680000,
		IPAddr: "203.0.113.10",
	})
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)

	// The URL's own parameters must verify against the same secret.
	cb, err := cl.VerifyCallback(u.Query())
	require.NoError(t, err)
	assert.Equal(t, "260901_ORD-0001", cb.TxnRef)
	assert.Equal(t, int64(680000), cb.Amount)
}

func TestBuildPaymentURL_RejectsNonPositiveAmount(t *testing.T) {
	cl := testClient()

	_, err := cl.BuildPaymentURL(PaymentRequest{TxnRef: "x", Amount: 0})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestBuildPaymentURL_RequiresTxnRef(t *testing.T) {
	cl := testClient()

	_, err := cl.BuildPaymentURL(PaymentRequest{Amount: 100000})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// ============================================================================
// VerifyCallback Tests
// ============================================================================

func TestVerifyCallback_Success(t *testing.T) {
	cl := testClient()

	cb, err := cl.VerifyCallback(signedCallback(cl, nil))
	require.NoError(t, err)

	assert.Equal(t, "260901_ORD-0001", cb.TxnRef)
	assert.Equal(t, int64(680000), cb.Amount)
	assert.Equal(t, "14581253", cb.TransactionNo)
	assert.Equal(t, "NCB", cb.BankCode)
	assert.True(t, cb.Success())
	assert.False(t, cb.Expired())
	// PayDate parsed from gateway local time (UTC+7).
	assert.Equal(t, time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC), cb.PayDate)
}

func TestVerifyCallback_TamperedAmount(t *testing.T) {
	cl := testClient()

	values := signedCallback(cl, nil)
	values.Set("vnp_Amount", "100") // tampered after signing

	cb, err := cl.VerifyCallback(values)
	assert.Nil(t, cb)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyCallback_MissingSignature(t *testing.T) {
	cl := testClient()

	values := signedCallback(cl, nil)
	values.Del("vnp_SecureHash")

	_, err := cl.VerifyCallback(values)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyCallback_WrongSecret(t *testing.T) {
	cl := testClient()
	other := NewClient(Config{HashSecret: "DIFFERENTSECRET"})

	values := signedCallback(other, nil)
	_, err := cl.VerifyCallback(values)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyCallback_IgnoresSecureHashType(t *testing.T) {
	cl := testClient()

	// Gateways may echo vnp_SecureHashType; it is excluded from signing.
	values := signedCallback(cl, nil)
	values.Set("vnp_SecureHashType", "HmacSHA512")

	_, err := cl.VerifyCallback(values)
	assert.NoError(t, err)
}

func TestVerifyCallback_FailureCode(t *testing.T) {
	cl := testClient()

	cb, err := cl.VerifyCallback(signedCallback(cl, map[string]string{"vnp_ResponseCode": "24"}))
	require.NoError(t, err)
	assert.False(t, cb.Success())
	assert.False(t, cb.Expired())
}

func TestVerifyCallback_ExpiredCode(t *testing.T) {
	cl := testClient()

	cb, err := cl.VerifyCallback(signedCallback(cl, map[string]string{"vnp_ResponseCode": ResponseCodeExpired}))
	require.NoError(t, err)
	assert.True(t, cb.Expired())
}
