package gateway

import (
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePayRequestFieldOrder(t *testing.T) {
	now := time.Date(2025, 3, 9, 14, 5, 7, 0, time.UTC)
	envelope := EncodePayRequest(PayFields{
		TerminalID:     "1234567",
		Username:       "merchant",
		Password:       "secret",
		OrderID:        "1741529107000123",
		Amount:         50000,
		PayerID:        "7",
		CallbackURL:    "https://shop.example.com/api/wallet/payment-callback",
		AdditionalData: "Topup-abc",
	}, now)

	// The bank's parser is position sensitive; the tags must appear in this
	// exact sequence inside the operation element.
	order := []string{
		"userPassword", "amount", "callBackUrl", "orderId", "payerId",
		"terminalId", "userName", "localTime", "localDate", "additionalData",
	}
	last := -1
	for _, tag := range order {
		idx := strings.Index(envelope, "<"+tag+">")
		require.GreaterOrEqual(t, idx, 0, "missing field %s", tag)
		require.Greater(t, idx, last, "field %s out of order", tag)
		last = idx
	}

	assert.Contains(t, envelope, "<amount>50000</amount>")
	assert.Contains(t, envelope, "<localDate>20250309</localDate>")
	assert.Contains(t, envelope, "<localTime>140507</localTime>")
	assert.Contains(t, envelope, `<bpPayRequest xmlns="http://interfaces.core.sw.bps.com/">`)
}

func TestEncodePayRequestEscapesValues(t *testing.T) {
	envelope := EncodePayRequest(PayFields{
		CallbackURL: "https://shop.example.com/cb?a=1&b=2",
	}, time.Now())

	assert.Contains(t, envelope, "a=1&amp;b=2")
	assert.NotContains(t, envelope, "a=1&b=2<")
}

func TestEncodeVerifyAndSettleOperations(t *testing.T) {
	fields := TransactionFields{
		TerminalID:      "1234567",
		Username:        "merchant",
		Password:        "secret",
		OrderID:         "100",
		SaleOrderID:     "100",
		SaleReferenceID: "REF1",
	}

	verify := EncodeVerifyRequest(fields)
	assert.Contains(t, verify, "<bpVerifyRequest")
	assert.Contains(t, verify, "<saleReferenceId>REF1</saleReferenceId>")

	settle := EncodeSettleRequest(fields)
	assert.Contains(t, settle, "<bpSettleRequest")
	assert.Contains(t, settle, "<saleOrderId>100</saleOrderId>")
}

func wrapReturn(scalar string) string {
	return `<soap:Envelope><soap:Body><ns2:bpPayRequestResponse><return xmlns="">` +
		scalar + `</return></ns2:bpPayRequestResponse></soap:Body></soap:Envelope>`
}

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name      string
		scalar    string
		wantToken string
		wantCode  string
	}{
		{name: "reference token", scalar: "1234567", wantToken: "1234567"},
		{name: "negative is error", scalar: "-11", wantCode: "11"},
		{name: "comma is error", scalar: "11,22", wantCode: "11,22"},
		{name: "zero is a token", scalar: "0", wantToken: "0"},
		{name: "small positive is a token", scalar: "3", wantToken: "3"},
		{name: "alphanumeric token", scalar: "A58F203D1", wantToken: "A58F203D1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := DecodeResponse(wrapReturn(tt.scalar))
			if tt.wantCode != "" {
				var bankErr *BankError
				require.ErrorAs(t, err, &bankErr)
				assert.Equal(t, tt.wantCode, bankErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}

func TestDecodeResponseMalformed(t *testing.T) {
	_, err := DecodeResponse("<soap:Envelope><soap:Body/></soap:Envelope>")
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestDecodeResultCode(t *testing.T) {
	code, err := DecodeResultCode(wrapReturn("0"))
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	code, err = DecodeResultCode(wrapReturn("45"))
	require.NoError(t, err)
	assert.Equal(t, 45, code)

	_, err = DecodeResultCode(wrapReturn("oops"))
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestReasonFor(t *testing.T) {
	assert.Contains(t, ReasonFor("17"), "User cancelled")
	assert.Equal(t, "unknown gateway error", ReasonFor("9999"))
}

func TestEncodedEnvelopeIsWellFormedEnough(t *testing.T) {
	// The settle envelope must keep one open/close pair per field.
	envelope := EncodeSettleRequest(TransactionFields{OrderID: "1"})
	tagPairs := regexp.MustCompile(`<(\w+)>[^<]*</(\w+)>`).FindAllStringSubmatch(envelope, -1)
	for _, pair := range tagPairs {
		assert.Equal(t, pair[1], pair[2])
	}
}
