package gateway

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// bodyNamespace is the SOAP body namespace of the bank's PGW channel.
	bodyNamespace = "http://interfaces.core.sw.bps.com/"

	opPayRequest    = "bpPayRequest"
	opVerifyRequest = "bpVerifyRequest"
	opSettleRequest = "bpSettleRequest"
)

// PayFields carries the inputs of the request phase. Amount is a whole
// currency unit count, transmitted without decimal point or separators.
type PayFields struct {
	TerminalID     string
	Username       string
	Password       string
	OrderID        string
	Amount         int64
	PayerID        string
	CallbackURL    string
	AdditionalData string
}

// EncodePayRequest renders the bpPayRequest SOAP envelope. The bank's parser
// is position sensitive despite the named fields: userPassword, amount,
// callBackUrl, orderId, payerId, terminalId, userName, localTime, localDate,
// additionalData must appear in exactly that sequence.
func EncodePayRequest(f PayFields, now time.Time) string {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">` + "\n")
	b.WriteString("  <soap:Body>\n")
	fmt.Fprintf(&b, "    <%s xmlns=%q>\n", opPayRequest, bodyNamespace)
	writeField(&b, "userPassword", f.Password)
	writeField(&b, "amount", strconv.FormatInt(f.Amount, 10))
	writeField(&b, "callBackUrl", f.CallbackURL)
	writeField(&b, "orderId", f.OrderID)
	writeField(&b, "payerId", f.PayerID)
	writeField(&b, "terminalId", f.TerminalID)
	writeField(&b, "userName", f.Username)
	writeField(&b, "localTime", now.Format("150405"))
	writeField(&b, "localDate", now.Format("20060102"))
	writeField(&b, "additionalData", f.AdditionalData)
	fmt.Fprintf(&b, "    </%s>\n", opPayRequest)
	b.WriteString("  </soap:Body>\n")
	b.WriteString("</soap:Envelope>")
	return b.String()
}

// TransactionFields carries the shared inputs of the verify and settle phases.
type TransactionFields struct {
	TerminalID      string
	Username        string
	Password        string
	OrderID         string
	SaleOrderID     string
	SaleReferenceID string
}

// EncodeVerifyRequest renders the bpVerifyRequest SOAP envelope.
func EncodeVerifyRequest(f TransactionFields) string {
	return encodeTransaction(opVerifyRequest, f)
}

// EncodeSettleRequest renders the bpSettleRequest SOAP envelope.
func EncodeSettleRequest(f TransactionFields) string {
	return encodeTransaction(opSettleRequest, f)
}

func encodeTransaction(op string, f TransactionFields) string {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">` + "\n")
	b.WriteString("  <soap:Body>\n")
	fmt.Fprintf(&b, "    <%s xmlns=%q>\n", op, bodyNamespace)
	writeField(&b, "terminalId", f.TerminalID)
	writeField(&b, "userName", f.Username)
	writeField(&b, "userPassword", f.Password)
	writeField(&b, "orderId", f.OrderID)
	writeField(&b, "saleOrderId", f.SaleOrderID)
	writeField(&b, "saleReferenceId", f.SaleReferenceID)
	fmt.Fprintf(&b, "    </%s>\n", op)
	b.WriteString("  </soap:Body>\n")
	b.WriteString("</soap:Envelope>")
	return b.String()
}

func writeField(b *strings.Builder, name, value string) {
	var escaped bytes.Buffer
	_ = xml.EscapeText(&escaped, []byte(value))
	fmt.Fprintf(b, "      <%s>%s</%s>\n", name, escaped.String(), name)
}

// BankError is a business rejection decoded from a gateway response. Code is
// the bank's numeric code as received (sign stripped); composite comma codes
// are kept verbatim.
type BankError struct {
	Code string
}

// Error renders the code together with its catalogued reason.
func (e *BankError) Error() string {
	return fmt.Sprintf("bank error %s: %s", e.Code, ReasonFor(e.Code))
}

// ErrMalformedResponse indicates the gateway reply carried no return value.
var ErrMalformedResponse = fmt.Errorf("malformed gateway response")

var returnPattern = regexp.MustCompile(`<return[^>]*>([^<]+)</return>`)

// DecodeResponse extracts the single scalar the bank wraps in a return tag.
// A scalar containing a comma, or parsing as an integer strictly less than
// zero, is an error code; anything else is a reference token. "0" therefore
// decodes as a token, not an error.
func DecodeResponse(raw string) (string, error) {
	m := returnPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", ErrMalformedResponse
	}
	scalar := strings.TrimSpace(m[1])
	if strings.Contains(scalar, ",") {
		return "", &BankError{Code: scalar}
	}
	if n, err := strconv.Atoi(scalar); err == nil && n < 0 {
		return "", &BankError{Code: strconv.Itoa(-n)}
	}
	return scalar, nil
}

// DecodeResultCode extracts the numeric result code of a verify or settle
// reply. Zero means the phase succeeded.
func DecodeResultCode(raw string) (int, error) {
	m := returnPattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, ErrMalformedResponse
	}
	code, err := strconv.Atoi(strings.TrimSpace(m[1]))
	if err != nil {
		return 0, fmt.Errorf("%w: non-numeric result %q", ErrMalformedResponse, m[1])
	}
	return code, nil
}
