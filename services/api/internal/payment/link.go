package payment

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/Pain0402/CoolStyle/services/api/internal/clock"
	"github.com/Pain0402/CoolStyle/services/api/internal/domain"
)

// Gateway parameter names shared by the pay link and the callback.
const (
	ParamTxnRef        = "vnp_TxnRef"
	ParamAmount        = "vnp_Amount"
	ParamOrderInfo     = "vnp_OrderInfo"
	ParamReturnURL     = "vnp_ReturnUrl"
	ParamNonce         = "vnp_TxnNonce"
	ParamCreateDate    = "vnp_CreateDate"
	ParamResponseCode  = "vnp_ResponseCode"
	ParamTransactionNo = "vnp_TransactionNo"
)

const createDateLayout = "20060102150405"

// amountScale is the minor-unit multiplier the gateway expects in vnp_Amount.
var amountScale = decimal.NewFromInt(100)

// LinkBuilder produces signed redirect URLs to the hosted payment page.
type LinkBuilder struct {
	signer    *Signer
	payURL    string
	returnURL string
	clock     clock.Clock
	nonce     func() string
}

type LinkOption func(*LinkBuilder)

// WithNonce replaces the random nonce source, primarily for tests.
func WithNonce(fn func() string) LinkOption {
	return func(b *LinkBuilder) {
		if fn != nil {
			b.nonce = fn
		}
	}
}

func NewLinkBuilder(signer *Signer, payURL, returnURL string, clk clock.Clock, opts ...LinkOption) *LinkBuilder {
	b := &LinkBuilder{
		signer:    signer,
		payURL:    payURL,
		returnURL: returnURL,
		clock:     clk,
		nonce:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// PaymentURL returns the signed pay page URL for order.
func (b *LinkBuilder) PaymentURL(order domain.Order) (string, error) {
	base, err := url.Parse(b.payURL)
	if err != nil {
		return "", errors.Wrap(err, "parse gateway pay url")
	}

	ref := strconv.FormatInt(order.ID, 10)
	params := url.Values{}
	params.Set(ParamTxnRef, ref)
	params.Set(ParamAmount, FormatAmount(order.TotalAmount))
	params.Set(ParamOrderInfo, "Payment for order "+ref)
	params.Set(ParamReturnURL, b.returnURL)
	params.Set(ParamNonce, b.nonce())
	params.Set(ParamCreateDate, b.clock.Now().UTC().Format(createDateLayout))
	params.Set(ParamSecureHash, b.signer.Sign(params))

	base.RawQuery = params.Encode()
	return base.String(), nil
}

// FormatAmount renders a total in gateway minor units.
func FormatAmount(total decimal.Decimal) string {
	return total.Mul(amountScale).Truncate(0).String()
}

// ParseAmount converts a gateway vnp_Amount back to the order currency. A missing
// amount yields nil.
func ParseAmount(raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	minor, err := decimal.NewFromString(raw)
	if err != nil || minor.IsNegative() {
		return nil, domain.ErrInvalidCallback
	}
	amount := minor.Div(amountScale)
	return &amount, nil
}
