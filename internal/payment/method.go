package payment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidMethod = errors.New("invalid payment method")

type Method string

const (
	MethodCOD     Method = "cod"
	MethodEWallet Method = "ewallet"
	MethodCard    Method = "card"
	MethodWallet  Method = "wallet" // internal store-credit balance
)

var prefixes = map[Method]string{
	MethodCOD:     "COD",
	MethodEWallet: "EWL",
	MethodCard:    "CRD",
	MethodWallet:  "WLT",
}

func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := prefixes[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidMethod, s)
	}
	return m, nil
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusRefunded  Status = "refunded"
)

// NewTransactionID builds PREFIX-yyyymmddhhmmss-xxxxxxxx.
func NewTransactionID(m Method, now time.Time) string {
	return fmt.Sprintf("%s-%s-%s", prefixes[m], now.UTC().Format("20060102150405"), uuid.NewString()[:8])
}
