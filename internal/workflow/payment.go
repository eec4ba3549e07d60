package workflow

import (
	"strings"

	"github.com/robertarktes/rail-booking/internal/domain"
)

// PaymentForm is the simulated card payment captured on the confirm step.
// Only field presence is checked.
type PaymentForm struct {
	Method      string `json:"paymentMethod"`
	AcceptTerms bool   `json:"acceptTerms"`
	CardNumber  string `json:"cardNumber"`
	HolderName  string `json:"cardHolderName"`
	Expiry      string `json:"expiryDate"`
	CVV         string `json:"cvv"`
}

func validatePayment(f PaymentForm) error {
	ve := domain.NewValidationError(Confirm.String(), "terms and payment method required")
	if !f.AcceptTerms {
		ve.Add("payment", "acceptTerms")
	}
	if strings.TrimSpace(f.Method) == "" {
		ve.Add("payment", "paymentMethod")
	}
	if ve.HasFields() {
		return ve
	}

	ve = domain.NewValidationError(Confirm.String(), "payment details incomplete")
	for _, field := range []struct{ name, value string }{
		{"cardNumber", f.CardNumber},
		{"cardHolderName", f.HolderName},
		{"expiryDate", f.Expiry},
		{"cvv", f.CVV},
	} {
		if strings.TrimSpace(field.value) == "" {
			ve.Add("payment", field.name)
		}
	}
	if ve.HasFields() {
		return ve
	}
	return nil
}
