package client

import (
	"strings"
)

const phoneDigits = 10

// ValidateDeliveryForm the checks the server repeats, run before submission
func ValidateDeliveryForm(form DeliveryForm) error {
	if strings.TrimSpace(form.ItemName) == "" {
		return &ValidationError{Field: "item_name", Message: "item name is required"}
	}
	if err := ValidatePhone(form.Phone); err != nil {
		return err
	}
	if !form.Amount.IsPositive() {
		return &ValidationError{Field: "delivery_amount", Message: "amount must be greater than zero"}
	}
	if form.TimeLimit < 0 {
		return &ValidationError{Field: "time_limit", Message: "time limit must be positive"}
	}
	if form.Source == nil || !form.Source.Point().Valid() {
		return &ValidationError{Field: "source", Message: "choose a pickup location"}
	}
	if form.Destination == nil || !form.Destination.Point().Valid() {
		return &ValidationError{Field: "destination", Message: "choose a drop-off location"}
	}
	return nil
}

// ValidatePhone exactly 10 digits once separators are stripped
func ValidatePhone(phone string) error {
	digits := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits != phoneDigits {
		return &ValidationError{Field: "phone", Message: "phone number must have 10 digits"}
	}
	return nil
}
