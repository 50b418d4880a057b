// Package transfer canonicalises the entities of a TRANSFER command.
package transfer

import (
	"strings"

	"banking-command-workers/internal/models"
)

type currencyCue struct {
	cue      string
	foldCase bool
	currency string
}

// Checked in order; the first cue found in the raw text decides the currency.
var currencyCues = []currencyCue{
	{"rupees", true, "INR"},
	{"Rs.", false, "INR"},
	{"rs.", true, "INR"},
	{"Rs", false, "INR"},
	{"rs", true, "INR"},
	{"dollars", true, "USD"},
	{"euros", true, "EUR"},
	{"$", false, "USD"},
	{"£", false, "GBP"},
	{"€", false, "EUR"},
}

// Normalize returns a copy of entities with recipientName renamed to
// beneficiaryName and the currency inferred from rawText when missing. The
// input map is not modified.
func Normalize(entities models.Entities, rawText string) models.Entities {
	out := entities.Clone()

	if out.Has(models.EntityRecipientName) && !out.Has(models.EntityBeneficiaryName) {
		out[models.EntityBeneficiaryName] = out[models.EntityRecipientName]
		delete(out, models.EntityRecipientName)
	}

	if !out.Has(models.EntityCurrency) {
		if c := InferCurrency(rawText); c != "" {
			out[models.EntityCurrency] = c
		}
	}
	return out
}

// InferCurrency returns "" when the text carries no currency cue.
func InferCurrency(rawText string) string {
	lower := strings.ToLower(rawText)
	for _, c := range currencyCues {
		haystack := rawText
		if c.foldCase {
			haystack = lower
		}
		if strings.Contains(haystack, c.cue) {
			return c.currency
		}
	}
	return ""
}
