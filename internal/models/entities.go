// internal/models/entities.go
package models

import (
	"fmt"
	"sort"
	"strings"
)

// Entity keys understood by the deterministic pipeline. Other keys are
// carried through untouched.
const (
	EntityYear              = "year"
	EntityMonth             = "month"
	EntityQuarter           = "quarter"
	EntityStartDate         = "startDate"
	EntityEndDate           = "endDate"
	EntityPeriod            = "period"
	EntityTimePeriod        = "timePeriod"
	EntityVisualization     = "visualization"
	EntityDistributionType  = "distributionType"
	EntityCategory          = "category"
	EntityAmountRangeBucket = "amountRangeBuckets"
	EntityTimeOfDayRanges   = "timeOfDayRanges"

	EntityRecipientName   = "recipientName"
	EntityBeneficiaryName = "beneficiaryName"
	EntityBeneficiaryID   = "beneficiaryId"
	EntityCurrency        = "currency"
	EntityAmount          = "amount"
)

var analyticsVocabulary = map[string]bool{
	EntityYear: true, EntityMonth: true, EntityQuarter: true,
	EntityStartDate: true, EntityEndDate: true, EntityPeriod: true,
	EntityTimePeriod: true, EntityVisualization: true, EntityDistributionType: true,
	EntityAmountRangeBucket: true, EntityTimeOfDayRanges: true,
	EntityCategory: true, "analysisCategory": true, "spendCategory": true,
	"transactionType": true, "paymentType": true, "transferType": true,
	"accountId": true, "accountNumber": true, "accountType": true,
	"cardId": true, "cardNumber": true, "cardType": true,
	"merchant": true, "payee": true, "beneficiary": true,
	"minAmount": true, "minimumAmount": true, "maxAmount": true, "maximumAmount": true,
	"analysisType": true, "comparison": true, "channel": true,
}

var transferVocabulary = map[string]bool{
	EntityAmount: true, EntityCurrency: true, EntityBeneficiaryName: true,
	EntityRecipientName: true, EntityBeneficiaryID: true,
	"sourceAccountType": true, "targetAccountType": true,
	"sourceAccountId": true, "targetAccountId": true,
	"transferDate": true, "remarks": true, "transferType": true,
}

// Entities holds extracted values keyed by entity name.
type Entities map[string]interface{}

func (e Entities) Has(key string) bool {
	_, ok := e[key]
	return ok
}

// String returns the value under key when it is a string.
func (e Entities) String(key string) (string, bool) {
	v, ok := e[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Text renders any scalar value as a string; missing keys give "".
func (e Entities) Text(key string) string {
	v, ok := e[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (e Entities) Clone() Entities {
	out := make(Entities, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Sanitize drops blank keys and nil values. A nil receiver yields an
// empty, non-nil map.
func (e Entities) Sanitize() Entities {
	out := make(Entities, len(e))
	for k, v := range e {
		if strings.TrimSpace(k) == "" || v == nil {
			continue
		}
		out[k] = v
	}
	return out
}

// Unknown lists keys outside the vocabulary of the given flow. QUERY has
// no fixed vocabulary.
func (e Entities) Unknown(flow Flow) []string {
	var vocab map[string]bool
	switch flow {
	case FlowAnalytics:
		vocab = analyticsVocabulary
	case FlowTransfer:
		vocab = transferVocabulary
	default:
		return nil
	}
	var out []string
	for k := range e {
		if !vocab[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
