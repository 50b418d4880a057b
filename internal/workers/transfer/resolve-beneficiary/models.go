package resolvebeneficiary

import "banking-command-workers/internal/models"

type Input struct {
	UserID   string          `json:"userId"`
	Entities models.Entities `json:"entities"`
}

// Output reports the lookup. Entities is the input set, with beneficiaryId
// added when exactly one beneficiary matched.
type Output struct {
	IsResolved bool            `json:"isResolved"`
	Matches    []Match         `json:"matches"`
	Question   string          `json:"question,omitempty"`
	Entities   models.Entities `json:"entities"`
}

type Match struct {
	BeneficiaryID string  `json:"beneficiaryId"`
	Name          string  `json:"beneficiaryName"`
	AccountNumber string  `json:"accountNumber,omitempty"`
	BankName      string  `json:"bankName,omitempty"`
	Score         float64 `json:"score"`
}
