package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"banking-command-workers/internal/models"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		entities models.Entities
		text     string
		want     models.Entities
	}{
		{
			name:     "recipient renamed and euros inferred",
			entities: models.Entities{"recipientName": "Alice Johnson", "amount": 500},
			text:     "send 500 euros to Alice Johnson",
			want:     models.Entities{"beneficiaryName": "Alice Johnson", "amount": 500, "currency": "EUR"},
		},
		{
			name:     "existing beneficiary keeps recipient",
			entities: models.Entities{"recipientName": "Bob", "beneficiaryName": "Robert"},
			text:     "pay Bob 20 €",
			want:     models.Entities{"recipientName": "Bob", "beneficiaryName": "Robert", "currency": "EUR"},
		},
		{
			name:     "explicit currency untouched",
			entities: models.Entities{"currency": "GBP"},
			text:     "send Rs. 500 to mom",
			want:     models.Entities{"currency": "GBP"},
		},
		{
			name:     "rupees",
			entities: models.Entities{},
			text:     "Transfer 1000 Rupees to Ravi",
			want:     models.Entities{"currency": "INR"},
		},
		{
			name:     "dollar sign",
			entities: models.Entities{},
			text:     "pay $40 to Sam",
			want:     models.Entities{"currency": "USD"},
		},
		{
			name:     "pound sign",
			entities: models.Entities{},
			text:     "pay £15 to Kate",
			want:     models.Entities{"currency": "GBP"},
		},
		{
			name:     "no cue",
			entities: models.Entities{"amount": 10},
			text:     "pay 10 to Kate",
			want:     models.Entities{"amount": 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.entities, tt.text)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	in := models.Entities{"recipientName": "Alice"}
	_ = Normalize(in, "send 5 euros to Alice")
	assert.Equal(t, models.Entities{"recipientName": "Alice"}, in)
}

func TestInferCurrency_FirstCueWins(t *testing.T) {
	// rupee cues precede the dollar sign
	assert.Equal(t, "INR", InferCurrency("send Rs 100 or $2"))
	assert.Equal(t, "USD", InferCurrency("$100 or 100 €"))
	assert.Equal(t, "", InferCurrency(""))

	// the case-insensitive "rs" cue matches inside "dollars" before the dollar cue is tried
	assert.Equal(t, "INR", InferCurrency("send 100 dollars"))
	assert.Equal(t, "INR", InferCurrency("send 100 DOLLARS to Bob"))
}
