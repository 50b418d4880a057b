// Package filters flattens the entities of an ANALYTICS command into the
// filter map consumed by the analytics query.
package filters

import (
	"banking-command-workers/internal/derivation/timerange"
	"banking-command-workers/internal/models"
)

const (
	KeyCategory           = "category"
	KeyTransactionType    = "transactionType"
	KeyAccountID          = "accountId"
	KeyAccountType        = "accountType"
	KeyCardID             = "cardId"
	KeyCardType           = "cardType"
	KeyMerchant           = "merchant"
	KeyMinAmount          = "minAmount"
	KeyMaxAmount          = "maxAmount"
	KeyDistributionType   = "distributionType"
	KeyAmountRangeBuckets = "amountRangeBuckets"
	KeyTimeOfDayRanges    = "timeOfDayRanges"
	KeyStartDate          = "startDate"
	KeyEndDate            = "endDate"
)

// aliases maps each canonical filter key to the entity names that feed it.
// When several aliases are present the first one listed wins.
var aliases = []struct {
	key     string
	sources []string
}{
	{KeyCategory, []string{"category", "analysisCategory", "spendCategory"}},
	{KeyTransactionType, []string{"transactionType", "paymentType", "transferType"}},
	{KeyAccountID, []string{"accountId", "accountNumber"}},
	{KeyAccountType, []string{"accountType"}},
	{KeyCardID, []string{"cardId", "cardNumber"}},
	{KeyCardType, []string{"cardType"}},
	{KeyMerchant, []string{"merchant", "payee", "beneficiary"}},
	{KeyMinAmount, []string{"minAmount", "minimumAmount"}},
	{KeyMaxAmount, []string{"maxAmount", "maximumAmount"}},
}

// passthrough keys are copied under their own name.
var passthrough = []string{
	models.EntityDistributionType,
	models.EntityAmountRangeBucket,
	models.EntityTimeOfDayRanges,
}

type Builder struct {
	resolver *timerange.Resolver
}

func NewBuilder(resolver *timerange.Resolver) *Builder {
	return &Builder{resolver: resolver}
}

// Build never returns a nil map on success. The only error is a temporal
// entity that cannot be parsed (timerange.ErrInvalidTemporalEntity).
func (b *Builder) Build(entities models.Entities) (models.FilterMap, error) {
	out := models.FilterMap{}

	dates, err := b.resolver.Resolve(entities)
	if err != nil {
		return nil, err
	}
	if dates != nil {
		out[KeyStartDate] = dates.StartDate
		out[KeyEndDate] = dates.EndDate
	}

	for _, a := range aliases {
		for _, src := range a.sources {
			if v, ok := entities[src]; ok {
				out[a.key] = v
				break
			}
		}
	}

	for _, key := range passthrough {
		if v, ok := entities[key]; ok {
			out[key] = v
		}
	}

	return out, nil
}
