package processtext

import (
	"fmt"

	"banking-command-workers/internal/derivation/analytics"
	"banking-command-workers/internal/derivation/filters"
	"banking-command-workers/internal/derivation/timerange"
	"banking-command-workers/internal/derivation/transfer"
	"banking-command-workers/internal/models"
)

// Router turns one extraction into the response shape of its flow. It does
// no I/O.
type Router struct {
	filters *filters.Builder
}

func NewRouter(resolver *timerange.Resolver) *Router {
	return &Router{filters: filters.NewBuilder(resolver)}
}

// Route returns an error only for temporal entities that cannot be parsed;
// extraction failures come back as an error-flagged QUERY response.
func (r *Router) Route(extraction models.RawExtraction, rawText, userID string) (models.SimplifiedResponse, error) {
	if extraction.Failed() {
		return models.SimplifiedResponse{
			Flow:     models.FlowQuery,
			Entities: models.Entities{},
			RawText:  rawText,
			Error:    extraction.Error,
		}, nil
	}

	entities := extraction.Entities
	if entities == nil {
		entities = models.Entities{}
	}

	resp := models.SimplifiedResponse{
		ModuleCode:    extraction.Module,
		SubmoduleCode: extraction.SubModule.SubmoduleCode,
		Flow:          extraction.Flow,
		Entities:      entities,
		RawText:       rawText,
	}

	switch extraction.Flow {
	case models.FlowAnalytics:
		derived := analytics.Classify(resp.SubmoduleCode, rawText, entities)
		filterMap, err := r.filters.Build(entities)
		if err != nil {
			return models.SimplifiedResponse{}, fmt.Errorf("route analytics command for user %q: %w", userID, err)
		}
		if derived.DistributionType != "" {
			filterMap[filters.KeyDistributionType] = derived.DistributionType
		}
		resp.AnalyticsType = derived.AnalyticsType
		resp.VisualizationType = derived.VisualizationType
		resp.DistributionType = derived.DistributionType
		resp.Filters = filterMap

	case models.FlowTransfer:
		resp.Entities = transfer.Normalize(entities, rawText)

	default:
		resp.Flow = models.FlowQuery
	}

	return resp, nil
}
