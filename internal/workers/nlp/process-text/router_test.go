package processtext

import (
	"encoding/json"
	"testing"
	"time"

	"banking-command-workers/internal/derivation/timerange"
	"banking-command-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)
}

func newTestRouter() *Router {
	return NewRouter(timerange.NewResolver(fixedClock))
}

func analyticsExtraction(submodule, text string, ents models.Entities) models.RawExtraction {
	return models.RawExtraction{
		Module:    "ANALYTICS",
		SubModule: models.SubModule{SubmoduleCode: submodule},
		Entities:  ents,
		Flow:      models.FlowAnalytics,
		RawText:   text,
	}
}

func TestRouter_ExtractionError(t *testing.T) {
	resp, err := newTestRouter().Route(models.RawExtraction{Error: "Invalid module code: XYZ"}, "do something", "u1")
	require.NoError(t, err)

	assert.Equal(t, models.FlowQuery, resp.Flow)
	assert.Empty(t, resp.ModuleCode)
	assert.Empty(t, resp.SubmoduleCode)
	assert.Equal(t, models.Entities{}, resp.Entities)
	assert.Equal(t, "do something", resp.RawText)
	assert.Equal(t, "Invalid module code: XYZ", resp.Error)
}

func TestRouter_QueryPassesEntitiesThrough(t *testing.T) {
	ents := models.Entities{"accountType": "SAV", "year": "not-a-year"}
	resp, err := newTestRouter().Route(models.RawExtraction{
		Module:    "ACC",
		SubModule: models.SubModule{SubmoduleCode: "ACC_BALANCE"},
		Entities:  ents,
		Flow:      models.FlowQuery,
	}, "show my balance", "u1")
	require.NoError(t, err)

	assert.Equal(t, ents, resp.Entities)
	assert.Nil(t, resp.Filters)
	assert.Empty(t, resp.AnalyticsType)
	assert.Empty(t, resp.VisualizationType)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fields))
	for _, key := range []string{"filters", "analyticsType", "visualizationType", "distributionType", "error"} {
		assert.NotContains(t, fields, key)
	}
}

func TestRouter_UnknownFlowBecomesQuery(t *testing.T) {
	resp, err := newTestRouter().Route(models.RawExtraction{Module: "ACC", Flow: models.ParseFlow("chat")}, "hi", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.FlowQuery, resp.Flow)
	assert.NotNil(t, resp.Entities)
}

func TestRouter_Analytics(t *testing.T) {
	tests := []struct {
		name             string
		submodule        string
		text             string
		entities         models.Entities
		wantAnalytics    string
		wantViz          string
		wantDistribution string
		wantFilters      models.FilterMap
	}{
		{
			name:             "distribution of spending",
			submodule:        "ANALYTICS_SPENDING",
			text:             "show the distribution of my spending",
			entities:         models.Entities{},
			wantAnalytics:    "distribution_analysis",
			wantViz:          "pie_chart",
			wantDistribution: "category",
			wantFilters:      models.FilterMap{"distributionType": "category"},
		},
		{
			name:          "compare by quarter",
			submodule:     "ANALYTICS_SPENDING",
			text:          "compare my spending by category for Q1 2024",
			entities:      models.Entities{"year": "2024", "quarter": "Q1", "category": "spending"},
			wantAnalytics: "comparison_analysis",
			wantViz:       "bar_chart",
			wantFilters: models.FilterMap{
				"category":  "spending",
				"startDate": "2024-01-01",
				"endDate":   "2024-03-31",
			},
		},
		{
			name:          "last month in a table",
			submodule:     "ANALYTICS_TRANSACTIONS",
			text:          "show transaction details for last month in a table",
			entities:      models.Entities{"period": "last month"},
			wantAnalytics: "transaction_analysis",
			wantViz:       "table",
			wantFilters: models.FilterMap{
				"startDate": "2024-02-01",
				"endDate":   "2024-02-29",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := newTestRouter().Route(analyticsExtraction(tt.submodule, tt.text, tt.entities), tt.text, "u1")
			require.NoError(t, err)

			assert.Equal(t, models.FlowAnalytics, resp.Flow)
			assert.Equal(t, tt.wantAnalytics, resp.AnalyticsType)
			assert.Equal(t, tt.wantViz, resp.VisualizationType)
			assert.Equal(t, tt.wantDistribution, resp.DistributionType)
			assert.Equal(t, tt.wantFilters, resp.Filters)
		})
	}
}

func TestRouter_AnalyticsInvalidYear(t *testing.T) {
	ext := analyticsExtraction("ANALYTICS_SPENDING", "spending for twenty", models.Entities{"year": "twenty"})
	_, err := newTestRouter().Route(ext, ext.RawText, "u1")
	require.Error(t, err)
	assert.ErrorIs(t, err, timerange.ErrInvalidTemporalEntity)
}

func TestRouter_TransferNormalizesEntities(t *testing.T) {
	ents := models.Entities{"recipientName": "Alice Johnson", "amount": "500"}
	ext := models.RawExtraction{
		Module:    "TRF",
		SubModule: models.SubModule{SubmoduleCode: "TRF_IMMEDIATE"},
		Entities:  ents,
		Flow:      models.FlowTransfer,
	}

	resp, err := newTestRouter().Route(ext, "send 500 euros to Alice Johnson", "u1")
	require.NoError(t, err)

	assert.Equal(t, "Alice Johnson", resp.Entities["beneficiaryName"])
	assert.Equal(t, "EUR", resp.Entities["currency"])
	assert.NotContains(t, resp.Entities, "recipientName")
	assert.Nil(t, resp.Filters)

	// the extraction itself is left alone
	assert.Contains(t, ents, "recipientName")
}

func TestRouter_WireKeysPerFlow(t *testing.T) {
	tests := []struct {
		name       string
		extraction models.RawExtraction
		text       string
		present    []string
		absent     []string
	}{
		{
			name: "query",
			extraction: models.RawExtraction{
				Module:    "ACC",
				SubModule: models.SubModule{SubmoduleCode: "ACC_BALANCE"},
				Entities:  models.Entities{},
				Flow:      models.FlowQuery,
			},
			text:    "show my balance",
			present: []string{"moduleCode", "submoduleCode", "flow", "entities", "raw_text"},
			absent:  []string{"filters", "analyticsType", "visualizationType"},
		},
		{
			name:       "analytics without filter entities",
			extraction: analyticsExtraction("ANALYTICS_TRANSACTIONS", "show my transactions", models.Entities{}),
			text:       "show my transactions",
			present:    []string{"flow", "entities", "filters", "analyticsType", "visualizationType"},
		},
		{
			name: "transfer",
			extraction: models.RawExtraction{
				Module:    "TRANSFER",
				SubModule: models.SubModule{SubmoduleCode: "TRANSFER_MONEY"},
				Entities:  models.Entities{"amount": "100", "beneficiaryName": "Bob"},
				Flow:      models.FlowTransfer,
			},
			text:    "send 100 to Bob",
			present: []string{"flow", "entities"},
			absent:  []string{"filters", "analyticsType", "visualizationType"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := newTestRouter().Route(tt.extraction, tt.text, "u1")
			require.NoError(t, err)

			raw, err := json.Marshal(resp)
			require.NoError(t, err)
			var fields map[string]interface{}
			require.NoError(t, json.Unmarshal(raw, &fields))

			for _, key := range tt.present {
				assert.Contains(t, fields, key)
			}
			for _, key := range tt.absent {
				assert.NotContains(t, fields, key)
			}
		})
	}
}

func TestSimplifiedResponse_AnalyticsEmitsEmptyFilters(t *testing.T) {
	raw, err := json.Marshal(models.SimplifiedResponse{Flow: models.FlowAnalytics, Entities: models.Entities{}})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"filters":{}`)

	var back models.SimplifiedResponse
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, models.FlowAnalytics, back.Flow)
	assert.Empty(t, back.Filters)
}
