// internal/models/command.go
package models

import (
	"encoding/json"
	"strings"
)

type Flow string

const (
	FlowQuery     Flow = "QUERY"
	FlowTransfer  Flow = "TRANSFER"
	FlowAnalytics Flow = "ANALYTICS"
)

// ParseFlow upper-cases the collaborator's flow value. Anything outside the
// three known flows is treated as QUERY.
func ParseFlow(raw string) Flow {
	switch f := Flow(strings.ToUpper(strings.TrimSpace(raw))); f {
	case FlowQuery, FlowTransfer, FlowAnalytics:
		return f
	default:
		return FlowQuery
	}
}

type SubModule struct {
	SubmoduleCode string `json:"submoduleCode"`
	SubmoduleName string `json:"submoduleName"`
	Endpoint      string `json:"endpoint,omitempty"`
	RequestFile   string `json:"requestFile,omitempty"`
}

// RawExtraction is what the language-understanding collaborator produced for
// one command. Error is set when no module could be resolved; Cause keeps
// the classified error behind it and never goes on the wire.
type RawExtraction struct {
	Module    string    `json:"module"`
	SubModule SubModule `json:"sub_module"`
	Entities  Entities  `json:"entities"`
	Flow      Flow      `json:"flow"`
	RawText   string    `json:"raw_text"`
	Error     string    `json:"error,omitempty"`
	Cause     error     `json:"-"`
}

func (r *RawExtraction) Failed() bool {
	return r.Error != ""
}

type AnalyticsDerivation struct {
	AnalyticsType     string `json:"analyticsType"`
	VisualizationType string `json:"visualizationType"`
	DistributionType  string `json:"distributionType,omitempty"`
}

// DateRange is inclusive on both ends, formatted YYYY-MM-DD.
type DateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type FilterMap map[string]interface{}

// SimplifiedResponse is the flat object returned to clients. Optional
// fields are only populated for the ANALYTICS flow (or Error on failure).
// ANALYTICS responses always carry filters on the wire, as {} when empty.
type SimplifiedResponse struct {
	RequestID         string    `json:"requestId,omitempty"`
	ModuleCode        string    `json:"moduleCode"`
	SubmoduleCode     string    `json:"submoduleCode"`
	Flow              Flow      `json:"flow"`
	Entities          Entities  `json:"entities"`
	RawText           string    `json:"raw_text"`
	Error             string    `json:"error,omitempty"`
	VisualizationType string    `json:"visualizationType,omitempty"`
	AnalyticsType     string    `json:"analyticsType,omitempty"`
	Filters           FilterMap `json:"filters,omitempty"`
	DistributionType  string    `json:"distributionType,omitempty"`
}

func (r SimplifiedResponse) MarshalJSON() ([]byte, error) {
	type plain SimplifiedResponse
	if r.Flow != FlowAnalytics {
		return json.Marshal(plain(r))
	}
	filters := r.Filters
	if filters == nil {
		filters = FilterMap{}
	}
	return json.Marshal(struct {
		plain
		Filters FilterMap `json:"filters"`
	}{plain: plain(r), Filters: filters})
}

// VisualizationConfig is a chart configuration tagged with its chart type
// (line, bar, pie or table).
type VisualizationConfig struct {
	Type   string                 `json:"type"`
	Config map[string]interface{} `json:"config"`
}
