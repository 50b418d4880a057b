package visualization

import (
	"context"
	"encoding/json"
	"fmt"

	"banking-command-workers/internal/common/genai"
	"banking-command-workers/internal/models"
)

// Request is what the generator receives for one chart.
type Request struct {
	Query         string
	AnalyticsType string
	ChartType     string
	Requirements  string
	Data          map[string]interface{}
}

// Generator asks the visualization-generation collaborator for a chart
// configuration and returns its raw reply.
type Generator interface {
	GenerateChart(ctx context.Context, req Request) (string, error)
}

// Fallback reasons reported by Build.
const (
	ReasonGeneratorError = "generator_error"
	ReasonUnparsable     = "unparsable"
	ReasonInvalid        = "invalid_structure"
	ReasonNoGenerator    = "no_generator"
)

type Builder struct {
	generator Generator
}

func NewBuilder(generator Generator) *Builder {
	return &Builder{generator: generator}
}

// Build always returns a usable configuration. The second return value is
// empty when the generated configuration was accepted and names the cause
// otherwise.
func (b *Builder) Build(ctx context.Context, payload map[string]interface{}, analyticsType, chartType, query string) (viz models.VisualizationConfig, reason string) {
	normalized := NormalizeChartType(chartType)
	safe := SanitizePayload(payload)

	defer func() {
		if r := recover(); r != nil {
			viz = Fallback(normalized, analyticsType, safe)
			reason = ReasonGeneratorError
		}
	}()

	if b.generator == nil {
		return Fallback(normalized, analyticsType, safe), ReasonNoGenerator
	}

	raw, err := b.generator.GenerateChart(ctx, Request{
		Query:         query,
		AnalyticsType: analyticsType,
		ChartType:     normalized,
		Requirements:  ChartRequirements(normalized),
		Data:          safe,
	})
	if err != nil {
		return Fallback(normalized, analyticsType, safe), ReasonGeneratorError
	}

	config, err := decodeConfig(raw)
	if err != nil {
		return Fallback(normalized, analyticsType, safe), ReasonUnparsable
	}

	if err := Validate(normalized, config); err != nil {
		return Fallback(normalized, analyticsType, safe), ReasonInvalid
	}

	return models.VisualizationConfig{Type: normalized, Config: config}, ""
}

func decodeConfig(raw string) (map[string]interface{}, error) {
	var config map[string]interface{}
	if err := json.Unmarshal([]byte(genai.ExtractJSON(raw)), &config); err != nil {
		return nil, fmt.Errorf("failed to parse chart configuration: %w", err)
	}
	if config == nil {
		return nil, fmt.Errorf("chart configuration is null")
	}
	return config, nil
}

// ChartRequirements lists what a configuration of the given type should
// describe. It is sent to the generator verbatim.
func ChartRequirements(chartType string) string {
	switch chartType {
	case ChartLine:
		return `1. X-axis configuration (time series format)
2. Y-axis configuration with appropriate scale
3. Data series format with timestamps and values
4. Line style and color
5. Point/marker configuration (if needed)
6. Title and axis labels
7. Legend configuration (if multiple series)`
	case ChartBar:
		return `1. X-axis categories
2. Y-axis value configuration
3. Bar colors and styles
4. Bar width and spacing
5. Title and axis labels
6. Legend configuration (if multiple series)`
	case ChartPie:
		return `1. Data series with labels and values
2. Color scheme for segments
3. Label placement and format
4. Percentage calculations
5. Title configuration
6. Legend configuration`
	case ChartTable:
		return `1. Column definitions with title and field
2. Data rows keyed by field
3. Title configuration`
	default:
		return "Basic chart configuration requirements"
	}
}
