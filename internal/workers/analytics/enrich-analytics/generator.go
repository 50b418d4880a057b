package enrichanalytics

import (
	"context"
	"encoding/json"
	"fmt"

	"banking-command-workers/internal/common/genai"
	"banking-command-workers/internal/derivation/visualization"
)

type Completer interface {
	CompleteJSON(ctx context.Context, messages []genai.Message) (string, error)
}

// ChartGenerator asks the language model for a chart configuration.
type ChartGenerator struct {
	completer Completer
}

func NewChartGenerator(completer Completer) *ChartGenerator {
	return &ChartGenerator{completer: completer}
}

const chartSystemPrompt = "You are a data visualization expert. Generate precise, visualization-ready JSON structures."

func (g *ChartGenerator) GenerateChart(ctx context.Context, req visualization.Request) (string, error) {
	data, err := json.Marshal(req.Data)
	if err != nil {
		return "", fmt.Errorf("encode analytics data: %w", err)
	}

	prompt := fmt.Sprintf(`Given the following:
1. User Query: %q
2. Analytics Type: %s
3. Visualization Type: %s
4. Analytics Data: %s

Generate a visualization configuration JSON object ONLY for a %s chart.
The configuration should include:

%s

Required keys: line and bar charts need 'xAxis' (object), 'yAxis' (object) and 'series' (array of objects);
pie charts need 'series' (array); tables need 'columns' and 'data'.
Series points look like {"x": "2024-01-01", "y": 100}.
Return a valid JSON object that can be used directly, with defaults where data is missing.`,
		req.Query, req.AnalyticsType, req.ChartType, data, req.ChartType, req.Requirements)

	return g.completer.CompleteJSON(ctx, []genai.Message{
		{Role: genai.RoleSystem, Content: chartSystemPrompt},
		{Role: genai.RoleUser, Content: prompt},
	})
}
