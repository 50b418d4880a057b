package visualization

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"banking-command-workers/internal/models"
)

const (
	KeyMonthlyTrends          = "monthlyTrends"
	KeyTransactionsByCategory = "transactionsByCategory"
	KeyTransactionsByType     = "transactionsByType"
	KeyData                   = "data"

	maxPromptRows = 100
)

// Fallback builds a configuration from whatever aggregates the payload
// holds. Missing aggregates give empty arrays so the required keys of each
// chart type are always present.
func Fallback(chartType, analyticsType string, payload map[string]interface{}) models.VisualizationConfig {
	title := map[string]interface{}{"text": capitalize(analyticsType) + " Analytics"}

	switch chartType {
	case ChartLine:
		return models.VisualizationConfig{
			Type: ChartLine,
			Config: map[string]interface{}{
				"title": title,
				"xAxis": map[string]interface{}{"type": "time", "name": "Date"},
				"yAxis": map[string]interface{}{"type": "value", "name": "Amount"},
				"series": []interface{}{
					map[string]interface{}{
						"name": analyticsType,
						"type": "line",
						"data": valueOr(payload, KeyMonthlyTrends),
					},
				},
			},
		}

	case ChartBar:
		keys, values := sortedPairs(payload[KeyTransactionsByType])
		return models.VisualizationConfig{
			Type: ChartBar,
			Config: map[string]interface{}{
				"title": title,
				"xAxis": map[string]interface{}{"type": "category", "data": keys},
				"yAxis": map[string]interface{}{"type": "value"},
				"series": []interface{}{
					map[string]interface{}{
						"name": analyticsType,
						"type": "bar",
						"data": values,
					},
				},
			},
		}

	case ChartPie:
		names, values := sortedPairs(payload[KeyTransactionsByCategory])
		slices := make([]interface{}, len(names))
		for i := range names {
			slices[i] = map[string]interface{}{"name": names[i], "value": values[i]}
		}
		return models.VisualizationConfig{
			Type: ChartPie,
			Config: map[string]interface{}{
				"title": title,
				"series": []interface{}{
					map[string]interface{}{"type": "pie", "data": slices},
				},
			},
		}

	case ChartTable:
		return models.VisualizationConfig{
			Type: ChartTable,
			Config: map[string]interface{}{
				"title": title,
				"columns": []interface{}{
					column("Date", "date"),
					column("Amount", "amount"),
					column("Type", "type"),
					column("Category", "category"),
				},
				"data": valueOr(payload, KeyData),
			},
		}
	}

	// unknown chart type: a one-column table around the payload as given
	var data interface{} = payload
	if payload == nil {
		data = map[string]interface{}{}
	}
	return models.VisualizationConfig{
		Type: ChartTable,
		Config: map[string]interface{}{
			"title":   title,
			"columns": []interface{}{column("Data", "data")},
			"data":    data,
		},
	}
}

// SanitizePayload keeps the aggregates the generator needs and trims raw
// rows to the first 100, each reduced to date, amount, type and category.
func SanitizePayload(payload map[string]interface{}) map[string]interface{} {
	safe := map[string]interface{}{}

	if rows, ok := payload[KeyData].([]interface{}); ok {
		if len(rows) > maxPromptRows {
			rows = rows[:maxPromptRows]
		}
		trimmed := make([]interface{}, 0, len(rows))
		for _, r := range rows {
			row, _ := r.(map[string]interface{})
			trimmed = append(trimmed, map[string]interface{}{
				"date":     row["date"],
				"amount":   row["amount"],
				"type":     row["type"],
				"category": row["category"],
			})
		}
		safe[KeyData] = trimmed
	}

	for _, key := range []string{KeyMonthlyTrends, KeyTransactionsByCategory, KeyTransactionsByType} {
		if v, ok := payload[key]; ok {
			safe[key] = v
		}
	}
	return safe
}

func column(title, field string) map[string]interface{} {
	return map[string]interface{}{"title": title, "field": field}
}

func valueOr(payload map[string]interface{}, key string) interface{} {
	if v, ok := payload[key]; ok && v != nil {
		return v
	}
	return []interface{}{}
}

// sortedPairs flattens a name->value aggregate ordered by name.
func sortedPairs(raw interface{}) ([]interface{}, []interface{}) {
	m, _ := raw.(map[string]interface{})
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)

	keys := make([]interface{}, len(names))
	values := make([]interface{}, len(names))
	for i, k := range names {
		keys[i] = k
		values[i] = m[k]
	}
	return keys, values
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	r, size := utf8.DecodeRuneInString(lower)
	return string(unicode.ToUpper(r)) + lower[size:]
}
