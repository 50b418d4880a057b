package enrichanalytics

import (
	"time"

	"banking-command-workers/internal/derivation/visualization"
	"banking-command-workers/internal/models"
)

type Input struct {
	UserID   string                    `json:"userId"`
	Response models.SimplifiedResponse `json:"response"`
}

// Output carries the aggregates and the chart configuration. Raw rows are
// not returned.
type Output struct {
	Analytics map[string]interface{} `json:"analytics"`
}

type MonthlyTotal struct {
	Month string
	Total float64
}

type TransactionRow struct {
	Date        time.Time
	Description string
	Category    string
	Type        string
	Amount      float64
}

// Aggregates is what the repository loads for one request. Distribution
// is grouped by category unless the command asked for another dimension.
type Aggregates struct {
	MonthlyTrends []MonthlyTotal
	Distribution  map[string]float64
	ByType        map[string]float64
	Rows          []TransactionRow
}

// Payload renders the aggregates in the generic shape the visualization
// builder reads.
func (a *Aggregates) Payload() map[string]interface{} {
	trends := make([]interface{}, len(a.MonthlyTrends))
	for i, m := range a.MonthlyTrends {
		trends[i] = map[string]interface{}{"x": m.Month, "y": m.Total}
	}

	rows := make([]interface{}, len(a.Rows))
	for i, r := range a.Rows {
		rows[i] = map[string]interface{}{
			"date":        r.Date.Format("2006-01-02"),
			"description": r.Description,
			"category":    r.Category,
			"type":        r.Type,
			"amount":      r.Amount,
		}
	}

	return map[string]interface{}{
		visualization.KeyMonthlyTrends:          trends,
		visualization.KeyTransactionsByCategory: totals(a.Distribution),
		visualization.KeyTransactionsByType:     totals(a.ByType),
		visualization.KeyData:                   rows,
	}
}

func totals(m map[string]float64) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
