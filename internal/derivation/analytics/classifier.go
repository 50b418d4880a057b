// Package analytics infers the analytics, visualization and distribution
// subtypes of an ANALYTICS command from its submodule, free text and
// extracted entities.
//
// Every table below is an ordered slice scanned front to back with substring
// matching on lower-cased text. Keywords overlap, so the order is part of the
// behaviour: "pie chart" is caught by the earlier "chart" rule and so on.
package analytics

import (
	"strings"

	"banking-command-workers/internal/models"
)

const (
	TypeSpendingTrends        = "spending_trends"
	TypeIncomeAnalysis        = "income_analysis"
	TypeBudgetTracking        = "budget_tracking"
	TypeInvestmentPerformance = "investment_performance"
	TypeTrendingAnalysis      = "trending_analysis"
	TypeComparisonAnalysis    = "comparison_analysis"
	TypeDistributionAnalysis  = "distribution_analysis"
	TypeTransactionAnalysis   = "transaction_analysis"
	TypeGeneralAnalytics      = "general_analytics"

	VizTable     = "table"
	VizBarChart  = "bar_chart"
	VizLineChart = "line_chart"
	VizPieChart  = "pie_chart"
	VizAreaChart = "area_chart"

	DistributionCategory = "category"
)

type rule struct {
	keyword string
	result  string
}

var (
	comparisonWords   = []string{"compare", "comparison", "versus", "vs"}
	distributionWords = []string{"distribution", "breakdown", "split", "allocation"}

	submoduleAnalytics = []rule{
		{"ANALYTICS_TRANSACTIONS", TypeTransactionAnalysis},
		{"ANALYTICS_SPENDING", TypeSpendingTrends},
		{"ANALYTICS_INCOME", TypeIncomeAnalysis},
		{"ANALYTICS_BUDGET", TypeBudgetTracking},
		{"ANALYTICS_INVESTMENT", TypeInvestmentPerformance},
	}

	analyticsKeywords = []rule{
		{"spend", TypeSpendingTrends},
		{"spending", TypeSpendingTrends},
		{"expense", TypeSpendingTrends},
		{"expenses", TypeSpendingTrends},
		{"income", TypeIncomeAnalysis},
		{"earning", TypeIncomeAnalysis},
		{"salary", TypeIncomeAnalysis},
		{"budget", TypeBudgetTracking},
		{"investment", TypeInvestmentPerformance},
		{"portfolio", TypeInvestmentPerformance},
		{"trend", TypeTrendingAnalysis},
		{"compare", TypeComparisonAnalysis},
		{"comparison", TypeComparisonAnalysis},
		{"distribution", TypeDistributionAnalysis},
		{"transaction", TypeTransactionAnalysis},
		{"activity", TypeTransactionAnalysis},
	}

	// visualization entity rules; each entry lists its alternatives
	entityVizRules = []struct {
		keywords []string
		result   string
	}{
		{[]string{"table", "list", "grid"}, VizTable},
		{[]string{"bar", "column"}, VizBarChart},
		{[]string{"line"}, VizLineChart},
		{[]string{"pie", "circle"}, VizPieChart},
		{[]string{"area", "fill"}, VizAreaChart},
	}

	vizKeywords = []rule{
		{"table", VizTable},
		{"list", VizTable},
		{"chart", VizBarChart},
		{"bar chart", VizBarChart},
		{"bar graph", VizBarChart},
		{"graph", VizLineChart},
		{"line chart", VizLineChart},
		{"line graph", VizLineChart},
		{"pie", VizPieChart},
		{"pie chart", VizPieChart},
		{"distribution", VizPieChart},
		{"breakdown", VizPieChart},
		{"trend", VizLineChart},
		{"trends", VizLineChart},
		{"compare", VizBarChart},
		{"comparison", VizBarChart},
		{"time series", VizLineChart},
		{"timeline", VizLineChart},
		{"over time", VizLineChart},
	}

	analyticsViz = []rule{
		{TypeSpendingTrends, VizLineChart},
		{TypeIncomeAnalysis, VizLineChart},
		{TypeBudgetTracking, VizPieChart},
		{TypeTransactionAnalysis, VizTable},
		{TypeDistributionAnalysis, VizPieChart},
		{TypeComparisonAnalysis, VizBarChart},
		{TypeTrendingAnalysis, VizLineChart},
	}

	submoduleViz = []rule{
		{"ANALYTICS_TRANSACTIONS", VizTable},
		{"ANALYTICS_SPENDING", VizBarChart},
		{"ANALYTICS_INCOME", VizLineChart},
		{"ANALYTICS_BUDGET", VizPieChart},
		{"ANALYTICS_INVESTMENT", VizAreaChart},
	}

	distributionKeywords = []rule{
		{"category", "category"},
		{"categories", "category"},
		{"spending category", "category"},
		{"expense category", "category"},

		{"amount range", "amount_range"},
		{"price range", "amount_range"},
		{"value range", "amount_range"},
		{"transaction size", "amount_range"},

		{"time of day", "time_of_day"},
		{"hour of day", "time_of_day"},
		{"day time", "time_of_day"},

		{"day of week", "day_of_week"},
		{"weekday", "day_of_week"},
		{"weekdays", "day_of_week"},
		{"week day", "day_of_week"},

		{"transaction type", "transaction_type"},
		{"payment method", "payment_method"},
		{"payment type", "payment_method"},

		{"merchant", "merchant"},
		{"vendor", "merchant"},
		{"shop", "merchant"},
		{"store", "merchant"},

		{"location", "location"},
		{"region", "location"},
		{"place", "location"},

		{"month", "month"},
		{"monthly", "month"},
		{"by month", "month"},
	}

	pieMentions   = []string{"pie", "distribution", "breakdown"}
	spendMentions = []string{"spend", "expense", "payment", "transaction"}
)

// Classify runs the three derivations. DistributionType is only derived when
// the visualization is a pie chart or the text asks for a pie or a
// distribution.
func Classify(submoduleCode, text string, entities models.Entities) models.AnalyticsDerivation {
	out := models.AnalyticsDerivation{
		AnalyticsType:     AnalyticsType(submoduleCode, text),
		VisualizationType: VisualizationType(submoduleCode, text, entities),
	}

	lower := strings.ToLower(text)
	if out.VisualizationType == VizPieChart || strings.Contains(lower, "pie") || strings.Contains(lower, "distribution") {
		out.DistributionType = DistributionType(text, entities)
	}
	return out
}

func AnalyticsType(submoduleCode, text string) string {
	lower := strings.ToLower(text)

	if containsAny(lower, comparisonWords) {
		return TypeComparisonAnalysis
	}
	if containsAny(lower, distributionWords) {
		return TypeDistributionAnalysis
	}
	if t, ok := lookup(submoduleAnalytics, submoduleCode); ok {
		return t
	}
	if t, ok := scan(analyticsKeywords, lower); ok {
		return t
	}
	return TypeGeneralAnalytics
}

func VisualizationType(submoduleCode, text string, entities models.Entities) string {
	if requested, ok := entities.String(models.EntityVisualization); ok {
		requested = strings.ToLower(requested)
		for _, r := range entityVizRules {
			if containsAny(requested, r.keywords) {
				return r.result
			}
		}
	}

	if v, ok := scan(vizKeywords, strings.ToLower(text)); ok {
		return v
	}
	if v, ok := lookup(analyticsViz, AnalyticsType(submoduleCode, text)); ok {
		return v
	}
	if v, ok := lookup(submoduleViz, submoduleCode); ok {
		return v
	}
	return VizTable
}

// DistributionType returns "" when no dimension can be inferred.
func DistributionType(text string, entities models.Entities) string {
	if entities.Has(models.EntityDistributionType) {
		return entities.Text(models.EntityDistributionType)
	}

	lower := strings.ToLower(text)
	if d, ok := scan(distributionKeywords, lower); ok {
		return d
	}

	if containsAny(lower, pieMentions) {
		if entities.Has(models.EntityCategory) || containsAny(lower, spendMentions) {
			return DistributionCategory
		}
	}
	return ""
}

func scan(rules []rule, lowerText string) (string, bool) {
	for _, r := range rules {
		if strings.Contains(lowerText, r.keyword) {
			return r.result, true
		}
	}
	return "", false
}

func lookup(rules []rule, key string) (string, bool) {
	for _, r := range rules {
		if r.keyword == key {
			return r.result, true
		}
	}
	return "", false
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
