// Package visualization validates chart configurations produced by the
// visualization-generation collaborator and substitutes a deterministic
// fallback whenever the generated configuration cannot be used.
package visualization

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const (
	ChartLine  = "line"
	ChartBar   = "bar"
	ChartPie   = "pie"
	ChartTable = "table"
)

var chartAliases = map[string]string{
	"line graph": ChartLine,
	"line chart": ChartLine,
	"line_chart": ChartLine,
	"bar graph":  ChartBar,
	"bar chart":  ChartBar,
	"bar_chart":  ChartBar,
	"pie chart":  ChartPie,
	"pie graph":  ChartPie,
	"pie_chart":  ChartPie,
}

var schemaDefinitions = map[string]map[string]interface{}{
	ChartLine: {
		"type":     "object",
		"required": []interface{}{"xAxis", "yAxis", "series"},
	},
	ChartBar: {
		"type":     "object",
		"required": []interface{}{"xAxis", "yAxis", "series"},
	},
	ChartPie: {
		"type":     "object",
		"required": []interface{}{"series"},
		"properties": map[string]interface{}{
			"series": map[string]interface{}{"type": "array"},
		},
	},
	ChartTable: {
		"type":     "object",
		"required": []interface{}{"columns", "data"},
	},
}

var schemas = compileSchemas()

func compileSchemas() map[string]*gojsonschema.Schema {
	out := make(map[string]*gojsonschema.Schema, len(schemaDefinitions))
	for chart, def := range schemaDefinitions {
		s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def))
		if err != nil {
			panic(fmt.Sprintf("visualization: invalid %s schema: %v", chart, err))
		}
		out[chart] = s
	}
	return out
}

// NormalizeChartType maps the spellings used by the classifier and by users
// onto line, bar or pie. Anything else is returned lower-cased.
func NormalizeChartType(chartType string) string {
	lower := strings.ToLower(strings.TrimSpace(chartType))
	if c, ok := chartAliases[lower]; ok {
		return c
	}
	return lower
}

// NormalizeAliases renames xAxes/yAxes to xAxis/yAxis in place when the
// singular key is absent.
func NormalizeAliases(config map[string]interface{}) {
	for plural, singular := range map[string]string{"xAxes": "xAxis", "yAxes": "yAxis"} {
		if v, ok := config[plural]; ok {
			if _, exists := config[singular]; !exists {
				config[singular] = v
				delete(config, plural)
			}
		}
	}
}

// Validate normalises axis aliases and then checks the per-type required
// keys. Unknown chart types are never valid.
func Validate(chartType string, config map[string]interface{}) error {
	schema, ok := schemas[chartType]
	if !ok {
		return fmt.Errorf("unsupported chart type %q", chartType)
	}
	if config == nil {
		return fmt.Errorf("empty %s configuration", chartType)
	}

	NormalizeAliases(config)

	result, err := schema.Validate(gojsonschema.NewGoLoader(config))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("%s configuration invalid: %v", chartType, errs)
	}
	return nil
}
