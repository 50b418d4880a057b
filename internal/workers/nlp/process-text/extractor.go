package processtext

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"banking-command-workers/internal/common/conversation"
	apperrors "banking-command-workers/internal/common/errors"
	"banking-command-workers/internal/common/genai"
	"banking-command-workers/internal/models"
	"banking-command-workers/pkg/registry"
)

// Completer is the chat completion call made for extraction.
type Completer interface {
	CompleteJSON(ctx context.Context, messages []genai.Message) (string, error)
}

// Extractor asks the language model for module, submodule, entities and
// flow. It never returns an error: failures are reported through
// RawExtraction.Error.
type Extractor struct {
	completer Completer
	registry  *registry.Registry
	prompt    string
}

func NewExtractor(completer Completer, reg *registry.Registry) *Extractor {
	return &Extractor{
		completer: completer,
		registry:  reg,
		prompt:    buildSystemPrompt(reg),
	}
}

type extractionReply struct {
	Module    string           `json:"module"`
	SubModule models.SubModule `json:"sub_module"`
	Entities  models.Entities  `json:"entities"`
	Flow      string           `json:"flow"`
	Error     string           `json:"error"`
}

func (e *Extractor) Extract(ctx context.Context, text string, previous *conversation.Turn) models.RawExtraction {
	failed := func(msg string, cause error) models.RawExtraction {
		return models.RawExtraction{RawText: text, Flow: models.FlowQuery, Error: msg, Cause: cause}
	}

	content, err := e.completer.CompleteJSON(ctx, []genai.Message{
		{Role: genai.RoleSystem, Content: e.prompt},
		{Role: genai.RoleUser, Content: userPrompt(text, previous)},
	})
	if err != nil {
		return failed(err.Error(), classifyCompletionError(err))
	}

	var reply extractionReply
	if err := json.Unmarshal([]byte(genai.ExtractJSON(content)), &reply); err != nil {
		return failed("Invalid JSON response from extraction model", apperrors.NewExtractionFailedError(err))
	}
	if reply.Error != "" {
		return failed(reply.Error, apperrors.NewExtractionFailedError(errors.New(reply.Error)))
	}
	if !e.registry.Has(reply.Module) {
		invalid := apperrors.NewInvalidModuleError(reply.Module)
		return failed(invalid.Message, invalid)
	}

	sub := reply.SubModule
	if known, ok := e.registry.SubModule(reply.Module, sub.SubmoduleCode); ok {
		sub = models.SubModule{
			SubmoduleCode: known.Code,
			SubmoduleName: known.Name,
			Endpoint:      known.Endpoint,
			RequestFile:   known.RequestFile,
		}
	}

	return models.RawExtraction{
		Module:    reply.Module,
		SubModule: sub,
		Entities:  reply.Entities.Sanitize(),
		Flow:      models.ParseFlow(reply.Flow),
		RawText:   text,
	}
}

func classifyCompletionError(err error) *apperrors.StandardError {
	if errors.Is(err, genai.ErrTimeout) {
		return apperrors.NewGenAITimeoutError(err)
	}
	return apperrors.NewExtractionFailedError(err)
}

func userPrompt(text string, previous *conversation.Turn) string {
	var b strings.Builder
	if previous != nil && previous.RawText != "" {
		b.WriteString("Previous interaction:\n")
		b.WriteString("User: " + previous.RawText + "\n")
		b.WriteString("Assistant: " + previous.Response + "\n\n")
	}
	b.WriteString("Extract the module, sub_module, entities, and flow from this banking command: ")
	b.WriteString(text)
	b.WriteString("\n\nReturn ONLY a JSON object with the defined structure.")
	return b.String()
}

func buildSystemPrompt(reg *registry.Registry) string {
	var modules, guides []string

	for _, m := range reg.Modules() {
		lines := []string{fmt.Sprintf("   - %s (%s):", m.Name, m.Code)}
		for _, sm := range m.Submodules {
			lines = append(lines, fmt.Sprintf("    - %s (%s)", sm.Name, sm.Code))
		}
		modules = append(modules, strings.Join(lines, "\n"))

		if len(m.Properties) == 0 {
			continue
		}
		names := make([]string, 0, len(m.Properties))
		for name := range m.Properties {
			names = append(names, name)
		}
		sort.Strings(names)

		guide := []string{fmt.Sprintf("\nFor %s (%s) module, extract these specific entities when present:", m.Name, m.Code)}
		for _, name := range names {
			p := m.Properties[name]
			typ := p.Type
			if typ == "" {
				typ = "string"
			}
			line := fmt.Sprintf("- %s: %s (type: %s)", name, p.Description, typ)
			if len(p.Enum) > 0 {
				vals := make([]string, len(p.Enum))
				for i, v := range p.Enum {
					vals[i] = fmt.Sprint(v)
				}
				line += fmt.Sprintf(", allowed values: [%s]", strings.Join(vals, ", "))
			}
			guide = append(guide, line)
		}
		guides = append(guides, strings.Join(guide, "\n"))
	}

	return fmt.Sprintf(`You are a banking command processor. Analyze the command and identify:
1. The module and submodule
2. Any relevant entities based on the module properties
3. The flow type (QUERY, TRANSFER, or ANALYTICS)

Available Banking Modules and Submodules:
%s

Flow Types:
- QUERY: simple information retrieval or basic actions ("show balance", "show card details")
- TRANSFER: money movement that needs validation ("send $100 to John", "pay electricity bill")
- ANALYTICS: trends, distributions, comparisons, insights or charts ("show spending trends")
%s
%s
%s

Return a JSON object with exactly this structure:
{
  "module": "<module_code>",
  "sub_module": {"submoduleCode": "<submodule_code>", "submoduleName": "<submodule_name>"},
  "entities": {},
  "flow": "QUERY|TRANSFER|ANALYTICS"
}
If no module fits, return {"error": "<reason>"}.`,
		strings.Join(modules, "\n"), strings.Join(guides, "\n"), analyticsGuide, transferGuide)
}

const analyticsGuide = `
For the ANALYTICS module:
- year, month ("January", "Jan", "01"), quarter ("Q1"), period ("last month", "year to date", "last 30 days")
- category for spending categories, visualization for requested charts ("pie chart", "table")
- distributionType: category, amount_range, time_of_day, day_of_week, transaction_type, merchant, location, month
- amountRangeBuckets (e.g. ["0-50", "51-100", "101-500", "500+"]) and timeOfDayRanges (e.g. ["morning", "evening"])
Always use the ANALYTICS flow for trends, distributions, comparisons, performance, insights or visual output.`

const transferGuide = `
For the TRANSFER module:
- use "beneficiaryName" for the recipient, never "recipientName"
- use "amount" and, when stated, "currency"
- "Send 500 euros to Alice Johnson" -> {"amount": "500", "beneficiaryName": "Alice Johnson", "currency": "EUR"}`
