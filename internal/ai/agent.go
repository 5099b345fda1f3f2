package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"costing-service/internal/core"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
)

// AgentService turns a natural language costing brief into a structured cost
// sheet proposal.
type AgentService interface {
	InterpretCostSheet(ctx context.Context, naturalLanguage, rateCard string, company *core.Company) (*core.AgentResponse, error)
}

type Agent struct {
	client *openai.Client
}

func NewAgent(apiKey string) *Agent {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Agent{client: &client}
}

// InterpretCostSheet asks the model to draft a cost sheet from a free-text
// brief. The response is constrained by a JSON schema generated from
// core.AgentResponse, so the model either returns a full SheetProposal or a
// clarification request, never prose.
func (a *Agent) InterpretCostSheet(ctx context.Context, naturalLanguage, rateCard string, company *core.Company) (*core.AgentResponse, error) {
	prompt := fmt.Sprintf(`You are an expert garment costing engineer.
Your goal is to interpret a costing brief described in natural language and propose a complete cost sheet.
Rules:
1. Every line belongs to exactly one section: fabric, trims, labor, overhead, packaging, other.
2. All numbers must be exact decimal strings (e.g. "0.35", "6.20").
3. When the brief omits a rate, use the company rate card below; if neither has it, ask for clarification.
4. Overhead lines under 'percent_of_labor' carry the percentage in the rate field.
5. Provide a confidence score (0.0-1.0) and explain your reasoning.
6. If the brief lacks enough information for a confident sheet (no style, no quantities, no costs at all), return a clarification request instead.

Company: %s (%s), base currency %s.

Rate card defaults:
%s

Brief: %s`, company.Name, company.CompanyCode, company.BaseCurrency, rateCard, naturalLanguage)

	// Dynamically generate the JSON schema from the Go struct
	schemaStruct := generateSchema()
	schemaJSON, err := json.Marshal(schemaStruct)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(shared.ChatModelGPT4o),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "cost_sheet_proposal",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("A proposed garment cost sheet or a clarification request"),
				},
			},
		},
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}

	content := resp.OutputText()
	if content == "" {
		return nil, fmt.Errorf("empty response content")
	}

	var response core.AgentResponse
	if err := json.Unmarshal([]byte(content), &response); err != nil {
		return nil, fmt.Errorf("failed to parse completion: %w", err)
	}

	if response.IsClarificationRequest {
		if response.Clarification == nil {
			return nil, fmt.Errorf("clarification response missing message")
		}
		return &response, nil
	}

	if response.Proposal == nil {
		return nil, fmt.Errorf("response carried neither a proposal nor a clarification")
	}
	response.Proposal.Normalize()
	if err := response.Proposal.Validate(); err != nil {
		return nil, fmt.Errorf("proposal validation failed: %w", err)
	}

	return &response, nil
}

func generateSchema() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v core.AgentResponse
	return reflector.Reflect(v)
}
