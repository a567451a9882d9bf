package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Marcoscjr/temporipro2-sub000/internal/core"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
	"github.com/shopspring/decimal"
)

// PaymentPlanInterpreter turns an operator's description of how the customer
// will pay into a structured plan.
type PaymentPlanInterpreter interface {
	InterpretPaymentPlan(ctx context.Context, text string, finalValue decimal.Decimal, today time.Time) (*core.PaymentPlanResponse, error)
}

type Agent struct {
	client *openai.Client
	model  shared.ResponsesModel
}

func NewAgent(apiKey string) *Agent {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Agent{client: &client, model: shared.ResponsesModel(shared.ChatModelGPT4o)}
}

func (a *Agent) InterpretPaymentPlan(ctx context.Context, text string, finalValue decimal.Decimal, today time.Time) (*core.PaymentPlanResponse, error) {
	params, err := paymentPlanParams(a.model, buildPrompt(text, finalValue, today))
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}

	return parsePaymentPlanResponse(resp.OutputText())
}

func buildPrompt(text string, finalValue decimal.Decimal, today time.Time) string {
	methods := make([]string, 0, len(core.PaymentMethods()))
	for _, m := range core.PaymentMethods() {
		methods = append(methods, string(m))
	}

	return fmt.Sprintf(`You are the payment desk of a custom furniture store.
Your goal is to turn the salesperson's description of how the customer will pay into a payment plan.
Rules:
1. Use ONLY these payment methods: %s.
2. Amounts must be exact decimal strings with a dot separator (e.g. "1500.00").
3. An entry's amount is the total for that method; installments split it into equal parts.
4. Dates are YYYY-MM-DD. Today is %s. Monthly installments start one month after today unless told otherwise.
5. When the description leaves part of the value unassigned, do not invent a payment for it: plan only what was described.
6. Ask for clarification when a method, amount or installment count cannot be inferred.

Contract value: %s

Description: %s`, strings.Join(methods, ", "), today.Format("2006-01-02"), finalValue.StringFixed(2), text)
}

func paymentPlanParams(model shared.ResponsesModel, prompt string) (responses.ResponseNewParams, error) {
	// Dynamically generate the JSON schema from the Go struct
	schemaJSON, err := json.Marshal(generateSchema())
	if err != nil {
		return responses.ResponseNewParams{}, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return responses.ResponseNewParams{}, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}

	return responses.ResponseNewParams{
		Model: model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "payment_plan",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("A payment plan for a furniture contract, or a clarification request"),
				},
			},
		},
	}, nil
}

// parsePaymentPlanResponse decodes and validates the model output.
func parsePaymentPlanResponse(content string) (*core.PaymentPlanResponse, error) {
	if content == "" {
		return nil, fmt.Errorf("empty response content")
	}

	var response core.PaymentPlanResponse
	if err := json.Unmarshal([]byte(content), &response); err != nil {
		return nil, fmt.Errorf("failed to parse completion: %w", err)
	}

	if response.IsClarificationRequest {
		if response.Clarification == nil || strings.TrimSpace(response.Clarification.Message) == "" {
			return nil, fmt.Errorf("clarification requested without a message")
		}
		response.Plan = nil
		return &response, nil
	}

	if response.Plan == nil {
		return nil, fmt.Errorf("response carries neither a plan nor a clarification")
	}
	response.Plan.Normalize()
	if _, err := response.Plan.Validate(); err != nil {
		return nil, fmt.Errorf("payment plan validation failed: %w", err)
	}
	return &response, nil
}

func generateSchema() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v core.PaymentPlanResponse
	return reflector.Reflect(v)
}
