package classify

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/verdantlabs/seedbank/pkg/configuration"
)

const systemPrompt = `You are a horticultural classification assistant. You receive seed inventory
rows together with an existing plant taxonomy and a list of known seed sources.
For every input row, pick the best matching plant type and category from the
existing taxonomy where possible, suggest a subcategory when one clearly
applies, and normalize the source name against the known sources.

Respond with a JSON array only, no prose. One entry per input row:
{"index": <row index>, "plant_type": "...", "category": "...",
 "subcategory": "..." or null, "normalized_source": "...",
 "confidence": <0.0-1.0>, "notes": "..." or null}`

type OpenAIClassifier struct {
	client openai.Client
	model  string
	temp   float64
}

func NewOpenAIClassifier(conf configuration.ClassifierOptions) *OpenAIClassifier {
	var client openai.Client
	if conf.BaseURL != "" {
		client = openai.NewClient(
			option.WithAPIKey(conf.APIKey),
			option.WithBaseURL(conf.BaseURL),
		)
	} else {
		client = openai.NewClient(
			option.WithAPIKey(conf.APIKey),
		)
	}
	return &OpenAIClassifier{
		client: client,
		model:  conf.Model,
		temp:   conf.Temperature,
	}
}

func (c *OpenAIClassifier) Classify(ctx context.Context, req Request) ([]Result, []byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to encode classification request")
	}

	response, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(string(payload)),
		},
		Temperature: openai.Float(c.temp),
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "classification request failed")
	}
	if len(response.Choices) == 0 {
		return nil, nil, errors.New("classification service returned no choices")
	}

	raw := []byte(extractJSONArray(response.Choices[0].Message.Content))
	results, err := DecodeResults(raw, len(req.Rows))
	if err != nil {
		return nil, raw, err
	}
	return results, raw, nil
}
