package reply

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/apresai/summit/internal/config"
)

const novaDefaultModel = "us.amazon.nova-2-lite-v1:0"

// ConverseAPI is the part of the Bedrock runtime client Nova uses.
type ConverseAPI interface {
	Converse(ctx context.Context, in *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Nova generates replies with Amazon Nova through Bedrock Converse.
type Nova struct {
	client      ConverseAPI
	model       string
	temperature float32
	maxTokens   int32
}

// NewNova loads AWS config for opts.AWSRegion. Bedrock credentials come from
// the default chain, so there is no API key check here.
func NewNova(ctx context.Context, opts Options) (*Nova, error) {
	awsCfg, err := config.AWSConfig(ctx, opts.AWSRegion)
	if err != nil {
		return nil, fmt.Errorf("load AWS config for Bedrock: %w", err)
	}
	client := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		o.RetryMaxAttempts = 1
	})
	return NewNovaWithClient(client, opts), nil
}

// NewNovaWithClient wires an existing Converse client.
func NewNovaWithClient(client ConverseAPI, opts Options) *Nova {
	model := opts.Model
	if model == "" {
		model = novaDefaultModel
	}
	return &Nova{
		client:      client,
		model:       model,
		temperature: float32(opts.Temperature),
		maxTokens:   int32(opts.MaxTokens),
	}
}

func (g *Nova) Name() string { return "nova" }

func (g *Nova) Generate(ctx context.Context, system string, msgs []Message) (string, error) {
	messages := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		role := types.ConversationRoleUser
		if m.Role == RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		messages = append(messages, types.Message{
			Role: role,
			Content: []types.ContentBlock{
				&types.ContentBlockMemberText{Value: m.Content},
			},
		})
	}

	resp, err := g.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(g.model),
		System: []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: system},
		},
		Messages: messages,
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(g.maxTokens),
			Temperature: aws.Float32(g.temperature),
		},
	})
	if err != nil {
		return "", &GenerationError{Provider: g.Name(), StatusCode: statusOf(err), Err: err}
	}

	text := strings.TrimSpace(extractNovaText(resp))
	if text == "" {
		return "", &GenerationError{Provider: g.Name(), Err: ErrEmptyResponse}
	}
	return text, nil
}

func extractNovaText(resp *bedrockruntime.ConverseOutput) string {
	if resp == nil || resp.Output == nil {
		return ""
	}
	msg, ok := resp.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}
	var parts []string
	for _, block := range msg.Value.Content {
		if tb, ok := block.(*types.ContentBlockMemberText); ok {
			parts = append(parts, tb.Value)
		}
	}
	return strings.Join(parts, "")
}

var _ Generator = (*Nova)(nil)
