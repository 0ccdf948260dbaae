// Package openaistream adapts the OpenAI chat completion stream to the
// engine's provider-neutral delta stream.
package openaistream

import (
	"context"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/stromboli/pkg/chat"
	"github.com/go-go-golems/stromboli/pkg/inference/provider"
)

type Client struct {
	client *openai.Client
}

type ClientOption func(*openai.ClientConfig)

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(baseURL string) ClientOption {
	return func(cfg *openai.ClientConfig) {
		cfg.BaseURL = baseURL
	}
}

func NewClient(apiKey string, options ...ClientOption) *Client {
	cfg := openai.DefaultConfig(apiKey)
	for _, o := range options {
		o(&cfg)
	}
	return &Client{client: openai.NewClientWithConfig(cfg)}
}

var _ provider.StreamClient = (*Client)(nil)

func (c *Client) StreamCompletion(ctx context.Context, req provider.Request) (provider.DeltaStream, error) {
	openaiReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: makeMessages(req),
		Stream:   true,
	}
	if len(req.Tools) > 0 {
		openaiReq.Tools = makeTools(req.Tools)
	}

	log.Debug().
		Str("model", req.Model).
		Int("messages", len(openaiReq.Messages)).
		Int("tools", len(openaiReq.Tools)).
		Msg("issuing chat completion stream request")

	inner, err := c.client.CreateChatCompletionStream(ctx, openaiReq)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create chat completion stream")
	}
	return &stream{
		inner:   inner,
		indexID: make(map[int]string),
	}, nil
}

func makeMessages(req provider.Request) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	lastUserIdx := -1
	for i, m := range req.Messages {
		msg := openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Text,
		}
		if m.Role == chat.RoleTool {
			msg.ToolCallID = m.ToolCallID
			msg.Name = m.ToolName
		}
		if m.Role == chat.RoleUser {
			lastUserIdx = i
		}
		msgs = append(msgs, msg)
	}

	// Only request-level images attach; the caller controls which step
	// carries them.
	if len(req.Images) > 0 && lastUserIdx >= 0 {
		msgs[lastUserIdx] = multiContentMessage(msgs[lastUserIdx], req.Images)
	}
	return msgs
}

func multiContentMessage(msg openai.ChatCompletionMessage, images []*chat.ImageContent) openai.ChatCompletionMessage {
	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: msg.Content},
	}
	for _, img := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    img.DataURL(),
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}
	msg.Content = ""
	msg.MultiContent = parts
	return msg
}

func makeTools(specs []provider.ToolSpec) []openai.Tool {
	tools := make([]openai.Tool, 0, len(specs))
	for _, spec := range specs {
		params := spec.Parameters
		var rawParams json.RawMessage
		if params != nil {
			if bts, err := json.Marshal(params); err == nil {
				rawParams = bts
			}
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  rawParams,
			},
		})
	}
	return tools
}

// stream converts openai stream chunks into RawDelta values. One chunk can
// carry several tool call fragments, so converted deltas are queued and
// drained one per Recv.
type stream struct {
	inner   *openai.ChatCompletionStream
	pending []provider.RawDelta
	// OpenAI sends a tool call's id only on its first fragment; later
	// fragments carry just the index.
	indexID map[int]string
}

var _ provider.DeltaStream = (*stream)(nil)

func (s *stream) Recv() (provider.RawDelta, error) {
	for {
		if len(s.pending) > 0 {
			d := s.pending[0]
			s.pending = s.pending[1:]
			return d, nil
		}

		resp, err := s.inner.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return provider.RawDelta{}, io.EOF
			}
			return provider.RawDelta{}, err
		}
		s.convert(resp)
	}
}

func (s *stream) convert(resp openai.ChatCompletionStreamResponse) {
	for _, choice := range resp.Choices {
		if choice.Delta.Content != "" {
			s.pending = append(s.pending, provider.RawDelta{
				Type:  "text",
				Delta: choice.Delta.Content,
			})
		}
		for _, tc := range choice.Delta.ToolCalls {
			id := tc.ID
			if tc.Index != nil {
				if id != "" {
					s.indexID[*tc.Index] = id
				} else {
					id = s.indexID[*tc.Index]
				}
			}
			s.pending = append(s.pending, provider.RawDelta{
				Type:          "tool_call",
				ToolCallID:    id,
				ToolName:      tc.Function.Name,
				ToolArguments: tc.Function.Arguments,
			})
		}
		if choice.FinishReason != "" {
			s.pending = append(s.pending, provider.RawDelta{
				Type:       "stop",
				StopReason: string(choice.FinishReason),
			})
		}
	}
}

func (s *stream) Close() error {
	s.inner.Close()
	return nil
}
