package completion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/DeafMist/agentic-voice/backend/internal/models"
)

// Stream yields text chunks until io.EOF.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Completer starts streamed chat completions.
type Completer interface {
	Model() string
	Stream(ctx context.Context, messages []models.Message) (Stream, error)
}

// OpenAI streams completions from the chat completions API.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI builds a completer. An empty baseURL keeps the library default.
func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}
}

func (o *OpenAI) Model() string { return o.model }

func (o *OpenAI) Stream(ctx context.Context, messages []models.Message) (Stream, error) {
	req := openai.ChatCompletionRequest{
		Model:    o.model,
		Stream:   true,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	s, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create chat completion stream: %w", err)
	}
	return &openAIStream{s: s}, nil
}

type openAIStream struct {
	s *openai.ChatCompletionStream
}

// Recv skips chunks that carry no content (role announcements, finish markers).
func (st *openAIStream) Recv() (string, error) {
	for {
		resp, err := st.s.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", fmt.Errorf("receive completion chunk: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if text := resp.Choices[0].Delta.Content; text != "" {
			return text, nil
		}
	}
}

func (st *openAIStream) Close() error {
	return st.s.Close()
}

// Mock answers without any external API, for offline development.
type Mock struct{}

func (Mock) Model() string { return "mock-agentic-voice" }

func (Mock) Stream(_ context.Context, messages []models.Message) (Stream, error) {
	last := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			last = messages[i].Content
			break
		}
	}

	reply := "Understood. (mock) You asked: \"" + last + "\""
	words := strings.SplitAfter(reply, " ")
	return &sliceStream{chunks: words}, nil
}

// NewSliceStream returns a Stream over fixed chunks.
func NewSliceStream(chunks ...string) Stream {
	return &sliceStream{chunks: chunks}
}

type sliceStream struct {
	chunks []string
	pos    int
	closed bool
}

func (s *sliceStream) Recv() (string, error) {
	if s.closed || s.pos >= len(s.chunks) {
		return "", io.EOF
	}
	c := s.chunks[s.pos]
	s.pos++
	return c, nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}
