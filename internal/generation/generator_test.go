package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				f.prompts = append(f.prompts, text.Text)
			}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.response}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func testPassages() []Passage {
	return []Passage{
		{Content: "Travel must be approved by a manager.", Source: "policy.pdf", Pages: "3"},
		{Content: "Meals are reimbursed up to 50 EUR per day.", Source: "policy.pdf", Pages: "4,5"},
	}
}

func TestGenerateReturnsModelAnswer(t *testing.T) {
	model := &fakeModel{response: "Manager approval is required [policy.pdf, 3]."}
	g, err := NewLLMGenerator(model)
	require.NoError(t, err)

	answer, err := g.Generate(context.Background(), "Who approves travel?", testPassages())
	require.NoError(t, err)
	assert.Equal(t, "Manager approval is required [policy.pdf, 3].", answer)
}

func TestGeneratePromptIncludesContextAndQuestion(t *testing.T) {
	model := &fakeModel{response: "ok"}
	g, err := NewLLMGenerator(model)
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "Who approves travel?", testPassages())
	require.NoError(t, err)
	require.NotEmpty(t, model.prompts)

	prompt := model.prompts[0]
	assert.Contains(t, prompt, "Who approves travel?")
	assert.Contains(t, prompt, "[policy.pdf, pages 3]")
	assert.Contains(t, prompt, "[policy.pdf, pages 4,5]")
	assert.Contains(t, prompt, NotFoundAnswer)
}

func TestGenerateNoPassagesSkipsModel(t *testing.T) {
	model := &fakeModel{response: "should never be used"}
	g, err := NewLLMGenerator(model)
	require.NoError(t, err)

	answer, err := g.Generate(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Equal(t, NotFoundAnswer, answer)
	assert.Empty(t, model.prompts)
}

func TestGenerateBlankCompletion(t *testing.T) {
	g, err := NewLLMGenerator(&fakeModel{response: "   \n"})
	require.NoError(t, err)

	answer, err := g.Generate(context.Background(), "q", testPassages())
	require.NoError(t, err)
	assert.Equal(t, NotFoundAnswer, answer)
}

func TestGeneratePropagatesModelError(t *testing.T) {
	g, err := NewLLMGenerator(&fakeModel{err: errors.New("backend down")})
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "q", testPassages())
	assert.Error(t, err)
}

func TestNewLLMGeneratorNilModel(t *testing.T) {
	_, err := NewLLMGenerator(nil)
	assert.ErrorIs(t, err, ErrNoModel)
}
