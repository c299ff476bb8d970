package llm

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Client 是指向 OpenRouter 的聊天补全客户端。
// 重试/退避由 openai-go 自身处理，这里不再叠加。
type Client struct {
	api openai.Client
}

func NewClient(apiKey, baseURL string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("OpenRouter API key is required")
	}

	api := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	)

	return &Client{api: api}, nil
}

func (c *Client) ChatCompletion(
	ctx context.Context,
	model string,
	system string,
	user string,
	temperature float64,
) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)

	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}

	messages = append(messages, openai.UserMessage(user))

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    messages,
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion from model")
	}

	return resp.Choices[0].Message.Content, nil
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// JSONResponse 要求模型只输出 JSON，并尽力从代码围栏或杂散文本中提取对象
func (c *Client) JSONResponse(
	ctx context.Context,
	model string,
	prompt string,
	temperature float64,
) (map[string]any, error) {
	const system = "You must respond with valid JSON only. " +
		"Do not include any text before or after the JSON."

	content, err := c.ChatCompletion(ctx, model, system, prompt, temperature)
	if err != nil {
		return nil, err
	}

	content = stripFences(content)

	var out map[string]any

	if err := json.Unmarshal([]byte(content), &out); err == nil {
		return out, nil
	}

	if match := jsonObjectPattern.FindString(content); match != "" {
		if err := json.Unmarshal([]byte(match), &out); err == nil {
			return out, nil
		}
	}

	return nil, errors.New("could not parse JSON from model response")
}

func stripFences(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	return strings.TrimSpace(content)
}
