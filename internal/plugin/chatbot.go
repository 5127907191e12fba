package plugin

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/qiminjie89/danmuji/internal/event"
	"github.com/qiminjie89/danmuji/pkg/config"
	"github.com/sashabaranov/go-openai"
)

// ChatbotName 聊天机器人插件名
const ChatbotName = "chatbot"

// ErrEmptyPrompt 触发词后没有内容
var ErrEmptyPrompt = errors.New("empty prompt")

// Chatbot 以触发词开头的弹幕转发给 OpenAI 兼容接口，每个候选回答作为一条回复
type Chatbot struct {
	client    *openai.Client
	trigger   string
	model     string
	maxTokens int
	timeout   time.Duration
}

// NewChatbot 创建聊天机器人插件
func NewChatbot(cfg config.ChatbotConfig) *Chatbot {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "dummy-key" // 本地兼容服务不校验
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{
		Timeout: timeout,
	}

	return &Chatbot{
		client:    openai.NewClientWithConfig(clientCfg),
		trigger:   cfg.Trigger,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   timeout,
	}
}

// Name 插件名
func (c *Chatbot) Name() string {
	return ChatbotName
}

// Prompt 提取触发词之后的内容
func (c *Chatbot) Prompt(text string) (string, bool) {
	if c.trigger == "" || !strings.HasPrefix(text, c.trigger) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(text, c.trigger)), true
}

// Process 只处理带触发词的弹幕
func (c *Chatbot) Process(ctx context.Context, ev event.Event) ([]string, error) {
	if ev.Kind != event.KindComment || ev.Comment == nil {
		return nil, nil
	}
	prompt, ok := c.Prompt(ev.Comment.Text)
	if !ok {
		return nil, nil
	}
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		User: ev.Comment.Uname,
	})
	if err != nil {
		return nil, err
	}

	replies := make([]string, 0, len(resp.Choices))
	for _, choice := range resp.Choices {
		if text := strings.TrimSpace(choice.Message.Content); text != "" {
			replies = append(replies, text)
		}
	}
	return replies, nil
}
