package words

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// 外部词语生成服务的客户端，按 OpenAI 兼容的
// chat completions 协议调用（默认指向 Groq）
//
// 调用方必须把空响应或失败当作“没有可用词”处理，
// 绝不能用空词库开始回合

var (
	ErrMissingAPIKey = errors.New("缺少词语生成服务的 API Key")
	ErrInvalidTopic  = errors.New("主题无效：清理后不足 2 个字符")
	ErrNoWords       = errors.New("词语生成服务没有返回可用的词")
)

// Source 是房间服务依赖的生成接口，测试里用桩实现替换
type Source interface {
	Generate(ctx context.Context, topic string, exclude []string) ([]string, error)
}

type Client struct {
	baseURL string
	model   string
	apiKey  string

	httpClient *http.Client
}

func NewClient(baseURL, model, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

var (
	markupChars  = regexp.MustCompile(`[<>"'` + "`" + `]`)
	multiSpace   = regexp.MustCompile(`\s+`)
	topicMaxRune = 50
)

// SanitizeTopic 清理用户输入的主题：去首尾空白、截断长度、
// 去掉标记特殊字符、压缩空白
func SanitizeTopic(input string) string {
	s := strings.TrimSpace(input)

	runes := []rune(s)
	if len(runes) > topicMaxRune {
		s = string(runes[:topicMaxRune])
	}

	s = markupChars.ReplaceAllString(s, "")
	s = multiSpace.ReplaceAllString(s, " ")

	return strings.TrimSpace(s)
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate 为一个主题生成候选词，排除最近用过的
func (c *Client) Generate(ctx context.Context, topic string, exclude []string) ([]string, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	sanitized := SanitizeTopic(topic)
	if len([]rune(sanitized)) < 2 {
		return nil, ErrInvalidTopic
	}

	prompt := fmt.Sprintf(
		"Generate exactly 8 short, specific items related to %q. "+
			"These will be used in a spy game where players need to guess a secret word. "+
			"Make them specific and recognizable. "+
			"Return ONLY the items as a comma-separated list, nothing else.",
		sanitized,
	)

	if len(exclude) > 0 {
		prompt += " Do not include any of: " + strings.Join(exclude, ", ") + "."
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: 0.7,
		MaxTokens:   150,
	})
	if err != nil {
		return nil, fmt.Errorf("编码生成请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/chat/completions",
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("构建生成请求失败: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("调用词语生成服务失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		zap.L().Error(
			"词语生成服务返回错误",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", payload),
		)

		return nil, fmt.Errorf("词语生成服务返回 %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("解析生成响应失败: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return nil, ErrNoWords
	}

	words := splitWords(parsed.Choices[0].Message.Content, exclude)
	if len(words) == 0 {
		return nil, ErrNoWords
	}

	return words, nil
}

// splitWords 解析逗号分隔的词表并过滤排除项
func splitWords(content string, exclude []string) []string {
	excluded := make(map[string]bool, len(exclude))
	for _, w := range exclude {
		excluded[strings.ToLower(w)] = true
	}

	words := make([]string, 0, 8)

	for _, part := range strings.Split(content, ",") {
		w := strings.TrimSpace(part)
		if w == "" || excluded[strings.ToLower(w)] {
			continue
		}

		words = append(words, w)
	}

	return words
}
