package analysis

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const DefaultModel = "gemini-2.0-flash-001"

// Analyzer 调用 Gemini 对新闻做市场影响分类
type Analyzer struct {
	client *genai.Client
	model  string
	// generate 发送提示词并返回模型的纯文本回复，测试中可替换
	generate func(ctx context.Context, prompt string) (string, error)
}

// NewAnalyzer 创建分析器；token 为空时返回的分析器每次调用都返回 ErrNoToken
func NewAnalyzer(ctx context.Context, token, model string) (*Analyzer, error) {
	if model == "" {
		model = DefaultModel
	}
	a := &Analyzer{model: model}
	if token == "" {
		log.Printf("analysis: GEMINI_TOKEN not set, analysis disabled")
		return a, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(token))
	if err != nil {
		return nil, fmt.Errorf("analysis: create gemini client: %w", err)
	}
	a.client = client
	a.generate = a.generateWithGemini
	return a, nil
}

// Enabled 是否配置了模型
func (a *Analyzer) Enabled() bool {
	return a != nil && a.generate != nil
}

// Analyze 对一段新闻文本做分类；模型出错或回复无法解析时返回错误
func (a *Analyzer) Analyze(ctx context.Context, text string) (*Classification, error) {
	if !a.Enabled() {
		return nil, ErrNoToken
	}
	reply, err := a.generate(ctx, BuildPrompt(text))
	if err != nil {
		return nil, fmt.Errorf("analysis: gemini: %w", err)
	}
	c, err := ParseClassification(reply, text)
	if err != nil {
		log.Printf("analysis: failed to parse reply: %q", reply)
		return nil, err
	}
	return c, nil
}

func (a *Analyzer) generateWithGemini(ctx context.Context, prompt string) (string, error) {
	resp, err := a.client.GenerativeModel(a.model).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		// 只取第一个有内容的候选
		if sb.Len() > 0 {
			break
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("empty response")
	}
	return sb.String(), nil
}

// Close 释放底层客户端
func (a *Analyzer) Close() error {
	if a == nil || a.client == nil {
		return nil
	}
	return a.client.Close()
}
