package llm

import "context"

// qwenProvider implements Provider for Alibaba Cloud's DashScope
// service through its OpenAI-compatible endpoint. This is the default
// provider: the qwen-vl family reads mixed Chinese/English homework
// pages well and accepts base64 image parts directly.
//
// Supported vision models:
//
//	qwen-vl-max    strongest document understanding, default
//	qwen-vl-plus   cheaper, lower resolution ceiling
//
// API key: set via config or the DASHSCOPE_API_KEY env var.
type qwenProvider struct {
	base openAICompatClient
}

// NewQwen creates a provider for DashScope's Qwen models.
func NewQwen(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "qwen-vl-max"
	}
	// BaseURL already carries the version segment.
	return &qwenProvider{base: newOpenAICompatClientPrefix(cfg, "")}
}

func (p *qwenProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return p.base.chat(ctx, req)
}

func (p *qwenProvider) ChatWithImages(ctx context.Context, req VisionChatRequest) (*ChatResponse, error) {
	return p.base.chatWithImages(ctx, req)
}
