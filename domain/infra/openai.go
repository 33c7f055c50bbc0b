package infra

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/sohosai/sos26-sub000/domain/model"
)

type OpenAIConfig struct {
	APIKey          string
	Model           string
	AzureKey        string
	AzureEndpoint   string
	AzureAPIVersion string
}

type OpenAI struct {
	client *openai.Client
	model  string
}

// キーが設定されていなければ nil を返す
func NewOpenAI(c OpenAIConfig) (*OpenAI, error) {
	if c.APIKey == "" && c.AzureKey == "" {
		return nil, nil
	}
	client, err := newOpenAIClient(c)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
	}
	return &OpenAI{
		client: client,
		model:  c.Model,
	}, nil
}

func newOpenAIClient(c OpenAIConfig) (*openai.Client, error) {
	if c.AzureEndpoint != "" {
		return newAzureClient(c)
	}

	if c.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	options := []option.RequestOption{
		option.WithAPIKey(c.APIKey),
	}

	client := openai.NewClient(options...)
	return &client, nil
}

func newAzureClient(c OpenAIConfig) (*openai.Client, error) {
	if c.AzureKey == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_KEY is not set")
	}

	azureOpenAIAPIVersion := "2025-01-01-preview"
	if c.AzureAPIVersion != "" {
		azureOpenAIAPIVersion = c.AzureAPIVersion
	}

	client := openai.NewClient(
		azure.WithEndpoint(c.AzureEndpoint, azureOpenAIAPIVersion),
		azure.WithAPIKey(c.AzureKey),
	)
	return &client, nil
}

func summaryPrompt(conv model.InquiryConversation) string {
	return fmt.Sprintf(`## 依頼内容
あなたに渡すコンテンツは学園祭の実行委員会に寄せられた問い合わせ1件と、そのやりとりの履歴です。
内容は日付と、状態と、担当者と、問い合わせの内容と、コメントのやりとりです。
新しく担当に加わる委員が状況を把握するためのサマリを作ってください。

## 回答内容の指定
- 問い合わせの要点を簡潔にまとめる
- 回答済みの事項と未回答の事項を分ける
- 次に担当者がとるべき対応があれば挙げる

## フォーマットの指定
*要点*
> {問い合わせの要点}

*回答済みの事項*
> {回答済みの事項を羅列してください}

*未回答の事項・次の対応*
> {未回答の事項と次の対応を羅列してください}

## 現在時刻
%s
## 問い合わせ内容
%s
`,
		timeNow().Format("2006-01-02 15:04:05"),
		conv,
	)
}

func (h *OpenAI) GenerateSummary(ctx context.Context, conv model.InquiryConversation) (string, error) {
	response, err := h.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(summaryPrompt(conv)),
		},
		Model: h.model,
	})

	if err != nil {
		return "", fmt.Errorf("failed to call OpenAI API: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("OpenAI API returned no choices")
	}

	return response.Choices[0].Message.Content, nil
}
