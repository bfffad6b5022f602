package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const systemPrompt = `당신은 기업 프로젝트 변동 관리(CDC) 전문가입니다.
아래 제공된 [JSON DATA]는 '전일 대비 당일 프로젝트 변동 내역'입니다.

데이터는 다음 5가지 카테고리로 분류되어 있습니다:
1. 신규 추가 (new)
2. 선매출/증액 (adv_sales)
3. 이월/감액 (carry_over)
4. 취소/드랍 (del)
5. 기존 변동 (update)

위 데이터를 근거로 사용자의 질문에 답변하세요.
- 인사와 같은 불필요한 내용은 답변에 넣지 않습니다.
- 금액은 정확하게 계산하고 오차가 없도록 신중하게 답변할 것.
- 구체적인 금액(원 단위)이나 프로젝트명을 언급하며 전문적으로 답변할 것.
- 질문과 관련 없는 카테고리는 언급하지 말 것.
- 금액이 큰 순서대로 중요한 이슈 위주로 요약할 것.
- 정리가 필요한 답변은 Markdown 형태를 사용할 것.`

// Answer asks the model question about the given report context. The
// context is rendered as indented JSON with non-ASCII text kept verbatim.
func (c *Client) Answer(ctx context.Context, question string, reportContext any) (string, error) {
	data, err := FormatContext(reportContext)
	if err != nil {
		return "", err
	}
	return c.Complete(ctx, BuildMessages(question, data))
}

// BuildMessages lays out the prompt for one question.
func BuildMessages(question, contextJSON string) []Message {
	var b strings.Builder
	b.WriteString("[JSON DATA]\n")
	b.WriteString(contextJSON)
	b.WriteString("\n\n사용자 질문: ")
	b.WriteString(strings.TrimSpace(question))
	return []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: b.String()},
	}
}

// FormatContext pretty-prints v as JSON without HTML or Unicode escaping.
func FormatContext(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode report context: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
