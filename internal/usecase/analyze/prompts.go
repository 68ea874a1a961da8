package analyze

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/tagrec/internal/domain/vocabulary"
)

const verifyPrompt = `你是一个专业的货运对话标注专家。请分析以下司机与货主的对话内容，验证初始AI推荐的标签是否合适。

## 对话内容：
%s

## 初始AI推荐的标签：
%s

## 你的任务：
请逐个分析每个初始AI标签，判断是否合适，并给出理由。

## 标签判断标准：
- **合适**：对话内容明确提到或暗示该标签所描述的特征
- **不合适**：对话内容未提及、相反、或不足以支持该标签

## 输出格式（严格按照JSON格式输出）：
{
    "appropriate_tags": ["标签1", "标签2"],
    "inappropriate_tags": ["标签3"],
    "reasons": {
        "标签1": "对话中提到xxx，符合该标签定义",
        "标签3": "对话中未提及xxx，不符合该标签定义"
    }
}

请只输出JSON，不要输出其他内容。`

const contentPrompt = `你是一个专业的货运对话标注专家。请深入分析以下司机与货主的对话内容，推荐合适的标签。

## 对话内容：
%s

## 所有可用的标准化标签及其定义：
%s

## 已排除的标签（不需要再次推荐）：
%s

## 你的任务：
根据对话内容，从上述标签列表中选择合适的标签。优先选择明确提及的特征。

## 标签选择标准：
1. 对话中明确提到的特征（如车型、尺寸、费用等）
2. 双方达成一致的要求或约定
3. 司机或货主明确表示的限制或条件
4. 不要选择对话中未提及的标签

## 输出格式（严格按照JSON格式输出）：
{
    "recommended_tags": ["标签1", "标签2", "标签3"],
    "reasons": {
        "标签1": "对话中司机明确说xxx，符合该标签定义",
        "标签2": "货主要求xxx，司机同意，符合标签定义"
    }
}

请只输出JSON，不要输出其他内容。`

const (
	noDefinition = "无说明"
	noneExcluded = "无"
)

func buildVerifyPrompt(text string, prior []string, vocab *vocabulary.Vocabulary) string {
	var sb strings.Builder
	for i, tag := range prior {
		if i > 0 {
			sb.WriteByte('\n')
		}
		def, ok := vocab.Definition(tag)
		if !ok || def == "" {
			def = noDefinition
		}
		fmt.Fprintf(&sb, "- %s: %s", tag, def)
	}
	return fmt.Sprintf(verifyPrompt, text, sb.String())
}

func buildContentPrompt(text string, exclude []string, vocab *vocabulary.Vocabulary) string {
	var sb strings.Builder
	for i, tag := range vocab.Tags() {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "- %s: %s", tag.Name, tag.Definition)
	}

	excluded := noneExcluded
	if len(exclude) > 0 {
		excluded = strings.Join(exclude, ", ")
	}
	return fmt.Sprintf(contentPrompt, text, sb.String(), excluded)
}
