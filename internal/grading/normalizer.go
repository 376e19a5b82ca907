package grading

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"formquiz_backend/internal/model"
)

// Answer 可比较形式的作答，只填充与题型对应的字段
type Answer struct {
	Text     string
	Selected map[string]struct{}
	Number   *int
}

// Normalize 按题型规范化存储的 answer_text，格式错误时返回不匹配任何答案的 Answer
func Normalize(questionType string, raw *string) Answer {
	switch {
	case questionType == model.QuestionTextInput || questionType == model.QuestionDate:
		if raw == nil {
			return Answer{}
		}
		return Answer{Text: normalizeText(*raw)}
	case model.IsChoiceType(questionType):
		return Answer{Selected: selectedTexts(raw)}
	case questionType == model.QuestionScale:
		if raw == nil {
			return Answer{}
		}
		if n, ok := parseInt(*raw); ok {
			return Answer{Number: &n}
		}
	}
	return Answer{}
}

// AcceptedAnswers 将题目存储的标准答案解析为可接受的规范化字符串列表
// 非 JSON 数组的值视为唯一可接受答案
func AcceptedAnswers(stored *string) []string {
	if stored == nil {
		return nil
	}
	var items []any
	if err := json.Unmarshal([]byte(*stored), &items); err != nil {
		var single string
		if json.Unmarshal([]byte(*stored), &single) == nil {
			return nonEmpty(normalizeText(single))
		}
		return nonEmpty(normalizeText(*stored))
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		if s := normalizeText(stringify(item)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

// selectedTexts JSON 数组视为多选，其他内容视为单个选项文本
func selectedTexts(raw *string) map[string]struct{} {
	set := make(map[string]struct{})
	if raw == nil {
		return set
	}
	var items []any
	if err := json.Unmarshal([]byte(*raw), &items); err != nil {
		set[*raw] = struct{}{}
		return set
	}
	for _, item := range items {
		if item == nil {
			continue
		}
		set[stringify(item)] = struct{}{}
	}
	return set
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func parseInt(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}
