package processor

import (
	"log"
	"strings"

	"github.com/didasy/tldr"
)

const (
	DefaultSummarySentences = 3
	maxSummaryRunes         = 600
)

// Summarize 抽取式摘要，由 tldr 选出 n 句；句子不超过 n 句时原样返回。
// tldr 出错时退回前 n 句。结果按 rune 截断到 maxSummaryRunes。
func Summarize(text string, n int) string {
	if n <= 0 {
		n = DefaultSummarySentences
	}
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return ""
	}
	if len(sentences) <= n {
		return truncateRunes(strings.Join(sentences, " "), maxSummaryRunes)
	}

	picked, err := rankSentences(strings.Join(sentences, " "), n)
	if err != nil || len(picked) == 0 {
		log.Printf("processor: summarize falls back to lead sentences: %v", err)
		picked = sentences[:n]
	}
	return truncateRunes(strings.Join(picked, " "), maxSummaryRunes)
}

func rankSentences(text string, n int) ([]string, error) {
	res, err := tldr.New().Summarize(text, n)
	if err != nil {
		return nil, err
	}

	var raw []string
	// 早期版本返回拼接好的 string
	switch v := any(res).(type) {
	case []string:
		raw = v
	case string:
		raw = splitSentences(v)
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// splitSentences 以 . ! ? … 加空白作为句子边界
func splitSentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}

	var (
		out []string
		cur strings.Builder
	)
	rs := []rune(text)
	for i, r := range rs {
		cur.WriteRune(r)
		if !isSentenceEnd(r) {
			continue
		}
		if i+1 < len(rs) && rs[i+1] != ' ' {
			continue
		}
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '…':
		return true
	}
	return false
}
