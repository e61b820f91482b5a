package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrNoToken 未配置 GEMINI_TOKEN
	ErrNoToken = errors.New("analysis: gemini token not set")
	// ErrNoJSON 模型回复中没有可解析的 JSON
	ErrNoJSON = errors.New("analysis: no json in model reply")
)

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// Classification 模型对一条新闻的结构化分类结果
type Classification struct {
	Ticker            string     `json:"ticker"`
	CompanyName       string     `json:"company_name"`
	NewsType          StringList `json:"news_type"`
	Topics            StringList `json:"topics"`
	Region            string     `json:"region"`
	CorrelatedMarkets StringList `json:"correlated_markets"`
	MacroSensitive    FlexBool   `json:"macro_sensitive"`
	LikelyToInfluence FlexBool   `json:"likely_to_influence"`
	InfluenceReason   string     `json:"influence_reason"`
	Sentiment         string     `json:"sentiment"`
	SummaryText       string     `json:"summary_text"`
	RawText           string     `json:"raw_text"`

	// 以下字段由流水线在分析后补充
	Title       string    `json:"title,omitempty"`
	Link        string    `json:"link,omitempty"`
	PublishedAt time.Time `json:"published_at,omitzero"`
}

// StringList 兼容模型返回单个字符串或字符串数组两种形式
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	if strings.TrimSpace(string(data)) == "null" {
		*l = nil
		return nil
	}

	var list []any
	if err := json.Unmarshal(data, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, v := range list {
			if v == nil {
				continue
			}
			out = append(out, fmt.Sprint(v))
		}
		*l = out
		return nil
	}

	var single any
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*l = StringList{fmt.Sprint(single)}
	return nil
}

// FlexBool 兼容模型把布尔值写成字符串或数字，如 "true"、"да"、1。
// 无法识别的值按 false 处理。
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case bool:
		*b = FlexBool(x)
	case float64:
		*b = x != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "y", "1", "да":
			*b = true
		default:
			*b = false
		}
	default:
		*b = false
	}
	return nil
}

// ParseClassification 从模型回复中提取 JSON：优先取 ``` 代码块，
// 否则去掉所有反引号后整体解析。raw_text 缺失时回填原文。
func ParseClassification(reply, text string) (*Classification, error) {
	var jsonText string
	if m := fencedJSON.FindStringSubmatch(reply); m != nil {
		jsonText = m[1]
	} else {
		jsonText = strings.TrimSpace(strings.ReplaceAll(reply, "```", ""))
	}

	var c Classification
	if err := json.Unmarshal([]byte(jsonText), &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoJSON, err)
	}
	if c.RawText == "" {
		c.RawText = text
	}
	c.Ticker = strings.ToUpper(strings.TrimSpace(c.Ticker))
	return &c, nil
}
