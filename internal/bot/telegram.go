package bot

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	// Telegram 单条消息的最大长度（按字符计）
	maxMessageRunes = 4096
	sendRetryLimit  = 5
	pollTimeoutSecs = 30
)

// Update / Message 只保留机器人用到的字段，与具体 SDK 解耦
type Update struct {
	UpdateID int64
	Message  *Message
}

type Message struct {
	MessageID int64
	From      *User
	Chat      Chat
	Text      string
}

type User struct {
	ID       int64
	Username string
}

type Chat struct {
	ID int64
}

// Client 基于 telegram-bot-api 的 Messenger 实现
type Client struct {
	api      *tgbotapi.BotAPI
	scrubber *strings.Replacer
	sleep    func(context.Context, time.Duration) bool
}

// NewClient endpoint 为空时使用官方地址，格式同 tgbotapi.APIEndpoint。
// 创建时会调用 getMe 校验 token。
func NewClient(token, endpoint string) (*Client, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	scrubber := strings.NewReplacer(token, "[EXPUNGED]")

	// 长轮询本身会阻塞 pollTimeoutSecs，超时要留出余量
	httpc := &http.Client{Timeout: (pollTimeoutSecs + 10) * time.Second}
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, httpc)
	if err != nil {
		// 错误信息里可能带有含 token 的 URL
		return nil, errors.New("telegram: " + scrubber.Replace(err.Error()))
	}
	log.Printf("bot: authorized as @%s", api.Self.UserName)

	return &Client{api: api, scrubber: scrubber, sleep: sleep}, nil
}

// GetUpdates 长轮询获取 offset 之后的更新；ctx 结束时立即返回，不等轮询结束
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	cfg := tgbotapi.NewUpdate(int(offset))
	cfg.Timeout = pollTimeoutSecs
	cfg.AllowedUpdates = []string{"message"}

	type result struct {
		updates []tgbotapi.Update
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		u, err := c.api.GetUpdates(cfg)
		ch <- result{u, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, c.scrub(r.err)
		}
		out := make([]Update, 0, len(r.updates))
		for _, u := range r.updates {
			out = append(out, Update{UpdateID: int64(u.UpdateID), Message: fromAPIMessage(u.Message)})
		}
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func fromAPIMessage(m *tgbotapi.Message) *Message {
	if m == nil {
		return nil
	}
	out := &Message{MessageID: int64(m.MessageID), Text: m.Text}
	if m.Chat != nil {
		out.Chat = Chat{ID: m.Chat.ID}
	}
	if m.From != nil {
		out.From = &User{ID: m.From.ID, Username: m.From.UserName}
	}
	return out
}

// SendMessage 发送消息，超长自动分段。某一段的 Markdown 无法解析时只把这一段改为纯文本重发，
// 已发出的段不会重复。
func (c *Client) SendMessage(ctx context.Context, chatID int64, text, parseMode string) error {
	for _, chunk := range splitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ParseMode = parseMode
		msg.DisableWebPagePreview = true

		err := c.send(ctx, msg)
		if code, _, ok := apiError(err); ok && code == http.StatusBadRequest && parseMode != "" {
			log.Printf("bot: markdown rejected, resending chunk as plain text: %v", err)
			msg.ParseMode = ""
			err = c.send(ctx, msg)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// send 被限流时按 retry_after 重试
func (c *Client) send(ctx context.Context, msg tgbotapi.MessageConfig) error {
	var err error
	for range sendRetryLimit {
		if _, err = c.api.Send(msg); err == nil {
			return nil
		}
		code, retryAfter, ok := apiError(err)
		if !ok || code != http.StatusTooManyRequests {
			break
		}
		if !c.sleep(ctx, time.Duration(retryAfter)*time.Second) {
			return ctx.Err()
		}
	}
	return c.scrub(err)
}

// apiError 取出 Bot API 返回的错误码与 retry_after
func apiError(err error) (code, retryAfter int, ok bool) {
	var ptr *tgbotapi.Error
	if errors.As(err, &ptr) {
		return ptr.Code, ptr.RetryAfter, true
	}
	return 0, 0, false
}

// scrub API 错误原样返回，网络错误去掉其中的 token
func (c *Client) scrub(err error) error {
	if err == nil {
		return nil
	}
	if _, _, ok := apiError(err); ok {
		return err
	}
	return errors.New(c.scrubber.Replace(err.Error()))
}

// splitMessage 按 4096 字符切分，优先在换行处断开，其次在空白处
func splitMessage(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	for text != "" {
		if utf8.RuneCountInString(text) <= maxMessageRunes {
			chunks = append(chunks, text)
			break
		}

		var (
			lastNewline    = -1
			lastWhitespace = -1
			byteCap        = len(text)
			runeCount      int
		)
		for i, r := range text {
			if runeCount == maxMessageRunes {
				byteCap = i
				break
			}
			runeCount++
			if r == '\n' {
				lastNewline = i
				continue
			}
			if unicode.IsSpace(r) {
				lastWhitespace = i
			}
		}

		splitAt := byteCap
		switch {
		case lastNewline > 0:
			splitAt = lastNewline
		case lastWhitespace > 0:
			splitAt = lastWhitespace
		}

		if chunk := strings.TrimSpace(text[:splitAt]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		text = strings.TrimSpace(text[splitAt:])
	}
	return chunks
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
