package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/LJTian/TickerPulse/internal/collector"
	"github.com/LJTian/TickerPulse/internal/digest"
	"github.com/LJTian/TickerPulse/internal/storage"
)

const (
	// 列表类回复最多展示的条数
	maxListed = 10

	logTailLines = 20
	logTailBytes = 64 << 10
)

const (
	helpText = "/start - приветственное сообщение\n" +
		"/subscribe <TICKER> - подписаться на тикер\n" +
		"/unsubscribe <TICKER> - отписаться от тикера\n" +
		"/digest - получить новостной дайджест по подпискам\n" +
		"/rank - показать самые популярные тикеры\n" +
		"/news [hours|days|weeks N] - свежие новости за период\n" +
		"/ticker <TICKER> - свежие новости по тикеру из лент\n" +
		"/log - показать последние строки лога\n" +
		"/help - показать эту справку"
	startText = "Привет! Используйте /subscribe <TICKER>, чтобы подписаться на новости. " +
		"Доступные команды: /subscribe, /unsubscribe, /digest, /news, /ticker, /rank, /log, /help"
	waitText = "Собираю новости, пожалуйста подождите..."
)

type Messenger interface {
	GetUpdates(ctx context.Context, offset int64) ([]Update, error)
	SendMessage(ctx context.Context, chatID int64, text, parseMode string) error
}

// SubscriptionStore 由 storage.Store 实现
type SubscriptionStore interface {
	AddSubscription(ctx context.Context, userID int64, ticker string) ([]string, error)
	RemoveSubscription(ctx context.Context, userID int64, ticker string) error
	Rankings(ctx context.Context) ([]storage.Ranking, error)
}

type DigestBuilder interface {
	ForUser(ctx context.Context, userID int64) (string, error)
}

// NewsCollector 由 collector.Runner 实现
type NewsCollector interface {
	Recent(ctx context.Context, hours int) []collector.ArticleRecord
	ByTicker(ctx context.Context, ticker string) []collector.ArticleRecord
}

type Bot struct {
	api     Messenger
	store   SubscriptionStore
	digest  DigestBuilder
	news    NewsCollector
	logFile string
	retryIn time.Duration
}

// New store 为 nil 时订阅相关命令回复“数据库不可用”
func New(api Messenger, store SubscriptionStore, digests DigestBuilder, news NewsCollector) *Bot {
	return &Bot{
		api:     api,
		store:   store,
		digest:  digests,
		news:    news,
		retryIn: 3 * time.Second,
	}
}

// SetLogFile 指定 /log 命令读取的日志文件
func (b *Bot) SetLogFile(path string) {
	b.logFile = path
}

// Run 长轮询直到 ctx 结束；每条更新在独立 goroutine 中处理，退出前等待处理完成
func (b *Bot) Run(ctx context.Context) error {
	var (
		offset int64
		wg     sync.WaitGroup
	)
	defer wg.Wait()

	log.Println("bot: polling for updates...")
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		updates, err := b.api.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("bot: get updates error: %v", err)
			if !sleep(ctx, b.retryIn) {
				return nil
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if u.Message == nil || u.Message.Text == "" {
				continue
			}
			wg.Add(1)
			go func(m *Message) {
				defer wg.Done()
				b.Handle(ctx, m)
			}(u.Message)
		}
	}
}

// Handle 处理单条消息；panic 只影响当前消息
func (b *Bot) Handle(ctx context.Context, m *Message) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("bot: handle %q panic: %v\n%s", m.Text, r, debug.Stack())
		}
	}()

	cmd, args, ok := parseCommand(m.Text)
	if !ok {
		return
	}
	var userID int64
	if m.From != nil {
		userID = m.From.ID
	}

	switch cmd {
	case "start":
		b.reply(ctx, m.Chat.ID, startText, "")
	case "help":
		b.reply(ctx, m.Chat.ID, helpText, "")
	case "subscribe":
		b.subscribe(ctx, m.Chat.ID, userID, args)
	case "unsubscribe":
		b.unsubscribe(ctx, m.Chat.ID, userID, args)
	case "digest":
		b.sendDigest(ctx, m.Chat.ID, userID)
	case "rank":
		b.rank(ctx, m.Chat.ID)
	case "news":
		b.recentNews(ctx, m.Chat.ID, args)
	case "ticker":
		b.tickerNews(ctx, m.Chat.ID, args)
	case "log":
		b.showLog(ctx, m.Chat.ID)
	default:
		b.reply(ctx, m.Chat.ID, helpText, "")
	}
	log.Printf("bot: /%s used by %d", cmd, userID)
}

// parseCommand 解析 "/cmd@botname arg1 arg2"
func parseCommand(text string) (string, []string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	cmd := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	if cmd == "" {
		return "", nil, false
	}
	return strings.ToLower(cmd), fields[1:], true
}

func (b *Bot) subscribe(ctx context.Context, chatID, userID int64, args []string) {
	if len(args) == 0 {
		b.reply(ctx, chatID, "Использование: /subscribe <TICKER>", "")
		return
	}
	if b.store == nil {
		b.reply(ctx, chatID, digest.MsgNoDatabase, "")
		return
	}
	ticker := storage.NormalizeTicker(args[0])
	if _, err := b.store.AddSubscription(ctx, userID, ticker); err != nil {
		log.Printf("bot: subscribe %d to %s: %v", userID, ticker, err)
		b.reply(ctx, chatID, "Не удалось оформить подписку.", "")
		return
	}
	b.reply(ctx, chatID, "Вы подписались на "+ticker, "")
}

func (b *Bot) unsubscribe(ctx context.Context, chatID, userID int64, args []string) {
	if len(args) == 0 {
		b.reply(ctx, chatID, "Использование: /unsubscribe <TICKER>", "")
		return
	}
	if b.store == nil {
		b.reply(ctx, chatID, digest.MsgNoDatabase, "")
		return
	}
	ticker := storage.NormalizeTicker(args[0])
	if err := b.store.RemoveSubscription(ctx, userID, ticker); err != nil {
		log.Printf("bot: unsubscribe %d from %s: %v", userID, ticker, err)
		b.reply(ctx, chatID, "Не удалось отменить подписку.", "")
		return
	}
	b.reply(ctx, chatID, "Вы отписались от "+ticker, "")
}

func (b *Bot) sendDigest(ctx context.Context, chatID, userID int64) {
	b.reply(ctx, chatID, waitText, "")
	text, err := b.digest.ForUser(ctx, userID)
	if err != nil {
		log.Printf("bot: digest for %d: %v", userID, err)
		text = digest.MsgFetchFailed
	}
	b.reply(ctx, chatID, text, "Markdown")
}

func (b *Bot) rank(ctx context.Context, chatID int64) {
	if b.store == nil {
		b.reply(ctx, chatID, digest.MsgNoDatabase, "")
		return
	}
	list, err := b.store.Rankings(ctx)
	if err != nil {
		log.Printf("bot: rankings: %v", err)
		b.reply(ctx, chatID, digest.MsgNoDatabase, "")
		return
	}
	if len(list) == 0 {
		b.reply(ctx, chatID, "Подписок ещё нет.", "")
		return
	}
	lines := make([]string, 0, len(list))
	for i, r := range list {
		lines = append(lines, fmt.Sprintf("%d. %s - %d", i+1, r.Ticker, r.Count))
	}
	b.reply(ctx, chatID, strings.Join(lines, "\n"), "")
}

func (b *Bot) recentNews(ctx context.Context, chatID int64, args []string) {
	hours := digest.ParseHours(args)
	b.reply(ctx, chatID, waitText, "")
	b.replyArticles(ctx, chatID, b.news.Recent(ctx, hours))
}

func (b *Bot) tickerNews(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		b.reply(ctx, chatID, "Использование: /ticker <TICKER>", "")
		return
	}
	b.reply(ctx, chatID, waitText, "")
	b.replyArticles(ctx, chatID, b.news.ByTicker(ctx, args[0]))
}

func (b *Bot) replyArticles(ctx context.Context, chatID int64, articles []collector.ArticleRecord) {
	if len(articles) == 0 {
		b.reply(ctx, chatID, "Новостей нет.", "")
		return
	}
	if len(articles) > maxListed {
		articles = articles[:maxListed]
	}
	lines := make([]string, 0, len(articles))
	for _, a := range articles {
		lines = append(lines, fmt.Sprintf("*%s*\n%s", a.Title, a.Link))
	}
	b.reply(ctx, chatID, strings.Join(lines, "\n\n"), "Markdown")
}

// reply 发送失败只记日志
func (b *Bot) reply(ctx context.Context, chatID int64, text, parseMode string) {
	if err := b.api.SendMessage(ctx, chatID, text, parseMode); err != nil {
		log.Printf("bot: send to %d: %v", chatID, err)
	}
}

func (b *Bot) showLog(ctx context.Context, chatID int64) {
	if b.logFile == "" {
		b.reply(ctx, chatID, "Файл лога не найден.", "")
		return
	}
	lines, err := tailLines(b.logFile, logTailLines)
	switch {
	case errors.Is(err, os.ErrNotExist):
		b.reply(ctx, chatID, "Файл лога не найден.", "")
	case err != nil:
		log.Printf("bot: read log: %v", err)
		b.reply(ctx, chatID, "Файл лога не найден.", "")
	case len(lines) == 0:
		b.reply(ctx, chatID, "Лог пуст.", "")
	default:
		b.reply(ctx, chatID, strings.Join(lines, "\n"), "")
	}
}

// tailLines 返回文件最后 n 行；只读取末尾 logTailBytes 字节
func tailLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	offset := st.Size() - logTailBytes
	if offset < 0 {
		offset = 0
	}
	buf := make([]byte, st.Size()-offset)
	if _, err := f.ReadAt(buf, offset); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	text := strings.TrimRight(string(buf), "\n")
	if text == "" {
		return nil, nil
	}
	lines := strings.Split(text, "\n")
	// 从文件中间开始读时第一行可能不完整
	if offset > 0 && len(lines) > 1 {
		lines = lines[1:]
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
