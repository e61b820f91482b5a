package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/LJTian/TickerPulse/internal/collector"
	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/joho/godotenv"
)

const (
	defaultMaxChars = 2000
	maxMaxChars     = 8000
	renderTimeout   = 20 * time.Second
)

type extractRequest struct {
	URL      string `json:"url"`
	MaxChars int    `json:"maxChars"`
}

type extractResponse struct {
	OK    bool   `json:"ok"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// renderFunc 返回页面渲染完成后的 HTML
type renderFunc func(ctx context.Context, url string) (string, error)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

// run 返回时关闭浏览器进程
func run() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("extractor: load .env: %v", err)
	}

	// 创建浏览器执行器与顶层上下文，整个进程复用一个 headless 实例
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	// 预热浏览器，避免首个请求耗时过长
	if err := chromedp.Run(browserCtx); err != nil {
		log.Printf("warn: warmup chromedp failed: %v", err)
	}

	render := func(ctx context.Context, url string) (string, error) {
		// 每个请求一个新标签页，复用同一个浏览器
		tabCtx, cancelTab := chromedp.NewContext(browserCtx)
		defer cancelTab()
		tabCtx, cancel := context.WithTimeout(tabCtx, renderTimeout)
		defer cancel()
		// 调用方断开时一并取消
		stop := context.AfterFunc(ctx, cancel)
		defer stop()

		var html string
		err := chromedp.Run(tabCtx,
			chromedp.Navigate(url),
			chromedp.WaitReady("body", chromedp.ByQuery),
			chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		)
		return html, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/extract", extractHandler(render))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	addr := ":" + getEnv("EXTRACTOR_PORT", "4000")
	log.Printf("extractor listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

func extractHandler(render renderFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req extractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, extractResponse{OK: false, Error: "invalid json"})
			return
		}
		if req.URL == "" {
			writeJSON(w, http.StatusBadRequest, extractResponse{OK: false, Error: "url is required"})
			return
		}
		if req.MaxChars <= 0 || req.MaxChars > maxMaxChars {
			req.MaxChars = defaultMaxChars
		}

		html, err := render(r.Context(), req.URL)
		if err != nil {
			log.Printf("extract error: %v (url=%s)", err, req.URL)
			writeJSON(w, http.StatusOK, extractResponse{OK: false, Error: err.Error()})
			return
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			writeJSON(w, http.StatusOK, extractResponse{OK: false, Error: err.Error()})
			return
		}
		text := trimWhitespace(collector.ExtractText(doc))
		if text == "" {
			writeJSON(w, http.StatusOK, extractResponse{OK: false, Error: "empty content"})
			return
		}

		// rune 级截断，避免多字节字符被截断
		rs := []rune(text)
		if len(rs) > req.MaxChars {
			text = string(rs[:req.MaxChars]) + "…"
		}

		writeJSON(w, http.StatusOK, extractResponse{OK: true, Text: text})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// trimWhitespace 统一换行并压缩连续空行
func trimWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(s)
}
