package config

import (
	"fmt"
	"io"
	"log"
	"os"
)

// SetupLogging 让标准 log 同时输出到 stdout 和 path（追加写）。
// 返回的函数恢复输出并关闭文件；path 为空时什么也不做。
func SetupLogging(path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("config: open log file: %w", err)
	}

	prev := log.Writer()
	log.SetOutput(io.MultiWriter(os.Stdout, f))
	return func() {
		log.SetOutput(prev)
		_ = f.Close()
	}, nil
}
