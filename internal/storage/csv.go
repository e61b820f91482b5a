package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/LJTian/TickerPulse/internal/collector"
)

var csvHeader = []string{"source", "date", "title", "link", "text"}

// AppendCSV 把采集结果追加到 CSV 文件，(title, source) 已存在的跳过；返回新增条数
func AppendCSV(path string, records []collector.ArticleRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	seen, err := readCSVKeys(path)
	if err != nil {
		return 0, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if seen == nil {
		if err := w.Write(csvHeader); err != nil {
			return 0, err
		}
		seen = make(map[[2]string]struct{})
	}

	added := 0
	for _, r := range records {
		key := [2]string{r.Title, r.Source}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if err := w.Write([]string{r.Source, r.Date, r.Title, r.Link, r.Text}); err != nil {
			return added, err
		}
		added++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return added, err
	}
	return added, f.Close()
}

// readCSVKeys 读取已有文件中的 (title, source)；文件不存在或为空时返回 nil
func readCSVKeys(path string) (map[[2]string]struct{}, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header of %s: %w", path, err)
	}
	if len(header) != len(csvHeader) {
		return nil, fmt.Errorf("csv: %s has %d columns, want %d", path, len(header), len(csvHeader))
	}

	keys := make(map[[2]string]struct{})
	for {
		row, err := r.Read()
		if err == io.EOF {
			return keys, nil
		}
		if err != nil {
			return nil, fmt.Errorf("csv: read %s: %w", path, err)
		}
		keys[[2]string{row[2], row[0]}] = struct{}{}
	}
}
