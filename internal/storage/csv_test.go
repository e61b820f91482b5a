package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/LJTian/TickerPulse/internal/collector"
	"github.com/google/go-cmp/cmp"
)

func TestAppendCSVSkipsKnownTitles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.csv")

	n, err := AppendCSV(path, []collector.ArticleRecord{
		{Source: "РБК", Title: "Сбер, дивиденды", Link: "l1", Date: "2024-05-15 10:00", Text: "a \"quoted\" body"},
		{Source: "РБК", Title: "Газпром", Link: "l2"},
	})
	if err != nil || n != 2 {
		t.Fatalf("first append = %d, %v", n, err)
	}

	n, err = AppendCSV(path, []collector.ArticleRecord{
		{Source: "РБК", Title: "Газпром", Link: "l2-again"},
		{Source: "ТАСС", Title: "Газпром", Link: "l3"},
	})
	if err != nil || n != 1 {
		t.Fatalf("second append = %d, %v", n, err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	want := [][]string{
		csvHeader,
		{"РБК", "2024-05-15 10:00", "Сбер, дивиденды", "l1", "a \"quoted\" body"},
		{"РБК", "", "Газпром", "l2", ""},
		{"ТАСС", "", "Газпром", "l3", ""},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("csv mismatch (-want +got):\n%s", diff)
	}
}

func TestAppendCSVRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.csv")
	if err := os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := AppendCSV(path, []collector.ArticleRecord{{Title: "x"}}); err == nil {
		t.Fatalf("expected error for csv with a different layout")
	}
}
