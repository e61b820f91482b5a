package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseClassificationFencedBlock(t *testing.T) {
	reply := "Вот результат:\n```json\n{\"ticker\": \"sber\", \"news_type\": [\"corporate\"], \"topics\": \"dividends\", " +
		"\"likely_to_influence\": true, \"sentiment\": \"positive\", \"summary_text\": \"Сбер повысил дивиденды\"}\n```\nГотово."

	got, err := ParseClassification(reply, "original text")
	if err != nil {
		t.Fatalf("ParseClassification error: %v", err)
	}
	want := &Classification{
		Ticker:            "SBER",
		NewsType:          StringList{"corporate"},
		Topics:            StringList{"dividends"},
		LikelyToInfluence: true,
		Sentiment:         "positive",
		SummaryText:       "Сбер повысил дивиденды",
		RawText:           "original text",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ParseClassification mismatch (-want +got):\n%s", diff)
	}
}

func TestParseClassificationWithoutFence(t *testing.T) {
	reply := "``` {\"ticker\": \"GAZP\", \"raw_text\": \"model text\", \"correlated_markets\": null} "
	got, err := ParseClassification(reply, "input")
	if err != nil {
		t.Fatalf("ParseClassification error: %v", err)
	}
	if got.Ticker != "GAZP" || got.RawText != "model text" || got.CorrelatedMarkets != nil {
		t.Fatalf("unexpected classification: %+v", got)
	}
}

func TestParseClassificationInvalid(t *testing.T) {
	_, err := ParseClassification("I cannot answer that.", "input")
	if !errors.Is(err, ErrNoJSON) {
		t.Fatalf("err = %v, want ErrNoJSON", err)
	}
}

func TestStringListAcceptsMixedValues(t *testing.T) {
	got, err := ParseClassification(`{"topics": ["rates", 5, null]}`, "x")
	if err != nil {
		t.Fatalf("ParseClassification error: %v", err)
	}
	if diff := cmp.Diff(StringList{"rates", "5"}, got.Topics); diff != "" {
		t.Fatalf("Topics mismatch (-want +got):\n%s", diff)
	}
}

func TestFlexBoolAcceptsStringsAndNumbers(t *testing.T) {
	cases := []struct {
		reply string
		macro bool
		infl  bool
	}{
		{`{"macro_sensitive": true, "likely_to_influence": false}`, true, false},
		{`{"macro_sensitive": "true", "likely_to_influence": "false"}`, true, false},
		{`{"macro_sensitive": "Да", "likely_to_influence": "нет"}`, true, false},
		{`{"macro_sensitive": 1, "likely_to_influence": 0}`, true, false},
		{`{"macro_sensitive": null, "likely_to_influence": "yes"}`, false, true},
		{`{"macro_sensitive": "maybe"}`, false, false},
	}
	for _, c := range cases {
		got, err := ParseClassification(c.reply, "x")
		if err != nil {
			t.Fatalf("ParseClassification(%s) error: %v", c.reply, err)
		}
		if bool(got.MacroSensitive) != c.macro || bool(got.LikelyToInfluence) != c.infl {
			t.Errorf("ParseClassification(%s) = macro %v, influence %v", c.reply, got.MacroSensitive, got.LikelyToInfluence)
		}
	}
}

func TestAnalyzeWithoutToken(t *testing.T) {
	a, err := NewAnalyzer(context.Background(), "", "")
	if err != nil {
		t.Fatalf("NewAnalyzer error: %v", err)
	}
	if a.Enabled() {
		t.Fatalf("analyzer without token should be disabled")
	}
	if _, err := a.Analyze(context.Background(), "text"); !errors.Is(err, ErrNoToken) {
		t.Fatalf("err = %v, want ErrNoToken", err)
	}
}

func TestAnalyzeSendsPromptWithNews(t *testing.T) {
	var sent string
	a := &Analyzer{generate: func(_ context.Context, prompt string) (string, error) {
		sent = prompt
		return "```json\n{\"ticker\": \"lkoh\"}\n```", nil
	}}

	got, err := a.Analyze(context.Background(), "Лукойл отчитался")
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}
	if got.Ticker != "LKOH" || got.RawText != "Лукойл отчитался" {
		t.Fatalf("unexpected result: %+v", got)
	}
	if !strings.HasSuffix(sent, "НОВОСТЬ:\n\nЛукойл отчитался") {
		t.Fatalf("prompt should end with the news text, got %q", sent[len(sent)-40:])
	}

	a.generate = func(context.Context, string) (string, error) { return "", errors.New("quota") }
	if _, err := a.Analyze(context.Background(), "x"); err == nil {
		t.Fatalf("expected error from model failure")
	}
}
