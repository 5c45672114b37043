package pipeline

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/IshaanNene/NewsLens/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func article(title, url, date string) *types.Article {
	a := types.NewArticle(url)
	a.Title = title
	a.Newspaper = "The Herald"
	a.Category = "Business"
	a.Date = date
	return a
}

func TestPipelineBasic(t *testing.T) {
	p := New(testLogger)
	p.Use(&TrimMiddleware{})

	a := article("  Hello World  ", " https://example.com/a ", "")
	a.Category = " Sports\n"

	result, err := p.Process(a)
	if err != nil {
		t.Fatalf("pipeline error: %v", err)
	}
	if result.Title != "Hello World" {
		t.Errorf("expected trimmed title, got %q", result.Title)
	}
	if result.URL != "https://example.com/a" {
		t.Errorf("expected trimmed url, got %q", result.URL)
	}
	if result.Category != "Sports" {
		t.Errorf("expected trimmed category, got %q", result.Category)
	}
}

func TestRequiredFieldsMiddleware(t *testing.T) {
	m := &RequiredFieldsMiddleware{Fields: []string{types.ColTitle, types.ColURL}}

	result, err := m.Process(article("Hello", "https://example.com/a", ""))
	if err != nil || result == nil {
		t.Fatalf("expected article to pass, got %v, %v", result, err)
	}

	result, _ = m.Process(article("   ", "https://example.com/a", ""))
	if result != nil {
		t.Error("expected article with blank title to be dropped")
	}

	result, _ = m.Process(article("Hello", "", ""))
	if result != nil {
		t.Error("expected article without url to be dropped")
	}
}

func TestHTMLSanitizeMiddleware(t *testing.T) {
	m := NewHTMLSanitizeMiddleware()

	a := article("<b>Mines</b> &amp;   Energy", "https://example.com/a", `<p style="color:black">May 10, 2025</p>`)
	result, _ := m.Process(a)
	if result.Title != "Mines & Energy" {
		t.Errorf("unexpected title %q", result.Title)
	}
	if result.Date != "May 10, 2025" {
		t.Errorf("unexpected date %q", result.Date)
	}
	if result.URL != "https://example.com/a" {
		t.Errorf("url must not be touched, got %q", result.URL)
	}
}

func TestDateNormalizeMiddleware(t *testing.T) {
	m := NewDateNormalizeMiddleware()

	tests := []struct {
		in   string
		want string
	}{
		{"2024-01-01", "2024-01-01"},
		{"January 5, 2024", "2024-01-05"},
		{"Jan 5, 2024", "2024-01-05"},
		{"5 January 2024", "2024-01-05"},
		{"2024-01-05T10:00:00Z", "2024-01-05"},
		{"Mon, 05 Feb 2024 08:00:00 +0200", "2024-02-05"},
		{"Updated: February 29, 2024 10:00", "2024-02-29"},
		{"", ""},
		{"yesterday", ""},
	}
	for _, tt := range tests {
		result, _ := m.Process(article("t", "https://example.com/a", tt.in))
		if result.Date != tt.want {
			t.Errorf("normalize(%q) = %q, want %q", tt.in, result.Date, tt.want)
		}
	}
}

func TestDedupMiddleware(t *testing.T) {
	m := NewDedupMiddleware()

	r1, _ := m.Process(article("a", "https://Example.com/story/?b=2&a=1#top", ""))
	if r1 == nil {
		t.Fatal("first article should pass")
	}

	r2, _ := m.Process(article("a again", "https://example.com/story?a=1&b=2", ""))
	if r2 != nil {
		t.Error("canonically equal url should be dropped")
	}

	r3, _ := m.Process(article("b", "https://example.com/other", ""))
	if r3 == nil {
		t.Error("different url should pass")
	}
}

func TestDefaultPipelineReportsDrops(t *testing.T) {
	p := NewDefault(testLogger)
	if p.Len() != 5 {
		t.Fatalf("expected 5 middlewares, got %d", p.Len())
	}

	drops := map[string]int{}
	p.OnDrop(func(stage string, _ *types.Article) { drops[stage]++ })

	in := []*types.Article{
		article(" <i>Budget</i> ", "https://example.com/budget", "March 3, 2024"),
		article("Budget", "https://example.com/budget/", "2024-03-03"),
		article("", "https://example.com/empty", ""),
	}
	var out []*types.Article
	for _, a := range in {
		r, err := p.Process(a)
		if err != nil {
			t.Fatalf("pipeline error: %v", err)
		}
		if r != nil {
			out = append(out, r)
		}
	}

	if len(out) != 1 {
		t.Fatalf("expected 1 article, got %d", len(out))
	}
	if out[0].Title != "Budget" || out[0].Date != "2024-03-03" {
		t.Errorf("unexpected article %+v", out[0])
	}
	if drops["dedup"] != 1 || drops["required_fields"] != 1 {
		t.Errorf("unexpected drops %v", drops)
	}
}

type failingMiddleware struct{}

func (failingMiddleware) Name() string { return "failing" }

func (failingMiddleware) Process(*types.Article) (*types.Article, error) {
	return nil, errors.New("boom")
}

func TestPipelineError(t *testing.T) {
	p := New(testLogger)
	p.Use(failingMiddleware{})

	_, err := p.Process(article("t", "https://example.com/a", ""))
	var pe *types.PipelineError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PipelineError, got %v", err)
	}
	if pe.Stage != "failing" {
		t.Errorf("expected stage failing, got %q", pe.Stage)
	}
}

func TestCanonicalizeURL(t *testing.T) {
	tests := map[string]string{
		"HTTPS://Example.COM:443/a/":   "https://example.com/a",
		"http://example.com:80":        "http://example.com/",
		"https://example.com/?b=1&a=2": "https://example.com/?a=2&b=1",
	}
	for in, want := range tests {
		if got := CanonicalizeURL(in); got != want {
			t.Errorf("CanonicalizeURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func BenchmarkPipeline(b *testing.B) {
	p := NewDefault(testLogger)
	for b.Loop() {
		p.Process(article("  <b>Title</b> ", "https://example.com/a", "May 10, 2025"))
	}
}
