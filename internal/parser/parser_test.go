package parser

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/NewsLens/internal/config"
	"github.com/IshaanNene/NewsLens/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const listingHTML = `<!DOCTYPE html>
<html>
<body>
    <div class="posts">
        <h6><a href="/2025/05/10/mines-output">Mines output rises</a></h6>
        <p style="color:black">May 10, 2025</p>
        <h6><a href="https://www.example.com/2025/05/09/budget#comments">Budget review</a></h6>
        <span>by staff</span>
        <p>May 9, 2025</p>
        <h6><a href="/2025/05/10/mines-output">Mines output rises</a></h6>
        <h6><a href="javascript:void(0)">Share</a></h6>
        <h6>No link here</h6>
    </div>
    <div class="pagination"><a class="next" href="?tag=business&page=2">Next</a></div>
</body>
</html>`

const articleHTML = `<!DOCTYPE html>
<html>
<body>
    <header><h1>  Tobacco farmers paid early  </h1></header>
    <div class="entry">
        <p>HARARE. Growers have been paid.</p>
        <p>Published on <strong>March 3, 2024</strong> by the desk.</p>
        <span class="post-date">April 1, 2024</span>
    </div>
</body>
</html>`

func makeResp(t *testing.T, rawURL, body string) *types.Response {
	t.Helper()
	req, err := types.NewRequest(rawURL)
	require.NoError(t, err)
	return &types.Response{
		Request:     req,
		StatusCode:  200,
		Body:        []byte(body),
		ContentType: "text/html",
		FinalURL:    rawURL,
	}
}

// --- Listing ---

func TestParseListing(t *testing.T) {
	p := NewHTMLParser(config.DefaultSelectors(), testLogger)
	listing, err := p.ParseListing(makeResp(t, "https://www.example.com/single-category/?tag=business", listingHTML))
	require.NoError(t, err)

	require.Len(t, listing.Entries, 2)
	assert.Equal(t, Entry{
		URL:      "https://www.example.com/2025/05/10/mines-output",
		Text:     "Mines output rises",
		DateHint: "May 10, 2025",
	}, listing.Entries[0])

	// The date hint is the first following paragraph, not the next element.
	assert.Equal(t, "https://www.example.com/2025/05/09/budget", listing.Entries[1].URL)
	assert.Equal(t, "May 9, 2025", listing.Entries[1].DateHint)

	assert.Equal(t, "https://www.example.com/single-category/?tag=business&page=2", listing.Next)
}

func TestParseListingNoEntries(t *testing.T) {
	p := NewHTMLParser(config.DefaultSelectors(), testLogger)
	listing, err := p.ParseListing(makeResp(t, "https://www.example.com/", "<html><body><p>empty</p></body></html>"))
	require.NoError(t, err)
	assert.Empty(t, listing.Entries)
	assert.Empty(t, listing.Next)
}

// --- Article ---

func TestParseArticle(t *testing.T) {
	p := NewHTMLParser(config.DefaultSelectors(), testLogger)
	page, err := p.ParseArticle(makeResp(t, "https://www.example.com/a", articleHTML))
	require.NoError(t, err)
	assert.Equal(t, "Tobacco farmers paid early", page.Title)
	assert.Equal(t, "2024-03-03", page.Date)
}

func TestParseArticleDateSelectorFallback(t *testing.T) {
	p := NewHTMLParser(config.DefaultSelectors(), testLogger)
	html := `<html><body><h1 class="entry-title">Title</h1><div class="meta-date">Posted April 1, 2024</div></body></html>`
	page, err := p.ParseArticle(makeResp(t, "https://www.example.com/b", html))
	require.NoError(t, err)
	assert.Equal(t, "Title", page.Title)
	assert.Equal(t, "2024-04-01", page.Date)
}

func TestParseArticleTitleChain(t *testing.T) {
	p := NewHTMLParser(config.DefaultSelectors(), testLogger)
	html := `<html><body><h1>   </h1><div class="post-title">Fallback title</div></body></html>`
	page, err := p.ParseArticle(makeResp(t, "https://www.example.com/c", html))
	require.NoError(t, err)
	assert.Equal(t, "Fallback title", page.Title)
	assert.Empty(t, page.Date)
}

// --- Dates ---

func TestFindDate(t *testing.T) {
	d, ok := FindDate(`<p style="color:black">May 10, 2025</p>`)
	assert.True(t, ok)
	assert.Equal(t, "2025-05-10", d)

	_, ok = FindDate("Mayday 10, 2025")
	assert.False(t, ok)
}
