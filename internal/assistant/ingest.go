package assistant

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

var urlRe = regexp.MustCompile(`https?://\S+`)

// URLIngester pulls the readable body of a link mentioned in a message so
// the model can answer about it. Failures degrade to an empty excerpt; a
// dead link never fails the turn.
type URLIngester struct {
	Client   *http.Client
	MaxChars int
	Logger   *log.Logger
}

func NewURLIngester(timeout time.Duration, maxChars int, logger *log.Logger) *URLIngester {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxChars <= 0 {
		maxChars = 2000
	}
	return &URLIngester{
		Client:   &http.Client{Timeout: timeout},
		MaxChars: maxChars,
		Logger:   logger,
	}
}

// ArticleFromMessage extracts the first URL in the message, if any, and
// returns a truncated plain-text excerpt of the page.
func (u *URLIngester) ArticleFromMessage(ctx context.Context, message string) string {
	link := urlRe.FindString(message)
	if link == "" {
		return ""
	}
	link = strings.TrimRight(link, ".,;)")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return ""
	}
	resp, err := u.Client.Do(req)
	if err != nil {
		u.Logger.Printf("fetch %s: %v", link, err)
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		u.Logger.Printf("fetch %s: status %d", link, resp.StatusCode)
		return ""
	}

	parsed, err := url.Parse(link)
	if err != nil {
		parsed = &url.URL{}
	}
	article, err := readability.FromReader(io.LimitReader(resp.Body, 2<<20), parsed)
	if err != nil {
		u.Logger.Printf("readability %s: %v", link, err)
		return ""
	}
	text := strings.TrimSpace(article.TextContent)
	if len(text) > u.MaxChars {
		text = text[:u.MaxChars]
	}
	if title := strings.TrimSpace(article.Title); title != "" && text != "" {
		return title + "\n" + text
	}
	return text
}
