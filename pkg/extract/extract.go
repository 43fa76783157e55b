// Package extract turns local text files and web pages into plain-text
// documents ready for segmentation. HTML headings are rendered as
// markdown-style heading lines so downstream section splitting can see
// them.
package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/xhad/askdocs/internal/models"
)

type Config struct {
	Timeout   time.Duration
	RateLimit float64 // requests per second for URL fetches
	UserAgent string
}

type Extractor struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
}

func NewWithConfig(config Config) *Extractor {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if config.UserAgent == "" {
		config.UserAgent = "askdocs/1.0"
	}

	return &Extractor{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

// File reads a local .txt, .md, or .html document.
func (e *Extractor) File(path string) (*models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %v", path, err)
	}

	filename := filepath.Base(path)
	fileType := fileTypeFor(path)

	content := string(data)
	title := strings.TrimSuffix(filename, filepath.Ext(filename))

	if fileType == "html" {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %v", path, err)
		}
		if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
			title = t
		}
		content = extractMainContent(doc)
	}

	return &models.Document{
		ID:       uuid.NewString(),
		Source:   path,
		Filename: filename,
		Title:    title,
		FileType: fileType,
		Content:  content,
	}, nil
}

// URL fetches a web page and extracts its main content.
func (e *Extractor) URL(ctx context.Context, rawURL string) (*models.Document, error) {
	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %v", rawURL, err)
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", e.config.UserAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %v", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: status %d", rawURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %v", rawURL, err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	filename := filepath.Base(parsed.Path)
	if filename == "" || filename == "/" || filename == "." {
		filename = parsed.Host
	}

	return &models.Document{
		ID:       uuid.NewString(),
		Source:   rawURL,
		Filename: filename,
		Title:    title,
		FileType: "url",
		Content:  extractMainContent(doc),
	}, nil
}

func fileTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return "markdown"
	case ".html", ".htm":
		return "html"
	default:
		return "txt"
	}
}

var contentSelectors = []string{
	"main",
	"article",
	".content",
	".documentation",
	"#content",
	".main-content",
}

func extractMainContent(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer").Remove()

	for _, selector := range contentSelectors {
		if sel := doc.Find(selector); sel.Length() > 0 {
			if text := blockText(sel.First()); text != "" {
				return text
			}
		}
	}
	return blockText(doc.Find("body"))
}

// blockText flattens block elements to lines, keeping headings as
// markdown heading lines and separating paragraphs with blank lines.
func blockText(sel *goquery.Selection) string {
	var sb strings.Builder

	sel.Find("h1, h2, h3, h4, h5, h6, p, li, pre, td").Each(func(_ int, el *goquery.Selection) {
		text := strings.Join(strings.Fields(el.Text()), " ")
		if text == "" {
			return
		}
		if strings.HasPrefix(goquery.NodeName(el), "h") {
			fmt.Fprintf(&sb, "# %s\n\n", text)
		} else {
			sb.WriteString(text)
			sb.WriteString("\n\n")
		}
	})

	if sb.Len() == 0 {
		return strings.TrimSpace(strings.Join(strings.Fields(sel.Text()), " "))
	}
	return strings.TrimSpace(sb.String())
}
