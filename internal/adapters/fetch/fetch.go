// Package fetch retrieves a product page and reduces it to readable text for
// profile extraction.
package fetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

var (
	ErrInvalidURL = errors.New("fetch: invalid url")
	ErrNotHTML    = errors.New("fetch: non-html content")
)

const (
	DefaultTimeout = 15 * time.Second
	DefaultSizeCap = 2 << 20
	userAgent      = "beacon-profiler/1.0"
)

type Fetcher struct {
	client  *http.Client
	sizeCap int64
}

func New(timeout time.Duration, sizeCap int64) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if sizeCap <= 0 {
		sizeCap = DefaultSizeCap
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &Fetcher{
		client:  &http.Client{Transport: transport, Timeout: timeout},
		sizeCap: sizeCap,
	}
}

// Fetch downloads rawURL and returns its title, description, headings and
// body text. Scripts, styles and navigation chrome are dropped.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", ErrInvalidURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch %s: http status %d", u.Host, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if mediaType, _, _ := mime.ParseMediaType(contentType); mediaType != "" &&
		!strings.Contains(mediaType, "text/html") && !strings.Contains(mediaType, "application/xhtml+xml") {
		return "", ErrNotHTML
	}

	var body io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", err
		}
		defer gz.Close()
		body = gz
	}
	data, err := io.ReadAll(io.LimitReader(body, f.sizeCap))
	if err != nil {
		return "", err
	}
	return Extract(data, contentType)
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Extract decodes an HTML document to UTF-8 and renders its readable text.
func Extract(data []byte, contentType string) (string, error) {
	enc, _, _ := charset.DetermineEncoding(data, contentType)
	utf8data, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		if !utf8.Valid(data) {
			return "", err
		}
		utf8data = data
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(utf8data))
	if err != nil {
		return "", err
	}
	doc.Find("script,noscript,style,nav,footer,svg").Remove()

	var b strings.Builder
	line := func(label, v string) {
		v = collapse(v)
		if v != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, v)
		}
	}
	line("Title", doc.Find("title").First().Text())
	desc := doc.Find(`meta[name="description"]`).AttrOr("content", "")
	if strings.TrimSpace(desc) == "" {
		desc = doc.Find(`meta[property="og:description"]`).AttrOr("content", "")
	}
	line("Description", desc)

	var headings []string
	doc.Find("h1,h2,h3").Each(func(_ int, s *goquery.Selection) {
		if t := collapse(s.Text()); t != "" {
			headings = append(headings, t)
		}
	})
	line("Headings", strings.Join(headings, " | "))

	var parts []string
	doc.Find("p,li").Each(func(_ int, s *goquery.Selection) {
		if t := collapse(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(parts, " "))
	}
	return strings.TrimSpace(b.String()), nil
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
