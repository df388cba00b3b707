package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/m3rciful/memebot/core/config"
	"github.com/m3rciful/memebot/core/logger"
)

const (
	memeSearchPath     = "/search"
	templateSearchPath = "/memesearch"
	captionPath        = "/caption_image"
)

var templateHref = regexp.MustCompile(`/meme(?:template)?/(\d+)`)

// Template is a captionable imgflip template.
type Template struct {
	ID       string
	ImageURL string
}

// Imgflip scrapes imgflip search pages and calls its caption API.
type Imgflip struct {
	baseURL    string
	apiURL     string
	username   string
	password   string
	maxResults int
	http       *http.Client
}

// NewImgflip builds an imgflip adapter.
func NewImgflip(cfg config.ImgflipConfig, client *http.Client) *Imgflip {
	if client == nil {
		client = http.DefaultClient
	}
	return &Imgflip{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		maxResults: cfg.MaxResults,
		http:       client,
	}
}

// SearchMemes returns absolute image URLs of existing memes matching term.
func (p *Imgflip) SearchMemes(ctx context.Context, term string) ([]string, error) {
	doc, err := p.fetchDocument(ctx, "imgflip.search_memes", memeSearchPath, term)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var urls []string
	doc.Find("img.base-img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src := imageSource(img)
		if src == "" {
			return true
		}
		abs := ResolveURL(p.baseURL, src)
		if _, dup := seen[abs]; dup {
			return true
		}
		seen[abs] = struct{}{}
		urls = append(urls, abs)
		return p.maxResults <= 0 || len(urls) < p.maxResults
	})

	logger.Debug(ctx, logger.CompProvider, "imgflip.search_memes",
		slog.String("term", term),
		slog.Int("count", len(urls)),
	)
	if len(urls) == 0 {
		return nil, ErrNoResults
	}
	return urls, nil
}

// SearchTemplates returns templates matching term. Entries without a numeric
// id cannot be captioned and are skipped.
func (p *Imgflip) SearchTemplates(ctx context.Context, term string) ([]Template, error) {
	doc, err := p.fetchDocument(ctx, "imgflip.search_templates", templateSearchPath, term)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []Template
	doc.Find(`a[href*="/meme"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		m := templateHref.FindStringSubmatch(href)
		if m == nil {
			return true
		}
		img := a.Find("img").First()
		if img.Length() == 0 {
			return true
		}
		src := imageSource(img)
		if src == "" {
			return true
		}
		if _, dup := seen[m[1]]; dup {
			return true
		}
		seen[m[1]] = struct{}{}
		out = append(out, Template{ID: m[1], ImageURL: ResolveURL(p.baseURL, src)})
		return p.maxResults <= 0 || len(out) < p.maxResults
	})

	logger.Debug(ctx, logger.CompProvider, "imgflip.search_templates",
		slog.String("term", term),
		slog.Int("count", len(out)),
	)
	if len(out) == 0 {
		return nil, ErrNoResults
	}
	return out, nil
}

type captionResponse struct {
	Success bool `json:"success"`
	Data    struct {
		URL     string `json:"url"`
		PageURL string `json:"page_url"`
	} `json:"data"`
	ErrorMessage string `json:"error_message"`
}

// Caption renders top and bottom text onto a template and returns the image URL.
func (p *Imgflip) Caption(ctx context.Context, templateID, top, bottom string) (string, error) {
	const op = "imgflip.caption"
	form := url.Values{
		"template_id": {templateID},
		"username":    {p.username},
		"password":    {p.password},
		"text0":       {top},
		"text1":       {bottom},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+captionPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", unavailable(op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", statusError(op, resp)
	}

	var out captionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", unavailable(op, err)
	}
	if !out.Success || out.Data.URL == "" {
		return "", fmt.Errorf("%s: %w: %s", op, ErrUnavailable, out.ErrorMessage)
	}
	return out.Data.URL, nil
}

func (p *Imgflip) fetchDocument(ctx context.Context, op, path, term string) (*goquery.Document, error) {
	u := p.baseURL + path + "?" + url.Values{"q": {term}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoResults
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(op, resp)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, unavailable(op, err)
	}
	return doc, nil
}

// imageSource prefers the lazy-load attribute imgflip uses below the fold.
func imageSource(img *goquery.Selection) string {
	if src, ok := img.Attr("data-src"); ok && strings.TrimSpace(src) != "" {
		return strings.TrimSpace(src)
	}
	src, _ := img.Attr("src")
	return strings.TrimSpace(src)
}
