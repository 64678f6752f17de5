// Package naver provides a client for the Naver Finance news list pages and
// article bodies. List pages are served EUC-KR encoded; the client decodes
// them before parsing.
package naver

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// SectionNames maps the finance news section_id3 codes to their labels.
var SectionNames = map[string]string{
	"401": "시황",
	"402": "기업",
	"403": "해외",
	"404": "채권",
	"406": "공시",
	"429": "환율",
}

// Article is one news item from a section list page. Contents stays empty
// until the body is fetched separately.
type Article struct {
	Section     string `json:"section_id3"`
	SectionName string `json:"section_name"`
	OfficeID    string `json:"office_id"`
	ArticleID   string `json:"article_id"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Press       string `json:"press"`
	Date        string `json:"wdate"`
	Contents    string `json:"contents,omitempty"`
}

// ListPage is one parsed section list page.
type ListPage struct {
	Articles []Article
	// MaxPage is the highest page number linked from this page's paginator.
	MaxPage int
}

// Client defines the Naver Finance news operations.
type Client interface {
	// List fetches one page of a section's article list for a YYYYMMDD date.
	List(ctx context.Context, date, section string, page int) (*ListPage, error)
	// Body fetches an article page and returns its plain body text.
	Body(ctx context.Context, articleURL string) (string, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Naver Finance news client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://finance.naver.com",
		http: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List fetches and parses one section list page.
func (c *httpClient) List(ctx context.Context, date, section string, page int) (*ListPage, error) {
	q := url.Values{}
	q.Set("mode", "LSS3D")
	q.Set("section_id", "101")
	q.Set("section_id2", "258")
	q.Set("section_id3", section)
	q.Set("date", date)
	q.Set("page", strconv.Itoa(page))
	listURL := c.baseURL + "/news/news_list.naver?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "naver: create list request")
	}
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "naver: list section %s page %d", section, page)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("naver: unexpected status %d from %s", resp.StatusCode, listURL)
	}

	// List pages come back EUC-KR regardless of Accept headers.
	decoded := transform.NewReader(resp.Body, korean.EUCKR.NewDecoder())
	doc, err := goquery.NewDocumentFromReader(decoded)
	if err != nil {
		return nil, eris.Wrapf(err, "naver: parse list page %s", listURL)
	}

	lp := &ListPage{MaxPage: maxPage(doc)}
	doc.Find("dd.articleSubject").Each(func(_ int, dd *goquery.Selection) {
		a := dd.Find("a").First()
		href := a.AttrOr("href", "")
		if href == "" {
			return
		}
		title := strings.TrimSpace(a.AttrOr("title", ""))
		if title == "" {
			title = strings.TrimSpace(a.Text())
		}

		summary := dd.NextAllFiltered("dd.articleSummary").First()
		oid, aid, normURL := NormalizeArticleURL(href)

		lp.Articles = append(lp.Articles, Article{
			Section:     section,
			SectionName: SectionNames[section],
			OfficeID:    oid,
			ArticleID:   aid,
			URL:         normURL,
			Title:       title,
			Press:       strings.TrimSpace(summary.Find("span.press").Text()),
			Date:        strings.TrimSpace(summary.Find("span.wdate").Text()),
		})
	})
	return lp, nil
}

// Body fetches an article page and extracts its text. Article pages are
// UTF-8, unlike the list pages.
func (c *httpClient) Body(ctx context.Context, articleURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "naver: create article request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrapf(err, "naver: fetch article %s", articleURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("naver: unexpected status %d from %s", resp.StatusCode, articleURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", eris.Wrapf(err, "naver: parse article %s", articleURL)
	}

	body := doc.Find("div#dic_area").First()
	if body.Length() == 0 {
		body = doc.Find("article").First()
	}
	if body.Length() == 0 {
		body = doc.Find("div#newsct_article, div#newsct_article_content").First()
	}
	return strings.TrimSpace(body.Text()), nil
}

var (
	pageRe       = regexp.MustCompile(`page=(\d+)`)
	mnewsPathRe  = regexp.MustCompile(`/mnews/article/(\d{3})/(\d+)`)
	legacyPairRe = regexp.MustCompile(`[?&](?:oid|office_id|officeId)=(\d{3}).*?[&](?:aid|article_id|articleId)=(\d+)`)
)

// maxPage reads the highest page number from the paginator links. A page
// with no paginator is a single-page section.
func maxPage(doc *goquery.Document) int {
	max := 1
	doc.Find("a[href*='page=']").Each(func(_ int, a *goquery.Selection) {
		m := pageRe.FindStringSubmatch(a.AttrOr("href", ""))
		if m == nil {
			return
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	})
	return max
}

// NormalizeArticleURL maps the several historical article link shapes to the
// canonical n.news.naver.com form. Links it cannot identify come back with
// empty oid/aid and the href untouched.
func NormalizeArticleURL(href string) (oid, aid, normalized string) {
	if m := mnewsPathRe.FindStringSubmatch(href); m != nil {
		return m[1], m[2], articleURL(m[1], m[2])
	}

	if u, err := url.Parse(href); err == nil {
		qs := u.Query()
		pairs := [][2]string{
			{qs.Get("office_id"), qs.Get("article_id")},
			{qs.Get("oid"), qs.Get("aid")},
			{qs.Get("officeId"), qs.Get("articleId")},
		}
		for _, p := range pairs {
			if p[0] != "" && p[1] != "" {
				return p[0], p[1], articleURL(p[0], p[1])
			}
		}
	}

	if m := legacyPairRe.FindStringSubmatch(href); m != nil {
		return m[1], m[2], articleURL(m[1], m[2])
	}
	return "", "", href
}

func articleURL(oid, aid string) string {
	return "https://n.news.naver.com/mnews/article/" + oid + "/" + aid
}
