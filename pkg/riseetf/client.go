// Package riseetf provides a client for the RISE ETF finder pages.
package riseetf

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// ETF is one row of the finder list page.
type ETF struct {
	Name      string `json:"name"`
	Price     string `json:"price"`
	Change    string `json:"change"`
	DetailURL string `json:"detail_url"`
}

// Holding is one constituent row from an ETF detail page's holdings tab.
type Holding struct {
	Number    string `json:"number"`
	ItemName  string `json:"item_name"`
	ItemCode  string `json:"item_code"`
	BasePrice string `json:"base_price"`
	Ratio     string `json:"ratio"`
	Value     string `json:"value"`
}

// Client defines the RISE ETF finder operations.
type Client interface {
	// ListETFs scrapes the finder page and returns every listed ETF.
	ListETFs(ctx context.Context) ([]ETF, error)
	// Holdings scrapes an ETF detail page's composition tab.
	Holdings(ctx context.Context, detailURL string) ([]Holding, error)
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

// NewClient creates a RISE ETF finder client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://www.riseetf.co.kr",
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

func (c *httpClient) get(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "riseetf: create request")
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "riseetf: get %s", rawURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("riseetf: unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "riseetf: parse %s", rawURL)
	}
	return doc, nil
}

// ListETFs scrapes the finder page. Each row carries the fund name in a th
// cell whose onclick attribute holds the detail path, plus nav price and
// daily change cells.
func (c *httpClient) ListETFs(ctx context.Context) ([]ETF, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, eris.Wrapf(err, "riseetf: parse base url %s", c.baseURL)
	}

	doc, err := c.get(ctx, c.baseURL+"/prod/finder")
	if err != nil {
		return nil, err
	}

	var etfs []ETF
	doc.Find("table tbody tr").Each(func(_ int, tr *goquery.Selection) {
		th := tr.Find("th").First()
		if th.Length() == 0 {
			return
		}
		name := strings.TrimSpace(th.Text())
		detail := detailPath(th.AttrOr("onclick", ""))
		detailURL := ""
		if detail != "" {
			if ref, err := url.Parse(detail); err == nil {
				detailURL = base.ResolveReference(ref).String()
			}
		}

		var price, change string
		tds := tr.Find("td")
		if tds.Length() >= 2 {
			price = strings.TrimSpace(tds.Eq(0).Text())
			change = changeText(tds.Eq(1))
		}

		etfs = append(etfs, ETF{
			Name:      name,
			Price:     price,
			Change:    change,
			DetailURL: detailURL,
		})
	})
	return etfs, nil
}

// Holdings scrapes the composition tab (tab3) of a detail page. Rows live in
// tbody[data-class=tab3PdfList]: a th sequence number and five tds (name,
// code, base price, weight, value). Rows with a different shape are skipped.
func (c *httpClient) Holdings(ctx context.Context, detailURL string) ([]Holding, error) {
	u := detailURL
	if !strings.Contains(u, "?") {
		u += "?searchFlag=viewtab3"
	}

	doc, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var holdings []Holding
	doc.Find(`tbody[data-class="tab3PdfList"] tr`).Each(func(_ int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if tds.Length() != 5 {
			return
		}
		holdings = append(holdings, Holding{
			Number:    strings.TrimSpace(tr.Find("th").First().Text()),
			ItemName:  strings.TrimSpace(tds.Eq(0).Text()),
			ItemCode:  strings.TrimSpace(tds.Eq(1).Text()),
			BasePrice: strings.TrimSpace(tds.Eq(2).Text()),
			Ratio:     strings.TrimSpace(tds.Eq(3).Text()),
			Value:     strings.TrimSpace(tds.Eq(4).Text()),
		})
	})
	return holdings, nil
}

// detailPath pulls the quoted path out of an onclick handler like
// fnMovePage('/prod/detail?code=...').
func detailPath(onclick string) string {
	i := strings.IndexByte(onclick, '\'')
	if i < 0 {
		return ""
	}
	rest := onclick[i+1:]
	j := strings.IndexByte(rest, '\'')
	if j < 0 {
		return ""
	}
	return rest[:j]
}

// changeText renders a change cell as "<direction> <value>"; the direction
// sits in a screen-reader span (span.blind) the visible text repeats around.
func changeText(td *goquery.Selection) string {
	direction := strings.TrimSpace(td.Find("span.blind").Text())
	full := strings.TrimSpace(td.Text())
	if direction != "" {
		full = strings.TrimSpace(strings.Replace(full, direction, "", 1))
		return strings.TrimSpace(direction + " " + full)
	}
	return full
}
