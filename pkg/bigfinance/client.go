// Package bigfinance provides a client for the BigFinance industry API.
// Endpoints sit behind a cookie session; the login handshake issues an
// XSRF-TOKEN cookie whose value must be echoed in the x-xsrf-token header.
package bigfinance

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Category is one top-level industry category from /api/industry/categories.
type Category struct {
	Code   string  `json:"code"`
	Name   string  `json:"name"`
	Groups []Group `json:"groups"`
}

// Group is one category group.
type Group struct {
	GroupID       string        `json:"groupId"`
	GroupName     string        `json:"groupName"`
	SubCategories []SubCategory `json:"subCategories"`
}

// SubCategory is one industry sub-category with its data series.
type SubCategory struct {
	SubCode        string         `json:"subCode"`
	SubName        string         `json:"subName"`
	UpdateDate     string         `json:"updateDate"`
	DataType       string         `json:"industryDataType"`
	DataCategories []DataCategory `json:"dataCategories"`
}

// DataCategory is one data series of a sub-category.
type DataCategory struct {
	DataCode   string `json:"dataCode"`
	DataName   string `json:"dataName"`
	LastUpdate string `json:"lastUpdateDatetime"`
}

// Categories is the full category tree response.
type Categories struct {
	Categories []Category `json:"categories"`
}

// HeaderMeta is the series-header metadata for a (main, sub) pair.
type HeaderMeta struct {
	Frequency  string `json:"frequency"`
	Unit       string `json:"unit"`
	Source     string `json:"source"`
	Footnote   string `json:"footnote"`
	YoYFlag    string `json:"yoyFlag"`
	UpdateDate string `json:"updateDate"`
}

// Company is one member of a sub-category's company list.
type Company struct {
	Code string `json:"companyCode"`
	Name string `json:"companyName"`
}

// Client defines the BigFinance industry API operations.
type Client interface {
	// Login establishes the cookie session for subsequent calls.
	Login(ctx context.Context) error
	// Categories fetches the full industry category tree.
	Categories(ctx context.Context) (*Categories, error)
	// HeaderMeta fetches series-header metadata for a (main, sub) pair.
	HeaderMeta(ctx context.Context, mainCode, subCode string) (*HeaderMeta, error)
	// Companies fetches the member companies of a (main, sub) pair.
	Companies(ctx context.Context, mainCode, subCode string) ([]Company, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client. A cookie jar is installed on it
// if it has none; the session lives in the jar.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

// NewClient creates a BigFinance API client for an enterprise account.
func NewClient(username, password string, opts ...Option) Client {
	c := &httpClient{
		baseURL:  "https://www.bigfinance.co.kr",
		username: username,
		password: password,
		http: &http.Client{
			Timeout: 25 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		jar, _ := cookiejar.New(nil)
		c.http.Jar = jar
	}
	return c
}

// Login primes the session: a GET against the login page issues the
// XSRF-TOKEN cookie, then the credential POST binds the session cookie.
func (c *httpClient) Login(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/login", nil)
	if err != nil {
		return eris.Wrap(err, "bigfinance: create login page request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "bigfinance: fetch login page")
	}
	io.Copy(io.Discard, resp.Body) //nolint:errcheck
	resp.Body.Close()              //nolint:errcheck

	payload, err := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})
	if err != nil {
		return eris.Wrap(err, "bigfinance: marshal credentials")
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/login", bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "bigfinance: create login request")
	}
	req.Header.Set("Content-Type", "application/json")
	c.setXSRF(req)

	resp, err = c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "bigfinance: login")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("bigfinance: login failed with status %d", resp.StatusCode)
	}
	return nil
}

// Categories fetches the full category tree.
func (c *httpClient) Categories(ctx context.Context) (*Categories, error) {
	var out Categories
	if err := c.getJSON(ctx, "/api/industry/categories", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// HeaderMeta fetches the series-header metadata for one sub-category.
func (c *httpClient) HeaderMeta(ctx context.Context, mainCode, subCode string) (*HeaderMeta, error) {
	path := "/api/industry/header/codes/" + url.PathEscape(mainCode) + "/subCodes/" + url.PathEscape(subCode)
	var out HeaderMeta
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Companies fetches the member companies of one sub-category. The endpoint
// has returned both a bare array and a {"companies":[...]} wrapper across
// versions; both decode.
func (c *httpClient) Companies(ctx context.Context, mainCode, subCode string) ([]Company, error) {
	path := "/api/industry/codes/" + url.PathEscape(mainCode) + "/subCodes/" + url.PathEscape(subCode) + "/companies"

	var raw json.RawMessage
	if err := c.getJSON(ctx, path, &raw); err != nil {
		return nil, err
	}

	var companies []Company
	if err := json.Unmarshal(raw, &companies); err == nil {
		return companies, nil
	}
	var wrapped struct {
		Companies []Company `json:"companies"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, eris.Wrapf(err, "bigfinance: decode companies for %s/%s", mainCode, subCode)
	}
	return wrapped.Companies, nil
}

func (c *httpClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrapf(err, "bigfinance: create request for %s", path)
	}
	req.Header.Set("Accept", "application/json")
	c.setXSRF(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrapf(err, "bigfinance: get %s", path)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return eris.Errorf("bigfinance: session rejected (%d) for %s, login required", resp.StatusCode, path)
	}
	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("bigfinance: unexpected status %d from %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrapf(err, "bigfinance: decode response from %s", path)
	}
	return nil
}

// setXSRF echoes the XSRF-TOKEN cookie into the header the API checks.
func (c *httpClient) setXSRF(req *http.Request) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return
	}
	for _, ck := range c.http.Jar.Cookies(u) {
		if ck.Name == "XSRF-TOKEN" {
			req.Header.Set("x-xsrf-token", ck.Value)
			return
		}
	}
}
