package naver

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

const listHTML = `<!DOCTYPE html>
<html><body>
<ul>
 <li>
  <dl>
   <dd class="articleSubject">
    <a href="/news/news_read.naver?article_id=0001234567&office_id=001&mode=LSS3D"
       title="삼성전자, 반도체 수출 호조">삼성전자, 반도체 수출 호조</a>
   </dd>
   <dd class="articleSummary">
    요약문 텍스트
    <span class="press">연합뉴스</span>
    <span class="wdate">2025-11-10 09:30</span>
   </dd>
  </dl>
 </li>
 <li>
  <dl>
   <dd class="articleSubject">
    <a href="https://n.news.naver.com/mnews/article/015/0004321000">현대차 3분기 실적 발표</a>
   </dd>
   <dd class="articleSummary">
    <span class="press">한국경제</span>
    <span class="wdate">2025-11-10 10:02</span>
   </dd>
  </dl>
 </li>
</ul>
<table class="Nnavi"><tr>
 <td><a href="/news/news_list.naver?page=2">2</a></td>
 <td><a href="/news/news_list.naver?page=13">13</a></td>
</tr></table>
</body></html>`

const articleHTML = `<!DOCTYPE html>
<html><body>
<article>
 <div id="dic_area">
  삼성전자가 반도체 수출 호조에 힘입어
  사상 최대 분기 실적을 기록했다.
 </div>
</article>
</body></html>`

// eucKR encodes fixture HTML the way the live list pages are served.
func eucKR(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := transform.NewWriter(&buf, korean.EUCKR.NewEncoder())
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/news/news_list.naver", r.URL.Path)
		assert.Equal(t, "LSS3D", r.URL.Query().Get("mode"))
		assert.Equal(t, "401", r.URL.Query().Get("section_id3"))
		assert.Equal(t, "20251110", r.URL.Query().Get("date"))
		w.Header().Set("Content-Type", "text/html; charset=EUC-KR")
		w.Write(eucKR(t, listHTML))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	lp, err := c.List(context.Background(), "20251110", "401", 1)
	require.NoError(t, err)

	assert.Equal(t, 13, lp.MaxPage)
	require.Len(t, lp.Articles, 2)

	first := lp.Articles[0]
	assert.Equal(t, "401", first.Section)
	assert.Equal(t, "시황", first.SectionName)
	assert.Equal(t, "001", first.OfficeID)
	assert.Equal(t, "0001234567", first.ArticleID)
	assert.Equal(t, "https://n.news.naver.com/mnews/article/001/0001234567", first.URL)
	assert.Equal(t, "삼성전자, 반도체 수출 호조", first.Title)
	assert.Equal(t, "연합뉴스", first.Press)
	assert.Equal(t, "2025-11-10 09:30", first.Date)

	second := lp.Articles[1]
	assert.Equal(t, "015", second.OfficeID)
	assert.Equal(t, "https://n.news.naver.com/mnews/article/015/0004321000", second.URL)
}

func TestBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	c := NewClient()
	body, err := c.Body(context.Background(), srv.URL+"/mnews/article/001/0001234567")
	require.NoError(t, err)
	assert.Contains(t, body, "사상 최대 분기 실적")
}

func TestBody_FallbackToArticleTag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><article>본문 내용</article></body></html>`))
	}))
	defer srv.Close()

	c := NewClient()
	body, err := c.Body(context.Background(), srv.URL+"/a")
	require.NoError(t, err)
	assert.Equal(t, "본문 내용", body)
}

func TestList_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.List(context.Background(), "20251110", "402", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 503")
}

func TestNormalizeArticleURL(t *testing.T) {
	cases := []struct {
		href string
		oid  string
		aid  string
		url  string
	}{
		{
			href: "https://n.news.naver.com/mnews/article/001/0001234567",
			oid:  "001", aid: "0001234567",
			url: "https://n.news.naver.com/mnews/article/001/0001234567",
		},
		{
			href: "/news/news_read.naver?article_id=0004321000&office_id=015",
			oid:  "015", aid: "0004321000",
			url: "https://n.news.naver.com/mnews/article/015/0004321000",
		},
		{
			href: "/read.naver?oid=001&aid=0009999999",
			oid:  "001", aid: "0009999999",
			url: "https://n.news.naver.com/mnews/article/001/0009999999",
		},
	}
	for _, tc := range cases {
		oid, aid, u := NormalizeArticleURL(tc.href)
		assert.Equal(t, tc.oid, oid, tc.href)
		assert.Equal(t, tc.aid, aid, tc.href)
		assert.Equal(t, tc.url, u, tc.href)
	}
}

func TestNormalizeArticleURL_Unrecognized(t *testing.T) {
	oid, aid, u := NormalizeArticleURL("/some/other/page")
	assert.Empty(t, oid)
	assert.Empty(t, aid)
	assert.Equal(t, "/some/other/page", u)
}
