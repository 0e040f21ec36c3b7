package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actuallystonmai/streamfront/internal/upstream"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func newProxy(cfg Config) *Proxy {
	c := upstream.NewClient(0)
	return New(cfg, c, c)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORS(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/download", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "OPTIONS")
	assert.False(t, called)
}

func TestCORSOnErrors(t *testing.T) {
	p := newProxy(Config{})
	rec := httptest.NewRecorder()
	CORS(http.HandlerFunc(p.Download)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/download", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHostAllowed(t *testing.T) {
	allowed := []string{"googlevideo.com", ".youtube.com"}
	cases := map[string]bool{
		"googlevideo.com":              true,
		"rr3---sn-abc.googlevideo.com": true,
		"www.youtube.com":              true,
		"YOUTUBE.COM.":                 true,
		"evilgooglevideo.com":          false,
		"googlevideo.com.attacker.net": false,
		"":                             false,
	}
	for host, want := range cases {
		assert.Equal(t, want, HostAllowed(host, allowed), host)
	}
}

func TestDownloadRejectsDisallowedHost(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { hits.Add(1) }))
	defer srv.Close()

	p := newProxy(Config{AllowedHosts: []string{"googlevideo.com", "youtube.com"}})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/download?url="+url.QueryEscape(srv.URL+"/video.mp4"), nil)
	p.Download(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, decodeError(t, rec))
	assert.Zero(t, hits.Load())
}

func TestDownloadRefusesRedirectOffAllowList(t *testing.T) {
	var hits atomic.Int32
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("SECRET"))
	}))
	defer internal.Close()

	edge := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, internal.URL+"/metadata", http.StatusFound)
	}))
	defer edge.Close()
	edgeURL := strings.Replace(edge.URL, "127.0.0.1", "localhost", 1)

	p := newProxy(Config{AllowedHosts: []string{"localhost"}})
	rec := httptest.NewRecorder()
	p.Download(rec, httptest.NewRequest(http.MethodGet, "/api/download?url="+url.QueryEscape(edgeURL+"/v.mp4"), nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, decodeError(t, rec))
	assert.NotContains(t, rec.Body.String(), "SECRET")
	assert.Zero(t, hits.Load())
}

func TestDownloadFollowsAllowedRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/final", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("clip"))
	}))
	defer srv.Close()

	p := newProxy(Config{AllowedHosts: []string{"127.0.0.1"}})
	rec := httptest.NewRecorder()
	p.Download(rec, httptest.NewRequest(http.MethodGet, "/api/download?url="+url.QueryEscape(srv.URL+"/start"), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "clip", rec.Body.String())
}

func TestDownloadRejectsBadURL(t *testing.T) {
	p := newProxy(Config{AllowedHosts: []string{"googlevideo.com"}})
	for _, raw := range []string{"", "ftp://googlevideo.com/x", "not a url", "/relative"} {
		rec := httptest.NewRecorder()
		p.Download(rec, httptest.NewRequest(http.MethodGet, "/api/download?url="+url.QueryEscape(raw), nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, raw)
	}
}

func TestDownloadStreamsBody(t *testing.T) {
	payload := append(append([]byte{}, pngHeader...), []byte(strings.Repeat("x", 5000))...)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		w.Write(payload)
	}))
	defer srv.Close()

	p := newProxy(Config{AllowedHosts: []string{"127.0.0.1"}})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/download?filename=clip.png&url="+url.QueryEscape(srv.URL+"/f"), nil)
	p.Download(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload, rec.Body.Bytes())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=clip.png`, rec.Header().Get("Content-Disposition"))
}

func TestDownloadForwardsUpstreamHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Disposition", `attachment; filename="up.mp4"`)
		w.Write([]byte("data"))
	}))
	defer srv.Close()

	p := newProxy(Config{AllowedHosts: []string{"127.0.0.1"}})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/download?filename=ignored.mp4&url="+url.QueryEscape(srv.URL), nil)
	p.Download(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, "4", rec.Header().Get("Content-Length"))
	assert.Equal(t, `attachment; filename="up.mp4"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "data", rec.Body.String())
}

func TestDownloadPropagatesUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusForbidden)
	}))
	defer srv.Close()

	p := newProxy(Config{AllowedHosts: []string{"127.0.0.1"}})
	rec := httptest.NewRecorder()
	p.Download(rec, httptest.NewRequest(http.MethodGet, "/api/download?url="+url.QueryEscape(srv.URL), nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, decodeError(t, rec), "403")
}

func TestShortenRelaysUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var in shortenUpstreamRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "https://example.com/watch/1", in.URL)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"data":{"tiny_url":"https://tinyurl.com/abc"},"code":0}`)
	}))
	defer srv.Close()

	p := newProxy(Config{ShortenerURL: srv.URL, ShortenerToken: "secret"})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/shorten", strings.NewReader(`{"url":"https://example.com/watch/1"}`))
	p.Shorten(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"tiny_url":"https://tinyurl.com/abc"},"code":0}`, rec.Body.String())
}

func TestShortenValidation(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { hits.Add(1) }))
	defer srv.Close()

	p := newProxy(Config{ShortenerURL: srv.URL, ShortenerToken: "secret"})
	for _, body := range []string{`not json`, `{}`, `{"url":"javascript:alert(1)"}`} {
		rec := httptest.NewRecorder()
		p.Shorten(rec, httptest.NewRequest(http.MethodPost, "/api/shorten", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.NotEmpty(t, decodeError(t, rec))
	}
	assert.Zero(t, hits.Load())
}

func TestShortenNotConfigured(t *testing.T) {
	p := newProxy(Config{ShortenerURL: "http://127.0.0.1:1"})
	rec := httptest.NewRecorder()
	p.Shorten(rec, httptest.NewRequest(http.MethodPost, "/api/shorten", strings.NewReader(`{"url":"https://a.b"}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestShortenUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":["Unauthenticated"]}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := newProxy(Config{ShortenerURL: srv.URL, ShortenerToken: "bad"})
	rec := httptest.NewRecorder()
	p.Shorten(rec, httptest.NewRequest(http.MethodPost, "/api/shorten", strings.NewReader(`{"url":"https://a.b"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, decodeError(t, rec))
}

func TestVideoInfoRelays(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dQw4w9WgXcQ", r.URL.Query().Get("videoId"))
		assert.Equal(t, "key", r.Header.Get("X-RapidAPI-Key"))
		assert.Equal(t, "yt.example", r.Header.Get("X-RapidAPI-Host"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"title":"Song"}`)
	}))
	defer srv.Close()

	p := newProxy(Config{VideoInfoURL: srv.URL + "/v2/video/details", RapidAPIKey: "key", RapidAPIHost: "yt.example"})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/video-info?url="+url.QueryEscape("https://youtu.be/dQw4w9WgXcQ?t=3"), nil)
	p.VideoInfo(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"title":"Song"}`, rec.Body.String())
}

func TestVideoInfoValidation(t *testing.T) {
	p := newProxy(Config{VideoInfoURL: "http://127.0.0.1:1", RapidAPIKey: "key"})
	for _, q := range []string{"", "?url=https://vimeo.com/123", "?id=short"} {
		rec := httptest.NewRecorder()
		p.VideoInfo(rec, httptest.NewRequest(http.MethodGet, "/api/video-info"+q, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestExtractVideoID(t *testing.T) {
	cases := map[string]string{
		"dQw4w9WgXcQ": "dQw4w9WgXcQ",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=x": "dQw4w9WgXcQ",
		"https://m.youtube.com/watch?v=dQw4w9WgXcQ":          "dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ":                       "dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/dQw4w9WgXcQ":         "dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ":          "dQw4w9WgXcQ",
		"https://music.youtube.com/watch?v=dQw4w9WgXcQ":      "dQw4w9WgXcQ",
	}
	for in, want := range cases {
		got, ok := ExtractVideoID(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "https://vimeo.com/123", "https://youtube.com/watch?v=bad", "https://youtube.com/channel/UC123"} {
		_, ok := ExtractVideoID(in)
		assert.False(t, ok, in)
	}
}
