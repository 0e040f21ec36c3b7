package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	sniffLen     = 3072
	maxRedirects = 10
)

var errHostNotAllowed = errors.New("host not allowed")

var relayHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Content-Disposition",
	"Content-Range",
	"Accept-Ranges",
	"Last-Modified",
	"ETag",
}

// HostAllowed reports whether host equals or is a subdomain of one of the
// allowed suffixes.
func HostAllowed(host string, allowed []string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return false
	}
	for _, suffix := range allowed {
		suffix = strings.Trim(strings.ToLower(strings.TrimSpace(suffix)), ".")
		if suffix == "" {
			continue
		}
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

func allowedRedirects(allowed []string) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("too many redirects")
		}
		if !HostAllowed(req.URL.Hostname(), allowed) {
			return fmt.Errorf("redirect to %s: %w", req.URL.Hostname(), errHostNotAllowed)
		}
		return nil
	}
}

// GET /api/download?url=...&filename=...
func (p *Proxy) Download(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	target, err := url.Parse(raw)
	if err != nil || (target.Scheme != "https" && target.Scheme != "http") || target.Host == "" {
		writeError(w, http.StatusBadRequest, "url must be an absolute http(s) URL")
		return
	}
	if !HostAllowed(target.Hostname(), p.cfg.AllowedHosts) {
		writeError(w, http.StatusBadRequest, "host not allowed: "+target.Hostname())
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target.String(), nil)
	if err != nil {
		writeUpstreamError(w, "download", err)
		return
	}
	if rng := r.Header.Get("Range"); rng != "" {
		req.Header.Set("Range", rng)
	}

	resp, err := p.stream.Do(req)
	if errors.Is(err, errHostNotAllowed) {
		log.Printf("[proxy] download: %v", err)
		writeError(w, http.StatusBadRequest, "redirect to a host that is not allowed")
		return
	}
	if err != nil {
		writeUpstreamError(w, "download", err)
		return
	}
	defer resp.Body.Close()

	h := w.Header()
	for _, name := range relayHeaders {
		if v := resp.Header.Get(name); v != "" {
			h.Set(name, v)
		}
	}
	if h.Get("Content-Disposition") == "" {
		if cd := attachment(r.URL.Query().Get("filename")); cd != "" {
			h.Set("Content-Disposition", cd)
		}
	}

	body := bufio.NewReaderSize(resp.Body, sniffLen)
	if h.Get("Content-Type") == "" {
		head, _ := body.Peek(sniffLen)
		h.Set("Content-Type", mimetype.Detect(head).String())
	}

	w.WriteHeader(resp.StatusCode)
	if _, err := copyBody(w, body); err != nil && !errors.Is(err, r.Context().Err()) {
		log.Printf("[proxy] download relay from %s: %v", target.Host, err)
	}
}

func attachment(filename string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), `\`, "/"))
	if name == "" || name == "." || name == "/" {
		return ""
	}
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}

func copyBody(w http.ResponseWriter, r io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64
	flusher, _ := w.(http.Flusher)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			m, werr := w.Write(buf[:n])
			written += int64(m)
			if werr != nil {
				return written, werr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}
