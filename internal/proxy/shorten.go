package proxy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const maxRequestBody = 1 << 16

type shortenRequest struct {
	URL string `json:"url"`
}

type shortenUpstreamRequest struct {
	URL    string `json:"url"`
	Domain string `json:"domain"`
}

// POST /api/shorten
func (p *Proxy) Shorten(w http.ResponseWriter, r *http.Request) {
	var in shortenRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	target := strings.TrimSpace(in.URL)
	if target == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if !isHTTPURL(target) {
		writeError(w, http.StatusBadRequest, "url must be an absolute http(s) URL")
		return
	}
	if p.cfg.ShortenerToken == "" {
		writeError(w, http.StatusInternalServerError, "shortener is not configured")
		return
	}

	payload, err := json.Marshal(shortenUpstreamRequest{URL: target, Domain: "tinyurl.com"})
	if err != nil {
		writeUpstreamError(w, "shorten", fmt.Errorf("marshal shorten request: %w", err))
		return
	}
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, p.cfg.ShortenerURL, bytes.NewReader(payload))
	if err != nil {
		writeUpstreamError(w, "shorten", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.ShortenerToken)

	resp, err := p.client.Do(req)
	if err != nil {
		writeUpstreamError(w, "shorten", err)
		return
	}
	relayJSON(w, resp)
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
