package proxy

import (
	"net/http"
	"net/url"
)

// GET /api/video-info?url=...|id=...
func (p *Proxy) VideoInfo(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := q.Get("id")
	if raw == "" {
		raw = q.Get("url")
	}
	if raw == "" {
		writeError(w, http.StatusBadRequest, "url or id is required")
		return
	}
	videoID, ok := ExtractVideoID(raw)
	if !ok {
		writeError(w, http.StatusBadRequest, "could not find a video id in the request")
		return
	}
	if p.cfg.RapidAPIKey == "" {
		writeError(w, http.StatusInternalServerError, "video info is not configured")
		return
	}

	endpoint, err := url.Parse(p.cfg.VideoInfoURL)
	if err != nil {
		writeUpstreamError(w, "video-info", err)
		return
	}
	params := endpoint.Query()
	params.Set("videoId", videoID)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, endpoint.String(), nil)
	if err != nil {
		writeUpstreamError(w, "video-info", err)
		return
	}
	host := p.cfg.RapidAPIHost
	if host == "" {
		host = endpoint.Host
	}
	req.Header.Set("X-RapidAPI-Key", p.cfg.RapidAPIKey)
	req.Header.Set("X-RapidAPI-Host", host)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		writeUpstreamError(w, "video-info", err)
		return
	}
	relayJSON(w, resp)
}
