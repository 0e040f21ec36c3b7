// Package proxy holds the edge endpoints that relay a browser request to one
// third-party API. They are stateless and make a single upstream call.
package proxy

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/actuallystonmai/streamfront/internal/upstream"
)

type Config struct {
	ShortenerURL   string
	ShortenerToken string
	VideoInfoURL   string
	RapidAPIKey    string
	RapidAPIHost   string
	// AllowedHosts are the domain suffixes the download relay may fetch from.
	AllowedHosts []string
}

type Proxy struct {
	cfg    Config
	client *upstream.Client
	stream *upstream.Client
}

// New builds the proxies. api is used for JSON calls; stream for the
// download relay, which should not carry a whole-request deadline. The relay
// only follows redirects that stay on the allow-list.
func New(cfg Config, api, stream *upstream.Client) *Proxy {
	return &Proxy{
		cfg:    cfg,
		client: api,
		stream: stream.WithRedirectPolicy(allowedRedirects(cfg.AllowedHosts)),
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// CORS adds permissive cross-origin headers and answers every OPTIONS request
// with an empty 200.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type, range")
		h.Set("Access-Control-Expose-Headers", "Content-Length, Content-Disposition, Content-Range")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeUpstreamError logs err and answers with the upstream status or 500.
func writeUpstreamError(w http.ResponseWriter, name string, err error) {
	log.Printf("[proxy] %s: %v", name, err)
	status := upstream.StatusOf(err)
	msg := "upstream request failed"
	if upstream.IsUpstreamError(err) {
		msg = err.Error()
	}
	writeError(w, status, msg)
}

// relayJSON copies an upstream JSON body to the caller.
func relayJSON(w http.ResponseWriter, resp *http.Response) {
	defer resp.Body.Close()
	ct := resp.Header.Get("Content-Type")
	if ct == "" || !strings.Contains(ct, "json") {
		ct = "application/json"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(resp.StatusCode)
	if _, err := copyBody(w, resp.Body); err != nil {
		log.Printf("[proxy] relay body: %v", err)
	}
}
