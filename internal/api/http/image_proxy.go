package apihttp

import (
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	maxPosterBytes     = 20 << 20
	posterFetchTimeout = 15 * time.Second
)

var posterClient = &http.Client{
	Timeout: posterFetchTimeout,
	CheckRedirect: func(req *http.Request, _ []*http.Request) error {
		// Redirect targets get the same scrutiny as the original URL.
		if err := validatePosterURL(req.URL); err != nil {
			return err
		}
		return nil
	},
}

// handlePosterProxy streams a remote poster image through the service so the
// frontend never talks to image CDNs directly. The target URL is validated
// to keep the proxy from reaching into internal networks.
func (s *Server) handlePosterProxy(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/poster" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if raw == "" {
		writeFailure(w, http.StatusBadRequest, "url parameter is required")
		return
	}
	target, err := url.Parse(raw)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid url")
		return
	}
	if err := validatePosterURL(target); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target.String(), nil)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid url")
		return
	}
	req.Header.Set("Accept", "image/*")

	resp, err := posterClient.Do(req)
	if err != nil {
		writeFailure(w, http.StatusBadGateway, "failed to fetch image")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		writeFailure(w, http.StatusBadGateway, "upstream returned an error")
		return
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeFailure(w, http.StatusBadGateway, "upstream did not return an image")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = io.Copy(w, io.LimitReader(resp.Body, maxPosterBytes))
}

type posterURLError string

func (e posterURLError) Error() string { return string(e) }

func validatePosterURL(target *url.URL) error {
	if target.Scheme != "http" && target.Scheme != "https" {
		return posterURLError("url scheme must be http or https")
	}
	host := strings.ToLower(target.Hostname())
	if host == "" {
		return posterURLError("url host is required")
	}
	if isBlockedPosterHost(host) {
		return posterURLError("url host is not allowed")
	}
	if ip := net.ParseIP(host); ip != nil && isPrivateIP(ip) {
		return posterURLError("url host is not allowed")
	}
	return nil
}

func isBlockedPosterHost(host string) bool {
	switch host {
	case "localhost", "metadata.google.internal", "redis", "postgres", "prometheus", "grafana":
		return true
	}
	return strings.HasSuffix(host, ".local") || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".internal")
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}
