package utils

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const DefaultBufferSize = 1024 * 1024 // 1MB read buffer for transfer loops

const DefaultUserAgent = "emularr/1.0"

const maxRedirects = 10

var filenameRegex = regexp.MustCompile(`[^a-zA-Z0-9_\-\. ()\[\]]+`)

// CreateHTTPClient builds a client tuned for large archive transfers. ROM
// mirrors are frequently hosted behind broken certificate chains, so TLS
// verification is relaxed. A zero timeout means no overall deadline, which
// is what long-running transfers need; probes pass a bounded timeout.
func CreateHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100, // for connection reuse
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}

// SanitizeFilename strips characters that are unsafe in output file names.
func SanitizeFilename(name string) string {
	cleaned := filenameRegex.ReplaceAllString(name, "_")
	cleaned = strings.Trim(cleaned, ". ")
	if cleaned == "" {
		cleaned = "download"
	}
	return cleaned
}

// RenewOutputPath returns a non-colliding variant of outputPath by
// appending an incrementing suffix before the extension.
func RenewOutputPath(outputPath string) string {
	dir := filepath.Dir(outputPath)
	base := filepath.Base(outputPath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	index := 1
	for {
		candidate := filepath.Join(dir, fmt.Sprintf("%s-(%d)%s", name, index, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
		index++
	}
}

func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatETA renders a second count the way the progress line expects it.
func FormatETA(seconds int64) string {
	if seconds < 0 {
		return "calculating..."
	}
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds < 3600 {
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	}
	return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
}
