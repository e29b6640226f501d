package download

import (
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/AlikanakelaKarwowski/emularr/utils"
)

// Capability is what a metadata probe learned about a URL. SupportsRange
// is true only when the server both advertises byte ranges and reports a
// positive content length; anything less forces single-stream mode.
type Capability struct {
	SupportsRange bool
	ContentLength int64
	Filename      string
}

// ProbeURL issues a HEAD request and never fails: any network or protocol
// problem just downgrades the strategy, it is not an error.
func ProbeURL(client *http.Client, rawURL, userAgent string) Capability {
	log := utils.GetLogger("probe")
	req, err := http.NewRequest(http.MethodHead, rawURL, nil)
	if err != nil {
		log.Debug().Err(err).Str("url", rawURL).Msg("Invalid probe request")
		return Capability{}
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := client.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("url", rawURL).Msg("Probe request failed")
		return Capability{}
	}
	defer resp.Body.Close()

	cap := Capability{Filename: filenameFromHeader(resp.Header.Get("Content-Disposition"))}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Debug().Int("statusCode", resp.StatusCode).Msg("Probe got non-2xx status")
		return cap
	}
	if resp.ContentLength > 0 {
		cap.ContentLength = resp.ContentLength
	}
	if strings.Contains(resp.Header.Get("Accept-Ranges"), "bytes") && cap.ContentLength > 0 {
		cap.SupportsRange = true
	}
	log.Debug().Str("url", rawURL).Bool("ranges", cap.SupportsRange).Int64("size", cap.ContentLength).Msg("Probe completed")
	return cap
}

func filenameFromHeader(contentDisposition string) string {
	if contentDisposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentDisposition)
	if err != nil {
		return ""
	}
	if fn, ok := params["filename"]; ok && fn != "" {
		return utils.SanitizeFilename(fn)
	}
	if fn, ok := params["filename*"]; ok && strings.HasPrefix(fn, "UTF-8''") {
		unescaped, err := url.PathUnescape(strings.TrimPrefix(fn, "UTF-8''"))
		if err == nil {
			return utils.SanitizeFilename(unescaped)
		}
	}
	return ""
}
