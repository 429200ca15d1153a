package urlfmt

import "strings"

// DefaultImageBaseURL is the CDN that serves upstream image hashes.
const DefaultImageBaseURL = "https://fuss10.elemecdn.com"

// hashLen is the length of the hex digest at the front of an image hash; the
// file extension follows it.
const hashLen = 32

// ImageFormatter expands opaque image hashes into CDN URLs.
type ImageFormatter struct {
	BaseURL string
}

// NewImageFormatter returns a formatter rooted at baseURL, falling back to
// DefaultImageBaseURL when baseURL is empty.
func NewImageFormatter(baseURL string) ImageFormatter {
	if baseURL == "" {
		baseURL = DefaultImageBaseURL
	}
	return ImageFormatter{BaseURL: strings.TrimRight(baseURL, "/")}
}

// Format turns a hash such as "3c5dd5a3d1c55b7b7efd1e2a8d0b8e40png" into
// "<base>/3/c5/dd5a3d1c55b7b7efd1e2a8d0b8e40png.png". Hashes too short to
// split produce "".
func (f ImageFormatter) Format(hash string) string {
	if len(hash) < 4 {
		return ""
	}
	u := f.BaseURL + "/" + hash[:1] + "/" + hash[1:3] + "/" + hash[3:]
	if len(hash) > hashLen {
		u += "." + hash[hashLen:]
	}
	return u
}
