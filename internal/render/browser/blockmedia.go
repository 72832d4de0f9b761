package browser

import (
	"net/url"
	"path"
	"strings"
)

// blockedResourceTypes are CDP resource types aborted when media blocking is
// on. Stylesheets and scripts pass through so client rendering still runs.
var blockedResourceTypes = map[string]struct{}{
	"Image": {},
	"Media": {},
	"Font":  {},
}

// blockedExtensions catches media served with a generic resource type.
var blockedExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {}, ".svg": {},
	".ico": {}, ".bmp": {}, ".avif": {},
	".mp4": {}, ".webm": {}, ".ogg": {}, ".mp3": {}, ".wav": {}, ".m4a": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".otf": {}, ".eot": {},
}

// shouldBlock reports whether a paused request is media the renderer can skip.
func shouldBlock(requestURL, resourceType string) bool {
	if _, ok := blockedResourceTypes[resourceType]; ok {
		return true
	}

	parsed, err := url.Parse(requestURL)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(parsed.Path))
	_, ok := blockedExtensions[ext]
	return ok
}
