package ratelimit

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// IdentifyClient derives the bucket identity for a request: the first
// X-Forwarded-For hop, then X-Real-IP, then a hash of the User-Agent so that
// clients without address headers still land in some bucket.
func IdentifyClient(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if ip := strings.TrimSpace(strings.Split(forwarded, ",")[0]); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return userAgentBucket(r.UserAgent())
}

func userAgentBucket(userAgent string) string {
	return "ua-" + strconv.FormatUint(xxhash.Sum64String(userAgent), 36)
}
