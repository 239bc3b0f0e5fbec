package site

import "strings"

const (
	ReasonDomain = "domain"
	ReasonWww    = "www"
	ReasonHttps  = "https"
)

// Canonicalize returns the location a request must be redirected to before it is served,
// along with the reason of the redirect. An empty location means the request is already canonical,
// or that no domain is configured to canonicalize against.
func Canonicalize(host string, requestURI string, proto Protocol, domain string, forceHttps bool) (string, string) {
	if domain == "" {
		return "", ""
	}
	if host == "" || !strings.Contains(host, domain) {
		return proto.String() + "://" + domain + requestURI, ReasonDomain
	}
	if !strings.Contains(host, "www.") {
		return proto.String() + "://www." + domain + requestURI, ReasonWww
	}
	if proto == Http && forceHttps {
		return "https://" + host + requestURI, ReasonHttps
	}
	return "", ""
}
