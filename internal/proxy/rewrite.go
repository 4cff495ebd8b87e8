package proxy

import (
	"net/http"
	"net/url"
	"regexp"
)

var rewritableRedirect = map[int]bool{
	201: true, 301: true, 302: true, 307: true, 308: true,
}

// RewriteLocation applies hostRewrite/autoRewrite/protocolRewrite to a
// redirect response's Location header.
func RewriteLocation(header http.Header, status int, inboundHost string, o *Options) {
	if !rewritableRedirect[status] {
		return
	}
	loc := header.Get("Location")
	if loc == "" {
		return
	}
	u, err := url.Parse(loc)
	if err != nil || u.Host == "" {
		return
	}

	if o.HostRewrite != "" {
		u.Host = o.HostRewrite
	} else if o.AutoRewrite {
		u.Host = inboundHost
	}
	if o.ProtocolRewrite != "" {
		u.Scheme = o.ProtocolRewrite
	}

	header.Set("Location", u.String())
}

func cookieAttrPattern(prop string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(;\s*` + prop + `=)([^;]+)`)
}

var (
	cookieDomainPattern = cookieAttrPattern("domain")
	cookiePathPattern   = cookieAttrPattern("path")
)

// RewriteSetCookie rewrites the Domain and/or Path attribute of every
// Set-Cookie value in header. domainRules/pathRules map an original
// attribute value to its replacement; "*" is the fallback; an empty
// replacement removes the attribute entirely.
func RewriteSetCookie(header http.Header, domainRules, pathRules map[string]string) {
	values := header.Values("Set-Cookie")
	if len(values) == 0 {
		return
	}
	rewritten := make([]string, len(values))
	for i, v := range values {
		v = rewriteCookieAttr(v, cookieDomainPattern, domainRules)
		v = rewriteCookieAttr(v, cookiePathPattern, pathRules)
		rewritten[i] = v
	}
	header.Del("Set-Cookie")
	for _, v := range rewritten {
		header.Add("Set-Cookie", v)
	}
}

func rewriteCookieAttr(cookie string, pattern *regexp.Regexp, rules map[string]string) string {
	if len(rules) == 0 {
		return cookie
	}
	match := pattern.FindStringSubmatchIndex(cookie)
	if match == nil {
		return cookie
	}
	prefix := cookie[match[2]:match[3]]
	original := cookie[match[4]:match[5]]

	replacement, ok := rules[original]
	if !ok {
		replacement, ok = rules["*"]
		if !ok {
			return cookie
		}
	}
	if replacement == "" {
		return cookie[:match[0]] + cookie[match[1]:]
	}
	return cookie[:match[0]] + prefix + replacement + cookie[match[1]:]
}
