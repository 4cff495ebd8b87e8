package proxy

// MergeOptions composes the effective options for one pipeline
// invocation: a shallow merge of call-supplied options over the server's
// base options. Every field present (non-zero) on override replaces the
// corresponding field on base; everything else is inherited from base.
// Headers maps are merged key-by-key with override winning. HandleErrors
// is the exception: it always comes from base.
func MergeOptions(base, override *Options) *Options {
	if base == nil {
		base = &Options{}
	}
	merged := *base
	if override == nil {
		return &merged
	}

	if !override.Target.IsZero() {
		merged.Target = override.Target
	}
	if !override.Forward.IsZero() {
		merged.Forward = override.Forward
	}
	if override.SSL != nil {
		merged.SSL = override.SSL
	}
	if override.WS {
		merged.WS = override.WS
	}
	if override.XFwd {
		merged.XFwd = override.XFwd
	}
	if override.Secure != nil {
		merged.Secure = override.Secure
	}
	if override.ToProxy {
		merged.ToProxy = override.ToProxy
	}
	if override.PrependPath != nil {
		merged.PrependPath = override.PrependPath
	}
	if override.IgnorePath {
		merged.IgnorePath = override.IgnorePath
	}
	if override.ChangeOrigin {
		merged.ChangeOrigin = override.ChangeOrigin
	}
	if override.Auth != "" {
		merged.Auth = override.Auth
	}
	if len(override.Headers) > 0 {
		mergedHeaders := make(map[string][]string, len(base.Headers)+len(override.Headers))
		for k, v := range base.Headers {
			mergedHeaders[k] = v
		}
		for k, v := range override.Headers {
			mergedHeaders[k] = v
		}
		merged.Headers = mergedHeaders
	}
	if override.LocalAddress != "" {
		merged.LocalAddress = override.LocalAddress
	}
	if override.HTTPAgent != nil {
		merged.HTTPAgent = override.HTTPAgent
	}
	if override.HTTPSAgent != nil {
		merged.HTTPSAgent = override.HTTPSAgent
	}
	if override.Timeout != 0 {
		merged.Timeout = override.Timeout
	}
	if override.ProxyTimeout != 0 {
		merged.ProxyTimeout = override.ProxyTimeout
	}
	if override.HostRewrite != "" {
		merged.HostRewrite = override.HostRewrite
	}
	if override.AutoRewrite {
		merged.AutoRewrite = override.AutoRewrite
	}
	if override.ProtocolRewrite != "" {
		merged.ProtocolRewrite = override.ProtocolRewrite
	}
	if len(override.CookieDomainRewrite) > 0 {
		merged.CookieDomainRewrite = override.CookieDomainRewrite
	}
	if len(override.CookiePathRewrite) > 0 {
		merged.CookiePathRewrite = override.CookiePathRewrite
	}
	if override.SelfHandleResponse {
		merged.SelfHandleResponse = override.SelfHandleResponse
	}
	if override.Method != "" {
		merged.Method = override.Method
	}
	if len(override.RequestOptions) > 0 {
		merged.RequestOptions = override.RequestOptions
	}
	if override.When != "" {
		merged.When = override.When
	}

	return &merged
}
