package config

// SiteConfig holds per-site overrides for a single host. This allows
// customizing crawl behavior for sites that need a session cookie or a
// different depth.
type SiteConfig struct {
	// Cookie is an HTTP cookie sent when crawling this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers for requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the global max depth for this site. Zero means use
	// the global value.
	Depth int `yaml:"depth,omitempty"`

	// Blocklist holds extra URL patterns to skip for this site.
	Blocklist []string `yaml:"blocklist,omitempty"`
}

// File represents the .scopecrawl configuration file.
type File struct {
	// Sites maps hosts to their overrides. Keys are bare hosts, without a
	// scheme (e.g. "example.com", "abcdef.onion").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the effective configuration for a host: the defaults
// merged with the host's own overrides.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults

	siteConfig, ok := cf.Sites[host]
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if siteConfig.Depth != 0 {
		result.Depth = siteConfig.Depth
	}
	if len(siteConfig.Headers) > 0 {
		merged := make(map[string]string, len(result.Headers)+len(siteConfig.Headers))
		for k, v := range result.Headers {
			merged[k] = v
		}
		for k, v := range siteConfig.Headers {
			merged[k] = v
		}
		result.Headers = merged
	}
	if len(siteConfig.Blocklist) > 0 {
		combined := make([]string, 0, len(result.Blocklist)+len(siteConfig.Blocklist))
		combined = append(combined, result.Blocklist...)
		combined = append(combined, siteConfig.Blocklist...)
		result.Blocklist = combined
	}

	return result
}
