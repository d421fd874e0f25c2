package config

import "strings"

// SiteConfig holds the settings for a single domain.
type SiteConfig struct {
	// Cookie is sent with every request to the domain.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers sent with every request to the domain.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the global maximum depth. Zero keeps the global value.
	Depth int `yaml:"depth,omitempty"`

	// UserAgents replaces the global user-agent pool.
	UserAgents []string `yaml:"userAgents,omitempty"`

	// DownloadExtensions replaces the global download extensions.
	DownloadExtensions []string `yaml:"downloadExtensions,omitempty"`

	// IgnorePatterns are glob patterns matched against a link's path.
	// Matching pages are never followed; downloads are not affected.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`
}

// File represents the structure of the .docharvest site file.
type File struct {
	// Sites maps domains (without scheme) to their configuration.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to every domain unless overridden in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for domain merged over the defaults.
// A "www." prefix on domain is ignored when the exact key is absent.
func (cf *File) GetSiteConfig(domain string) SiteConfig {
	result := cf.Defaults
	if result.Headers != nil {
		headers := make(map[string]string, len(result.Headers))
		for k, v := range result.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}

	key := strings.ToLower(strings.TrimSpace(domain))
	siteConfig, ok := cf.Sites[key]
	if !ok {
		siteConfig, ok = cf.Sites[strings.TrimPrefix(key, "www.")]
	}
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
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range siteConfig.Headers {
			result.Headers[k] = v
		}
	}
	if len(siteConfig.UserAgents) > 0 {
		result.UserAgents = siteConfig.UserAgents
	}
	if len(siteConfig.DownloadExtensions) > 0 {
		result.DownloadExtensions = siteConfig.DownloadExtensions
	}
	if len(siteConfig.IgnorePatterns) > 0 {
		result.IgnorePatterns = siteConfig.IgnorePatterns
	}

	return result
}
