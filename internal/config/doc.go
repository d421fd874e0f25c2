// Package config provides the configuration of a harvest run: crawl limits,
// timeouts, politeness settings, report preferences and the optional
// per-domain site file.
package config
