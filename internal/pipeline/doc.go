// Package pipeline runs a harvest of one domain as an ordered list of steps.
//
// The default pipeline resolves the sitemap into seeds, loads robots.txt,
// crawls every seed, deduplicates the discovered downloads and, unless
// discovery is all that was asked for, filters out known URLs, processes
// the remaining documents and stores them. Each step reads and writes a
// shared Run; the HarvestReport inside it is the result of the run.
//
// BatchProcessor harvests several domains concurrently with errgroup,
// building a fresh pipeline per domain.
package pipeline
