// Package crawler walks the pages reachable from sitemap seeds and collects
// links to downloadable documents.
//
// # Traversal
//
// Each seed gets its own frontier: a LIFO stack of tasks plus a visited set.
// Tasks are popped in waves of up to WaveSize, every task of a wave runs
// concurrently, and the next wave starts only after the whole wave finished.
// A task is marked visited before its page is fetched, so siblings in the
// same wave never fetch the same URL twice.
//
// Links found on a page are either downloads (their path ends in a download
// extension) or pages to follow. Pages are followed only when they live on
// the seed's registered domain but not on the seed's exact host, are allowed
// by robots.txt, and are not sitemap seeds themselves.
//
// # Concurrency
//
// Two gates bound the work of a run:
//   - Crawl runs at most SeedConcurrency seeds at once (errgroup limit).
//   - Every page fetch of every seed goes through one shared Gate
//     (weighted semaphore plus an optional rate limiter).
//
// # Deduplication
//
// Dedupe collapses the records of all seeds into one record per download URL.
// The newest lastmod wins, then the shortest hierarchy.
//
// # Usage
//
//	spider := crawler.NewSpider(client, policy, crawler.WithGate(crawler.NewGate(25, 0)))
//	result, err := spider.Crawl(ctx, seeds)
//	downloads := crawler.Dedupe(result.Downloads)
package crawler
