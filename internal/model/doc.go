// Package model defines the data structures shared by the harvest stages.
//
// The main types are:
//   - SitemapEntry: a page listed by a domain's sitemap, the seed of one traversal
//   - CrawlTask: one unit of traversal work carrying its discovery path
//   - DownloadRecord: a discovered link to a downloadable document
//   - Document: the processed form of a download, ready to be stored
//   - HarvestReport: the result of one run against a domain
//
// The types live in their own package so crawler, pipeline, processor,
// database and report can share them without import cycles. All of them
// serialize to JSON for reports and the store.
package model
