package model

import "time"

// CrawlTask is one unit of traversal work.
//
// Hierarchy is the discovery path from the seed: Hierarchy[0] is the seed URL
// and the last element is URL itself. Tasks are values; Child never shares
// the parent's backing array.
type CrawlTask struct {
	URL          string
	Hierarchy    []string
	LastModified *time.Time
}

// NewSeedTask returns the root task of a seed traversal.
func NewSeedTask(seed SitemapEntry) CrawlTask {
	return CrawlTask{
		URL:          seed.URL,
		Hierarchy:    []string{seed.URL},
		LastModified: seed.LastModified,
	}
}

// Depth is the length of the hierarchy. A seed task has depth 1.
func (t CrawlTask) Depth() int {
	return len(t.Hierarchy)
}

// Child returns the task for a link found on t's page. The seed's
// LastModified is inherited unchanged.
func (t CrawlTask) Child(link string) CrawlTask {
	hierarchy := make([]string, len(t.Hierarchy), len(t.Hierarchy)+1)
	copy(hierarchy, t.Hierarchy)
	return CrawlTask{
		URL:          link,
		Hierarchy:    append(hierarchy, link),
		LastModified: t.LastModified,
	}
}

// Download returns the record for a download link found on t's page.
func (t CrawlTask) Download(link string) DownloadRecord {
	return DownloadRecord{
		DownloadURL:  link,
		Hierarchy:    append([]string(nil), t.Hierarchy...),
		LastModified: t.LastModified,
	}
}
