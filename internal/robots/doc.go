// Package robots fetches a site's robots.txt once per run and answers
// whether individual URLs may be fetched.
//
// There is no permissive fallback: when robots.txt cannot be retrieved the
// run stops instead of crawling without rules.
package robots
