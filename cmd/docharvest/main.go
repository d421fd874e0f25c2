// Package main provides the entry point for the docharvest CLI.
//
// docharvest discovers downloadable documents on websites. It reads a
// domain's sitemap, walks the listed pages while obeying robots.txt, and
// records every linked document together with the path of pages that led
// to it.
//
// Usage:
//
//	docharvest harvest <domain>
//	docharvest harvest --batch 3 <domain> <domain> ...
//	docharvest history <domain>
//
// See --help for all available options.
package main

// main is the entry point for docharvest.
func main() {
	Execute()
}
