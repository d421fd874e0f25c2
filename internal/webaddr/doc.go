// Package webaddr normalizes web addresses and answers the scoping questions
// the crawler asks about them: origin, host, registered domain and whether a
// path names a downloadable document.
//
// Registered domains are derived with the public suffix list, so
// docs.example.co.uk and www.example.co.uk share "example.co.uk".
package webaddr
