// Package processor turns harvested download links into documents.
//
// Classify asks the server for a link's content type with a HEAD request and
// maps it onto a coarse model.ContentType. Process downloads the document and
// extracts what the store needs: title, a short text snippet, metadata and a
// content hash. PDF and HTML bodies are understood; other types keep only
// the file-name title and the hash.
package processor
