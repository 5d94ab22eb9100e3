// Package git reads content history from the repository holding the content
// tree. It is used to derive a document's last-modified date and to record
// the commit a build was produced from.
package git
