// Package pipeline builds the typed document collection.
//
// A build locates content files, parses and validates their frontmatter,
// derives computed fields, renders every body through the markdown chain in a
// bounded worker pool, checks slug uniqueness, writes the collection and then
// runs the build-completion hooks exactly once.
//
// The failure policy decides what an invalid document does to the build:
// fail-fast cancels the remaining work and writes nothing; skip-invalid
// reports the document in Result.Failures, writes the rest and marks the
// build partial.
package pipeline
