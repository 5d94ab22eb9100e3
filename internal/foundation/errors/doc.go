// Package errors provides the classified error primitives used across contentbuilder.
//
// Every failure that can end a build is a ClassifiedError carrying a category
// (config, validation, transform, hook, ...), a severity and a small context map
// (source path, transform step, field). Builds never retry, so there is no retry
// metadata: an error either aborts the build or is reported against one document.
//
// Example usage:
//
//	err := errors.TransformError("highlight failed").
//		WithContext("path", "blog/hello.mdx").
//		WithContext("step", "highlight").
//		WithCause(cause).
//		Build()
package errors
