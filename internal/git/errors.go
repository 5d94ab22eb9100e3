package git

import (
	"git.home.luguber.info/inful/contentbuilder/internal/foundation/errors"
)

// classifyGitError wraps a go-git failure as a filesystem error naming the operation.
func classifyGitError(err error, op, path string) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.AsClassified(err); ok {
		return err
	}
	return errors.WrapError(err, errors.CategoryFileSystem, "git operation failed").
		WithContext("op", op).
		WithPath(path).
		Build()
}
