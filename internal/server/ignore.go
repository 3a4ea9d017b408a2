package server

import (
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/opencoff/go-fio"
)

// newIgnoreFilter builds the traversal's input filter for root: hidden
// entries are skipped, and so is anything the tree's .gitignore files
// reject. The returned function suits walk.Options.Filter: true means
// drop the entry (directories are then not descended).
func newIgnoreFilter(root string) func(fi *fio.Info) (bool, error) {
	fs := osfs.New(root)
	ps, err := gitignore.ReadPatterns(fs, nil)
	if err != nil {
		ps = nil
	}
	matcher := gitignore.NewMatcher(ps)
	prefix := root + "/"

	return func(fi *fio.Info) (bool, error) {
		rel := strings.TrimPrefix(fi.Name(), prefix)
		if rel == "" || rel == fi.Name() {
			return false, nil
		}
		parts := strings.Split(rel, "/")
		if strings.HasPrefix(parts[len(parts)-1], ".") {
			return true, nil
		}
		if matcher.Match(parts, fi.Mode().IsDir()) {
			return true, nil
		}
		return false, nil
	}
}
