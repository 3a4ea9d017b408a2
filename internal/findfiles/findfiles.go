// Package findfiles is the one-shot counterpart of the server: walk a
// tree once, stream every matching path, done.
package findfiles

import (
	"github.com/opencoff/go-fio"
	"github.com/opencoff/go-fio/walk"

	"github.com/jacott/koru-find/internal/pattern"
)

// Find traverses root in parallel and sends the full path bytes of
// every entry accepted by p, directories included. out is closed
// when the traversal finishes.
func Find(root string, p *pattern.Pattern, out chan<- []byte) error {
	defer close(out)
	return walk.WalkFunc([]string{root}, walk.Options{Type: walk.ALL}, func(fi *fio.Info) error {
		name := []byte(fi.Name())
		if p.AllMatches(name) {
			out <- name
		}
		return nil
	})
}
