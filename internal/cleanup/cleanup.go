// Package cleanup removes temporary documents by trying an ordered list of
// strategies until one succeeds.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"os"

	u "svg2img/internal/utils"
)

// Strategy is one way of getting rid of a file.
type Strategy interface {
	Name() string
	Remove(path string) error
}

// Result describes how a file was disposed of. Strategy is empty when every
// strategy failed and the file was left in place.
type Result struct {
	Path     string
	Strategy string
	Err      error
}

// Left reports whether the file is still where it was.
func (r Result) Left() bool {
	return r.Strategy == ""
}

// Cleaner applies its strategies in order.
type Cleaner struct {
	strategies []Strategy
}

func New(strategies ...Strategy) *Cleaner {
	return &Cleaner{strategies: strategies}
}

// Default tries the trash first when useTrash is set, then deletes.
func Default(useTrash bool) *Cleaner {
	if useTrash {
		return New(NewTrash(), Delete{})
	}
	return New(Delete{})
}

// Remove disposes of path. Failures never propagate as errors; the returned
// Result carries every strategy's failure joined together.
func (c *Cleaner) Remove(ctx context.Context, path string) Result {
	log := u.FromContext(ctx)
	var errs []error
	for i, s := range c.strategies {
		err := s.Remove(path)
		if err == nil {
			log.Info("Removed temporary file", "path", path, "via", s.Name())
			return Result{Path: path, Strategy: s.Name()}
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		if i < len(c.strategies)-1 {
			log.Warn("Could not remove temporary file, trying next strategy",
				"path", path, "strategy", s.Name(), "next", c.strategies[i+1].Name(), "error", err)
		}
	}
	err := errors.Join(errs...)
	log.Warn("Leaving temporary file in place", "path", path, "error", err)
	return Result{Path: path, Err: err}
}

// Delete removes the file permanently.
type Delete struct{}

func (Delete) Name() string { return "delete" }

func (Delete) Remove(path string) error {
	return os.Remove(path)
}
