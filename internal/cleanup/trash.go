package cleanup

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Bios-Marcel/wastebasket/v2"
)

// Trash moves files to the platform trash: the freedesktop.org trash
// (including per-mount .Trash-$uid directories), the macOS Trash or the
// Windows Recycle Bin.
type Trash struct {
	move func(paths ...string) error
}

func NewTrash() *Trash {
	return &Trash{move: wastebasket.Trash}
}

func (t *Trash) Name() string { return "trash" }

func (t *Trash) Remove(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	// A missing file must fall through to the next strategy, not count as
	// trashed.
	if _, err := os.Lstat(abs); err != nil {
		return err
	}
	move := t.move
	if move == nil {
		move = wastebasket.Trash
	}
	if err := move(abs); err != nil {
		return fmt.Errorf("move to trash: %w", err)
	}
	if _, err := os.Lstat(abs); err == nil {
		return fmt.Errorf("move to trash: %s still present", abs)
	}
	return nil
}
