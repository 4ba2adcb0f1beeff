// Package versions implements the vault's per-file history: a shadow
// ".versions" folder holding at most five prior snapshots of each file,
// evicted oldest-first by creation time. Pushing a version is never
// itself an audited action (per the source behavior this vault follows),
// so this package never touches the audit log.
package versions

import (
	"fmt"
	"math"
	"sort"

	"github.com/tvault/tvault/internal/vfs"
)

// MaxPerFile is the number of snapshots retained per original file name.
const MaxPerFile = 5

// Push snapshots content (the file's *pre-update* bytes) under the
// versions folder and evicts the oldest siblings down to MaxPerFile. name
// is the original file's name (not its full path); at is the push time in
// fractional unix seconds.
func Push(tree *vfs.Tree, name string, content []byte, at float64) error {
	if _, err := tree.EnsureFolder(vfs.VersionsFolderName, ""); err != nil {
		return fmt.Errorf("versions: failed to ensure .versions folder: %w", err)
	}

	snapshotName := fmt.Sprintf("%s.%d.bak", name, int64(math.Floor(at)))

	// A same-second collision overwrites the previous snapshot outright:
	// delete-then-add keeps this a plain replace rather than a second
	// entry the eviction pass would then have to disambiguate.
	_ = tree.DeleteChild(vfs.VersionsFolderName, snapshotName)
	if _, err := tree.AddFile(snapshotName, content, vfs.VersionsFolderName); err != nil {
		return fmt.Errorf("versions: failed to push snapshot: %w", err)
	}

	return evict(tree, name)
}

// evict keeps only the MaxPerFile most recent (by created_at) snapshots
// whose name is prefixed "{name}." under the versions folder.
func evict(tree *vfs.Tree, name string) error {
	siblings, err := tree.VersionSiblings(vfs.VersionsFolderName, name+".")
	if err != nil {
		return fmt.Errorf("versions: failed to list snapshots: %w", err)
	}

	sort.Slice(siblings, func(i, j int) bool {
		return siblings[i].CreatedAt < siblings[j].CreatedAt
	})

	excess := len(siblings) - MaxPerFile
	for i := 0; i < excess; i++ {
		if err := tree.DeleteChild(vfs.VersionsFolderName, siblings[i].Name); err != nil {
			return fmt.Errorf("versions: failed to evict snapshot: %w", err)
		}
	}
	return nil
}

// List returns every retained snapshot of name, oldest first.
func List(tree *vfs.Tree, name string) ([]vfs.Node, error) {
	siblings, err := tree.VersionSiblings(vfs.VersionsFolderName, name+".")
	if err != nil {
		return nil, fmt.Errorf("versions: failed to list snapshots: %w", err)
	}
	sort.Slice(siblings, func(i, j int) bool {
		return siblings[i].CreatedAt < siblings[j].CreatedAt
	})
	return siblings, nil
}
