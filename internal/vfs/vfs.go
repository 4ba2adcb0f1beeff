// Package vfs holds the in-memory virtual filesystem: an arena-backed
// tree of folders and files, reachable only through path-based operations,
// serialized to and from the canonical JSON node document.
//
// The tree is kept in a map[id]*node arena rather than a pointer-linked
// tree so that a node's parent back-reference and its container's forward
// reference can never drift out of sync during a rename: the parent's
// children map re-keys the name, the child's own id never moves, and
// nothing needs to walk up a chain of parent pointers to fix anything up.
package vfs

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tvault/tvault/internal/vaulterr"
)

// VersionsFolderName is the reserved, root-level folder the version store
// lives in. It is a normal folder to the tree; only user-facing listings
// hide it.
const VersionsFolderName = ".versions"

const rootName = "root"

type kind int

const (
	kindFile kind = iota
	kindFolder
)

// node is the arena-internal representation of a tree entry.
type node struct {
	id         string
	parentID   string // "" only for root
	name       string
	createdAt  float64
	modifiedAt float64
	kind       kind
	content    []byte            // file only
	children   map[string]string // folder only: name -> child id
}

// Node is the read-only, caller-facing view of a resolved tree entry.
type Node struct {
	Name       string
	Path       string
	CreatedAt  float64
	ModifiedAt float64
	IsFolder   bool
	Content    []byte // nil for folders
}

// Tree is the in-memory VFS.
type Tree struct {
	nodes  map[string]*node
	rootID string
}

// NewTree builds an empty tree with a single root folder named "root".
func NewTree() *Tree {
	now := nowFloat()
	root := &node{
		id:         uuid.NewString(),
		name:       rootName,
		createdAt:  now,
		modifiedAt: now,
		kind:       kindFolder,
		children:   map[string]string{},
	}
	return &Tree{
		nodes:  map[string]*node{root.id: root},
		rootID: root.id,
	}
}

func nowFloat() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// Resolve looks up path ("" and "/" mean root; "///" collapses the same
// way since empty segments are discarded) and returns a snapshot Node.
func (t *Tree) Resolve(path string) (Node, error) {
	n, err := t.resolveNode(path)
	if err != nil {
		return Node{}, err
	}
	return t.snapshot(n), nil
}

// resolveNode walks path from root through the arena, returning the
// internal node (never hand this pointer to callers outside the package).
func (t *Tree) resolveNode(path string) (*node, error) {
	segments := splitPath(path)
	cur := t.nodes[t.rootID]

	for i, seg := range segments {
		if cur.kind != kindFolder {
			return nil, vaulterr.New(vaulterr.NotAFolder, "resolve", joinPath(segments[:i]), "not a folder")
		}
		childID, ok := cur.children[seg]
		if !ok {
			return nil, vaulterr.New(vaulterr.NotFound, "resolve", joinPath(segments[:i+1]), "no such node")
		}
		cur = t.nodes[childID]
	}
	return cur, nil
}

func (t *Tree) snapshot(n *node) Node {
	out := Node{
		Name:       n.name,
		Path:       t.pathOf(n),
		CreatedAt:  n.createdAt,
		ModifiedAt: n.modifiedAt,
		IsFolder:   n.kind == kindFolder,
	}
	if n.kind == kindFile {
		out.Content = append([]byte(nil), n.content...)
	}
	return out
}

func (t *Tree) pathOf(n *node) string {
	var parts []string
	for n.id != t.rootID {
		parts = append([]string{n.name}, parts...)
		n = t.nodes[n.parentID]
	}
	return joinPath(parts)
}

// CreateFolder adds an empty folder named name under parentPath. Fails if
// the parent isn't a folder or name collides with an existing sibling.
func (t *Tree) CreateFolder(name, parentPath string) (string, error) {
	parent, err := t.resolveFolder("create_folder", parentPath)
	if err != nil {
		return "", err
	}
	if _, exists := parent.children[name]; exists {
		return "", vaulterr.New(vaulterr.Collision, "create_folder", joinPath(append(splitPath(parentPath), name)), "name already exists")
	}

	now := nowFloat()
	child := &node{
		id:         uuid.NewString(),
		parentID:   parent.id,
		name:       name,
		createdAt:  now,
		modifiedAt: now,
		kind:       kindFolder,
		children:   map[string]string{},
	}
	t.nodes[child.id] = child
	parent.children[name] = child.id
	parent.modifiedAt = now

	return t.pathOf(child), nil
}

// AddFile adds a file named name with the given content under parentPath.
// Fails on a sibling name collision.
func (t *Tree) AddFile(name string, content []byte, parentPath string) (string, error) {
	parent, err := t.resolveFolder("add_file", parentPath)
	if err != nil {
		return "", err
	}
	if _, exists := parent.children[name]; exists {
		return "", vaulterr.New(vaulterr.Collision, "add_file", joinPath(append(splitPath(parentPath), name)), "name already exists")
	}

	now := nowFloat()
	child := &node{
		id:         uuid.NewString(),
		parentID:   parent.id,
		name:       name,
		createdAt:  now,
		modifiedAt: now,
		kind:       kindFile,
		content:    append([]byte(nil), content...),
	}
	t.nodes[child.id] = child
	parent.children[name] = child.id
	parent.modifiedAt = now

	return t.pathOf(child), nil
}

// UpdateFile replaces a file's content in place and bumps modified_at.
// Returns the file's previous content.
func (t *Tree) UpdateFile(path string, content []byte) (previous []byte, err error) {
	n, err := t.resolveNode(path)
	if err != nil {
		return nil, err
	}
	if n.kind != kindFile {
		return nil, vaulterr.New(vaulterr.NotAFolder, "update_file", path, "target is a folder")
	}

	previous = n.content
	n.content = append([]byte(nil), content...)
	n.modifiedAt = nowFloat()
	return previous, nil
}

// RenameNode re-keys path's parent child map and updates the node's own
// name. A no-op if new_name equals the current name; fails on a sibling
// collision. The root may not be renamed (it has no parent to re-key).
func (t *Tree) RenameNode(path, newName string) error {
	n, err := t.resolveNode(path)
	if err != nil {
		return err
	}
	if n.id == t.rootID {
		return vaulterr.New(vaulterr.IllegalOperation, "rename_node", path, "cannot rename root")
	}
	if n.name == newName {
		return nil
	}

	parent := t.nodes[n.parentID]
	if _, exists := parent.children[newName]; exists {
		return vaulterr.New(vaulterr.Collision, "rename_node", path, "name already exists")
	}

	delete(parent.children, n.name)
	parent.children[newName] = n.id
	n.name = newName
	now := nowFloat()
	n.modifiedAt = now
	parent.modifiedAt = now
	return nil
}

// DeleteNode removes path from its parent, releasing the whole subtree from
// the arena so a deleted folder's descendants don't linger as unreachable
// map entries for the lifetime of the Tree. Refuses to delete the root.
func (t *Tree) DeleteNode(path string) error {
	n, err := t.resolveNode(path)
	if err != nil {
		return err
	}
	if n.id == t.rootID {
		return vaulterr.New(vaulterr.IllegalOperation, "delete_node", path, "cannot delete root")
	}

	parent := t.nodes[n.parentID]
	delete(parent.children, n.name)
	t.deleteSubtree(n)
	parent.modifiedAt = nowFloat()
	return nil
}

// EnsureFolder returns the path of the folder name under parentPath,
// creating it if absent. parentPath must already resolve to a folder; it
// is never created here. Used by the version
// store to lazily materialize .versions without going through the audited
// CreateFolder path.
func (t *Tree) EnsureFolder(name, parentPath string) (string, error) {
	parent, err := t.resolveFolder("ensure_folder", parentPath)
	if err != nil {
		return "", err
	}
	if id, exists := parent.children[name]; exists {
		existing := t.nodes[id]
		if existing.kind != kindFolder {
			return "", vaulterr.New(vaulterr.NotAFolder, "ensure_folder", name, "exists and is not a folder")
		}
		return t.pathOf(existing), nil
	}
	return t.CreateFolder(name, parentPath)
}

// ListChildren returns the direct children of the folder at path, in
// name order. When path resolves to the root, the reserved .versions
// folder is omitted so it stays hidden from user-facing enumerations.
func (t *Tree) ListChildren(path string) ([]Node, error) {
	n, err := t.resolveFolder("resolve", path)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(n.children))
	for name := range n.children {
		if n.id == t.rootID && name == VersionsFolderName {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Node, 0, len(names))
	for _, name := range names {
		out = append(out, t.snapshot(t.nodes[n.children[name]]))
	}
	return out, nil
}

// VersionSiblings returns every node directly under parentPath whose name
// has namePrefix as a prefix, in path-arbitrary order (callers sort).
func (t *Tree) VersionSiblings(parentPath, namePrefix string) ([]Node, error) {
	n, err := t.resolveFolder("version_siblings", parentPath)
	if err != nil {
		return nil, err
	}
	var out []Node
	for name, id := range n.children {
		if len(name) > len(namePrefix) && name[:len(namePrefix)] == namePrefix {
			out = append(out, t.snapshot(t.nodes[id]))
		}
	}
	return out, nil
}

// DeleteChild removes a named child of parentPath directly, bypassing
// path re-resolution. Used by the version store to evict old snapshots.
func (t *Tree) DeleteChild(parentPath, name string) error {
	parent, err := t.resolveFolder("delete_child", parentPath)
	if err != nil {
		return err
	}
	id, ok := parent.children[name]
	if !ok {
		return vaulterr.New(vaulterr.NotFound, "delete_child", name, "no such node")
	}
	delete(parent.children, name)
	t.deleteSubtree(t.nodes[id])
	parent.modifiedAt = nowFloat()
	return nil
}

// deleteSubtree removes n and, if it's a folder, every descendant from the
// arena. The caller is responsible for unlinking n from its parent first.
func (t *Tree) deleteSubtree(n *node) {
	if n.kind == kindFolder {
		for _, childID := range n.children {
			t.deleteSubtree(t.nodes[childID])
		}
	}
	delete(t.nodes, n.id)
}

func (t *Tree) resolveFolder(op, path string) (*node, error) {
	n, err := t.resolveNode(path)
	if err != nil {
		return nil, err
	}
	if n.kind != kindFolder {
		return nil, vaulterr.New(vaulterr.NotAFolder, op, path, "not a folder")
	}
	return n, nil
}

func splitPath(path string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			if i > start {
				out = append(out, path[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func joinPath(segments []string) string {
	out := ""
	for i, s := range segments {
		if i > 0 {
			out += "/"
		}
		out += s
	}
	return out
}
