package vfs

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/tvault/tvault/internal/vaulterr"
)

// nodeDoc is the canonical on-disk shape of a single tree node.
type nodeDoc struct {
	Name       string              `json:"name"`
	CreatedAt  float64             `json:"created_at"`
	ModifiedAt float64             `json:"modified_at"`
	Type       string              `json:"type"`
	Content    string              `json:"content,omitempty"`
	Children   map[string]*nodeDoc `json:"children,omitempty"`
}

// MarshalRoot encodes the tree's root folder into the canonical node
// document shape (the "root" field of the vault's top-level document).
func (t *Tree) MarshalRoot() (json.RawMessage, error) {
	doc := t.toDoc(t.nodes[t.rootID])
	return json.Marshal(doc)
}

func (t *Tree) toDoc(n *node) *nodeDoc {
	doc := &nodeDoc{
		Name:       n.name,
		CreatedAt:  n.createdAt,
		ModifiedAt: n.modifiedAt,
	}
	switch n.kind {
	case kindFile:
		doc.Type = "file"
		doc.Content = base64.StdEncoding.EncodeToString(n.content)
	case kindFolder:
		doc.Type = "folder"
		doc.Children = make(map[string]*nodeDoc, len(n.children))
		for name, id := range n.children {
			doc.Children[name] = t.toDoc(t.nodes[id])
		}
	}
	return doc
}

// UnmarshalRoot rebuilds a Tree from the canonical root node document,
// allocating a fresh arena id for every node (ids are never persisted).
func UnmarshalRoot(raw json.RawMessage) (*Tree, error) {
	var doc nodeDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, vaulterr.Wrap(vaulterr.InvalidFormat, "decode", "", err)
	}
	if doc.Type != "folder" {
		return nil, vaulterr.New(vaulterr.InvalidFormat, "decode", "", "root is not a folder")
	}

	t := &Tree{nodes: map[string]*node{}}
	root, err := t.fromDoc(&doc, "")
	if err != nil {
		return nil, err
	}
	t.rootID = root.id
	return t, nil
}

func (t *Tree) fromDoc(doc *nodeDoc, parentID string) (*node, error) {
	n := &node{
		id:         uuid.NewString(),
		parentID:   parentID,
		name:       doc.Name,
		createdAt:  doc.CreatedAt,
		modifiedAt: doc.ModifiedAt,
	}

	switch doc.Type {
	case "file":
		n.kind = kindFile
		content, err := base64.StdEncoding.DecodeString(doc.Content)
		if err != nil {
			return nil, vaulterr.Wrap(vaulterr.InvalidFormat, "decode", doc.Name, err)
		}
		n.content = content
	case "folder":
		n.kind = kindFolder
		n.children = make(map[string]string, len(doc.Children))
		t.nodes[n.id] = n
		for name, childDoc := range doc.Children {
			child, err := t.fromDoc(childDoc, n.id)
			if err != nil {
				return nil, err
			}
			n.children[name] = child.id
		}
		return n, nil
	default:
		return nil, vaulterr.New(vaulterr.InvalidFormat, "decode", doc.Name, fmt.Sprintf("unknown node type %q", doc.Type))
	}

	t.nodes[n.id] = n
	return n, nil
}
