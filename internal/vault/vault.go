// Package vault is the facade that orchestrates the crypto envelope, the
// VFS tree, the version store, and the audit log into create/open/save
// and the mutating operations, including duress (panic) mode gating.
package vault

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tvault/tvault/internal/audit"
	"github.com/tvault/tvault/internal/envelope"
	"github.com/tvault/tvault/internal/hostenv"
	"github.com/tvault/tvault/internal/vaulterr"
	"github.com/tvault/tvault/internal/vcrypto"
	"github.com/tvault/tvault/internal/versions"
	"github.com/tvault/tvault/internal/vfs"
)

// Vault is an open, authenticated session against one container file.
type Vault struct {
	path      string
	salt      []byte
	key       []byte
	panicHash *string
	panicMode bool

	tree     *vfs.Tree
	log      *audit.Log
	settings map[string]json.RawMessage

	logger *slog.Logger
}

// document is the canonical top-level JSON shape the encrypted payload
// holds: root tree, audit entries, and a reserved settings object that is
// preserved verbatim across saves even though nothing writes into it yet.
type document struct {
	Root     json.RawMessage            `json:"root"`
	Audit    []audit.Entry              `json:"audit"`
	Settings map[string]json.RawMessage `json:"settings"`
}

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// Create initializes a brand-new vault at path, derives its key from
// password, optionally records a panic-password fingerprint, appends
// VAULT_CREATE, and performs the initial save.
func Create(path, password string, panicPassword *string, logger *slog.Logger) (*Vault, error) {
	if logger == nil {
		logger = nopLogger()
	}

	salt, err := vcrypto.NewSalt()
	if err != nil {
		return nil, err
	}
	key := vcrypto.DeriveKey(password, salt)

	v := &Vault{
		path:     path,
		salt:     salt,
		key:      key,
		tree:     vfs.NewTree(),
		log:      audit.NewLog(),
		settings: map[string]json.RawMessage{},
		logger:   logger,
	}

	if panicPassword != nil {
		h := panicFingerprint(*panicPassword, salt)
		v.panicHash = &h
	}

	v.LogAction("VAULT_CREATE", "root")

	if err := v.Save(); err != nil {
		return nil, err
	}
	return v, nil
}

func panicFingerprint(passphrase string, salt []byte) string {
	return vcrypto.ContentHash(append([]byte(passphrase), salt...))
}

// Open reads the container at path and authenticates password against it.
// If password matches the stored panic fingerprint, the returned Vault is
// in panic mode: an empty tree and audit log, the real payload never
// decrypted. Otherwise the real payload is decrypted and rebuilt; a
// failed audit chain verification is logged as a warning but never
// prevents the open from succeeding.
func Open(path, password string, logger *slog.Logger) (*Vault, error) {
	if logger == nil {
		logger = nopLogger()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.IO, "open", path, err)
	}

	header, ciphertext, err := envelope.Decode(raw)
	if err != nil {
		return nil, err
	}

	salt, err := hex.DecodeString(header.Salt)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.InvalidFormat, "open", path, err)
	}
	candidateKey := vcrypto.DeriveKey(password, salt)

	if header.PanicHash != nil {
		if panicFingerprint(password, salt) == *header.PanicHash {
			return &Vault{
				path:      path,
				salt:      salt,
				key:       candidateKey,
				panicHash: header.PanicHash,
				panicMode: true,
				tree:      vfs.NewTree(),
				log:       audit.NewLog(),
				settings:  map[string]json.RawMessage{},
				logger:    logger,
			}, nil
		}
	}

	plaintext, err := vcrypto.Decrypt(candidateKey, ciphertext)
	if err != nil {
		return nil, vaulterr.New(vaulterr.Auth, "open", path, "Decryption failed. Wrong password.")
	}

	var doc document
	if err := json.Unmarshal(plaintext, &doc); err != nil {
		return nil, vaulterr.Wrap(vaulterr.InvalidFormat, "open", path, err)
	}

	tree, err := vfs.UnmarshalRoot(doc.Root)
	if err != nil {
		return nil, err
	}
	log := &audit.Log{Entries: doc.Audit}

	if !log.Verify(candidateKey) {
		logger.Warn("audit chain integrity check failed", "path", path)
	}

	v := &Vault{
		path:      path,
		salt:      salt,
		key:       candidateKey,
		panicHash: header.PanicHash,
		tree:      tree,
		log:       log,
		settings:  doc.Settings,
		logger:    logger,
	}
	if v.settings == nil {
		v.settings = map[string]json.RawMessage{}
	}

	v.LogAction("VAULT_OPEN", "root")
	return v, nil
}

// Save persists the current in-memory state atomically. While in panic
// mode it is a deliberate no-op: this is what keeps a duress session from
// ever overwriting real data on disk.
func (v *Vault) Save() error {
	if v.panicMode {
		return nil
	}

	rootJSON, err := v.tree.MarshalRoot()
	if err != nil {
		return vaulterr.Wrap(vaulterr.IO, "save", v.path, err)
	}

	doc := document{
		Root:     rootJSON,
		Audit:    v.log.Entries,
		Settings: v.settings,
	}
	plaintext, err := json.Marshal(doc)
	if err != nil {
		return vaulterr.Wrap(vaulterr.IO, "save", v.path, err)
	}

	ciphertext, err := vcrypto.Encrypt(v.key, plaintext)
	if err != nil {
		return vaulterr.Wrap(vaulterr.IO, "save", v.path, err)
	}

	header := envelope.Header{
		Version:   envelope.CurrentVersion,
		KDF:       vcrypto.KDFName,
		Salt:      hex.EncodeToString(v.salt),
		Cipher:    vcrypto.CipherName,
		PanicHash: v.panicHash,
	}
	blob, err := envelope.Encode(header, ciphertext)
	if err != nil {
		return vaulterr.Wrap(vaulterr.IO, "save", v.path, err)
	}

	return atomicWrite(v.path, blob)
}

// atomicWrite writes data to a temp file in the same directory as path,
// fsyncs it, then renames it over path. A failed rename leaves the prior
// file intact; a partial temp file is never visible at path.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return vaulterr.Wrap(vaulterr.IO, "save", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".tvault-tmp-*")
	if err != nil {
		return vaulterr.Wrap(vaulterr.IO, "save", path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return vaulterr.Wrap(vaulterr.IO, "save", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return vaulterr.Wrap(vaulterr.IO, "save", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return vaulterr.Wrap(vaulterr.IO, "save", path, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return vaulterr.Wrap(vaulterr.IO, "save", path, err)
	}
	return nil
}

// LogAction appends an entry to the audit chain. It is a no-op in panic
// mode, per the source behavior of never growing a duress session's log.
func (v *Vault) LogAction(action, target string) {
	if v.panicMode {
		return
	}
	v.log.Append(v.key, action, target, hostenv.User(), hostenv.Host(), nowFloat())
}

// VerifyAudit recomputes the full hash-and-signature chain under the
// current key.
func (v *Vault) VerifyAudit() bool {
	return v.log.Verify(v.key)
}

// Resolve looks up path in the current tree.
func (v *Vault) Resolve(path string) (vfs.Node, error) {
	return v.tree.Resolve(path)
}

// AddFile adds a file under parentPath, then logs and saves.
func (v *Vault) AddFile(name string, content []byte, parentPath string) (string, error) {
	path, err := v.tree.AddFile(name, content, parentPath)
	if err != nil {
		return "", err
	}
	v.LogAction("FILE_CREATE", parentPath+"/"+name)
	return path, v.Save()
}

// CreateFolder creates a folder under parentPath, then logs and saves.
func (v *Vault) CreateFolder(name, parentPath string) (string, error) {
	path, err := v.tree.CreateFolder(name, parentPath)
	if err != nil {
		return "", err
	}
	v.LogAction("FOLDER_CREATE", parentPath+"/"+name)
	return path, v.Save()
}

// UpdateFile pushes a version of the file's current content, replaces it
// with the new content, then logs and saves.
func (v *Vault) UpdateFile(path string, content []byte) error {
	node, err := v.tree.Resolve(path)
	if err != nil {
		return err
	}
	if node.IsFolder {
		return vaulterr.New(vaulterr.NotAFolder, "update_file", path, "target is a folder")
	}

	if err := versions.Push(v.tree, node.Name, node.Content, nowFloat()); err != nil {
		return vaulterr.Wrap(vaulterr.IO, "update_file", path, err)
	}

	if _, err := v.tree.UpdateFile(path, content); err != nil {
		return err
	}

	v.LogAction("FILE_EDIT", path)
	return v.Save()
}

// DeleteNode removes path (refusing the root), then logs and saves.
func (v *Vault) DeleteNode(path string) error {
	if err := v.tree.DeleteNode(path); err != nil {
		return err
	}
	v.LogAction("DELETE", path)
	return v.Save()
}

// RenameNode renames path to newName (refusing the root and collisions),
// then logs and saves. A no-op rename (names equal) still saves, matching
// the idempotent-save contract in §6.
func (v *Vault) RenameNode(path, newName string) error {
	if err := v.tree.RenameNode(path, newName); err != nil {
		return err
	}
	v.LogAction("RENAME", fmt.Sprintf("%s -> %s", path, newName))
	return v.Save()
}

// ChangePassword verifies old against the in-memory key, derives a new
// key from new against the existing salt, swaps it in, logs, and saves.
// The salt is never rotated, so the stored panic fingerprint keeps
// matching the original duress passphrase.
func (v *Vault) ChangePassword(old, newPassword string) error {
	candidate := vcrypto.DeriveKey(old, v.salt)
	if !bytes.Equal(candidate, v.key) {
		return vaulterr.New(vaulterr.Auth, "change_password", v.path, "old password does not match")
	}

	v.key = vcrypto.DeriveKey(newPassword, v.salt)
	v.LogAction("PASSWORD_CHANGE", "vault")
	return v.Save()
}

// ListChildren returns the visible (non-hidden) children of the folder at
// path.
func (v *Vault) ListChildren(path string) ([]vfs.Node, error) {
	return v.tree.ListChildren(path)
}

// ListVersions returns the retained snapshots of the file named name,
// oldest first.
func (v *Vault) ListVersions(name string) ([]vfs.Node, error) {
	return versions.List(v.tree, name)
}

// Restore replaces path's content with a chosen version's bytes via the
// normal UpdateFile path — which itself pushes another version, making a
// restore undoable by design.
func (v *Vault) Restore(path string, versionContent []byte) error {
	return v.UpdateFile(path, versionContent)
}

// IsPanicMode reports whether this session is a duress session.
func (v *Vault) IsPanicMode() bool {
	return v.panicMode
}

// Close zeroes the in-memory key. The Vault must not be used afterward.
func (v *Vault) Close() {
	for i := range v.key {
		v.key[i] = 0
	}
	v.key = nil
}
