package vault

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCreateOpenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.tvlt")

	v, err := Create(path, "correct horse battery staple", nil, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := v.CreateFolder("Work", ""); err != nil {
		t.Fatalf("create folder: %v", err)
	}
	if _, err := v.AddFile("TODO.txt", []byte("buy milk"), "Work"); err != nil {
		t.Fatalf("add file: %v", err)
	}
	v.Close()

	opened, err := Open(path, "correct horse battery staple", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer opened.Close()

	if opened.IsPanicMode() {
		t.Fatalf("expected a normal open, not panic mode")
	}

	node, err := opened.Resolve("Work/TODO.txt")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if string(node.Content) != "buy milk" {
		t.Fatalf("unexpected content %q", node.Content)
	}
	if !opened.VerifyAudit() {
		t.Fatalf("expected an untampered audit chain to verify")
	}
}

func TestOpenWrongPasswordFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.tvlt")

	v, err := Create(path, "right-password", nil, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	v.Close()

	if _, err := Open(path, "wrong-password", nil); err == nil {
		t.Fatalf("expected opening with the wrong password to fail")
	}
}

func TestPanicModeReturnsEmptySessionWithoutDecrypting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.tvlt")
	panicPassword := "duress-phrase"

	v, err := Create(path, "real-password", &panicPassword, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := v.AddFile("secret.txt", []byte("do not show this"), ""); err != nil {
		t.Fatalf("add file: %v", err)
	}
	v.Close()

	duress, err := Open(path, panicPassword, nil)
	if err != nil {
		t.Fatalf("open under duress: %v", err)
	}
	defer duress.Close()

	if !duress.IsPanicMode() {
		t.Fatalf("expected the duress password to yield panic mode")
	}

	children, err := duress.ListChildren("")
	if err != nil {
		t.Fatalf("list children: %v", err)
	}
	if len(children) != 0 {
		t.Fatalf("expected an empty tree in panic mode, got %d children", len(children))
	}
}

func TestPanicModeSaveIsNoOp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.tvlt")
	panicPassword := "duress-phrase"

	v, err := Create(path, "real-password", &panicPassword, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	v.Close()

	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read before: %v", err)
	}

	duress, err := Open(path, panicPassword, nil)
	if err != nil {
		t.Fatalf("open under duress: %v", err)
	}
	if _, err := duress.CreateFolder("wont-be-saved", ""); err != nil {
		t.Fatalf("create folder under duress: %v", err)
	}
	duress.Close()

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read after: %v", err)
	}
	if string(before) != string(after) {
		t.Fatalf("expected the on-disk container to be untouched by a duress session")
	}
}

func TestChangePasswordRequiresOldPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.tvlt")

	v, err := Create(path, "original-password", nil, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := v.ChangePassword("wrong-old-password", "new-password"); err == nil {
		t.Fatalf("expected a wrong old password to be rejected")
	}
	if err := v.ChangePassword("original-password", "new-password"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	v.Close()

	if _, err := Open(path, "new-password", nil); err != nil {
		t.Fatalf("expected to open with the new password, got %v", err)
	}
	if _, err := Open(path, "original-password", nil); err == nil {
		t.Fatalf("expected the old password to no longer work")
	}
}

func TestDeleteAndRenameRefuseRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.tvlt")

	v, err := Create(path, "password123456", nil, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer v.Close()

	if err := v.DeleteNode(""); err == nil {
		t.Fatalf("expected deleting root to fail")
	}
	if err := v.RenameNode("", "newroot"); err == nil {
		t.Fatalf("expected renaming root to fail")
	}
}

func TestUpdateFilePushesRestorableVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.tvlt")

	v, err := Create(path, "password123456", nil, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer v.Close()

	if _, err := v.AddFile("notes.txt", []byte("version one"), ""); err != nil {
		t.Fatalf("add file: %v", err)
	}
	if err := v.UpdateFile("notes.txt", []byte("version two")); err != nil {
		t.Fatalf("update file: %v", err)
	}

	versionsList, err := v.ListVersions("notes.txt")
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	if len(versionsList) != 1 {
		t.Fatalf("expected one retained version, got %d", len(versionsList))
	}
	if string(versionsList[0].Content) != "version one" {
		t.Fatalf("expected the retained version to hold the pre-update content, got %q", versionsList[0].Content)
	}

	if err := v.Restore("notes.txt", versionsList[0].Content); err != nil {
		t.Fatalf("restore: %v", err)
	}
	node, err := v.Resolve("notes.txt")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if string(node.Content) != "version one" {
		t.Fatalf("expected restore to bring back version one, got %q", node.Content)
	}
}
