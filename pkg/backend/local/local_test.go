package local

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/LazuliKao/SFTPServer/pkg/backend"
)

func expectCode(t *testing.T, err error, code backend.ErrorCode) {
	t.Helper()
	var domainErr *backend.Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("Expected *backend.Error, got %T: %v", err, err)
	}
	if domainErr.Code != code {
		t.Errorf("Expected error code %d, got %d (%v)", code, domainErr.Code, domainErr)
	}
}

func TestResolvePathJailsClientPaths(t *testing.T) {
	b := New("/srv/sftp")

	tests := []struct {
		root, path, want string
	}{
		{"/", "/a/b.txt", filepath.Join("/srv/sftp", "a", "b.txt")},
		{"/", "../../etc/passwd", filepath.Join("/srv/sftp", "etc", "passwd")},
		{"/", "a/../../b", filepath.Join("/srv/sftp", "b")},
		{"/", "", "/srv/sftp"},
		{"/", "/", "/srv/sftp"},
		{"", "x.txt", filepath.Join("/srv/sftp", "x.txt")},
		{"/home", "x.txt", filepath.Join("/srv/sftp", "home", "x.txt")},
		{"/home", "../../etc/passwd", filepath.Join("/srv/sftp", "home", "etc", "passwd")},
	}

	for _, tt := range tests {
		got, err := b.ResolvePath(tt.root, tt.path)
		if err != nil {
			t.Fatalf("ResolvePath(%q, %q) failed: %v", tt.root, tt.path, err)
		}
		if got != tt.want {
			t.Errorf("ResolvePath(%q, %q) = %q, want %q", tt.root, tt.path, got, tt.want)
		}
	}
}

func TestResolvePathRequiresBase(t *testing.T) {
	b := New("")
	if _, err := b.ResolvePath("/", "x.txt"); err == nil {
		t.Error("Expected error with no base directory")
	}
}

func TestFileLifecycle(t *testing.T) {
	dir := t.TempDir()
	b := New(dir)
	ctx := context.Background()
	p := filepath.Join(dir, "file.txt")

	h, err := b.Open(ctx, p, os.O_WRONLY|os.O_CREATE, &backend.FileAttributes{Permissions: backend.U32(0o640)})
	if err != nil {
		t.Fatalf("Open for create failed: %v", err)
	}
	if err := b.Write(ctx, h, 0, []byte("hello local")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := b.Close(ctx, h); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	h, err = b.Open(ctx, p, os.O_RDONLY, nil)
	if err != nil {
		t.Fatalf("Open for read failed: %v", err)
	}

	// A read reaching past the end still returns the available bytes.
	data, err := b.Read(ctx, h, 0, 1024)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != "hello local" {
		t.Errorf("Expected 'hello local', got %q", data)
	}

	_, err = b.Read(ctx, h, uint64(len(data)), 1024)
	expectCode(t, err, backend.ErrEOF)

	attrs, err := b.Fstat(ctx, h)
	if err != nil {
		t.Fatalf("Fstat failed: %v", err)
	}
	if *attrs.Size != 11 {
		t.Errorf("Expected size 11, got %d", *attrs.Size)
	}

	if err := b.Close(ctx, h); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := b.Remove(ctx, p); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	_, err = b.Stat(ctx, p)
	expectCode(t, err, backend.ErrNotFound)
}

func TestErrorMapping(t *testing.T) {
	dir := t.TempDir()
	b := New(dir)
	ctx := context.Background()

	_, err := b.Open(ctx, filepath.Join(dir, "missing"), os.O_RDONLY, nil)
	expectCode(t, err, backend.ErrNotFound)

	_, err = b.Stat(ctx, filepath.Join(dir, "missing"))
	expectCode(t, err, backend.ErrNotFound)

	p := filepath.Join(dir, "exists")
	if err := os.WriteFile(p, nil, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	_, err = b.Open(ctx, p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, nil)
	if err == nil {
		t.Fatal("Expected O_EXCL on existing file to fail")
	}
}

func TestDirectoryOperations(t *testing.T) {
	dir := t.TempDir()
	b := New(dir)
	ctx := context.Background()

	sub := filepath.Join(dir, "sub")
	if err := b.Mkdir(ctx, sub, nil); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	for _, name := range []string{"one", "two", "three"} {
		if err := os.WriteFile(filepath.Join(sub, name), []byte(name), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	h, err := b.Opendir(ctx, sub)
	if err != nil {
		t.Fatalf("Opendir failed: %v", err)
	}

	seen := map[string]bool{}
	for {
		entries, err := b.Readdir(ctx, h)
		if err != nil {
			expectCode(t, err, backend.ErrEOF)
			break
		}
		for _, e := range entries {
			seen[e.Name] = true
			if e.LongName == "" {
				t.Errorf("Entry %q has no long name", e.Name)
			}
		}
	}
	for _, name := range []string{"one", "two", "three"} {
		if !seen[name] {
			t.Errorf("Entry %q missing from listing", name)
		}
	}

	if err := b.Close(ctx, h); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Opendir on a regular file is rejected.
	if _, err := b.Opendir(ctx, filepath.Join(sub, "one")); err == nil {
		t.Error("Expected Opendir on a file to fail")
	}

	// Removal rules mirror the wire operations: REMOVE for files, RMDIR for
	// directories.
	if err := b.Remove(ctx, sub); err == nil {
		t.Error("Expected Remove on a directory to fail")
	}
	if err := b.Rmdir(ctx, filepath.Join(sub, "one")); err == nil {
		t.Error("Expected Rmdir on a file to fail")
	}
	if err := b.Rmdir(ctx, sub); err == nil {
		t.Error("Expected Rmdir on a non-empty directory to fail")
	}

	for _, name := range []string{"one", "two", "three"} {
		if err := b.Remove(ctx, filepath.Join(sub, name)); err != nil {
			t.Fatalf("Remove failed: %v", err)
		}
	}
	if err := b.Rmdir(ctx, sub); err != nil {
		t.Fatalf("Rmdir on empty directory failed: %v", err)
	}
}

func TestRenameRefusesClobber(t *testing.T) {
	dir := t.TempDir()
	b := New(dir)
	ctx := context.Background()

	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	if err := os.WriteFile(src, []byte("content"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if err := b.Rename(ctx, src, dst); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("Destination missing after rename: %v", err)
	}

	if err := os.WriteFile(src, []byte("again"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := b.Rename(ctx, src, dst); err == nil {
		t.Error("Expected rename onto existing file to fail")
	}
}

func TestSymlinks(t *testing.T) {
	dir := t.TempDir()
	b := New(dir)
	ctx := context.Background()

	target := filepath.Join(dir, "target")
	link := filepath.Join(dir, "link")
	if err := os.WriteFile(target, []byte("data"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if err := b.Symlink(ctx, link, "target"); err != nil {
		t.Fatalf("Symlink failed: %v", err)
	}

	got, err := b.Readlink(ctx, link)
	if err != nil {
		t.Fatalf("Readlink failed: %v", err)
	}
	// Relative targets are stored verbatim.
	if got != "target" {
		t.Errorf("Expected target 'target', got %q", got)
	}

	// Lstat sees the link, Stat the target.
	attrs, err := b.Lstat(ctx, link)
	if err != nil {
		t.Fatalf("Lstat failed: %v", err)
	}
	if *attrs.Permissions&backend.ModeSymlink == 0 {
		t.Errorf("Expected symlink type bits, got %o", *attrs.Permissions)
	}

	attrs, err = b.Stat(ctx, link)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if *attrs.Size != 4 {
		t.Errorf("Expected size 4 through symlink, got %d", *attrs.Size)
	}
}

func TestSetstatTruncateAndChmod(t *testing.T) {
	dir := t.TempDir()
	b := New(dir)
	ctx := context.Background()

	p := filepath.Join(dir, "f")
	if err := os.WriteFile(p, []byte("0123456789"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	err := b.Setstat(ctx, p, &backend.FileAttributes{
		Size:        backend.U64(4),
		Permissions: backend.U32(0o600),
	})
	if err != nil {
		t.Fatalf("Setstat failed: %v", err)
	}

	info, err := os.Stat(p)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 4 {
		t.Errorf("Expected size 4, got %d", info.Size())
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("Expected mode 0600, got %o", info.Mode().Perm())
	}
}

// ============================================================================
// Extension tests
// ============================================================================

func wireString(s string) []byte {
	out := make([]byte, 4+len(s))
	binary.BigEndian.PutUint32(out, uint32(len(s)))
	copy(out[4:], s)
	return out
}

func TestInitSessionAdvertisesHomeDirectory(t *testing.T) {
	b := New(t.TempDir())

	exts, err := b.InitSession(context.Background(), 3, backend.Identity{Username: "alice"}, nil)
	if err != nil {
		t.Fatalf("InitSession failed: %v", err)
	}

	found := false
	for _, ext := range exts {
		if ext.Name == "home-directory" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected home-directory in advertised extensions, got %v", exts)
	}
}

func TestExtendedHomeDirectory(t *testing.T) {
	b := New(t.TempDir())

	req := bytes.NewReader(wireString("alice"))
	var resp bytes.Buffer
	if err := b.Extended(context.Background(), "home-directory", req, &resp); err != nil {
		t.Fatalf("Extended failed: %v", err)
	}

	// Sessions are jailed, so every user's home is the root.
	if !bytes.Equal(resp.Bytes(), wireString("/")) {
		t.Errorf("Expected reply %v, got %v", wireString("/"), resp.Bytes())
	}
}

func TestExtendedUnknownName(t *testing.T) {
	b := New(t.TempDir())

	err := b.Extended(context.Background(), "nope@example.com", bytes.NewReader(nil), &bytes.Buffer{})
	expectCode(t, err, backend.ErrNotSupported)
}

func TestExtendedHomeDirectoryRejectsHugeLength(t *testing.T) {
	b := New(t.TempDir())

	// A length prefix far past the cap must fail instead of allocating.
	var req bytes.Buffer
	binary.Write(&req, binary.BigEndian, uint32(1<<31))
	req.WriteString("x")

	err := b.Extended(context.Background(), "home-directory", &req, &bytes.Buffer{})
	if err == nil {
		t.Fatal("Expected oversized string length to fail")
	}
}
