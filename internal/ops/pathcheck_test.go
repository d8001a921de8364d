package ops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hpungsan/acta/internal/config"
	"github.com/hpungsan/acta/internal/errors"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("{}\n"), 0600); err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
}

func TestValidatePath_Rejections(t *testing.T) {
	unsafe := config.DefaultConfig()
	unsafe.AllowUnsafePaths = true

	tests := []struct {
		name string
		path string
		cfg  *config.Config
	}{
		{"empty", "", unsafe},
		{"parent traversal", "../backup.jsonl", unsafe},
		{"mid-path traversal", "/tmp/../etc/backup.jsonl", unsafe},
		{"no extension", "/tmp/backup", unsafe},
		{"json extension", "/tmp/backup.json", unsafe},
		{"outside allowed dirs", "/tmp/backup.jsonl", config.DefaultConfig()},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePath(tc.path, PathCheckWrite, tc.cfg)
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got: %v", err)
			}
		})
	}
}

func TestValidatePath_DefaultExportsDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir, err := DefaultExportsDir()
	if err != nil {
		t.Fatalf("DefaultExportsDir failed: %v", err)
	}
	if want := filepath.Join(home, ".acta", "exports"); dir != want {
		t.Errorf("DefaultExportsDir = %q, want %q", dir, want)
	}

	if err := ValidatePath(filepath.Join(dir, "all.jsonl"), PathCheckWrite, config.DefaultConfig()); err != nil {
		t.Errorf("expected exports dir to be allowed, got: %v", err)
	}
}

func TestValidatePath_AllowUnsafePaths(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true

	testFile := filepath.Join(tmpDir, "test.jsonl")
	writeFile(t, testFile)

	if err := ValidatePath(testFile, PathCheckRead, cfg); err != nil {
		t.Errorf("read: expected success with AllowUnsafePaths, got: %v", err)
	}
	if err := ValidatePath(filepath.Join(tmpDir, "out.jsonl"), PathCheckWrite, cfg); err != nil {
		t.Errorf("write: expected success with AllowUnsafePaths, got: %v", err)
	}
}

func TestValidatePath_AllowedPaths(t *testing.T) {
	allowed := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{allowed, "relative/ignored"}

	inside := filepath.Join(allowed, "in.jsonl")
	writeFile(t, inside)
	if err := ValidatePath(inside, PathCheckRead, cfg); err != nil {
		t.Errorf("expected success for allowed path, got: %v", err)
	}

	outside := filepath.Join(t.TempDir(), "out.jsonl")
	writeFile(t, outside)
	if err := ValidatePath(outside, PathCheckRead, cfg); err == nil {
		t.Error("expected error for path outside AllowedPaths")
	}
}

func TestValidatePath_FileNotFound_ReadMode(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true

	err := ValidatePath(filepath.Join(t.TempDir(), "missing.jsonl"), PathCheckRead, cfg)
	if !errors.Is(err, errors.ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got: %v", err)
	}
}

func TestValidatePath_NestedPathRejected(t *testing.T) {
	allowed := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{allowed}

	sub := filepath.Join(allowed, "sub")
	if err := os.MkdirAll(sub, 0700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	nested := filepath.Join(sub, "x.jsonl")
	writeFile(t, nested)

	for _, mode := range []PathCheckMode{PathCheckRead, PathCheckWrite} {
		if err := ValidatePath(nested, mode, cfg); !errors.Is(err, errors.ErrInvalidRequest) {
			t.Errorf("mode %d: expected ErrInvalidRequest, got: %v", mode, err)
		}
	}
}

func TestValidatePath_SymlinkRejected(t *testing.T) {
	allowed := t.TempDir()
	target := filepath.Join(t.TempDir(), "secret.jsonl")
	writeFile(t, target)

	link := filepath.Join(allowed, "link.jsonl")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}

	restricted := config.DefaultConfig()
	restricted.AllowedPaths = []string{allowed}
	unsafe := config.DefaultConfig()
	unsafe.AllowUnsafePaths = true

	for name, cfg := range map[string]*config.Config{"allowed_paths": restricted, "unsafe": unsafe} {
		t.Run(name, func(t *testing.T) {
			for _, mode := range []PathCheckMode{PathCheckRead, PathCheckWrite} {
				if err := ValidatePath(link, mode, cfg); !errors.Is(err, errors.ErrInvalidRequest) {
					t.Errorf("mode %d: expected ErrInvalidRequest, got: %v", mode, err)
				}
			}
		})
	}
}

func TestContainsTraversal(t *testing.T) {
	tests := []struct {
		path     string
		contains bool
	}{
		{"/home/user/file.jsonl", false},
		{"../file.jsonl", true},
		{"/home/../etc/passwd", true},
		{"./file.jsonl", false},
		{"/home/user/.hidden/file.jsonl", false},
		{"file..name.jsonl", false},
		{"a/b/..", true},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			if got := containsTraversal(tc.path); got != tc.contains {
				t.Errorf("containsTraversal(%q) = %v, want %v", tc.path, got, tc.contains)
			}
		})
	}
}

func TestSanitizeForFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"standup", "standup"},
		{"q3 planning", "q3 planning"},
		{"path/to/file", "path-to-file"},
		{"path\\to\\file", "path-to-file"},
		{"foo..bar", "foo-bar"},
		{"../../../etc/passwd", "etc-passwd"},
		{"/tmp/evil", "tmp-evil"},
		{"foo\x00bar", "foobar"},
		{"../../..", "unnamed"},
		{"///", "unnamed"},
		{"会议-记录", "会议-记录"},
		{"a---b", "a-b"},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			if got := SanitizeForFilename(tc.input); got != tc.expected {
				t.Errorf("SanitizeForFilename(%q) = %q, want %q", tc.input, got, tc.expected)
			}
		})
	}
}
