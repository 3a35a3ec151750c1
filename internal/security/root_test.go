package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRequireNonRoot(t *testing.T) {
	orig := geteuid
	t.Cleanup(func() { geteuid = orig })

	tests := []struct {
		name    string
		euid    int
		wantErr bool
	}{
		{"root", 0, true},
		{"user", 1000, false},
		{"daemon", 1, false},
		{"no uids on platform", -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			geteuid = func() int { return tt.euid }
			err := RequireNonRoot()
			if tt.wantErr && !errors.Is(err, ErrRunningAsRoot) {
				t.Errorf("err = %v, want ErrRunningAsRoot", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("err = %v, want nil", err)
			}
		})
	}
}

func TestCheckPrivateFile_WhenModeIsOwnerOnly_ShouldPass(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".secrets")
	if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := CheckPrivateFile(path); err != nil {
		t.Errorf("CheckPrivateFile: %v", err)
	}
}

func TestCheckPrivateFile_WhenGroupReadable_ShouldReturnErrWorldReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".secrets")
	if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, 0640); err != nil {
		t.Fatal(err)
	}
	if err := CheckPrivateFile(path); !errors.Is(err, ErrWorldReadable) {
		t.Errorf("err = %v, want ErrWorldReadable", err)
	}
}

func TestCheckPrivateFile_WhenMissing_ShouldPass(t *testing.T) {
	if err := CheckPrivateFile(filepath.Join(t.TempDir(), "absent")); err != nil {
		t.Errorf("CheckPrivateFile: %v", err)
	}
}

func TestCheckPrivateFile_WhenStatFails_ShouldWrapError(t *testing.T) {
	orig := statFn
	t.Cleanup(func() { statFn = orig })
	statFn = func(string) (os.FileInfo, error) { return nil, os.ErrPermission }

	if err := CheckPrivateFile("x"); !errors.Is(err, os.ErrPermission) {
		t.Errorf("err = %v, want ErrPermission", err)
	}
}
