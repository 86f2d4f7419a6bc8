package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func initRepo(t *testing.T, dir string) {
	t.Helper()
	run := func(args ...string) {
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}
	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
}

func TestIsRepoFalseForPlainDir(t *testing.T) {
	tmp := t.TempDir()
	if IsRepo(tmp) {
		t.Error("expected plain directory to not be a git repo")
	}
}

func TestIsRepoTrueAfterInit(t *testing.T) {
	tmp := t.TempDir()
	initRepo(t, tmp)
	if !IsRepo(tmp) {
		t.Error("expected initialized directory to be a git repo")
	}
}

func TestGetInfoDirtyState(t *testing.T) {
	tmp := t.TempDir()
	initRepo(t, tmp)

	file := filepath.Join(tmp, "a.txt")
	if err := writeFile(file, "hello"); err != nil {
		t.Fatalf("write file: %v", err)
	}

	cmd := exec.Command("git", "-C", tmp, "add", "-A")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git add: %v: %s", err, out)
	}
	cmd = exec.Command("git", "-C", tmp, "commit", "-q", "-m", "initial")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git commit: %v: %s", err, out)
	}

	info, err := GetInfo(tmp)
	if err != nil {
		t.Fatalf("GetInfo: %v", err)
	}
	if info.Dirty {
		t.Error("expected clean working tree after commit")
	}
	if info.Head == "" {
		t.Error("expected a non-empty head commit")
	}

	if err := writeFile(file, "changed"); err != nil {
		t.Fatalf("write file: %v", err)
	}
	info, err = GetInfo(tmp)
	if err != nil {
		t.Fatalf("GetInfo: %v", err)
	}
	if !info.Dirty {
		t.Error("expected dirty working tree after modification")
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
