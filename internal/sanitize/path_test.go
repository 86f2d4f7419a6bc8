package sanitize

import "testing"

func TestPathAcceptsNormalPath(t *testing.T) {
	got, err := Path("src/main.go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "src/main.go" {
		t.Errorf("got %q, want %q", got, "src/main.go")
	}
}

func TestPathDropsCurDir(t *testing.T) {
	got, err := Path("./src/./main.go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "src/main.go" {
		t.Errorf("got %q, want %q", got, "src/main.go")
	}
}

func TestPathRejectsEmpty(t *testing.T) {
	if _, err := Path(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestPathRejectsAbsolute(t *testing.T) {
	if _, err := Path("/etc/passwd"); err == nil {
		t.Error("expected error for absolute path")
	}
}

func TestPathRejectsWindowsDrive(t *testing.T) {
	if _, err := Path("C:/Windows/System32"); err == nil {
		t.Error("expected error for drive-prefixed path")
	}
}

func TestPathRejectsParentTraversal(t *testing.T) {
	cases := []string{"../etc/passwd", "a/../../b", "a/b/../../../c"}
	for _, c := range cases {
		if _, err := Path(c); err == nil {
			t.Errorf("expected error for %q", c)
		}
	}
}

func TestPathRejectsNoComponents(t *testing.T) {
	if _, err := Path("."); err == nil {
		t.Error("expected error when no components remain")
	}
}

func TestPathAllowsHiddenByDefault(t *testing.T) {
	got, err := Path(".github/workflows/ci.yml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != ".github/workflows/ci.yml" {
		t.Errorf("got %q", got)
	}
}

func TestPathWithOptionsRejectsHidden(t *testing.T) {
	if _, err := PathWithOptions(".env", false); err == nil {
		t.Error("expected error for hidden file when allowHidden is false")
	}
}

func TestPathWithOptionsAllowsHiddenWhenRequested(t *testing.T) {
	got, err := PathWithOptions(".env", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != ".env" {
		t.Errorf("got %q", got)
	}
}

func TestPathRejectsInvalidUTF8(t *testing.T) {
	bad := "src/" + string([]byte{0xff, 0xfe}) + ".go"
	if _, err := Path(bad); err == nil {
		t.Error("expected error for invalid UTF-8 component")
	}
}

func TestInvalidPathErrorMessage(t *testing.T) {
	_, err := Path("../x")
	if err == nil {
		t.Fatal("expected error")
	}
	var pe *InvalidPathError
	if ipe, ok := err.(*InvalidPathError); ok {
		pe = ipe
	} else {
		t.Fatalf("expected *InvalidPathError, got %T", err)
	}
	if pe.Path != "../x" {
		t.Errorf("got path %q", pe.Path)
	}
}
