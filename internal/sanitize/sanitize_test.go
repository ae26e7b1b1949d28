package sanitize

import (
	"errors"
	"strings"
	"testing"
)

func TestCheckArgsRejectsForbiddenTokens(t *testing.T) {
	tokens := []string{"sudo", "$", "<", ">", ";", "&", "|", "%", `"`, `\`, ".."}
	for _, token := range tokens {
		args := "-c copy " + token + " -f mp4"
		if err := CheckArgs(args); !errors.Is(err, ErrForbiddenToken) {
			t.Errorf("args with %q: got %v, want ErrForbiddenToken", token, err)
		}
	}
}

func TestCheckArgsRejectsEmpty(t *testing.T) {
	if err := CheckArgs("   "); !errors.Is(err, ErrEmptyArgs) {
		t.Fatalf("got %v, want ErrEmptyArgs", err)
	}
}

func TestCheckArgsAcceptsTypicalEncoderArgs(t *testing.T) {
	args := "-c copy -c:v libx264 -movflags +faststart -crf 22 -preset medium -pix_fmt yuv420p"
	if err := CheckArgs(args); err != nil {
		t.Fatal(err)
	}
}

func TestCheckPattern(t *testing.T) {
	cases := []struct {
		pattern string
		ok      bool
	}{
		{"mp4/{filename}.mp4", true},
		{"deriv/webm/{filename}.webm", true},
		{"", false},
		{"mp4/{filename}", false},
		{"{filename}.mp4", false},
		{"/mp4/{filename}.mp4", false},
		{"mp4/../{filename}.mp4", false},
	}
	for _, tc := range cases {
		err := CheckPattern(tc.pattern)
		if tc.ok && err != nil {
			t.Errorf("pattern %q: unexpected error %v", tc.pattern, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("pattern %q: expected rejection", tc.pattern)
		}
	}
}

func TestResolve(t *testing.T) {
	target, err := Resolve("/data/files", "mp4/{filename}.mp4", "abc123")
	if err != nil {
		t.Fatal(err)
	}
	if target.Folder != "mp4" {
		t.Errorf("folder = %q", target.Folder)
	}
	if target.Basename != "abc123.mp4" {
		t.Errorf("basename = %q", target.Basename)
	}
	if target.StorageName != "mp4/abc123.mp4" {
		t.Errorf("storage name = %q", target.StorageName)
	}
	if target.Path != "/data/files/mp4/abc123.mp4" {
		t.Errorf("path = %q", target.Path)
	}
}

func TestResolveBlocksTraversal(t *testing.T) {
	// A storage id is normally opaque and safe, but resolution must not
	// trust it.
	if _, err := Resolve("/data/files", "mp4/{filename}.mp4", "../../etc/passwd"); err == nil {
		t.Fatal("expected traversal rejection")
	}
	if _, err := Resolve("/data/files", "mp4/{filename}.mp4", "x/./y"); err == nil {
		t.Fatal("expected non-canonical path rejection")
	}
}

func TestResolveNestedFolder(t *testing.T) {
	target, err := Resolve("/data/files", "deriv/low/{filename}.mp4", "id9")
	if err != nil {
		t.Fatal(err)
	}
	if target.Folder != "deriv/low" {
		t.Errorf("folder = %q", target.Folder)
	}
	if !strings.HasSuffix(target.Path, "/deriv/low/id9.mp4") {
		t.Errorf("path = %q", target.Path)
	}
}
