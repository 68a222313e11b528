package transport

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCauseFromCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code int
		want Cause
	}{
		{code: CodeSessionInvalidated, want: CauseSessionInvalidated},
		{code: CodeVersionMismatch, want: CauseVersionMismatch},
		{code: CodeServiceUnavailable, want: CauseServiceUnavailable},
		{code: CodeInternalError, want: CauseInternalError},
		{code: CodeTimedOut, want: CauseTimeout},
		{code: 0, want: CauseUnknown},
		{code: 1006, want: CauseUnknown},
	}

	for _, tc := range cases {
		if got := CauseFromCode(tc.code); got != tc.want {
			t.Fatalf("code=%d want=%q got=%q", tc.code, tc.want, got)
		}
	}
}

func TestFileCredentialsClear(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "credentials")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "session.json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	creds := FileCredentials{Dir: dir}
	if err := creds.Clear(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected credentials dir to be removed, stat err=%v", err)
	}

	// Clearing again must stay quiet.
	if err := creds.Clear(); err != nil {
		t.Fatalf("expected no error on repeat clear, got %v", err)
	}
}

func TestFileCredentialsClearEmptyDir(t *testing.T) {
	t.Parallel()

	creds := FileCredentials{Dir: "   "}
	if err := creds.Clear(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
