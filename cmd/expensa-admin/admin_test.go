package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func runAdmin(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestNewTokenIsRandomHex(t *testing.T) {
	a, err := newToken()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := newToken()
	if len(a) != 64 || a == b {
		t.Fatalf("tokens %q and %q", a, b)
	}
}

func TestAdminCommands(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("AMQP_URL", "")
	db := filepath.Join(t.TempDir(), "admin.db")

	out, err := runAdmin(t, "migrate", "--db", db)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "dirty: false") {
		t.Fatalf("migrate output: %s", out)
	}

	out, err = runAdmin(t, "user", "create", "--name", "ada", "--db", db)
	if err != nil {
		t.Fatalf("user create: %v", err)
	}
	var userID string
	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(line, "user:"); ok {
			userID = strings.TrimSpace(v)
		}
	}
	if userID == "" || !strings.Contains(out, "token: ") {
		t.Fatalf("user create output: %s", out)
	}

	out, err = runAdmin(t, "user", "list", "--db", db)
	if err != nil || strings.TrimSpace(out) != userID {
		t.Fatalf("user list = %q, %v", out, err)
	}

	out, err = runAdmin(t, "catchup", "--user", userID, "--through", "2025-03", "--db", db)
	if err != nil {
		t.Fatalf("catchup: %v", err)
	}
	if !strings.Contains(out, userID+": 0 occurrence(s) created") {
		t.Fatalf("catchup output: %s", out)
	}

	if _, err := runAdmin(t, "catchup", "--user", userID, "--through", "2025-13", "--db", db); err == nil {
		t.Fatal("expected invalid month to fail")
	}

	if _, err := runAdmin(t, "user", "rotate-token", "missing", "--db", db); err == nil {
		t.Fatal("expected rotating an unknown user to fail")
	}
}
