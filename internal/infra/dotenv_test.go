package infra

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, ".env")
	local := filepath.Join(dir, ".env.local")
	if err := os.WriteFile(base, []byte("POSTERGEN_A=base\nPOSTERGEN_B=base\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(local, []byte("POSTERGEN_B=local\nPOSTERGEN_C=local\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("POSTERGEN_A", "process")
	t.Setenv("POSTERGEN_B", "")
	t.Setenv("POSTERGEN_C", "")
	os.Unsetenv("POSTERGEN_B")
	os.Unsetenv("POSTERGEN_C")

	if err := LoadDotEnv(base, local, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv returned error: %v", err)
	}
	if got := os.Getenv("POSTERGEN_A"); got != "process" {
		t.Fatalf("POSTERGEN_A = %q, want process", got)
	}
	// the first file to set a key wins
	if got := os.Getenv("POSTERGEN_B"); got != "base" {
		t.Fatalf("POSTERGEN_B = %q, want base", got)
	}
	if got := os.Getenv("POSTERGEN_C"); got != "local" {
		t.Fatalf("POSTERGEN_C = %q, want local", got)
	}
}
