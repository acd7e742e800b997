package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flemzord/sdiscuss/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := rootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionListsModules(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"sdiscuss dev", "store.sqlite", "ext.voting", "gateway.http"} {
		if !strings.Contains(out, want) {
			t.Errorf("version output missing %q:\n%s", want, out)
		}
	}
}

func TestExtensionsCommand(t *testing.T) {
	out, err := execute(t, "extensions")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "live_feed") || !strings.Contains(out, "[after_insert, mount_routes]") {
		t.Errorf("extensions output:\n%s", out)
	}
}

func TestInitAndConfigCheck(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sdiscuss.yaml")

	if _, err := execute(t, "init", "--yes", "--output", path); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "init", "--yes", "--output", path); err == nil {
		t.Error("init overwrote an existing file without --force")
	}

	// Point the data dir inside the temp dir before loading modules.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	raw = bytes.Replace(raw, []byte("./data"), []byte(filepath.Join(dir, "data")), 1)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "config", "check", path)
	if err != nil {
		t.Fatalf("config check: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Configuration OK") || !strings.Contains(out, "capture_author, validate_len") {
		t.Errorf("config check output:\n%s", out)
	}
}

func TestRenderConfig(t *testing.T) {
	t.Parallel()

	a := defaultAnswers()
	a.Markdown = false
	a.Identity = "identity.null"
	raw, err := renderConfig(a)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Drivers.Renderer != "" || cfg.Drivers.Identity != "identity.null" {
		t.Errorf("drivers = %+v", cfg.Drivers)
	}
	if _, ok := cfg.Modules["gateway.http"]; !ok {
		t.Error("gateway section missing")
	}

	a.Extensions = []string{"no_such_extension"}
	if _, err := renderConfig(a); err == nil {
		t.Error("unknown extension rendered")
	}
}

func TestStatusText(t *testing.T) {
	t.Parallel()

	if statusText(0) != "unknown" {
		t.Error("zero status should be unknown")
	}
}
