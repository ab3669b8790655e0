package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const testPreset = `meta:
  title: Night Drive
back:
  sections:
    - heading: Verse
      lyrics: "one\ntwo"
  credits: ["Words: A"]
`

func presetDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		path := filepath.Join(dir, n)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(testPreset), 0o644); err != nil {
			t.Fatalf("write preset: %v", err)
		}
	}
	return dir
}

func TestExpandPresets(t *testing.T) {
	dir := presetDir(t, "a.yml", "sub/b.yml", "sub/c.toml")

	got, err := expandPresets([]string{filepath.Join(dir, "**", "*.yml"), "?preset=" + filepath.Join(dir, "a.yml"), "https://example.com/x.yml"})
	if err != nil {
		t.Fatalf("expandPresets: %v", err)
	}
	want := []string{filepath.Join(dir, "a.yml"), filepath.Join(dir, "sub", "b.yml"), "https://example.com/x.yml"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("presets mismatch (-want +got):\n%s", diff)
	}

	if got, _ := expandPresets(nil); len(got) != 1 || got[0] != "presets/card_unconsciousness.yml" {
		t.Fatalf("default preset = %v", got)
	}
	if _, err := expandPresets([]string{filepath.Join(dir, "*.json")}); err == nil {
		t.Fatalf("expected error for a glob without matches")
	}
}

func TestRunWritesPDFAndDebug(t *testing.T) {
	dir := presetDir(t, "night.yml")
	out := t.TempDir()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--out-dir", out, "--debug", "--no-color", filepath.Join(dir, "night.yml")}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code %d, stderr:\n%s", code, stderr.String())
	}
	data, err := os.ReadFile(filepath.Join(out, "night.pdf"))
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("output is not a PDF")
	}
	if _, err := os.Stat(filepath.Join(out, "night.layout.json")); err != nil {
		t.Fatalf("debug json missing: %v", err)
	}
}

func TestRunImageFormatAndPreview(t *testing.T) {
	dir := presetDir(t, "night.yml")
	out := t.TempDir()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-f", "svg", "-d", out, "--preview", filepath.Join(dir, "night.yml")}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code %d, stderr:\n%s", code, stderr.String())
	}
	for _, name := range []string{"night-front.svg", "night-back.svg"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Fatalf("%s missing: %v", name, err)
		}
	}
	if !strings.Contains(stdout.String(), "Night Drive - Card") {
		t.Fatalf("preview missing title:\n%s", stdout.String())
	}
}

func TestRunStdout(t *testing.T) {
	dir := presetDir(t, "night.yml")
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-o", "-", filepath.Join(dir, "night.yml")}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code %d, stderr:\n%s", code, stderr.String())
	}
	if !bytes.HasPrefix(stdout.Bytes(), []byte("%PDF")) {
		t.Fatalf("stdout is not a PDF")
	}
}

func TestRunStdoutWithPreview(t *testing.T) {
	dir := presetDir(t, "night.yml")
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--preview", "--no-color", "-o", "-", filepath.Join(dir, "night.yml")}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code %d, stderr:\n%s", code, stderr.String())
	}
	if !bytes.HasPrefix(stdout.Bytes(), []byte("%PDF")) {
		t.Fatalf("stdout does not start with a PDF header: %q", stdout.String()[:min(40, stdout.Len())])
	}
	if !strings.Contains(stderr.String(), "Night Drive - Card") {
		t.Fatalf("preview not on stderr:\n%s", stderr.String())
	}
}

func TestRunUsageErrors(t *testing.T) {
	dir := presetDir(t, "a.yml", "b.yml")
	cases := map[string][]string{
		"unknown flag":      {"--nope"},
		"output with batch": {"-o", "x.pdf", filepath.Join(dir, "a.yml"), filepath.Join(dir, "b.yml")},
		"bad format":        {"-f", "gif", filepath.Join(dir, "a.yml")},
		"bad sheet":         {"--sheet", "poster", filepath.Join(dir, "a.yml")},
		"svg to stdout":     {"-o", "-", "-f", "svg", filepath.Join(dir, "a.yml")},
	}
	for name, args := range cases {
		var stdout, stderr bytes.Buffer
		if code := run(context.Background(), args, &stdout, &stderr); code != 2 {
			t.Fatalf("%s: exit code %d, want 2 (stderr: %s)", name, code, stderr.String())
		}
	}
}

func TestRunVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"--version"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code %d", code)
	}
	if stdout.Len() == 0 {
		t.Fatalf("version output empty")
	}
}
