package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tbourn/go-bot-builder/internal/prompt"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	renderStep1, renderStep2, renderQuestion = "", "", ""
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestPromptRender_Sections(t *testing.T) {
	s1 := writeFile(t, "s1.json", `{"personality":"Warm","purpose":"Book tables","tone":"Casual"}`)
	s2 := writeFile(t, "s2.txt", "Never promise discounts.")

	out, err := run(t, "prompt", "render", "--step1", s1, "--step2", s2)
	if err != nil {
		t.Fatalf("render: %v\n%s", err, out)
	}
	doc, err := prompt.ValidateDocument(out)
	if err != nil {
		t.Fatalf("output is not a valid document: %v\n%s", err, out)
	}
	if doc.Personality != "Warm" || doc.Tone != "Casual" || doc.Rules != "Never promise discounts." || doc.FAQ != "" {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestPromptRender_RejectsInvalidStep1(t *testing.T) {
	s1 := writeFile(t, "s1.json", `{"personality": 42}`)
	if _, err := run(t, "prompt", "render", "--step1", s1); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestPromptRender_Question(t *testing.T) {
	out, err := run(t, "prompt", "render", "--question", "Hi there")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	var msgs []prompt.Message
	if err := json.Unmarshal([]byte(out), &msgs); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(msgs) != 3 {
		t.Fatalf("want 3 messages, got %d", len(msgs))
	}
	if msgs[1].Content != prompt.DefaultPreset {
		t.Errorf("preset = %q", msgs[1].Content)
	}
	if msgs[2].Role != prompt.RoleUser || msgs[2].Content != "Hi there" {
		t.Errorf("last = %+v", msgs[2])
	}
}

func TestPromptValidate(t *testing.T) {
	bad := writeFile(t, "bad.txt", "~Personality\nx\n~Personality")
	if _, err := run(t, "prompt", "validate", bad); err == nil {
		t.Fatal("expected malformed document error")
	}

	good := writeFile(t, "good.txt", prompt.Serialize(prompt.Document{Purpose: "Support"}))
	out, err := run(t, "prompt", "validate", good)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, `"purpose": "Support"`) {
		t.Errorf("output = %s", out)
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "botbuilder "+version) {
		t.Errorf("output = %q", out)
	}
}
