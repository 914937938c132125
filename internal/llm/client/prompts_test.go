package llmclient

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"snapsolve/internal/types"
)

func TestDecodeProblem(t *testing.T) {
	raw := "Sure!\n```json\n{\"description\":\"Given n, print n*2.\\nMore text\",\"input_format\":\"one integer\",\"constraints\":[\" \",\"n <= 100\"]}\n```"
	p, err := decodeProblem("test", raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Title != "Given n, print n*2." {
		t.Fatalf("title should fall back to first line, got %q", p.Title)
	}
	if p.Constraints == nil || p.Constraints.InputFormat != "one integer" {
		t.Fatalf("constraints: %+v", p.Constraints)
	}
	if len(p.Constraints.Limits) != 1 || p.Constraints.Limits[0] != "n <= 100" {
		t.Fatalf("blank limits should be dropped: %v", p.Constraints.Limits)
	}
	if p.RawResponse != raw {
		t.Fatalf("raw response must be byte-identical")
	}
}

func TestDecodeProblem_TitleFallbackKeepsRunesWhole(t *testing.T) {
	desc := "a" + strings.Repeat("é", 60)
	raw, err := json.Marshal(map[string]string{"description": desc})
	if err != nil {
		t.Fatal(err)
	}
	p, err := decodeProblem("test", string(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !utf8.ValidString(p.Title) {
		t.Fatalf("title is not valid UTF-8: %q", p.Title)
	}
	if len(p.Title) > 80 || !strings.HasPrefix(desc, p.Title) {
		t.Fatalf("title should be a rune-aligned prefix of at most 80 bytes, got %q (%d bytes)", p.Title, len(p.Title))
	}
	if p.Title != desc[:79] {
		t.Fatalf("title should stop before the split rune, got %q", p.Title)
	}

	enc, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	var back types.ProblemStatement
	if err := json.Unmarshal(enc, &back); err != nil {
		t.Fatal(err)
	}
	if back.Title != p.Title {
		t.Fatalf("title changed across JSON: %q -> %q", p.Title, back.Title)
	}
}

func TestFirstLine(t *testing.T) {
	cases := []struct{ in, want string }{
		{"  short title \nrest", "short title"},
		{strings.Repeat("x", 100), strings.Repeat("x", 80)},
		{strings.Repeat("数", 30), strings.Repeat("数", 26)},
		{"", ""},
	}
	for _, c := range cases {
		if got := firstLine(c.in); got != c.want {
			t.Fatalf("firstLine(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDecodeProblem_NoConstraints(t *testing.T) {
	p, err := decodeProblem("test", `{"title":"T","description":"D","constraints":[],"examples":[]}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Constraints != nil {
		t.Fatalf("constraints should be nil when nothing was extracted: %+v", p.Constraints)
	}
}

func TestDecodeSolution_LanguageFallback(t *testing.T) {
	s, err := decodeSolution("test", `{"code":"print(1)","thoughts":["a",""]}`, "python")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Language != "python" || len(s.Thoughts) != 1 {
		t.Fatalf("unexpected: %+v", s)
	}
	if _, err := decodeSolution("test", `{"explanation":"no code"}`, "python"); err == nil {
		t.Fatalf("expected malformed error for missing code")
	} else if kind, _ := KindOf(err); kind != KindMalformedResponse {
		t.Fatalf("kind: %s", kind)
	}
}

func TestDecodeDebug_ChangesFallsBackToExplanation(t *testing.T) {
	prev := types.Solution{Language: "go", Code: "package main"}
	d, err := decodeDebug("test", `{"code":"package main\n\nfunc main() {}","explanation":"added main"}`, prev, testShots())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.Solution.Language != "go" || d.Changes != "added main" {
		t.Fatalf("unexpected: %+v", d)
	}
}

func TestPromptsCarryInputJSON(t *testing.T) {
	problem := types.ProblemStatement{Title: "T", Description: "D", RawResponse: "SECRET-RAW"}
	p := debugPrompt(problem, types.Solution{Language: "python", Code: "x = 1"}, testShots())
	if !strings.Contains(p.Text, "[INPUT JSON]") || !strings.Contains(p.Text, `"code": "x = 1"`) {
		t.Fatalf("debug prompt missing input: %s", p.Text)
	}
	if strings.Contains(p.Text, "SECRET-RAW") {
		t.Fatalf("raw response leaked into prompt")
	}
	if len(p.Images) != 1 {
		t.Fatalf("debug prompt should carry screenshots")
	}
	if sp := solvePrompt(problem, "java"); len(sp.Images) != 0 {
		t.Fatalf("solve prompt should not carry screenshots")
	}
}
