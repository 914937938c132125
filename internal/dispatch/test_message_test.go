package dispatch

import (
	"bytes"
	"testing"
	"time"

	llmclient "snapsolve/internal/llm/client"
	"snapsolve/internal/tester"
	"snapsolve/internal/types"
)

func sampleProblem() types.ProblemStatement {
	return types.ProblemStatement{
		Title:       "Sum Two Numbers",
		Description: "Read a and b.\nPrint a + b.",
		Constraints: &types.Constraints{
			InputFormat:  "a b",
			OutputFormat: "a+b",
			Limits:       []string{"|a|, |b| <= 1e9"},
			Examples:     []types.Example{{Input: "1 2", Output: "3"}},
		},
		RawResponse: "```json\n{\"title\": \"Sum Two Numbers\", \"note\": \"<&>\"}\n```",
	}
}

func sampleSolution() types.Solution {
	return types.Solution{
		Language:        "python",
		Code:            "a, b = map(int, input().split())\nprint(a + b)\n",
		Explanation:     "Add them. Unicode: é, 数",
		Thoughts:        []string{"fits in int64"},
		TimeComplexity:  "O(1)",
		SpaceComplexity: "O(1)",
	}
}

// roundTrip encodes r, decodes it and encodes again; both encodings must match.
func roundTrip(t *testing.T, r Result) Result {
	t.Helper()
	first, err := Encode(r)
	tester.NoErr(t, err)
	got, err := DecodeResult(first)
	tester.NoErr(t, err)
	second, err := Encode(got)
	tester.NoErr(t, err)
	tester.True(t, bytes.Equal(first, second), "re-encoding changed bytes:\n"+string(first)+"\n"+string(second))
	return got
}

func TestResult_RoundTripPreservesArtifacts(t *testing.T) {
	p := sampleProblem()
	got := roundTrip(t, Result{Type: StageSucceeded, SessionID: "s1", Seq: 1, Stage: types.TransitionExtract, Artifact: &Artifact{Problem: &p}})
	tester.Eq(t, *got.Artifact.Problem, p)

	s := sampleSolution()
	got = roundTrip(t, Result{Type: StageSucceeded, SessionID: "s1", Seq: 2, Stage: types.TransitionSolve, Artifact: &Artifact{Solution: &s}})
	tester.Eq(t, *got.Artifact.Solution, s)

	d := types.DebugResult{
		Solution: s,
		Changes:  "trim input",
		Issues:   []string{"trailing whitespace"},
		Screenshots: []types.ScreenshotRef{
			{Index: 1, CapturedAt: time.Date(2026, 10, 14, 9, 30, 0, 123456789, time.UTC)},
		},
	}
	got = roundTrip(t, Result{Type: StageSucceeded, SessionID: "s1", Seq: 3, Stage: types.TransitionDebug, Artifact: &Artifact{Debug: &d}})
	tester.Eq(t, *got.Artifact.Debug, d)
}

func TestResult_RoundTripPreservesNonASCIIArtifacts(t *testing.T) {
	p := types.ProblemStatement{
		Title:       "二つの数の和 é",
		Description: "整数 a と b を読み、a + b を出力せよ。\nÉcrire la somme. 🙂",
		Constraints: &types.Constraints{
			Limits:   []string{"1 ≤ a, b ≤ 10⁹"},
			Examples: []types.Example{{Input: "1 2", Output: "3 ✓"}},
		},
		RawResponse: "{\"title\": \"二つの数の和 é\", \"note\": \"<&> ü\"}",
	}
	got := roundTrip(t, Result{Type: StageSucceeded, SessionID: "s1", Seq: 1, Stage: types.TransitionExtract, Artifact: &Artifact{Problem: &p}})
	tester.Eq(t, *got.Artifact.Problem, p)
}

func TestResult_RoundTripFailure(t *testing.T) {
	r := Failed(types.TransitionDebug, StageError{
		Kind:         KindProvider,
		ProviderKind: llmclient.KindRateLimited,
		Message:      "provider is rate limiting requests",
		Hint:         "wait and retry",
		RetryAfterMS: 1500,
	})
	r.SessionID, r.Seq = "s1", 4
	got := roundTrip(t, r)
	tester.Eq(t, got, r)
}

func TestResult_ValidateRejectsBadShapes(t *testing.T) {
	p := sampleProblem()
	s := sampleSolution()
	bad := []Result{
		{Type: "other"},
		{Type: StageSucceeded},
		{Type: StageSucceeded, Artifact: &Artifact{}},
		{Type: StageSucceeded, Artifact: &Artifact{Problem: &p, Solution: &s}},
		{Type: StageFailed},
		{Type: StageFailed, Error: &StageError{Kind: KindProvider}, Artifact: &Artifact{Problem: &p}},
	}
	for i, r := range bad {
		tester.True(t, r.Validate() != nil, i)
	}
}

func TestDecodeCommand(t *testing.T) {
	c, err := DecodeCommand([]byte(`{"type":" Capture ","session_id":" s1 ","image":{"mime_type":"image/png","data":"AQID"}}`))
	tester.NoErr(t, err)
	tester.Eq(t, c.Type, CommandCapture)
	tester.Eq(t, c.SessionID, "s1")
	tester.Eq(t, c.Image.Data, []byte{1, 2, 3})

	_, err = DecodeCommand([]byte(`{"type":""}`))
	tester.True(t, err != nil, "empty type must fail")
	_, err = DecodeCommand([]byte(`{"type":"launch"}`))
	tester.True(t, err != nil, "unknown type must fail")
	_, err = DecodeCommand([]byte(`not json`))
	tester.True(t, err != nil, "invalid json must fail")
}
