package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"snapsolve/internal/tester"
	"snapsolve/internal/types"
)

var oneShot = []types.Screenshot{{Index: 0, MIMEType: "image/png", Data: []byte{1}}}

func TestRate_RPS_2PerSecond_Burst1_Spacing(t *testing.T) {
	// Expect ~>=500ms spacing after the first call when rps=2 and burst=1.
	base := NewFakeProvider("")
	cli := Wrap(base, RateLimit(2, 1))
	t.Cleanup(func() { _ = cli.Close() })

	ctx := context.Background()
	start := time.Now()
	_, err := cli.ExtractProblem(ctx, oneShot)
	tester.NoErr(t, err)
	_, err = cli.ExtractProblem(ctx, oneShot)
	tester.NoErr(t, err)
	elapsed := time.Since(start)

	tester.True(t, elapsed >= 450*time.Millisecond, "expected throttling >=450ms")
	tester.Eq(t, base.Calls(types.TransitionExtract), 2, "two calls should reach inner provider")
}

func TestRate_RPS_2PerSecond_Burst2_FirstTwoImmediate(t *testing.T) {
	cli := RateLimit(2, 2)(NewFakeProvider(""))
	t.Cleanup(func() { _ = cli.Close() })

	ctx := context.Background()
	problem := types.ProblemStatement{Description: "x"}
	start := time.Now()
	_, err := cli.GenerateSolution(ctx, problem, "python")
	tester.NoErr(t, err)
	_, err = cli.GenerateSolution(ctx, problem, "python")
	tester.NoErr(t, err)
	firstTwo := time.Since(start)

	start3 := time.Now()
	_, err = cli.GenerateSolution(ctx, problem, "python")
	tester.NoErr(t, err)
	third := time.Since(start3)

	tester.True(t, firstTwo < 100*time.Millisecond, "first two should be near-instant")
	tester.True(t, third >= 450*time.Millisecond, "third call expected throttling >=450ms")
}

func TestRate_ContextCanceledWhileWaiting(t *testing.T) {
	cli := RateLimit(0.1, 1)(NewFakeProvider(""))
	t.Cleanup(func() { _ = cli.Close() })

	_, err := cli.ExtractProblem(context.Background(), oneShot)
	tester.NoErr(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = cli.ExtractProblem(ctx, oneShot)
	tester.True(t, errors.Is(err, context.DeadlineExceeded), "expected deadline while waiting for a token")
}

func TestRate_DisabledPassesThrough(t *testing.T) {
	cli := RateLimit(0, 0)(NewFakeProvider(""))
	start := time.Now()
	for i := 0; i < 5; i++ {
		_, err := cli.ExtractProblem(context.Background(), oneShot)
		tester.NoErr(t, err)
	}
	tester.True(t, time.Since(start) < 100*time.Millisecond, "disabled limiter should not throttle")
	tester.NoErr(t, cli.Close())
}
