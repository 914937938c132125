package dispatch

import (
	"testing"

	"snapsolve/internal/tester"
	"snapsolve/internal/types"
)

type recorder struct{ got []Result }

func (r *recorder) Deliver(res Result) { r.got = append(r.got, res) }

func okResult() Result {
	s := sampleSolution()
	return Succeeded(types.TransitionSolve, Artifact{Solution: &s})
}

func TestDispatcher_AssignsSeqInIssuanceOrder(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec)
	a := d.Begin("s1", types.TransitionExtract)
	b := d.Begin("s1", types.TransitionSolve)
	tester.Eq(t, a.Seq, uint64(1))
	tester.Eq(t, b.Seq, uint64(2))

	// b finishes first but must wait for a.
	tester.True(t, d.Complete(b, okResult()), "complete b")
	tester.Eq(t, len(rec.got), 0)
	tester.True(t, d.Complete(a, okResult()), "complete a")
	tester.Eq(t, len(rec.got), 2)
	tester.Eq(t, rec.got[0].Seq, uint64(1))
	tester.Eq(t, rec.got[0].Stage, types.TransitionExtract)
	tester.Eq(t, rec.got[1].Seq, uint64(2))
	tester.Eq(t, rec.got[1].SessionID, "s1")
	tester.Eq(t, d.Pending("s1"), 0)
}

func TestDispatcher_AbandonSuppressesAndUnblocks(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec)
	a := d.Begin("s1", types.TransitionDebug)
	b := d.Begin("s1", types.TransitionDebug)
	d.Complete(b, okResult())
	d.Abandon(a)
	tester.Eq(t, len(rec.got), 1)
	tester.Eq(t, rec.got[0].Seq, uint64(2))
}

func TestDispatcher_ExactlyOncePerTicket(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec)
	a := d.Begin("s1", types.TransitionExtract)
	tester.True(t, d.Complete(a, okResult()), "first complete")
	tester.False(t, d.Complete(a, okResult()), "second complete must be ignored")
	d.Abandon(a)
	tester.Eq(t, len(rec.got), 1)
}

func TestDispatcher_DropSuppressesOutstanding(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec)
	a := d.Begin("old", types.TransitionExtract)
	d.Drop("old")
	tester.False(t, d.Complete(a, okResult()), "dropped session must not deliver")
	tester.Eq(t, len(rec.got), 0)

	b := d.Begin("new", types.TransitionExtract)
	tester.Eq(t, b.Seq, uint64(1))
}

func TestDispatcher_SessionsAreIndependent(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec)
	a := d.Begin("s1", types.TransitionExtract)
	b := d.Begin("s2", types.TransitionExtract)
	d.Complete(b, okResult())
	tester.Eq(t, len(rec.got), 1)
	tester.Eq(t, rec.got[0].SessionID, "s2")
	d.Complete(a, okResult())
	tester.Eq(t, len(rec.got), 2)
}
