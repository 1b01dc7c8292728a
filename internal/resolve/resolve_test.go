package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/jward/arbor/internal/diag"
	"github.com/jward/arbor/internal/symbols"
	"github.com/jward/arbor/internal/syntax"
)

func newTestPackage(t *testing.T, opts ...Option) *Package {
	t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	p := NewPackage(symbols.NewGraph(), opts...)
	t.Cleanup(func() {
		for _, d := range p.Documents() {
			_ = p.Close(d.URI())
		}
	})
	return p
}

func decode(t *testing.T, src string) *syntax.File {
	t.Helper()
	f, err := syntax.Decode([]byte(src))
	require.NoError(t, err)
	return f
}

func docURI(name string) protocol.DocumentURI {
	return protocol.DocumentURI("file:///" + name + ".arb")
}

func codesOf(d *Document) []diag.Code {
	var out []diag.Code
	for _, x := range d.Diagnostics() {
		out = append(out, x.Code)
	}
	return out
}

const (
	srcA = `
decls:
  - class: A
    extends: B
`
	srcB = `
decls:
  - class: B
    members:
      - function: run
`
)

// =============================================================================
// Package pipeline
// =============================================================================

func TestResolve_OrderIndependent(t *testing.T) {
	t.Parallel()
	for _, uris := range [][2]string{{"x", "y"}, {"y", "x"}} {
		p := newTestPackage(t)
		p.Open(docURI(uris[0]), decode(t, srcA))
		p.Open(docURI(uris[1]), decode(t, srcB))
		pass, err := p.Resolve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, pass.Documents)
		assert.Zero(t, pass.Diagnostics)

		for _, d := range p.Documents() {
			assert.False(t, d.NeedsAnotherTurn(), d.URI())
			for _, ph := range []diag.Phase{diag.PhaseClasses, diag.PhaseInheritance, diag.PhaseMembers, diag.PhaseStatements} {
				assert.True(t, d.Resolved(ph), "%s %s", d.URI(), ph)
			}
		}
		a, err := p.Graph().ResolveType("A")
		require.NoError(t, err)
		b, err := p.Graph().ResolveType("B")
		require.NoError(t, err)
		assert.Same(t, b, a.(*symbols.Class).Superclass())
	}
}

// The supertype of X is a nested type inherited through Mid, whose own
// supertype is a nested type inherited through Src. Each link only becomes
// visible one round after the one before it.
const (
	srcOuter = `
decls:
  - class: Outer
    extends: Holder.Mid
    members:
      - class: X
        extends: Inner
`
	srcHolder = `
decls:
  - class: Holder
    extends: Src
    members:
      - class: Mid
        extends: Carrier
`
	srcBase = `
decls:
  - class: Src
    extends: Src2
  - class: Src2
    members:
      - class: Carrier
        extends: Base
  - class: Base
    members:
      - class: Inner
`
)

func openChain(t *testing.T, p *Package) *Document {
	t.Helper()
	outer := p.Open(docURI("1outer"), decode(t, srcOuter))
	p.Open(docURI("2holder"), decode(t, srcHolder))
	p.Open(docURI("3base"), decode(t, srcBase))
	return outer
}

func TestResolve_FixpointRunsUntilSettled(t *testing.T) {
	t.Parallel()
	p := newTestPackage(t)
	openChain(t, p)

	pass, err := p.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, pass.Rounds)
	assert.Zero(t, pass.Diagnostics)
	x, err := p.Graph().ResolveType("Outer.X")
	require.NoError(t, err)
	assert.Equal(t, "Base.Inner", x.(*symbols.Class).Superclass().FullName())
}

func TestResolve_MaxRoundsCapsFixpoint(t *testing.T) {
	t.Parallel()
	p := newTestPackage(t, WithMaxRounds(1))
	outer := openChain(t, p)

	pass, err := p.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, pass.Rounds)
	assert.Equal(t, []diag.Code{diag.CodeUnresolvedSuper}, codesOf(outer))
}

func TestResolve_UnresolvedSuperStalls(t *testing.T) {
	t.Parallel()
	p := newTestPackage(t)
	d := p.Open(docURI("a"), decode(t, srcA))

	pass, err := p.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, pass.Rounds)
	assert.Equal(t, []diag.Code{diag.CodeUnresolvedSuper}, codesOf(d))
	assert.False(t, d.NeedsAnotherTurn())
}

func TestResolve_Idempotent(t *testing.T) {
	t.Parallel()
	p := newTestPackage(t)
	d := p.Open(docURI("c"), decode(t, `
decls:
  - class: C
    members:
      - function: f
        params:
          - {name: o, type: Object}
        body:
          - expr: {call: f, args: [1]}
          - expr: missing
`))
	_, err := p.Resolve(context.Background())
	require.NoError(t, err)
	first := d.Diagnostics()
	require.Len(t, first, 2)

	_, err = p.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, d.Diagnostics())
	assert.NotNil(t, p.Graph().Lookup("C.f"))
}

func TestResolve_PanicIsRecovered(t *testing.T) {
	t.Parallel()
	p := newTestPackage(t)
	bad := p.Open(docURI("bad"), &syntax.File{Decls: []syntax.Decl{
		&syntax.VarDecl{Name: syntax.Ident{Name: "v"}, Type: &syntax.TypeName{}},
	}})
	good := p.Open(docURI("good"), decode(t, srcB))

	_, err := p.Resolve(context.Background())
	require.NoError(t, err)
	assert.True(t, bad.Resolved(diag.PhaseStatements))
	assert.True(t, good.Resolved(diag.PhaseStatements))
	_, err = p.Graph().ResolveType("B")
	assert.NoError(t, err)
}

func TestResolve_BadCallKeepsLaterDiagnostics(t *testing.T) {
	t.Parallel()
	p := newTestPackage(t)
	d := p.Open(docURI("c"), decode(t, `
decls:
  - class: C
    members:
      - var: x
        type: Int
      - function: f
        body:
          - expr: {call: this.x, args: [1]}
          - expr: {call: nope}
`))

	_, err := p.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []diag.Code{diag.CodeNotCallable, diag.CodeUnresolvedName}, codesOf(d))
}

func TestResolve_CanceledContext(t *testing.T) {
	t.Parallel()
	p := newTestPackage(t)
	d := p.Open(docURI("b"), decode(t, srcB))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Resolve(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, d.Resolved(diag.PhaseClasses))
}

// =============================================================================
// Document lifecycle
// =============================================================================

func TestResolveDocument_RebuildsOnUpdate(t *testing.T) {
	t.Parallel()
	p := newTestPackage(t)
	d := p.Open(docURI("b"), decode(t, srcB))
	_, err := p.ResolveDocument(context.Background(), d.URI())
	require.NoError(t, err)
	require.NotNil(t, p.Graph().Lookup("B.run"))
	oldTree := d.Tree()

	_, err = p.Update(d.URI(), decode(t, `
decls:
  - class: B
    members:
      - function: walk
`))
	require.NoError(t, err)
	assert.Equal(t, int64(2), d.Revision())

	_, err = p.ResolveDocument(context.Background(), d.URI())
	require.NoError(t, err)
	assert.True(t, oldTree.Disposed())
	assert.Nil(t, p.Graph().Lookup("B.run"))
	assert.NotNil(t, p.Graph().Lookup("B.walk"))
}

func TestClose_UnregistersSymbols(t *testing.T) {
	t.Parallel()
	p := newTestPackage(t)
	d := p.Open(docURI("b"), decode(t, srcB))
	_, err := p.Resolve(context.Background())
	require.NoError(t, err)

	require.NoError(t, p.Close(d.URI()))
	assert.Nil(t, p.Graph().Lookup("B"))
	assert.Nil(t, p.Document(d.URI()))
	assert.ErrorIs(t, p.Close(d.URI()), ErrUnknownDocument)
	_, err = p.Update(d.URI(), &syntax.File{})
	assert.ErrorIs(t, err, ErrUnknownDocument)
	_, err = p.ResolveDocument(context.Background(), d.URI())
	assert.ErrorIs(t, err, ErrUnknownDocument)
}

func TestDocument_WaitIsNotified(t *testing.T) {
	t.Parallel()
	p := newTestPackage(t)
	d := p.Open(docURI("b"), decode(t, srcB))

	waited := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		waited <- d.Wait(ctx, diag.PhaseStatements)
	}()

	_, err := p.Resolve(context.Background())
	require.NoError(t, err)
	assert.NoError(t, <-waited)
}

func TestDocument_WaitSurvivesRebuild(t *testing.T) {
	t.Parallel()
	p := newTestPackage(t)
	d := p.Open(docURI("b"), decode(t, srcB))
	_, err := p.Resolve(context.Background())
	require.NoError(t, err)
	require.NoError(t, d.Wait(context.Background(), diag.PhaseMembers))

	d.dispose()
	d.build(p.Graph())
	assert.False(t, d.Resolved(diag.PhaseMembers))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Wait(ctx, diag.PhaseMembers), context.DeadlineExceeded)
}

func TestDocument_WaitEndsOnClose(t *testing.T) {
	t.Parallel()
	p := newTestPackage(t)
	d := p.Open(docURI("b"), decode(t, srcB))
	require.NoError(t, p.Close(d.URI()))
	assert.ErrorIs(t, d.Wait(context.Background(), diag.PhaseClasses), ErrUnknownDocument)
}

// =============================================================================
// Debouncer
// =============================================================================

func TestDebouncer_CoalescesBursts(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	d := NewDebouncer(50*time.Millisecond, func() { calls.Add(1) })
	t.Cleanup(d.Stop)

	for i := 0; i < 5; i++ {
		d.Trigger()
		time.Sleep(2 * time.Millisecond)
	}
	assert.True(t, d.Pending())
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, d.Pending())
}

func TestDebouncer_StopDisarms(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	d := NewDebouncer(10*time.Millisecond, func() { calls.Add(1) })
	d.Trigger()
	d.Stop()
	d.Trigger()
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestDebouncer_CancelKeepsItUsable(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	d := NewDebouncer(10*time.Millisecond, func() { calls.Add(1) })
	t.Cleanup(d.Stop)

	d.Trigger()
	d.Cancel()
	assert.False(t, d.Pending())
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, calls.Load())

	d.Trigger()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}

// =============================================================================
// Scheduler
// =============================================================================

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := NewScheduler(slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(s.Close)
	return s
}

func TestScheduler_RunsSerially(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t)
	var running, overlaps atomic.Int32
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func() {
			errs <- s.Do(context.Background(), func(context.Context) error {
				if running.Add(1) > 1 {
					overlaps.Add(1)
				}
				time.Sleep(time.Millisecond)
				running.Add(-1)
				return nil
			})
		}()
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, <-errs)
	}
	assert.Zero(t, overlaps.Load())
}

func TestScheduler_ReturnsTaskErrors(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t)
	boom := errors.New("boom")
	assert.ErrorIs(t, s.Do(context.Background(), func(context.Context) error { return boom }), boom)

	err := s.Do(context.Background(), func(context.Context) error { panic("invariant") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invariant")

	// The loop survives a panicking task.
	assert.NoError(t, s.Do(context.Background(), func(context.Context) error { return nil }))
}

func TestScheduler_Go(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t)
	ran := make(chan struct{})
	require.NoError(t, s.Go(func(context.Context) error {
		close(ran)
		return fmt.Errorf("logged only")
	}))
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("queued task did not run")
	}
}

func TestScheduler_Closed(t *testing.T) {
	t.Parallel()
	s := NewScheduler(nil)
	s.Close()
	s.Close()
	assert.ErrorIs(t, s.Do(context.Background(), func(context.Context) error { return nil }), ErrSchedulerClosed)
	assert.ErrorIs(t, s.Go(func(context.Context) error { return nil }), ErrSchedulerClosed)
}
