package schedule

import (
	"context"
	"testing"

	"github.com/Norgate-AV/polysched/internal/polyhedral"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestOrchestrator_Run(t *testing.T) {
	tests := []struct {
		name      string
		schedule  string
		parallel  bool
		wantLegal bool
		wantSteps int
		wantCalls []string
	}{
		{
			name:      "empty schedule is legal",
			schedule:  "",
			wantLegal: true,
			wantSteps: 1,
		},
		{
			name:      "trailing delimiter",
			schedule:  "R(L0,comps=['a'])|",
			wantLegal: true,
			wantSteps: 2,
			wantCalls: []string{"reverse(a,0)"},
		},
		{
			name:      "illegal step does not stop later actions",
			schedule:  "P(L0,comps=['a'])|I(L0,L1,comps=['b'])",
			parallel:  false,
			wantLegal: false,
			wantSteps: 2,
			wantCalls: []string{"parallel?(0,[a])", "tag(a,0)", "interchange(b,0,1)"},
		},
		{
			name:      "all legal",
			schedule:  "P(L0,comps=['a'])|I(L0,L1,comps=['b'])",
			parallel:  true,
			wantLegal: true,
			wantSteps: 2,
			wantCalls: []string{"parallel?(0,[a])", "tag(a,0)", "interchange(b,0,1)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := newFakeProgram("a", "b")
			prog.parallelLegal = tt.parallel

			rep, err := NewOrchestrator(zaptest.NewLogger(t)).Run(context.Background(), prog, tt.schedule)
			require.NoError(t, err)

			assert.Equal(t, tt.wantLegal, rep.Legal)
			assert.Len(t, rep.Steps, tt.wantSteps)
			assert.Equal(t, tt.wantCalls, prog.calls)
		})
	}
}

func TestOrchestrator_ParseErrorAppliesNothing(t *testing.T) {
	prog := newFakeProgram("a")

	_, err := NewOrchestrator(nil).Run(context.Background(), prog, "R(L0,comps=['a'])|T5(L0,2,comps=['a'])")
	assert.ErrorIs(t, err, ErrUnsupportedTilingArity)
	assert.Empty(t, prog.calls)
}

func TestOrchestrator_LookupErrorAborts(t *testing.T) {
	prog := newFakeProgram("a")

	_, err := NewOrchestrator(nil).Run(context.Background(), prog, "R(L0,comps=['a'])|R(L0,comps=['b'])|R(L1,comps=['a'])")
	assert.ErrorIs(t, err, ErrAmbiguousOrMissingComputation)
	assert.Equal(t, []string{"reverse(a,0)"}, prog.calls)
}

func TestOrchestrator_AdditionalInfo(t *testing.T) {
	prog := newFakeProgram("a")
	prog.inner = []polyhedral.SkewFactors{{F1: 1, F2: 1}}

	rep, err := NewOrchestrator(nil).Run(context.Background(), prog, "S(L0,L1,2,1,comps=['a'])|S(L1,L2,0,0,comps=['a'])|R(L0,comps=['a'])")
	require.NoError(t, err)

	assert.True(t, rep.Legal)
	assert.Equal(t, "skewing_factors:1,1", rep.AdditionalInfo, "the last skew wins")
}

func TestOrchestrator_Cancelled(t *testing.T) {
	prog := newFakeProgram("a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewOrchestrator(nil).Run(ctx, prog, "R(L0,comps=['a'])")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, prog.calls)
}

func TestOrchestrator_ReferenceProgram(t *testing.T) {
	def := polyhedral.Definition{
		Name:      "chain",
		Iterators: []polyhedral.Iterator{{Name: "i", Lo: 0, Hi: 16}, {Name: "j", Lo: 0, Hi: 16}},
		Buffers: []polyhedral.Buffer{
			{Name: "in", Dims: []int{16, 16}, Role: polyhedral.RoleInput},
			{Name: "out", Dims: []int{16, 16}, Role: polyhedral.RoleOutput},
		},
		Computations: []polyhedral.ComputationDef{
			{Name: "scale", Iterators: []string{"i", "j"}, Store: "out[i][j]", Expr: "in[i][j] * 2.0"},
		},
	}
	prog, err := polyhedral.New(def, polyhedral.Options{})
	require.NoError(t, err)

	rep, err := NewOrchestrator(nil).Run(context.Background(), prog, "P(L0,comps=['scale'])|U(L1,4,comps=['scale'])")
	require.NoError(t, err)

	assert.True(t, rep.Legal)
	assert.True(t, prog.CheckLegality())
	assert.Contains(t, prog.IR(), "// parallel")
}
