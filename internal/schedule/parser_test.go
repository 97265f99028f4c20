package schedule

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Action
	}{
		{
			name:  "parallelize",
			input: "P(L0,comps=['comp_blur'])",
			want:  Parallelize{Level: 0, Computations: []string{"comp_blur"}},
		},
		{
			name:  "unroll",
			input: "U(L2,4,comps=['comp00'])",
			want:  Unroll{Level: 2, Factor: 4, Computations: []string{"comp00"}},
		},
		{
			name:  "interchange",
			input: "I(L0,L1,comps=['x_temp'])",
			want:  Interchange{Level1: 0, Level2: 1, Computations: []string{"x_temp"}},
		},
		{
			name:  "reverse",
			input: "R(L1,comps=['A_hat','w'])",
			want:  Reverse{Level: 1, Computations: []string{"A_hat", "w"}},
		},
		{
			name:  "skew with negative factor",
			input: "S(L0,L1,1,-1,comps=['comp00'])",
			want:  Skew{Level1: 0, Level2: 1, Factor1: 1, Factor2: -1, Computations: []string{"comp00"}},
		},
		{
			name:  "auto skew",
			input: "S(L0,L1,0,0,comps=['comp_blur'])",
			want:  Skew{Level1: 0, Level2: 1, Computations: []string{"comp_blur"}},
		},
		{
			name:  "fuse with spaces",
			input: "F(L0,comps=['A_hat', 'x_temp'])",
			want:  Fuse{Level: 0, Computations: []string{"A_hat", "x_temp"}},
		},
		{
			name:  "unquoted names",
			input: "F(L0,comps=[A_hat,x_temp])",
			want:  Fuse{Level: 0, Computations: []string{"A_hat", "x_temp"}},
		},
		{
			name:  "tile 1d",
			input: "T1(L2,32,comps=['comp00'])",
			want:  Tile{Levels: []int{2}, Factors: []int{32}, Computations: []string{"comp00"}},
		},
		{
			name:  "tile 2d",
			input: "T2(L0,L1,32,64,comps=['A_hat','x_temp'])",
			want:  Tile{Levels: []int{0, 1}, Factors: []int{32, 64}, Computations: []string{"A_hat", "x_temp"}},
		},
		{
			name:  "tile 3d",
			input: "T3(L0,L1,L2,4,8,16,comps=['comp00'])",
			want:  Tile{Levels: []int{0, 1, 2}, Factors: []int{4, 8, 16}, Computations: []string{"comp00"}},
		},
		{
			name:  "multi-digit level",
			input: "P(L12,comps=['c'])",
			want:  Parallelize{Level: 12, Computations: []string{"c"}},
		},
		{
			name:  "empty token",
			input: "",
			want:  Noop{},
		},
		{
			name:  "blank token",
			input: "   ",
			want:  Noop{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAction(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAction_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "unknown code", input: "X(L0,comps=['a'])", wantErr: ErrMalformedAction},
		{name: "missing level prefix", input: "P(0,comps=['a'])", wantErr: ErrMalformedAction},
		{name: "missing comps", input: "P(L0)", wantErr: ErrMalformedAction},
		{name: "wrong keyword", input: "P(L0,comp=['a'])", wantErr: ErrMalformedAction},
		{name: "empty comps", input: "P(L0,comps=[])", wantErr: ErrMalformedAction},
		{name: "empty quoted name", input: "P(L0,comps=[' '])", wantErr: ErrMalformedAction},
		{name: "unterminated quote", input: "P(L0,comps=['a])", wantErr: ErrMalformedAction},
		{name: "trailing garbage", input: "P(L0,comps=['a'])x", wantErr: ErrMalformedAction},
		{name: "zero unroll factor", input: "U(L0,0,comps=['a'])", wantErr: ErrMalformedAction},
		{name: "negative unroll factor", input: "U(L0,-2,comps=['a'])", wantErr: ErrMalformedAction},
		{name: "skew missing factor", input: "S(L0,L1,1,comps=['a'])", wantErr: ErrMalformedAction},
		{name: "tile factor count", input: "T2(L0,L1,32,comps=['a'])", wantErr: ErrMalformedAction},
		{name: "zero tile factor", input: "T1(L0,0,comps=['a'])", wantErr: ErrMalformedAction},
		{name: "stray character", input: "P(L0;comps=['a'])", wantErr: ErrMalformedAction},
		{name: "4d tiling", input: "T4(L0,L1,L2,L3,2,2,2,2,comps=['a'])", wantErr: ErrUnsupportedTilingArity},
		{name: "bare tiling code", input: "T(L0,2,comps=['a'])", wantErr: ErrUnsupportedTilingArity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAction(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.input, perr.Token)
		})
	}
}

func TestActionString_RoundTrip(t *testing.T) {
	inputs := []string{
		"P(L0,comps=['comp_blur'])",
		"U(L2,4,comps=['comp00'])",
		"I(L0,L1,comps=['x_temp'])",
		"R(L1,comps=['A_hat','w'])",
		"S(L0,L1,1,-1,comps=['comp00'])",
		"F(L0,comps=['A_hat','x_temp'])",
		"T2(L0,L1,32,64,comps=['A_hat','x_temp'])",
	}

	for _, in := range inputs {
		a, err := ParseAction(in)
		require.NoError(t, err)
		assert.Equal(t, in, a.String())
	}
}

func TestSplit(t *testing.T) {
	assert.Equal(t, []string{""}, Split(""))
	assert.Equal(t, []string{"P(L0,comps=['a'])"}, Split("P(L0,comps=['a'])"))
	assert.Equal(t, []string{"I(L0,L1,comps=['a'])", "F(L0,comps=['a','b'])", ""}, Split("I(L0,L1,comps=['a'])|F(L0,comps=['a','b'])|"))
}

func TestParse(t *testing.T) {
	sched, err := Parse("I(L0,L1,comps=['x_temp'])|F(L0,comps=['A_hat','x_temp'])|")
	require.NoError(t, err)

	require.Len(t, sched.Actions, 3)
	assert.Equal(t, KindInterchange, sched.Actions[0].Kind())
	assert.Equal(t, KindFuse, sched.Actions[1].Kind())
	assert.Equal(t, KindNoop, sched.Actions[2].Kind())

	_, err = Parse("P(L0,comps=['a'])|Q(L0)")
	assert.ErrorIs(t, err, ErrMalformedAction)
}
