package polyhedral

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkewCompletion(t *testing.T) {
	tests := []struct {
		a, b  int
		wantG int
		wantS int
	}{
		{a: 1, b: 1, wantG: 0, wantS: 1},
		{a: 1, b: -1, wantG: 0, wantS: 1},
		{a: 2, b: 1, wantG: 1, wantS: 1},
		{a: 1, b: 2, wantG: 0, wantS: 1},
		{a: 3, b: 2, wantG: 1, wantS: 1},
	}

	for _, tt := range tests {
		g, s := skewCompletion(tt.a, tt.b)
		assert.Equal(t, tt.wantG, g, "g for (%d, %d)", tt.a, tt.b)
		assert.Equal(t, tt.wantS, s, "s for (%d, %d)", tt.a, tt.b)
		assert.Equal(t, 1, tt.a*s-tt.b*g, "completion must be unimodular")
	}
}

func TestInterchange(t *testing.T) {
	p := newProgram(t, gemverDefinition())

	require.NoError(t, p.Interchange("x_temp", 0, 1))

	got, err := p.ScheduleString("x_temp")
	require.NoError(t, err)
	assert.Equal(t, "{ x_temp[i, j] -> [1, j, 0, i, 0] }", got)
	assert.True(t, p.CheckLegality())

	assert.ErrorIs(t, p.Interchange("x", 0, 1), ErrInvalidLevel)
}

func TestReverse(t *testing.T) {
	tests := []struct {
		name  string
		comp  string
		level int
		legal bool
	}{
		{name: "independent outer loop", comp: "A_hat", level: 0, legal: true},
		{name: "reduction loop", comp: "x_temp", level: 1, legal: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProgram(t, gemverDefinition())
			require.NoError(t, p.Reverse(tt.comp, tt.level))
			assert.Equal(t, tt.legal, p.CheckLegality())
		})
	}
}

func TestShift(t *testing.T) {
	p := newProgram(t, gemverDefinition())

	require.NoError(t, p.Shift("A_hat", 1, 3))

	got, err := p.ScheduleString("A_hat")
	require.NoError(t, err)
	assert.Equal(t, "{ A_hat[i, j] -> [0, i, 0, j + 3, 0] }", got)
	assert.True(t, p.CheckLegality())
}

func TestSkew(t *testing.T) {
	p := newProgram(t, stencilDefinition())

	require.NoError(t, p.Skew("comp00", 0, 1, 1, 1))

	got, err := p.ScheduleString("comp00")
	require.NoError(t, err)
	assert.Equal(t, "{ comp00[i0, i1, i2] -> [0, i0 + i1, 0, i1, 0, i2, 0] }", got)
	assert.True(t, p.CheckLegality())

	assert.ErrorIs(t, p.Skew("comp00", 0, 1, 2, 2), ErrUnsupported)
	assert.ErrorIs(t, p.Skew("comp00", 1, 1, 1, 1), ErrUnsupported)
}

func TestTile(t *testing.T) {
	tests := []struct {
		name    string
		levels  []int
		factors []int
		legal   bool
	}{
		{name: "outer band", levels: []int{0, 1}, factors: []int{2, 2}, legal: true},
		{name: "band crossing the reduction", levels: []int{1, 2}, factors: []int{2, 2}, legal: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProgram(t, stencilDefinition())
			require.NoError(t, p.Tile("comp00", tt.levels, tt.factors))

			c, err := p.find("comp00")
			require.NoError(t, err)
			assert.Equal(t, 5, c.Depth())
			assert.Len(t, c.beta, 6)
			assert.Equal(t, tt.legal, p.CheckLegality())
		})
	}
}

func TestTile_Errors(t *testing.T) {
	p := newProgram(t, stencilDefinition())

	assert.ErrorIs(t, p.Tile("comp00", []int{0, 2}, []int{2, 2}), ErrUnsupported)
	assert.ErrorIs(t, p.Tile("comp00", []int{0}, []int{2, 2}), ErrUnsupported)
	assert.ErrorIs(t, p.Tile("comp00", []int{2, 3}, []int{2, 2}), ErrInvalidLevel)

	require.NoError(t, p.Tile("comp00", []int{0, 1}, []int{4, 4}))
	assert.ErrorIs(t, p.Tile("comp00", []int{0}, []int{2}), ErrUnsupported, "tiling a tile level")
}

func TestFuseSchedGraph(t *testing.T) {
	t.Run("without interchange", func(t *testing.T) {
		p := newProgram(t, gemverDefinition())

		require.NoError(t, p.FuseSchedGraph("A_hat", "x_temp", 0))
		assert.False(t, p.CheckLegality())
	})

	t.Run("after interchange", func(t *testing.T) {
		p := newProgram(t, gemverDefinition())

		require.NoError(t, p.Interchange("x_temp", 0, 1))
		require.NoError(t, p.FuseSchedGraph("A_hat", "x_temp", 0))

		got, err := p.ScheduleString("x_temp")
		require.NoError(t, err)
		assert.Equal(t, "{ x_temp[i, j] -> [0, j, 1, i, 0] }", got)
		assert.True(t, p.CheckLegality())
	})

	t.Run("later siblings move down", func(t *testing.T) {
		def := gemverDefinition()
		def.Computations[1].Level = intPtr(0)
		p := newProgram(t, def)

		// x_temp sits at [0, i, 1, ...]; fusing w after A_hat pushes it to 2
		require.NoError(t, p.FuseSchedGraph("A_hat", "w", 0))

		got, err := p.ScheduleString("x_temp")
		require.NoError(t, err)
		assert.Equal(t, "{ x_temp[i, j] -> [0, i, 2, j, 0] }", got)

		got, err = p.ScheduleString("w")
		require.NoError(t, err)
		assert.Equal(t, "{ w[i, j] -> [0, i, 1, j, 0] }", got)
	})
}

func TestFuseAfterTiling(t *testing.T) {
	tests := []struct {
		name        string
		interchange bool
		legal       bool
	}{
		{name: "matching tiles", interchange: true, legal: true},
		{name: "transposed tiles", interchange: false, legal: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProgram(t, gemverDefinition())
			if tt.interchange {
				require.NoError(t, p.Interchange("x_temp", 0, 1))
			}
			require.NoError(t, p.Tile("A_hat", []int{0, 1}, []int{4, 4}))
			require.NoError(t, p.Tile("x_temp", []int{0, 1}, []int{4, 4}))
			require.NoError(t, p.FuseAfterTiling([]string{"A_hat", "x_temp"}, 2))

			a, err := p.find("A_hat")
			require.NoError(t, err)
			x, err := p.find("x_temp")
			require.NoError(t, err)
			assert.Equal(t, []int{0, 0, 0, 0, 0}, a.beta)
			assert.Equal(t, []int{0, 0, 1, 0, 0}, x.beta)
			assert.Equal(t, tt.legal, p.CheckLegality())
		})
	}
}

func TestFuseAfterTiling_RequiresTile(t *testing.T) {
	p := newProgram(t, gemverDefinition())

	assert.ErrorIs(t, p.FuseAfterTiling([]string{"A_hat", "x_temp"}, 2), ErrUnsupported)
}
