package polyhedral

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func blurDefinition() Definition {
	return Definition{
		Name: "blur",
		Iterators: []Iterator{
			{Name: "c", Lo: 1, Hi: 4},
			{Name: "y", Lo: 1, Hi: 17},
			{Name: "x", Lo: 1, Hi: 33},
		},
		Buffers: []Buffer{
			{Name: "input_buf", Dims: []int{5, 18, 34}, Role: RoleInput},
			{Name: "output_buf", Dims: []int{5, 18, 34}, Role: RoleOutput},
		},
		Computations: []ComputationDef{
			{
				Name:      "comp_blur",
				Iterators: []string{"c", "y", "x"},
				Store:     "output_buf[c][y][x]",
				Expr: "(input_buf[c][y-1][x-1] + input_buf[c][y-1][x] + input_buf[c][y-1][x+1] + " +
					"input_buf[c][y][x-1] + input_buf[c][y][x] + input_buf[c][y][x+1] + " +
					"input_buf[c][y+1][x-1] + input_buf[c][y+1][x] + input_buf[c][y+1][x+1]) * 0.111111",
			},
		},
	}
}

func stencilDefinition() Definition {
	return Definition{
		Name: "function550013",
		Iterators: []Iterator{
			{Name: "i0", Lo: 1, Hi: 2049},
			{Name: "i1", Lo: 1, Hi: 2049},
			{Name: "i2", Lo: 0, Hi: 256},
		},
		Buffers: []Buffer{
			{Name: "buf00", Dims: []int{2050, 2050}, Role: RoleOutput},
			{Name: "buf01", Dims: []int{2050}, Role: RoleInput},
		},
		Computations: []ComputationDef{
			{
				Name:      "comp00",
				Iterators: []string{"i0", "i1", "i2"},
				Store:     "buf00[i0][i1]",
				Expr:      "(buf00[i0][i1] + buf00[i0][i1-1] + buf00[i0+1][i1] + buf00[i0][i1+1] + buf00[i0-1][i1]) * buf01[i2]",
			},
		},
	}
}

func seidelDefinition() Definition {
	return Definition{
		Name: "function_seidel_MINI",
		Iterators: []Iterator{
			{Name: "t", Lo: 0, Hi: 20},
			{Name: "i", Lo: 1, Hi: 39},
			{Name: "j", Lo: 1, Hi: 39},
		},
		Buffers: []Buffer{
			{Name: "b_A", Dims: []int{40, 40}, Role: RoleOutput},
		},
		Computations: []ComputationDef{
			{
				Name:      "comp_A",
				Iterators: []string{"t", "i", "j"},
				Store:     "b_A[i][j]",
				Expr: "(b_A[i-1][j-1] + b_A[i-1][j] + b_A[i-1][j+1] + " +
					"b_A[i][j-1] + b_A[i][j] + b_A[i][j+1] + " +
					"b_A[i+1][j-1] + b_A[i+1][j] + b_A[i+1][j+1]) / 9.0",
			},
		},
	}
}

func gemverDefinition() Definition {
	return Definition{
		Name: "gemver",
		Iterators: []Iterator{
			{Name: "i", Lo: 0, Hi: 40},
			{Name: "j", Lo: 0, Hi: 40},
		},
		Buffers: []Buffer{
			{Name: "b_A", Dims: []int{40, 40}, Role: RoleInput},
			{Name: "b_u1", Dims: []int{40}, Role: RoleInput},
			{Name: "b_u2", Dims: []int{40}, Role: RoleInput},
			{Name: "b_v1", Dims: []int{40}, Role: RoleInput},
			{Name: "b_v2", Dims: []int{40}, Role: RoleInput},
			{Name: "b_y", Dims: []int{40}, Role: RoleInput},
			{Name: "b_z", Dims: []int{40}, Role: RoleInput},
			{Name: "b_A_hat", Dims: []int{40, 40}, Role: RoleOutput},
			{Name: "b_x", Dims: []int{40}, Role: RoleOutput},
			{Name: "b_w", Dims: []int{40}, Role: RoleOutput},
		},
		Computations: []ComputationDef{
			{
				Name:      "A_hat",
				Iterators: []string{"i", "j"},
				Store:     "b_A_hat[i][j]",
				Expr:      "b_A[i][j] + b_u1[i] * b_v1[j] + b_u2[i] * b_v2[j]",
			},
			{
				Name:      "x_temp",
				Iterators: []string{"i", "j"},
				Store:     "b_x[i]",
				Expr:      "b_x[i] + b_A_hat[j][i] * b_y[j] * 1.2",
			},
			{
				Name:      "x",
				Iterators: []string{"i"},
				Store:     "b_x[i]",
				Expr:      "b_x[i] + b_z[i]",
			},
			{
				Name:      "w",
				Iterators: []string{"i", "j"},
				Store:     "b_w[i]",
				Expr:      "b_w[i] + b_A_hat[i][j] * b_x[j] * 1.5",
			},
		},
	}
}

func newProgram(t *testing.T, def Definition) *Program {
	t.Helper()

	p, err := New(def, Options{})
	require.NoError(t, err)
	require.NoError(t, p.PerformFullDependencyAnalysis())

	return p
}
