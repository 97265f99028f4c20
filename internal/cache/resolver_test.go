package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Norgate-AV/polysched/internal/compiler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeCompiler writes a marker binary instead of invoking a toolchain
type fakeCompiler struct {
	calls []string
	err   error
}

func (f *fakeCompiler) CompileWrapper(ctx context.Context, dir, name, src string) error {
	f.calls = append(f.calls, filepath.Base(src))
	if f.err != nil {
		return f.err
	}

	return os.WriteFile(compiler.WrapperPath(dir, name), []byte("built from "+filepath.Base(src)), 0o755)
}

func TestResolver_ReusesExistingBinary(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "function_blur_MINI_wrapper")
	require.NoError(t, os.WriteFile(existing, []byte("prebuilt"), 0o755))
	require.NoError(t, os.WriteFile(existing+".c", []byte("int main(){}"), 0o644))

	fc := &fakeCompiler{}
	r := NewResolver(fc, nil, zaptest.NewLogger(t))

	path, err := r.Resolve(context.Background(), "function_blur_MINI", dir)
	require.NoError(t, err)

	assert.Equal(t, existing, path)
	assert.Empty(t, fc.calls, "an existing wrapper is never recompiled")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "prebuilt", string(data))
}

func TestResolver_CompilesLocalSource(t *testing.T) {
	tests := []struct {
		name    string
		sources []string
		want    []string
	}{
		{name: "c source", sources: []string{"p_wrapper.c"}, want: []string{"p_wrapper.c"}},
		{name: "cpp source", sources: []string{"p_wrapper.cpp"}, want: []string{"p_wrapper.cpp"}},
		{name: "c preferred", sources: []string{"p_wrapper.cpp", "p_wrapper.c"}, want: []string{"p_wrapper.c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, src := range tt.sources {
				require.NoError(t, os.WriteFile(filepath.Join(dir, src), []byte("int main(){}"), 0o644))
			}

			fc := &fakeCompiler{}
			store, err := New(t.TempDir())
			require.NoError(t, err)
			defer store.Close()

			r := NewResolver(fc, store, nil)
			path, err := r.Resolve(context.Background(), "p", dir)
			require.NoError(t, err)

			assert.Equal(t, filepath.Join(dir, "p_wrapper"), path)
			assert.Equal(t, tt.want, fc.calls)

			// Published to the store
			blob, err := store.Get(context.Background(), "p")
			require.NoError(t, err)
			assert.Equal(t, "built from "+tt.want[0], string(blob))
		})
	}
}

func TestResolver_CompileFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "p_wrapper.c"), []byte("int main("), 0o644))

	r := NewResolver(&fakeCompiler{err: compiler.ErrToolchainCrashed}, nil, nil)
	_, err := r.Resolve(context.Background(), "p", dir)

	assert.ErrorIs(t, err, ErrWrapperUnresolved)
	assert.ErrorIs(t, err, compiler.ErrToolchainCrashed)
}

func TestResolver_FetchesFromStore(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "wrappers.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put(context.Background(), "function550013", []byte("from store")))

	fc := &fakeCompiler{}
	r := NewResolver(fc, store, nil)

	path, err := r.Resolve(context.Background(), "function550013", dir)
	require.NoError(t, err)
	assert.Empty(t, fc.calls)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from store", string(data))
}

func TestResolver_Unresolved(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	tests := []struct {
		name  string
		store Store
	}{
		{name: "no store", store: nil},
		{name: "store miss", store: store},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(&fakeCompiler{}, tt.store, nil)

			_, err := r.Resolve(context.Background(), "p", t.TempDir())
			assert.ErrorIs(t, err, ErrWrapperUnresolved)
		})
	}
}

// failingStore rejects writes
type failingStore struct {
	Store
}

func (failingStore) Put(ctx context.Context, program string, blob []byte) error {
	return errors.New("read-only")
}

func TestResolver_PublishFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "p_wrapper.c"), []byte("int main(){}"), 0o644))

	r := NewResolver(&fakeCompiler{}, failingStore{}, zaptest.NewLogger(t))
	path, err := r.Resolve(context.Background(), "p", dir)
	require.NoError(t, err)
	assert.FileExists(t, path)
}
