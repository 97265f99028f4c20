package cache

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Norgate-AV/polysched/internal/compiler"
	"go.uber.org/zap"
)

// ErrWrapperUnresolved is returned when no wrapper binary can be found or
// built for a program
var ErrWrapperUnresolved = errors.New("wrapper unresolved")

// WrapperCompiler builds <dir>/<name>_wrapper from a source file.
// *compiler.Toolchain implements it.
type WrapperCompiler interface {
	CompileWrapper(ctx context.Context, dir, name, src string) error
}

var _ WrapperCompiler = (*compiler.Toolchain)(nil)

// Resolver finds the wrapper binary for a program
type Resolver struct {
	compiler WrapperCompiler
	store    Store
	logger   *zap.Logger
}

// NewResolver creates a resolver. store may be nil.
func NewResolver(c WrapperCompiler, store Store, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Resolver{compiler: c, store: store, logger: logger}
}

// Resolve returns the path of an executable wrapper for program in
// workDir. An existing binary is reused as is.
func (r *Resolver) Resolve(ctx context.Context, program, workDir string) (string, error) {
	path := compiler.WrapperPath(workDir, program)
	log := r.logger.With(zap.String("program", program))

	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		log.Debug("reusing wrapper", zap.String("path", path))
		return path, nil
	}

	for _, src := range compiler.WrapperSources(workDir, program) {
		if _, err := os.Stat(src); err != nil {
			continue
		}

		log.Debug("compiling wrapper", zap.String("source", src))
		if err := r.compiler.CompileWrapper(ctx, workDir, program, src); err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrWrapperUnresolved, program, err)
		}

		r.publish(ctx, program, path)
		return path, nil
	}

	if r.store == nil {
		return "", fmt.Errorf("%w: %s: no binary, source or store", ErrWrapperUnresolved, program)
	}

	blob, err := r.store.Get(ctx, program)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrWrapperUnresolved, err)
	}

	if err := WriteArtifact(path, blob); err != nil {
		return "", fmt.Errorf("%w: %w", ErrWrapperUnresolved, err)
	}

	log.Debug("fetched wrapper from store", zap.Int("size", len(blob)))
	return path, nil
}

// publish stores a freshly built wrapper so other hosts can fetch it
func (r *Resolver) publish(ctx context.Context, program, path string) {
	if r.store == nil {
		return
	}

	blob, err := ReadArtifact(path)
	if err == nil {
		err = r.store.Put(ctx, program, blob)
	}

	// Don't fail the request, the wrapper is already usable locally
	if err != nil {
		r.logger.Warn("failed to store wrapper", zap.String("program", program), zap.Error(err))
	}
}
