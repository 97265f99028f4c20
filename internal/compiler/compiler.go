// Package compiler drives the native C toolchain that turns generated
// program code and wrapper sources into runnable binaries.
package compiler

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Default toolchain settings
const (
	DefaultCC             = "cc"
	DefaultCXX            = "c++"
	DefaultCompileTimeout = 5 * time.Minute
)

// DefaultCFlags are passed to every compile step
var DefaultCFlags = []string{"-O2"}

// Options configures a Toolchain
type Options struct {
	// C compiler, used for generated code and .c wrappers
	CC string

	// C++ compiler, used for .cpp and .cc wrappers
	CXX string

	// Flags passed to every compile step
	CFlags []string

	// Compile with -fopenmp so parallel loops run in parallel
	OpenMP bool

	// Upper bound for a single toolchain invocation
	Timeout time.Duration
}

type ShellCommand struct {
	Path string
	Args []string
}

func (s ShellCommand) String() string {
	return strings.TrimSpace(s.Path + " " + strings.Join(s.Args, " "))
}

// ObjectPath returns the object file generated code compiles to
func ObjectPath(dir, name string) string {
	return filepath.Join(dir, name+".o")
}

// SharedPath returns the shared library a wrapper links against
func SharedPath(dir, name string) string {
	return filepath.Join(dir, name+".o.so")
}

// WrapperPath returns the wrapper binary for a program
func WrapperPath(dir, name string) string {
	return filepath.Join(dir, name+"_wrapper")
}

// WrapperSources returns the wrapper source candidates, in lookup order
func WrapperSources(dir, name string) []string {
	return []string{
		filepath.Join(dir, name+"_wrapper.c"),
		filepath.Join(dir, name+"_wrapper.cpp"),
		filepath.Join(dir, name+"_wrapper.cc"),
	}
}

func (o Options) withDefaults() Options {
	if o.CC == "" {
		o.CC = DefaultCC
	}

	if o.CXX == "" {
		o.CXX = DefaultCXX
	}

	if o.CFlags == nil {
		o.CFlags = DefaultCFlags
	}

	if o.Timeout <= 0 {
		o.Timeout = DefaultCompileTimeout
	}

	return o
}

func (o Options) flags() []string {
	flags := append([]string{}, o.CFlags...)
	if o.OpenMP {
		flags = append(flags, "-fopenmp")
	}

	return flags
}

// GetSharedCommands returns the commands that compile <dir>/<name>.c into
// <name>.o and link it into <name>.o.so
func GetSharedCommands(opts Options, dir, name string) ([]ShellCommand, error) {
	opts = opts.withDefaults()

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for %s: %w", dir, err)
	}

	src := filepath.Join(absDir, name+".c")
	obj := ObjectPath(absDir, name)

	var compileArgs []string
	compileArgs = append(compileArgs, opts.flags()...)
	compileArgs = append(compileArgs, "-fPIC", "-c", "-o", obj, src)

	var linkArgs []string
	if opts.OpenMP {
		linkArgs = append(linkArgs, "-fopenmp")
	}
	linkArgs = append(linkArgs, "-shared", "-o", SharedPath(absDir, name), obj)

	return []ShellCommand{
		{Path: opts.CC, Args: compileArgs},
		{Path: opts.CC, Args: linkArgs},
	}, nil
}

// GetWrapperCommand returns the command that builds the wrapper binary from
// src, linked against the program's shared library
func GetWrapperCommand(opts Options, dir, name, src string) (*ShellCommand, error) {
	opts = opts.withDefaults()

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for %s: %w", dir, err)
	}

	absSrc, err := filepath.Abs(src)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for %s: %w", src, err)
	}

	path := opts.CC
	switch filepath.Ext(absSrc) {
	case ".cpp", ".cc", ".cxx":
		path = opts.CXX
	}

	var cmdArgs []string
	cmdArgs = append(cmdArgs, opts.flags()...)
	cmdArgs = append(cmdArgs,
		"-o", WrapperPath(absDir, name),
		absSrc,
		SharedPath(absDir, name),
		"-Wl,-rpath,"+absDir,
		"-lm",
	)

	return &ShellCommand{
		Path: path,
		Args: cmdArgs,
	}, nil
}
