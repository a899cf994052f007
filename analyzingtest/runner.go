package analyzingtest

import (
	"context"
	"strings"
	"testing"

	"github.com/podhmo/go-analyzing"
	"github.com/podhmo/go-analyzing/machine"
	"github.com/podhmo/go-analyzing/object"
)

// ModulePath is the module path of the projects a Runner creates.
const ModulePath = "example.com/analyzingtest/module"

// Runner sets up a project from in-memory sources and runs entry points of
// its root package.
type Runner struct {
	t     *testing.T
	files map[string]string
	opts  []analyzing.Option
	p     *analyzing.Project
}

// NewRunner creates a runner for a single-file main package.
func NewRunner(t *testing.T, source string) *Runner {
	t.Helper()
	if !strings.HasPrefix(strings.TrimSpace(source), "package ") {
		source = "package main\n\n" + source
	}
	return &Runner{t: t, files: map[string]string{"main.go": source}}
}

// NewRunnerWithMultiFiles creates a runner for several documents keyed by
// slash-separated path relative to the module root.
func NewRunnerWithMultiFiles(t *testing.T, files map[string]string) *Runner {
	t.Helper()
	return &Runner{t: t, files: files}
}

// WithOptions adds project options. It must be called before the first run.
func (r *Runner) WithOptions(opts ...analyzing.Option) *Runner {
	r.opts = append(r.opts, opts...)
	return r
}

// Project returns the project of the runner, creating it on first use.
func (r *Runner) Project() *analyzing.Project {
	r.t.Helper()
	if r.p == nil {
		p, err := analyzing.New(ModulePath, r.files, r.opts...)
		if err != nil {
			r.t.Fatalf("failed to load sources: %v", err)
		}
		r.t.Cleanup(p.Close)
		r.p = p
	}
	return r.p
}

// Run interprets funcName of the root package and fails the test on error.
func (r *Runner) Run(funcName string) *machine.Result {
	r.t.Helper()
	res, err := r.Project().Analyze(context.Background(), object.MethodID(ModulePath+"."+funcName))
	if err != nil {
		r.t.Fatalf("Analyze(%s) failed: %v", funcName, err)
	}
	return res
}
