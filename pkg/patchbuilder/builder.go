package patchbuilder

import (
	"context"
	"fmt"

	"github.com/subsecond-dev/subsecond/pkg/differ"
)

// Builder drives a LinkerDriver from a differ.Plan: it links the objects
// with the plan's export set (the changed and new functions; data the
// plan pulled into its closure is linked in but not exported), and
// verifies the result before handing the artifact path back to the
// caller.
type Builder struct {
	Driver LinkerDriver
	Linked LinkedArtifact
}

// LinkedArtifact is the output of a successful Build.
type LinkedArtifact struct {
	Path    string
	Exports []string
}

// New returns a Builder using the platform's default linker driver.
func New() *Builder {
	return &Builder{Driver: DefaultDriver()}
}

// Build links objectPaths into outputPath, exporting exactly the
// symbols plan.ExportedSymbols names, then verifies the artifact
// actually exports that set — see verify.go. An empty plan produces no
// artifact, matching the "no changes" case.
func (b *Builder) Build(ctx context.Context, plan *differ.Plan, objectPaths []string, outputPath string, verbose bool) (*LinkedArtifact, error) {
	if plan.Empty() {
		return nil, nil
	}

	opts := LinkOptions{
		Objects:    objectPaths,
		Exports:    plan.ExportedSymbols,
		OutputPath: outputPath,
		Verbose:    verbose,
	}

	result, err := b.Driver.Link(ctx, opts)
	if err != nil {
		// Linker process failure propagates verbatim rather than being
		// wrapped as a verification failure: the two are reported
		// distinctly because only the latter indicates an engine bug.
		return nil, fmt.Errorf("linker: %w", err)
	}

	if err := verifyExports(result.OutputPath, plan.ExportedSymbols); err != nil {
		return nil, err
	}

	return &LinkedArtifact{Path: result.OutputPath, Exports: plan.ExportedSymbols}, nil
}
