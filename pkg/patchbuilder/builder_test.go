package patchbuilder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subsecond-dev/subsecond/pkg/differ"
	"github.com/subsecond-dev/subsecond/pkg/subserr"
)

type fakeDriver struct {
	result *LinkResult
	err    error
}

func (f *fakeDriver) Link(_ context.Context, _ LinkOptions) (*LinkResult, error) {
	return f.result, f.err
}

func TestBuilder_EmptyPlanProducesNoArtifact(t *testing.T) {
	b := &Builder{Driver: &fakeDriver{}}
	artifact, err := b.Build(context.Background(), &differ.Plan{}, nil, "out.so", false)
	require.NoError(t, err)
	assert.Nil(t, artifact)
}

func TestBuilder_LinkerFailurePropagatesVerbatim(t *testing.T) {
	linkErr := errors.New("cc: command not found")
	b := &Builder{Driver: &fakeDriver{err: linkErr}}
	plan := &differ.Plan{ExportedSymbols: []string{"greet"}}

	_, err := b.Build(context.Background(), plan, nil, "out.so", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, linkErr)
	assert.NotErrorIs(t, err, subserr.ErrBuilderVerificationFailed)
}

func TestBuilder_VerificationFailureWhenOutputMissing(t *testing.T) {
	b := &Builder{Driver: &fakeDriver{result: &LinkResult{OutputPath: "/nonexistent/out.so"}}}
	plan := &differ.Plan{ExportedSymbols: []string{"greet"}}

	_, err := b.Build(context.Background(), plan, nil, "out.so", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, subserr.ErrBuilderVerificationFailed)
}
