package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weave/internal/core"
	"weave/internal/engine"
)

func TestEngine_FileAndPhonyRegisterAgainstRegistry(t *testing.T) {
	eng := engine.New(engine.Config{NJobs: 2})

	noop := core.ActionFunc(func(ctx context.Context, job core.JobContext) error { return nil })
	require.NoError(t, eng.File([]string{"out"}, []string{"in"}, noop, engine.Desc("builds out"), engine.Serial()))
	require.NoError(t, eng.Phony("all", []string{"out"}))

	lookup := eng.Registry().Lookup("out")
	require.True(t, lookup.Found)
	assert.Equal(t, "builds out", lookup.File.Desc)
	assert.Equal(t, "out", lookup.File.SerialClass)

	allLookup := eng.Registry().Lookup("all")
	require.True(t, allLookup.Found)
	assert.Equal(t, []string{"out"}, allLookup.Phony.Inputs)
}

func TestEngine_SerialClassExplicitTagOverridesAuto(t *testing.T) {
	eng := engine.New(engine.Config{})
	noop := core.ActionFunc(func(ctx context.Context, job core.JobContext) error { return nil })
	require.NoError(t, eng.File([]string{"out"}, nil, noop, engine.SerialClass("shared"), engine.Serial()))

	lookup := eng.Registry().Lookup("out")
	require.True(t, lookup.Found)
	assert.Equal(t, "shared", lookup.File.SerialClass)
}

func TestLoop_InvokesFnPerItem(t *testing.T) {
	var seen []int
	engine.Loop([]int{1, 2, 3}, func(i int) { seen = append(seen, i*2) })
	assert.Equal(t, []int{2, 4, 6}, seen)
}
