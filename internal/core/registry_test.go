package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weave/internal/core"
)

func noopAction() core.Action {
	return core.ActionFunc(func(ctx context.Context, job core.JobContext) error { return nil })
}

func TestRegisterFile_DuplicateOutputFails(t *testing.T) {
	reg := core.NewRegistry(false)
	require.NoError(t, reg.RegisterFile(&core.FileTarget{Outputs: []string{"a.out"}, Action: noopAction()}))

	err := reg.RegisterFile(&core.FileTarget{Outputs: []string{"a.out"}, Action: noopAction()})
	var dup *core.DuplicateTargetError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "a.out", dup.Name)
	assert.True(t, errors.Is(err, core.ErrDuplicateTarget))
}

func TestRegisterPhony_CollidesWithFileOutput(t *testing.T) {
	reg := core.NewRegistry(false)
	require.NoError(t, reg.RegisterFile(&core.FileTarget{Outputs: []string{"all"}, Action: noopAction()}))

	err := reg.RegisterPhony(&core.PhonyTarget{Name: "all"})
	var dup *core.DuplicateTargetError
	require.ErrorAs(t, err, &dup)
}

func TestRegisterFile_RequiresAction(t *testing.T) {
	reg := core.NewRegistry(false)
	err := reg.RegisterFile(&core.FileTarget{Outputs: []string{"a.out"}})
	var bad *core.BadArgumentError
	require.ErrorAs(t, err, &bad)
}

func TestRegisterFile_DefaultsUseHash(t *testing.T) {
	reg := core.NewRegistry(true)
	ft := &core.FileTarget{Outputs: []string{"a.out"}, Action: noopAction()}
	require.NoError(t, reg.RegisterFile(ft))
	require.NotNil(t, ft.UseHash)
	assert.True(t, *ft.UseHash)
}

func TestLookup_UnknownNameNotFound(t *testing.T) {
	reg := core.NewRegistry(false)
	res := reg.Lookup("missing")
	assert.False(t, res.Found)
}

func TestList_PreservesRegistrationOrderAndDedupesMultiOutput(t *testing.T) {
	reg := core.NewRegistry(false)
	require.NoError(t, reg.RegisterFile(&core.FileTarget{Outputs: []string{"b.out"}, Action: noopAction(), Desc: "build b"}))
	require.NoError(t, reg.RegisterFile(&core.FileTarget{Outputs: []string{"a.out", "a.map"}, Action: noopAction()}))
	require.NoError(t, reg.RegisterPhony(&core.PhonyTarget{Name: "all", Inputs: []string{"a.out", "b.out"}}))

	listing := reg.List()
	names := make([]string, len(listing))
	for i, l := range listing {
		names[i] = l.Name
	}
	assert.Equal(t, []string{"b.out", "a.out", "all"}, names)
	assert.Equal(t, "build b", listing[0].Desc)
	assert.Equal(t, "(no description)", listing[1].Desc)
}
