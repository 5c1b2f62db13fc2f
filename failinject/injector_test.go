package failinject

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestFailpoint(t *testing.T) {
	inj := NewInjector()
	require.NoError(t, inj.Start())
	require.Equal(t, []string{AllocColumn, AssembleTable}, inj.Names())

	fp := inj.GetFailpoint(AllocColumn)
	require.NoError(t, fp.CheckFail())

	boom := errors.New("boom")
	fp.SetFailAction(func() error { return boom })
	require.Equal(t, boom, fp.CheckFail())

	fp.Deactivate()
	require.NoError(t, fp.CheckFail())
}

func TestFailOnNth(t *testing.T) {
	boom := errors.New("boom")
	action := FailOnNth(3, func() error { return boom })
	require.NoError(t, action())
	require.NoError(t, action())
	require.Equal(t, boom, action())
	require.Equal(t, boom, action())
}

func TestRegisterTwice(t *testing.T) {
	inj := NewInjector()
	require.NoError(t, inj.Start())
	_, err := inj.RegisterFailpoint(AssembleTable)
	require.Error(t, err)
	require.Panics(t, func() { inj.GetFailpoint("unknown") })
}

func TestDummyInjector(t *testing.T) {
	inj := NewDummyInjector()
	require.NoError(t, inj.Start())
	fp := inj.GetFailpoint(AllocColumn)
	fp.SetFailAction(func() error { return errors.New("never") })
	require.NoError(t, fp.CheckFail())
	require.Empty(t, inj.Names())
}
