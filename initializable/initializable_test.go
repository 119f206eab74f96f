package initializable

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeComponent struct {
	State
	initCalls, uninitCalls int
	uninitErr              error
}

func (f *fakeComponent) Initialize() error {
	return f.RunInitialize(func() error {
		f.initCalls++
		return nil
	})
}

func (f *fakeComponent) Uninitialize() error {
	return f.RunUninitialize(func() error {
		f.uninitCalls++
		return f.uninitErr
	})
}

func TestInitializeAndUninitializeAreIdempotent(t *testing.T) {
	c := &fakeComponent{}
	require.NoError(t, c.Initialize())
	require.NoError(t, c.Initialize())
	require.Equal(t, 1, c.initCalls)
	require.True(t, c.IsInitialized())

	require.NoError(t, c.Uninitialize())
	require.NoError(t, c.Uninitialize())
	require.Equal(t, 1, c.uninitCalls)
	require.False(t, c.IsInitialized())
}

func TestGuardReleasesCleanlyWhenAlreadyUninitialized(t *testing.T) {
	c := &fakeComponent{}
	require.NoError(t, c.Initialize())
	require.NoError(t, c.Uninitialize())

	g := NewGuard("fakeComponent", c, AbortAlwaysIfStillInitialized)
	g.Release() // must not abort: already uninitialized
}

func TestGuardCallsUninitializeWhenForgotten(t *testing.T) {
	c := &fakeComponent{}
	require.NoError(t, c.Initialize())

	g := NewGuard("fakeComponent", c, WarnOnUnclean)
	g.Release()
	require.Equal(t, 1, c.uninitCalls)
	require.False(t, c.IsInitialized())
}

func TestGuardAbortAlwaysPolicyCallsExit(t *testing.T) {
	c := &fakeComponent{}
	require.NoError(t, c.Initialize())

	var exitCode int
	called := false
	orig := exitFunc
	exitFunc = func(code int) { called = true; exitCode = code }
	defer func() { exitFunc = orig }()

	g := NewGuard("fakeComponent", c, AbortAlwaysIfStillInitialized)
	g.Release()
	require.True(t, called)
	require.Equal(t, 1, exitCode)
	// AbortAlwaysIfStillInitialized never even calls Uninitialize.
	require.Equal(t, 0, c.uninitCalls)
}

func TestGuardAbortOnUninitializeErrorPolicy(t *testing.T) {
	c := &fakeComponent{uninitErr: errors.New("boom")}
	require.NoError(t, c.Initialize())

	called := false
	orig := exitFunc
	exitFunc = func(code int) { called = true }
	defer func() { exitFunc = orig }()

	g := NewGuard("fakeComponent", c, AbortOnUninitializeError)
	g.Release()
	require.True(t, called)
	require.Equal(t, 1, c.uninitCalls)
}
