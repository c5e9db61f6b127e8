package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewClampsMinimums(t *testing.T) {
	c := New(Options{MaxThreads: 0, MaxVMCreateTries: -1})
	require.Equal(t, 1, c.MaxThreads())
	require.Equal(t, 1, c.MaxVMCreateTries())
}

func TestNewPreservesValidValues(t *testing.T) {
	c := New(Options{MaxThreads: 32, MaxVMCreateTries: 5, Encryption: true})
	require.Equal(t, 32, c.MaxThreads())
	require.Equal(t, 5, c.MaxVMCreateTries())
	require.True(t, c.Encryption())
}

func TestCancelIsIdempotentAndVisible(t *testing.T) {
	c := New(Options{MaxThreads: 1, MaxVMCreateTries: 1})
	require.False(t, c.Cancelled())
	c.Cancel()
	c.Cancel()
	require.True(t, c.Cancelled())
}
