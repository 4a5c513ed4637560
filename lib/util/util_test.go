package util

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestCloseAllReverseOrder(t *testing.T) {
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		RegisterCloser(closerFunc(func() error {
			order = append(order, i)
			if i == 1 {
				return errors.New("close failed")
			}
			return nil
		}))
	}
	CloseAll()
	assert.Equal(t, []int{2, 1, 0}, order)

	CloseAll()
	assert.Len(t, order, 3)
}

func TestCheckFileExists(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "router.key")
	assert.False(t, CheckFileExists(f))
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o600))
	assert.True(t, CheckFileExists(f))
}

func TestUserHomeFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	assert.Equal(t, dir, UserHome())
}
