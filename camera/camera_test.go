package camera

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"
)

func TestOpenPathMissing(t *testing.T) {
	_, err := OpenPath(filepath.Join(t.TempDir(), "missing.mp4"))
	assert.Error(t, err)
}

func TestClosedCamera(t *testing.T) {
	c := &Camera{source: 0}

	frame := gocv.NewMat()
	defer frame.Close()

	assert.ErrorIs(t, c.Read(&frame), ErrClosed)
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())

	w, h := c.Size()
	assert.Zero(t, w)
	assert.Zero(t, h)
}
