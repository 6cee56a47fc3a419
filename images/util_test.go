package images

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestMatChecksum(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()
	sum, err := MatChecksum(empty)
	require.NoError(t, err)
	assert.Equal(t, "empty", sum)

	a := gocv.NewMatWithSize(4, 6, gocv.MatTypeCV8UC3)
	defer a.Close()
	b := gocv.NewMatWithSize(4, 6, gocv.MatTypeCV8UC3)
	defer b.Close()
	// Same bytes, different geometry.
	c := gocv.NewMatWithSize(6, 4, gocv.MatTypeCV8UC3)
	defer c.Close()

	sumA, err := MatChecksum(a)
	require.NoError(t, err)
	sumB, err := MatChecksum(b)
	require.NoError(t, err)
	sumC, err := MatChecksum(c)
	require.NoError(t, err)

	assert.Equal(t, sumA, sumB)
	assert.NotEqual(t, sumA, sumC)

	b.SetUCharAt(1, 1, 200)
	sumB, err = MatChecksum(b)
	require.NoError(t, err)
	assert.NotEqual(t, sumA, sumB)
}
