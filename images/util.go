package images

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// MatChecksum returns a deterministic hex digest of a Mat's geometry and
// pixel bytes. Two Mats share a checksum only if they hold the same pixels
// in the same layout.
//
// Arguments:
//   - mat: The Mat to hash. An empty Mat hashes to "empty".
//
// Returns:
//   - string: The hex-encoded SHA-256 digest.
//   - error: An error if the pixel data cannot be read, e.g. for a
//     non-continuous region of interest.
//
// Example:
//
// ```go
//
//	before, _ := MatChecksum(frame)
//	render.DrawFPS(&frame, 30)
//	after, _ := MatChecksum(frame)
//	changed := before != after
//
// ```
func MatChecksum(mat gocv.Mat) (string, error) {
	if mat.Empty() {
		return "empty", nil
	}

	data, err := mat.DataPtrUint8()
	if err != nil {
		return "", errors.Wrap(err, "read mat data")
	}

	hash := sha256.New()
	var header [12]byte
	binary.LittleEndian.PutUint32(header[0:], uint32(mat.Rows()))
	binary.LittleEndian.PutUint32(header[4:], uint32(mat.Cols()))
	binary.LittleEndian.PutUint32(header[8:], uint32(mat.Type()))
	hash.Write(header[:])
	hash.Write(data)
	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}
