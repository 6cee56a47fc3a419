package providers

import (
	"os"
	"runtime"

	"github.com/pkg/errors"
)

// SharedLibraryEnv names the environment variable that overrides the
// onnxruntime shared library location.
const SharedLibraryEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// ErrNoSharedLibrary is returned when no onnxruntime build is known for the platform.
var ErrNoSharedLibrary = errors.New("no onnxruntime shared library for this platform")

// SharedLibraryPath returns the path to the onnxruntime shared library.
//
// Precedence: an explicit path, then $ONNXRUNTIME_SHARED_LIBRARY_PATH, then
// the platform default under ./third_party.
//
// Arguments:
//   - explicit: A configured path; empty to fall through.
//
// Returns:
//   - string: The path to the shared library.
//   - error: ErrNoSharedLibrary for an unknown platform.
func SharedLibraryPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if env := os.Getenv(SharedLibraryEnv); env != "" {
		return env, nil
	}
	return defaultSharedLibraryPath(runtime.GOOS, runtime.GOARCH)
}

func defaultSharedLibraryPath(goos, goarch string) (string, error) {
	switch goos {
	case "windows":
		if goarch == "amd64" {
			return "./third_party/onnxruntime.dll", nil
		}
	case "darwin":
		return "./third_party/libonnxruntime.1.21.0.dylib", nil
	case "linux":
		if goarch == "arm64" {
			return "./third_party/onnxruntime_arm64.so", nil
		}
		return "./third_party/onnxruntime.so", nil
	}
	return "", errors.Wrapf(ErrNoSharedLibrary, "%s/%s", goos, goarch)
}
