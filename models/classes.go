package models

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// YOLOClasses is the 80 COCO classes (no background).
// YOLO models index directly into this zero-based list.
var YOLOClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear", "hair drier",
	"toothbrush",
}

// LoadClassFile reads a class-name table, one name per line.
//
// Lines are trimmed and blank lines are skipped, so the line index of a name
// is not necessarily its class id: the n-th non-empty line is class n.
//
// Arguments:
//   - path: The path to the class file.
//
// Returns:
//   - []string: The class names indexed by class id.
//   - error: An error if the file cannot be opened or read.
func LoadClassFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open class file %s", path)
	}
	defer f.Close()

	classes := make([]string, 0, len(YOLOClasses))
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		classes = append(classes, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "read class file %s", path)
	}

	return classes, nil
}

// ClassName returns the name for classID, or "" when it is out of range.
func ClassName(classes []string, classID int) string {
	if classID < 0 || classID >= len(classes) {
		return ""
	}
	return classes[classID]
}
