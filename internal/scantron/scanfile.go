package scantron

import (
	"errors"
	"regexp"
	"strconv"
)

// ErrMalformedScanName marks a filename that does not match the expected
// U<usage>_Q<question>_A<attempt>_[G<grade>_]P<page>.<ext> pattern.
var ErrMalformedScanName = errors.New("scan filename does not match expected pattern")

var scanNamePattern = regexp.MustCompile(`(?i)^U(\d+)_Q(\d+)_A(\d+)_(?:G(\d+)_)?P\d+\.`)

// ScannedImage is the metadata decoded from one scanned page's filename,
// plus its binary payload.
type ScannedImage struct {
	UsageID           int64
	QuestionID        int64
	QuestionAttemptID int64
	Grade             *int // 0-10 scanning-form scale; nil when absent
	Filename          string
	Data              []byte
}

// ScanFile is one uploaded file, prior to filename decoding.
type ScanFile struct {
	Name string
	Data []byte
}

// ParseScanFilename decodes one filename into its image metadata. The payload
// is left nil; callers attach it.
func ParseScanFilename(name string) (ScannedImage, error) {
	m := scanNamePattern.FindStringSubmatch(name)
	if m == nil {
		return ScannedImage{}, ErrMalformedScanName
	}
	usage, _ := strconv.ParseInt(m[1], 10, 64)
	question, _ := strconv.ParseInt(m[2], 10, 64)
	attempt, _ := strconv.ParseInt(m[3], 10, 64)
	img := ScannedImage{
		UsageID:           usage,
		QuestionID:        question,
		QuestionAttemptID: attempt,
		Filename:          name,
	}
	if m[4] != "" {
		grade, _ := strconv.Atoi(m[4])
		img.Grade = &grade
	}
	return img, nil
}

// ParseScans decodes a set of uploaded files. Malformed filenames are not
// fatal; they come back in the second return for separate reporting.
func ParseScans(files []ScanFile) ([]ScannedImage, []string) {
	var images []ScannedImage
	var malformed []string
	for _, f := range files {
		img, err := ParseScanFilename(f.Name)
		if err != nil {
			malformed = append(malformed, f.Name)
			continue
		}
		img.Data = f.Data
		images = append(images, img)
	}
	return images, malformed
}
