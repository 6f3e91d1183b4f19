package scantron

import (
	"errors"
	"testing"
)

func TestParseScanFilenameWithGrade(t *testing.T) {
	img, err := ParseScanFilename("U42_Q7_A99_G8_P1.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.UsageID != 42 || img.QuestionID != 7 || img.QuestionAttemptID != 99 {
		t.Fatalf("unexpected metadata: %+v", img)
	}
	if img.Grade == nil || *img.Grade != 8 {
		t.Fatalf("expected grade 8, got %v", img.Grade)
	}
}

func TestParseScanFilenameWithoutGrade(t *testing.T) {
	img, err := ParseScanFilename("U42_Q7_A99_P1.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Grade != nil {
		t.Fatalf("expected nil grade, got %v", *img.Grade)
	}
}

func TestParseScanFilenameCaseInsensitive(t *testing.T) {
	if _, err := ParseScanFilename("u3_q1_a2_p1.png"); err != nil {
		t.Fatalf("lower-case name should parse: %v", err)
	}
}

func TestParseScanFilenameMalformed(t *testing.T) {
	for _, name := range []string{"weird.jpg", "U42_Q7.jpg", "Q7_A99_P1.jpg", "U42_Q7_A99_G8.jpg"} {
		if _, err := ParseScanFilename(name); !errors.Is(err, ErrMalformedScanName) {
			t.Fatalf("%q: expected ErrMalformedScanName, got %v", name, err)
		}
	}
}

func TestParseScansCollectsMalformedSeparately(t *testing.T) {
	files := []ScanFile{
		{Name: "U42_Q7_A99_G8_P1.jpg", Data: []byte{1}},
		{Name: "weird.jpg", Data: []byte{2}},
		{Name: "U42_Q8_A100_P1.jpg", Data: []byte{3}},
	}
	images, malformed := ParseScans(files)
	if len(images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(images))
	}
	if len(malformed) != 1 || malformed[0] != "weird.jpg" {
		t.Fatalf("expected weird.jpg collected as malformed, got %v", malformed)
	}
	if images[0].Data == nil {
		t.Fatal("payload not attached")
	}
}
