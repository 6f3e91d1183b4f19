package scantron

import "testing"

func TestParseCSVRowCount(t *testing.T) {
	csv := "ID,Student Name,Question1\n1001,John Public,B\n1002,Jane Public,A\n"
	rows, err := ParseCSV(csv, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["ID"] != "1001" || rows[1]["Student Name"] != "Jane Public" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestParseCSVSkipsBlankLines(t *testing.T) {
	csv := "\nID,Question1\n\n1001,B\n\n\n1002,C\n\n"
	rows, err := ParseCSV(csv, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
}

func TestParseCSVCarriageReturns(t *testing.T) {
	csv := "ID,Question1\r\n1001,B\r\n1002,C\r\n"
	rows, err := ParseCSV(csv, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 || rows[1]["Question1"] != "C" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestParseCSVTrimsHeadersAndValues(t *testing.T) {
	csv := " ID , Student Name \n 1001 , John Public \n"
	rows, err := ParseCSV(csv, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows[0]["ID"] != "1001" {
		t.Fatalf("expected trimmed header/value lookup, got %v", rows[0])
	}
	if rows[0]["Student Name"] != "John Public" {
		t.Fatalf("expected trimmed name, got %q", rows[0]["Student Name"])
	}
}

func TestParseCSVOmitSparse(t *testing.T) {
	csv := "ID,Question1,Question2\n1001,-1,B\n"

	rows, err := ParseCSV(csv, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := rows[0]["Question1"]; ok {
		t.Fatalf("sparse cell should be omitted: %v", rows[0])
	}
	if rows[0]["Question2"] != "B" {
		t.Fatalf("non-sparse cell lost: %v", rows[0])
	}

	rows, err = ParseCSV(csv, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows[0]["Question1"] != "-1" {
		t.Fatalf("sparse cell should be preserved without omitSparse: %v", rows[0])
	}
}

func TestParseCSVQuoting(t *testing.T) {
	csv := "ID,Student Name\n1001,\"Public, John\"\n"
	rows, err := ParseCSV(csv, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows[0]["Student Name"] != "Public, John" {
		t.Fatalf("quoted value mangled: %q", rows[0]["Student Name"])
	}
}

func TestParseCSVEmptyInput(t *testing.T) {
	for _, in := range []string{"", "\n\n", "\r\n"} {
		rows, err := ParseCSV(in, true)
		if err != nil {
			t.Fatalf("input %q: unexpected error: %v", in, err)
		}
		if len(rows) != 0 {
			t.Fatalf("input %q: expected no rows, got %d", in, len(rows))
		}
	}
}

func TestParseCSVExtraCellsIgnored(t *testing.T) {
	csv := "ID,Question1\n1001,B,stray\n"
	rows, err := ParseCSV(csv, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows[0]) != 2 {
		t.Fatalf("cells beyond the header should be dropped: %v", rows[0])
	}
}
