package mrz

import "testing"

func TestParseValidRecord(t *testing.T) {
	ocr := "SOME OCR NOISE\n" +
		"P<LBNALHAJ<<ALI<<<<<<<<<<<<<<<<<<<<<<<<<<<<\n" +
		"AB1234567<LBN9001015M2501011<<<<<<<<<<<<<<08\n" +
		"TRAILING NOISE"

	rec, ok := Parse(ocr)
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if rec.PassportNumber != "AB1234567" {
		t.Errorf("passport number = %q", rec.PassportNumber)
	}
	if rec.FullName != "ALI ALHAJ" {
		t.Errorf("full name = %q", rec.FullName)
	}
	if rec.Nationality != "LBN" {
		t.Errorf("nationality = %q", rec.Nationality)
	}
	if rec.Sex != "M" {
		t.Errorf("sex = %q", rec.Sex)
	}
	if rec.DateOfBirth != "1990-01-01" {
		t.Errorf("dob = %q", rec.DateOfBirth)
	}
	if rec.IssuingState != "LBN" {
		t.Errorf("issuing state = %q", rec.IssuingState)
	}
}

func TestParseLowercaseInput(t *testing.T) {
	ocr := "p<lbnalhaj<<ali<<<<<<<<<<<<<<<<<<<<<<<<<<<<\n" +
		"ab1234567<lbn9001015m2501011<<<<<<<<<<<<<<08\n"

	rec, ok := Parse(ocr)
	if !ok {
		t.Fatalf("expected parse to succeed on lowercase input")
	}
	if rec.PassportNumber != "AB1234567" {
		t.Errorf("passport number = %q", rec.PassportNumber)
	}
}

func TestParseNoMRZLine(t *testing.T) {
	_, ok := Parse("nothing resembling an MRZ here\njust some text\n")
	if ok {
		t.Fatalf("expected not-found when no P< line present")
	}
}

func TestParseMissingSecondLine(t *testing.T) {
	ocr := "P<LBNALHAJ<<ALI<<<<<<<<<<<<<<<<<<<<<<<<<<<<\n"
	_, ok := Parse(ocr)
	if ok {
		t.Fatalf("expected not-found when second line is missing")
	}
}

func TestParseMalformedDate(t *testing.T) {
	ocr := "P<LBNALHAJ<<ALI<<<<<<<<<<<<<<<<<<<<<<<<<<<<\n" +
		"AB1234567<LBN99AA15M2501011<<<<<<<<<<<<<<08\n"
	_, ok := Parse(ocr)
	if ok {
		t.Fatalf("expected not-found for malformed date of birth")
	}
}

func TestParseCenturyWindow(t *testing.T) {
	ocr := "P<USASMITH<<JANE<<<<<<<<<<<<<<<<<<<<<<<<<<<\n" +
		"C1234567<0USA5006154F3012318<<<<<<<<<<<<<<02\n"
	rec, ok := Parse(ocr)
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if rec.DateOfBirth != "2050-06-15" {
		t.Errorf("dob = %q, want century-window 2050-06-15", rec.DateOfBirth)
	}
	if rec.ExpiryDate != "2030-12-31" {
		t.Errorf("expiry = %q, want 2030-12-31", rec.ExpiryDate)
	}
}

func TestParseTruncatesOverlongLines(t *testing.T) {
	ocr := "P<LBNALHAJ<<ALI<<<<<<<<<<<<<<<<<<<<<<<<<<<<EXTRAGARBAGE\n" +
		"AB1234567<LBN9001015M2501011<<<<<<<<<<<<<<08EXTRAGARBAGE\n"
	rec, ok := Parse(ocr)
	if !ok {
		t.Fatalf("expected parse to succeed with overlong lines truncated")
	}
	if rec.PassportNumber != "AB1234567" {
		t.Errorf("passport number = %q", rec.PassportNumber)
	}
}
