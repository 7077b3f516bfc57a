// Package mrz decodes ICAO 9303 TD3 machine-readable-zone passport lines
// out of noisy OCR text blocks.
package mrz

import (
	"strconv"
	"strings"
)

// Record is the identity data decoded from one TD3 MRZ. Both raw lines are
// retained for audit even though this revision does not verify checksums.
type Record struct {
	IssuingState  string
	Surname       string
	GivenNames    string
	FullName      string
	PassportNumber string
	Nationality   string
	DateOfBirth   string
	Sex           string
	ExpiryDate    string
	Line1         string
	Line2         string
}

const lineWidth = 44

// Parse looks for the first "P<" line in ocrText and decodes it together
// with the line that follows. It never panics: any malformed record simply
// yields ok=false so the caller can skip that OCR block.
func Parse(ocrText string) (rec Record, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			rec, ok = Record{}, false
		}
	}()

	upper := strings.ToUpper(ocrText)
	lines := strings.Split(upper, "\n")

	idx := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "P<") {
			idx = i
			break
		}
	}
	if idx == -1 || idx+1 >= len(lines) {
		return Record{}, false
	}

	l1 := padTruncate(strings.TrimSpace(lines[idx]))
	l2 := padTruncate(strings.TrimSpace(lines[idx+1]))
	if len(l1) != lineWidth || len(l2) != lineWidth {
		return Record{}, false
	}

	issuingState := l1[2:5]

	namesField := strings.ReplaceAll(l1[5:44], "<", " ")
	parts := splitOnDoubleSpace(strings.TrimRight(namesField, " "))
	var surname, given string
	if len(parts) > 0 {
		surname = strings.TrimSpace(parts[0])
	}
	if len(parts) > 1 {
		given = strings.TrimSpace(strings.Join(parts[1:], " "))
	}
	fullName := strings.TrimSpace(strings.TrimSpace(given) + " " + surname)

	passportNumber := strings.ReplaceAll(l2[0:9], "<", "")
	nationality := l2[10:13]

	dob, err := mrzDate(l2[13:19])
	if err != nil {
		return Record{}, false
	}
	sex := l2[20:21]
	expiry, err := mrzDate(l2[21:27])
	if err != nil {
		return Record{}, false
	}

	return Record{
		IssuingState:   issuingState,
		Surname:        surname,
		GivenNames:     given,
		FullName:       fullName,
		PassportNumber: passportNumber,
		Nationality:    nationality,
		DateOfBirth:    dob,
		Sex:            sex,
		ExpiryDate:     expiry,
		Line1:          l1,
		Line2:          l2,
	}, true
}

func padTruncate(s string) string {
	if len(s) < lineWidth {
		return s + strings.Repeat("<", lineWidth-len(s))
	}
	return s[:lineWidth]
}

// splitOnDoubleSpace mirrors the MRZ convention of a double "<<" (which
// becomes a double space after the "<" -> " " substitution) separating the
// surname from the given names.
func splitOnDoubleSpace(s string) []string {
	raw := strings.Split(s, "  ")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// mrzDate converts the MRZ YYMMDD window into an ISO YYYY-MM-DD string,
// using the century pivot specified in the field spec: YY<=50 is 2000+YY,
// otherwise 1900+YY.
func mrzDate(field string) (string, error) {
	if len(field) != 6 {
		return "", strconv.ErrSyntax
	}
	yy, err := strconv.Atoi(field[0:2])
	if err != nil {
		return "", err
	}
	mm, err := strconv.Atoi(field[2:4])
	if err != nil {
		return "", err
	}
	dd, err := strconv.Atoi(field[4:6])
	if err != nil {
		return "", err
	}
	if mm < 1 || mm > 12 || dd < 1 || dd > 31 {
		return "", strconv.ErrRange
	}
	year := 1900 + yy
	if yy <= 50 {
		year = 2000 + yy
	}
	return strconv.Itoa(year) + "-" + zeroPad(mm) + "-" + zeroPad(dd), nil
}

func zeroPad(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
