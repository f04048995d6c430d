// Package atcud decodes the QR payload printed on Portuguese fiscal receipts
// (ATCUD standard): a *-delimited string of KEY:VALUE tokens. Two field-layout
// variants circulate in the wild and both are accepted; whichever field parses
// as the expected type wins. Parsing never fails: malformed fields are dropped
// and the draft carries whatever subset could be extracted.
package atcud

import (
	"strconv"
	"strings"
)

// placeholderNIF is the generic "no customer NIF provided" value and is
// dropped rather than copied into the draft.
const placeholderNIF = "999999990"

// Draft is the partial receipt extracted from a scanned payload. Zero-value
// fields mean "not extracted", not an error.
type Draft struct {
	NIF           string
	CustomerNIF   string
	Date          string
	Time          string
	ReceiptNumber string
	Total         *float64
}

// IsValid prechecks a payload: it must start with "A:" and contain at least
// one token separator.
func IsValid(payload string) bool {
	return strings.HasPrefix(payload, "A:") && strings.Contains(payload, "*")
}

// Parse extracts a receipt draft from payload. Unknown keys are ignored and
// known keys overwrite on repeat. An invalid payload yields an empty draft.
func Parse(payload string) Draft {
	var d Draft
	if !IsValid(payload) {
		return d
	}

	var fallbackTotal *float64
	for _, token := range strings.Split(payload, "*") {
		key, value, ok := strings.Cut(token, ":")
		if !ok || value == "" {
			continue
		}
		switch key {
		case "A":
			d.NIF = value
		case "B":
			if value != placeholderNIF {
				d.CustomerNIF = value
			}
		case "F":
			if date, clock, ok := parseDateTime(value); ok {
				d.Date = date
				if clock != "" {
					d.Time = clock
				}
			}
		case "G":
			d.ReceiptNumber = value
		case "H":
			// One layout variant encodes the time here; the other a
			// document identifier.
			if clock, ok := parseClock(value); ok {
				d.Time = clock
			} else if d.ReceiptNumber == "" {
				d.ReceiptNumber = value
			}
		case "N", "I":
			if total, err := strconv.ParseFloat(value, 64); err == nil {
				d.Total = &total
			}
		case "O":
			if total, err := strconv.ParseFloat(value, 64); err == nil {
				fallbackTotal = &total
			}
		}
	}
	if d.Total == nil {
		d.Total = fallbackTotal
	}
	return d
}

// parseDateTime accepts YYYYMMDD and YYYYMMDDHHMMSS encodings, returning the
// date as YYYY-MM-DD and, when present, the time as HH:MM.
func parseDateTime(v string) (date, clock string, ok bool) {
	if len(v) < 8 || !digits(v[:8]) {
		return "", "", false
	}
	date = v[:4] + "-" + v[4:6] + "-" + v[6:8]
	if len(v) >= 14 && digits(v[8:14]) {
		clock = v[8:10] + ":" + v[10:12]
	}
	return date, clock, true
}

// parseClock accepts HHMM and HHMMSS encodings.
func parseClock(v string) (string, bool) {
	if (len(v) != 4 && len(v) != 6) || !digits(v) {
		return "", false
	}
	return v[:2] + ":" + v[2:4], true
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
