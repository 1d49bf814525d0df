// Package rut validates and formats Chilean national identity numbers (RUT).
//
// A RUT is written as body-check, e.g. "12.345.678-5", where the check
// character is derived from the body with a modulo-11 checksum. The same
// routine backs the emergency-access gate, patient lookups and the CLI.
package rut

import (
	"errors"
	"strconv"
	"strings"
)

// ErrMalformed is returned when a RUT body is empty or contains non-digits.
var ErrMalformed = errors.New("rut: malformed body")

// Normalize strips "." and "-" separators and surrounding spaces and
// uppercases the check character. It does not validate.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(".", "", "-", "").Replace(s)
	return strings.ToUpper(s)
}

// Split returns the body and check character of a normalized RUT.
func Split(s string) (body, check string) {
	n := Normalize(s)
	if n == "" {
		return "", ""
	}
	return n[:len(n)-1], n[len(n)-1:]
}

// CheckDigit computes the modulo-11 check character for body.
func CheckDigit(body string) (string, error) {
	if body == "" {
		return "", ErrMalformed
	}

	sum := 0
	weight := 2
	for i := len(body) - 1; i >= 0; i-- {
		c := body[i]
		if c < '0' || c > '9' {
			return "", ErrMalformed
		}
		sum += int(c-'0') * weight
		weight++
		if weight > 7 {
			weight = 2
		}
	}

	switch computed := 11 - sum%11; computed {
	case 11:
		return "0", nil
	case 10:
		return "K", nil
	default:
		return strconv.Itoa(computed), nil
	}
}

// Validate reports whether s is a RUT with a correct check character.
// Separators are optional: "12.345.678-5" and "123456785" are equivalent.
func Validate(s string) bool {
	body, check := Split(s)
	want, err := CheckDigit(body)
	if err != nil {
		return false
	}
	return check == want
}

// Format renders a RUT in its canonical display form, "12.345.678-5".
// Invalid input is returned normalized but otherwise untouched.
func Format(s string) string {
	if !Validate(s) {
		return Normalize(s)
	}
	body, check := Split(s)

	var b strings.Builder
	lead := len(body) % 3
	if lead > 0 {
		b.WriteString(body[:lead])
	}
	for i := lead; i < len(body); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(body[i : i+3])
	}
	b.WriteByte('-')
	b.WriteString(check)
	return b.String()
}
