package services

import (
	"regexp"
	"strings"
)

const (
	countryCallingCode = "58"
	localNumberLength  = 11 // 0414 1234567
)

var (
	nonDigit      = regexp.MustCompile(`\D`)
	mobileNumber  = regexp.MustCompile(`^0(412|414|416|422|424|426)\d{7}$`)
	transportTags = []string{"whatsapp:", "tel:", "sms:"}

	// Carrier prefixes that legacy records mix up. Best-effort only: a swapped prefix can
	// match a different person, which is accepted for the sake of finding old records.
	prefixSwaps = map[string]string{
		"0414": "0424",
		"0424": "0414",
		"0412": "0422",
		"0422": "0412",
		"0416": "0426",
		"0426": "0416",
	}
)

// NormalizePhone turns a channel address into the local format (04141234567).
// It is idempotent.
func NormalizePhone(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	for _, tag := range transportTags {
		s = strings.TrimPrefix(s, tag)
	}
	if i := strings.Index(s, "@"); i >= 0 {
		s = s[:i]
	}
	digits := nonDigit.ReplaceAllString(s, "")

	if len(digits) > localNumberLength && strings.HasPrefix(digits, "00") {
		digits = strings.TrimLeft(digits, "0")
	}
	if len(digits) > localNumberLength && strings.HasPrefix(digits, countryCallingCode) {
		digits = "0" + strings.TrimLeft(digits[len(countryCallingCode):], "0")
	}
	if len(digits) == localNumberLength-1 && (digits[0] == '4' || digits[0] == '2') {
		digits = "0" + digits
	}
	return digits
}

// PhoneCandidates lists the formats a number may have been stored in by older systems
func PhoneCandidates(raw string) []string {
	local := NormalizePhone(raw)
	if local == "" {
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	variants := []string{local}
	if len(local) >= 4 {
		if swap, ok := prefixSwaps[local[:4]]; ok {
			variants = append(variants, swap+local[4:])
		}
	}

	for _, v := range variants {
		national := strings.TrimPrefix(v, "0")
		add(v)
		add(national)
		add(countryCallingCode + national)
		add("+" + countryCallingCode + national)
		if len(v) == localNumberLength {
			add(v[:4] + "-" + v[4:])
		}
	}

	// suffixes catch records saved with unexpected prefixes
	if len(local) >= 10 {
		add(local[len(local)-10:])
	}
	if len(local) >= 11 {
		add(local[len(local)-11:])
	}
	return out
}

// NormalizeMobile validates a payer phone typed by the customer and returns it with a leading zero
func NormalizeMobile(input string) (string, bool) {
	digits := nonDigit.ReplaceAllString(input, "")
	if strings.HasPrefix(digits, countryCallingCode) && len(digits) == localNumberLength+1 {
		digits = digits[len(countryCallingCode):]
	}
	if !strings.HasPrefix(digits, "0") {
		digits = "0" + digits
	}
	if !mobileNumber.MatchString(digits) {
		return "", false
	}
	return digits, true
}
