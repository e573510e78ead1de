package lifecycle

import (
	"regexp"
	"strings"
)

var (
	localMobile         = regexp.MustCompile(`^09\d{9}$`)
	internationalMobile = regexp.MustCompile(`^\+639\d{9}$`)
	phoneSeparators     = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
)

// NormalizePHMobile accepts 09XXXXXXXXX or +639XXXXXXXXX (spaces and dashes
// ignored) and returns the +639 form.
func NormalizePHMobile(raw string) (string, bool) {
	s := phoneSeparators.Replace(strings.TrimSpace(raw))
	switch {
	case localMobile.MatchString(s):
		return "+63" + s[1:], true
	case internationalMobile.MatchString(s):
		return s, true
	}
	return "", false
}
