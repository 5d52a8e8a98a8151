package util

import (
	"regexp"
)

var phoneNumberRegex = regexp.MustCompile(`^\+?[0-9]+$`)

// IsValidPhoneNumber accepts E.164-style numbers: an optional leading +
// followed by digits only.
func IsValidPhoneNumber(s string) bool {
	if s == "" {
		return false
	}
	return phoneNumberRegex.MatchString(s)
}

func IsValidEnum(value string, validValues []string) bool {
	if value == "" {
		return true
	}
	for _, v := range validValues {
		if value == v {
			return true
		}
	}
	return false
}
