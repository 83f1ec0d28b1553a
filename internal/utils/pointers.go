package utils

import "strings"

func StringPtr(s string) *string {
	return &s
}

// NonEmptyStringPtr trims s and returns nil when nothing is left.
func NonEmptyStringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func PtrString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
