package ir

import "unicode"

const (
	requestSuffix  = "Request"
	responseSuffix = "Response"
)

// RequestName is the name of the message synthesized for a method whose
// parameters cannot be passed as a single message.
func RequestName(method string) string {
	return title(method) + requestSuffix
}

// ResponseName is the name of the message synthesized for a method whose
// return type is not a message.
func ResponseName(method string) string {
	return title(method) + responseSuffix
}

// IsIdent reports whether name is a valid proto identifier.
func IsIdent(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func title(s string) string {
	if s == "" {
		return ""
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
