// Package security holds the request-safety checks that stand between
// attacker-controlled input and the workflow storage tree.
package security

import (
	"net/url"
	"regexp"
	"strings"
)

// decodeRounds is how many times a candidate filename is percent-decoded
// before inspection, so that double- and triple-encoded traversal sequences
// such as "%252e%252e%252f" cannot survive to the filesystem layer.
const decodeRounds = 3

// dangerousPatterns are substrings that disqualify a filename outright:
// traversal sequences, path separators, control bytes, and shell metacharacters.
var dangerousPatterns = []string{
	"..",
	"/",
	"\\",
	"\x00",
	"\n",
	"\r",
	"~",
	":",
	"|",
	"<",
	">",
	"*",
	"?",
	"$",
	";",
	"&",
}

var filenamePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-]+\.json$`)

// ValidFilename reports whether a caller-supplied filename is safe to use
// against the storage tree. Total: it never panics and rejects anything it
// cannot fully decode. The shape check runs against the fully decoded string,
// not any intermediate form.
func ValidFilename(candidate string) bool {
	decoded := candidate

	for range decodeRounds {
		unescaped, err := url.PathUnescape(decoded)
		if err != nil {
			return false
		}

		decoded = unescaped
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(decoded, pattern) {
			return false
		}
	}

	if strings.HasPrefix(decoded, "/") || strings.HasPrefix(decoded, "\\") {
		return false
	}

	// Windows drive prefix, e.g. "C:".
	if len(decoded) >= 2 && decoded[1] == ':' {
		return false
	}

	return filenamePattern.MatchString(decoded)
}
