package auth

import "strings"

const bearerPrefix = "Bearer "

// ExtractToken returns the token from an Authorization header value of the form
// "Bearer <token>". Any other value yields "".
func ExtractToken(header string) string {
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}
