package thttp

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// ErrMissingAuthToken is returned by BearerToken if there is no Authorization
// HTTP header
var ErrMissingAuthToken = errors.New("missing authentication token")

// ErrMalformedAuthHeader is returned by BearerToken if the Authorization HTTP
// header is not in the form "Bearer token"
type ErrMalformedAuthHeader struct {
	header string
}

func (e ErrMalformedAuthHeader) Error() string {
	return fmt.Sprintf("malformed authentication header: %q", e.header)
}

// BearerToken extracts the bearer token from the request headers
func BearerToken(header http.Header) (string, error) {
	h := header.Get("Authorization")
	if h == "" {
		return "", ErrMissingAuthToken
	}
	bearer, ok := strings.CutPrefix(h, bearerPrefix)
	if !ok {
		return "", ErrMalformedAuthHeader{h}
	}
	return bearer, nil
}

// SetBearerToken attaches the bearer token to outgoing request headers
func SetBearerToken(header http.Header, token string) {
	header.Set("Authorization", bearerPrefix+token)
}
