package storage

import (
	"net/url"
	"strings"
)

// RecoveryLink appends a recovery token to the redirect target.
func RecoveryLink(redirectTo, token string) string {
	u, err := url.Parse(redirectTo)
	if err != nil || redirectTo == "" {
		sep := "?"
		if strings.Contains(redirectTo, "?") {
			sep = "&"
		}
		return redirectTo + sep + "token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	q.Set("type", "recovery")
	u.RawQuery = q.Encode()
	return u.String()
}
