package logger

import (
	"regexp"
	"strings"
)

const redacted = "<redacted>"

// botTokenRe matches Bot API tokens as they appear in API and webhook URLs.
var botTokenRe = regexp.MustCompile(`bot(/?)[0-9]+:[A-Za-z0-9_-]+`)

// secretKeys never reach a sink with their value.
var secretKeys = map[string]struct{}{
	"token":         {},
	"secret_token":  {},
	"password":      {},
	"api_key":       {},
	"authorization": {},
}

// Redact masks Bot API tokens embedded in s.
func Redact(s string) string {
	if !strings.Contains(s, ":") {
		return s
	}
	return botTokenRe.ReplaceAllString(s, "bot$1"+redacted)
}

func isSecretKey(key string) bool {
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		key = key[i+1:]
	}
	_, ok := secretKeys[strings.ToLower(key)]
	return ok
}
