package config

import (
	"strings"
)

const envPrefix = "npm_config_"

// ignoredEnvKeys are npm_config_* keys that never become options.
var ignoredEnvKeys = map[string]bool{
	"loglevel": true,
}

// FromEnv extracts option values from npm_config_* variables in environ
// (os.Environ format). The prefix is matched case-insensitively. Variables
// with an empty key, and npm_config_loglevel, are skipped.
func FromEnv(environ []string) Values {
	values := Values{}
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || len(name) < len(envPrefix) {
			continue
		}
		if !strings.EqualFold(name[:len(envPrefix)], envPrefix) {
			continue
		}

		key := NormalizeKey(name[len(envPrefix):])
		if key == "" || ignoredEnvKeys[key] {
			continue
		}
		values[key] = value
	}
	return values
}

// ResolveProxy picks the download proxy: explicit when set, then
// http_proxy, then HTTP_PROXY.
func ResolveProxy(explicit string, getenv func(string) string) string {
	if explicit != "" {
		return explicit
	}
	if p := getenv("http_proxy"); p != "" {
		return p
	}
	return getenv("HTTP_PROXY")
}
