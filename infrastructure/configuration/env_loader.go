package configuration

import (
	"bufio"
	"os"
	"strings"
)

// LoadEnvFromFile loads KEY=VALUE pairs from each readable file in paths and
// returns the files that were found. Blank lines and # comments are skipped,
// surrounding quotes are trimmed, and variables already in the environment win.
func LoadEnvFromFile(paths ...string) []string {
	loaded := make([]string, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		loaded = append(loaded, p)
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			key, val, ok := parseEnvLine(scanner.Text())
			if !ok {
				continue
			}
			if _, exists := os.LookupEnv(key); !exists {
				_ = os.Setenv(key, val)
			}
		}
		_ = f.Close()
	}
	return loaded
}

func parseEnvLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimPrefix(line, "export ")
	key, val, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	return key, strings.Trim(strings.TrimSpace(val), "\"'"), true
}
