package env

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// Load applies dotenv files in order. Variables already present in the
// process environment win over file values, and the first file that sets a
// key wins over later files. Returns the keys it set.
func Load(paths ...string) []string {
	var applied []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		vars := Parse(f)
		_ = f.Close()
		for _, kv := range vars {
			if _, ok := os.LookupEnv(kv[0]); ok {
				continue
			}
			if err := os.Setenv(kv[0], kv[1]); err == nil {
				applied = append(applied, kv[0])
			}
		}
	}
	return applied
}

// Parse reads KEY=VALUE lines, skipping blanks and comments.
func Parse(r io.Reader) [][2]string {
	var out [][2]string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		k, v, ok := parseLine(sc.Text())
		if ok {
			out = append(out, [2]string{k, v})
		}
	}
	return out
}

func parseLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
	k, v, found := strings.Cut(line, "=")
	k = strings.TrimSpace(k)
	if !found || k == "" {
		return "", "", false
	}
	v = strings.TrimSpace(v)
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return k, v[1 : len(v)-1], true
	}
	if j := strings.Index(v, " #"); j >= 0 {
		v = strings.TrimSpace(v[:j])
	}
	return k, v, true
}
