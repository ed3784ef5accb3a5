package router

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/handterm/handterm/internal/shell/session"
)

// completionAliases expand in place of a complete first word. They are
// distinct from commandAliases: these fire only on explicit completion.
var completionAliases = map[string]string{
	"py":     "python3 ",
	"python": "python3 ",
	"ipy":    "ipython3 ",
	"v":      "venv ",
	"n":      "nano ",
	"ll":     "ls -la ",
	"la":     "ls -a ",
	"cls":    "clear",
	"h":      "history",
}

// previewLimit caps how many candidates a multi-match preview line shows.
const previewLimit = 20

// Autocomplete completes the word under the cursor and returns the new input
// line and cursor position. The first word completes against the alias table,
// built-in names and PATH executables; any other word (or a word that already
// looks like a path) completes against the filesystem. Multiple candidates
// extend to their common prefix and post a preview line to the output log.
func (r *Router) Autocomplete(text string, cursor int) (string, int) {
	if cursor < 0 || cursor > len(text) {
		cursor = len(text)
	}
	start := wordStart(text, cursor)
	word := text[start:cursor]
	if word == "" {
		return text, cursor
	}
	isFirst := strings.TrimSpace(text[:start]) == ""

	if isFirst && !strings.ContainsAny(word, "/~.'\"") {
		if repl, ok := completionAliases[word]; ok {
			newText := text[:start] + repl + text[cursor:]
			return newText, start + len(repl)
		}
		matches := r.commandMatches(word)
		return r.applyMatches(text, start, cursor, word, matches, matches, " ")
	}

	matches, displays := r.pathMatches(word)
	return r.applyMatches(text, start, cursor, word, matches, displays, "")
}

// applyMatches rewrites the completed word. A unique match replaces the word
// (plus trailing for non-directories); several matches extend to the common
// prefix and append a preview line.
func (r *Router) applyMatches(text string, start, cursor int, word string, matches, displays []string, trailing string) (string, int) {
	switch len(matches) {
	case 0:
		return text, cursor
	case 1:
		m := matches[0]
		if trailing != "" && !strings.HasSuffix(m, "/") {
			m += trailing
		}
		return text[:start] + m + text[cursor:], start + len(m)
	}

	r.out.Append("[System] " + previewLine(displays))
	if cp := commonPrefix(matches); len(cp) > len(word) {
		return text[:start] + cp + text[cursor:], start + len(cp)
	}
	return text, cursor
}

// wordStart finds the beginning of the whitespace-delimited word containing
// the cursor. An opening quote stays part of the word.
func wordStart(text string, cursor int) int {
	start := cursor
	for start > 0 && text[start-1] != ' ' && text[start-1] != '\t' {
		start--
	}
	return start
}

// commandMatches gathers built-in names and PATH executables with the prefix.
func (r *Router) commandMatches(prefix string) []string {
	seen := map[string]bool{}
	for name := range r.builtins {
		if strings.HasPrefix(name, prefix) {
			seen[name] = true
		}
	}
	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			name := entry.Name()
			if !strings.HasPrefix(name, prefix) || seen[name] {
				continue
			}
			info, err := entry.Info()
			if err != nil || info.IsDir() || info.Mode()&0o111 == 0 {
				continue
			}
			seen[name] = true
		}
	}
	matches := make([]string, 0, len(seen))
	for name := range seen {
		matches = append(matches, name)
	}
	sort.Strings(matches)
	return matches
}

// pathMatches completes word against the filesystem, preserving a leading
// quote and the typed directory form (including ~). Directories get a "/"
// suffix. displays carry just the entry names for the preview line.
func (r *Router) pathMatches(word string) (matches, displays []string) {
	unquoted := word
	if strings.HasPrefix(unquoted, "'") || strings.HasPrefix(unquoted, `"`) {
		unquoted = unquoted[1:]
	}
	dir, base := filepath.Split(unquoted)

	searchDir := session.ExpandUser(dir)
	if searchDir == "" {
		searchDir = "."
	}
	if !filepath.IsAbs(searchDir) {
		searchDir = filepath.Join(r.state.Cwd, searchDir)
	}
	entries, err := os.ReadDir(searchDir)
	if err != nil {
		return nil, nil
	}

	typedPrefix := word[:len(word)-len(base)]
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, base) {
			continue
		}
		// Hidden entries only complete when explicitly asked for.
		if base == "" && strings.HasPrefix(name, ".") {
			continue
		}
		display := name
		if entry.IsDir() {
			name += "/"
			display += "/"
		}
		matches = append(matches, typedPrefix+name)
		displays = append(displays, display)
	}
	sort.Strings(matches)
	sort.Strings(displays)
	return matches, displays
}

func previewLine(displays []string) string {
	if len(displays) > previewLimit {
		displays = append(append([]string{}, displays[:previewLimit]...), "…")
	}
	return strings.Join(displays, "  ")
}

func commonPrefix(items []string) string {
	prefix := items[0]
	for _, item := range items[1:] {
		for !strings.HasPrefix(item, prefix) {
			prefix = prefix[:len(prefix)-1]
			if prefix == "" {
				return ""
			}
		}
	}
	return prefix
}
