// Package filename derives filesystem-safe archive names from URLs and labels.
package filename

import (
	"net/url"
	"strconv"
	"strings"
	"unicode"
)

const (
	// MaxLength is the maximum number of characters in a sanitized name.
	MaxLength = 80
	// Placeholder is used when nothing usable survives sanitizing.
	Placeholder = "unnamed_site"
)

// Sanitize maps a URL and optional label to a non-empty name made only of
// letters, digits, '-' and '_', at most MaxLength characters long.
func Sanitize(rawURL, label string) string {
	var name string
	if label != "" {
		name = fromLabel(label)
	} else {
		name = fromURL(rawURL)
	}

	name = strings.Map(func(r rune) rune {
		if isWordRune(r) {
			return r
		}
		return -1
	}, name)

	if runes := []rune(name); len(runes) > MaxLength {
		name = string(runes[:MaxLength])
	}
	if name == "" {
		return Placeholder
	}
	return name
}

func fromLabel(label string) string {
	kept := strings.Map(func(r rune) rune {
		if isWordRune(r) || r == ' ' {
			return r
		}
		return -1
	}, label)
	return strings.Trim(strings.ReplaceAll(kept, " ", "_"), "_")
}

func fromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(u.Host, "www.")
	path := strings.Trim(strings.ReplaceAll(u.Path, "/", "_"), "_")
	if path == "" {
		return host
	}
	return host + "_" + path
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_'
}

// Unique returns name, or name with a numeric suffix when it is already in
// seen, and records the returned value in seen. Suffixed names still respect
// MaxLength.
func Unique(name string, seen map[string]int) string {
	n, ok := seen[name]
	if !ok {
		seen[name] = 1
		return name
	}
	for {
		n++
		suffix := "_" + strconv.Itoa(n)
		base := []rune(name)
		if limit := MaxLength - len(suffix); len(base) > limit {
			base = base[:limit]
		}
		candidate := string(base) + suffix
		if _, taken := seen[candidate]; !taken {
			seen[name] = n
			seen[candidate] = 1
			return candidate
		}
	}
}
