package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/JakeFAU/weekly-snapshots/internal/snapshot"
)

// ErrURLList marks a missing or malformed URL list.
var ErrURLList = errors.New("invalid url list")

// LoadURLs reads a JSON document of the form {"urls": {"Name": "https://..."}}
// and returns its entries in file order. An empty "urls" object is not an
// error; callers decide what to do with zero entries.
func LoadURLs(path string) ([]snapshot.Entry, error) {
	// #nosec G304 -- the URL list path is operator-supplied configuration.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrURLList, path, err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	entries, err := DecodeURLs(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// DecodeURLs parses the URL list format from r.
func DecodeURLs(r io.Reader) ([]snapshot.Entry, error) {
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	var entries []snapshot.Entry
	found := false
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		if key != "urls" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrURLList, err)
			}
			continue
		}
		if found {
			return nil, fmt.Errorf("%w: duplicate \"urls\" field", ErrURLList)
		}
		found = true
		entries, err = decodeURLMap(dec)
		if err != nil {
			return nil, err
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unexpected data after the top-level object", ErrURLList)
	}
	if !found {
		return nil, fmt.Errorf("%w: missing \"urls\" field", ErrURLList)
	}
	return entries, nil
}

func decodeURLMap(dec *json.Decoder) ([]snapshot.Entry, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, fmt.Errorf("\"urls\" must be an object: %w", err)
	}
	seen := make(map[string]struct{})
	entries := []snapshot.Entry{}
	for dec.More() {
		name, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		var rawURL string
		if err := dec.Decode(&rawURL); err != nil {
			return nil, fmt.Errorf("%w: url for %q must be a string: %w", ErrURLList, name, err)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrURLList, name)
		}
		seen[name] = struct{}{}
		if err := ValidateURL(rawURL); err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrURLList, name, err)
		}
		entries = append(entries, snapshot.Entry{Name: name, URL: rawURL})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrURLList, err)
	}
	return entries, nil
}

// ValidateURL checks that rawURL uses an HTTP or HTTPS scheme.
func ValidateURL(rawURL string) error {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return fmt.Errorf("url %q must start with http:// or https://", rawURL)
	}
	return nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrURLList, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("%w: expected %q, got %v", ErrURLList, want, tok)
	}
	return nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrURLList, err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("%w: expected object key, got %v", ErrURLList, tok)
	}
	return key, nil
}
