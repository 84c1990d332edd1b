// Package wordlist loads word lists from files.
package wordlist

import (
	"bufio"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"
)

//go:embed data/*.txt
var builtin embed.FS

// ErrUnknownLang is returned when no list exists for a language.
var ErrUnknownLang = errors.New("unknown language")

// LoadWords reads one word per line from the provided file path.
func LoadWords(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only word list.
			_ = cerr
		}
	}()
	return readWords(file)
}

// Load returns the word list for lang, preferring a user list at path and
// falling back to the lists bundled with the binary.
func Load(lang, path string) ([]string, error) {
	if path != "" {
		words, err := LoadWords(path)
		if err == nil {
			return filterWords(words, FilterForLang(lang))
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load word list %s: %w", path, err)
		}
	}
	file, err := builtin.Open("data/" + lang + ".txt")
	if err != nil {
		return nil, fmt.Errorf("%w %q", ErrUnknownLang, lang)
	}
	defer func() {
		_ = file.Close()
	}()
	words, err := readWords(file)
	if err != nil {
		return nil, err
	}
	return filterWords(words, FilterForLang(lang))
}

// BuiltinLangs lists the languages bundled with the binary.
func BuiltinLangs() []string {
	entries, err := builtin.ReadDir("data")
	if err != nil {
		return nil
	}
	langs := make([]string, 0, len(entries))
	for _, entry := range entries {
		langs = append(langs, strings.TrimSuffix(entry.Name(), ".txt"))
	}
	sort.Strings(langs)
	return langs
}

func readWords(r io.Reader) ([]string, error) {
	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("word list is empty")
	}
	return words, nil
}

func filterWords(words []string, keep FilterFunc) ([]string, error) {
	out := words[:0]
	for _, w := range words {
		if keep(w) {
			out = append(out, w)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("word list has no usable words")
	}
	return out, nil
}
