package wordlist

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWordsSkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "en.txt")
	if err := os.WriteFile(path, []byte("one\n\n  two  \nthree\n"), 0o644); err != nil {
		t.Fatalf("write list: %v", err)
	}
	words, err := LoadWords(path)
	if err != nil {
		t.Fatalf("load words: %v", err)
	}
	if len(words) != 3 || words[1] != "two" {
		t.Fatalf("unexpected words: %v", words)
	}
}

func TestLoadWordsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "en.txt")
	if err := os.WriteFile(path, []byte("\n\n"), 0o644); err != nil {
		t.Fatalf("write list: %v", err)
	}
	if _, err := LoadWords(path); err == nil {
		t.Fatalf("expected error for empty list")
	}
}

func TestLoadFallsBackToBuiltin(t *testing.T) {
	words, err := Load("en", filepath.Join(t.TempDir(), "missing.txt"))
	if err != nil {
		t.Fatalf("load builtin: %v", err)
	}
	if len(words) < 100 {
		t.Fatalf("expected builtin english list, got %d words", len(words))
	}
}

func TestLoadPrefersUserList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "en.txt")
	if err := os.WriteFile(path, []byte("alpha\nbeta\nCaps\n"), 0o644); err != nil {
		t.Fatalf("write list: %v", err)
	}
	words, err := Load("en", path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(words) != 2 || words[0] != "alpha" || words[1] != "beta" {
		t.Fatalf("unexpected words: %v", words)
	}
}

func TestLoadUnknownLang(t *testing.T) {
	_, err := Load("xx", "")
	if !errors.Is(err, ErrUnknownLang) {
		t.Fatalf("expected ErrUnknownLang, got %v", err)
	}
}

func TestBuiltinLangs(t *testing.T) {
	langs := BuiltinLangs()
	if len(langs) == 0 || langs[0] != "en" {
		t.Fatalf("unexpected builtin langs: %v", langs)
	}
}
