// -----------------------------------------------------------------------
// Dictionary access - binary search over sorted dictionary files without
// loading them into memory, plus the small in-memory word set loader
// -----------------------------------------------------------------------

package algorithms

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrEntryNotFound is returned when a key is not present in a dictionary.
var ErrEntryNotFound = errors.New("dictionary entry not found")

// EntryParser splits a dictionary line into its sort key and value.
type EntryParser func(line string) (key string, value string, err error)

// ParseDelDictEntry parses a line from a symmetric deletion dictionary of
// the form "key\tvalue ...".
func ParseDelDictEntry(line string) (string, string, error) {
	key, value, ok := strings.Cut(line, "\t")
	if !ok {
		return "", "", fmt.Errorf("malformed deletion dictionary entry: %q", line)
	}
	return key, strings.TrimSpace(value), nil
}

// ParseSingleWordEntry parses a line from a simple one-word-per-line
// dictionary.
func ParseSingleWordEntry(line string) (string, string, error) {
	word := strings.TrimSpace(line)
	return word, word, nil
}

// SplitDelDictValues splits the value of a deletion dictionary entry into
// its candidate words.
func SplitDelDictValues(entry string) []string {
	if entry == "" {
		return nil
	}
	var words []string
	for _, w := range strings.Fields(entry) {
		words = append(words, w)
	}
	return words
}

// Dictionary performs binary searches on a sorted dictionary file. The
// file must be sorted by the parser's key and must not contain lines
// longer than the line buffer, otherwise the behavior is undefined.
type Dictionary struct {
	f          *os.File
	size       int64
	parse      EntryParser
	lineBuffer int
}

const defaultLineBuffer = 4096

// OpenDictionary opens a sorted dictionary file for searching. A nil
// parser defaults to the deletion dictionary format.
func OpenDictionary(path string, parser EntryParser) (*Dictionary, error) {
	if parser == nil {
		parser = ParseDelDictEntry
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat dictionary %s: %w", path, err)
	}

	return &Dictionary{
		f:          f,
		size:       info.Size(),
		parse:      parser,
		lineBuffer: defaultLineBuffer,
	}, nil
}

// Close closes the underlying file.
func (d *Dictionary) Close() error {
	return d.f.Close()
}

// Search returns the value for key, or ErrEntryNotFound. Entries are
// located by binary search over byte offsets: seek to the midpoint, snap
// back to the previous newline, and compare the entry found there.
func (d *Dictionary) Search(key string) (string, error) {
	if d.size == 0 {
		return "", ErrEntryNotFound
	}

	imin, imax := int64(0), d.size
	for {
		mid := imin + (imax-imin)/2

		lineStart, err := d.prevNewline(mid)
		if err != nil {
			return "", err
		}
		line, err := d.readLine(lineStart)
		if err != nil {
			return "", err
		}

		entryKey, value, err := d.parse(line)
		if err != nil {
			return "", err
		}

		switch {
		case entryKey == key:
			return value, nil
		case entryKey < key:
			imin = mid + 1
		default:
			imax = mid - 1
		}

		if imin >= imax {
			return "", ErrEntryNotFound
		}
	}
}

// prevNewline returns the offset immediately after the closest newline to
// the left of pos, or the beginning of the file if none exists within the
// line buffer.
func (d *Dictionary) prevNewline(pos int64) (int64, error) {
	start := pos - int64(d.lineBuffer)
	if start < 0 {
		start = 0
	}
	length := pos - start
	if length == 0 {
		return 0, nil
	}

	buf := make([]byte, length)
	if _, err := d.f.ReadAt(buf, start); err != nil && err != io.EOF {
		return 0, fmt.Errorf("failed to read dictionary: %w", err)
	}

	idx := bytes.LastIndexByte(buf, '\n')
	if idx < 0 {
		return start, nil
	}
	return start + int64(idx) + 1, nil
}

// readLine reads the line starting at offset.
func (d *Dictionary) readLine(offset int64) (string, error) {
	length := int64(d.lineBuffer)
	if offset+length > d.size {
		length = d.size - offset
	}
	buf := make([]byte, length)
	if _, err := d.f.ReadAt(buf, offset); err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read dictionary: %w", err)
	}

	if idx := bytes.IndexByte(buf, '\n'); idx >= 0 {
		buf = buf[:idx]
	}
	return string(buf), nil
}

// WordSet is an in-memory dictionary of correct words.
type WordSet map[string]struct{}

// Contains reports membership.
func (w WordSet) Contains(word string) bool {
	_, ok := w[word]
	return ok
}

// LoadWordSet reads a one-word-per-line dictionary into memory, sanitizing
// each entry.
func LoadWordSet(path string) (WordSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open word list %s: %w", path, err)
	}
	defer f.Close()

	words := make(WordSet)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := Sanitize(scanner.Text())
		if word != "" {
			words[word] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read word list %s: %w", path, err)
	}
	return words, nil
}
