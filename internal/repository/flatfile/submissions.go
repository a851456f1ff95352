// Package flatfile stores submissions and role allow-lists in the bot's legacy
// line-oriented text files.
package flatfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jaakkos/promptbox/internal/domain"
)

// FieldDelimiter separates the owner token, category and text of a record.
const FieldDelimiter = "::"

// OwnerCipher turns owner names into opaque tokens and back.
type OwnerCipher interface {
	Seal(owner string) (string, error)
	Open(token string) (string, error)
}

// SubmissionFile implements app.SubmissionRepository over lines of
// <owner-token>::<category>::<escaped-text>.
type SubmissionFile struct {
	path   string
	cipher OwnerCipher
}

// NewSubmissionFile returns a repository for the file at path. The file need not exist.
func NewSubmissionFile(path string, cipher OwnerCipher) *SubmissionFile {
	return &SubmissionFile{path: path, cipher: cipher}
}

// Path returns the backing file path.
func (f *SubmissionFile) Path() string { return f.path }

// Load reads every record. A missing file is an empty store; any malformed record,
// unknown category or owner token that does not open is an error.
func (f *SubmissionFile) Load() ([]domain.Submission, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return []domain.Submission{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}

	subs := []domain.Submission{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		s, err := f.decodeRecord(line)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", f.path, lineNo, err)
		}
		subs = append(subs, s)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", f.path, err)
	}
	return subs, nil
}

// Save rewrites the whole file in list order.
func (f *SubmissionFile) Save(subs []domain.Submission) error {
	var buf bytes.Buffer
	for _, s := range subs {
		line, err := f.encodeRecord(s)
		if err != nil {
			return err
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return writeFileAtomic(f.path, buf.Bytes(), 0o644)
}

func (f *SubmissionFile) encodeRecord(s domain.Submission) (string, error) {
	token, err := f.cipher.Seal(s.Owner)
	if err != nil {
		return "", fmt.Errorf("seal owner: %w", err)
	}
	return token + FieldDelimiter + string(s.Category) + FieldDelimiter + EscapeText(s.Text), nil
}

func (f *SubmissionFile) decodeRecord(line string) (domain.Submission, error) {
	// The owner token and category never contain the delimiter, so everything
	// after the second one belongs to the text.
	parts := strings.SplitN(line, FieldDelimiter, 3)
	if len(parts) != 3 {
		return domain.Submission{}, fmt.Errorf("want 3 fields, got %d", len(parts))
	}
	category := domain.Category(parts[1])
	if !category.Valid() {
		return domain.Submission{}, fmt.Errorf("unknown category %q", parts[1])
	}
	owner, err := f.cipher.Open(parts[0])
	if err != nil {
		return domain.Submission{}, fmt.Errorf("owner: %w", err)
	}
	return domain.Submission{Owner: owner, Category: category, Text: UnescapeText(parts[2])}, nil
}

// EscapeText makes text fit on one line: backslash, LF and CR become \\, \n and \r.
// Works on bytes, so text that is not valid UTF-8 is kept as is.
func EscapeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		switch c := text[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// UnescapeText reverses EscapeText. Unknown escape sequences and a trailing lone
// backslash are kept as written, which keeps files that only escaped newlines readable.
func UnescapeText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		switch s[i+1] {
		case '\\':
			b.WriteByte('\\')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i+1])
		}
		i++
	}
	return b.String()
}

// writeFileAtomic writes data to a temp file next to path and renames it into place,
// so readers never see a half-written file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
