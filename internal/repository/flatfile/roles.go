package flatfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// RoleFile implements app.RoleRepository over one decimal role id per line.
type RoleFile struct {
	path string
}

// NewRoleFile returns a repository for the file at path. The file need not exist.
func NewRoleFile(path string) *RoleFile {
	return &RoleFile{path: path}
}

// Path returns the backing file path.
func (f *RoleFile) Path() string { return f.path }

// Load reads the ids in file order. Blank lines are skipped; anything else that is
// not a 64-bit integer is an error.
func (f *RoleFile) Load() ([]int64, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return []int64{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}

	roles := []int64{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		id, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", f.path, lineNo, err)
		}
		roles = append(roles, id)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", f.path, err)
	}
	return roles, nil
}

// Save rewrites the file.
func (f *RoleFile) Save(roles []int64) error {
	var buf bytes.Buffer
	for _, id := range roles {
		buf.WriteString(strconv.FormatInt(id, 10))
		buf.WriteByte('\n')
	}
	return writeFileAtomic(f.path, buf.Bytes(), 0o644)
}
