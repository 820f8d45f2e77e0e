package migration

import (
	"crypto/sha256"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var migrationFilePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_-]+)\.sql$`)

// Scanner discovers migration files inside a filesystem.
type Scanner struct{}

// NewScanner creates a Scanner.
func NewScanner() *Scanner {
	return &Scanner{}
}

// Scan reads every *.sql file in dir and returns them ordered by numeric version.
func (s *Scanner) Scan(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, NewMigrationError("", dir, "read directory", err)
	}

	var migrations []Migration
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		m, err := s.parse(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if other, dup := seen[m.Version]; dup {
			return nil, NewMigrationError(m.Version, entry.Name(), "check duplicates",
				fmt.Errorf("%w: version %s found in both %s and %s", ErrDuplicateVersion, m.Version, other, entry.Name()))
		}
		seen[m.Version] = entry.Name()
		migrations = append(migrations, m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		vi, _ := strconv.Atoi(migrations[i].Version)
		vj, _ := strconv.Atoi(migrations[j].Version)
		return vi < vj
	})
	return migrations, nil
}

// ValidateFileName checks the {version}_{description}.sql convention.
func (s *Scanner) ValidateFileName(filename string) error {
	if !migrationFilePattern.MatchString(filename) {
		return fmt.Errorf("%w: filename '%s' does not match pattern '{version}_{description}.sql'",
			ErrInvalidMigrationFile, filename)
	}
	return nil
}

func (s *Scanner) parse(fsys fs.FS, filePath string) (Migration, error) {
	name := path.Base(filePath)
	if err := s.ValidateFileName(name); err != nil {
		return Migration{}, NewMigrationError("", filePath, "validate filename", err)
	}
	matches := migrationFilePattern.FindStringSubmatch(name)
	version := matches[1]

	content, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return Migration{}, NewMigrationError(version, filePath, "read file", err)
	}
	sqlText := string(content)
	if len(SplitStatements(sqlText)) == 0 {
		return Migration{}, NewMigrationError(version, filePath, "validate content",
			fmt.Errorf("%w: no SQL statements found", ErrInvalidMigrationFile))
	}

	description := descriptionFromContent(sqlText)
	if description == "" {
		description = strings.ReplaceAll(matches[2], "_", " ")
	}
	return Migration{
		Version:     version,
		Description: description,
		SQL:         sqlText,
		FilePath:    filePath,
		Checksum:    fmt.Sprintf("%x", sha256.Sum256(content)),
	}, nil
}

// descriptionFromContent returns the text of a leading "-- Description:" comment.
func descriptionFromContent(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "--") {
			break
		}
		text := strings.TrimSpace(strings.TrimPrefix(line, "--"))
		if rest, ok := strings.CutPrefix(text, "Description:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}
