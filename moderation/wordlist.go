package moderation

import (
	"bufio"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	apperrors "portal-chat/errors"
)

//go:embed censored/*.txt
var censoredFiles embed.FS

// WordList aggregates every embedded censored word file, one language per
// file.
type WordList struct {
	Words     []string
	Languages []string
}

// LoadWords reads all embedded word files. Blank lines and '#' comments are
// skipped; an empty result is an error because a silent no-op moderator would
// let everything through.
func LoadWords() (WordList, error) {
	var list WordList

	err := fs.WalkDir(censoredFiles, "censored", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".txt" {
			return nil
		}

		file, err := censoredFiles.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			word := strings.TrimSpace(scanner.Text())
			if word == "" || strings.HasPrefix(word, "#") {
				continue
			}
			list.Words = append(list.Words, word)
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		lang := strings.TrimSuffix(filepath.Base(path), ".txt")
		list.Languages = append(list.Languages, lang)
		return nil
	})
	if err != nil {
		return WordList{}, err
	}
	if len(list.Words) == 0 {
		return WordList{}, apperrors.ErrEmptyWords
	}
	return list, nil
}
