package ingest

import (
	"fmt"
	"io"
	"io/fs"
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	"github.com/gapscout/gapscout/internal/models"
)

// ParseEmailDirectory walks dir recursively and parses every .eml file.
// Per-file failures become warnings.
func ParseEmailDirectory(dir string) ([]Email, []models.Warning, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, nil, fmt.Errorf("email directory not found: %s", dir)
	}

	var emails []Email
	var warnings []models.Warning
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.ToLower(filepath.Ext(path)) != ".eml" {
			return nil
		}
		e, parseErr := ParseEmailFile(path)
		if parseErr != nil {
			warnings = append(warnings, models.Warning{
				Stage:  "ingest",
				ItemID: filepath.Base(path),
				Reason: parseErr.Error(),
			})
			return nil
		}
		emails = append(emails, *e)
		return nil
	})
	if err != nil {
		return nil, warnings, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	return emails, warnings, nil
}

// ParseEmailFile parses one RFC 5322 message. The ID comes from the
// Message-ID header when present, otherwise the file name.
func ParseEmailFile(path string) (*Email, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	msg, err := mail.ReadMessage(f)
	if err != nil {
		return nil, fmt.Errorf("invalid email in %s: %w", path, err)
	}

	body, err := io.ReadAll(msg.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", path, err)
	}

	e := &Email{
		Subject: msg.Header.Get("Subject"),
		From:    msg.Header.Get("From"),
		To:      msg.Header.Get("To"),
		Body:    strings.TrimSpace(string(body)),
	}
	if id := strings.Trim(msg.Header.Get("Message-ID"), "<>"); id != "" {
		e.ID = id
	} else {
		e.ID = fileStem(path)
	}
	if date, dateErr := msg.Header.Date(); dateErr == nil {
		e.Date = &date
	}
	if e.Body == "" && e.Subject == "" {
		return nil, fmt.Errorf("empty email in %s", path)
	}
	return e, nil
}
