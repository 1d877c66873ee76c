package ingest

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/gapscout/gapscout/internal/anonymize"
)

const sampleEML = `From: Mrs Fletcher <jane.fletcher@example.org>
To: support@insurer.example
Subject: Question about cancellation
Date: Mon, 02 Jan 2023 15:04:05 +0000
Message-ID: <msg-42@example.org>

How do I cancel my policy? My email is jane.fletcher@example.org.
`

func TestParseEmailFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "q.eml", sampleEML)

	e, err := ParseEmailFile(path)
	if err != nil {
		t.Fatalf("ParseEmailFile: %v", err)
	}
	if e.ID != "msg-42@example.org" {
		t.Errorf("ID = %q, want message-id", e.ID)
	}
	if e.Subject != "Question about cancellation" {
		t.Errorf("Subject = %q", e.Subject)
	}
	if !strings.Contains(e.Body, "How do I cancel my policy?") {
		t.Errorf("Body not extracted: %q", e.Body)
	}
	if e.Date == nil || e.Date.Year() != 2023 {
		t.Errorf("Date not parsed: %v", e.Date)
	}
}

func TestParseEmailFileNoMessageID(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "fallback.eml",
		"From: a@b.example\nSubject: Hi\n\nBody text.\n")

	e, err := ParseEmailFile(path)
	if err != nil {
		t.Fatalf("ParseEmailFile: %v", err)
	}
	if e.ID != "fallback" {
		t.Errorf("ID should fall back to file stem, got %q", e.ID)
	}
}

func TestParseEmailDirectoryCollectsWarnings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.eml", sampleEML)
	writeFile(t, dir, "broken.eml", "no headers here at all")

	emails, warnings, err := ParseEmailDirectory(dir)
	if err != nil {
		t.Fatalf("ParseEmailDirectory: %v", err)
	}
	if len(emails) != 1 {
		t.Fatalf("expected 1 parsed email, got %d", len(emails))
	}
	if len(warnings) != 1 || warnings[0].ItemID != "broken.eml" {
		t.Fatalf("expected warning for broken.eml, got %+v", warnings)
	}
}

func TestParseEmailDirectoryMissing(t *testing.T) {
	if _, _, err := ParseEmailDirectory(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestAnonymizeEmailScrubsTextAndHeaders(t *testing.T) {
	a := anonymize.New()
	e := &Email{
		ID:      "msg-1",
		Subject: "Question from jane.fletcher@example.org",
		From:    "jane.fletcher@example.org",
		To:      "support@insurer.example",
		Body:    "Contact me at jane.fletcher@example.org please.",
	}
	AnonymizeEmail(a, e)

	if strings.Contains(e.Subject, "jane.fletcher") || strings.Contains(e.Body, "jane.fletcher") {
		t.Errorf("PII survived anonymization: subject=%q body=%q", e.Subject, e.Body)
	}
	if e.From != "" || e.To != "" {
		t.Errorf("address headers should be dropped, got from=%q to=%q", e.From, e.To)
	}
	if !strings.Contains(e.Body, "customer1@example.com") {
		t.Errorf("expected placeholder in body, got %q", e.Body)
	}
}

func TestAnonymizeTranscriptSharedConsistency(t *testing.T) {
	a := anonymize.New()
	t1 := &Transcript{ID: "c1", Turns: []Turn{{Speaker: "customer", Text: "I'm jane.fletcher@example.org"}}}
	t2 := &Transcript{ID: "c2", Turns: []Turn{{Speaker: "customer", Text: "email jane.fletcher@example.org again"}}}

	AnonymizeTranscript(a, t1)
	AnonymizeTranscript(a, t2)

	if !strings.Contains(t1.Turns[0].Text, "customer1@example.com") ||
		!strings.Contains(t2.Turns[0].Text, "customer1@example.com") {
		t.Errorf("same address must map to same placeholder across transcripts: %q / %q",
			t1.Turns[0].Text, t2.Turns[0].Text)
	}
}
