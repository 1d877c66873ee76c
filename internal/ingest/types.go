// Package ingest parses raw interaction files (call transcripts, customer
// emails) and the exported article corpus, and runs their text through the
// anonymizer before anything downstream sees it.
package ingest

import "time"

// Turn is a single utterance in a call transcript.
type Turn struct {
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Transcript is one parsed call transcript.
type Transcript struct {
	ID       string            `json:"id"`
	Turns    []Turn            `json:"turns"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Email is one parsed customer email.
type Email struct {
	ID      string     `json:"id"`
	Subject string     `json:"subject"`
	From    string     `json:"from"`
	To      string     `json:"to,omitempty"`
	Date    *time.Time `json:"date,omitempty"`
	Body    string     `json:"body"`
}
