package ingest

import "github.com/gapscout/gapscout/internal/anonymize"

// AnonymizeTranscript scrubs every turn in place. Callers pass one shared
// anonymizer per batch so repeated identifiers map to the same placeholders
// across transcripts.
func AnonymizeTranscript(a *anonymize.Anonymizer, t *Transcript) {
	for i := range t.Turns {
		t.Turns[i].Text = a.Anonymize(t.Turns[i].Text)
	}
}

// AnonymizeEmail scrubs the subject and body in place. Sender and recipient
// headers are dropped entirely rather than anonymized.
func AnonymizeEmail(a *anonymize.Anonymizer, e *Email) {
	e.Subject = a.Anonymize(e.Subject)
	e.Body = a.Anonymize(e.Body)
	e.From = ""
	e.To = ""
}
