// Package e2e holds fixtures and end-to-end tests that run the whole
// pipeline against files on disk.
package e2e

import (
	"os"
	"path/filepath"

	"github.com/gapscout/gapscout/internal/models"
)

// FixtureArticles is a small but realistic article corpus.
func FixtureArticles() []models.Article {
	return []models.Article{
		{
			ID:          "kb-cancel",
			Title:       "How to cancel your policy",
			Description: "Cancellation steps and refund rules",
			Body:        "You can cancel online from account settings or by calling support. Refunds are prorated from the cancellation date.",
			Category:    "cancellations",
		},
		{
			ID:       "kb-payment",
			Title:    "Payment methods we accept",
			Body:     "We accept major credit cards, direct debit, and bank transfer. Payments are collected monthly.",
			Category: "payments",
		},
		{
			ID:       "kb-claim",
			Title:    "Filing a claim",
			Body:     "Submit a claim through the portal with photos of the damage. Most claims are assessed within five business days.",
			Category: "claims",
		},
	}
}

const fixtureTranscript = `{
	"id": "call-1001",
	"turns": [
		{"speaker": "agent", "text": "Thanks for calling, how can I help?"},
		{"speaker": "customer", "text": "I'm Mr Thompson, my email is bill.thompson@home.example. Does my policy cover a cracked windscreen?"},
		{"speaker": "agent", "text": "Glass damage is covered under the comprehensive tier."},
		{"speaker": "customer", "text": "Great, thank you."}
	],
	"metadata": {"duration": "212"}
}`

const fixtureEmail = `From: Sally Weaver <sally.weaver@home.example>
To: support@insurer.example
Subject: Windscreen cover
Message-ID: <q-2002@home.example>

Does my policy cover a cracked windscreen? I need an answer urgently before my trip today.
`

const brokenTranscript = `{"id": "call-bad", "turns": [`

// WriteFixtureDirs writes transcript and email drop directories under root
// and returns their paths. One transcript file is deliberately malformed.
func WriteFixtureDirs(root string) (transcriptDir, emailDir string, err error) {
	transcriptDir = filepath.Join(root, "transcripts")
	emailDir = filepath.Join(root, "emails")
	for _, dir := range []string{transcriptDir, emailDir} {
		if err = os.MkdirAll(dir, 0755); err != nil {
			return "", "", err
		}
	}
	files := map[string]string{
		filepath.Join(transcriptDir, "call-1001.json"): fixtureTranscript,
		filepath.Join(transcriptDir, "call-bad.json"):  brokenTranscript,
		filepath.Join(emailDir, "q-2002.eml"):          fixtureEmail,
	}
	for path, content := range files {
		if err = os.WriteFile(path, []byte(content), 0644); err != nil {
			return "", "", err
		}
	}
	return transcriptDir, emailDir, nil
}
