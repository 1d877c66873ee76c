// Package anonymize provides deterministic, referentially consistent PII
// redaction for interaction text. The same original value always maps to the
// same placeholder within one Anonymizer instance, so a conversation keeps
// its referential structure after redaction.
package anonymize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Redaction pipeline stage order. The order is fixed: each stage's output
// must not be mistaken for a later stage's input (emails are replaced before
// phone digits, cards before postal codes, names last).
var (
	reEmail      = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	rePolicyRef  = regexp.MustCompile(`\b[A-Z]{2,4}[-\s][0-9X]{2,4}[-\s]?[A-Z0-9]{2,4}[-\s]?[0-9]{2}\b`)
	rePhone      = regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}\b`)
	reIntlPhone  = regexp.MustCompile(`\+(?:44|61|27)\s?[0-9]{2,4}\s?[0-9]{3,4}\s?[0-9]{3,4}`)
	reCreditCard = regexp.MustCompile(`\b(?:[0-9]{4}[-\s]?){3}[0-9]{4}\b`)
	reGovernID   = regexp.MustCompile(`\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`)
	reAddress    = regexp.MustCompile(`\b[0-9]{1,5}\s+(?:[A-Z][a-z]+\s+){1,3}(?:Street|St|Avenue|Ave|Road|Rd|Drive|Dr|Lane|Ln|Court|Ct|Boulevard|Blvd)\b`)
	rePostcode   = regexp.MustCompile(`\b[A-Z]{1,2}[0-9]{1,2}\s?[0-9][A-Z]{2}\b|\bPOL-[0-9]{4}\b|\b[0-9]{4}\b`)
	reLicense    = regexp.MustCompile(`\b[A-Z]{1,2}[0-9]{6,8}\b`)
	reDate       = regexp.MustCompile(`\b(?:[0-9]{1,2}[-/][0-9]{1,2}[-/][0-9]{2,4}|[0-9]{4}[-/][0-9]{1,2}[-/][0-9]{1,2})\b`)
	reTitledName = regexp.MustCompile(`\b(Mr\.?|Mrs\.?|Ms\.?|Miss|Dr\.?)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\b`)
	reBareYear   = regexp.MustCompile(`^[0-9]{4}$`)
)

// surrogateSurnames is the fixed rotation of placeholder surnames. The Nth
// assigned name is surrogateSurnames[N % 10] with N starting at 1, so the
// first assignment is "Johnson".
var surrogateSurnames = [...]string{
	"Smith", "Johnson", "Williams", "Brown", "Jones",
	"Garcia", "Miller", "Davis", "Rodriguez", "Martinez",
}

// Substitution count categories reported by Stats.
const (
	CategoryEmail      = "emails"
	CategoryPolicyRef  = "policy_refs"
	CategoryPhone      = "phones"
	CategoryCreditCard = "cards"
	CategoryGovernID   = "government_ids"
	CategoryAddress    = "addresses"
	CategoryPostcode   = "postal_codes"
	CategoryLicense    = "licenses"
	CategoryDate       = "dates"
	CategoryName       = "names"
)

// Anonymizer replaces PII substrings with stable placeholders. Safe for
// concurrent use: the seen-value maps are a read-modify-write and are guarded
// by a mutex.
type Anonymizer struct {
	mu sync.Mutex

	emailMap  map[string]string
	policyMap map[string]string
	nameMap   map[string]string

	emailCounter  int
	policyCounter int
	nameCounter   int

	counts map[string]int
}

// New creates an Anonymizer with empty substitution maps and zero counters.
func New() *Anonymizer {
	return &Anonymizer{
		emailMap:  make(map[string]string),
		policyMap: make(map[string]string),
		nameMap:   make(map[string]string),
		counts:    make(map[string]int),
	}
}

// Anonymize redacts recognized PII categories from text. Best-effort: input
// that matches no category is returned unchanged, and malformed input never
// produces an error. Already-anonymized text passes through unchanged, so
// Anonymize(Anonymize(x)) == Anonymize(x).
func (a *Anonymizer) Anonymize(text string) string {
	if text == "" {
		return text
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	out := a.replaceEmails(text)
	out = a.replacePolicyRefs(out)
	out = a.replacePhones(out)
	out = a.replaceAll(reCreditCard, out, "[REDACTED_CARD]", CategoryCreditCard)
	out = a.replaceAll(reGovernID, out, "[REDACTED_ID]", CategoryGovernID)
	out = a.replaceAll(reAddress, out, "[REDACTED_ADDRESS]", CategoryAddress)
	out = a.replacePostcodes(out)
	out = a.replaceAll(reLicense, out, "[REDACTED_LICENSE]", CategoryLicense)
	out = a.replaceDates(out)
	out = a.replaceNames(out)
	return out
}

// Stats returns a copy of the per-category substitution counts. Counts only
// grow; constructing a new Anonymizer is the only reset.
func (a *Anonymizer) Stats() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]int, len(a.counts))
	for k, v := range a.counts {
		out[k] = v
	}
	return out
}

func (a *Anonymizer) replaceAll(re *regexp.Regexp, text, placeholder, category string) string {
	return re.ReplaceAllStringFunc(text, func(string) string {
		a.counts[category]++
		return placeholder
	})
}

func (a *Anonymizer) replaceEmails(text string) string {
	return reEmail.ReplaceAllStringFunc(text, func(email string) string {
		placeholder, ok := a.emailMap[email]
		if !ok {
			a.emailCounter++
			placeholder = fmt.Sprintf("customer%d@example.com", a.emailCounter)
			a.emailMap[email] = placeholder
			// Map the placeholder to itself so a second pass is a no-op.
			a.emailMap[placeholder] = placeholder
		}
		if placeholder != email {
			a.counts[CategoryEmail]++
		}
		return placeholder
	})
}

func (a *Anonymizer) replacePolicyRefs(text string) string {
	return rePolicyRef.ReplaceAllStringFunc(text, func(ref string) string {
		placeholder, ok := a.policyMap[ref]
		if !ok {
			a.policyCounter++
			placeholder = fmt.Sprintf("POL-%04d", a.policyCounter)
			a.policyMap[ref] = placeholder
			a.policyMap[placeholder] = placeholder
		}
		if placeholder != ref {
			a.counts[CategoryPolicyRef]++
		}
		return placeholder
	})
}

func (a *Anonymizer) replacePhones(text string) string {
	text = a.replaceAll(rePhone, text, "[REDACTED_PHONE]", CategoryPhone)
	return a.replaceAll(reIntlPhone, text, "[REDACTED_PHONE]", CategoryPhone)
}

// replacePostcodes redacts UK-format and four-digit postal codes. Four-digit
// numbers in 1900-2099 are kept: they are far more likely to be years, which
// the date stage deliberately preserves as non-sensitive. The digits of a
// POL-NNNN policy placeholder from the earlier stage are matched here so they
// can be passed through whole instead of half-redacted.
func (a *Anonymizer) replacePostcodes(text string) string {
	return rePostcode.ReplaceAllStringFunc(text, func(code string) string {
		if strings.HasPrefix(code, "POL-") {
			return code
		}
		if n, err := strconv.Atoi(code); err == nil && n >= 1900 && n <= 2099 {
			return code
		}
		a.counts[CategoryPostcode]++
		return "[REDACTED_POSTCODE]"
	})
}

// replaceDates redacts specific calendar dates while keeping bare four-digit
// years and relative references like "next week" untouched.
func (a *Anonymizer) replaceDates(text string) string {
	return reDate.ReplaceAllStringFunc(text, func(date string) string {
		if reBareYear.MatchString(date) {
			return date
		}
		a.counts[CategoryDate]++
		return "[REDACTED_DATE]"
	})
}

// replaceNames redacts honorific-prefixed personal names. Bare capitalized
// words are too ambiguous to touch; the honorific is kept so the sentence
// still reads naturally.
func (a *Anonymizer) replaceNames(text string) string {
	return reTitledName.ReplaceAllStringFunc(text, func(full string) string {
		sub := reTitledName.FindStringSubmatch(full)
		title, name := sub[1], sub[2]
		placeholder, ok := a.nameMap[name]
		if !ok {
			a.nameCounter++
			placeholder = surrogateSurnames[a.nameCounter%len(surrogateSurnames)]
			a.nameMap[name] = placeholder
			a.nameMap[placeholder] = placeholder
		}
		if placeholder != name {
			a.counts[CategoryName]++
		}
		return title + " " + placeholder
	})
}
