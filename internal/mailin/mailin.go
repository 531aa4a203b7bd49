// Package mailin models the inbound case-notification email and extracts the
// case identifier from it. The upstream mail provider parses raw MIME and
// posts us the decoded fields, so this package only deals in plain strings.
package mailin

import "regexp"

// Email is the decoded inbound message as posted by the mail webhook.
type Email struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
	HTML    string   `json:"html"`
}

var (
	senderRe = regexp.MustCompile(`.*@.+\.wirespeed\.co$`)
	caseIDRe = regexp.MustCompile(`https://app\.wirespeed\.co/cases/([a-f0-9-]{36})`)
)

// FromWirespeed reports whether the sender address belongs to a wirespeed.co
// subdomain. Anything else is dropped before parsing.
func FromWirespeed(from string) bool {
	return senderRe.MatchString(from)
}

// ExtractCaseID pulls the case UUID out of the notification's case link,
// checking the text body first and falling back to the HTML body. Returns ""
// if neither body carries a case link.
func ExtractCaseID(text, html string) string {
	if m := caseIDRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := caseIDRe.FindStringSubmatch(html); m != nil {
		return m[1]
	}
	return ""
}
