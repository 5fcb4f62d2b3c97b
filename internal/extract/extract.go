// Package extract turns the freeform key-value text of an inbound lead
// message into a validated model.Lead. Individual fields never fail hard:
// missing or malformed values degrade to documented defaults so that a bad
// field never loses the whole lead. The only error condition is a message
// body that cannot be decoded at all.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/lead-ingest/internal/model"
)

// Default values applied when a field cannot be extracted. These are part
// of the persisted record format, distinguishable from legitimate data.
const (
	NotSpecified     = "Nicht angegeben"
	UnknownName      = "Unbekannt"
	DefaultIP        = "0.0.0.0"
	PlaceholderEmail = "no-email@example.com"
)

// Field labels as they appear in the inbound form mail. Matching is a
// case-insensitive prefix match on `label + ":"`; the first matching line
// wins.
const (
	labelPosition   = "Wunschposition"
	labelName       = "Name"
	labelGender     = "Geschlecht"
	labelAddress    = "Anschrift"
	labelBirthDate  = "Geburtsdatum"
	labelPhone      = "Tel"
	labelBirthPlace = "Geburtsort"
	labelIP         = "IP"
	labelLeadID     = "ID"
	labelInputKey   = "Eingabeschlüssel"
)

// emailLabels are tried in order; the longer variant first so that
// "E-Mail Adresse:" is not shadowed by the plain "E-Mail:" form.
var emailLabels = []string{"E-Mail Adresse", "E-Mail"}

var (
	ipv4Pattern = regexp.MustCompile(
		`^(25[0-5]|2[0-4][0-9]|1[0-9]{2}|[1-9]?[0-9])` +
			`(\.(25[0-5]|2[0-4][0-9]|1[0-9]{2}|[1-9]?[0-9])){3}$`,
	)
	ipv6Pattern  = regexp.MustCompile(`^([0-9a-fA-F]{1,4}:){7}[0-9a-fA-F]{1,4}$`)
	addrPattern  = regexp.MustCompile(`[\w.+-]+@[\w.-]+\.\w+`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[\w-]+(\.[\w-]+)+$`)
)

// Envelope carries the message metadata the extractor needs beyond the body.
type Envelope struct {
	// From is the envelope sender address, used as the email fallback.
	From string

	// Date is the message's own date; zero means unknown.
	Date time.Time
}

// Extractor builds Lead records from raw messages. It is stateless and
// safe for concurrent use.
type Extractor struct {
	now func() time.Time
}

// New returns an Extractor using the wall clock for fallback timestamps.
func New() *Extractor {
	return &Extractor{now: time.Now}
}

// ExtractLead decodes the raw RFC 2822 message and assembles a Lead from
// its plain-text body. It returns an error only when the body cannot be
// decoded; every per-field problem resolves to a default instead.
func (e *Extractor) ExtractLead(raw []byte, env Envelope) (model.Lead, error) {
	body, err := textFromMessage(raw)
	if err != nil {
		return model.Lead{}, fmt.Errorf("decoding message body: %w", err)
	}

	lines := strings.Split(body, "\n")
	now := e.now()

	received := env.Date
	if received.IsZero() {
		received = now
	}

	return model.Lead{
		LeadID:         extractLeadID(lines),
		Email:          extractEmail(lines, env.From),
		Position:       textField(lines, labelPosition),
		Name:           extractName(lines),
		Gender:         extractGender(lines),
		Address:        textField(lines, labelAddress),
		BirthDate:      extractBirthDate(lines, now),
		Phone:          textField(lines, labelPhone),
		BirthPlace:     textField(lines, labelBirthPlace),
		SourceIP:       extractIP(lines),
		InputKey:       textField(lines, labelInputKey),
		ReceivedAt:     received,
		DeliveryStatus: model.DeliveryPending,
	}, nil
}

// fieldValue scans lines for the first one whose lowercased text starts
// with `label + ":"` and returns the trimmed remainder after the first
// colon. ok is false when no line matches or the value is empty.
func fieldValue(lines []string, label string) (value string, ok bool) {
	prefix := strings.ToLower(label) + ":"
	for _, line := range lines {
		if !strings.HasPrefix(strings.ToLower(line), prefix) {
			continue
		}
		value = strings.TrimSpace(line[len(prefix):])
		return value, value != ""
	}
	return "", false
}

// textField resolves a plain textual field to its value or the
// NotSpecified sentinel.
func textField(lines []string, label string) string {
	if v, ok := fieldValue(lines, label); ok {
		return v
	}
	return NotSpecified
}

// extractName splits the name field on a comma into "Last, First" and
// composes "First Last". A missing side defaults to UnknownName.
func extractName(lines []string) string {
	raw, _ := fieldValue(lines, labelName)

	last, first := raw, ""
	if i := strings.Index(raw, ","); i >= 0 {
		last, first = raw[:i], raw[i+1:]
	}

	last = strings.TrimSpace(last)
	first = strings.TrimSpace(first)
	if last == "" {
		last = UnknownName
	}
	if first == "" {
		first = UnknownName
	}

	return first + " " + last
}

// genderTokens is the fixed salutation vocabulary of the inbound form.
var genderTokens = map[string]model.Gender{
	"männlich": model.GenderMale,
	"weiblich": model.GenderFemale,
}

func extractGender(lines []string) model.Gender {
	raw, _ := fieldValue(lines, labelGender)
	if g, ok := genderTokens[strings.ToLower(raw)]; ok {
		return g
	}
	return model.GenderOther
}

// extractBirthDate parses the dd.mm.yyyy form. Any unparsable component
// falls back to now: a bad birth date must never abort lead capture.
func extractBirthDate(lines []string, now time.Time) time.Time {
	raw, ok := fieldValue(lines, labelBirthDate)
	if !ok {
		return now
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return now
	}

	day, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	month, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	year, err3 := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err1 != nil || err2 != nil || err3 != nil {
		return now
	}

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func extractLeadID(lines []string) int {
	raw, ok := fieldValue(lines, labelLeadID)
	if !ok {
		return 0
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

// extractIP validates the captured token against strict IPv4 and IPv6
// shapes and falls back to DefaultIP on anything else.
func extractIP(lines []string) string {
	raw, ok := fieldValue(lines, labelIP)
	if !ok {
		return DefaultIP
	}
	if ipv4Pattern.MatchString(raw) || ipv6Pattern.MatchString(raw) {
		return raw
	}
	return DefaultIP
}

// extractEmail resolves the lead's address with a three-tier fallback:
// labeled body field, then envelope sender, then a fixed placeholder.
// The result is never empty because email participates in the dedupe key.
func extractEmail(lines []string, envelopeFrom string) string {
	for _, label := range emailLabels {
		raw, ok := fieldValue(lines, label)
		if !ok {
			continue
		}
		if addr := addrPattern.FindString(raw); addr != "" && isValidEmail(addr) {
			return addr
		}
	}

	if isValidEmail(envelopeFrom) {
		return envelopeFrom
	}

	return PlaceholderEmail
}

func isValidEmail(addr string) bool {
	return emailPattern.MatchString(addr)
}

// textFromMessage decodes a raw message and returns its plain-text body.
// When only an HTML part exists, a stripped-down text rendering of it is
// returned. A message with no text at all yields an empty body, which
// resolves every field to its default.
func textFromMessage(raw []byte) (string, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	defer mr.Close()

	var textBody, htmlBody string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html"):
			htmlBody = string(body)
		}
	}

	if textBody == "" && htmlBody != "" {
		return stripHTML(htmlBody), nil
	}

	return textBody, nil
}

// htmlTagPattern matches HTML tags for stripping.
var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// stripHTML removes HTML tags from a string and decodes common entities,
// providing a basic plain-text rendering.
func stripHTML(html string) string {
	if html == "" {
		return ""
	}

	result := html
	for _, tag := range []string{
		"<br>", "<br/>", "<br />", "</p>", "</div>", "</li>",
	} {
		result = strings.ReplaceAll(result, tag, "\n")
	}

	result = htmlTagPattern.ReplaceAllString(result, "")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	result = replacer.Replace(result)

	for strings.Contains(result, "\n\n\n") {
		result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(result)
}
