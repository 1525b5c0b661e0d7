package conversation

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sifan077/linkbot/internal/app/model"
)

// captionSeparator splits "url | caption" lines.
const captionSeparator = "|"

var domainPattern = regexp.MustCompile(
	`^(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+(?:[a-zA-Z]{2,}|xn--[a-zA-Z0-9-]{2,})$`,
)

// IsValidURL reports whether s is an absolute http(s) URL whose host is a
// domain name, localhost or an IPv4 address.
func IsValidURL(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return false
	}

	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	if u.User != nil || u.Opaque != "" {
		return false
	}

	host := u.Hostname()
	switch {
	case host == "":
		return false
	case strings.EqualFold(host, "localhost"):
		return true
	case domainPattern.MatchString(host):
		return true
	default:
		ip := net.ParseIP(host)
		return ip != nil && ip.To4() != nil && !strings.Contains(host, ":")
	}
}

// NormalizeURL trims s and prepends https:// when no scheme is present.
func NormalizeURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, "://") {
		return s
	}
	return "https://" + s
}

// ValidateTitle checks a user supplied title: 1 to 100 characters after trimming.
func ValidateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrTitleEmpty
	}
	if utf8.RuneCountInString(title) > model.MaxTitleLength {
		return "", ErrTitleTooLong
	}
	return title, nil
}

// ParsedBatch is the result of splitting a submission into items.
type ParsedBatch struct {
	Lines   int
	Items   []Item
	Invalid []Failure
}

// ParseBatch splits raw input into non-empty lines and validates each one.
// The whole submission is rejected when it has no lines or more than
// maxItems; otherwise invalid lines are collected as failures and the rest
// proceed. ErrNoValidURLs is returned, together with the batch, when no line
// survives.
func ParseBatch(raw string, maxItems int) (*ParsedBatch, error) {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	if len(lines) == 0 {
		return nil, ErrEmptyBatch
	}
	if maxItems > 0 && len(lines) > maxItems {
		return nil, fmt.Errorf("%w: %d links, the limit is %d", ErrBatchTooLarge, len(lines), maxItems)
	}

	batch := &ParsedBatch{Lines: len(lines)}
	for i, line := range lines {
		item, err := parseLine(i+1, line)
		if err != nil {
			batch.Invalid = append(batch.Invalid, Failure{Input: item.Input, Reason: err.Error()})
			continue
		}
		batch.Items = append(batch.Items, item)
	}

	if len(batch.Items) == 0 {
		return batch, ErrNoValidURLs
	}
	return batch, nil
}

func parseLine(n int, line string) (Item, error) {
	urlPart, caption, hasCaption := strings.Cut(line, captionSeparator)
	urlPart = strings.TrimSpace(urlPart)
	caption = strings.TrimSpace(caption)

	item := Item{Line: n, Input: urlPart}
	if item.Input == "" {
		item.Input = line
	}

	if hasCaption && utf8.RuneCountInString(caption) > model.MaxTitleLength {
		return item, ErrCaptionTooLong
	}

	normalized := NormalizeURL(urlPart)
	if !IsValidURL(normalized) {
		return item, ErrInvalidURL
	}
	item.URL = normalized

	if caption != "" {
		item.Title = caption
		item.HasTitle = true
	}
	return item, nil
}
