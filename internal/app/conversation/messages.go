package conversation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sifan077/linkbot/internal/app/model"
)

// MaxMessageLength is the longest text a single chat message can carry.
const MaxMessageLength = 4096

func askURLsText(maxItems int) string {
	return fmt.Sprintf("Send a link to shorten, or up to %d links, one per line.\n"+
		"Add a title after a vertical bar to skip the title question:\n"+
		"https://example.com | My page", maxItems)
}

func titlePromptText(st *State, item Item) string {
	var b strings.Builder
	if st.Batch {
		fmt.Fprintf(&b, "Link %d of %d\n", st.Position(), st.Total)
	}
	fmt.Fprintf(&b, "%s\n\nSend a title for this link (up to %d characters) or /skip to keep %q.",
		item.URL, model.MaxTitleLength, model.DefaultTitle)
	return b.String()
}

func progressText(st *State, item Item) string {
	return fmt.Sprintf("Link %d of %d\n%s\n\nShortening...", st.Position(), st.Total, item.URL)
}

func rejectionText(err error, batch *ParsedBatch) string {
	switch {
	case errors.Is(err, ErrEmptyBatch):
		return "No links found. Send one link per line."
	case errors.Is(err, ErrBatchTooLarge):
		return fmt.Sprintf("Too many links: %s. Split the list and send it in parts.", strings.TrimPrefix(err.Error(), ErrBatchTooLarge.Error()+": "))
	case errors.Is(err, ErrNoValidURLs) && batch != nil:
		var b strings.Builder
		b.WriteString("None of the lines is a valid link:\n")
		writeFailures(&b, batch.Invalid)
		return b.String()
	default:
		return "Could not read the links. Send one link per line."
	}
}

func singleResultText(st *State) string {
	if len(st.Successes) == 1 {
		s := st.Successes[0]
		return fmt.Sprintf("Link saved.\n\n%s\n%s\n%s", s.Title, s.ShortURL, s.OriginalURL)
	}
	if len(st.Failures) == 1 {
		f := st.Failures[0]
		return fmt.Sprintf("Could not add %s: %s", f.Input, f.Reason)
	}
	return "Nothing was added."
}

func summaryText(st *State) string {
	var b strings.Builder
	total := len(st.Successes) + len(st.Failures)
	fmt.Fprintf(&b, "Done: %d of %d links saved.\n", len(st.Successes), total)

	if len(st.Successes) > 0 {
		b.WriteString("\nSaved:\n")
		for i, s := range st.Successes {
			fmt.Fprintf(&b, "%d. %s: %s\n", i+1, s.Title, s.ShortURL)
		}
	}
	if len(st.Failures) > 0 {
		b.WriteString("\nFailed:\n")
		writeFailures(&b, st.Failures)
		b.WriteString("\nFix the failed lines and send them again.")
	}
	return strings.TrimRight(b.String(), "\n")
}

func cancelledText(st *State) string {
	if n := len(st.Successes); n > 0 {
		return fmt.Sprintf("Cancelled. %d link(s) saved before cancelling stay in your list.", n)
	}
	return "Cancelled."
}

func renamePromptText(link *model.Link) string {
	return fmt.Sprintf("Current title: %s\n\nSend a new title (1 to %d characters).",
		link.DisplayTitle(), model.MaxTitleLength)
}

func renameInvalidText(err error) string {
	return fmt.Sprintf("That title does not work: %s.\nSend another one (1 to %d characters) or press Cancel.",
		err, model.MaxTitleLength)
}

func writeFailures(b *strings.Builder, failures []Failure) {
	for i, f := range failures {
		fmt.Fprintf(b, "%d. %s: %s\n", i+1, f.Input, f.Reason)
	}
}

// splitText breaks text into parts of at most limit runes. Cuts fall on line
// breaks; a single line longer than limit is cut mid-line.
func splitText(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var parts []string
	var cur strings.Builder
	n := 0
	flush := func() {
		if part := strings.TrimRight(cur.String(), "\n"); part != "" {
			parts = append(parts, part)
		}
		cur.Reset()
		n = 0
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		size := utf8.RuneCountInString(line)
		if n+size > limit {
			flush()
		}
		for size > limit {
			r := []rune(line)
			parts = append(parts, string(r[:limit]))
			line = string(r[limit:])
			size -= limit
		}
		cur.WriteString(line)
		n += size
	}
	flush()
	return parts
}
