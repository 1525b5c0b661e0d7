package conversation

import "errors"

// Validation errors: user-correctable input problems.
var (
	ErrEmptyBatch     = errors.New("no links in the message")
	ErrBatchTooLarge  = errors.New("too many links in one message")
	ErrNoValidURLs    = errors.New("no valid links in the message")
	ErrInvalidURL     = errors.New("not a valid link")
	ErrCaptionTooLong = errors.New("caption is longer than 100 characters")
	ErrTitleTooLong   = errors.New("title is longer than 100 characters")
	ErrTitleEmpty     = errors.New("title is empty")
)

// IsValidation reports whether err is a user input validation error.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrEmptyBatch, ErrBatchTooLarge, ErrNoValidURLs, ErrInvalidURL,
		ErrCaptionTooLong, ErrTitleTooLong, ErrTitleEmpty,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
