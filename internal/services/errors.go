package services

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// User-facing notices. These are displayed verbatim by the shells.
const (
	NoticeNoExtractableText  = "Could not extract text. Is this a scanned PDF?"
	NoticeCredentialMissing  = "Please enter your Gemini API key."
	NoticeNoDocument         = "Start by uploading a PDF."
	NoticeAlreadyLoaded      = "That PDF is already loaded."
	NoticeRateLimitExhausted = "Rate limit exceeded after multiple retries. " +
		"Please wait a minute and try again. " +
		"Tip: use your own API key!"
	noticeUnexpectedFormat = "Unexpected error: %s"
	noticeRateLimitWait    = "Rate limit hit. Waiting %ds before retry %d/%d..."
	noticeParseFailed      = "Failed to read PDF: %s"
	noticeLoaded           = "PDF loaded! (%d characters extracted)"
)

var noticePrinter = message.NewPrinter(language.English)

var (
	ErrCredentialMissing = errors.New("credential missing")
	ErrNoExtractableText = errors.New("no extractable text found in pdf")
	ErrNoDocument        = errors.New("no document loaded")
)

// DocumentParseError means the uploaded payload could not be read as a PDF.
type DocumentParseError struct {
	Cause error
}

func (e *DocumentParseError) Error() string {
	return fmt.Sprintf("parse pdf: %v", e.Cause)
}

func (e *DocumentParseError) Unwrap() error {
	return e.Cause
}

// Notice is the message shown to the user for a failed extraction.
func (e *DocumentParseError) Notice() string {
	return fmt.Sprintf(noticeParseFailed, e.Cause)
}

// GenerationError wraps a failure of the model call that is not a
// rate limit. It is never retried.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func (e *GenerationError) Notice() string {
	return UnexpectedNotice(e.Err)
}

// UnexpectedNotice embeds the raw error text into the generic failure notice.
func UnexpectedNotice(err error) string {
	return fmt.Sprintf(noticeUnexpectedFormat, err.Error())
}

// LoadedNotice confirms a fresh extraction, with the character count
// grouped in thousands.
func LoadedNotice(charCount int) string {
	return noticePrinter.Sprintf(noticeLoaded, charCount)
}
