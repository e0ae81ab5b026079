package receipt

import (
	"errors"
	"fmt"

	"receipt2ledger/pkg/ocr"
)

var (
	// ErrFieldMissing matches any *ExtractionError.
	ErrFieldMissing = errors.New("required field not found")
	// ErrDateParse matches any *DateParseError.
	ErrDateParse = errors.New("date could not be parsed")
	// ErrOCRUnavailable is returned when the recognition pool cannot take work in time.
	ErrOCRUnavailable = errors.New("ocr unavailable")
)

// ExtractionError names the first required field the extractor could not locate.
type ExtractionError struct {
	Field Field
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("could not find %s", e.Field)
}

func (e *ExtractionError) Is(target error) bool { return target == ErrFieldMissing }

// DateParseError carries the cleaned date text that failed to parse.
type DateParseError struct {
	Raw string
	Err error
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("could not parse date %q: %v", e.Raw, e.Err)
}

func (e *DateParseError) Is(target error) bool { return target == ErrDateParse }

func (e *DateParseError) Unwrap() error { return e.Err }

// UserMessage maps a pipeline error to the short text shown to end users.
// Which field was missing is for the logs only.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ocr.ErrImageDecode):
		return "could not read image"
	case errors.Is(err, ocr.ErrEmptyRecognition):
		return "could not recognize text"
	case errors.Is(err, ErrFieldMissing), errors.Is(err, ErrDateParse):
		return "could not recognize transaction data"
	case errors.Is(err, ErrOCRUnavailable):
		return "recognition is busy, try again later"
	default:
		return "could not process receipt"
	}
}
