package audio

import "fmt"

// MaxAudioBytes is the hard payload ceiling. It is checked before upload
// and again after download: the two checks protect different trust
// boundaries.
const MaxAudioBytes = 16 << 20

// FailureCode classifies a transcription failure
type FailureCode string

const (
	CodeServiceError  FailureCode = "SERVICE_ERROR"
	CodeInvalidFormat FailureCode = "INVALID_FORMAT"
	CodeFileTooLarge  FailureCode = "FILE_TOO_LARGE"
)

// Failure is a discriminated transcription failure. Callers branch on
// Code with errors.As rather than matching message text.
type Failure struct {
	Code    FailureCode `json:"code"`
	Message string      `json:"error"`
	Details string      `json:"details,omitempty"`
}

func (f *Failure) Error() string {
	if f.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", f.Code, f.Message, f.Details)
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

func serviceError(message, details string) *Failure {
	return &Failure{Code: CodeServiceError, Message: message, Details: details}
}

func invalidFormat(message, details string) *Failure {
	return &Failure{Code: CodeInvalidFormat, Message: message, Details: details}
}

func fileTooLarge(message string) *Failure {
	return &Failure{Code: CodeFileTooLarge, Message: message}
}
