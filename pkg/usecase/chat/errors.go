package chat

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrTagCredential marks a missing or rejected API credential. The session
	// returns to the welcome screen and the user has to fix configuration.
	ErrTagCredential = goerr.NewTag("credential")
	// ErrTagUpload marks any other failure while creating a store or ingesting documents
	ErrTagUpload = goerr.NewTag("upload")
	// ErrTagQuery marks a failed chat turn; the transcript already holds an apology
	ErrTagQuery = goerr.NewTag("query")
	// ErrTagQueryInFlight is returned when Send is called before the previous turn finished
	ErrTagQueryInFlight = goerr.NewTag("query_in_flight")
	// ErrTagPersistence marks a failure to load or save the active store name.
	// These errors are logged and never returned from Session.
	ErrTagPersistence = goerr.NewTag("persistence")
	// ErrTagInvalidState is returned when an operation is not allowed in the current status
	ErrTagInvalidState = goerr.NewTag("invalid_state")
)

const (
	credentialMissingMessage = "The Gemini API key is not configured. Set GEMINI_API_KEY (for example in .env.local) and restart the app."
	credentialInvalidMessage = "The Gemini API key is invalid. Update GEMINI_API_KEY and restart the app."
	apologyMessage           = "Sorry, I encountered an error. Please try again."
)

var credentialErrorPatterns = []string{
	"api key not valid",
	"requested entity was not found",
}

// isCredentialError inspects the error text. The gateway reports a bad key and
// a store created with another key in the same way, so both mean "fix the key".
func isCredentialError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, p := range credentialErrorPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
