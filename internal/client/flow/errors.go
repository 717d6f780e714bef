package flow

// ErrorKind enumerates the user-facing failures the flow can report. The
// validation kinds are raised locally before any network call; ErrorGeneral
// absorbs every server or transport failure without a more specific mapping.
type ErrorKind int

const (
	ErrorInvalidEmail ErrorKind = iota
	ErrorInvalidPin
	ErrorInvalidUsername
	ErrorUsernameTaken
	ErrorMissingProfileImage
	ErrorGeneral

	// ErrorInternal reports a broken caller contract, e.g. submitting a PIN
	// when no login token was ever issued. It signals a client bug, not a
	// condition the user can fix.
	ErrorInternal
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorInvalidEmail:
		return "invalid_email"
	case ErrorInvalidPin:
		return "invalid_pin"
	case ErrorInvalidUsername:
		return "invalid_username"
	case ErrorUsernameTaken:
		return "username_taken"
	case ErrorMissingProfileImage:
		return "missing_profile_image"
	case ErrorGeneral:
		return "general"
	case ErrorInternal:
		return "internal"
	default:
		return "unknown"
	}
}
