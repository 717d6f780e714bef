package models

// User is the account record returned by the Voicely API. The onboarding
// flow treats it as opaque beyond handing it to the credential store.
type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Image       string `json:"image"`
}
