package flow

// Step is one stage of the onboarding wizard. The ordinal order is
// meaningful: Back moves to the previous step, Skip to the next one.
type Step int

const (
	StepGetStarted Step = iota
	StepLogin
	StepPin
	StepRegistration
	StepRequestNotifications
	StepFollow
	StepSuccess
)

func (s Step) String() string {
	switch s {
	case StepGetStarted:
		return "get_started"
	case StepLogin:
		return "login"
	case StepPin:
		return "pin"
	case StepRegistration:
		return "registration"
	case StepRequestNotifications:
		return "request_notifications"
	case StepFollow:
		return "follow"
	case StepSuccess:
		return "success"
	default:
		return "unknown"
	}
}
