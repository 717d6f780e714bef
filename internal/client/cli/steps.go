package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/voicelyapp/voicely-cli/internal/client/flow"
)

// handleEvents blocks for the machine's next notification and applies it.
// After an error it also drains any step notification already queued, so a
// pair such as "follow failed" + "success" is handled in one pass.
// Returns done=true when the wizard reached its final screen.
func (a *App) handleEvents(ctx context.Context) (bool, error) {
	select {
	case ev := <-a.events:
		if !ev.isErr {
			return a.applyStep(ev.step), nil
		}
		a.renderError(ev.kind)
		select {
		case next := <-a.events:
			if !next.isErr {
				return a.applyStep(next.step), nil
			}
			a.renderError(next.kind)
		default:
		}
		return false, nil

	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (a *App) applyStep(step flow.Step) bool {
	a.step = step
	a.render(step)
	return step == flow.StepSuccess
}

func (a *App) render(step flow.Step) {
	switch step {
	case flow.StepGetStarted:
		fmt.Fprintln(a.out, "Welcome to Voicely!")
	case flow.StepLogin:
		fmt.Fprintln(a.out, "Sign in with your email address.")
	case flow.StepPin:
		fmt.Fprintln(a.out, "We sent a code to your inbox.")
	case flow.StepRegistration:
		fmt.Fprintln(a.out, "Almost there, set up your profile.")
	case flow.StepRequestNotifications:
		fmt.Fprintln(a.out, "One more thing...")
	case flow.StepFollow:
		fmt.Fprintln(a.out, "Find people to follow.")
	case flow.StepSuccess:
		fmt.Fprintln(a.out, "All set, welcome aboard!")
	}
}

func (a *App) renderError(kind flow.ErrorKind) {
	var msg string
	switch kind {
	case flow.ErrorInvalidEmail:
		msg = "That does not look like a valid email address."
	case flow.ErrorInvalidPin:
		msg = "Incorrect code, please try again."
	case flow.ErrorInvalidUsername:
		msg = "Usernames are 3-99 characters: letters, digits and underscores."
	case flow.ErrorUsernameTaken:
		msg = "That username is already taken."
	case flow.ErrorMissingProfileImage:
		msg = "Please provide a profile picture."
	default:
		msg = "Something went wrong, please try again."
	}
	fmt.Fprintf(a.out, "Error: %s\n", msg)
}

// prompt collects the user input the current step needs and feeds it to the
// machine. Returns quit=true when the user asked to leave the wizard.
func (a *App) prompt(ctx context.Context, step flow.Step) (bool, error) {
	switch step {
	case flow.StepGetStarted:
		text, err := GetSimpleText(a.reader, "Press Enter to get started (or type 'q' to quit)", a.out)
		if err != nil {
			return false, err
		}
		if text == "q" {
			return true, nil
		}
		a.machine.Skip()
		return false, nil

	case flow.StepLogin:
		email, err := GetSimpleText(a.reader, "Email", a.out)
		if err != nil {
			return false, err
		}
		a.machine.Login(ctx, email)
		return false, nil

	case flow.StepPin:
		pin, err := GetPin(a.out)
		if err != nil {
			return false, err
		}
		if pin == "" {
			a.machine.Back()
			return false, nil
		}
		a.machine.SubmitPin(ctx, pin)
		return false, nil

	case flow.StepRegistration:
		return false, a.promptRegistration(ctx)

	case flow.StepRequestNotifications:
		// The permission requester owns stdin here; just wait for the
		// machine to move on.
		return false, nil

	case flow.StepFollow:
		text, err := GetSimpleText(a.reader, "User IDs to follow, comma separated (Enter to skip)", a.out)
		if err != nil {
			return false, err
		}
		a.machine.Follow(ctx, parseUserIDs(text))
		return false, nil
	}

	return false, nil
}

func (a *App) promptRegistration(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Username", a.out)
	if err != nil {
		return err
	}
	displayName, err := GetSimpleText(a.reader, "Display name (Enter to use username)", a.out)
	if err != nil {
		return err
	}
	path, err := GetSimpleText(a.reader, "Path to profile picture", a.out)
	if err != nil {
		return err
	}

	var image []byte
	if path != "" {
		image, err = os.ReadFile(path)
		if err != nil {
			a.log.Warn(ctx, "cannot read profile picture", "path", path, "error", err)
			image = nil
		}
	}

	a.machine.Register(ctx, username, displayName, image)
	return nil
}
