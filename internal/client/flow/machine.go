// Package flow implements the onboarding wizard: an ordered sequence of
// steps that takes a user from "get started" through email login, one-time
// PIN verification, registration, the push-permission decision and the
// initial follow bootstrap, ending in a logged-in session.
//
// The machine owns the current step and the short-lived login token. It
// validates input, calls the remote auth service, persists the session
// credential, and reports every outcome to an Output. Steps never change
// except through the machine's own transitions.
package flow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/voicelyapp/voicely-cli/internal/client/api"
	"github.com/voicelyapp/voicely-cli/internal/client/models"
	"github.com/voicelyapp/voicely-cli/internal/client/notifications"
	"github.com/voicelyapp/voicely-cli/internal/client/repositories/credentials"
	"github.com/voicelyapp/voicely-cli/internal/client/validation"
	"github.com/voicelyapp/voicely-cli/internal/logging"
)

// Machine drives one onboarding attempt. Create one per attempt and discard
// it after StepSuccess; the persisted credential outlives the machine.
//
// Operations are expected to be invoked one at a time (the presenter
// disables re-submission while a call is in flight). State mutations are
// still serialized internally, so a stray concurrent completion cannot
// corrupt the step or the token.
type Machine struct {
	output Output
	api    api.Client
	creds  credentials.Repository
	perms  notifications.Requester
	log    logging.Logger
	now    func() time.Time

	mu     sync.Mutex
	step   Step
	token  string
	closed bool
}

func NewMachine(output Output, apiClient api.Client, creds credentials.Repository, perms notifications.Requester, log logging.Logger) *Machine {
	return &Machine{
		output: output,
		api:    apiClient,
		creds:  creds,
		perms:  perms,
		log:    log,
		now:    time.Now,
		step:   StepGetStarted,
	}
}

// Current returns the step the machine is on.
func (m *Machine) Current() Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}

// Close makes the machine inert: every subsequent operation is a no-op and
// no further events are emitted. In-flight completions that race with Close
// may still deliver one late event; consumers that have torn down are
// expected to ignore it.
func (m *Machine) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

// Back moves to the previous step. It is a silent no-op at StepGetStarted.
func (m *Machine) Back() {
	m.navigate(-1)
}

// Skip moves to the next step. It is a silent no-op at StepSuccess.
func (m *Machine) Skip() {
	m.navigate(+1)
}

// Login validates the email and requests a one-time PIN. On success the
// returned login token replaces any previous one and the flow advances to
// StepPin.
func (m *Machine) Login(ctx context.Context, email string) {
	if m.isClosed() {
		return
	}

	email = strings.TrimSpace(email)
	if !validation.IsValidEmail(email) {
		m.fail(ErrorInvalidEmail)
		return
	}

	token, err := m.api.RequestLogin(ctx, email)
	if err != nil {
		m.log.Warn(ctx, "login code request failed", "error", err)
		m.fail(ErrorGeneral)
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.token = token
	m.step = StepPin
	m.mu.Unlock()

	m.output.PresentStep(StepPin)
}

// SubmitPin verifies the one-time PIN. An existing account logs in directly:
// the credential is persisted, permission is requested, and the flow jumps
// to StepSuccess. A new account continues to StepRegistration.
func (m *Machine) SubmitPin(ctx context.Context, pin string) {
	if m.isClosed() {
		return
	}

	if strings.TrimSpace(pin) == "" {
		m.fail(ErrorInvalidPin)
		return
	}

	token, ok := m.pendingToken(ctx)
	if !ok {
		return
	}

	res, err := m.api.VerifyCode(ctx, token, pin)
	if err != nil {
		if errors.Is(err, api.ErrIncorrectPin) {
			m.fail(ErrorInvalidPin)
			return
		}
		m.log.Warn(ctx, "pin verification failed", "error", err)
		m.fail(ErrorGeneral)
		return
	}

	switch res.Disposition {
	case api.DispositionExistingAccount:
		if res.User == nil || res.ExpiresIn <= 0 {
			m.log.Error(ctx, "verification response missing user or expiry")
			m.fail(ErrorGeneral)
			return
		}
		if !m.persist(ctx, token, res.ExpiresIn, res.User) {
			return
		}
		m.perms.Request(ctx, nil)
		m.transition(StepSuccess)
	case api.DispositionNewAccount:
		m.transition(StepRegistration)
	}
}

// Register creates the account. An empty display name falls back to the
// username. On success the credential is persisted, the flow advances to
// StepRequestNotifications, and the permission prompt begins; its answer,
// granted or not, moves the flow on to StepFollow.
func (m *Machine) Register(ctx context.Context, username, displayName string, image []byte) {
	if m.isClosed() {
		return
	}

	if !validation.IsValidUsername(username) {
		m.fail(ErrorInvalidUsername)
		return
	}
	if len(image) == 0 {
		m.fail(ErrorMissingProfileImage)
		return
	}
	if displayName == "" {
		displayName = username
	}

	token, ok := m.pendingToken(ctx)
	if !ok {
		return
	}

	user, expiresIn, err := m.api.RegisterAccount(ctx, token, username, displayName, image)
	if err != nil {
		if errors.Is(err, api.ErrUsernameTaken) {
			m.fail(ErrorUsernameTaken)
			return
		}
		m.log.Warn(ctx, "registration failed", "error", err)
		m.fail(ErrorGeneral)
		return
	}

	if user == nil || expiresIn <= 0 {
		m.log.Error(ctx, "registration response missing user or expiry")
		m.fail(ErrorGeneral)
		return
	}
	if !m.persist(ctx, token, expiresIn, user) {
		return
	}

	m.transition(StepRequestNotifications)
	m.perms.Request(ctx, m.permissionFinished)
}

// Follow establishes the initial social graph. An empty selection completes
// immediately without a network call. A failed bulk-follow is reported but
// never blocks completion: the flow reaches StepSuccess either way.
func (m *Machine) Follow(ctx context.Context, userIDs []int64) {
	if m.isClosed() {
		return
	}

	if len(userIDs) == 0 {
		m.transition(StepSuccess)
		return
	}

	if err := m.api.BulkFollow(ctx, userIDs); err != nil {
		m.log.Warn(ctx, "bulk follow failed", "error", err, "count", len(userIDs))
		m.fail(ErrorGeneral)
	}
	m.transition(StepSuccess)
}

// pendingToken returns the login token, reporting a contract violation when
// none was ever issued for this attempt.
func (m *Machine) pendingToken(ctx context.Context) (string, bool) {
	m.mu.Lock()
	token := m.token
	m.mu.Unlock()

	if token == "" {
		m.log.Error(ctx, "operation requires a login token but none is set", "step", m.Current().String())
		m.fail(ErrorInternal)
		return "", false
	}
	return token, true
}

// persist writes the session credential as one unit: token, absolute expiry
// and user record. The flow does not advance when the write fails.
func (m *Machine) persist(ctx context.Context, token string, expiresIn int64, user *models.User) bool {
	cred := models.Credential{
		Token:     token,
		ExpiresAt: m.now().Unix() + expiresIn,
		User:      *user,
	}
	if err := m.creds.Save(ctx, cred); err != nil {
		m.log.Error(ctx, "failed to persist credential", "error", err)
		m.fail(ErrorGeneral)
		return false
	}
	return true
}

func (m *Machine) permissionFinished(granted bool) {
	// Permission denial is not an error for onboarding; the flow moves on
	// regardless of the answer.
	m.log.Debug(context.Background(), "push permission resolved", "granted", granted)
	m.transition(StepFollow)
}

func (m *Machine) navigate(delta int) {
	m.mu.Lock()
	next := m.step + Step(delta)
	if m.closed || next < StepGetStarted || next > StepSuccess {
		m.mu.Unlock()
		return
	}
	m.step = next
	m.mu.Unlock()

	m.output.PresentStep(next)
}

func (m *Machine) transition(to Step) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.step = to
	m.mu.Unlock()

	m.output.PresentStep(to)
}

func (m *Machine) fail(kind ErrorKind) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.output.PresentError(kind)
}

func (m *Machine) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
