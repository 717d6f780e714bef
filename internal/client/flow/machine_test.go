package flow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicelyapp/voicely-cli/internal/client/api"
	"github.com/voicelyapp/voicely-cli/internal/client/models"
	"github.com/voicelyapp/voicely-cli/internal/logging"
)

// ---- fakes ----

type recorderOutput struct {
	steps []Step
	errs  []ErrorKind
}

func (r *recorderOutput) PresentStep(s Step) { r.steps = append(r.steps, s) }

func (r *recorderOutput) PresentError(k ErrorKind) { r.errs = append(r.errs, k) }

// fakeClient implements api.Client for machine unit tests.
type fakeClient struct {
	RequestLoginRet string
	RequestLoginErr error

	VerifyRet *api.VerifyResult
	VerifyErr error

	RegisterUserRet    *models.User
	RegisterExpiresRet int64
	RegisterErr        error

	BulkFollowErr error

	RequestLoginCalls int
	VerifyCalls       int
	RegisterCalls     int
	BulkFollowCalls   int

	LastLoginEmail      string
	LastVerifyToken     string
	LastVerifyPin       string
	LastRegisterToken   string
	LastRegisterUser    string
	LastRegisterDisplay string
	LastRegisterImage   []byte
	LastFollowIDs       []int64
}

func (f *fakeClient) RequestLogin(ctx context.Context, email string) (string, error) {
	f.RequestLoginCalls++
	f.LastLoginEmail = email
	return f.RequestLoginRet, f.RequestLoginErr
}

func (f *fakeClient) VerifyCode(ctx context.Context, token, pin string) (*api.VerifyResult, error) {
	f.VerifyCalls++
	f.LastVerifyToken = token
	f.LastVerifyPin = pin
	return f.VerifyRet, f.VerifyErr
}

func (f *fakeClient) RegisterAccount(ctx context.Context, token, username, displayName string, image []byte) (*models.User, int64, error) {
	f.RegisterCalls++
	f.LastRegisterToken = token
	f.LastRegisterUser = username
	f.LastRegisterDisplay = displayName
	f.LastRegisterImage = append([]byte(nil), image...)
	return f.RegisterUserRet, f.RegisterExpiresRet, f.RegisterErr
}

func (f *fakeClient) BulkFollow(ctx context.Context, ids []int64) error {
	f.BulkFollowCalls++
	f.LastFollowIDs = append([]int64(nil), ids...)
	return f.BulkFollowErr
}

func (f *fakeClient) Ping(ctx context.Context) error { return nil }

func (f *fakeClient) Close() error { return nil }

type fakeCreds struct {
	SaveErr error
	Saved   []models.Credential
}

func (f *fakeCreds) Save(ctx context.Context, cred models.Credential) error {
	if f.SaveErr != nil {
		return f.SaveErr
	}
	f.Saved = append(f.Saved, cred)
	return nil
}

func (f *fakeCreds) Load(ctx context.Context) (*models.Credential, error) { return nil, nil }

func (f *fakeCreds) Clear(ctx context.Context) error { return nil }

func (f *fakeCreds) DeviceID(ctx context.Context) (string, error) { return "device-1", nil }

// fakeRequester records permission requests. When auto is non-nil the done
// callback fires synchronously with that answer; otherwise the test invokes
// captured done itself.
type fakeRequester struct {
	auto  *bool
	calls int
	done  func(granted bool)
}

func (f *fakeRequester) Request(ctx context.Context, done func(granted bool)) {
	f.calls++
	f.done = done
	if f.auto != nil && done != nil {
		done(*f.auto)
	}
}

type fixture struct {
	machine *Machine
	out     *recorderOutput
	client  *fakeClient
	creds   *fakeCreds
	perms   *fakeRequester
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		out:    &recorderOutput{},
		client: &fakeClient{},
		creds:  &fakeCreds{},
		perms:  &fakeRequester{},
	}
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	f.machine = NewMachine(f.out, f.client, f.creds, f.perms, log)
	return f
}

func boolPtr(b bool) *bool { return &b }

func existingAccountResult() *api.VerifyResult {
	return &api.VerifyResult{
		Disposition: api.DispositionExistingAccount,
		User:        &models.User{ID: 7, Username: "alice", DisplayName: "Alice"},
		ExpiresIn:   3600,
	}
}

// loginToPin drives the machine to StepPin with a pending token.
func (f *fixture) loginToPin(t *testing.T) {
	t.Helper()
	f.client.RequestLoginRet = "tok-1"
	f.machine.Login(context.Background(), "a@b.com")
	require.Equal(t, StepPin, f.machine.Current())
}

// ---- Login ----

func TestLogin_InvalidEmail_NoNetworkCall(t *testing.T) {
	f := newFixture(t)

	f.machine.Login(context.Background(), "not-an-email")

	assert.Equal(t, []ErrorKind{ErrorInvalidEmail}, f.out.errs)
	assert.Empty(t, f.out.steps)
	assert.Zero(t, f.client.RequestLoginCalls)
	assert.Equal(t, StepGetStarted, f.machine.Current())
}

func TestLogin_TrimsWhitespaceBeforeValidation(t *testing.T) {
	f := newFixture(t)
	f.client.RequestLoginRet = "tok-1"

	f.machine.Login(context.Background(), "  a@b.com ")

	assert.Equal(t, "a@b.com", f.client.LastLoginEmail)
	assert.Equal(t, StepPin, f.machine.Current())
	assert.Equal(t, []Step{StepPin}, f.out.steps)
}

func TestLogin_ServerError_StepUnchanged(t *testing.T) {
	f := newFixture(t)
	f.client.RequestLoginErr = errors.New("boom")

	f.machine.Login(context.Background(), "a@b.com")

	assert.Equal(t, []ErrorKind{ErrorGeneral}, f.out.errs)
	assert.Equal(t, StepGetStarted, f.machine.Current())
}

func TestLogin_ReplacesPendingToken(t *testing.T) {
	f := newFixture(t)

	f.client.RequestLoginRet = "tok-old"
	f.machine.Login(context.Background(), "a@b.com")
	f.client.RequestLoginRet = "tok-new"
	f.machine.Login(context.Background(), "a@b.com")

	f.client.VerifyRet = &api.VerifyResult{Disposition: api.DispositionNewAccount}
	f.machine.SubmitPin(context.Background(), "123456")

	assert.Equal(t, "tok-new", f.client.LastVerifyToken)
}

// ---- SubmitPin ----

func TestSubmitPin_EmptyPin_NoNetworkCall(t *testing.T) {
	f := newFixture(t)
	f.loginToPin(t)

	f.machine.SubmitPin(context.Background(), "   ")

	assert.Equal(t, []ErrorKind{ErrorInvalidPin}, f.out.errs)
	assert.Zero(t, f.client.VerifyCalls)
	assert.Equal(t, StepPin, f.machine.Current())
}

func TestSubmitPin_WithoutToken_IsContractViolation(t *testing.T) {
	f := newFixture(t)

	f.machine.SubmitPin(context.Background(), "123456")

	assert.Equal(t, []ErrorKind{ErrorInternal}, f.out.errs)
	assert.Zero(t, f.client.VerifyCalls)
}

func TestSubmitPin_IncorrectCode(t *testing.T) {
	f := newFixture(t)
	f.loginToPin(t)
	f.client.VerifyErr = api.ErrIncorrectPin

	f.machine.SubmitPin(context.Background(), "000000")

	assert.Equal(t, []ErrorKind{ErrorInvalidPin}, f.out.errs)
	assert.Equal(t, StepPin, f.machine.Current())
}

func TestSubmitPin_OtherServerError(t *testing.T) {
	f := newFixture(t)
	f.loginToPin(t)
	f.client.VerifyErr = api.ErrUnavailable

	f.machine.SubmitPin(context.Background(), "123456")

	assert.Equal(t, []ErrorKind{ErrorGeneral}, f.out.errs)
	assert.Equal(t, StepPin, f.machine.Current())
}

func TestSubmitPin_ExistingAccount_Shortcut(t *testing.T) {
	f := newFixture(t)
	f.loginToPin(t)
	f.client.VerifyRet = existingAccountResult()

	f.machine.SubmitPin(context.Background(), "123456")

	assert.Equal(t, []Step{StepPin, StepSuccess}, f.out.steps)
	assert.Empty(t, f.out.errs)
	require.Len(t, f.creds.Saved, 1, "exactly one credential write")
	assert.Equal(t, "tok-1", f.creds.Saved[0].Token)
	assert.Equal(t, "alice", f.creds.Saved[0].User.Username)
	assert.Equal(t, 1, f.perms.calls)
}

func TestSubmitPin_ExistingAccount_ExpiryIsAbsolute(t *testing.T) {
	f := newFixture(t)
	f.loginToPin(t)
	f.client.VerifyRet = existingAccountResult()

	fixed := time.Unix(1_700_000_000, 0)
	f.machine.now = func() time.Time { return fixed }

	f.machine.SubmitPin(context.Background(), "123456")

	require.Len(t, f.creds.Saved, 1)
	assert.Equal(t, fixed.Unix()+3600, f.creds.Saved[0].ExpiresAt)
}

func TestSubmitPin_MissingUser_NoWrite(t *testing.T) {
	f := newFixture(t)
	f.loginToPin(t)
	f.client.VerifyRet = &api.VerifyResult{Disposition: api.DispositionExistingAccount, ExpiresIn: 3600}

	f.machine.SubmitPin(context.Background(), "123456")

	assert.Equal(t, []ErrorKind{ErrorGeneral}, f.out.errs)
	assert.Empty(t, f.creds.Saved)
	assert.Equal(t, StepPin, f.machine.Current())
}

func TestSubmitPin_MissingExpiry_NoWrite(t *testing.T) {
	f := newFixture(t)
	f.loginToPin(t)
	res := existingAccountResult()
	res.ExpiresIn = 0
	f.client.VerifyRet = res

	f.machine.SubmitPin(context.Background(), "123456")

	assert.Equal(t, []ErrorKind{ErrorGeneral}, f.out.errs)
	assert.Empty(t, f.creds.Saved)
}

func TestSubmitPin_NewAccount_AdvancesToRegistration(t *testing.T) {
	f := newFixture(t)
	f.loginToPin(t)
	f.client.VerifyRet = &api.VerifyResult{Disposition: api.DispositionNewAccount}

	f.machine.SubmitPin(context.Background(), "123456")

	assert.Equal(t, []Step{StepPin, StepRegistration}, f.out.steps)
	assert.Empty(t, f.creds.Saved)
	assert.Zero(t, f.perms.calls)
}

// ---- Register ----

func TestRegister_InvalidUsername_NoNetworkCall(t *testing.T) {
	f := newFixture(t)
	f.loginToPin(t)

	f.machine.Register(context.Background(), "a!", "A", []byte{1})

	assert.Equal(t, []ErrorKind{ErrorInvalidUsername}, f.out.errs)
	assert.Zero(t, f.client.RegisterCalls)
}

func TestRegister_MissingImage_NoNetworkCall(t *testing.T) {
	f := newFixture(t)
	f.loginToPin(t)

	f.machine.Register(context.Background(), "alice", "Alice", nil)

	assert.Equal(t, []ErrorKind{ErrorMissingProfileImage}, f.out.errs)
	assert.Zero(t, f.client.RegisterCalls)
}

func TestRegister_WithoutToken_IsContractViolation(t *testing.T) {
	f := newFixture(t)

	f.machine.Register(context.Background(), "alice", "Alice", []byte{1})

	assert.Equal(t, []ErrorKind{ErrorInternal}, f.out.errs)
	assert.Zero(t, f.client.RegisterCalls)
}

func TestRegister_UsernameTaken(t *testing.T) {
	f := newFixture(t)
	f.loginToPin(t)
	f.client.RegisterErr = api.ErrUsernameTaken

	f.machine.Register(context.Background(), "alice", "Alice", []byte{1})

	assert.Equal(t, []ErrorKind{ErrorUsernameTaken}, f.out.errs)
	assert.Equal(t, StepPin, f.machine.Current())
}

func TestRegister_EmptyDisplayNameDefaultsToUsername(t *testing.T) {
	f := newFixture(t)
	f.loginToPin(t)
	f.client.RegisterUserRet = &models.User{ID: 9, Username: "alice"}
	f.client.RegisterExpiresRet = 3600

	f.machine.Register(context.Background(), "alice", "", []byte{1})

	assert.Equal(t, "alice", f.client.LastRegisterDisplay)
}

func TestRegister_Success_PersistsAndRequestsPermission(t *testing.T) {
	f := newFixture(t)
	f.loginToPin(t)
	f.client.RegisterUserRet = &models.User{ID: 9, Username: "alice", DisplayName: "Alice"}
	f.client.RegisterExpiresRet = 1800

	f.machine.Register(context.Background(), "alice", "Alice", []byte{0x1})

	assert.Equal(t, []Step{StepPin, StepRequestNotifications}, f.out.steps)
	require.Len(t, f.creds.Saved, 1)
	assert.Equal(t, "tok-1", f.creds.Saved[0].Token)
	require.Equal(t, 1, f.perms.calls)
	require.NotNil(t, f.perms.done)

	// Denial still advances the flow.
	f.perms.done(false)
	assert.Equal(t, StepFollow, f.machine.Current())
	assert.Equal(t, []Step{StepPin, StepRequestNotifications, StepFollow}, f.out.steps)
}

func TestRegister_PermissionGrantAlsoAdvances(t *testing.T) {
	f := newFixture(t)
	f.perms.auto = boolPtr(true)
	f.loginToPin(t)
	f.client.RegisterUserRet = &models.User{ID: 9, Username: "alice"}
	f.client.RegisterExpiresRet = 1800

	f.machine.Register(context.Background(), "alice", "Alice", []byte{0x1})

	assert.Equal(t, StepFollow, f.machine.Current())
}

func TestRegister_IncompleteResponse_NoWrite(t *testing.T) {
	f := newFixture(t)
	f.loginToPin(t)
	f.client.RegisterUserRet = nil
	f.client.RegisterExpiresRet = 1800

	f.machine.Register(context.Background(), "alice", "Alice", []byte{0x1})

	assert.Equal(t, []ErrorKind{ErrorGeneral}, f.out.errs)
	assert.Empty(t, f.creds.Saved)
	assert.Zero(t, f.perms.calls)
}

func TestRegister_StoreFailure_DoesNotAdvance(t *testing.T) {
	f := newFixture(t)
	f.loginToPin(t)
	f.client.RegisterUserRet = &models.User{ID: 9, Username: "alice"}
	f.client.RegisterExpiresRet = 1800
	f.creds.SaveErr = errors.New("disk full")

	f.machine.Register(context.Background(), "alice", "Alice", []byte{0x1})

	assert.Equal(t, []ErrorKind{ErrorGeneral}, f.out.errs)
	assert.Equal(t, StepPin, f.machine.Current())
	assert.Zero(t, f.perms.calls)
}

// ---- Follow ----

func TestFollow_EmptySelection_CompletesWithoutNetworkCall(t *testing.T) {
	f := newFixture(t)

	f.machine.Follow(context.Background(), nil)

	assert.Equal(t, []Step{StepSuccess}, f.out.steps)
	assert.Empty(t, f.out.errs)
	assert.Zero(t, f.client.BulkFollowCalls)
}

func TestFollow_Success(t *testing.T) {
	f := newFixture(t)

	f.machine.Follow(context.Background(), []int64{3, 5})

	assert.Equal(t, []Step{StepSuccess}, f.out.steps)
	assert.Empty(t, f.out.errs)
	assert.Equal(t, []int64{3, 5}, f.client.LastFollowIDs)
}

func TestFollow_FailureStillCompletes(t *testing.T) {
	f := newFixture(t)
	f.client.BulkFollowErr = errors.New("boom")

	f.machine.Follow(context.Background(), []int64{3})

	assert.Equal(t, []Step{StepSuccess}, f.out.steps, "exactly one transition to success")
	assert.Equal(t, []ErrorKind{ErrorGeneral}, f.out.errs, "at most one error event")
}

// ---- navigation ----

func TestBack_AtGetStarted_IsSilentNoOp(t *testing.T) {
	f := newFixture(t)

	f.machine.Back()

	assert.Empty(t, f.out.steps)
	assert.Empty(t, f.out.errs)
	assert.Equal(t, StepGetStarted, f.machine.Current())
}

func TestSkip_AtSuccess_IsSilentNoOp(t *testing.T) {
	f := newFixture(t)
	f.machine.Follow(context.Background(), nil)
	require.Equal(t, StepSuccess, f.machine.Current())
	stepsBefore := len(f.out.steps)

	f.machine.Skip()

	assert.Len(t, f.out.steps, stepsBefore)
	assert.Equal(t, StepSuccess, f.machine.Current())
}

func TestSkipAndBack_MoveOneOrdinal(t *testing.T) {
	f := newFixture(t)

	f.machine.Skip()
	assert.Equal(t, StepLogin, f.machine.Current())

	f.machine.Back()
	assert.Equal(t, StepGetStarted, f.machine.Current())

	assert.Equal(t, []Step{StepLogin, StepGetStarted}, f.out.steps)
}

// ---- lifecycle ----

func TestHappyPath_NewAccount_IsMonotonic(t *testing.T) {
	f := newFixture(t)
	f.perms.auto = boolPtr(false)
	ctx := context.Background()

	f.machine.Skip() // get started

	f.client.RequestLoginRet = "tok-1"
	f.machine.Login(ctx, "a@b.com")

	f.client.VerifyRet = &api.VerifyResult{Disposition: api.DispositionNewAccount}
	f.machine.SubmitPin(ctx, "123456")

	f.client.RegisterUserRet = &models.User{ID: 9, Username: "alice"}
	f.client.RegisterExpiresRet = 3600
	f.machine.Register(ctx, "alice", "Alice", []byte{0x1})

	f.machine.Follow(ctx, nil)

	assert.Equal(t, []Step{
		StepLogin,
		StepPin,
		StepRegistration,
		StepRequestNotifications,
		StepFollow,
		StepSuccess,
	}, f.out.steps)
	assert.Empty(t, f.out.errs)
	assert.Len(t, f.creds.Saved, 1)
}

func TestClose_MakesMachineInert(t *testing.T) {
	f := newFixture(t)
	f.loginToPin(t)
	f.out.steps = nil

	f.machine.Close()

	f.machine.SubmitPin(context.Background(), "123456")
	f.machine.Register(context.Background(), "alice", "Alice", []byte{1})
	f.machine.Follow(context.Background(), nil)
	f.machine.Back()
	f.machine.Skip()

	assert.Empty(t, f.out.steps)
	assert.Empty(t, f.out.errs)
	assert.Zero(t, f.client.VerifyCalls)
	assert.Zero(t, f.client.RegisterCalls)
	assert.Zero(t, f.client.BulkFollowCalls)
	assert.Equal(t, StepPin, f.machine.Current(), "step frozen at close")
}

func TestStepString(t *testing.T) {
	assert.Equal(t, "get_started", StepGetStarted.String())
	assert.Equal(t, "success", StepSuccess.String())
	assert.Equal(t, "unknown", Step(99).String())
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "invalid_email", ErrorInvalidEmail.String())
	assert.Equal(t, "internal", ErrorInternal.String())
	assert.Equal(t, "unknown", ErrorKind(99).String())
}
