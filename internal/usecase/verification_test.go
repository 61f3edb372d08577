package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/toolhub/admin-gate/internal/core/domain"
	"github.com/toolhub/admin-gate/internal/infra/security"
	"github.com/toolhub/admin-gate/internal/repository/memory"
)

const (
	testIdentity     = "admin@x.com"
	testSecret       = "correctpw"
	testSecurityCode = "rightcode"
	testSalt         = "0123456789abcdef"
	testSigningKey   = "0123456789abcdef0123456789abcdef"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type delivererMock struct {
	mu        sync.Mutex
	codes     []string
	failNext  bool
	deliverCt int
}

func (d *delivererMock) Deliver(_ context.Context, code string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.deliverCt++
	if d.failNext {
		d.failNext = false
		return errors.New("smtp unreachable")
	}
	d.codes = append(d.codes, code)
	return nil
}

func (d *delivererMock) lastCode(t *testing.T) string {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.codes) == 0 {
		t.Fatalf("no code was delivered")
	}
	return d.codes[len(d.codes)-1]
}

type verificationFixture struct {
	service   *VerificationService
	sessions  *AdminSessionService
	states    *memory.VerificationStore
	deliverer *delivererMock
	clock     *testClock
}

func newVerificationFixture(t *testing.T) *verificationFixture {
	t.Helper()

	clock := newTestClock()

	secrets, err := security.NewStaticSecretStore(testIdentity, testSecret, testSecurityCode, testSalt)
	if err != nil {
		t.Fatalf("NewStaticSecretStore returned error: %v", err)
	}

	states := memory.NewVerificationStore()
	states.WithClock(clock.Now)

	sessionStore := memory.NewAdminSessionStore()
	sessionStore.WithClock(clock.Now)

	sessions, err := NewAdminSessionService(testSigningKey, "admin-gate", 24*time.Hour, sessionStore, nil, nil)
	if err != nil {
		t.Fatalf("NewAdminSessionService returned error: %v", err)
	}
	sessions.WithClock(clock.Now)

	deliverer := &delivererMock{}

	service, err := NewVerificationService(secrets, states, deliverer, sessions, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewVerificationService returned error: %v", err)
	}
	service.WithClock(clock.Now)

	return &verificationFixture{
		service:   service,
		sessions:  sessions,
		states:    states,
		deliverer: deliverer,
		clock:     clock,
	}
}

// login walks the fixture through steps 1 and 2 and returns the session key.
func (f *verificationFixture) login(t *testing.T) string {
	t.Helper()

	key, err := f.service.SubmitCredentials(context.Background(), testIdentity, testSecret, "", RequestMeta{})
	if err != nil {
		t.Fatalf("SubmitCredentials returned error: %v", err)
	}
	if err := f.service.SubmitSecretCode(context.Background(), key, testSecurityCode, RequestMeta{}); err != nil {
		t.Fatalf("SubmitSecretCode returned error: %v", err)
	}
	return key
}

func TestSubmitCredentials_Success(t *testing.T) {
	f := newVerificationFixture(t)

	key, err := f.service.SubmitCredentials(context.Background(), testIdentity, testSecret, "", RequestMeta{})
	if err != nil {
		t.Fatalf("SubmitCredentials returned error: %v", err)
	}
	if key == "" {
		t.Fatalf("expected a session key")
	}

	state, err := f.states.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("expected state stored, got %v", err)
	}
	if state.Phase != domain.PhaseCredentialsVerified {
		t.Fatalf("expected phase %q, got %q", domain.PhaseCredentialsVerified, state.Phase)
	}
	if state.OTPDigest != "" {
		t.Fatalf("expected no digest before step two")
	}
}

func TestSubmitCredentials_MismatchesAreIndistinguishable(t *testing.T) {
	f := newVerificationFixture(t)

	_, errIdentity := f.service.SubmitCredentials(context.Background(), "stranger@x.com", testSecret, "", RequestMeta{})
	_, errSecret := f.service.SubmitCredentials(context.Background(), testIdentity, "wrongpw", "", RequestMeta{})

	if !errors.Is(errIdentity, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown identity, got %v", errIdentity)
	}
	if !errors.Is(errSecret, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong secret, got %v", errSecret)
	}
	if errIdentity.Error() != errSecret.Error() {
		t.Fatalf("identity and secret mismatches must be indistinguishable")
	}
}

func TestSubmitCredentials_ResetsPriorSession(t *testing.T) {
	f := newVerificationFixture(t)
	key := f.login(t)

	// Re-running step one while past it is not an error; it restarts the flow.
	newKey, err := f.service.SubmitCredentials(context.Background(), testIdentity, testSecret, key, RequestMeta{})
	if err != nil {
		t.Fatalf("SubmitCredentials returned error: %v", err)
	}
	if newKey == key {
		t.Fatalf("expected a fresh session key")
	}

	if _, err := f.states.Get(context.Background(), key); err == nil {
		t.Fatalf("expected prior session to be discarded")
	}

	state, err := f.states.Get(context.Background(), newKey)
	if err != nil {
		t.Fatalf("expected new state stored, got %v", err)
	}
	if state.Phase != domain.PhaseCredentialsVerified {
		t.Fatalf("expected restart at phase %q, got %q", domain.PhaseCredentialsVerified, state.Phase)
	}
}

func TestStepOperations_FailWithoutSession(t *testing.T) {
	f := newVerificationFixture(t)

	if err := f.service.SubmitSecretCode(context.Background(), "missing", testSecurityCode, RequestMeta{}); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired from SubmitSecretCode, got %v", err)
	}
	if _, err := f.service.SubmitOneTimeCode(context.Background(), "missing", "123456", RequestMeta{}); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired from SubmitOneTimeCode, got %v", err)
	}
	if err := f.service.ResendOneTimeCode(context.Background(), "missing", RequestMeta{}); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired from ResendOneTimeCode, got %v", err)
	}
	if f.deliverer.deliverCt != 0 {
		t.Fatalf("expected no delivery without a live session")
	}
}

func TestSubmitSecretCode_WrongCodeLeavesStateUntouched(t *testing.T) {
	f := newVerificationFixture(t)

	key, err := f.service.SubmitCredentials(context.Background(), testIdentity, testSecret, "", RequestMeta{})
	if err != nil {
		t.Fatalf("SubmitCredentials returned error: %v", err)
	}

	if err := f.service.SubmitSecretCode(context.Background(), key, "wrongcode", RequestMeta{}); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}

	state, err := f.states.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("expected state preserved, got %v", err)
	}
	if state.Phase != domain.PhaseCredentialsVerified {
		t.Fatalf("expected phase unchanged, got %q", state.Phase)
	}

	// Corrected input still works on the same session.
	if err := f.service.SubmitSecretCode(context.Background(), key, testSecurityCode, RequestMeta{}); err != nil {
		t.Fatalf("SubmitSecretCode returned error: %v", err)
	}

	state, err = f.states.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("expected state stored, got %v", err)
	}
	if state.Phase != domain.PhaseCodeVerified {
		t.Fatalf("expected phase %q, got %q", domain.PhaseCodeVerified, state.Phase)
	}
	if state.OTPDigest == "" {
		t.Fatalf("expected digest stored with phase %q", domain.PhaseCodeVerified)
	}
	if f.deliverer.deliverCt != 1 {
		t.Fatalf("expected exactly one delivery, got %d", f.deliverer.deliverCt)
	}
}

func TestSubmitSecretCode_TrimsInput(t *testing.T) {
	f := newVerificationFixture(t)

	key, err := f.service.SubmitCredentials(context.Background(), testIdentity, testSecret, "", RequestMeta{})
	if err != nil {
		t.Fatalf("SubmitCredentials returned error: %v", err)
	}

	if err := f.service.SubmitSecretCode(context.Background(), key, "  "+testSecurityCode+" ", RequestMeta{}); err != nil {
		t.Fatalf("expected trimmed code to match, got %v", err)
	}
}

func TestSubmitSecretCode_DeliveryFailureKeepsPhase(t *testing.T) {
	f := newVerificationFixture(t)

	key, err := f.service.SubmitCredentials(context.Background(), testIdentity, testSecret, "", RequestMeta{})
	if err != nil {
		t.Fatalf("SubmitCredentials returned error: %v", err)
	}

	f.deliverer.failNext = true
	if err := f.service.SubmitSecretCode(context.Background(), key, testSecurityCode, RequestMeta{}); !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}

	state, err := f.states.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("expected state preserved, got %v", err)
	}
	if state.Phase != domain.PhaseCredentialsVerified {
		t.Fatalf("expected caller left at phase %q, got %q", domain.PhaseCredentialsVerified, state.Phase)
	}
	if state.OTPDigest != "" {
		t.Fatalf("expected no digest after failed delivery")
	}

	// The step is retryable without restarting the flow.
	if err := f.service.SubmitSecretCode(context.Background(), key, testSecurityCode, RequestMeta{}); err != nil {
		t.Fatalf("retry after delivery failure returned error: %v", err)
	}
}

func TestSubmitOneTimeCode_GrantsTerminalSession(t *testing.T) {
	f := newVerificationFixture(t)
	key := f.login(t)
	code := f.deliverer.lastCode(t)

	grant, err := f.service.SubmitOneTimeCode(context.Background(), key, code, RequestMeta{})
	if err != nil {
		t.Fatalf("SubmitOneTimeCode returned error: %v", err)
	}
	if grant == nil || grant.Token == "" {
		t.Fatalf("expected a signed session token")
	}
	if got := grant.ExpiresAt.Sub(f.clock.Now()); got != 24*time.Hour {
		t.Fatalf("expected 24h session TTL, got %v", got)
	}

	session, err := f.sessions.Validate(context.Background(), grant.Token)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if session.Subject != testIdentity {
		t.Fatalf("expected subject %q, got %q", testIdentity, session.Subject)
	}

	// Terminal: the verification state is gone, a replay starts from nothing.
	if _, err := f.service.SubmitOneTimeCode(context.Background(), key, code, RequestMeta{}); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired after terminal transition, got %v", err)
	}
}

func TestSubmitOneTimeCode_WrongCodeAllowsRetry(t *testing.T) {
	f := newVerificationFixture(t)
	key := f.login(t)
	code := f.deliverer.lastCode(t)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	if _, err := f.service.SubmitOneTimeCode(context.Background(), key, wrong, RequestMeta{}); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}

	// The mismatch must not consume the stored digest.
	if _, err := f.service.SubmitOneTimeCode(context.Background(), key, code, RequestMeta{}); err != nil {
		t.Fatalf("expected retry with correct code to succeed, got %v", err)
	}
}

func TestResendOneTimeCode_InvalidatesPriorCode(t *testing.T) {
	f := newVerificationFixture(t)
	key := f.login(t)
	oldCode := f.deliverer.lastCode(t)

	f.clock.Advance(2 * time.Minute)

	if err := f.service.ResendOneTimeCode(context.Background(), key, RequestMeta{}); err != nil {
		t.Fatalf("ResendOneTimeCode returned error: %v", err)
	}
	newCode := f.deliverer.lastCode(t)
	if newCode == oldCode {
		t.Fatalf("expected a fresh code on resend")
	}

	if _, err := f.service.SubmitOneTimeCode(context.Background(), key, oldCode, RequestMeta{}); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected stale code to be rejected, got %v", err)
	}
	if _, err := f.service.SubmitOneTimeCode(context.Background(), key, newCode, RequestMeta{}); err != nil {
		t.Fatalf("expected fresh code to be accepted, got %v", err)
	}
}

func TestResendOneTimeCode_EnforcesCooldown(t *testing.T) {
	f := newVerificationFixture(t)
	key := f.login(t)

	err := f.service.ResendOneTimeCode(context.Background(), key, RequestMeta{})
	var throttled *ResendThrottledError
	if !errors.As(err, &throttled) {
		t.Fatalf("expected ResendThrottledError, got %v", err)
	}
	if throttled.RetryAfter <= 0 {
		t.Fatalf("expected positive retry after, got %v", throttled.RetryAfter)
	}
	if f.deliverer.deliverCt != 1 {
		t.Fatalf("expected no delivery while throttled, got %d", f.deliverer.deliverCt)
	}

	f.clock.Advance(61 * time.Second)

	if err := f.service.ResendOneTimeCode(context.Background(), key, RequestMeta{}); err != nil {
		t.Fatalf("expected resend after cooldown to succeed, got %v", err)
	}
}

func TestResendOneTimeCode_DeliveryFailureKeepsPriorDigest(t *testing.T) {
	f := newVerificationFixture(t)
	key := f.login(t)
	code := f.deliverer.lastCode(t)

	f.clock.Advance(2 * time.Minute)
	f.deliverer.failNext = true

	if err := f.service.ResendOneTimeCode(context.Background(), key, RequestMeta{}); !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}

	// The code the caller already holds must still work.
	if _, err := f.service.SubmitOneTimeCode(context.Background(), key, code, RequestMeta{}); err != nil {
		t.Fatalf("expected prior code to remain valid, got %v", err)
	}
}

func TestStepTTL_ExpiryRestartsFlow(t *testing.T) {
	f := newVerificationFixture(t)

	key, err := f.service.SubmitCredentials(context.Background(), testIdentity, testSecret, "", RequestMeta{})
	if err != nil {
		t.Fatalf("SubmitCredentials returned error: %v", err)
	}

	f.clock.Advance(5*time.Minute + time.Second)

	if err := f.service.SubmitSecretCode(context.Background(), key, testSecurityCode, RequestMeta{}); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired after TTL, got %v", err)
	}
	if f.deliverer.deliverCt != 0 {
		t.Fatalf("expected no delivery for an expired session")
	}
}

func TestStepTTL_ResetOnEachTransition(t *testing.T) {
	f := newVerificationFixture(t)

	key, err := f.service.SubmitCredentials(context.Background(), testIdentity, testSecret, "", RequestMeta{})
	if err != nil {
		t.Fatalf("SubmitCredentials returned error: %v", err)
	}

	// Step two lands near the end of step one's window; its own window is fresh.
	f.clock.Advance(4 * time.Minute)
	if err := f.service.SubmitSecretCode(context.Background(), key, testSecurityCode, RequestMeta{}); err != nil {
		t.Fatalf("SubmitSecretCode returned error: %v", err)
	}

	f.clock.Advance(4 * time.Minute)
	code := f.deliverer.lastCode(t)
	if _, err := f.service.SubmitOneTimeCode(context.Background(), key, code, RequestMeta{}); err != nil {
		t.Fatalf("expected code accepted inside refreshed TTL, got %v", err)
	}
}

func TestConcurrentSubmitsAndResends_DigestMatchesDeliveredCode(t *testing.T) {
	f := newVerificationFixture(t)
	f.service.WithResendCooldown(0)
	key := f.login(t)

	// Delivery and the digest commit share one critical section per session,
	// so the order codes reach the deliverer is the order digests land in the
	// store. Letters can never match a generated numeric code, so the wrong
	// submits keep the session at the code phase for the whole race.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				if err := f.service.ResendOneTimeCode(context.Background(), key, RequestMeta{}); err != nil {
					t.Errorf("ResendOneTimeCode returned error: %v", err)
				}
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				if _, err := f.service.SubmitOneTimeCode(context.Background(), key, "zzzzzz", RequestMeta{}); !errors.Is(err, ErrInvalidCode) {
					t.Errorf("expected ErrInvalidCode, got %v", err)
				}
			}
		}()
	}
	wg.Wait()

	state, err := f.states.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("expected state preserved after race, got %v", err)
	}
	if state.Phase != domain.PhaseCodeVerified {
		t.Fatalf("expected phase %q, got %q", domain.PhaseCodeVerified, state.Phase)
	}

	last := f.deliverer.lastCode(t)
	if !security.VerifyOneTimeCode(last, []byte(testSalt), state.OTPDigest) {
		t.Fatalf("stored digest does not match the last delivered code")
	}

	if _, err := f.service.SubmitOneTimeCode(context.Background(), key, last, RequestMeta{}); err != nil {
		t.Fatalf("expected last delivered code to be accepted, got %v", err)
	}
}

func TestSubmitOneTimeCode_ExpiredCodePhase(t *testing.T) {
	f := newVerificationFixture(t)
	key := f.login(t)
	code := f.deliverer.lastCode(t)

	f.clock.Advance(6 * time.Minute)

	if _, err := f.service.SubmitOneTimeCode(context.Background(), key, code, RequestMeta{}); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}
