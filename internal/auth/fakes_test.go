package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/redmonkez12/ms-auth/internal/logging"
	"github.com/redmonkez12/ms-auth/internal/user"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errBoom = errors.New("boom")

// memoryUsers is an in-memory UserRepository.
type memoryUsers struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]user.User
	errOn map[string]error
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: map[uuid.UUID]user.User{}, errOn: map[string]error{}}
}

func (m *memoryUsers) fail(op string, err error) { m.errOn[op] = err }

func (m *memoryUsers) Create(_ context.Context, nu user.NewUser) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errOn["Create"]; err != nil {
		return nil, err
	}
	for _, u := range m.byID {
		if u.Email == nu.Email {
			return nil, user.ErrDuplicateEmail
		}
	}
	now := time.Now().UTC()
	u := user.User{
		ID:           uuid.New(),
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		Name:         nu.Name,
		LastName:     nu.LastName,
		Telephone:    nu.Telephone,
		DateOfBirth:  nu.DateOfBirth,
		Latitude:     nu.Latitude,
		Longitude:    nu.Longitude,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.byID[u.ID] = u
	return &u, nil
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errOn["GetByEmail"]; err != nil {
		return nil, err
	}
	for _, u := range m.byID {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, user.ErrNotFound
}

func (m *memoryUsers) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errOn["GetByID"]; err != nil {
		return nil, err
	}
	u, ok := m.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &u, nil
}

func (m *memoryUsers) update(op string, id uuid.UUID, fn func(*user.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errOn[op]; err != nil {
		return err
	}
	u, ok := m.byID[id]
	if !ok {
		return user.ErrNotFound
	}
	fn(&u)
	m.byID[id] = u
	return nil
}

func (m *memoryUsers) UpdateSession(_ context.Context, id uuid.UUID, s user.Session) error {
	return m.update("UpdateSession", id, func(u *user.User) { u.Session = s })
}

func (m *memoryUsers) UpdateReset(_ context.Context, id uuid.UUID, r user.Reset) error {
	return m.update("UpdateReset", id, func(u *user.User) { u.Reset = r })
}

func (m *memoryUsers) CompletePasswordReset(_ context.Context, id uuid.UUID, hash string) error {
	return m.update("CompletePasswordReset", id, func(u *user.User) {
		u.PasswordHash = hash
		u.Reset = user.Reset{}
	})
}

func (m *memoryUsers) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	return m.update("UpdatePassword", id, func(u *user.User) { u.PasswordHash = hash })
}

func (m *memoryUsers) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return user.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

// stored returns the current record for email.
func (m *memoryUsers) stored(t *testing.T, email string) user.User {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			return u
		}
	}
	t.Fatalf("no stored user %q", email)
	return user.User{}
}

// sentMail is one captured reset notification.
type sentMail struct {
	to       string
	otp      string
	token    string
	validFor time.Duration
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeMailer) SendPasswordResetEmail(ctx context.Context, to, otp, token string, validFor time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("mail sent without a deadline")
	}
	f.sent = append(f.sent, sentMail{to: to, otp: otp, token: token, validFor: validFor})
	return nil
}

func (f *fakeMailer) last(t *testing.T) sentMail {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent, "no mail sent")
	return f.sent[len(f.sent)-1]
}

type fakeTracker struct {
	mu      sync.Mutex
	counts  map[string]int
	windows map[string]time.Duration
	err     error
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{counts: map[string]int{}, windows: map[string]time.Duration{}}
}

func (f *fakeTracker) Failures(_ context.Context, key string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[key], nil
}

func (f *fakeTracker) RecordFailure(_ context.Context, key string, window time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.counts[key]++
	f.windows[key] = window
	return f.counts[key], nil
}

func (f *fakeTracker) Clear(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	delete(f.counts, key)
	return nil
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingRecorder) ObserveAuth(operation, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[operation+"/"+outcome]++
}

func (c *countingRecorder) get(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}

// harness bundles a Service with its fakes and a controllable clock.
type harness struct {
	svc      *Service
	users    *memoryUsers
	mailer   *fakeMailer
	tracker  *fakeTracker
	sessions *JWTService
	resets   *JWTService
	clock    time.Time
}

var testServiceConfig = ServiceConfig{
	SessionDuration: 10 * time.Minute,
	ResetExpiry:     10 * time.Minute,
	MailTimeout:     time.Second,
	MaxOTPAttempts:  3,
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	sessions, err := NewJWTService([]byte("session-secret"))
	require.NoError(t, err)
	resets, err := NewJWTService([]byte("reset-secret"))
	require.NoError(t, err)

	h := &harness{
		users:    newMemoryUsers(),
		mailer:   &fakeMailer{},
		tracker:  newFakeTracker(),
		sessions: sessions,
		resets:   resets,
		clock:    time.Now(),
	}
	now := func() time.Time { return h.clock }
	sessions.now = now
	resets.now = now

	h.svc = NewService(
		h.users,
		NewArgon2idHasherWithParams(fastArgon2),
		sessions,
		resets,
		h.mailer,
		h.tracker,
		logging.Discard(),
		testServiceConfig,
	)
	h.svc.now = now
	return h
}

// advance moves the shared clock forward.
func (h *harness) advance(d time.Duration) { h.clock = h.clock.Add(d) }

func (h *harness) signup(t *testing.T, email, password string) *user.User {
	t.Helper()
	u, err := h.svc.Signup(context.Background(), SignupInput{
		Name:        "Ada",
		LastName:    "Lovelace",
		Telephone:   "0123456789",
		DateOfBirth: time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC),
		Email:       email,
		Password:    password,
	})
	require.NoError(t, err)
	return u
}
