package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"assettrack/api/internal/auth"
	"assettrack/api/internal/authpw"
	"assettrack/api/internal/authz"
	"assettrack/api/internal/config"
	"assettrack/api/internal/email"
	"assettrack/api/internal/feed"
	"assettrack/api/internal/migration"
	"assettrack/api/internal/patrimony"
	"assettrack/api/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Session is the authenticated principal attached to a request.
type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	Admin        bool
	JTI          string
	ExpiresAt    time.Time
}

// dataStore is the slice of the record repository the service depends on.
type dataStore interface {
	ListPatrimonies(context.Context) ([]patrimony.Patrimony, error)
	InsertPatrimony(context.Context, patrimony.Fields, string) (patrimony.Patrimony, error)
	UpdatePatrimony(context.Context, string, patrimony.Fields, string, bool) (patrimony.Patrimony, error)
	DeletePatrimony(context.Context, string, string, bool) error
	DeletePatrimonies(context.Context, []string, string, bool) (int, error)
	PatrimonyOwners(context.Context, []string) (map[string]string, error)
	GetUserByID(context.Context, string) (store.User, error)
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
	Ping(ctx context.Context) error
}

// refreshStore persists refresh sessions. Redis serves it when configured,
// otherwise the Postgres store does through postgresSessions.
type refreshStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

// postgresSessions adapts the Postgres store to refreshStore; only the user
// id is persisted there, the rest is rehydrated on lookup.
type postgresSessions struct {
	store *store.PostgresStore
}

func (p postgresSessions) SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error {
	return p.store.SaveRefreshSession(ctx, tokenHash, user.ID, expiresAt)
}

func (p postgresSessions) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	return p.store.LookupRefreshSession(ctx, tokenHash)
}

func (p postgresSessions) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	return p.store.RevokeRefreshSession(ctx, tokenHash)
}

type roleChecker interface {
	IsAdmin(ctx context.Context, userID string) bool
}

// legacyMigrator runs the one-time import of pre-cloud records.
type legacyMigrator interface {
	RunOnce(ctx context.Context, userID string) (migration.Result, error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions refreshStore
	roles    roleChecker
	authPw   *authpw.Service
	mail     *email.Service
	hub      *feed.Hub
	migrator legacyMigrator
	log      zerolog.Logger
}

func New(cfg config.Config, dataStore dataStore, sessions refreshStore, roles roleChecker, authPw *authpw.Service, mail *email.Service, hub *feed.Hub, log zerolog.Logger) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		roles:    roles,
		authPw:   authPw,
		mail:     mail,
		hub:      hub,
		log:      log,
	}
}

// NewWithPostgres wires the common production shape where the Postgres store
// backs both the records and the refresh sessions.
func NewWithPostgres(cfg config.Config, pg *store.PostgresStore, roles roleChecker, authPw *authpw.Service, mail *email.Service, hub *feed.Hub, log zerolog.Logger) *Service {
	return New(cfg, pg, postgresSessions{store: pg}, roles, authPw, mail, hub, log)
}

// UseSessionStore swaps the refresh session backend, used when Redis is
// configured.
func (s *Service) UseSessionStore(sessions refreshStore) {
	s.sessions = sessions
}

// UseLegacyMigrator enables the one-time legacy import endpoint.
func (s *Service) UseLegacyMigrator(migrator legacyMigrator) {
	s.migrator = migrator
}

// MigrateLegacy imports the pre-cloud local records for the session user.
// Safe to call on every session start: once the marker is set it reports
// Skipped without touching the store.
func (s *Service) MigrateLegacy(ctx context.Context, session Session) (migration.Result, error) {
	if s.migrator == nil {
		return migration.Result{Skipped: true}, nil
	}
	return s.migrator.RunOnce(ctx, session.UserID)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) SMTPConfigured() bool {
	return s.mail != nil && s.mail.IsConfigured()
}

// --- Sessions ---

func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (Session, error) {
	user, err := s.authPw.SignUp(ctx, req)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, req authpw.SignInRequest) (Session, error) {
	user, err := s.authPw.SignIn(ctx, req)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := uuid.NewString()
	admin := s.roles.IsAdmin(ctx, user.ID)

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), user.ID, user.DisplayName, admin, jti, expiresAt)
	if err != nil {
		return Session{}, err
	}

	refresh, err := newRefreshToken()
	if err != nil {
		return Session{}, err
	}
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Email:        user.Email,
		Admin:        admin,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.ID)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Email:     user.Email,
		Admin:     claims.Admin,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Refresh rotates the refresh token: the presented one is revoked and a
// fresh session is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) RequestPasswordReset(ctx context.Context, appBaseURL, emailAddr string) error {
	token, err := s.authPw.RequestPasswordReset(ctx, emailAddr)
	if err != nil {
		return err
	}
	// Unknown emails yield an empty token; respond identically either way.
	if token == "" {
		return nil
	}

	resetURL := strings.TrimRight(appBaseURL, "/") + "/reset-password?token=" + token
	if s.SMTPConfigured() {
		user, err := s.authPw.UserByEmail(ctx, emailAddr)
		name := emailAddr
		if err == nil {
			name = user.DisplayName
		}
		if err := s.mail.SendPasswordResetEmail(emailAddr, name, resetURL); err != nil {
			s.log.Error().Err(err).Msg("send password reset email")
		}
		return nil
	}
	s.log.Info().Str("url", resetURL).Msg("password reset requested, SMTP not configured")
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, req authpw.ResetPasswordRequest) error {
	return s.authPw.ResetPassword(ctx, req)
}

// --- Records ---

func (s *Service) ListPatrimonies(ctx context.Context) ([]patrimony.Patrimony, error) {
	return s.store.ListPatrimonies(ctx)
}

// CreatePatrimony validates, rejects numbers already present in the current
// list and inserts the record owned by the session user. The number check
// is best effort over the live list; there is no unique constraint.
func (s *Service) CreatePatrimony(ctx context.Context, session Session, fields patrimony.Fields) (patrimony.Patrimony, error) {
	if err := fields.Validate(); err != nil {
		return patrimony.Patrimony{}, err
	}

	existing, err := s.store.ListPatrimonies(ctx)
	if err != nil {
		return patrimony.Patrimony{}, err
	}
	for _, it := range existing {
		// Exact match: numbers are operator-assigned tags, so "A1" and
		// "a1" are distinct.
		if it.Number == fields.Number {
			return patrimony.Patrimony{}, duplicateNumber(fields.Number)
		}
	}

	created, err := s.store.InsertPatrimony(ctx, fields, session.UserID)
	if err != nil {
		return patrimony.Patrimony{}, err
	}
	s.publish(feed.ActionInsert, created.ID)
	return created, nil
}

// UpdatePatrimony allows admins to edit anything and owners to edit their
// own records. The gate runs before the store call; the row predicate in
// the store is still the final authority.
func (s *Service) UpdatePatrimony(ctx context.Context, session Session, id string, fields patrimony.Fields) (patrimony.Patrimony, error) {
	if err := fields.Validate(); err != nil {
		return patrimony.Patrimony{}, err
	}
	if err := s.gate(ctx, session, []string{id}); err != nil {
		return patrimony.Patrimony{}, err
	}

	updated, err := s.store.UpdatePatrimony(ctx, id, fields, session.UserID, session.Admin)
	if err != nil {
		return patrimony.Patrimony{}, err
	}
	s.publish(feed.ActionUpdate, updated.ID)
	return updated, nil
}

func (s *Service) DeletePatrimony(ctx context.Context, session Session, id string) error {
	if err := s.gate(ctx, session, []string{id}); err != nil {
		return err
	}
	if err := s.store.DeletePatrimony(ctx, id, session.UserID, session.Admin); err != nil {
		return err
	}
	s.publish(feed.ActionDelete, id)
	return nil
}

// DeletePatrimonies removes a batch. The whole batch is gated up front so a
// single foreign record rejects the request instead of partially deleting.
func (s *Service) DeletePatrimonies(ctx context.Context, session Session, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.gate(ctx, session, ids); err != nil {
		return 0, err
	}
	deleted, err := s.store.DeletePatrimonies(ctx, ids, session.UserID, session.Admin)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		s.publish(feed.ActionDelete, id)
	}
	return deleted, nil
}

// gate rejects the mutation early when the session may not touch every
// record in ids.
func (s *Service) gate(ctx context.Context, session Session, ids []string) error {
	if session.Admin {
		return nil
	}
	owners, err := s.store.PatrimonyOwners(ctx, ids)
	if err != nil {
		return err
	}
	ownerIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		owner, ok := owners[id]
		if !ok {
			return notFound()
		}
		ownerIDs = append(ownerIDs, owner)
	}
	if !authz.CanMutateAll(session.UserID, ownerIDs, session.Admin) {
		return permissionDenied()
	}
	return nil
}

func (s *Service) publish(action feed.Action, recordID string) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(feed.Event{Action: action, RecordID: recordID, At: time.Now()})
}

func newRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Tips returns the guidance catalog entries for a reported problem.
func (s *Service) Tips(problem string) []string {
	return patrimony.Tips(patrimony.Problem(problem))
}
