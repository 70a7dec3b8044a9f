package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/whitelist-registry/internal/auth"
	"github.com/sakif/whitelist-registry/internal/handler"
	"github.com/sakif/whitelist-registry/internal/model"
	sqliteRepo "github.com/sakif/whitelist-registry/internal/repository/sqlite"
	"github.com/sakif/whitelist-registry/internal/service"
)

const testGuildID = "1273697728014188664"

// env wires real services over an in-memory database and a fake Discord
// API, so handler tests exercise the same stack production does, minus
// the network.
type env struct {
	db      *sqliteRepo.DB
	tokens  *auth.TokenService
	reg     *handler.RegistrationHandler
	session func(http.HandlerFunc) http.Handler // OptionalSession wrapper
}

func newEnv(t *testing.T, guildAPI http.HandlerFunc) *env {
	t.Helper()

	if guildAPI == nil {
		guildAPI = func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `[]`)
		}
	}
	discordSrv := httptest.NewServer(guildAPI)
	t.Cleanup(discordSrv.Close)

	db, err := sqliteRepo.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	guilds := auth.NewGuildChecker(testGuildID)
	guilds.BaseURL = discordSrv.URL

	verificationSvc := service.NewVerificationService(guilds, "https://x.com/example", logger)
	registrationSvc := service.NewRegistrationService(db, db, logger)

	return &env{
		db:     db,
		tokens: tokens,
		reg:    handler.NewRegistrationHandler(registrationSvc, verificationSvc, logger),
		session: func(h http.HandlerFunc) http.Handler {
			return auth.OptionalSession(tokens)(h)
		},
	}
}

func (e *env) seedPassword(t *testing.T, secret string, maxUses *int) *model.CommunityPassword {
	t.Helper()
	p := &model.CommunityPassword{
		Secret:        secret,
		CommunityName: "Test Community",
		MaxUses:       maxUses,
		Active:        true,
	}
	require.NoError(t, e.db.CreatePassword(context.Background(), p))
	return p
}

// visitorCookie issues a real visitor session cookie for the given
// provider token.
func (e *env) visitorCookie(t *testing.T, providerToken string) *http.Cookie {
	t.Helper()
	tok, err := e.tokens.GenerateVisitor(auth.Session{
		Subject:         "228591282305827",
		ProviderToken:   providerToken,
		DiscordUsername: "member#0001",
	})
	require.NoError(t, err)
	return &http.Cookie{Name: auth.VisitorCookie, Value: tok}
}

func memberOfGuilds(ids ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sb strings.Builder
		sb.WriteString(`[`)
		for i, id := range ids {
			if i > 0 {
				sb.WriteString(`,`)
			}
			sb.WriteString(`{"id":"` + id + `","name":"server"}`)
		}
		sb.WriteString(`]`)
		io.WriteString(w, sb.String())
	}
}

func TestHandleVerifyPassword(t *testing.T) {
	e := newEnv(t, nil)
	e.seedPassword(t, "demo123", nil)

	t.Run("valid password", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/password/verify",
			bytes.NewBufferString(`{"secret":"demo123"}`))
		e.reg.HandleVerifyPassword(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var res service.PasswordCheck
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.True(t, res.Valid)
		assert.NotEmpty(t, res.PasswordID)
	})

	t.Run("wrong password is a 200 with valid=false", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/password/verify",
			bytes.NewBufferString(`{"secret":"wrong"}`))
		e.reg.HandleVerifyPassword(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var res service.PasswordCheck
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.False(t, res.Valid)
		assert.Equal(t, "invalid community password", res.Reason)
	})

	t.Run("malformed body", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/password/verify",
			bytes.NewBufferString(`{"secret":`))
		e.reg.HandleVerifyPassword(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestHandleVerifyX(t *testing.T) {
	e := newEnv(t, nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/verify/x", nil)
	e.reg.HandleVerifyX(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var res map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Equal(t, "verified", res["status"])
	assert.Equal(t, "https://x.com/example", res["profileUrl"])

	// The durable gate cookie must be set.
	var found bool
	for _, c := range rr.Result().Cookies() {
		if c.Name == handler.XFollowedCookie {
			found = true
			assert.Equal(t, "1", c.Value)
			assert.Greater(t, c.MaxAge, 0)
		}
	}
	assert.True(t, found, "x_followed cookie not set")
}

func TestHandleCheckDiscord(t *testing.T) {
	t.Run("anonymous visitor", func(t *testing.T) {
		e := newEnv(t, nil)

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/verify/discord", nil)
		e.session(e.reg.HandleCheckDiscord).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var res service.GateResult
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.Equal(t, service.GateUnverified, res.Status)
		assert.NotEmpty(t, res.Reason)
	})

	t.Run("guild member", func(t *testing.T) {
		e := newEnv(t, memberOfGuilds("999", testGuildID))

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/verify/discord", nil)
		req.AddCookie(e.visitorCookie(t, "live-token"))
		e.session(e.reg.HandleCheckDiscord).ServeHTTP(rr, req)

		var res service.GateResult
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.Equal(t, service.GateVerified, res.Status)
	})

	t.Run("not a member", func(t *testing.T) {
		e := newEnv(t, memberOfGuilds("999"))

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/verify/discord", nil)
		req.AddCookie(e.visitorCookie(t, "live-token"))
		e.session(e.reg.HandleCheckDiscord).ServeHTTP(rr, req)

		var res service.GateResult
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.Equal(t, service.GateUnverified, res.Status)
	})

	t.Run("expired provider token forces sign-out", func(t *testing.T) {
		e := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/verify/discord", nil)
		req.AddCookie(e.visitorCookie(t, "dead-token"))
		e.session(e.reg.HandleCheckDiscord).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var res service.GateResult
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.Equal(t, service.GateUnverified, res.Status)

		// The session cookie must be cleared in the same response.
		var cleared bool
		for _, c := range rr.Result().Cookies() {
			if c.Name == auth.VisitorCookie && c.MaxAge < 0 {
				cleared = true
			}
		}
		assert.True(t, cleared, "visitor session cookie not cleared")
	})
}

func submitRequest(body string, cookies ...*http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewBufferString(body))
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func TestHandleSubmit(t *testing.T) {
	xCookie := &http.Cookie{Name: handler.XFollowedCookie, Value: "1"}

	t.Run("all gates verified", func(t *testing.T) {
		e := newEnv(t, memberOfGuilds(testGuildID))
		e.seedPassword(t, "demo123", nil)

		rr := httptest.NewRecorder()
		req := submitRequest(`{"walletAddress":"0xabc123","secret":"demo123"}`,
			xCookie, e.visitorCookie(t, "live-token"))
		e.session(e.reg.HandleSubmit).ServeHTTP(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		var reg model.WhitelistRegistration
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&reg))
		assert.Equal(t, "0xabc123", reg.WalletAddress)
		assert.Equal(t, "member#0001", reg.DiscordUsername)
		assert.True(t, reg.DiscordVerified)
	})

	t.Run("x gate via body flag", func(t *testing.T) {
		e := newEnv(t, memberOfGuilds(testGuildID))
		e.seedPassword(t, "demo123", nil)

		rr := httptest.NewRecorder()
		req := submitRequest(`{"walletAddress":"0xabc123","secret":"demo123","xVerified":true}`,
			e.visitorCookie(t, "live-token"))
		e.session(e.reg.HandleSubmit).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
	})

	t.Run("x gate unverified", func(t *testing.T) {
		e := newEnv(t, memberOfGuilds(testGuildID))
		e.seedPassword(t, "demo123", nil)

		rr := httptest.NewRecorder()
		req := submitRequest(`{"walletAddress":"0xabc123","secret":"demo123"}`,
			e.visitorCookie(t, "live-token"))
		e.session(e.reg.HandleSubmit).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("anonymous visitor", func(t *testing.T) {
		e := newEnv(t, nil)
		e.seedPassword(t, "demo123", nil)

		rr := httptest.NewRecorder()
		req := submitRequest(`{"walletAddress":"0xabc123","secret":"demo123"}`, xCookie)
		e.session(e.reg.HandleSubmit).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("duplicate wallet", func(t *testing.T) {
		e := newEnv(t, memberOfGuilds(testGuildID))
		e.seedPassword(t, "demo123", nil)
		cookie := e.visitorCookie(t, "live-token")

		rr := httptest.NewRecorder()
		e.session(e.reg.HandleSubmit).ServeHTTP(rr,
			submitRequest(`{"walletAddress":"0xdupe","secret":"demo123"}`, xCookie, cookie))
		require.Equal(t, http.StatusCreated, rr.Code)

		rr = httptest.NewRecorder()
		e.session(e.reg.HandleSubmit).ServeHTTP(rr,
			submitRequest(`{"walletAddress":"0xdupe","secret":"demo123"}`, xCookie, cookie))
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("password at capacity", func(t *testing.T) {
		e := newEnv(t, memberOfGuilds(testGuildID))
		one := 1
		e.seedPassword(t, "oneshot", &one)
		cookie := e.visitorCookie(t, "live-token")

		rr := httptest.NewRecorder()
		e.session(e.reg.HandleSubmit).ServeHTTP(rr,
			submitRequest(`{"walletAddress":"0xfirst","secret":"oneshot"}`, xCookie, cookie))
		require.Equal(t, http.StatusCreated, rr.Code)

		rr = httptest.NewRecorder()
		e.session(e.reg.HandleSubmit).ServeHTTP(rr,
			submitRequest(`{"walletAddress":"0xsecond","secret":"oneshot"}`, xCookie, cookie))
		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}

func TestHandleConfirmDiscord(t *testing.T) {
	e := newEnv(t, memberOfGuilds(testGuildID))
	e.seedPassword(t, "demo123", nil)

	// Register first so there's a row to update.
	rr := httptest.NewRecorder()
	req := submitRequest(`{"walletAddress":"0xlate","secret":"demo123","xVerified":true}`,
		e.visitorCookie(t, "live-token"))
	e.session(e.reg.HandleSubmit).ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	var reg model.WhitelistRegistration
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&reg))

	// The route param needs a router.
	router := chi.NewRouter()
	router.Patch("/api/register/{id}/discord", e.reg.HandleConfirmDiscord)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch,
		"/api/register/"+reg.ID+"/discord", bytes.NewBufferString(`{"verified":false}`)))
	assert.Equal(t, http.StatusOK, rr.Code)

	stored, err := e.db.GetRegistrationByWallet(context.Background(), "0xlate")
	require.NoError(t, err)
	assert.False(t, stored.DiscordVerified)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch,
		"/api/register/no-such-id/discord", bytes.NewBufferString(`{"verified":true}`)))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
