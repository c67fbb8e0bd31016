package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"example.com/signup/internal/auth"
	"example.com/signup/internal/domain"
	"example.com/signup/internal/persistence"
)

func newTestMux(t *testing.T, opts ...Option) *http.ServeMux {
	t.Helper()

	directory, err := domain.NewDirectory([]domain.Activity{
		{Name: "Chess Club", Description: "Learn strategies", Schedule: "Fridays", MaxParticipants: 12},
		{Name: "Gym Class", Description: "Physical education", Schedule: "Mondays", MaxParticipants: 30, Participants: []string{"john@mergington.edu"}},
	})
	require.NoError(t, err)

	service := domain.NewService(directory, domain.WithLogger(zaptest.NewLogger(t)))
	handler := NewHandler(service, append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)...)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	return mux
}

func do(t *testing.T, mux http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func membershipURL(activity, suffix, email string) string {
	u := "/activities/" + url.PathEscape(activity) + "/" + suffix
	if email != "" {
		u += "?email=" + url.QueryEscape(email)
	}
	return u
}

func decodeActivities(t *testing.T, rr *httptest.ResponseRecorder) ActivitiesResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp ActivitiesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestListActivities(t *testing.T) {
	mux := newTestMux(t)

	rr := do(t, mux, httptest.NewRequest(http.MethodGet, "/activities", nil))
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	resp := decodeActivities(t, rr)
	require.Len(t, resp, 2)
	chess := resp["Chess Club"]
	assert.Equal(t, "Learn strategies", chess.Description)
	assert.Equal(t, 12, chess.MaxParticipants)
	assert.Equal(t, 12, chess.SpotsLeft)
	assert.NotNil(t, chess.Participants)
	assert.Empty(t, chess.Participants)

	// An empty roster must still serialise as an array.
	var raw map[string]map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &raw))
	assert.JSONEq(t, `[]`, string(raw["Chess Club"]["participants"]))
	assert.Equal(t, []string{"john@mergington.edu"}, resp["Gym Class"].Participants)
}

func TestRootRedirectsToActivities(t *testing.T) {
	rr := do(t, newTestMux(t), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	require.Equal(t, "/activities", rr.Header().Get("Location"))
}

func TestHealthz(t *testing.T) {
	rr := do(t, newTestMux(t), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestSignupScenario(t *testing.T) {
	mux := newTestMux(t)

	rr := do(t, mux, httptest.NewRequest(http.MethodPost, membershipURL("Chess Club", "signup", "a@x.com"), nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var msg MessageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &msg))
	require.Equal(t, "Signed up a@x.com for Chess Club", msg.Message)

	resp := decodeActivities(t, do(t, mux, httptest.NewRequest(http.MethodGet, "/activities", nil)))
	require.Equal(t, []string{"a@x.com"}, resp["Chess Club"].Participants)

	rr = do(t, mux, httptest.NewRequest(http.MethodPost, membershipURL("Gym Class", "signup", "a@x.com"), nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "already_registered", decodeError(t, rr)["type"])

	rr = do(t, mux, httptest.NewRequest(http.MethodDelete, membershipURL("Chess Club", "participants", "a@x.com"), nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &msg))
	require.Equal(t, "Unregistered a@x.com from Chess Club", msg.Message)

	resp = decodeActivities(t, do(t, mux, httptest.NewRequest(http.MethodGet, "/activities", nil)))
	for name, activity := range resp {
		require.NotContains(t, activity.Participants, "a@x.com", name)
	}

	rr = do(t, mux, httptest.NewRequest(http.MethodDelete, membershipURL("Chess Club", "participants", "a@x.com"), nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "not_found", decodeError(t, rr)["type"])
}

func TestSignupUnknownActivity(t *testing.T) {
	rr := do(t, newTestMux(t), httptest.NewRequest(http.MethodPost, membershipURL("chess club", "signup", "a@x.com"), nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	body := decodeError(t, rr)
	require.Equal(t, "not_found", body["type"])
	require.Equal(t, "Activity not found", body["detail"])
}

func TestSignupSameActivityTwice(t *testing.T) {
	rr := do(t, newTestMux(t), httptest.NewRequest(http.MethodPost, membershipURL("Gym Class", "signup", "john@mergington.edu"), nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUnregisterUnknownActivityAndNonMemberShareStatus(t *testing.T) {
	mux := newTestMux(t)

	unknown := do(t, mux, httptest.NewRequest(http.MethodDelete, membershipURL("Knitting", "participants", "john@mergington.edu"), nil))
	nonMember := do(t, mux, httptest.NewRequest(http.MethodDelete, membershipURL("Chess Club", "participants", "john@mergington.edu"), nil))

	require.Equal(t, http.StatusNotFound, unknown.Code)
	require.Equal(t, http.StatusNotFound, nonMember.Code)
	require.Equal(t, decodeError(t, unknown)["type"], decodeError(t, nonMember)["type"])
}

func TestMissingEmailIsRejected(t *testing.T) {
	mux := newTestMux(t)
	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, membershipURL("Chess Club", "signup", ""), nil),
		httptest.NewRequest(http.MethodDelete, membershipURL("Chess Club", "participants", ""), nil),
	} {
		rr := do(t, mux, req)
		require.Equal(t, http.StatusBadRequest, rr.Code, req.URL.String())
		require.Equal(t, "validation_failed", decodeError(t, rr)["type"])
	}
}

func TestBlankEmailIsOpaque(t *testing.T) {
	mux := newTestMux(t)

	rr := do(t, mux, httptest.NewRequest(http.MethodPost, "/activities/Chess%20Club/signup?email=%20", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var msg MessageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &msg))
	require.Equal(t, "Signed up   for Chess Club", msg.Message)

	rr = do(t, mux, httptest.NewRequest(http.MethodDelete, "/activities/Chess%20Club/participants?email=%20", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestUnexpectedErrorsHideDetail(t *testing.T) {
	handler := NewHandler(nil, WithLogger(zaptest.NewLogger(t)))
	rr := httptest.NewRecorder()

	handler.writeDomainError(rr, errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	body := decodeError(t, rr)
	require.Equal(t, "server_error", body["type"])
	require.Equal(t, "internal error", body["detail"])
}

func TestWrongMethodIsRejected(t *testing.T) {
	rr := do(t, newTestMux(t), httptest.NewRequest(http.MethodGet, membershipURL("Chess Club", "signup", "a@x.com"), nil))
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestMutationsRequireScopeWhenAuthEnabled(t *testing.T) {
	mux := newTestMux(t, WithAuth(true))

	rr := do(t, mux, httptest.NewRequest(http.MethodPost, membershipURL("Chess Club", "signup", "a@x.com"), nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	withScopes := func(req *http.Request, scopes ...string) *http.Request {
		claims := &auth.Claims{Subject: "frontdesk", Scopes: map[string]struct{}{}, ExpiresAt: time.Now().Add(time.Hour)}
		for _, scope := range scopes {
			claims.Scopes[scope] = struct{}{}
		}
		return req.WithContext(auth.WithClaims(req.Context(), claims))
	}

	rr = do(t, mux, withScopes(httptest.NewRequest(http.MethodPost, membershipURL("Chess Club", "signup", "a@x.com"), nil), "roster:read"))
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "forbidden", decodeError(t, rr)["type"])

	rr = do(t, mux, withScopes(httptest.NewRequest(http.MethodPost, membershipURL("Chess Club", "signup", "a@x.com"), nil), auth.ScopeRosterWrite))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, mux, httptest.NewRequest(http.MethodGet, "/activities", nil))
	require.Equal(t, http.StatusOK, rr.Code, "reads stay public")
}

type stubHistory struct {
	entries    []persistence.AuditEntry
	next       *persistence.Cursor
	err        error
	lastCursor *persistence.Cursor
	lastLimit  int
}

func (s *stubHistory) ListByActivity(_ context.Context, _ string, cursor *persistence.Cursor, limit int) ([]persistence.AuditEntry, *persistence.Cursor, error) {
	s.lastCursor = cursor
	s.lastLimit = limit
	return s.entries, s.next, s.err
}

func TestHistoryRouteOnlyWhenConfigured(t *testing.T) {
	rr := do(t, newTestMux(t), httptest.NewRequest(http.MethodGet, "/activities/Chess%20Club/history", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHistoryReturnsPage(t *testing.T) {
	at := time.Date(2025, time.October, 27, 20, 0, 0, 0, time.UTC)
	history := &stubHistory{
		entries: []persistence.AuditEntry{
			{EventID: "evt-2", EventType: domain.EventParticipantUnregistered, Activity: "Chess Club", Email: "a@x.com", OccurredAt: at.Add(time.Minute)},
			{EventID: "evt-1", EventType: domain.EventParticipantSignedUp, Activity: "Chess Club", Email: "a@x.com", OccurredAt: at},
		},
		next: &persistence.Cursor{OccurredAt: at, EventID: "evt-1"},
	}
	mux := newTestMux(t, WithHistory(history))

	cursor := persistence.EncodeCursor(&persistence.Cursor{OccurredAt: at.Add(time.Hour), EventID: "evt-9"})
	rr := do(t, mux, httptest.NewRequest(http.MethodGet, "/activities/Chess%20Club/history?limit=500&cursor="+cursor, nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp HistoryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "Chess Club", resp.Activity)
	require.Len(t, resp.Items, 2)
	require.Equal(t, "evt-2", resp.Items[0].EventID)
	require.Equal(t, persistence.EncodeCursor(history.next), resp.NextCursor)

	require.Equal(t, maxHistoryLimit, history.lastLimit)
	require.NotNil(t, history.lastCursor)
	require.Equal(t, "evt-9", history.lastCursor.EventID)
}

func TestHistoryValidation(t *testing.T) {
	mux := newTestMux(t, WithHistory(&stubHistory{}))

	rr := do(t, mux, httptest.NewRequest(http.MethodGet, "/activities/Knitting/history", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, mux, httptest.NewRequest(http.MethodGet, "/activities/Chess%20Club/history?limit=zero", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, mux, httptest.NewRequest(http.MethodGet, "/activities/Chess%20Club/history?cursor=not-a-cursor!", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHistoryStoreFailure(t *testing.T) {
	mux := newTestMux(t, WithHistory(&stubHistory{err: errors.New("connection reset")}))

	rr := do(t, mux, httptest.NewRequest(http.MethodGet, "/activities/Chess%20Club/history", nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, "server_error", decodeError(t, rr)["type"])
}
