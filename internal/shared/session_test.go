package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *SessionManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "test_session", "secret", time.Hour, false)
}

func TestLoadCreatesSessionWithoutCookie(t *testing.T) {
	sm := newTestManager(t)
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	sess, err := sm.Load(context.Background(), r)
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)
	require.Zero(t, sess.User())
}

func TestCommitPersistsValuesAcrossRequests(t *testing.T) {
	sm := newTestManager(t)
	ctx := context.Background()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, r)
	require.NoError(t, err)
	sess.Set("last_order_id", "42")
	sess.SetUser(7)

	w := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, w, r, sess))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, sess.ID, cookies[0].Value)

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.AddCookie(cookies[0])
	again, err := sm.Load(ctx, r2)
	require.NoError(t, err)
	require.Equal(t, "42", again.Get("last_order_id"))
	require.Equal(t, int64(7), again.User())
}

func TestDestroyDeletesSessionAndExpiresCookie(t *testing.T) {
	sm := newTestManager(t)
	ctx := context.Background()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, r)
	require.NoError(t, err)
	sess.Set("k", "v")
	w := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, w, r, sess))

	sm.Destroy(sess)
	w2 := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, w2, r, sess))
	cookies := w2.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, -1, cookies[0].MaxAge)

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.AddCookie(&http.Cookie{Name: "test_session", Value: sess.ID})
	fresh, err := sm.Load(ctx, r2)
	require.NoError(t, err)
	require.Empty(t, fresh.Get("k"))
}

func TestCartKeySwitchesOnLogin(t *testing.T) {
	sess := &Session{ID: "abc"}
	require.Equal(t, "cart:s:abc", sess.CartKey())

	sess.SetUser(7)
	require.Equal(t, "cart:u:7", sess.CartKey())
}

func TestFlashesDrainInOrder(t *testing.T) {
	sess := &Session{}
	require.Nil(t, sess.PopFlash())

	sess.AddFlash("success", "first")
	sess.AddFlash("error", "second")

	msg := sess.PopFlash()
	require.NotNil(t, msg)
	require.Equal(t, "first", msg.Message)

	rest := sess.PopFlashes()
	require.Len(t, rest, 1)
	require.Equal(t, "second", rest[0].Message)
	require.Nil(t, sess.PopFlash())
}

func TestCSRFTokenRoundTrip(t *testing.T) {
	m := NewCSRFManager("secret")
	sess := &Session{ID: "abc"}
	ctx := context.Background()

	token, err := m.EnsureToken(ctx, sess)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// Stable for the session lifetime.
	again, err := m.EnsureToken(ctx, sess)
	require.NoError(t, err)
	require.Equal(t, token, again)

	require.NoError(t, m.VerifyToken(ctx, sess, token))
	require.ErrorIs(t, m.VerifyToken(ctx, sess, "forged"), ErrCSRFTokenMismatch)
	require.ErrorIs(t, m.VerifyToken(ctx, sess, ""), ErrCSRFTokenMissing)
}
