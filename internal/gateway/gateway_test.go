package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/collab-messenger/relay/internal/auth"
	"github.com/collab-messenger/relay/internal/events"
)

const (
	testSecret   = "gateway-test-secret"
	testIssuer   = "relay-idp"
	testAudience = "relay"
)

func signTestToken(t *testing.T, userID string) string {
	t.Helper()
	claims := auth.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    testIssuer,
			Audience:  jwt.ClaimStrings{testAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func newTestServer(t *testing.T, hub *events.Hub) *httptest.Server {
	t.Helper()
	verifier := auth.NewVerifier(testSecret, testIssuer, testAudience)
	h := NewHandler(verifier, hub, nil, nil, nil, nil, nil, zap.NewNop())

	gin.SetMode(gin.TestMode)
	router := gin.New()
	h.RegisterRoutes(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestServeRejectsMissingToken(t *testing.T) {
	srv := newTestServer(t, events.NewHub(zap.NewNop()))

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServeRejectsBadToken(t *testing.T) {
	srv := newTestServer(t, events.NewHub(zap.NewNop()))

	resp, err := http.Get(srv.URL + "/ws?token=not-a-token")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServeClosesConnectionDuringShutdown(t *testing.T) {
	hub := events.NewHub(zap.NewNop())
	require.NoError(t, hub.Shutdown(context.Background()))
	srv := newTestServer(t, hub)

	token := signTestToken(t, uuid.New().String())
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// The server refuses the session and sends a going-away close instead
	// of crashing on the nil registration.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway),
		"expected a going-away close, got %v", err)
}
