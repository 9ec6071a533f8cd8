package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasicdigital/debateforge/internal/analyzer"
	"github.com/vasicdigital/debateforge/internal/api"
	"github.com/vasicdigital/debateforge/internal/debate"
	"github.com/vasicdigital/debateforge/internal/llmclient"
	"github.com/vasicdigital/debateforge/internal/modelpool"
	"github.com/vasicdigital/debateforge/internal/observer"
	"github.com/vasicdigital/debateforge/internal/orchestrator"
	"github.com/vasicdigital/debateforge/internal/resilience"
	"github.com/vasicdigital/debateforge/internal/roundmanager"
)

func newTestRouter(t *testing.T, mock *llmclient.MockClient) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pool := modelpool.NewPool()
	pool.Register(modelpool.ModelInfo{ID: "model-a"})
	pool.Register(modelpool.ModelInfo{ID: "model-b"})
	pool.Register(modelpool.ModelInfo{ID: "model-judge"})

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	deps := orchestrator.Deps{
		Pool:       pool,
		Rotation:   modelpool.NewEngine(pool, time.Second),
		Resilience: resilience.NewManager(mock, resilience.DefaultBreakerConfig(), resilience.RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond, CapDelay: time.Millisecond}),
		Analyzer:   analyzer.New(debate.DefaultStrengthWeights()),
		Rounds:     roundmanager.New(roundmanager.DefaultWeights(), 1, 2),
		Observers:  observer.NewDispatcher(),
		Logger:     logger,
	}
	orc := orchestrator.New(deps)

	cfg := debate.DefaultConfig()
	cfg.MinRounds = 1
	cfg.MaxRounds = 2
	cfg.SessionBudget = 5 * time.Second
	cfg.TurnDeadline = time.Second
	cfg.MinCallsBeforeRotation = 1000

	svc := api.New(orc, nil, cfg, logger)
	handler := NewHandler(svc, logger)

	router := gin.New()
	handler.Register(router)
	return router
}

func TestCreateSessionEndpointReturns201(t *testing.T) {
	mock := llmclient.NewMockClient(&llmclient.Completion{Text: "x", FinishReason: "stop"})
	router := newTestRouter(t, mock)

	body, _ := json.Marshal(map[string]interface{}{
		"topic":      "Should Go have generics?",
		"role_count": 2,
		"model_assignment": map[string]string{
			"debater_A": "model-a",
			"debater_B": "model-b",
			"judge":     "model-judge",
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp createSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
}

func TestCreateSessionEndpointRejectsMissingTopic(t *testing.T) {
	mock := llmclient.NewMockClient(&llmclient.Completion{Text: "x", FinishReason: "stop"})
	router := newTestRouter(t, mock)

	body, _ := json.Marshal(map[string]interface{}{
		"role_count":       2,
		"model_assignment": map[string]string{"debater_A": "model-a"},
	})
	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSessionEndpointReturns404ForUnknownID(t *testing.T) {
	mock := llmclient.NewMockClient(&llmclient.Completion{Text: "x", FinishReason: "stop"})
	router := newTestRouter(t, mock)

	req := httptest.NewRequest(http.MethodGet, "/sessions/does-not-exist", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFullSessionLifecycleOverHTTP(t *testing.T) {
	mock := llmclient.NewMockClient(&llmclient.Completion{
		Text:         "First, this is a well-formed argument. Therefore, because the evidence shows a 42 percent improvement, the point stands.",
		InputTokens:  10,
		OutputTokens: 20,
		FinishReason: "stop",
	})
	router := newTestRouter(t, mock)

	body, _ := json.Marshal(map[string]interface{}{
		"topic":      "Should Go have generics?",
		"role_count": 2,
		"model_assignment": map[string]string{
			"debater_A": "model-a",
			"debater_B": "model-b",
			"judge":     "model-judge",
		},
	})
	createReq := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader(body))
	createReq.Header.Set("Content-Type", "application/json")
	createRec := httptest.NewRecorder()
	router.ServeHTTP(createRec, createReq)
	require.Equal(t, http.StatusCreated, createRec.Code)

	var created createSessionResponse
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))

	startReq := httptest.NewRequest(http.MethodPost, "/sessions/"+created.SessionID+"/start", nil)
	startRec := httptest.NewRecorder()
	router.ServeHTTP(startRec, startReq)
	require.Equal(t, http.StatusAccepted, startRec.Code)

	require.Eventually(t, func() bool {
		getReq := httptest.NewRequest(http.MethodGet, "/sessions/"+created.SessionID, nil)
		getRec := httptest.NewRecorder()
		router.ServeHTTP(getRec, getReq)
		var snap debate.Session
		_ = json.Unmarshal(getRec.Body.Bytes(), &snap)
		return snap.Status.Terminal()
	}, 3*time.Second, 10*time.Millisecond)

	transcriptReq := httptest.NewRequest(http.MethodGet, "/sessions/"+created.SessionID+"/transcript", nil)
	transcriptRec := httptest.NewRecorder()
	router.ServeHTTP(transcriptRec, transcriptReq)
	assert.Equal(t, http.StatusOK, transcriptRec.Code)

	analyticsReq := httptest.NewRequest(http.MethodGet, "/sessions/"+created.SessionID+"/analytics/full", nil)
	analyticsRec := httptest.NewRecorder()
	router.ServeHTTP(analyticsRec, analyticsReq)
	assert.Equal(t, http.StatusOK, analyticsRec.Code)
}
