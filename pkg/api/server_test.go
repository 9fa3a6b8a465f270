package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/railops/pkg/config"
	"github.com/travigo/railops/pkg/engine"
	"github.com/travigo/railops/pkg/network"
)

func newTestApp(t *testing.T, options ServerOptions) *fiber.App {
	definition, err := network.BundledDefinition("demo")
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Optimizer.MaxIterations = 50

	e, err := engine.New(definition, cfg, engine.Options{})
	require.NoError(t, err)
	t.Cleanup(e.Close)

	return NewServer(e, options)
}

func request(t *testing.T, app *fiber.App, method string, path string, body string) (int, map[string]interface{}) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	contents, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]interface{}
	if len(contents) > 0 && contents[0] == '{' {
		require.NoError(t, json.Unmarshal(contents, &decoded))
	}

	return resp.StatusCode, decoded
}

func requestList(t *testing.T, app *fiber.App, path string) []map[string]interface{} {
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))

	return decoded
}

func TestVersion(t *testing.T) {
	app := newTestApp(t, ServerOptions{})

	status, body := request(t, app, http.MethodGet, "/railops/version", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "v0.1", body["version"])
}

func TestSnapshotGroups(t *testing.T) {
	app := newTestApp(t, ServerOptions{})

	status, body := request(t, app, http.MethodGet, "/railops/snapshot", "")
	require.Equal(t, http.StatusOK, status)

	trains := body["Trains"].([]interface{})
	assert.Len(t, trains, 3)

	train := trains[0].(map[string]interface{})
	assert.Contains(t, train, "PrimaryIdentifier")
	assert.NotContains(t, train, "RouteIndex")
	assert.NotContains(t, train, "HoldUntilTick")

	_, body = request(t, app, http.MethodGet, "/railops/snapshot?detailed=true", "")
	train = body["Trains"].([]interface{})[0].(map[string]interface{})
	assert.Contains(t, train, "RouteIndex")
	assert.NotContains(t, train, "HoldUntilTick")
}

func TestTrains(t *testing.T) {
	app := newTestApp(t, ServerOptions{})

	status, body := request(t, app, http.MethodGet, "/railops/trains/TR-999", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Heavy Freight", body["PrimaryName"])

	status, body = request(t, app, http.MethodGet, "/railops/trains/TR-404", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body["error"], "unknown train")

	delayed := requestList(t, app, "/railops/trains?status=DELAYED")
	require.Len(t, delayed, 1)
	assert.Equal(t, "TR-205", delayed[0]["PrimaryIdentifier"])

	status, body = request(t, app, http.MethodPost, "/railops/trains/TR-999/delay", `{"Minutes": 12}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "DELAYED", body["Status"])
	assert.Equal(t, 12.0, body["DelayMinutes"])
}

func TestIncidents(t *testing.T) {
	app := newTestApp(t, ServerOptions{})

	status, body := request(t, app, http.MethodPost, "/railops/incidents", `{"Type":"TRACK_OBSTRUCTION","LocationRef":"TRK-AC","Severity":"HIGH","Description":"Landslip"}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "INC-002", body["PrimaryIdentifier"])
	assert.Equal(t, "OPEN", body["Status"])

	tracks := requestList(t, app, "/railops/tracks")
	for _, track := range tracks {
		assert.Equal(t, track["PrimaryIdentifier"] == "TRK-AC", track["Blocked"], track["PrimaryIdentifier"])
	}

	status, body = request(t, app, http.MethodPost, "/railops/incidents", `{"Type":"TRACK_OBSTRUCTION","LocationRef":"TRK-ZZ","Severity":"HIGH"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "unknown location")

	assert.Len(t, requestList(t, app, "/railops/incidents?open=true"), 2)

	status, body = request(t, app, http.MethodPost, "/railops/incidents/INC-002/resolve", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "RESOLVED", body["Status"])

	status, _ = request(t, app, http.MethodPost, "/railops/incidents/INC-002/resolve", "")
	assert.Equal(t, http.StatusNotFound, status)

	assert.Len(t, requestList(t, app, "/railops/incidents?open=true"), 1)
	assert.Len(t, requestList(t, app, "/railops/incidents"), 2)
}

func TestTicks(t *testing.T) {
	app := newTestApp(t, ServerOptions{})

	status, body := request(t, app, http.MethodPost, "/railops/ticks", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, body["Tick"])

	status, body = request(t, app, http.MethodPost, "/railops/ticks", `{"Tick": 1}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, body["Tick"])

	status, _ = request(t, app, http.MethodPost, "/railops/ticks", `{"Tick": 5}`)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = request(t, app, http.MethodPost, "/railops/ticks", `{"Duration": "soon"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = request(t, app, http.MethodPost, "/railops/ticks", `{"Tick": 2, "Duration": "PT30S"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(30*time.Second), body["Duration"])

	status, body = request(t, app, http.MethodGet, "/railops/ticks/latest", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2.0, body["Tick"])
}

func TestActionsAndIntents(t *testing.T) {
	app := newTestApp(t, ServerOptions{})

	status, _ := request(t, app, http.MethodPost, "/railops/actions", `{"Type":"HOLD","TrainRef":"TR-999","HoldTicks":2}`)
	assert.Equal(t, http.StatusAccepted, status)

	status, body := request(t, app, http.MethodPost, "/railops/actions", `{"Type":"HOLD","TrainRef":"TR-101","HoldTicks":2}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "invalid action")

	pending := requestList(t, app, "/railops/actions")
	require.Len(t, pending, 1)
	assert.Equal(t, "TR-999", pending[0]["TrainRef"])

	status, body = request(t, app, http.MethodPost, "/railops/intents", `{"Action":"DELAY_TRAIN","Parameters":{"TrainRef":"TR-101","DelayMinutes":5}}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "TR-101 now running 5 minutes late", body["Message"])

	status, _ = request(t, app, http.MethodPost, "/railops/intents", `{"Action":"SING_A_SONG"}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestOptimizations(t *testing.T) {
	app := newTestApp(t, ServerOptions{})

	status, _ := request(t, app, http.MethodPost, "/railops/incidents", `{"Type":"TRACK_OBSTRUCTION","LocationRef":"TRK-CE","Severity":"HIGH"}`)
	require.Equal(t, http.StatusCreated, status)

	status, body := request(t, app, http.MethodPost, "/railops/optimizations", `{"Objectives":{"DelayWeight":100,"EnergyWeight":10,"StabilityWeight":10}}`)
	require.Equal(t, http.StatusAccepted, status)
	runIdentifier := body["RunIdentifier"].(string)
	assert.True(t, strings.HasPrefix(runIdentifier, "OPT-"))

	assert.Eventually(t, func() bool {
		_, body := request(t, app, http.MethodGet, "/railops/optimizations/"+runIdentifier, "")
		return body["Status"] == "COMPLETE" || body["Status"] == "PARTIAL"
	}, 5*time.Second, 20*time.Millisecond)

	status, body = request(t, app, http.MethodPost, "/railops/optimizations/"+runIdentifier+"/apply", "")
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["Actions"])

	status, _ = request(t, app, http.MethodGet, "/railops/optimizations/OPT-missing", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestStats(t *testing.T) {
	app := newTestApp(t, ServerOptions{})

	status, body := request(t, app, http.MethodGet, "/railops/stats", "")
	require.Equal(t, http.StatusOK, status)

	dashboard := body["Dashboard"].(map[string]interface{})
	assert.Equal(t, 3.0, dashboard["ActiveTrains"])
	assert.Equal(t, 1.0, dashboard["OpenIncidents"])
	assert.Len(t, body["Trend"], 1)
}

func TestWritesNeedAuthorisation(t *testing.T) {
	app := newTestApp(t, ServerOptions{
		Authorise: func(c *fiber.Ctx) error {
			if c.Get("Authorization") != "Bearer letmein" {
				c.SendStatus(fiber.StatusUnauthorized)
				return c.JSON(fiber.Map{"error": "Invalid auth token"})
			}
			return c.Next()
		},
	})

	status, _ := request(t, app, http.MethodGet, "/railops/snapshot", "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = request(t, app, http.MethodPost, "/railops/ticks", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	req := httptest.NewRequest(http.MethodPost, "/railops/ticks", nil)
	req.Header.Set("Authorization", "Bearer letmein")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
