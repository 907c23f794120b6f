package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kasuganosora/mathmon/server/api/rest"
	"github.com/kasuganosora/mathmon/server/cache"
	"github.com/kasuganosora/mathmon/server/config"
	"github.com/kasuganosora/mathmon/server/game/player"
	"github.com/kasuganosora/mathmon/server/game/run"
	"github.com/kasuganosora/mathmon/server/journal"
	"github.com/kasuganosora/mathmon/server/resource"
	"github.com/kasuganosora/mathmon/server/store"
	"github.com/kasuganosora/mathmon/server/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// adminIP is the RemoteAddr httptest gives every request.
const adminIP = "192.0.2.1"

type api struct {
	r       *gin.Engine
	db      *gorm.DB
	cache   cache.Cache
	runs    *run.Manager
	store   *store.Store
	journal *journal.Service
	res     *resource.ResourceLoader
}

func newAPI(t *testing.T, adminIPs ...string) *api {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	logger := testutil.Logger(t)
	res := resource.MustLoadDefault()

	j := journal.New(db, journal.Options{FlushEvery: time.Hour}, logger)
	t.Cleanup(func() { j.Stop(context.Background()) })
	st := store.New(c, store.Options{DB: db, Journal: j, Logger: logger})
	runs := run.NewManager(run.Options{
		Resources: res,
		Repos:     st.Repositories(),
		PubSub:    ps,
		Game:      config.GameConfig{SaveSnapshots: true},
		Logger:    logger,
	})
	t.Cleanup(runs.Close)

	r := gin.New()
	rest.Register(r, rest.Deps{
		DB:        db,
		Cache:     c,
		Security:  testutil.Security(),
		AdminIPs:  adminIPs,
		Runs:      runs,
		Store:     st,
		Resources: res,
		Sessions:  player.NewSessionManager(logger),
		Journal:   j,
		Logger:    logger,
	})
	return &api{r: r, db: db, cache: c, runs: runs, store: st, journal: j, res: res}
}

func (a *api) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)
	return w
}

func (a *api) post(path, token string, body any) *httptest.ResponseRecorder {
	return a.do(http.MethodPost, path, token, body)
}

func (a *api) get(path, token string) *httptest.ResponseRecorder {
	return a.do(http.MethodGet, path, token, nil)
}

// guest logs in as a fresh guest and returns its token and player id.
func (a *api) guest(t *testing.T) (string, string) {
	t.Helper()
	w := a.post("/api/auth/guest", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Token    string `json:"token"`
		PlayerID string `json:"player_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token, resp.PlayerID
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
