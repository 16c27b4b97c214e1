package httpapi

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-bot-builder/internal/auth"
	"github.com/tbourn/go-bot-builder/internal/config"
	"github.com/tbourn/go-bot-builder/internal/llm"
	"github.com/tbourn/go-bot-builder/internal/repo"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath:    "/api/v1",
		RateRPS:        100,
		RateBurst:      50,
		Auth:           config.AuthConfig{DevHeader: true},
		OpenAI:         config.OpenAIConfig{DefaultModel: "gpt-3.5-turbo"},
		Widget:         config.WidgetConfig{WebURL: "https://app.test", APIURL: "https://api.test", CDNBase: "https://cdn.test", FetchTimeout: time.Second},
		BotInfoOrigin:  "https://app.test",
		IdempotencyTTL: time.Hour,
		OTEL:           config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newRouter(t *testing.T, cfg config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	r := gin.New()
	RegisterRoutes(r, Deps{
		DB: db,
		Completer: llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
			return "model reply", nil
		}),
	}, cfg)
	return r
}

func serve(r http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_Health_Metrics_Fallbacks(t *testing.T) {
	r := newRouter(t, testConfig())

	w := serve(r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	if got := w.Header().Get("Cross-Origin-Resource-Policy"); got != "same-origin" {
		t.Fatalf("CORP=%q", got)
	}

	w = serve(r, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "botbuilder_http_requests_total") {
		t.Fatalf("GET /metrics bad: code=%d", w.Code)
	}

	w = serve(r, http.MethodGet, "/nope", "", nil)
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), `"code":"not_found"`) {
		t.Fatalf("GET /nope -> %d %s", w.Code, w.Body.String())
	}

	if w := serve(r, http.MethodPost, "/health", "", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_SwaggerOnlyWhenEnabled(t *testing.T) {
	r := newRouter(t, testConfig())
	if w := serve(r, http.MethodGet, "/swagger/index.html", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("swagger disabled -> %d", w.Code)
	}
}

func TestPublicRoutes_AnyOriginAndCrossOriginResources(t *testing.T) {
	r := newRouter(t, testConfig())

	w := serve(r, http.MethodGet, "/widget-config/"+uuid.NewString(), "", map[string]string{"Origin": "https://shop.example.com"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown widget -> %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("ACAO=%q", got)
	}
	if got := w.Header().Get("Cross-Origin-Resource-Policy"); got != "cross-origin" {
		t.Fatalf("CORP=%q", got)
	}

	pre := serve(r, http.MethodOptions, "/chat", "", map[string]string{
		"Origin":                         "https://shop.example.com",
		"Access-Control-Request-Method":  "POST",
		"Access-Control-Request-Headers": "Content-Type, Idempotency-Key",
	})
	if pre.Code != http.StatusNoContent || pre.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight -> %d ACAO=%q", pre.Code, pre.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestWidgetScript_GzipAndBakedURLs(t *testing.T) {
	r := newRouter(t, testConfig())
	w := serve(r, http.MethodGet, "/widget.js", "", map[string]string{"Accept-Encoding": "gzip"})
	if w.Code != http.StatusOK || w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("status=%d encoding=%q", w.Code, w.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatal(err)
	}
	js, _ := io.ReadAll(zr)
	if !bytes.Contains(js, []byte(`"https://api.test"`)) || !bytes.Contains(js, []byte(`"https://app.test"`)) {
		t.Fatalf("placeholders not replaced")
	}
}

func TestBotInfo_DashboardOriginOnly(t *testing.T) {
	r := newRouter(t, testConfig())
	bot := &struct{ ID string }{}
	w := serve(r, http.MethodPost, "/api/v1/bots", `{"name":"Support"}`, map[string]string{"X-User-ID": "u1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create bot -> %d %s", w.Code, w.Body.String())
	}
	_ = json.Unmarshal(w.Body.Bytes(), bot)

	w = serve(r, http.MethodGet, "/bot-info?botId="+bot.ID, "", map[string]string{"Origin": "https://app.test"})
	if w.Code != http.StatusOK || w.Header().Get("Access-Control-Allow-Origin") != "https://app.test" {
		t.Fatalf("dashboard origin -> %d ACAO=%q", w.Code, w.Header().Get("Access-Control-Allow-Origin"))
	}
	if w := serve(r, http.MethodGet, "/bot-info?botId="+bot.ID, "", map[string]string{"Origin": "https://evil.example.com"}); w.Code != http.StatusForbidden {
		t.Fatalf("foreign origin -> %d", w.Code)
	}
}

func TestDashboardAPI_Auth(t *testing.T) {
	r := newRouter(t, testConfig())
	if w := serve(r, http.MethodGet, "/api/v1/bots", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous -> %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/api/v1/bots", "", map[string]string{"X-User-ID": "u1"}); w.Code != http.StatusOK {
		t.Fatalf("dev header -> %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/api/v1/bots", "", map[string]string{"X-User-ID": "u1", "Origin": "https://evil.example.com"}); w.Code != http.StatusForbidden {
		t.Fatalf("cross-origin without allowlist -> %d", w.Code)
	}

	cfg := testConfig()
	cfg.Auth = config.AuthConfig{JWTSecret: "router-secret", DevHeader: true}
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"https://dash.example.com"}}
	r = newRouter(t, cfg)
	if w := serve(r, http.MethodGet, "/api/v1/bots", "", map[string]string{"X-User-ID": "u1"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("dev header with secret -> %d", w.Code)
	}
	tok, err := auth.Sign("router-secret", "u1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	w := serve(r, http.MethodGet, "/api/v1/bots", "", map[string]string{
		"Authorization": "Bearer " + tok,
		"Origin":        "https://dash.example.com",
	})
	if w.Code != http.StatusOK || w.Header().Get("Access-Control-Allow-Origin") != "https://dash.example.com" {
		t.Fatalf("bearer -> %d ACAO=%q", w.Code, w.Header().Get("Access-Control-Allow-Origin"))
	}

	pre := serve(r, http.MethodOptions, "/api/v1/bots", "", map[string]string{
		"Origin":                        "https://dash.example.com",
		"Access-Control-Request-Method": "POST",
	})
	if pre.Code != http.StatusNoContent {
		t.Fatalf("preflight -> %d", pre.Code)
	}
}

func TestChat_RateLimitedPerClient(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS = 0.001
	cfg.RateBurst = 1
	r := newRouter(t, cfg)

	body := `{"botId":"` + uuid.NewString() + `","messages":[{"role":"user","content":"hi"}]}`
	if w := serve(r, http.MethodPost, "/chat", body, nil); w.Code != http.StatusNotFound {
		t.Fatalf("first -> %d %s", w.Code, w.Body.String())
	}
	w := serve(r, http.MethodPost, "/chat", body, nil)
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") == "" {
		t.Fatalf("second -> %d retry-after=%q", w.Code, w.Header().Get("Retry-After"))
	}
}

func TestChat_MalformedIdempotencyKeyRejected(t *testing.T) {
	r := newRouter(t, testConfig())
	w := serve(r, http.MethodPost, "/chat", `{}`, map[string]string{"Idempotency-Key": "has spaces"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad key -> %d", w.Code)
	}
}

// End to end: author a bot and widget on the dashboard, then chat through it.
func TestEmbedFlow_EndToEnd(t *testing.T) {
	r := newRouter(t, testConfig())
	user := map[string]string{"X-User-ID": "owner"}

	var bot struct{ ID string }
	w := serve(r, http.MethodPost, "/api/v1/bots", `{"name":"Bikes"}`, user)
	_ = json.Unmarshal(w.Body.Bytes(), &bot)

	if w := serve(r, http.MethodPost, "/api/v1/bots/"+bot.ID+"/suggested-prompts", `{"question":"Hours?","fixed_response":"9 to 5"}`, user); w.Code != http.StatusCreated {
		t.Fatalf("suggested prompt -> %d %s", w.Code, w.Body.String())
	}

	var wid struct{ ID string }
	w = serve(r, http.MethodPost, "/api/v1/widgets", `{"bot_id":"`+bot.ID+`","title":"Help","message_limit":2}`, user)
	if w.Code != http.StatusCreated {
		t.Fatalf("widget -> %d %s", w.Code, w.Body.String())
	}
	_ = json.Unmarshal(w.Body.Bytes(), &wid)

	w = serve(r, http.MethodGet, "/widget-config/"+wid.ID, "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"bots":{"id":"`+bot.ID) {
		t.Fatalf("widget-config -> %d %s", w.Code, w.Body.String())
	}

	chat := func(conv string) *httptest.ResponseRecorder {
		return serve(r, http.MethodPost, "/chat",
			`{"botId":"`+bot.ID+`","widgetId":"`+wid.ID+`","conversationId":"`+conv+`","messages":[{"role":"user","content":"Hours?"}]}`, nil)
	}
	w = chat("")
	if w.Code != http.StatusOK {
		t.Fatalf("chat -> %d %s", w.Code, w.Body.String())
	}
	var turn struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		MessageID      string `json:"messageId"`
		ConversationID string `json:"conversationId"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &turn)
	if turn.Message.Content != "9 to 5" || turn.ConversationID == "" {
		t.Fatalf("turn=%+v", turn)
	}

	fb := serve(r, http.MethodPost, "/chat/messages/"+turn.MessageID+"/feedback", `{"conversationId":"`+turn.ConversationID+`","value":1}`, nil)
	if fb.Code != http.StatusNoContent {
		t.Fatalf("feedback -> %d %s", fb.Code, fb.Body.String())
	}

	if w := chat(turn.ConversationID); w.Code != http.StatusOK {
		t.Fatalf("second turn -> %d", w.Code)
	}
	if w := chat(turn.ConversationID); w.Code != http.StatusTooManyRequests {
		t.Fatalf("limit reached -> %d", w.Code)
	}

	w = serve(r, http.MethodGet, "/api/v1/bots/"+bot.ID+"/conversations/"+turn.ConversationID+"/messages", "", user)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"total":4`) {
		t.Fatalf("messages -> %d %s", w.Code, w.Body.String())
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	root1 := groupWithPrefix(r, "/")
	root1.GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	root2 := groupWithPrefix(r, "")
	root2.GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })

	api := groupWithPrefix(r, "/api")
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}
