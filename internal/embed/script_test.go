package embed

import (
	"strings"
	"testing"
	"time"
)

func TestScript_ReplacesPlaceholders(t *testing.T) {
	js := Script(ScriptOptions{
		WebURL:       "https://chat.example.com/",
		APIURL:       "https://api.example.com",
		FetchTimeout: 5 * time.Second,
	})
	if strings.Contains(js, "__BOTBUILDER_") {
		t.Fatal("unreplaced placeholder")
	}
	for _, want := range []string{
		`var DEFAULT_WEB_URL = "https://chat.example.com";`,
		`var API_BASE = "https://api.example.com";`,
		`var FETCH_TIMEOUT_MS = 5000;`,
		`BotBuilderWidget`,
	} {
		if !strings.Contains(js, want) {
			t.Fatalf("script missing %q", want)
		}
	}
}

func TestScript_Defaults(t *testing.T) {
	js := Script(ScriptOptions{})
	if !strings.Contains(js, `"`+DefaultWebURL+`"`) {
		t.Fatal("default web url missing")
	}
	if !strings.Contains(js, "FETCH_TIMEOUT_MS = 10000;") {
		t.Fatal("default timeout missing")
	}
}

func TestJSString_EscapesMarkup(t *testing.T) {
	got := jsString(`"</script><x>`)
	if strings.ContainsAny(got, "<>") || !strings.HasPrefix(got, `\"`) {
		t.Fatalf("jsString=%q", got)
	}
}

func TestScript_TimeoutCoversBodyAndIconIsEscaped(t *testing.T) {
	js := Script(ScriptOptions{})
	body := strings.Index(js, "res.json()")
	clear := strings.Index(js, "clearTimeout(timer)")
	if body < 0 || clear < 0 || clear < body {
		t.Fatalf("timer must be cleared after the body is read (json at %d, clear at %d)", body, clear)
	}
	if strings.Contains(js, "url('\" + cfg.button_icon_url") {
		t.Fatal("icon url concatenated into cssText")
	}
	if !strings.Contains(js, "bubble.style.backgroundImage = cssURL(cfg.button_icon_url)") {
		t.Fatal("icon url not set through cssURL")
	}
}
