package embed

import (
	_ "embed"
	"strconv"
	"strings"
	"time"
)

//go:embed assets/widget.js
var widgetJS string

// ScriptOptions are baked into the served widget.js.
type ScriptOptions struct {
	WebURL       string        // default iframe origin when init omits webUrl
	APIURL       string        // origin serving /widget-config
	FetchTimeout time.Duration // bound on the config fetch
}

// Script renders widget.js with opts substituted for its placeholders.
func Script(opts ScriptOptions) string {
	web := strings.TrimRight(opts.WebURL, "/")
	if web == "" {
		web = DefaultWebURL
	}
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	r := strings.NewReplacer(
		"__BOTBUILDER_WEB_URL__", jsString(web),
		"__BOTBUILDER_API_URL__", jsString(strings.TrimRight(opts.APIURL, "/")),
		"__BOTBUILDER_FETCH_TIMEOUT_MS__", strconv.FormatInt(timeout.Milliseconds(), 10),
	)
	return r.Replace(widgetJS)
}

// jsString escapes s for use inside a double-quoted JS literal.
func jsString(s string) string {
	q := strconv.Quote(s)
	q = q[1 : len(q)-1]
	return strings.NewReplacer("<", `\u003c`, ">", `\u003e`).Replace(q)
}
