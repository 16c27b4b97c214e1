package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-bot-builder/internal/embed"
)

var (
	probeAPIURL  string
	probeWebURL  string
	probeTimeout time.Duration
	probeOpen    bool
	probeWait    bool
)

var widgetCmd = &cobra.Command{
	Use:   "widget",
	Short: "Widget embed tooling",
}

var widgetProbeCmd = &cobra.Command{
	Use:   "probe WIDGET_ID",
	Short: "Load a widget the way widget.js does and report what a visitor sees",
	Long: `probe runs the embed lifecycle headlessly against a running server:
it fetches /widget-config/WIDGET_ID once, mounts the bubble/popup/iframe
into an in-memory page and prints the resulting view as JSON.

Exits non-zero when the widget ends in the FAILED state.

Examples:
  botbuilder widget probe 6f1c...            # closed view
  botbuilder widget probe 6f1c... --open     # after clicking the bubble
  botbuilder widget probe 6f1c... --wait     # after the popup delay`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		apiURL := probeAPIURL
		if apiURL == "" {
			apiURL = cfg.Widget.APIURL
		}
		webURL := probeWebURL
		if webURL == "" {
			webURL = cfg.Widget.WebURL
		}

		console := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Str("console", "widget").Logger()
		fetcher := &embed.HTTPFetcher{BaseURL: apiURL, Client: &http.Client{Timeout: probeTimeout}}
		l := embed.NewLoader(embed.NewMemoryHost(false), fetcher, console)
		l.FetchTimeout = probeTimeout
		l.Init(cmd.Context(), embed.Options{WidgetID: args[0], WebURL: webURL})

		if probeWait {
			if c := l.Config(); c != nil && c.PopupText != "" && c.PopupDelay > 0 {
				select {
				case <-time.After(time.Duration(c.PopupDelay)*time.Millisecond + 50*time.Millisecond):
				case <-cmd.Context().Done():
				}
			}
		}
		if probeOpen {
			l.Open()
		}

		out := struct {
			embed.View
			State string `json:"state"`
		}{View: l.View(), State: l.State().String()}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
		if l.State() == embed.StateFailed {
			return errors.New("widget failed to load")
		}
		return nil
	},
}

func init() {
	widgetProbeCmd.Flags().StringVar(&probeAPIURL, "api-url", "", "API origin serving /widget-config (default WIDGET_API_URL)")
	widgetProbeCmd.Flags().StringVar(&probeWebURL, "web-url", "", "origin hosting the chat iframe (default WIDGET_WEB_URL)")
	widgetProbeCmd.Flags().DurationVar(&probeTimeout, "timeout", embed.DefaultTimeout, "config fetch timeout")
	widgetProbeCmd.Flags().BoolVar(&probeOpen, "open", false, "click the bubble before reporting")
	widgetProbeCmd.Flags().BoolVar(&probeWait, "wait", false, "wait for a delayed popup before reporting")
	widgetCmd.AddCommand(widgetProbeCmd)
}
