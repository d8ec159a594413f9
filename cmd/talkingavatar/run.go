package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spf13/cobra"

	"github.com/hgittham/talkingavatar/internal/bus"
	"github.com/hgittham/talkingavatar/internal/engine"
	"github.com/hgittham/talkingavatar/internal/render"
	"github.com/hgittham/talkingavatar/internal/speech"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open the avatar window and accept commands on stdin",
	Long: `run renders the avatar and reads one command per line from stdin:

  say <text>     speak text (streamed when configured, heuristic otherwise)
  mouth <text>   drive the mouth from the heuristic timeline only
  wave | nod     trigger a gesture
  expr <name>    set expression: happy, surprised, thinking, neutral
  listen on|off  toggle the listening pulse
  stop           halt all mouth motion
  quit           exit`,
	RunE: runAvatar,
}

func runAvatar(cmd *cobra.Command, args []string) error {
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("init glfw: %w", err)
	}
	defer glfw.Terminate()

	rend, err := render.New(render.Config{
		Width:  cfg.Window.Width,
		Height: cfg.Window.Height,
		Title:  cfg.Window.Title,
		VSync:  cfg.Window.VSync,
		MSAA:   cfg.Window.MSAA,
	})
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}

	opts := engine.Options{
		Renderer:   rend,
		Logger:     log.Zerolog(),
		VoiceID:    cfg.Speech.VoiceID,
		RateAdjust: cfg.Speech.RateAdjust,
		Muted:      cfg.Speech.Muted,
		WatchModel: cfg.Model.HotReload,
	}
	if cfg.Speech.TokenEndpoint != "" {
		opts.Streamer = speech.NewCloudStreamer(cfg.Speech.EndpointTemplate, log.Zerolog())
		opts.Provider = speech.NewHTTPCredentialProvider(cfg.Speech.TokenEndpoint, cfg.Speech.APIKey)
	} else {
		log.Component("main").Info().Msg("no token endpoint configured, speech uses the heuristic timeline")
	}

	eng := engine.New(opts)
	defer eng.Close()

	if err := eng.LoadModel(cfg.Model.Path); err != nil {
		log.Component("main").Warn().Err(err).Msg("starting without a model; gestures and speech still run")
	}
	eng.SetExpression(cfg.Avatar.Expression)
	eng.OnSpeechText(func(text string) {
		log.Component("main").Info().Str("text", text).Msg("speaking")
	})
	eng.Events().Subscribe(bus.EventTypeSpeechFallback, func(ev bus.Event) {
		log.Component("main").Warn().Interface("detail", ev.Data).Msg("cloud speech unavailable, lip sync is heuristic")
	})
	eng.Events().Subscribe(bus.EventTypeModelReloaded, func(ev bus.Event) {
		log.Component("main").Info().Interface("detail", ev.Data).Msg("model hot reloaded")
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go readCommands(ctx, cancel, eng)

	eng.Run(ctx)
	return nil
}

func readCommands(ctx context.Context, cancel context.CancelFunc, eng *engine.Engine) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		verb, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)

		switch strings.ToLower(verb) {
		case "say":
			eng.Speak(ctx, rest)
		case "mouth":
			eng.DriveMouthStart(rest, 0)
		case "wave":
			eng.Wave()
		case "nod":
			eng.Nod()
		case "expr", "expression":
			eng.SetExpression(rest)
		case "listen":
			eng.SetListening(strings.EqualFold(rest, "on"))
		case "stop":
			eng.StopMouth()
		case "quit", "exit":
			cancel()
			return
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n", verb)
		}
	}
}
