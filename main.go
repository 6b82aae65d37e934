package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"SharedBoard/internal/app"
	"SharedBoard/internal/config"
	"SharedBoard/internal/logger"
	boardnet "SharedBoard/internal/net"
)

const usage = `usage:
  sharedboard [relay] [-config file]
  sharedboard export -room id -out board.png|board.pdf [-timeout d] [localboard://host:port]
  sharedboard localboard://host:port -room id -out board.png`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := os.Args[1:]
	mode := "relay"
	if len(args) > 0 {
		switch {
		case args[0] == "relay" || args[0] == "export":
			mode, args = args[0], args[1:]
		case strings.HasPrefix(args[0], boardnet.LinkScheme):
			// A share link opened directly exports that relay's board.
			mode = "export"
		}
	}

	var err error
	switch mode {
	case "export":
		err = runExport(ctx, args)
	default:
		err = runRelay(ctx, args)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("[BOARD] Exiting")
		os.Exit(1)
	}
}

func runRelay(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("relay", flag.ExitOnError)
	configPath := fs.String("config", "", "relay configuration file")
	fs.Usage = func() { fmt.Fprintln(fs.Output(), usage); fs.PrintDefaults() }
	fs.Parse(args)
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		*configPath = envPath
	}

	cfg := config.MustReadConfig(*configPath)
	logger.Setup(cfg.LogLevel)

	application, err := app.NewRelayApp(ctx, cfg)
	if err != nil {
		return err
	}
	return application.Run(ctx)
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	room := fs.String("room", "", "room to export")
	out := fs.String("out", "board.png", "output file, .png or .pdf")
	title := fs.String("title", "", "PDF title, defaults to the room id")
	timeout := fs.Duration("timeout", 10*time.Second, "how long to wait for the relay")
	level := fs.String("log-level", "info", "log level")
	fs.Usage = func() { fmt.Fprintln(fs.Output(), usage); fs.PrintDefaults() }

	// The link may come before or after the flags.
	var link string
	if len(args) > 0 && strings.HasPrefix(args[0], boardnet.LinkScheme) {
		link, args = args[0], args[1:]
	}
	fs.Parse(args)
	if link == "" {
		link = fs.Arg(0)
	}

	logger.Setup(*level)
	if *room == "" {
		fs.Usage()
		return errors.New("-room is required")
	}

	return app.ExportRoom(ctx, app.ExportOptions{
		Addr:    link,
		RoomID:  *room,
		Out:     *out,
		Title:   *title,
		Timeout: *timeout,
	})
}
