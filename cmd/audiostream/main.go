package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/glebovdev/audiostream/internal/cache"
	"github.com/glebovdev/audiostream/internal/config"
	"github.com/glebovdev/audiostream/internal/decoder"
	"github.com/glebovdev/audiostream/internal/output"
	"github.com/glebovdev/audiostream/internal/player"
	"github.com/glebovdev/audiostream/internal/playlist"
	"github.com/glebovdev/audiostream/internal/recorder"
	"github.com/glebovdev/audiostream/internal/source"
	"github.com/glebovdev/audiostream/internal/transport"
	"github.com/glebovdev/audiostream/internal/ui"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const updateInterval = 20 * time.Millisecond

var (
	versionFlag  = flag.Bool("version", false, "Show version information")
	debugFlag    = flag.Bool("debug", false, "Enable debug logging")
	headlessFlag = flag.Bool("headless", false, "Play without the terminal UI, logging to stderr")
	urlFlag      = flag.String("url", "", "Stream URL, playlist or file to play (defaults to the last one played)")
	profileFlag  = flag.String("profile", "", "Playback profile: direct, realtime, clip or offline")
	bufferFlag   = flag.String("buffer", "", "Media buffer for network streams: memory or disk")
	recordFlag   = flag.String("record", "", "Record decoded audio to this WAV file")
	configFlag   = flag.String("config", "", "Config file to use instead of the default")
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s v%s - %s\n\n", config.AppName, config.AppVersion, config.AppDescription)
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()

		configPath, err := config.GetConfigPath()
		if err == nil {
			if _, statErr := os.Stat(configPath); statErr == nil {
				fmt.Fprintf(os.Stderr, "\nConfig file: %s\n", configPath)
			} else {
				fmt.Fprintf(os.Stderr, "\nConfig file will be created on first use.\n")
			}
		}
	}
}

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Printf("%s v%s\n", config.AppName, config.AppVersion)
		fmt.Println(config.AppDescription)
		os.Exit(0)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v, using defaults\n", err)
	}
	applyFlags(cfg)

	closeLog := setupLogging(cfg)
	defer closeLog()

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("audiostream failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		closeLog()
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if *configFlag != "" {
		return config.LoadFile(*configFlag)
	}
	return config.Load()
}

func applyFlags(cfg *config.Config) {
	if *debugFlag {
		cfg.LogLevel = "debug"
	}
	if *profileFlag != "" {
		cfg.Stream.Profile = *profileFlag
	}
	if *bufferFlag != "" {
		cfg.Stream.MediaBuffer = *bufferFlag
	}
	if *urlFlag != "" {
		cfg.LastURL = *urlFlag
	}
}

// setupLogging sends logs to stderr in headless mode. With the UI running
// they go to a log file in the cache dir so the screen is not corrupted.
func setupLogging(cfg *config.Config) func() {
	zerolog.SetGlobalLevel(cfg.Level())

	if *headlessFlag {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
		return func() {}
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		dir, err := cache.GetCacheDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not get cache dir: %v\n", err)
			dir = os.TempDir()
		}
		cacheDir = dir
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log dir: %v\n", err)
	}

	var out io.Writer = io.Discard
	logPath := filepath.Join(cacheDir, config.AppName+".log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log file: %v\n", err)
	} else {
		out = logFile
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: "15:04:05"})
	if *debugFlag {
		fmt.Printf("Debug log: %s\n", logPath)
	}
	log.Info().Msgf("Starting %s v%s", config.AppName, config.AppVersion)

	return func() {
		if logFile != nil {
			logFile.Close()
		}
	}
}

// sourceFromConfig builds the playable source for url from the stream
// section of cfg.
func sourceFromConfig(url string, cfg *config.Config) (source.Source, error) {
	streamType, err := source.ParseStreamType(cfg.Stream.Type)
	if err != nil {
		return source.Source{}, err
	}
	src := source.Source{
		URL:     url,
		Type:    streamType,
		CacheID: cfg.Stream.UniqueCacheID,
	}
	if streamType == source.TypeRAW {
		enc, err := source.ParseEncoding(cfg.Stream.Raw.Encoding)
		if err != nil {
			return source.Source{}, err
		}
		src.Raw = source.RawFormat{
			Encoding:   enc,
			Channels:   cfg.Stream.Raw.Channels,
			SampleRate: cfg.Stream.Raw.SampleRate,
		}
	}
	return src, nil
}

func run(cfg *config.Config) error {
	opts, err := player.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	opts.RecordPath = *recordFlag

	src, err := sourceFromConfig(cfg.LastURL, cfg)
	if err != nil {
		return err
	}

	userAgent := config.AppName + "/" + config.AppVersion
	httpTransport, err := transport.NewHTTP(transport.Options{
		UserAgent: userAgent,
		Proxy:     cfg.Stream.Proxy,
	})
	if err != nil {
		return err
	}

	limit, err := cfg.CacheLimitBytes()
	if err != nil {
		return err
	}
	audioCache, err := cache.NewCache(cfg.CacheDir, limit)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer audioCache.Close()
	if err := audioCache.CleanExpired(); err != nil {
		log.Warn().Err(err).Msg("Failed to clean expired cache entries")
	}

	deps := player.Deps{
		Decoder:   decoder.New(),
		Transport: httpTransport,
		Resolver:  playlist.NewFetcher(userAgent),
		Output:    output.NewSpeakerSystem(),
		Cache:     audioCache,
		Recorder:  recorder.NewWAV(),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *headlessFlag {
		return runHeadless(ctx, opts, deps, src)
	}
	return runUI(ctx, cfg, opts, deps, src)
}

func runHeadless(ctx context.Context, opts player.Options, deps player.Deps, src source.Source) error {
	done := make(chan struct{})
	hooks := player.Hooks{
		OnStateChanged: func(from, to player.State) {
			if to == player.StateStopped {
				select {
				case <-done:
				default:
					close(done)
				}
			}
		},
		OnTagChanged: func(name string, value any) {
			if s, ok := value.(string); ok {
				log.Info().Str("tag", name).Msg(s)
			}
		},
		OnClipCreated: func(clip *cache.Clip) {
			log.Info().Str("name", clip.Name).Dur("duration", clip.Duration()).Msg("Clip ready")
		},
	}

	p := player.New(opts, deps, hooks)
	defer p.Close()

	if err := p.Play(src); err != nil {
		return err
	}

	runCtx, stop := context.WithCancel(ctx)
	go func() {
		select {
		case <-done:
		case <-ctx.Done():
			log.Info().Msg("Received shutdown signal, cleaning up...")
		}
		stop()
	}()

	if err := p.Run(runCtx, updateInterval); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	p.Stop()

	if last := p.Info().LastError; last != "" && ctx.Err() == nil {
		return errors.New(last)
	}
	return nil
}

func runUI(ctx context.Context, cfg *config.Config, opts player.Options, deps player.Deps, src source.Source) error {
	screen := ui.NewUI(cfg, src)
	p := player.New(opts, deps, screen.Hooks())
	defer p.Close()
	screen.Attach(p)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		_ = p.Run(runCtx, updateInterval)
	}()

	go func() {
		<-ctx.Done()
		log.Info().Msg("Received shutdown signal, cleaning up...")
		screen.Shutdown()
	}()

	err := screen.Run()
	stop()
	p.Stop()
	log.Info().Msgf("%s stopped", config.AppName)
	return err
}
