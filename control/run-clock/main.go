package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/go-chi/chi/v5"
	"github.com/jrockway/wordclock/control/buttons"
	"github.com/jrockway/wordclock/control/clock"
	"github.com/jrockway/wordclock/control/config"
	"github.com/jrockway/wordclock/control/face"
	"github.com/jrockway/wordclock/control/indicators"
	"github.com/jrockway/wordclock/control/phrase"
	"github.com/jrockway/wordclock/control/render"
	"github.com/jrockway/wordclock/control/serial"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "golang.org/x/net/trace" // Registers /debug/requests and /debug/events.
	"periph.io/x/host/v3"
)

var cli struct {
	Config  string `short:"c" type:"existingfile" help:"Configuration file; the built-in defaults drive no pins."`
	Bind    string `help:"Address to bind for debug/metrics server (overrides http.bind)."`
	Serial  string `help:"Serial port for the diagnostic stream (overrides serial.port)."`
	Verbose bool   `short:"v" help:"Log every change of the face."`
}

// logIndicators logs the phrase whenever it changes.
type logIndicators struct {
	last string
}

func (l *logIndicators) SetIndicators(hour uint8, flags phrase.Flags) error {
	if p := phrase.Phrase(hour, flags); p != l.last {
		log.Printf("%s", p)
		l.last = p
	}
	return nil
}

func main() {
	kong.Parse(&cli, kong.Description("Runs a German word clock: keeps time, reads the setting buttons, and lights the words."))

	cfg := config.Default()
	if cli.Config != "" {
		var err error
		cfg, err = config.Load(cli.Config)
		if err != nil {
			log.Fatalf("load config %q: %v", cli.Config, err)
		}
	}
	if cli.Bind != "" {
		cfg.HTTP.Bind = cli.Bind
	}
	if cli.Serial != "" {
		cfg.Serial.Port = cli.Serial
	}

	if _, err := host.Init(); err != nil {
		log.Fatalf("init periph.io: %v", err)
	}

	pins, err := indicators.Open(cfg.HourPins(), cfg.WordPins())
	if err != nil {
		log.Fatalf("open indicator pins: %v", err)
	}
	if err := pins.Blank(); err != nil {
		log.Printf("blank indicators: %v", err)
	}
	preview := face.New()
	outputs := render.Tee{pins, preview}
	if cli.Verbose {
		outputs = append(outputs, new(logIndicators))
	}

	var diag io.ByteWriter
	var uart *serial.Port
	if cfg.Serial.Port == "" {
		log.Printf("no serial port configured; diagnostic stream goes to /debug/events")
		diag = serial.NewTrace()
	} else {
		uart, err = serial.Open(cfg.Serial.Port, cfg.Serial.Speed)
		if err != nil {
			log.Fatalf("open diagnostic uart: %v", err)
		}
		diag = uart
	}

	var btns clock.Buttons
	if cfg.HasButtons() {
		b, err := buttons.Open(cfg.Pins.Increment, cfg.Pins.Decrement)
		if err != nil {
			log.Fatalf("open buttons: %v", err)
		}
		btns = b
	} else {
		log.Printf("no button pins configured; the time can't be set")
	}

	cl, err := clock.New(clock.Options{
		Output:           &render.Pipeline{Indicators: outputs, Diagnostic: diag},
		Buttons:          btns,
		DebounceInterval: cfg.DebounceInterval(),
		DebounceWindow:   cfg.Debounce.Window,
		DebounceGuard:    cfg.Debounce.Guard,
	})
	if err != nil {
		log.Fatalf("init clock: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/face.png", http.StatusFound)
	})
	r.Handle("/face.png", preview)
	r.Get("/time", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("content-type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "%v\n%s\n", cl.Now(), preview.Current())
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/debug", http.DefaultServeMux)

	httpDoneCh := make(chan error)
	httpServer := http.Server{Addr: cfg.HTTP.Bind, Handler: r}
	go func() {
		log.Printf("http server listening on %s", httpServer.Addr)
		err := httpServer.ListenAndServe()
		select {
		case httpDoneCh <- err:
		case <-ctx.Done():
		}
		close(httpDoneCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	loopDoneCh := make(chan error)
	go func() {
		err := cl.Run(ctx)
		select {
		case loopDoneCh <- err:
		case <-ctx.Done():
		}
		close(loopDoneCh)
	}()

	httpAlive := true
	select {
	case err := <-httpDoneCh:
		log.Printf("http server died: %v", err)
		httpAlive = false
	case err := <-loopDoneCh:
		log.Printf("clock loop died: %v", err)
	case <-sigCh:
		log.Printf("interrupt")
	}
	signal.Stop(sigCh)
	cancel()
	<-loopDoneCh
	// Blank the face when exiting, so someone looking at the clock can tell that it stopped.
	if err := pins.Blank(); err != nil {
		log.Printf("blank indicators: %v", err)
	}
	if httpAlive {
		tctx, c := context.WithTimeout(context.Background(), time.Second)
		httpServer.Shutdown(tctx)
		c()
	}
	if uart != nil {
		if err := uart.Close(); err != nil {
			log.Printf("close uart: %v", err)
		}
	}
	os.Exit(1)
}
