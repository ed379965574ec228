// Command maxfactor-server exposes the variance-model fitter over HTTP.
//
// It accepts datasets, runs fits (cached on disk), computes p-values and
// covariance summaries, renders fit plots, and streams iteration traces over
// a WebSocket.
//
// Flags:
//
//	-addr:  TCP address to listen on (default 127.0.0.1:8080)
//	-cache: fit cache file (default ./maxfactor_fits.json; empty disables it)
//	-web:   optional static web root
//	-open:  open the UI URL in your default browser at startup
//
// Env:
//
//	MAXFACTOR_ADDR and MAXFACTOR_CACHE provide the flag defaults.
//	MAXFACTOR_NO_OPEN=1 disables browser auto-open even when -open is set.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/CK6170/MaxFactor-go/internal/server"
	ui "github.com/CK6170/MaxFactor-go/ui"
)

func main() {
	var (
		addr  = flag.String("addr", getEnv("MAXFACTOR_ADDR", "127.0.0.1:8080"), "http listen address")
		cache = flag.String("cache", getEnv("MAXFACTOR_CACHE", "./maxfactor_fits.json"), "fit cache file")
		web   = flag.String("web", "", "path to web root (index.html)")
		open  = flag.Bool("open", false, "open the web UI in your default browser on startup")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)
	errLog := log.New(ui.NewRedWriter(os.Stderr), "", log.LstdFlags)

	webDir := ""
	if *web != "" {
		abs, err := filepath.Abs(*web)
		if err != nil {
			errLog.Fatalf("Failed to resolve web directory: %v", err)
		}
		if st, err := os.Stat(abs); err != nil || !st.IsDir() {
			errLog.Fatalf("Web directory does not exist: %s", abs)
		}
		webDir = abs
	}

	s := server.New(server.Config{WebDir: webDir, CachePath: *cache, Logger: logger})

	// Bind early so we fail fast if the port is in use.
	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		errLog.Fatalf("Failed to listen on %s: %v", *addr, err)
	}

	uiURL := makeUIURL(*addr)
	logger.Printf("Serving on http://%s", *addr)
	logger.Printf("Metrics:   %smetrics", uiURL)
	if *cache != "" {
		logger.Printf("Fit cache: %s", *cache)
	}

	if *open && webDir != "" && os.Getenv("MAXFACTOR_NO_OPEN") == "" {
		if err := openBrowser(uiURL); err != nil {
			logger.Printf("WARN: failed to open browser: %v", err)
		}
	}

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errLog.Fatalf("http server: %v", err)
		}
	}()

	waitForShutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		errLog.Printf("http shutdown error: %v", err)
	}
	logger.Printf("stopped")
}

func waitForShutdown() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Printf("shutdown signal received")
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

// makeUIURL turns a listen address (host:port) into a browser-friendly URL.
// Wildcard hosts are replaced by 127.0.0.1.
func makeUIURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Sprintf("http://%s/", strings.TrimSpace(addr))
	}
	if host == "" || host == "0.0.0.0" || host == "::" || host == "[::]" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s/", net.JoinHostPort(host, port))
}

// openBrowser starts the OS default browser without waiting for it.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "windows":
		return exec.Command("cmd", "/c", "start", "", url).Start()
	case "darwin":
		return exec.Command("open", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
