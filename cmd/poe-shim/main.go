package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ArthurVardevanyan/poe-shim/internal/backend"
	"github.com/ArthurVardevanyan/poe-shim/internal/config"
	"github.com/ArthurVardevanyan/poe-shim/internal/fleet"
	"github.com/ArthurVardevanyan/poe-shim/internal/metrics"
	"github.com/ArthurVardevanyan/poe-shim/internal/power"
	"github.com/ArthurVardevanyan/poe-shim/internal/server"
	"github.com/ArthurVardevanyan/poe-shim/internal/unifi"
	"github.com/ArthurVardevanyan/poe-shim/internal/version"
)

func main() {
	configPath := flag.String("config", os.Getenv("POE_SHIM_CONFIG"), "path to config file (or POE_SHIM_CONFIG)")
	listen := flag.String("listen", "", "address to listen on, overrides config (e.g. :3000)")
	beKind := flag.String("backend", "unifi", "controller kind: unifi|fake")
	debug := flag.Bool("debug", false, "debug logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		return
	}

	// Load .env if exists
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	logger, err := newLogger(*debug || cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.Auth.Username == "" || cfg.Auth.Password == "" {
		logger.Warn("no basic auth configured; set auth.username/auth.password or POE_SHIM_AUTH_USERNAME/POE_SHIM_AUTH_PASSWORD")
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	f := cfg.Fleet()

	var ctrl unifi.Controller
	switch *beKind {
	case "unifi":
		c, err := unifi.NewClient(cfg.ClientConfig(), logger, m)
		if err != nil {
			logger.Fatal("controller client", zap.Error(power.Translate(err)))
		}
		ctrl = c
	case "fake":
		logger.Warn("fake controller in use; no switch will be touched")
		ctrl = fakeController(f)
	default:
		logger.Fatal("unknown backend", zap.String("backend", *beKind))
	}

	loginCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = ctrl.Login(loginCtx, cfg.Controller.Username, cfg.Controller.Password)
	cancel()
	if err != nil {
		logger.Fatal("controller login", zap.Error(power.Translate(err)))
	}

	svc := power.NewService(backend.NewUniFi(f, ctrl, logger), logger, m)
	srv := server.New(server.Config{
		Listen:   cfg.Listen,
		Username: cfg.Auth.Username,
		Password: cfg.Auth.Password,
		Power:    svc,
		Logger:   logger,
		Metrics:  m,
	})
	logger.Info("fleet loaded", zap.Int("devices", f.Len()), zap.Strings("system_ids", f.SystemIDs()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// fakeController serves the configured fleet from memory. The port each system
// ID resolves to starts powered off; each switch uses its MAC as device ID.
func fakeController(f *fleet.Fleet) *unifi.Fake {
	var devices []unifi.Device
	byMAC := map[fleet.Address]int{}
	for _, id := range f.SystemIDs() {
		mac, _ := f.OwningDevice(id)
		m, _ := f.Machine(id)
		i, ok := byMAC[mac]
		if !ok {
			i = len(devices)
			byMAC[mac] = i
			devices = append(devices, unifi.Device{MAC: mac.String(), DeviceID: mac.String()})
		}
		if _, exists := devices[i].Port(m.Port); !exists {
			devices[i].PortTable = append(devices[i].PortTable, unifi.Port{PortIdx: m.Port, PoEMode: unifi.Mode(unifi.PoEModeOff)})
		}
	}
	return unifi.NewFake(devices...)
}
