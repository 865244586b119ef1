// rsmtpd is an extensible receive-side SMTP/ESMTP server engine, with a
// focus on pluggable command handling rather than message delivery.
//
// See https://github.com/alfmel/rsmtpd-go for more details.
package main

import (
	"expvar"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alfmel/rsmtpd-go/internal/handlers"
	"github.com/alfmel/rsmtpd-go/internal/maillog"
	"github.com/alfmel/rsmtpd-go/internal/rsmtpd"
	"github.com/alfmel/rsmtpd-go/internal/rsmtpd/config"

	"blitiri.com.ar/go/log"
	"blitiri.com.ar/go/systemd"
)

// Command-line flags.
var (
	configDir = flag.String("config_dir", "/etc/rsmtpd",
		"configuration directory")
	showVer = flag.Bool("version", false, "show version and exit")
)

// Build information, overridden at build time using
// -ldflags="-X main.version=blah".
var version = "undefined"

var versionVar = expvar.NewString("rsmtpd/version")

func main() {
	flag.Parse()
	log.Init()

	versionVar.Set(version)
	if *showVer {
		fmt.Printf("rsmtpd %s\n", version)
		return
	}

	log.Infof("rsmtpd starting (version %s)", version)

	conf := mustLoadConfig(*configDir + "/rsmtpd.yaml")
	chainCfg := mustLoadChainConfig(conf, *configDir)

	go signalHandler()

	tlsMgr := mustLoadTLS(conf, *configDir)

	chains := rsmtpd.NewHandlerChainConfig(chainCfg)

	acceptor := &rsmtpd.Acceptor{
		ServerName:     conf.ServerName,
		ServerVersion:  version,
		MaxMessageSize: conf.MaxMessageSizeBytes(),
		TLSAvailable:   tlsMgr.Enabled(),
		NewSession: func(conn net.Conn, sock *rsmtpd.LineSocket, shared *rsmtpd.SharedState) *rsmtpd.ProtocolEngine {
			// One registry per session, so handler instances are never
			// shared between connections.
			registry := rsmtpd.NewHandlerRegistry(
				handlers.Constructors(),
				config.NewYAMLConfigLoader(*configDir+"/handlers"),
				rsmtpd.NewLogger("rsmtpd"))
			return rsmtpd.NewProtocolEngine(conf.ServerName, version, sock, shared, chains, registry, tlsMgr,
				rsmtpd.NewLogger("rsmtpd").Child(shared.Client.IP))
		},
	}

	go launchMetricsServer("127.0.0.1:9025")

	// The "systemd" address means the listening socket was already bound
	// by systemd socket activation and handed to us over the "smtp" file
	// descriptor name; otherwise bind conf.Address/conf.Port ourselves.
	if conf.Address == "systemd" {
		serveSystemdListener(acceptor)
		return
	}

	addr := rsmtpd.FormatAddr(conf.Address, conf.Port)
	maillog.Listening(addr)
	if err := acceptor.ListenAndServe(addr); err != nil {
		log.Fatalf("Error serving %s: %v", addr, err)
	}
}

func serveSystemdListener(acceptor *rsmtpd.Acceptor) {
	ls, err := systemd.Listeners()
	if err != nil {
		log.Fatalf("Error getting systemd listeners: %v", err)
	}

	smtpLs := ls["smtp"]
	if len(smtpLs) == 0 {
		log.Fatalf("No systemd socket named \"smtp\" was found")
	}
	for _, l := range smtpLs {
		maillog.Listening(l.Addr().String())
	}

	for _, l := range smtpLs[1:] {
		go func(l net.Listener) {
			if err := acceptor.Serve(l); err != nil {
				log.Errorf("systemd listener stopped: %v", err)
			}
		}(l)
	}
	if err := acceptor.Serve(smtpLs[0]); err != nil {
		log.Fatalf("Error serving systemd listener: %v", err)
	}
}

func mustLoadConfig(path string) *config.Config {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Infof("no config file at %q, using defaults", path)
			return config.DefaultConfig()
		}
		log.Fatalf("Error opening config %q: %v", path, err)
	}
	defer f.Close()

	conf, err := config.Decode(f)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	return conf
}

func mustLoadChainConfig(conf *config.Config, dir string) rsmtpd.ChainConfig {
	if conf.UsesDefaultChain() {
		log.Infof("command_handler is %q, using the built-in safety default", conf.CommandHandler)
		return nil
	}

	path := dir + "/" + conf.CommandHandler + ".yaml"
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("Error opening handler chain %q: %v", path, err)
	}
	defer f.Close()

	raw, err := config.DecodeChain(f)
	if err != nil {
		log.Fatalf("Error loading handler chain %q: %v", path, err)
	}

	return toEngineChainConfig(raw)
}

func toEngineChainConfig(raw config.ChainConfig) rsmtpd.ChainConfig {
	out := make(rsmtpd.ChainConfig, len(raw))
	for verb, refs := range raw {
		chain := make([]rsmtpd.HandlerRef, len(refs))
		for i, ref := range refs {
			chain[i] = rsmtpd.HandlerRef{Module: ref.Module, Class: ref.Class}
		}
		out[verb] = chain
	}
	return out
}

func mustLoadTLS(conf *config.Config, dir string) *rsmtpd.TLSManager {
	logger := rsmtpd.NewLogger("rsmtpd.tls")

	if !conf.TLS.Enabled {
		log.Infof("TLS disabled in configuration")
		return rsmtpd.NewTLSManager(logger, nil)
	}

	records := make([]rsmtpd.CertRecord, len(conf.TLS.Certificates))
	for i, c := range conf.TLS.Certificates {
		records[i] = rsmtpd.CertRecord{
			ServerName:  c.ServerName,
			DomainMatch: c.DomainMatch,
			PEMFile:     dir + "/" + c.PEMFile,
			KeyFile:     dir + "/" + c.KeyFile,
		}
	}

	mgr := rsmtpd.NewTLSManager(logger, records)
	if len(records) > 0 {
		if err := mgr.LoadAll(); err != nil {
			log.Fatalf("Error loading TLS certificates: %v", err)
		}
	}

	if len(conf.TLS.AutocertDomains) > 0 {
		cacheDir := conf.TLS.AutocertCacheDir
		if cacheDir == "" {
			cacheDir = dir + "/autocert-cache"
		}
		log.Infof("autocert enabled for %v, caching under %q", conf.TLS.AutocertDomains, cacheDir)
		mgr.EnableAutocert(conf.TLS.AutocertDomains, cacheDir)
	}

	if !mgr.Enabled() {
		log.Infof("TLS enabled in configuration but no usable certificates or autocert domains; disabling")
	}

	return mgr
}

func launchMetricsServer(addr string) {
	log.Infof("Metrics HTTP server listening on %s", addr)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errorf("metrics server stopped: %v", err)
	}
}

func signalHandler() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP)

	for range signals {
		// SIGHUP triggers a reopen of the log files, used for log
		// rotation.
		if err := log.Default.Reopen(); err != nil {
			log.Fatalf("Error reopening log: %v", err)
		}
	}
}
