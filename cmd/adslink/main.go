// Adslink - ADS/AMS gateway
//
// Connects to Beckhoff TwinCAT targets over ADS, subscribes to symbol
// change notifications, and republishes raw samples to MQTT, Valkey,
// and Kafka. A unified HTTP server exposes a REST API and browser UI.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"adslink/bridge"
	"adslink/config"
	"adslink/kafka"
	"adslink/logging"
	"adslink/mqtt"
	"adslink/valkey"
	"adslink/web"
)

// Version is set at build time via -ldflags
var Version = "dev"

// preprocessLogDebugFlag handles --log-debug without a value by injecting "all" as the default.
// This allows users to use `--log-debug` alone to enable all protocol logging.
func preprocessLogDebugFlag() {
	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--log-debug" || arg == "-log-debug" {
			if i+1 >= len(args) || (len(args[i+1]) > 0 && args[i+1][0] == '-') {
				os.Args = append(os.Args[:i+2], append([]string{"all"}, os.Args[i+2:]...)...)
			}
			return
		}
		if len(arg) > 11 && (arg[:12] == "--log-debug=" || arg[:11] == "-log-debug=") {
			return
		}
	}
}

// Command line flags
var (
	configPath  = flag.String("config", config.DefaultPath(), "Path to configuration file")
	showVersion = flag.Bool("version", false, "Show version and exit")
	namespace   = flag.String("namespace", "", "Set namespace (saved to config)")
	httpPort    = flag.Int("p", 0, "HTTP listen port (overrides config)")
	httpHost    = flag.String("host", "", "HTTP bind address (overrides config)")
	adminUser   = flag.String("admin-user", "", "Create/update admin user (saves to config)")
	adminPass   = flag.String("admin-pass", "", "Password for admin user (saves to config)")
	noAPI       = flag.Bool("no-api", false, "Disable REST API (ephemeral)")
	noWebUI     = flag.Bool("no-webui", false, "Disable browser UI (ephemeral)")
	logFile     = flag.String("log", "", "Path to log file (optional)")
	logDebug    = flag.String("log-debug", "", "Enable debug logging to debug.log")
)

func main() {
	// Pre-process args to handle --log-debug without a value
	preprocessLogDebugFlag()

	flag.Parse()

	if *showVersion {
		fmt.Printf("adslink %s\n", Version)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Handle --namespace flag: overwrite config and save
	if *namespace != "" {
		if !config.IsValidNamespace(*namespace) {
			fmt.Fprintf(os.Stderr, "Error: invalid namespace '%s' (use alphanumeric, hyphen, underscore, dot)\n", *namespace)
			os.Exit(1)
		}
		cfg.Namespace = *namespace
		if err := cfg.Save(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Namespace set to '%s' and saved to config\n", *namespace)
	}

	// Override web config from flags (in memory only)
	if *httpPort != 0 {
		cfg.Web.Port = *httpPort
	}
	if *httpHost != "" {
		cfg.Web.Host = *httpHost
	}
	if *noAPI {
		cfg.Web.API.Enabled = false
	}
	if *noWebUI {
		cfg.Web.UI.Enabled = false
	}
	if *noAPI && *noWebUI {
		cfg.Web.Enabled = false
	}

	// Create/update admin user if credentials provided (persisted)
	if *adminUser != "" && *adminPass != "" {
		if err := configureAdmin(cfg, *adminUser, *adminPass); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Admin user '%s' configured for web UI\n", *adminUser)
	}

	// First run with the UI enabled and no users: bootstrap an admin
	// account with a generated password that must be changed at login.
	if cfg.Web.Enabled && cfg.Web.UI.Enabled && len(cfg.Web.UI.Users) == 0 {
		password, err := bootstrapAdmin(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating initial admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created initial admin user 'admin' with password: %s\n", password)
		fmt.Println("You will be required to change it at first login.")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	run(cfg)
}

// configureAdmin creates or updates the named admin user and saves the config.
func configureAdmin(cfg *config.Config, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	if existing := cfg.FindWebUser(username); existing != nil {
		updated := *existing
		updated.PasswordHash = string(hash)
		updated.Role = config.RoleAdmin
		updated.MustChangePassword = false
		cfg.UpdateWebUser(username, updated)
	} else {
		cfg.AddWebUser(config.WebUser{
			Username:     username,
			PasswordHash: string(hash),
			Role:         config.RoleAdmin,
		})
	}

	return cfg.Save(*configPath)
}

// bootstrapAdmin creates the initial admin user with a random password.
func bootstrapAdmin(cfg *config.Config) (string, error) {
	raw := make([]byte, 12)
	rand.Read(raw)
	password := base64.RawURLEncoding.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	cfg.AddWebUser(config.WebUser{
		Username:           "admin",
		PasswordHash:       string(hash),
		Role:               config.RoleAdmin,
		MustChangePassword: true,
	})

	if err := cfg.Save(*configPath); err != nil {
		return "", err
	}
	return password, nil
}

func run(cfg *config.Config) {
	// Mirror the in-memory debug ring to a log file if specified
	var fileLogger *logging.FileLogger
	if *logFile != "" {
		var err error
		fileLogger, err = logging.NewFileLogger(*logFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to open log file: %v\n", err)
		} else {
			logging.SetFileLogger(fileLogger)
		}
	}

	// Set up debug logging if specified
	var debugLoggerFile *logging.DebugLogger
	if *logDebug != "" {
		var err error
		debugLoggerFile, err = logging.NewDebugLogger("debug.log")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to open debug log: %v\n", err)
		} else {
			filter := *logDebug
			if filter == "all" || filter == "true" || filter == "1" {
				filter = ""
			}
			debugLoggerFile.SetFilter(filter)
			logging.SetGlobalDebugLogger(debugLoggerFile)
		}
	}

	// Create the bridge and load targets from config
	manager := bridge.NewManager()
	manager.LoadFromConfig(cfg)

	// Create MQTT manager
	mqttMgr := mqtt.NewManager()
	mqttMgr.LoadFromConfig(cfg.MQTT, cfg.Namespace)

	// Create Valkey manager
	valkeyMgr := valkey.NewManager()
	valkeyMgr.LoadFromConfig(cfg.Valkey, cfg.Namespace)

	// Create Kafka manager and write-back consumers
	kafkaMgr := kafka.NewManager(cfg.Namespace)
	var consumers []*kafka.Consumer
	for i := range cfg.Kafka {
		kc := kafka.FromAppConfig(&cfg.Kafka[i], cfg.Namespace)
		kafkaMgr.AddCluster(&kc)
		if kc.EnableWriteback {
			consumers = append(consumers, kafka.NewConsumer(&kc, kafkaMgr.GetProducer(kc.Name)))
		}
	}

	// Managers wrapper for the web server
	managers := &managersWrapper{
		config:     cfg,
		configPath: *configPath,
		bridge:     manager,
		mqttMgr:    mqttMgr,
		valkeyMgr:  valkeyMgr,
		kafkaMgr:   kafkaMgr,
	}

	// Create web server before wiring callbacks so the SSE hub exists
	var webServer *web.Server
	if cfg.Web.Enabled {
		webServer = web.NewServer(&cfg.Web, managers)
	}

	setupValueChangeHandlers(manager, mqttMgr, valkeyMgr, kafkaMgr, webServer)
	setupWriteHandlers(manager, mqttMgr, valkeyMgr, consumers)

	// Target names for MQTT write subscriptions
	targetNames := make([]string, len(cfg.Targets))
	for i, t := range cfg.Targets {
		targetNames[i] = t.Name
	}
	mqttMgr.SetTargetNames(targetNames)

	// Publish health transitions as they happen
	manager.SetOnHealthChange(func(target string, online bool, status, errMsg string) {
		mqttMgr.PublishHealth(target, online, status, errMsg)
		valkeyMgr.PublishHealth(target, online, status, errMsg)
		kafkaMgr.PublishHealth(target, online, status, errMsg)
		if webServer != nil {
			webServer.BroadcastStatus()
		}
	})

	// Valkey on-connect callback for initial sync
	valkeyMgr.SetOnConnectCallback(func() {
		forcePublishAllValuesToValkey(manager, valkeyMgr)
	})

	// Start the bridge supervision and batching loops
	manager.Start()

	// Start HTTP server (unless disabled)
	if webServer != nil {
		if err := webServer.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to start web server on port %d: %v\n", cfg.Web.Port, err)
			fmt.Fprintf(os.Stderr, "Continuing without HTTP server.\n")
			webServer = nil
		} else {
			fmt.Printf("Web server at %s\n", webServer.Address())
			if cfg.Web.API.Enabled {
				fmt.Printf("  REST API: %s/api/\n", webServer.Address())
			}
			if cfg.Web.UI.Enabled {
				fmt.Printf("  Browser UI: %s/\n", webServer.Address())
			}
		}
	}

	// Auto-connect enabled targets
	manager.ConnectEnabled()

	// Auto-start enabled MQTT publishers
	go func() {
		if started := mqttMgr.StartAll(); started > 0 {
			forcePublishAllValuesToMQTT(manager, mqttMgr)
		}
	}()

	// Auto-start enabled Valkey publishers
	go valkeyMgr.StartAll()

	// Auto-connect enabled Kafka clusters, then start write-back consumers
	go func() {
		kafkaMgr.ConnectEnabled()
		for _, c := range consumers {
			if err := c.Start(); err != nil {
				logging.DebugLog("kafka", "consumer start failed: %v", err)
			}
		}
	}()

	// Periodic health publishing
	go publishHealthLoop(manager, mqttMgr, valkeyMgr, kafkaMgr)

	fmt.Println("Running. Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	fmt.Printf("\nReceived %v, shutting down...\n", sig)

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		for _, c := range consumers {
			c.Stop()
		}
		mqttMgr.StopAll()
		valkeyMgr.StopAll()
		kafkaMgr.StopAll()
		if webServer != nil {
			webServer.Stop()
		}
		manager.Stop()
		manager.DisconnectAll()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
	case <-time.After(2 * time.Second):
	}

	if fileLogger != nil {
		logging.SetFileLogger(nil)
		fileLogger.Close()
	}
	if debugLoggerFile != nil {
		debugLoggerFile.Close()
	}

	fmt.Println("Stopped")
}

// managersWrapper wraps the runtime managers to implement web.Managers.
type managersWrapper struct {
	config     *config.Config
	configPath string
	bridge     *bridge.Manager
	mqttMgr    *mqtt.Manager
	valkeyMgr  *valkey.Manager
	kafkaMgr   *kafka.Manager
}

func (m *managersWrapper) GetConfig() *config.Config    { return m.config }
func (m *managersWrapper) GetConfigPath() string        { return m.configPath }
func (m *managersWrapper) GetBridge() *bridge.Manager   { return m.bridge }
func (m *managersWrapper) GetMQTTMgr() *mqtt.Manager    { return m.mqttMgr }
func (m *managersWrapper) GetValkeyMgr() *valkey.Manager { return m.valkeyMgr }
func (m *managersWrapper) GetKafkaMgr() *kafka.Manager   { return m.kafkaMgr }

// Verify managersWrapper implements web.Managers.
var _ web.Managers = (*managersWrapper)(nil)

// setupValueChangeHandlers fans batched symbol changes out to the publishers
// and the browser UI. Each sink runs in its own goroutine so a slow broker
// cannot block the others.
func setupValueChangeHandlers(manager *bridge.Manager, mqttMgr *mqtt.Manager, valkeyMgr *valkey.Manager, kafkaMgr *kafka.Manager, webServer *web.Server) {
	manager.SetOnValueChange(func(changes []bridge.ValueChange) {
		mqttRunning := mqttMgr.AnyRunning()
		valkeyRunning := valkeyMgr.AnyRunning()
		kafkaPublishing := kafkaMgr.AnyPublishing()

		logging.DebugLog("bridge", "OnValueChange: %d changes, MQTT: %v, Valkey: %v, Kafka: %v",
			len(changes), mqttRunning, valkeyRunning, kafkaPublishing)

		changesCopy := make([]bridge.ValueChange, len(changes))
		copy(changesCopy, changes)

		if webServer != nil {
			webServer.BroadcastValues(changesCopy)
		}

		if !mqttRunning && !valkeyRunning && !kafkaPublishing {
			return
		}

		if mqttRunning {
			go func() {
				for _, c := range changesCopy {
					// force=true since the batch already confirms a change
					mqttMgr.Publish(c.Target, c.Symbol, c.Data, c.Timestamp, true)
				}
			}()
		}

		if valkeyRunning {
			go func() {
				for _, c := range changesCopy {
					valkeyMgr.Publish(c.Target, c.Symbol, c.Data, c.Timestamp)
				}
			}()
		}

		if kafkaPublishing {
			go func() {
				for _, c := range changesCopy {
					kafkaMgr.Publish(c.Target, c.Symbol, c.Data, c.Timestamp, true)
				}
			}()
		}
	})
}

// setupWriteHandlers routes broker write requests into ADS writes. A symbol
// is writable only when it appears in the target's subscription list.
func setupWriteHandlers(manager *bridge.Manager, mqttMgr *mqtt.Manager, valkeyMgr *valkey.Manager, consumers []*kafka.Consumer) {
	writeHandler := func(target, symbol string, data []byte) error {
		return manager.WriteSymbol(target, symbol, data)
	}

	writeValidator := func(target, symbol string) bool {
		return manager.SymbolWritable(target, symbol)
	}

	mqttMgr.SetWriteHandler(writeHandler)
	mqttMgr.SetWriteValidator(writeValidator)

	valkeyMgr.SetWriteHandler(writeHandler)
	valkeyMgr.SetWriteValidator(writeValidator)

	for _, c := range consumers {
		c.SetWriteHandler(writeHandler)
		c.SetWriteValidator(writeValidator)
	}
}

// forcePublishAllValuesToMQTT publishes all current symbol values to MQTT brokers.
func forcePublishAllValuesToMQTT(manager *bridge.Manager, mqttMgr *mqtt.Manager) {
	values := manager.GetAllCurrentValues()
	logging.DebugLog("mqtt", "initial sync: publishing %d values", len(values))
	for _, v := range values {
		mqttMgr.Publish(v.Target, v.Symbol, v.Data, v.Timestamp, true)
	}
}

// forcePublishAllValuesToValkey publishes all current symbol values to Valkey servers.
func forcePublishAllValuesToValkey(manager *bridge.Manager, valkeyMgr *valkey.Manager) {
	values := manager.GetAllCurrentValues()
	logging.DebugLog("valkey", "initial sync: publishing %d values", len(values))
	for _, v := range values {
		valkeyMgr.Publish(v.Target, v.Symbol, v.Data, v.Timestamp)
	}
}

// publishHealthLoop publishes target health status to all services every 10 seconds.
func publishHealthLoop(manager *bridge.Manager, mqttMgr *mqtt.Manager, valkeyMgr *valkey.Manager, kafkaMgr *kafka.Manager) {
	time.Sleep(2 * time.Second)

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	publishAllHealth(manager, mqttMgr, valkeyMgr, kafkaMgr)

	for range ticker.C {
		publishAllHealth(manager, mqttMgr, valkeyMgr, kafkaMgr)
	}
}

// publishAllHealth publishes health status for all targets to Valkey and Kafka.
func publishAllHealth(manager *bridge.Manager, mqttMgr *mqtt.Manager, valkeyMgr *valkey.Manager, kafkaMgr *kafka.Manager) {
	targets := manager.ListTargets()
	for _, target := range targets {
		status := target.GetStatus()
		online := status == bridge.StatusConnected
		errMsg := ""
		if err := target.GetError(); err != nil {
			errMsg = err.Error()
		}

		mqttMgr.PublishHealth(target.Config.Name, online, status.String(), errMsg)
		valkeyMgr.PublishHealth(target.Config.Name, online, status.String(), errMsg)
		kafkaMgr.PublishHealth(target.Config.Name, online, status.String(), errMsg)
	}
}
