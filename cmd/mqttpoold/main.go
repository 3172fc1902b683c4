// Package main boots the pooled MQTT daemon, wiring configuration, logger,
// one Connection Pool and Client Facade per configured broker, the
// Subscription Registry, Auto-Subscriber warm-up, the Debug Tap Server, and
// a Prometheus metrics endpoint. Grounded on the teacher's
// cmd/consumer/main.go Application/run()/Start()/Shutdown() idiom,
// generalized from one fixed Redis+MQTT pipeline to a broker-name-keyed map
// of pools built from config.Document.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ibs-source/mqttpool/internal/autosubscribe"
	"github.com/ibs-source/mqttpool/internal/client"
	"github.com/ibs-source/mqttpool/internal/config"
	"github.com/ibs-source/mqttpool/internal/debugtap"
	"github.com/ibs-source/mqttpool/internal/events"
	"github.com/ibs-source/mqttpool/internal/listeners"
	"github.com/ibs-source/mqttpool/internal/logger"
	"github.com/ibs-source/mqttpool/internal/metrics"
	"github.com/ibs-source/mqttpool/internal/pool"
	"github.com/ibs-source/mqttpool/internal/ports"
	"github.com/ibs-source/mqttpool/internal/registry"
)

// brokerRuntime is the set of components wired per config.Document entry.
type brokerRuntime struct {
	name      string
	broker    *config.Broker
	pool      *pool.Pool
	client    *client.Client
	tap       *debugtap.Server
	autoGroup *autosubscribe.Group
}

// Application holds every component the daemon starts and stops.
type Application struct {
	cfg      config.Document
	logger   ports.Logger
	bus      *events.Reference
	metrics  *metrics.Registry
	registry *registry.Registry
	brokers  map[string]*brokerRuntime

	healthSrv *http.Server
	wg        sync.WaitGroup
}

func main() {
	os.Exit(run())
}

// run contains the program logic and returns an exit code.
func run() int {
	configPath := flag.String("config", "mqttpool.yaml", "path to the broker configuration document")
	metricsAddr := flag.String("metrics-addr", envOr("MQTTPOOLD_METRICS_ADDR", ":9090"), "address the Prometheus /metrics endpoint listens on")
	logLevel := flag.String("log-level", envOr("MQTTPOOLD_LOG_LEVEL", "info"), "log level")
	logFormat := flag.String("log-format", envOr("MQTTPOOLD_LOG_FORMAT", "text"), "log format")
	flag.Parse()

	logr, err := logger.NewLogrusLogger(*logLevel, *logFormat)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}

	doc, err := config.LoadFile(*configPath)
	if err != nil {
		logr.Error("failed to load configuration", ports.Field{Key: "error", Value: err})
		return 1
	}

	app := &Application{
		cfg:      doc,
		logger:   logr,
		bus:      events.NewReference(),
		metrics:  metrics.NewRegistry(),
		registry: registry.New(),
		brokers:  make(map[string]*brokerRuntime),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx, *metricsAddr); err != nil {
		logr.Error("failed to start application", ports.Field{Key: "error", Value: err})
		return 1
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logr.Info("received shutdown signal", ports.Field{Key: "signal", Value: sig})

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		logr.Error("failed to shutdown gracefully", ports.Field{Key: "error", Value: err})
		return 1
	}

	logr.Info("application shutdown complete")
	return 0
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Start wires every configured broker and the metrics endpoint.
func (app *Application) Start(ctx context.Context, metricsAddr string) error {
	app.logger.Info("starting application", ports.Field{Key: "brokers", Value: len(app.cfg)})

	for name, b := range app.cfg {
		rt, err := app.startBroker(ctx, name, b)
		if err != nil {
			return fmt.Errorf("starting broker %q: %w", name, err)
		}
		app.brokers[name] = rt
	}

	app.startMetricsServer(metricsAddr)
	app.logger.Info("application started successfully")
	return nil
}

func (app *Application) startBroker(ctx context.Context, name string, b *config.Broker) (*brokerRuntime, error) {
	p, err := pool.New(ctx, name, b.ClientConfig(), b.Pool, app.logger, app.metrics, nil)
	if err != nil {
		return nil, fmt.Errorf("pool: %w", err)
	}

	rt := &brokerRuntime{name: name, broker: b, pool: p}

	socketPath := ""
	if b.Debug.Enabled {
		socketPath = b.Debug.SocketPath
	}
	tap := debugtap.NewServer(socketPath, app.logger, app.metrics, app.tapCommandHandler(rt))
	rt.tap = tap

	c := client.New(name, p, app.registry, app.bus, app.logger, app.metrics)
	rt.client = c

	app.registerListeners(ctx, name, c, tap)

	group := autosubscribe.NewGroup(ctx)
	rt.autoGroup = group
	sub := &autosubscribe.Subscriber{
		PoolName:     name,
		BaseClientID: b.ClientID,
		Client:       c,
		Registry:     app.registry,
		Group:        group,
		Logger:       app.logger,
	}
	listeners.AfterWorkerStartListener(ctx, sub, b)()

	app.wg.Add(1)
	go app.tickTap(ctx, tap)

	return rt, nil
}

// registerListeners hooks the library-provided listeners of spec.md §4.5
// onto the shared bus for one broker's events.
func (app *Application) registerListeners(ctx context.Context, name string, c *client.Client, tap *debugtap.Server) {
	vm := app.metrics.Validation

	app.bus.Listen(events.TagPublish, listeners.Trap("publish:"+name, app.logger, vm, listeners.PublishListener(ctx, c, app.logger)))
	app.bus.Listen(events.TagSubscribe, listeners.Trap("subscribe:"+name, app.logger, vm, listeners.SubscribeListener(ctx, c, app.logger)))
	app.bus.Listen(events.TagOnDisconnect, listeners.Trap("on_disconnect:"+name, app.logger, vm, listeners.OnDisconnectListener(app.metrics, app.logger)))

	forward := listeners.DebugTapListener(tap)
	app.bus.Listen(events.TagOnPublish, listeners.Trap("debug_tap_publish:"+name, app.logger, vm, forward))
	app.bus.Listen(events.TagOnReceive, listeners.Trap("debug_tap_receive:"+name, app.logger, vm, forward))
	app.bus.Listen(events.TagOnSubscribe, listeners.Trap("debug_tap_subscribe:"+name, app.logger, vm, forward))
	app.bus.Listen(events.TagOnDisconnect, listeners.Trap("debug_tap_disconnect:"+name, app.logger, vm, forward))
}

// tickTap drives the Debug Tap's cooperative non-blocking Tick loop
// (spec.md §9's "Debug tap in a cooperative loop" design note) from a plain
// ticker goroutine, since the daemon has no other natural main loop to hang
// it off.
func (app *Application) tickTap(ctx context.Context, tap *debugtap.Server) {
	defer app.wg.Done()
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			tap.Tick()
		case <-ctx.Done():
			return
		}
	}
}

// tapCommandHandler resolves a Debug Tap command frame into a Client Facade
// call. mqtt_publish/mqtt_subscribe/mqtt_unsubscribe are the recognized
// commands of spec.md §6; an explicit "context_id" argument pins the
// underlying borrow to a caller-chosen context, otherwise one is minted so
// every ad hoc command still gets the pool's context-affinity behavior
// (spec.md §9's "make the context id explicit" design note).
func (app *Application) tapCommandHandler(rt *brokerRuntime) debugtap.CommandHandler {
	return func(command string, args map[string]any) debugtap.CommandResult {
		contextID, _ := args["context_id"].(string)
		if contextID == "" {
			contextID = uuid.NewString()
		}
		ctx := context.Background()

		switch command {
		case "mqtt_publish":
			return app.handlePublishCommand(ctx, rt, contextID, args)
		case "mqtt_subscribe":
			return app.handleSubscribeCommand(ctx, rt, contextID, args)
		case "mqtt_unsubscribe":
			return app.handleUnsubscribeCommand(ctx, rt, contextID, args)
		default:
			return debugtap.CommandResult{Success: false, Message: "unrecognized command"}
		}
	}
}

func (app *Application) handlePublishCommand(ctx context.Context, rt *brokerRuntime, contextID string, args map[string]any) debugtap.CommandResult {
	topicName, _ := args["topic"].(string)
	payload, _ := args["payload"].(string)
	qos, _ := args["qos"].(float64)
	retain, _ := args["retain"].(bool)

	if err := rt.client.Publish(ctx, contextID, topicName, []byte(payload), byte(qos), retain); err != nil {
		return debugtap.CommandResult{Success: false, Message: err.Error()}
	}
	return debugtap.CommandResult{Success: true, Data: map[string]any{"context_id": contextID}}
}

func (app *Application) handleSubscribeCommand(ctx context.Context, rt *brokerRuntime, contextID string, args map[string]any) debugtap.CommandResult {
	topicName, _ := args["topic"].(string)
	qos, _ := args["qos"].(float64)
	clientID, _ := args["client_id"].(string)
	if clientID == "" {
		clientID = contextID
	}

	tc := config.TopicConfig{Topic: topicName, QoS: byte(qos)}
	if err := rt.client.Subscribe(ctx, contextID, clientID, tc); err != nil {
		return debugtap.CommandResult{Success: false, Message: err.Error()}
	}
	return debugtap.CommandResult{Success: true, Data: map[string]any{"context_id": contextID}}
}

func (app *Application) handleUnsubscribeCommand(ctx context.Context, rt *brokerRuntime, contextID string, args map[string]any) debugtap.CommandResult {
	topicName, _ := args["topic"].(string)
	clientID, _ := args["client_id"].(string)

	if err := rt.client.Unsubscribe(ctx, contextID, clientID, topicName); err != nil {
		return debugtap.CommandResult{Success: false, Message: err.Error()}
	}
	return debugtap.CommandResult{Success: true}
}

func (app *Application) startMetricsServer(addr string) {
	collector := metrics.NewPrometheusCollector(app.metrics)
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collector)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", app.healthHandler)

	app.healthSrv = &http.Server{Addr: addr, Handler: mux}

	app.wg.Add(1)
	go app.runMetricsServer()
}

func (app *Application) runMetricsServer() {
	defer app.wg.Done()
	app.logger.Info("starting metrics server", ports.Field{Key: "addr", Value: app.healthSrv.Addr})
	if err := app.healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		app.logger.Error("metrics server error", ports.Field{Key: "error", Value: err})
	}
}

func (app *Application) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// Shutdown stops every broker's autosubscribe loops, closes its Debug Tap
// and Pool, and finally the metrics server.
func (app *Application) Shutdown(ctx context.Context) error {
	app.logger.Info("shutting down application")

	for name, rt := range app.brokers {
		rt.autoGroup.Stop()
		if err := rt.tap.Shutdown(); err != nil {
			app.logger.Warn("debug tap shutdown failed", ports.Field{Key: "pool", Value: name}, ports.Field{Key: "error", Value: err})
		}
		if err := rt.pool.Shutdown(ctx); err != nil {
			app.logger.Warn("pool shutdown failed", ports.Field{Key: "pool", Value: name}, ports.Field{Key: "error", Value: err})
		}
	}

	if app.healthSrv != nil {
		if err := app.healthSrv.Shutdown(ctx); err != nil {
			app.logger.Error("failed to shutdown metrics server", ports.Field{Key: "error", Value: err})
		}
	}

	app.wg.Wait()
	return nil
}
