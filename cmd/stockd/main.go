package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	pyroscope "github.com/grafana/pyroscope-go"

	"main/internal/engine"
	"main/internal/holdstock"
	"main/internal/model"
	"main/internal/notify"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/stock"
	"main/internal/store"
	"main/pkg/conn"
	"main/pkg/exception"
)

type runtimeConfig struct {
	v atomic.Value
}

func newRuntimeConfig(loaded ops.Loaded) *runtimeConfig {
	var rc runtimeConfig
	rc.v.Store(loaded)
	return &rc
}

func (r *runtimeConfig) Load() ops.Loaded {
	return r.v.Load().(ops.Loaded)
}

func (r *runtimeConfig) Update(loaded ops.Loaded) {
	r.v.Store(loaded)
}

func main() {
	if err := run(); err != nil {
		log.Printf("stockd: %v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to JSON config")
	configReload := flag.Duration("config-reload-interval", 2*time.Second, "Config reload interval (0=disable)")
	tenantFlag := flag.String("tenant", "", "Tenant id for one-shot commands")
	channelFlag := flag.String("channel", "", "Channel id for one-shot commands")
	adjustItem := flag.String("adjust-item", "", "Run a one-shot manual adjustment for this item id, then exit")
	adjustOld := flag.Int64("adjust-old", 0, "Old quantity for the one-shot adjustment")
	adjustNew := flag.Int64("adjust-new", 0, "New quantity for the one-shot adjustment")
	flag.Parse()

	if *configPath == "" {
		return errors.New("missing config; use -config")
	}
	loaded, err := ops.Load(*configPath)
	if err != nil {
		return err
	}
	runtime := newRuntimeConfig(loaded)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *configReload > 0 {
		go watchConfig(ctx, *configPath, *configReload, runtime.Update)
	}

	if addr := loaded.Profiling.ServerAddress; addr != "" {
		name := loaded.Profiling.ApplicationName
		if name == "" {
			name = "stockd"
		}
		if _, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: name,
			ServerAddress:   addr,
		}); err != nil {
			log.Printf("pyroscope start failed: %v", err)
		}
	}

	recordStore, settingsProvider, closeStore, err := buildStore(loaded)
	if err != nil {
		return err
	}
	defer closeStore()

	metrics := obs.NewMetrics()
	sink := notify.NewKafkaNotifier(loaded.Kafka.Brokers, loaded.Kafka.Topic)
	defer sink.Close()
	dispatcher := notify.NewDispatcher(sink, loaded.Kafka.QueueCapacity, metrics)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx)
	}()

	settings := &settingsWithDefault{provider: settingsProvider, runtime: runtime}
	eng := engine.New(recordStore, metrics)
	holds := holdstock.New(recordStore, settings)
	use := stock.NewUsecase(recordStore, settings, eng, holds, dispatcher)

	if *adjustItem != "" {
		err = runAdjust(ctx, use, runtime, *tenantFlag, *channelFlag, *adjustItem, *adjustOld, *adjustNew)
	} else {
		log.Printf("stockd ready: topic=%s in_memory=%v", loaded.Kafka.Topic, loaded.InMemory)
		<-ctx.Done()
	}

	dispatcher.Close()
	wg.Wait()

	snapshot := metrics.Snapshot()
	log.Printf("metrics: movements=%v notify_sent=%d notify_failed=%d notify_drops=%d mutation=%+v",
		snapshot.MovementCounts, snapshot.NotifySent, snapshot.NotifyFailed, snapshot.NotifyDrops,
		snapshot.MutationLatency)
	return err
}

func runAdjust(ctx context.Context, use *stock.Usecase, runtime *runtimeConfig, tenant, channel, item string, oldQty, newQty int64) error {
	tc, err := parseTenantContext(tenant, channel, runtime.Load().Features.HoldStock)
	if err != nil {
		return err
	}
	itemID, err := uuid.Parse(item)
	if err != nil {
		return err
	}

	movement, err := use.Adjust(ctx, tc, itemID, oldQty, newQty)
	if err != nil {
		return err
	}
	if movement == nil {
		log.Printf("adjust: zero delta, nothing recorded")
		return nil
	}
	log.Printf("adjust: movement=%s kind=%s quantity=%d", movement.ID, movement.Kind, movement.Quantity)
	return nil
}

func parseTenantContext(tenant, channel string, holdStock bool) (model.TenantContext, error) {
	if tenant == "" {
		return model.TenantContext{}, errors.New("missing tenant; use -tenant")
	}
	tenantID, err := uuid.Parse(tenant)
	if err != nil {
		return model.TenantContext{}, err
	}
	tc := model.TenantContext{TenantID: tenantID, HoldStockEnabled: holdStock}
	if channel != "" {
		channelID, err := uuid.Parse(channel)
		if err != nil {
			return model.TenantContext{}, err
		}
		tc.ChannelID = channelID
	}
	return tc, nil
}

func buildStore(loaded ops.Loaded) (store.RecordStore, store.SettingsProvider, func(), error) {
	if loaded.InMemory {
		mem := store.NewMem()
		return mem, mem, func() {}, nil
	}

	client, err := conn.New(loaded.Postgres)
	if err != nil {
		return nil, nil, nil, err
	}
	pg := store.NewPG(client.DB())
	if err := pg.Migrate(); err != nil {
		_ = client.Close()
		return nil, nil, nil, err
	}
	return pg, pg, func() { _ = client.Close() }, nil
}

// settingsWithDefault serves the tenant row when one exists and otherwise
// falls back to the configured tenant-wide defaults, which follow config hot
// reloads.
type settingsWithDefault struct {
	provider store.SettingsProvider
	runtime  *runtimeConfig
}

func (s *settingsWithDefault) Settings(ctx context.Context, tc model.TenantContext) (model.TenantSettings, error) {
	settings, err := s.provider.Settings(ctx, tc)
	if err == nil {
		return settings, nil
	}
	if errors.Is(err, exception.ErrSettingsNotFound) {
		defaults := s.runtime.Load().Settings
		defaults.TenantID = tc.TenantID
		return defaults, nil
	}
	return model.TenantSettings{}, err
}

func watchConfig(ctx context.Context, path string, interval time.Duration, update func(ops.Loaded)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastMod time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				log.Printf("config stat failed: %v", err)
				continue
			}
			if !info.ModTime().After(lastMod) {
				continue
			}
			loaded, err := ops.Load(path)
			if err != nil {
				log.Printf("config reload failed: %v", err)
				continue
			}
			update(loaded)
			lastMod = info.ModTime()
			log.Printf("config reloaded: %s", path)
		}
	}
}
