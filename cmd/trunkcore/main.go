package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-trunk/trunkcore/pkg/channelmap"
	"github.com/go-trunk/trunkcore/pkg/channelstate"
	"github.com/go-trunk/trunkcore/pkg/config"
	"github.com/go-trunk/trunkcore/pkg/logger"
	"github.com/go-trunk/trunkcore/pkg/metrics"
	"github.com/go-trunk/trunkcore/pkg/mpt1327"
	"github.com/go-trunk/trunkcore/pkg/mqtt"
	"github.com/go-trunk/trunkcore/pkg/nbfm"
	"github.com/go-trunk/trunkcore/pkg/sbuf"
	"github.com/go-trunk/trunkcore/pkg/telemetry"
	"github.com/go-trunk/trunkcore/pkg/web"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	validateOnly := flag.Bool("validate", false, "Validate configuration and exit")
	iqInput := flag.String("iq", "-", "Path to a raw interleaved float32 I/Q sample file, or - for stdin")
	iqSampleRate := flag.Float64("iq-sample-rate", 48000, "Sample rate in Hz of the I/Q input")
	iqFrequencyHz := flag.Float64("iq-frequency-hz", 0, "Tuned center frequency in Hz of the I/Q source, published as a SOURCE_FREQUENCY event")
	messagesFile := flag.String("messages", "", "Optional path to newline-delimited JSON MPT1327Messages to replay into the trunking decoder")
	flag.Parse()

	if *showVersion {
		fmt.Printf("trunkcore %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	log := logger.New(logger.Config{Level: "info", Format: "text"})
	log.Info("starting trunkcore",
		logger.String("version", version),
		logger.String("build_time", buildTime))

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Error("failed to load configuration", logger.Error(err))
		os.Exit(1)
	}

	logCfg := logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format}
	if cfg.Logging.File != "" {
		logFile, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Error("failed to open log file, falling back to stdout", logger.Error(err))
		} else {
			logCfg.Output = logFile
			defer logFile.Close()
		}
	}
	log = logger.New(logCfg)

	if *validateOnly {
		log.Info("configuration is valid")
		os.Exit(0)
	}

	log.Info("configuration loaded", logger.String("config_file", *configFile))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup

	collector := metrics.NewCollector(nil)

	if cfg.Metrics.Enabled && cfg.Metrics.Prometheus.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metricsServer := metrics.NewPrometheusServer(
				metrics.PrometheusConfig{
					Enabled: cfg.Metrics.Prometheus.Enabled,
					Port:    cfg.Metrics.Prometheus.Port,
					Path:    cfg.Metrics.Prometheus.Path,
				},
				collector,
				log.WithComponent("metrics"),
			)
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				log.Error("prometheus metrics server error", logger.Error(err))
			}
		}()
		log.Info("prometheus metrics server started",
			logger.Int("port", cfg.Metrics.Prometheus.Port),
			logger.String("path", cfg.Metrics.Prometheus.Path))
	}

	var mqttPublisher *mqtt.Publisher
	if cfg.MQTT.Enabled {
		mqttPublisher = mqtt.New(
			mqtt.Config{
				Enabled:     cfg.MQTT.Enabled,
				Broker:      cfg.MQTT.Broker,
				TopicPrefix: cfg.MQTT.TopicPrefix,
				ClientID:    cfg.MQTT.ClientID,
				Username:    cfg.MQTT.Username,
				Password:    cfg.MQTT.Password,
				QoS:         cfg.MQTT.QoS,
				Retained:    cfg.MQTT.Retained,
			},
			log.WithComponent("mqtt"),
		)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := mqttPublisher.Start(ctx); err != nil && err != context.Canceled {
				log.Error("mqtt publisher error", logger.Error(err))
			}
		}()
		log.Info("mqtt publisher started",
			logger.String("broker", cfg.MQTT.Broker),
			logger.String("topic_prefix", cfg.MQTT.TopicPrefix))
	}

	channelName := cfg.Channel.Name
	if channelName == "" {
		channelName = "channel0"
	}

	telemetryHub := telemetry.NewHub(log.WithComponent("telemetry"))
	wg.Add(1)
	go func() {
		defer wg.Done()
		telemetryHub.Run(ctx)
	}()

	bus := channelstate.NewBus()
	subscribeMetrics(bus, collector, channelName)
	telemetryHub.SubscribeChannel(channelName, bus)
	if mqttPublisher != nil {
		subscribeMQTT(bus, mqttPublisher, channelName)
	}

	chMap := channelmap.New(toIntKeys(cfg.Channel.ChannelMap))

	channelType := mpt1327.Standard
	if cfg.Channel.ChannelType == "traffic" {
		channelType = mpt1327.Traffic
	}
	callTimeout := cfg.Channel.CallTimeout(mpt1327.DefaultCallTimeout)
	decoderState := mpt1327.New(bus, chMap, channelType, callTimeout)
	bus.Subscribe(decoderState.ReceiveDecoderStateEvent)

	decoder := nbfm.New(bus, nbfm.Config{
		Name:               channelName,
		ChannelBandwidthHz: cfg.Channel.ChannelBandwidthHz,
		OutputSampleRateHz: cfg.Channel.OutputSampleRateHz,
		SquelchAlpha:       cfg.Channel.Squelch.Alpha,
		SquelchThreshold:   cfg.Channel.Squelch.ThresholdDb,
		SquelchRamp:        cfg.Channel.Squelch.Ramp,
	})
	bus.Subscribe(func(event channelstate.Event) {
		if event.Type == channelstate.EventRequestReset {
			decoder.HandleRequestReset()
		}
	})
	decoder.HandleSourceEvent(*iqSampleRate)

	if *iqFrequencyHz > 0 {
		bus.Broadcast(channelstate.Event{
			Source:      decoder,
			Type:        channelstate.EventSourceFrequency,
			FrequencyHz: *iqFrequencyHz,
		})
	}

	if cfg.Web.Enabled {
		webServer := web.NewServer(cfg.Web, log.WithComponent("web"), telemetryHub, []string{channelName})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := webServer.Start(ctx); err != nil && err != context.Canceled {
				log.Error("web server error", logger.Error(err))
			}
		}()
		log.Info("web server started",
			logger.String("host", cfg.Web.Host),
			logger.Int("port", cfg.Web.Port))
	}

	if *messagesFile != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := replayMessages(ctx, *messagesFile, decoderState); err != nil {
				log.Error("message replay stopped", logger.Error(err))
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := decodeIQ(ctx, *iqInput, decoder, collector); err != nil && err != context.Canceled {
			log.Error("I/Q decode loop stopped", logger.Error(err))
		}
	}()

	log.Info("trunkcore initialized", logger.String("channel", channelName))

	sig := <-sigChan
	log.Info("received shutdown signal", logger.String("signal", sig.String()))

	cancel()

	if mqttPublisher != nil {
		mqttPublisher.Stop()
	}

	wg.Wait()
	log.Info("trunkcore stopped")
}

// subscribeMetrics feeds squelch transitions and call/traffic events into
// collector.
func subscribeMetrics(bus *channelstate.Bus, collector *metrics.Collector, channel string) {
	bus.Subscribe(func(event channelstate.Event) {
		switch event.Type {
		case channelstate.EventStart:
			collector.SquelchTransition(channel, "UNMUTE")
			collector.SetSquelchMuted(channel, false)
		case channelstate.EventEnd:
			collector.SquelchTransition(channel, "MUTE")
			collector.SetSquelchMuted(channel, true)
		case channelstate.EventCall:
			collector.CallEvent(event.Call.Type.String())
		case channelstate.EventTrafficChannelAllocation:
			collector.TrafficChannelAllocated()
		}
	})
}

// subscribeMQTT forwards call activity and traffic allocations to the MQTT
// publisher.
func subscribeMQTT(bus *channelstate.Bus, publisher *mqtt.Publisher, channel string) {
	bus.Subscribe(func(event channelstate.Event) {
		switch event.Type {
		case channelstate.EventCall:
			if err := publisher.PublishCallEvent(channel, event.Call); err != nil {
				return
			}
		case channelstate.EventTrafficChannelAllocation:
			_ = publisher.PublishTrafficAllocation(channel, event.Allocation)
		case channelstate.EventStart, channelstate.EventEnd:
			_ = publisher.PublishChannelState(channel, event)
		}
	})
}

func toIntKeys(m map[int]float64) map[int]float64 {
	if m == nil {
		return map[int]float64{}
	}
	return m
}

// decodeIQ reads interleaved float32 I/Q samples from path (or stdin when
// path is "-") in fixed-size chunks and feeds them through decoder until ctx
// is cancelled or the source is exhausted.
func decodeIQ(ctx context.Context, path string, decoder *nbfm.Decoder, collector *metrics.Collector) error {
	var reader io.Reader
	if path == "-" {
		reader = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open I/Q input: %w", err)
		}
		defer f.Close()
		reader = f
	}

	br := bufio.NewReaderSize(reader, 1<<20)
	const chunkSamples = 2000
	raw := make([]byte, chunkSamples*8)
	pool := sbuf.NewComplexPool(chunkSamples)

	defer func() {
		if r := recover(); r != nil {
			collector.DecoderPanic("iq")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := io.ReadFull(br, raw)
		if n > 0 {
			count := n / 8
			buf := pool.Get(count)
			samples := buf.Samples()
			for i := 0; i < count; i++ {
				re := math.Float32frombits(binary.LittleEndian.Uint32(raw[i*8:]))
				im := math.Float32frombits(binary.LittleEndian.Uint32(raw[i*8+4:]))
				samples[i] = complex(re, im)
			}
			decoder.Receive(buf)
		}

		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// replayMessages reads newline-delimited JSON mpt1327.Message values from
// path and feeds them into state until ctx is cancelled or the file is
// exhausted. Intended for replaying a captured control-channel transcript
// when no live bit-level demultiplexer is wired in.
func replayMessages(ctx context.Context, path string, state *mpt1327.DecoderState) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open messages file: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var msg mpt1327.Message
		if err := dec.Decode(&msg); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		state.Receive(msg)
		time.Sleep(time.Millisecond)
	}
}
