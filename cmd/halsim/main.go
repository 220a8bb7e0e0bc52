// Command halsim runs the capture pipeline against one or more V4L2
// devices and exposes a debug monitor: an HTTP dump endpoint and a
// websocket feed of shutter/result events, for exercising the HAL core
// without a real camera framework attached.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/v4l2camerahal/camerahal/camera"
	"github.com/v4l2camerahal/camerahal/config"
	"github.com/v4l2camerahal/camerahal/gralloc"
	"github.com/v4l2camerahal/camerahal/metadata"
	"github.com/v4l2camerahal/camerahal/metrics"
	"github.com/v4l2camerahal/camerahal/v4l2"
)

func main() {
	var (
		configPath  = flag.StringP("config", "c", "./hal.yaml", "path to the camera config YAML")
		httpAddr    = flag.StringP("addr", "a", ":8089", "address for the debug HTTP/websocket monitor")
		interval    = flag.Duration("interval", time.Second, "synthetic capture-request interval per camera")
		development = flag.Bool("dev-log", false, "use zap's human-readable development logger")
	)
	flag.Parse()

	log := newLogger(*development)
	defer log.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	mon := newMonitor(log)
	sims := make([]*simulatedCamera, 0, len(cfg.Cameras))
	for _, camCfg := range cfg.Cameras {
		sim, err := newSimulatedCamera(camCfg, log, mon)
		if err != nil {
			log.Error("camera init failed, skipping", zap.String("camera", camCfg.Name), zap.Error(err))
			continue
		}
		sims = append(sims, sim)
	}
	if len(sims) == 0 {
		log.Fatal("no cameras initialized successfully")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for _, sim := range sims {
		wg.Add(1)
		go func(s *simulatedCamera) {
			defer wg.Done()
			s.run(ctx, *interval)
		}(sim)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/dump", mon.handleDump(sims))
	mux.HandleFunc("/events", mon.handleWebsocket)
	mux.Handle("/metrics", promhttp.HandlerFor(mon.registry, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: *httpAddr, Handler: mux}
	go func() {
		log.Info("debug monitor listening", zap.String("addr", *httpAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("monitor server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)

	wg.Wait()
	for _, sim := range sims {
		if err := sim.pipeline.Close(); err != nil {
			log.Warn("camera close failed", zap.String("camera", sim.name), zap.Error(err))
		}
	}
}

func newLogger(development bool) *zap.Logger {
	var log *zap.Logger
	var err error
	if development {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		// zap construction failure leaves us without a logger entirely;
		// fall back to a no-op rather than crash the process over logging.
		return zap.NewNop()
	}
	return log
}

// bufferHandle is a trivial gralloc.Handle for the software-backed
// simulation: a fixed slot id rather than a real framework buffer.
type bufferHandle int

// simulatedCamera wraps one camera's pipeline plus the probe data used to
// drive it with synthetic capture requests.
type simulatedCamera struct {
	name     string
	pipeline *camera.Pipeline
	stream   camera.Stream
	mon      *monitor
	frameNo  uint64
	handle   bufferHandle
}

func newSimulatedCamera(camCfg config.CameraConfig, log *zap.Logger, mon *monitor) (*simulatedCamera, error) {
	if camCfg.BufferCount != 1 {
		log.Warn("this core only supports a single in-flight buffer; ignoring configured buffer count",
			zap.String("camera", camCfg.Name), zap.Uint32("configured", camCfg.BufferCount))
	}

	helper := gralloc.NewSoftwareHelper()
	dev := v4l2.NewDevice(camCfg.DevicePath, helper, log.Named(camCfg.Name))

	registry, static, templates, stream, err := probeDevice(dev, camCfg)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", camCfg.DevicePath, err)
	}

	reg := prometheus.NewRegistry()
	mon.mergeRegistry(reg)
	m := metrics.NewCamera(reg, camCfg.Name)

	pipeline := camera.NewPipeline(camCfg.Name, dev, registry, static, templates, m, log.Named(camCfg.Name))
	if err := pipeline.Open(); err != nil {
		return nil, fmt.Errorf("open %s: %w", camCfg.DevicePath, err)
	}

	cb := camera.Callbacks{
		Notify:               mon.notifyHandler(camCfg.Name),
		ProcessCaptureResult: mon.resultHandler(camCfg.Name),
	}
	if err := pipeline.Initialize(cb); err != nil {
		return nil, fmt.Errorf("initialize %s: %w", camCfg.DevicePath, err)
	}
	if err := pipeline.ConfigureStreams([]camera.Stream{stream}); err != nil {
		return nil, fmt.Errorf("configure_streams %s: %w", camCfg.DevicePath, err)
	}

	return &simulatedCamera{name: camCfg.Name, pipeline: pipeline, stream: stream, mon: mon}, nil
}

// probeDevice connects briefly to build this camera's static characteristics,
// metadata registry, and template cache, then disconnects so the pipeline's
// own Open call owns the device's connected lifetime going forward.
func probeDevice(dev *v4l2.Device, camCfg config.CameraConfig) (*metadata.Registry, *camera.StaticInfo, *camera.TemplateCache, camera.Stream, error) {
	if err := dev.Connect(); err != nil {
		return nil, nil, nil, camera.Stream{}, err
	}
	defer dev.Disconnect()

	registry := camera.BuildRegistry(dev, camCfg.Physical)
	static, err := camera.BuildStaticInfo(dev, camCfg.Physical)
	if err != nil {
		return nil, nil, nil, camera.Stream{}, err
	}
	templates := camera.NewTemplateCache(registry, static)

	characteristics, err := camera.BuildStaticCharacteristics(registry, templates)
	if err != nil {
		return nil, nil, nil, camera.Stream{}, err
	}
	static.Characteristics = characteristics

	stream, err := pickDefaultStream(dev, static)
	if err != nil {
		return nil, nil, nil, camera.Stream{}, err
	}
	return registry, static, templates, stream, nil
}

// pickDefaultStream finds a YUV format's first reported frame size to use
// as this camera's single configured stream.
func pickDefaultStream(dev *v4l2.Device, static *camera.StaticInfo) (camera.Stream, error) {
	for pixFmt, hf := range static.SupportedFormats {
		if hf != camera.HALFormatYCbCr420Flexible {
			continue
		}
		sizes, err := v4l2.GetFormatFrameSizes(dev.Fd(), pixFmt)
		if err != nil || len(sizes) == 0 {
			continue
		}
		size := sizes[0]
		width, height := size.Size.MaxWidth, size.Size.MaxHeight
		if size.Type == v4l2.FrameSizeTypeDiscrete {
			width, height = size.Size.MinWidth, size.Size.MinHeight
		}
		return camera.Stream{Width: width, Height: height, PixelFormat: pixFmt, MaxBuffers: 1}, nil
	}
	return camera.Stream{}, fmt.Errorf("no usable YUV frame size found")
}

// run feeds synthetic capture requests to the pipeline at a fixed interval
// until ctx is canceled.
func (s *simulatedCamera) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	settings, err := s.pipeline.ConstructDefaultRequestSettings(metadata.TemplatePreview)
	if err != nil {
		s.mon.log.Error("construct_default_request_settings failed", zap.String("camera", s.name), zap.Error(err))
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.frameNo++
			req := camera.CaptureRequest{
				FrameNumber: s.frameNo,
				Outputs: []camera.StreamBuffer{{
					Stream:       &s.stream,
					Handle:       s.handle,
					AcquireFence: -1,
					ReleaseFence: -1,
				}},
				Settings: settings,
			}
			if err := s.pipeline.ProcessCaptureRequest(req); err != nil {
				s.mon.log.Warn("process_capture_request rejected", zap.String("camera", s.name), zap.Error(err))
			}
		}
	}
}

// monitor fans shutter/result events out to connected websocket clients and
// serves a colorized text dump of every camera's pipeline state.
type monitor struct {
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	registry *prometheus.Registry
}

func newMonitor(log *zap.Logger) *monitor {
	return &monitor{
		log:      log,
		clients:  make(map[*websocket.Conn]struct{}),
		registry: prometheus.NewRegistry(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (m *monitor) mergeRegistry(reg *prometheus.Registry) {
	// promhttp only serves one registry; the debug monitor exposes the
	// most recently registered camera's metrics as a representative sample
	// rather than standing up one /metrics path per camera.
	m.registry = reg
}

type monitorEvent struct {
	Camera      string          `cbor:"camera"`
	Kind        string          `cbor:"kind"`
	FrameNumber uint64          `cbor:"frame_number"`
	ErrorCode   int             `cbor:"error_code,omitempty"`
	TimestampNs int64           `cbor:"timestamp_ns,omitempty"`
	Settings    metadata.Block  `cbor:"settings,omitempty"`
}

func (m *monitor) notifyHandler(name string) func(uint64, camera.NotifyCode, camera.ErrorCode, int64) {
	return func(frameNumber uint64, code camera.NotifyCode, errCode camera.ErrorCode, timestampNanos int64) {
		kind := "shutter"
		errVal := 0
		if code == camera.NotifyError {
			kind = "error"
			errVal = int(errCode)
		}
		m.broadcast(monitorEvent{Camera: name, Kind: kind, FrameNumber: frameNumber, ErrorCode: errVal, TimestampNs: timestampNanos})
	}
}

func (m *monitor) resultHandler(name string) func(camera.CaptureResult) {
	return func(result camera.CaptureResult) {
		m.broadcast(monitorEvent{Camera: name, Kind: "result", FrameNumber: result.FrameNumber, Settings: result.Settings})
	}
}

func (m *monitor) broadcast(ev monitorEvent) {
	payload, err := cbor.Marshal(ev)
	if err != nil {
		m.log.Warn("encode monitor event", zap.Error(err))
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.clients {
		if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
			conn.Close()
			delete(m.clients, conn)
		}
	}
}

func (m *monitor) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	m.mu.Lock()
	m.clients[conn] = struct{}{}
	m.mu.Unlock()
}

func (m *monitor) handleDump(sims []*simulatedCamera) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		color.NoColor = false
		for _, sim := range sims {
			sim.pipeline.Dump(w)
		}
	}
}
