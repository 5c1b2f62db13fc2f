package prometheus

import (
	"net"
	"net/http"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/squareup/datatable/conf"
	"github.com/squareup/datatable/metrics"
)

// Factory creates prometheus metrics in its own registry and serves them over HTTP while started.
type Factory struct {
	config     conf.Config
	lock       sync.Mutex
	registry   *prometheus.Registry
	httpServer *http.Server
	listener   net.Listener
	started    bool
}

func NewFactory(config conf.Config) *Factory {
	return &Factory{config: config, registry: prometheus.NewRegistry()}
}

func (f *Factory) CreateCounter(name string, description string) (metrics.Counter, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if !f.started {
		return nil, errors.New("not started")
	}
	return promauto.With(f.registry).NewCounter(prometheus.CounterOpts{
		Name: name,
		Help: description,
	}), nil
}

func (f *Factory) CreateGauge(name string, description string) (metrics.Gauge, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if !f.started {
		return nil, errors.New("not started")
	}
	return promauto.With(f.registry).NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: description,
	}), nil
}

func (f *Factory) Start() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.started {
		return errors.New("already started")
	}
	listenAddr := conf.DefaultMetricsListenAddr
	if f.config.MetricsListenAddr != "" {
		listenAddr = f.config.MetricsListenAddr
	}
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return errors.WithStack(err)
	}
	f.listener = ln
	f.httpServer = &http.Server{Handler: promhttp.HandlerFor(f.registry, promhttp.HandlerOpts{})}
	f.started = true
	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Errorf("prometheus http export server failed to listen %v", err)
		}
	}(f.httpServer)
	log.Debugf("Started prometheus http server on address %s", ln.Addr())
	return nil
}

// Addr returns the address the HTTP server is listening on, or nil if not started.
func (f *Factory) Addr() net.Addr {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.listener == nil {
		return nil
	}
	return f.listener.Addr()
}

func (f *Factory) Stop() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if !f.started {
		return errors.New("not started")
	}
	f.started = false
	f.listener = nil
	if f.httpServer != nil {
		return f.httpServer.Close()
	}
	return nil
}
