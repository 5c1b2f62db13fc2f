package metrics

type Counter interface {
	Inc()
	Add(delta float64)
}

type Gauge interface {
	Set(value float64)
}

type Factory interface {
	CreateCounter(name string, description string) (Counter, error)

	CreateGauge(name string, description string) (Gauge, error)

	Start() error

	Stop() error
}
