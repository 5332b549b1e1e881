package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// register регистрирует коллектор или возвращает уже зарегистрированный
// с тем же дескриптором. Конфликт дескрипторов или типов приводит к панике,
// как и в promauto.
func register[C prometheus.Collector](registerer prometheus.Registerer, collector C) C {
	err := registerer.Register(collector)
	if err == nil {
		return collector
	}

	var already prometheus.AlreadyRegisteredError
	if !errors.As(err, &already) {
		panic(fmt.Sprintf("register collector: %v", err))
	}
	existing, ok := already.ExistingCollector.(C)
	if !ok {
		panic(fmt.Sprintf("collector already registered with type %T", already.ExistingCollector))
	}
	return existing
}

func counter(r prometheus.Registerer, name, help string) prometheus.Counter {
	return register(r, prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help}))
}

func counterVec(r prometheus.Registerer, name, help string, labels ...string) *prometheus.CounterVec {
	return register(r, prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels))
}

func gaugeVec(r prometheus.Registerer, name, help string, labels ...string) *prometheus.GaugeVec {
	return register(r, prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labels))
}

func histogram(r prometheus.Registerer, name, help string, buckets []float64) prometheus.Histogram {
	return register(r, prometheus.NewHistogram(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}))
}
