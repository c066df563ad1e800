package promclient

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var OpenOrderBookGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "coinbase_open_order_books",
		Help: "number of locally maintained order books",
	},
)

var SequenceGapCounter = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "coinbase_sequence_gaps_total",
		Help: "sequence gaps detected on the book stream",
	},
)

var ResyncCounter = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "coinbase_book_resyncs_total",
		Help: "snapshot resynchronizations scheduled after a gap",
	},
)

var DroppedMessageCounter = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "coinbase_dropped_messages_total",
		Help: "inbound messages dropped as malformed or unexpected",
	},
)

func StartPromClientServer(addr string) {
	reg := prometheus.NewRegistry()

	reg.MustRegister(OpenOrderBookGauge)
	reg.MustRegister(SequenceGapCounter)
	reg.MustRegister(ResyncCounter)
	reg.MustRegister(DroppedMessageCounter)
	reg.MustRegister(collectors.NewGoCollector())

	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	logrus.Infof("prometheus server listening at %s", addr)

	if err := http.ListenAndServe(addr, nil); err != nil {
		logrus.Fatalf("failed to serve: %v", err)
	}
}
