// Package sinks implements concrete progress consumers: Prometheus collectors
// (optionally exported to a node_exporter textfile) and structured logging.
package sinks
