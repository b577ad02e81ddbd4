// Package pipeline contains the alert fan-out stages: the forecast importer,
// the subscriber partitioner, the notification decider, and the deliverer,
// plus the queue worker loop that drives the latter two.
package pipeline
