package node

import (
	"io/ioutil"
	"os"
	"time"

	"github.com/evergraph/evergraph/src/config"
	"github.com/evergraph/evergraph/src/graph"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
)

// Pruner periodically removes the oldest layers of the graph, keeping only
// the most recent ones. Every pruned event is appended to a replay log before
// removal, so pruned history can be reconstructed offline.
type Pruner struct {
	graph *graph.Graph

	interval   time.Duration
	keepLayers int

	replay *logrus.Logger

	shutdownCh chan struct{}

	logger *logrus.Entry
}

// NewPruner builds a Pruner from the node configuration. A zero interval
// disables pruning entirely; the Run loop then exits immediately.
func NewPruner(g *graph.Graph, conf *config.Config, logger *logrus.Entry) *Pruner {
	p := &Pruner{
		graph:      g,
		interval:   conf.PruneInterval,
		keepLayers: conf.PruneKeepLayers,
		shutdownCh: make(chan struct{}),
		logger:     logger,
	}

	if conf.PruneInterval > 0 && !conf.NoReplayLog {
		p.replay = newReplayLogger(conf.ReplayLogFile(), logger)
	}

	return p
}

// newReplayLogger returns a logger that writes JSON lines to the replay log
// file only. When the file cannot be opened, pruning proceeds without a
// replay log rather than blocking the node.
func newReplayLogger(path string, logger *logrus.Entry) *logrus.Logger {
	replay := logrus.New()
	replay.Out = ioutil.Discard
	replay.Level = logrus.InfoLevel

	if _, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666); err != nil {
		logger.WithFields(logrus.Fields{
			"path":  path,
			"error": err,
		}).Error("Failed to open replay log, pruning without it")
		return nil
	}

	pathMap := lfshook.PathMap{
		logrus.InfoLevel: path,
	}

	replay.Hooks.Add(lfshook.NewHook(
		pathMap,
		&logrus.JSONFormatter{},
	))

	return replay
}

// Run triggers a prune pass every interval until shutdown.
func (p *Pruner) Run() {
	if p.interval == 0 {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.prune()
		case <-p.shutdownCh:
			return
		}
	}
}

// Shutdown stops the Run loop.
func (p *Pruner) Shutdown() {
	close(p.shutdownCh)
}

func (p *Pruner) prune() {
	pruned, err := p.graph.PruneLayers(p.keepLayers)
	if err != nil {
		p.logger.WithField("error", err).Error("PruneLayers()")
		return
	}

	if len(pruned) == 0 {
		return
	}

	for _, event := range pruned {
		p.record(event)
	}

	p.logger.WithFields(logrus.Fields{
		"events":      len(pruned),
		"keep_layers": p.keepLayers,
	}).Debug("Pruned oldest layers")
}

// record appends one pruned event to the replay log. The fields carry the
// full hashed form of the event, so it can be re-inserted verbatim.
func (p *Pruner) record(event *graph.Event) {
	if p.replay == nil {
		return
	}

	p.replay.WithFields(logrus.Fields{
		"id":        event.Hex(),
		"layer":     event.Layer(),
		"timestamp": event.Timestamp,
		"content":   event.Content,
		"parents":   event.Parents,
	}).Info("pruned")
}
