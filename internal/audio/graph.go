package audio

import (
	"context"
	"fmt"
	"sync"
)

// Graph is the process-wide capture graph: one microphone recorder teeing
// into one spectrum analyzer. There is exactly one per process; rebuilding
// it over an already-connected recorder fails on some platforms, so OpenGraph
// returns the existing instance when one is alive.
type Graph struct {
	recorder *Recorder
	analyzer *Analyzer

	wg sync.WaitGroup
}

var (
	graphMu sync.Mutex
	graph   *Graph
)

// OpenGraph returns the shared capture graph, constructing it on first use.
func OpenGraph(cfg Config) *Graph {
	graphMu.Lock()
	defer graphMu.Unlock()

	if graph != nil {
		return graph
	}
	graph = &Graph{
		recorder: NewRecorder(cfg),
		analyzer: NewAnalyzer(2048),
	}
	return graph
}

// CloseGraph tears down the shared graph so a later OpenGraph builds a
// fresh one. Safe to call when no graph exists.
func CloseGraph() {
	graphMu.Lock()
	g := graph
	graph = nil
	graphMu.Unlock()

	if g != nil {
		_ = g.recorder.Stop()
		g.recorder.Wait()
		g.wg.Wait()
	}
}

// Analyzer exposes the live spectrum feed for visualizers.
func (g *Graph) Analyzer() *Analyzer {
	return g.analyzer
}

// Start begins microphone capture. Frames are fed to the analyzer and
// forwarded to the returned channel, which closes when capture ends.
func (g *Graph) Start(ctx context.Context) (<-chan Frame, <-chan error, error) {
	if g.recorder.IsRecording() {
		return nil, nil, fmt.Errorf("capture graph already started")
	}

	rawCh, errCh, err := g.recorder.Start(ctx)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan Frame, cap(rawCh))
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer close(out)
		for frame := range rawCh {
			g.analyzer.Feed(frame)
			select {
			case out <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, errCh, nil
}

// Stop ends microphone capture without destroying the graph.
func (g *Graph) Stop() {
	_ = g.recorder.Stop()
	g.recorder.Wait()
}
