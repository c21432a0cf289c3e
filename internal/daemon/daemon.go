package daemon

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aelhadi/mudawin/internal/audio"
	"github.com/aelhadi/mudawin/internal/bus"
	"github.com/aelhadi/mudawin/internal/capture"
	"github.com/aelhadi/mudawin/internal/config"
	"github.com/aelhadi/mudawin/internal/export"
	"github.com/aelhadi/mudawin/internal/notify"
	"github.com/aelhadi/mudawin/internal/playback"
	"github.com/aelhadi/mudawin/internal/session"
	"github.com/aelhadi/mudawin/internal/store"
	"github.com/aelhadi/mudawin/internal/transcript"
)

type Daemon struct {
	configMgr *config.Manager
	notifier  notify.Notifier

	ctx    context.Context
	cancel context.CancelFunc

	assembler  *transcript.Assembler
	supervisor *session.Supervisor
	sidecar    *store.Sidecar
	drafts     *store.Store
	transport  *lazyTransport

	mu         sync.Mutex
	graph      *audio.Graph
	frames     <-chan audio.Frame
	recognizer capture.Recognizer
}

// Option customizes daemon construction.
type Option func(*Daemon)

// WithRecognizer wires a platform recognizer bridge for the recognizer
// capture variant.
func WithRecognizer(rec capture.Recognizer) Option {
	return func(d *Daemon) { d.recognizer = rec }
}

func New(opts ...Option) (*Daemon, error) {
	configMgr, err := config.NewManager()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize config: %w", err)
	}
	cfg := configMgr.GetConfig()

	storePath := cfg.Store.Path
	if storePath == "" {
		storePath, err = store.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	drafts, err := store.Open(storePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open draft store: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		configMgr: configMgr,
		notifier:  notify.ForType(cfg.Notifications.Type, cfg.Notifications.Enabled),
		ctx:       ctx,
		cancel:    cancel,
		assembler: transcript.NewAssembler(),
		drafts:    drafts,
		transport: &lazyTransport{},
	}
	for _, opt := range opts {
		opt(d)
	}

	// Restore the draft for the configured variant; absent means empty.
	draftKey := store.DraftKey(cfg.Capture.Variant)
	if draft, err := drafts.LoadDraft(draftKey); err != nil {
		log.Printf("daemon: restore draft: %v", err)
	} else if draft != "" {
		d.assembler.Seed(draft)
		log.Printf("daemon: restored draft (%d chars)", len(draft))
	}

	d.sidecar = store.NewSidecar(drafts, draftKey, cfg.Store.Debounce, cfg.Store.SavedWindow)
	d.assembler.Subscribe(d.sidecar.Note)

	coupler := playback.NewSynchronizer(d.transport, cfg.ToPlaybackPolicy())
	d.supervisor = session.New(cfg.Capture.Language, d.openSource, d.assembler, coupler, d.notifier)

	return d, nil
}

// openSource builds a fresh capture source for each session attempt. Mic-fed
// variants share the frame stream started at toggle time.
func (d *Daemon) openSource() (capture.Source, error) {
	cfg := d.configMgr.GetConfig()

	d.mu.Lock()
	frames := d.frames
	rec := d.recognizer
	d.mu.Unlock()

	return capture.New(cfg.ToCaptureConfig(), rec, frames)
}

func (d *Daemon) Run() error {
	if err := bus.CheckExistingDaemon(); err != nil {
		return err
	}

	ln, err := bus.Listen()
	if err != nil {
		return err
	}
	defer ln.Close()

	if err := bus.CreatePidFile(); err != nil {
		return fmt.Errorf("failed to create PID file: %w", err)
	}
	defer bus.RemovePidFile()

	if err := d.configMgr.StartWatching(d.ctx); err != nil {
		log.Printf("daemon: config watching disabled: %v", err)
	}

	go d.supervisor.Run(d.ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	go func() {
		sig := <-sigCh
		log.Printf("daemon: received signal %v, shutting down gracefully", sig)
		d.cancel()
	}()

	go func() {
		<-d.ctx.Done()
		ln.Close()
	}()

	log.Printf("daemon: started, listening on socket")

	for {
		c, err := ln.Accept()
		if err != nil {
			if d.ctx.Err() != nil {
				log.Printf("daemon: shutdown requested")
				d.shutdown()
				return nil
			}
			log.Printf("daemon: accept error: %v", err)
			d.shutdown()
			return fmt.Errorf("accept failed: %w", err)
		}
		go d.handle(c)
	}
}

func (d *Daemon) shutdown() {
	d.stopMic()
	d.sidecar.Close()
	d.transport.Close()
	d.configMgr.Stop()
	if err := d.drafts.Close(); err != nil {
		log.Printf("daemon: close draft store: %v", err)
	}
	audio.CloseGraph()
}

func (d *Daemon) handle(c net.Conn) {
	defer c.Close()

	line, err := bufio.NewReader(c).ReadString('\n')
	if err != nil {
		log.Printf("daemon: client read error: %v", err)
		fmt.Fprintf(c, "ERR read_error: %v\n", err)
		return
	}
	if len(line) == 0 {
		fmt.Fprint(c, "ERR empty\n")
		return
	}
	cmd := line[0]
	arg := bus.ParseArg(line)

	switch cmd {
	case 't':
		if err := d.toggle(); err != nil {
			fmt.Fprintf(c, "ERR toggle: %v\n", err)
			return
		}
		fmt.Fprint(c, "OK toggled\n")

	case 's':
		fmt.Fprintf(c, "STATUS state=%s save=%s chars=%d\n",
			d.supervisor.State(), d.sidecar.Status(), len(d.assembler.Buffer()))

	case 'x':
		fmt.Fprint(c, d.assembler.Display())

	case 'm':
		d.assembler.OnManualEdit(arg)
		fmt.Fprint(c, "OK edited\n")

	case 'c':
		d.assembler.OnClear()
		fmt.Fprint(c, "OK cleared\n")

	case 'l':
		if err := d.loadAudio(arg); err != nil {
			fmt.Fprintf(c, "ERR load: %v\n", err)
			return
		}
		fmt.Fprintf(c, "OK loaded %s\n", arg)

	case 'p':
		if err := d.togglePlayback(); err != nil {
			fmt.Fprintf(c, "ERR playback: %v\n", err)
			return
		}
		fmt.Fprint(c, "OK playback toggled\n")

	case 'e':
		path, err := d.export(arg)
		if err != nil {
			fmt.Fprintf(c, "ERR export: %v\n", err)
			return
		}
		fmt.Fprintf(c, "OK exported %s\n", path)

	case 'v':
		fmt.Fprintf(c, "STATUS proto=%s\n", bus.ProtoVer)

	case 'q':
		fmt.Fprint(c, "OK quitting\n")
		d.cancel()

	default:
		log.Printf("daemon: unknown command: %c", cmd)
		fmt.Fprintf(c, "ERR unknown=%q\n", cmd)
	}
}

func (d *Daemon) toggle() error {
	if d.supervisor.State().Active() {
		err := d.supervisor.Stop()
		d.stopMic()
		return err
	}

	if err := d.startMic(); err != nil {
		return err
	}
	if err := d.supervisor.Start(); err != nil {
		d.stopMic()
		return err
	}
	return nil
}

// startMic starts the shared capture graph when the configured variant
// consumes microphone frames.
func (d *Daemon) startMic() error {
	cfg := d.configMgr.GetConfig()
	if cfg.Capture.Variant == capture.VariantRecognizer {
		return nil // the platform engine owns its own audio path
	}

	graph := audio.OpenGraph(cfg.ToAudioConfig())
	frames, errCh, err := graph.Start(d.ctx)
	if err != nil {
		return fmt.Errorf("start microphone: %w", err)
	}

	d.mu.Lock()
	d.graph = graph
	d.frames = frames
	d.mu.Unlock()

	go func() {
		for err := range errCh {
			log.Printf("daemon: microphone error: %v", err)
		}
	}()
	return nil
}

func (d *Daemon) stopMic() {
	d.mu.Lock()
	graph := d.graph
	d.graph = nil
	d.frames = nil
	d.mu.Unlock()

	if graph != nil {
		graph.Stop()
	}
}

func (d *Daemon) loadAudio(path string) error {
	if path == "" {
		return fmt.Errorf("no file given")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("audio file: %w", err)
	}
	if err := d.transport.ensure(); err != nil {
		return err
	}
	return d.transport.Load(path)
}

func (d *Daemon) togglePlayback() error {
	if err := d.transport.ensure(); err != nil {
		return err
	}
	playing, err := d.transport.Playing()
	if err != nil {
		return err
	}
	if playing {
		return d.transport.Pause()
	}
	return d.transport.Play()
}

func (d *Daemon) export(arg string) (string, error) {
	parts := strings.Fields(arg)
	if len(parts) < 2 {
		return "", fmt.Errorf("usage: export <format> <base-path>")
	}
	format, err := export.ParseFormat(parts[0])
	if err != nil {
		return "", err
	}
	base := strings.Join(parts[1:], " ")
	return export.Write(d.assembler.Buffer(), base, format)
}

// lazyTransport starts mpv on first use so the daemon runs fine on systems
// without it until playback is actually requested.
type lazyTransport struct {
	mu    sync.Mutex
	inner playback.Transport
}

func (t *lazyTransport) ensure() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inner != nil {
		return nil
	}
	mpv, err := playback.StartMPV()
	if err != nil {
		return fmt.Errorf("start player: %w", err)
	}
	t.inner = mpv
	return nil
}

func (t *lazyTransport) get() playback.Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inner
}

func (t *lazyTransport) Load(path string) error {
	if p := t.get(); p != nil {
		return p.Load(path)
	}
	return fmt.Errorf("no player")
}

func (t *lazyTransport) Play() error {
	if p := t.get(); p != nil {
		return p.Play()
	}
	return fmt.Errorf("no player")
}

func (t *lazyTransport) Pause() error {
	if p := t.get(); p != nil {
		return p.Pause()
	}
	return fmt.Errorf("no player")
}

func (t *lazyTransport) Playing() (bool, error) {
	if p := t.get(); p != nil {
		return p.Playing()
	}
	return false, nil
}

func (t *lazyTransport) Position() (pos time.Duration, err error) {
	if p := t.get(); p != nil {
		return p.Position()
	}
	return 0, fmt.Errorf("no player")
}

func (t *lazyTransport) Duration() (time.Duration, error) {
	if p := t.get(); p != nil {
		return p.Duration()
	}
	return 0, fmt.Errorf("no player")
}

func (t *lazyTransport) Seek(pos time.Duration) error {
	if p := t.get(); p != nil {
		return p.Seek(pos)
	}
	return fmt.Errorf("no player")
}

func (t *lazyTransport) SetRate(rate float64) error {
	if p := t.get(); p != nil {
		return p.SetRate(rate)
	}
	return fmt.Errorf("no player")
}

func (t *lazyTransport) Close() error {
	t.mu.Lock()
	inner := t.inner
	t.inner = nil
	t.mu.Unlock()
	if inner != nil {
		return inner.Close()
	}
	return nil
}
