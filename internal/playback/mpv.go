package playback

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"
)

// MPV drives a headless mpv process over its JSON IPC socket. It is the
// production Transport; decoding, seeking and clocking stay inside mpv.
type MPV struct {
	cmd    *exec.Cmd
	conn   net.Conn
	socket string

	mu      sync.Mutex
	nextID  int
	pending map[int]chan mpvResponse
	wg      sync.WaitGroup
	closed  bool
}

type mpvRequest struct {
	Command   []any `json:"command"`
	RequestID int   `json:"request_id"`
}

type mpvResponse struct {
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
	RequestID int             `json:"request_id"`
	Event     string          `json:"event"`
}

// StartMPV launches mpv idle with no video and connects to its IPC socket.
func StartMPV() (*MPV, error) {
	if _, err := exec.LookPath("mpv"); err != nil {
		return nil, fmt.Errorf("mpv not found: %w", err)
	}

	dir, err := os.UserCacheDir()
	if err != nil {
		return nil, err
	}
	socket := filepath.Join(dir, "mudawin", "mpv.sock")
	if err := os.MkdirAll(filepath.Dir(socket), 0o700); err != nil {
		return nil, err
	}
	_ = os.Remove(socket)

	cmd := exec.Command("mpv",
		"--idle=yes",
		"--no-video",
		"--no-terminal",
		"--pause",
		"--input-ipc-server="+socket,
	)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mpv: %w", err)
	}

	// The socket appears shortly after mpv starts.
	var conn net.Conn
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("unix", socket)
		if err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if conn == nil {
		_ = cmd.Process.Kill()
		return nil, fmt.Errorf("connect mpv ipc: %w", err)
	}

	m := &MPV{
		cmd:     cmd,
		conn:    conn,
		socket:  socket,
		pending: make(map[int]chan mpvResponse),
	}
	m.wg.Add(1)
	go m.readLoop()
	return m, nil
}

func (m *MPV) readLoop() {
	defer m.wg.Done()

	scanner := bufio.NewScanner(m.conn)
	for scanner.Scan() {
		var resp mpvResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			continue
		}
		if resp.Event != "" {
			if resp.Event == "end-file" {
				log.Printf("playback: mpv reached end of file")
			}
			continue
		}

		m.mu.Lock()
		ch, ok := m.pending[resp.RequestID]
		if ok {
			delete(m.pending, resp.RequestID)
		}
		m.mu.Unlock()
		if ok {
			ch <- resp
		}
	}

	// Socket gone; fail anything still waiting.
	m.mu.Lock()
	for id, ch := range m.pending {
		delete(m.pending, id)
		close(ch)
	}
	m.mu.Unlock()
}

func (m *MPV) request(out any, command ...any) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("mpv closed")
	}
	m.nextID++
	id := m.nextID
	ch := make(chan mpvResponse, 1)
	m.pending[id] = ch

	payload, err := json.Marshal(mpvRequest{Command: command, RequestID: id})
	if err != nil {
		delete(m.pending, id)
		m.mu.Unlock()
		return err
	}
	_, err = m.conn.Write(append(payload, '\n'))
	if err != nil {
		delete(m.pending, id)
		m.mu.Unlock()
		return fmt.Errorf("mpv write: %w", err)
	}
	m.mu.Unlock()

	select {
	case resp, ok := <-ch:
		if !ok {
			return fmt.Errorf("mpv connection lost")
		}
		if resp.Error != "success" {
			return fmt.Errorf("mpv: %s", resp.Error)
		}
		if out != nil && len(resp.Data) > 0 {
			return json.Unmarshal(resp.Data, out)
		}
		return nil
	case <-time.After(3 * time.Second):
		return fmt.Errorf("mpv request timeout")
	}
}

func (m *MPV) Load(path string) error {
	return m.request(nil, "loadfile", path)
}

func (m *MPV) Play() error {
	return m.request(nil, "set_property", "pause", false)
}

func (m *MPV) Pause() error {
	return m.request(nil, "set_property", "pause", true)
}

func (m *MPV) Playing() (bool, error) {
	var paused bool
	if err := m.request(&paused, "get_property", "pause"); err != nil {
		return false, err
	}
	return !paused, nil
}

func (m *MPV) Position() (time.Duration, error) {
	var secs float64
	if err := m.request(&secs, "get_property", "time-pos"); err != nil {
		return 0, err
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func (m *MPV) Duration() (time.Duration, error) {
	var secs float64
	if err := m.request(&secs, "get_property", "duration"); err != nil {
		return 0, err
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func (m *MPV) Seek(pos time.Duration) error {
	return m.request(nil, "set_property", "time-pos", pos.Seconds())
}

func (m *MPV) SetRate(rate float64) error {
	return m.request(nil, "set_property", "speed", rate)
}

func (m *MPV) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	_ = m.request(nil, "quit")

	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.conn.Close()
	err := m.cmd.Wait()
	m.wg.Wait()
	_ = os.Remove(m.socket)
	return err
}
