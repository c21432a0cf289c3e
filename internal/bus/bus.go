package bus

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const SockName = "control.sock"
const PidName = "mudawin.pid"
const ProtoVer = "0.1"

// ~/.cache/mudawin/control.sock
func SockPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	hd := filepath.Join(dir, "mudawin")
	return filepath.Join(hd, SockName), nil
}

// ~/.cache/mudawin/mudawin.pid
func PidPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	hd := filepath.Join(dir, "mudawin")
	return filepath.Join(hd, PidName), nil
}

func Listen() (net.Listener, error) {
	sp, err := SockPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(sp), 0o700); err != nil {
		return nil, err
	}
	_ = os.Remove(sp) // stale socket from last run
	return net.Listen("unix", sp)
}

func Dial() (net.Conn, error) {
	sp, err := SockPath()
	if err != nil {
		return nil, err
	}
	return net.Dial("unix", sp)
}

// SendCommand sends a single-byte command with no argument.
func SendCommand(cmd byte) (string, error) {
	return SendCommandArg(cmd, "")
}

// SendCommandArg sends a command with an optional one-line argument. The
// response is everything up to connection close, so multi-line replies
// (like the transcript itself) come through intact.
func SendCommandArg(cmd byte, arg string) (string, error) {
	c, err := Dial()
	if err != nil {
		return "", err
	}
	defer c.Close()

	line := string(cmd)
	if arg != "" {
		line += " " + strings.ReplaceAll(arg, "\n", "\\n")
	}
	if _, err := c.Write([]byte(line + "\n")); err != nil {
		return "", err
	}

	var sb strings.Builder
	reader := bufio.NewReader(c)
	for {
		chunk, err := reader.ReadString('\n')
		sb.WriteString(chunk)
		if err != nil {
			break
		}
	}
	return sb.String(), nil
}

// ParseArg extracts the argument from a received command line, undoing the
// newline escaping applied by SendCommandArg.
func ParseArg(line string) string {
	line = strings.TrimSuffix(line, "\n")
	if len(line) < 2 {
		return ""
	}
	arg := strings.TrimPrefix(line[1:], " ")
	return strings.ReplaceAll(arg, "\\n", "\n")
}

func CheckExistingDaemon() error {
	pidPath, err := PidPath()
	if err != nil {
		return err
	}

	pidData, err := os.ReadFile(pidPath)
	if os.IsNotExist(err) {
		return nil // no existing daemon
	}
	if err != nil {
		return err
	}

	pid, err := strconv.Atoi(string(pidData))
	if err != nil {
		return nil // invalid pid file, assume stale
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}

	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return nil // process not alive, stale pid file
	}

	return fmt.Errorf("daemon already running with PID %d", pid)
}

func CreatePidFile() error {
	pidPath, err := PidPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(pidPath), 0o700); err != nil {
		return err
	}

	pid := os.Getpid()
	return os.WriteFile(pidPath, []byte(strconv.Itoa(pid)), 0o600)
}

func RemovePidFile() error {
	pidPath, err := PidPath()
	if err != nil {
		return err
	}
	return os.Remove(pidPath)
}
