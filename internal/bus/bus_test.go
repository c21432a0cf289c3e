package bus

import (
	"path/filepath"
	"testing"
)

func TestParseArg(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected string
	}{
		{"no argument", "t\n", ""},
		{"bare command without newline", "t", ""},
		{"simple argument", "l /tmp/audio.mp3\n", "/tmp/audio.mp3"},
		{"argument with spaces", "e pdf /home/user/my file\n", "pdf /home/user/my file"},
		{"escaped newlines restored", "m سطر\\nآخر\n", "سطر\nآخر"},
		{"empty line", "\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseArg(tt.line); got != tt.expected {
				t.Errorf("ParseArg(%q) = %q, expected %q", tt.line, got, tt.expected)
			}
		})
	}
}

func TestPathFunctions(t *testing.T) {
	sock, err := SockPath()
	if err != nil {
		t.Fatalf("SockPath failed: %v", err)
	}
	if !filepath.IsAbs(sock) {
		t.Error("SockPath should return an absolute path")
	}
	if filepath.Base(sock) != SockName {
		t.Errorf("SockPath ends with %s, expected %s", filepath.Base(sock), SockName)
	}

	pid, err := PidPath()
	if err != nil {
		t.Fatalf("PidPath failed: %v", err)
	}
	if filepath.Base(pid) != PidName {
		t.Errorf("PidPath ends with %s, expected %s", filepath.Base(pid), PidName)
	}
	if filepath.Dir(pid) != filepath.Dir(sock) {
		t.Error("socket and pid file should share a directory")
	}
}

func TestConstants(t *testing.T) {
	if SockName == "" || PidName == "" || ProtoVer == "" {
		t.Error("bus constants must not be empty")
	}
}
