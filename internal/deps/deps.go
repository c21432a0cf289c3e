package deps

import (
	"os/exec"
	"strings"
)

// Status represents the installation status of an external dependency
type Status struct {
	Installed bool
	Path      string
	Version   string
}

// Dependency is one external tool the daemon may shell out to.
type Dependency struct {
	Name     string
	Required bool
	Purpose  string
	check    func() Status
}

// All returns every external dependency with its current status check.
func All() []Dependency {
	return []Dependency{
		{Name: "pw-record", Required: true, Purpose: "microphone capture (PipeWire)", check: CheckPipeWire},
		{Name: "mpv", Required: false, Purpose: "synchronized audio playback", check: CheckMPV},
		{Name: "notify-send", Required: false, Purpose: "desktop notifications", check: CheckNotifySend},
	}
}

// Check resolves the dependency's status.
func (d Dependency) Check() Status {
	return d.check()
}

// CheckPipeWire checks if pw-record is installed and returns its status
func CheckPipeWire() Status {
	return lookupWithVersion("pw-record", "--version")
}

// CheckMPV checks if mpv is installed and returns its status
func CheckMPV() Status {
	return lookupWithVersion("mpv", "--version")
}

// CheckNotifySend checks if notify-send is installed. It has no usable
// version flag, so only presence is reported.
func CheckNotifySend() Status {
	path, err := exec.LookPath("notify-send")
	if err != nil {
		return Status{Installed: false}
	}
	return Status{Installed: true, Path: path}
}

func lookupWithVersion(name, versionFlag string) Status {
	path, err := exec.LookPath(name)
	if err != nil {
		return Status{Installed: false}
	}

	status := Status{
		Installed: true,
		Path:      path,
	}

	// first output line carries the version banner
	output, err := exec.Command(path, versionFlag).Output()
	if err == nil {
		lines := strings.Split(string(output), "\n")
		if len(lines) > 0 {
			status.Version = strings.TrimSpace(lines[0])
		}
	}

	return status
}
