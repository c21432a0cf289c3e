package deps

import (
	"os/exec"
	"testing"
)

func TestCheckPipeWire(t *testing.T) {
	status := CheckPipeWire()

	// behavior depends on system - just verify consistent structure
	if status.Installed {
		if status.Path == "" {
			t.Error("installed but path empty")
		}
	} else {
		if status.Path != "" {
			t.Error("not installed but path non-empty")
		}
	}
}

func TestCheckMPV_NotInstalled(t *testing.T) {
	_, err := exec.LookPath("mpv")
	if err != nil {
		status := CheckMPV()
		if status.Installed {
			t.Error("expected Installed=false when mpv not in PATH")
		}
		if status.Path != "" {
			t.Error("expected empty path when not installed")
		}
	} else {
		t.Skip("mpv is installed, can't test not-installed case")
	}
}

func TestCheckNotifySend(t *testing.T) {
	status := CheckNotifySend()
	if status.Installed && status.Path == "" {
		t.Error("installed but path empty")
	}
}

func TestAll(t *testing.T) {
	all := All()
	if len(all) == 0 {
		t.Fatal("All returned no dependencies")
	}

	seen := map[string]bool{}
	required := 0
	for _, d := range all {
		if d.Name == "" || d.Purpose == "" {
			t.Errorf("dependency %+v missing name or purpose", d)
		}
		if seen[d.Name] {
			t.Errorf("duplicate dependency %s", d.Name)
		}
		seen[d.Name] = true
		if d.Required {
			required++
		}
		d.Check() // must not panic
	}
	if !seen["pw-record"] {
		t.Error("pw-record missing from dependency list")
	}
	if required == 0 {
		t.Error("at least one dependency should be required")
	}
}
