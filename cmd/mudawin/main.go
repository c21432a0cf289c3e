package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aelhadi/mudawin/internal/bus"
	"github.com/aelhadi/mudawin/internal/config"
	"github.com/aelhadi/mudawin/internal/daemon"
	"github.com/aelhadi/mudawin/internal/deps"
	"github.com/aelhadi/mudawin/internal/export"
	"github.com/aelhadi/mudawin/internal/tui"
	"github.com/spf13/cobra"
)

func main() {
	_ = rootCmd.Execute()
}

var rootCmd = &cobra.Command{
	Use:   "mudawin",
	Short: "Continuous Arabic speech transcription for the desktop",
}

func init() {
	rootCmd.AddCommand(
		serveCmd(),
		toggleCmd(),
		statusCmd(),
		textCmd(),
		editCmd(),
		clearCmd(),
		loadCmd(),
		playCmd(),
		exportCmd(),
		versionCmd(),
		stopCmd(),
		configureCmd(),
		doctorCmd(),
	)
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			missingRequired := false
			for _, d := range deps.All() {
				status := d.Check()
				mark := "[x]"
				if !status.Installed {
					mark = "[ ]"
					if d.Required {
						missingRequired = true
					}
				}
				line := fmt.Sprintf("%s %s - %s", mark, d.Name, d.Purpose)
				if status.Version != "" {
					line += fmt.Sprintf(" (%s)", status.Version)
				}
				fmt.Println(line)
			}
			if missingRequired {
				return fmt.Errorf("required dependencies missing")
			}
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := daemon.New()
			if err != nil {
				return fmt.Errorf("failed to create daemon: %w", err)
			}
			return d.Run()
		},
	}
}

func toggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle",
		Short: "Toggle transcription capture on/off",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand('t')
			if err != nil {
				return fmt.Errorf("failed to toggle capture: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get current capture and save status",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand('s')
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func textCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "text",
		Short: "Print the current transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand('x')
			if err != nil {
				return fmt.Errorf("failed to get transcript: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func editCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <text>",
		Short: "Replace the transcript with edited text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommandArg('m', strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("failed to edit transcript: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func clearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes && !confirm("Clear the entire transcript?") {
				fmt.Println("Cancelled.")
				return nil
			}
			resp, err := bus.SendCommand('c')
			if err != nil {
				return fmt.Errorf("failed to clear transcript: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}

// confirm asks on stdin; anything but y/yes declines.
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	var answer string
	if _, err := fmt.Scanln(&answer); err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <audio-file>",
		Short: "Load an audio file for synchronized playback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			resp, err := bus.SendCommandArg('l', path)
			if err != nil {
				return fmt.Errorf("failed to load audio: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func playCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Toggle audio playback",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand('p')
			if err != nil {
				return fmt.Errorf("failed to toggle playback: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	var format string
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the transcript to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := export.ParseFormat(format); err != nil {
				return err
			}
			base := out
			if base == "" {
				base = fmt.Sprintf("transcript-%s", time.Now().Format("2006-01-02"))
			}
			abs, err := filepath.Abs(base)
			if err != nil {
				return err
			}
			resp, err := bus.SendCommandArg('e', format+" "+abs)
			if err != nil {
				return fmt.Errorf("failed to export: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "txt", "export format: txt, word, pdf")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path without extension (default: transcript-<date>)")

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Get protocol version",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand('v')
			if err != nil {
				return fmt.Errorf("failed to get version: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand('q')
			if err != nil {
				return fmt.Errorf("failed to stop daemon: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func configureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Interactive configuration setup",
		Long: `Interactive configuration wizard for mudawin.
This will guide you through setting up:
- Capture variant and language
- Streaming endpoint and API keys
- Playback coupling
- Draft persistence and notification preferences`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure()
		},
	}
}

func runConfigure() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	result, err := tui.Run(cfg)
	if err != nil {
		return fmt.Errorf("configuration wizard error: %w", err)
	}

	if result.Cancelled {
		fmt.Println("Configuration cancelled.")
		return nil
	}

	if err := result.Config.Validate(); err != nil {
		fmt.Printf("Configuration validation failed: %v\n", err)
		return err
	}

	if err := config.Save(result.Config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Println("Configuration saved successfully!")

	configPath, _ := config.GetConfigPath()
	fmt.Printf("Config file location: %s\n", configPath)
	return nil
}
