package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"squiggle/logger"
	"squiggle/text"

	"github.com/spf13/cobra"
)

type Config struct {
	NsID                   int    `json:"ns_id"`
	Parser                 string `json:"parser"` // go, remote, lsp
	ParserURL              string `json:"parser_url"`
	ParserToken            string `json:"parser_token"`
	ParserTimeout          *int   `json:"parser_timeout"` // in milliseconds, 0 = none
	ParserLanguage         string `json:"parser_language"`
	SourceLineEnding       string `json:"source_line_ending"`  // auto, crlf, lf, cr
	DisplayLineEnding      string `json:"display_line_ending"` // crlf, lf, cr
	HighlightFg            string `json:"highlight_fg"`
	HighlightBg            string `json:"highlight_bg"`
	MarkerText             string `json:"marker_text"`
	DebugImmediateShutdown bool   `json:"debug_immediate_shutdown"`
	LogLevel               string `json:"log_level"` // trace, debug, info, warn, error
}

// withDefaults fills unset fields
func (c Config) withDefaults() Config {
	if c.Parser == "" {
		c.Parser = "go"
	}
	if c.ParserTimeout == nil {
		timeout := 5000
		c.ParserTimeout = &timeout
	}
	if c.SourceLineEnding == "" {
		c.SourceLineEnding = "auto"
	}
	if c.DisplayLineEnding == "" {
		c.DisplayLineEnding = "lf"
	}
	if c.HighlightFg == "" {
		c.HighlightFg = "#ffff00"
	}
	if c.HighlightBg == "" {
		c.HighlightBg = "#ff0000"
	}
	if c.MarkerText == "" {
		c.MarkerText = "✗"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return c
}

// timeoutMs is the parser timeout in milliseconds; 0 disables it
func (c Config) timeoutMs() int {
	if c.ParserTimeout == nil {
		return 0
	}
	return *c.ParserTimeout
}

func (c Config) validate() error {
	if c.SourceLineEnding != "auto" {
		if _, err := text.ParseConvention(c.SourceLineEnding); err != nil {
			return fmt.Errorf("source_line_ending: %w", err)
		}
	}
	if _, err := text.ParseConvention(c.DisplayLineEnding); err != nil {
		return fmt.Errorf("display_line_ending: %w", err)
	}
	if c.timeoutMs() < 0 {
		return fmt.Errorf("parser_timeout must not be negative")
	}
	return nil
}

// parseConfig decodes the JSON configuration; an empty string means defaults
func parseConfig(raw string) (Config, error) {
	var config Config
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &config); err != nil {
			return Config{}, fmt.Errorf("invalid config: %w", err)
		}
	}
	config = config.withDefaults()
	if err := config.validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

func loadConfig() Config {
	config, err := parseConfig(os.Getenv("SQUIGGLE_CONFIG"))
	if err != nil {
		log.Fatalf("%v", err)
	}

	log.Printf("config: %+v parser_timeout=%dms", config, config.timeoutMs())
	return config
}

func execPath(name string) string {
	execPath, err := os.Executable()
	if err != nil {
		log.Fatalf("error getting executable path: %v", err)
	}
	return filepath.Join(filepath.Dir(execPath), name)
}

// Setup logger to log to a file in the same directory as the executable
// Caller must defer logger.Close()
func setupLogger(logLevel string) *logger.Logger {
	f, err := os.OpenFile(execPath("squiggle.log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening file: %v", err)
	}

	l := logger.New(f, logger.ParseLogLevel(logLevel))
	logger.Init(l)
	log.SetOutput(l)
	return l
}

func getSocketPath() string { return execPath("squiggle.sock") }

func getPidPath() string { return execPath("squiggle.pid") }

func isDaemonRunning() (bool, int) {
	data, err := os.ReadFile(getPidPath())
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return false, 0
	}

	// Check if process is still running
	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0
	}

	// On Unix, Signal(0) checks if process exists
	err = process.Signal(syscall.Signal(0))
	return err == nil, pid
}

func runDaemon() {
	config := loadConfig()

	l := setupLogger(config.LogLevel)
	defer l.Close()

	daemon, err := NewDaemon(config)
	if err != nil {
		log.Fatalf("error creating daemon: %v", err)
	}

	if err := daemon.Start(); err != nil {
		log.Fatalf("error starting daemon: %v", err)
	}
}

func runClient() {
	client := NewClient()

	if err := client.EnsureDaemonRunning(); err != nil {
		log.Fatalf("error ensuring daemon is running: %v", err)
	}

	if err := client.Connect(); err != nil {
		log.Fatalf("error connecting to daemon: %v", err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "squiggle",
	Short: "Highlights the first syntax error of the buffer being edited",
	Long: `squiggle runs next to Neovim and mirrors the current buffer into a
read-only split, highlighting the first diagnostic the parser reports.
Without a subcommand it relays stdio to the background daemon.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		if daemonFlag, _ := cmd.Flags().GetBool("daemon"); daemonFlag {
			runDaemon()
			return
		}
		runClient()
	},
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background daemon serving Neovim connections",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runDaemon()
	},
}

func main() {
	rootCmd.Flags().Bool("daemon", false, "run the background daemon")
	rootCmd.Flags().MarkHidden("daemon")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(checkCmd)

	if err := rootCmd.Execute(); err != nil {
		var code exitCode
		if errors.As(err, &code) {
			os.Exit(int(code))
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
}
