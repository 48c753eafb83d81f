// Package cli implements the remem CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/remem/internal/bank"
	"github.com/rcliao/remem/internal/config"
	"github.com/rcliao/remem/internal/journal"
	"github.com/rcliao/remem/internal/llm"
	"github.com/rcliao/remem/internal/store"
)

var (
	configPath   string
	snapshotPath string
	dbPath       string
	formatFlag   string

	cfg config.Config
	out io.Writer = os.Stdout
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "remem",
	Short: "Editable experience memory for a Think/Refine/Act agent",
	Long: "remem runs tasks through a bounded Think/Refine/Act loop over an editable memory bank.\n" +
		"The bank is a JSON snapshot with checksums and rotated backups.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $REMEM_CONFIG or ~/.remem/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&snapshotPath, "snapshot", "s", "", "Snapshot path (overrides config)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Run journal database path (overrides config)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	if snapshotPath != "" {
		cfg.Memory.Snapshot = snapshotPath
	}
	if dbPath != "" {
		cfg.Journal.Path = dbPath
	}
	if formatFlag != "json" && formatFlag != "text" {
		return fmt.Errorf("unknown format %q (use json or text)", formatFlag)
	}
	slog.SetDefault(newLogger(cfg.Log))
	return nil
}

func newLogger(c config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelWarn
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func openStore() (*store.Store, error) {
	return store.New(store.Config{
		Path:        cfg.Memory.Snapshot,
		BackupDir:   cfg.Memory.BackupDir,
		MaxBackups:  cfg.Memory.MaxBackups,
		Capacity:    cfg.Memory.Capacity,
		HistorySize: cfg.Memory.HistorySize,
		Strict:      cfg.Memory.Strict,
		Logger:      slog.Default(),
	})
}

// loadBank opens the store and loads its bank.
func loadBank() (*store.Store, *bank.Bank) {
	st, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	res, err := st.Load()
	if err != nil {
		exitErr("load snapshot", err)
	}
	if res.State == store.StateRecovered || res.State == store.StateEmpty {
		fmt.Fprintf(os.Stderr, "warning: snapshot %s: %s\n", st.Path(), res.State)
	}
	return st, res.Bank
}

func saveBank(st *store.Store, b *bank.Bank) {
	if err := st.Save(b); err != nil {
		exitErr("save snapshot", err)
	}
}

func newClient() llm.Client {
	c, err := llm.New(llm.Config{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Retries:     cfg.LLM.Retries,
		Timeout:     cfg.LLM.Timeout,
		Logger:      slog.Default(),
	})
	if err != nil {
		exitErr("llm client", err)
	}
	return c
}

func newRanker(c llm.Client) bank.Ranker {
	if cfg.Loop.Ranker == "lexical" {
		return bank.LexicalRanker{}
	}
	return &bank.OracleRanker{Client: c}
}

// openJournal returns nil when the journal is disabled.
func openJournal() *journal.Journal {
	if !cfg.Journal.Enabled {
		return nil
	}
	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		exitErr("open journal", err)
	}
	return j
}

// emit writes v as indented JSON, or calls text in text format.
func emit(v any, text func(w io.Writer)) {
	if formatFlag == "text" && text != nil {
		text(out)
		return
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(out, string(b))
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
