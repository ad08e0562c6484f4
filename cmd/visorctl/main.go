// Package main provides visorctl, an offline companion of the visor server:
// it exports and inspects the source workbook and manages the encryption of
// the data directory.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"cmgvisor/internal/config"
	httpx "cmgvisor/internal/http"
	"cmgvisor/internal/services/dataloader"
	"cmgvisor/internal/services/export"
	"cmgvisor/internal/services/selection"
	"cmgvisor/internal/services/storage"
	"cmgvisor/internal/services/window"
	"cmgvisor/internal/services/workbook"
	"cmgvisor/internal/version"
)

var (
	dataDir    string
	sourceFile string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "visorctl",
		Short:         "Offline tools for the CMg and flow visor",
		Version:       version.Get().Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default: VISOR_DATA_DIR or ./data)")
	rootCmd.PersistentFlags().StringVar(&sourceFile, "source", "", "Source workbook name (default: Fuente.xlsx)")

	rootCmd.AddCommand(
		newExportCmd(),
		newInspectCmd(),
		newImportCmd(),
		newEncryptCmd(),
		newDecryptCmd(),
	)
	return rootCmd
}

// loadConfig applies the command line overrides on top of config.Load
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDirectory = dataDir
	}
	if sourceFile != "" {
		cfg.SourceFile = sourceFile
	}
	return cfg, nil
}

// openStore opens the data directory, unlocking it when it is encrypted
func openStore(cmd *cobra.Command, cfg *config.Config) (*storage.Storage, error) {
	store, err := storage.New(cfg.DataDirectory)
	if err != nil {
		return nil, err
	}
	if !store.IsEncrypted() {
		return store, nil
	}

	password := cfg.Password
	if password == "" {
		password, err = readPassword(cmd)
		if err != nil {
			return nil, err
		}
	}
	if err := store.Unlock(password); err != nil {
		return nil, err
	}
	return store, nil
}

func openLoader(cmd *cobra.Command) (*config.Config, *storage.Storage, *dataloader.DataLoader, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := openStore(cmd, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	opts, err := dataloader.OptionsFromConfig(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, store, dataloader.New(store, opts), nil
}

func newExportCmd() *cobra.Command {
	var (
		hours  int
		barras []string
		at     string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the windowed series to an xlsx file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, loader, err := openLoader(cmd)
			if err != nil {
				return err
			}

			now := time.Now()
			if at != "" {
				loc, err := cfg.Location()
				if err != nil {
					return err
				}
				now, err = time.ParseInLocation("2006-01-02T15:04", at, loc)
				if err != nil {
					return fmt.Errorf("invalid --at %q: %w", at, err)
				}
			}

			ds, err := loader.LoadData(0)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", loader.SourcePath(), err)
			}
			for _, e := range ds.Errors() {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", e)
			}

			lb := window.Lookback{Default: cfg.Lookback.Default, Min: cfg.Lookback.Min, Max: cfg.Lookback.Max}
			if !cmd.Flags().Changed("hours") {
				hours = lb.Default
			}
			selected := httpx.ParseBarras(barras, ds.Barras(), cfg.DefaultBarra)

			sel, err := selection.Apply(ds, now, lb.Duration(hours), selected)
			if err != nil {
				return err
			}

			data, err := export.Assemble(export.WindowedSheets(sel.PDO, sel.COS, sel.Measured, sel.Forecast))
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s .. %s, barras %v)\n",
				out, sel.Window.Start.Format("2006-01-02 15:04"), sel.Window.End.Format("2006-01-02 15:04"), selected)
			return nil
		},
	}

	cmd.Flags().IntVar(&hours, "hours", 0, "Look-back in hours, clamped to the configured range")
	cmd.Flags().StringSliceVar(&barras, "barra", nil, "Barra to include; repeatable (default: configured barra)")
	cmd.Flags().StringVar(&at, "at", "", "Reference time as 2006-01-02T15:04 (default: now)")
	cmd.Flags().StringVarP(&out, "output", "o", export.FileName, "Output file path")
	return cmd
}

// inspection is the JSON report of the inspect command
type inspection struct {
	Source  interface{} `json:"source"`
	Catalog []string    `json:"catalog"`
	Cutoff  *time.Time  `json:"cutoff"`
	Cost    interface{} `json:"cost"`
	Flow    interface{} `json:"flow"`
	Errors  []string    `json:"errors"`
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Describe the source workbook as the server would load it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, loader, err := openLoader(cmd)
			if err != nil {
				return err
			}

			info, err := loader.SourceInfo()
			if err != nil {
				return err
			}
			ds, err := loader.LoadData(0)
			if err != nil {
				return err
			}

			report := inspection{
				Source:  info,
				Catalog: ds.Barras(),
				Cost:    ds.Cost,
				Flow:    ds.Flow,
				Errors:  []string{},
			}
			if cutoff, ok := selection.Cutoff(ds); ok {
				report.Cutoff = &cutoff
			}
			for _, e := range ds.Errors() {
				report.Errors = append(report.Errors, e.Error())
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <workbook.xlsx>",
		Short: "Copy a workbook into the data directory as the source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			wb, err := workbook.Open(data)
			if err != nil {
				return fmt.Errorf("%s is not a readable workbook: %w", filepath.Base(args[0]), err)
			}
			sheets := wb.SheetNames()
			wb.Close()

			if err := store.WriteFile(cfg.SourceFile, data, 0644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s as %s (sheets %v)\n", args[0], store.Path(cfg.SourceFile), sheets)
			return nil
		},
	}
}

func newEncryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt the workbooks of the data directory with a password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := storage.New(cfg.DataDirectory)
			if err != nil {
				return err
			}
			if store.IsEncrypted() {
				return storage.ErrAlreadyEncrypted
			}

			password := cfg.Password
			if password == "" {
				password, err = readNewPassword(cmd)
				if err != nil {
					return err
				}
			}
			if err := store.EnableEncryption(password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Encrypted %s\n", cfg.DataDirectory)
			return nil
		},
	}
}

func newDecryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt the data directory and remove its password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := storage.New(cfg.DataDirectory)
			if err != nil {
				return err
			}
			if !store.IsEncrypted() {
				return storage.ErrNotEncrypted
			}

			password := cfg.Password
			if password == "" {
				password, err = readPassword(cmd)
				if err != nil {
					return err
				}
			}
			if err := store.DisableEncryption(password); err != nil {
				if errors.Is(err, storage.ErrIncorrectPassword) {
					return fmt.Errorf("cannot decrypt %s: %w", cfg.DataDirectory, err)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Decrypted %s\n", cfg.DataDirectory)
			return nil
		},
	}
}
