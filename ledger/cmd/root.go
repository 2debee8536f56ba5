// Package cmd implements the ledger command line.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	cc "github.com/ivanpirog/coloredcobra"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/plenert/ledger/ledger/plan"
)

var errNoLedger = errors.New("no ledger file, set --file or LEDGER_FILE")

var cfgFile string

// logger is set up before any command runs.
var logger = log.Default()

var rootCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Import bank statements into a plain text ledger",
	Long: `ledger converts bank statements (CSV, XLS, OFX/QFX, QIF, IIF) into
entries of a plain text double-entry ledger. Rows already in the ledger are
skipped, accounts are assigned by rules and learned from your answers.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default $HOME/.config/ledger/config.toml)")
	pf.StringP("file", "f", "", "ledger file")
	pf.String("rules-dir", "", "directory of the rule files (default: next to the ledger)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")

	for _, name := range []string{"file", "rules-dir", "log-level"} {
		mustBind(viper.BindPFlag(name, pf.Lookup(name)))
	}
}

// mustBind panics on a flag binding error, which only an undefined flag
// causes.
func mustBind(err error) {
	if err != nil {
		panic(err)
	}
}

// Execute runs the command line.
func Execute() error {
	cc.Init(&cc.Config{
		RootCmd:  rootCmd,
		Headings: cc.HiCyan + cc.Bold + cc.Underline,
		Commands: cc.HiYellow + cc.Bold,
		Example:  cc.Italic,
		ExecName: cc.Bold,
		Flags:    cc.Bold,
	})
	err := rootCmd.Execute()
	if err != nil {
		logger.Error(err)
	}
	return err
}

func initConfig(_ *cobra.Command, _ []string) error {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(plan.ExpandHome(cfgFile))
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "ledger"))
		}
		viper.SetConfigName("config")
		viper.SetConfigType("toml")
	}
	viper.SetEnvPrefix("LEDGER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	level, err := log.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return err
	}
	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "ledger",
		Level:           level,
	})
	log.SetDefault(logger)

	logger.Debug("configuration", "file", viper.ConfigFileUsed(), "ledger", viper.GetString("file"))
	return nil
}

// ledgerPath returns the configured ledger file.
func ledgerPath() (string, error) {
	p := viper.GetString("file")
	if p == "" {
		return "", errNoLedger
	}
	return plan.ExpandHome(p), nil
}

// rulesDir returns the configured rule directory, defaulting to the
// directory of the ledger.
func rulesDir(ledgerFile string) string {
	if dir := viper.GetString("rules-dir"); dir != "" {
		return plan.ExpandHome(dir)
	}
	return filepath.Dir(ledgerFile)
}
