package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/plenert/ledger/ledger/plan"
)

var planRun runFlags

// runPlan imports every statement of p in order. Settings of the plan take
// precedence over the command line.
func runPlan(p *plan.Plan, flags runFlags) error {
	path := p.Ledger
	if path == "" {
		var err error
		if path, err = ledgerPath(); err != nil {
			return err
		}
	}
	dir := p.RulesDir
	if dir == "" {
		dir = rulesDir(path)
	}
	if p.Session != "" {
		flags.session = p.Session
	}

	imp, err := newImporter(path, dir, flags, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}
	for _, st := range p.Statements {
		if st.Currency == "" {
			st.Currency = viper.GetString("currency")
		}
		stats, err := imp.run(st)
		if err != nil {
			return err
		}
		logStats(st, stats, flags.dryRun)
	}
	return nil
}

var planCmd = &cobra.Command{
	Use:   "plan <plan.yaml>",
	Args:  cobra.ExactArgs(1),
	Short: "Import the statements listed in a plan file",
	Example: `  # march.yaml
  ledger: ~/books/main.ledger
  statements:
    - file: checking.csv
      account: Assets:Checking
      balance_interval: 10
    - file: visa.qfx
      account: Liabilities:Visa

  ledger plan march.yaml`,
	RunE: func(_ *cobra.Command, args []string) error {
		p, err := plan.Load(plan.ExpandHome(args[0]))
		if err != nil {
			return err
		}
		return runPlan(p, planRun)
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
	addRunFlags(planCmd, &planRun)
}
