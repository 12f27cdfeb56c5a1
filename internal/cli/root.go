// Package cli は roomkit コマンドの定義です。
package cli

import (
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/shouni/gemini-roomplan-kit/pkg/config"
	"github.com/shouni/gemini-roomplan-kit/pkg/imgio"
)

// NewRootCommand は roomkit のルートコマンドを組み立てます。
func NewRootCommand(deps Deps) *cobra.Command {
	a := &app{deps: deps}
	var configPath string
	var verbose bool
	var seed int64

	root := &cobra.Command{
		Use:   "roomkit",
		Short: "Floor plans and furniture placement for room photos with Gemini",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			setupLogger(cmd.ErrOrStderr(), verbose)

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed = &seed
			}
			a.cfg = cfg
			a.loader = imgio.NewLoader(time.Minute)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().Int64Var(&seed, "seed", 0, "generation seed (random when omitted)")

	root.AddCommand(
		newFloorPlanCommand(a),
		newMarkCommand(a),
		newDescribeCommand(a),
		newInsertCommand(a),
		newWorkflowCommand(a),
		newRemoveCommand(a),
	)
	return root
}

func setupLogger(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// pointFlags は --x と --y の組です。両方指定されたときだけ有効です。
type pointFlags struct {
	x, y int
	set  bool
}

func addPointFlags(cmd *cobra.Command, p *pointFlags) {
	cmd.Flags().IntVar(&p.x, "x", 0, "x coordinate of the target point (pixels)")
	cmd.Flags().IntVar(&p.y, "y", 0, "y coordinate of the target point (pixels)")
	cmd.MarkFlagsRequiredTogether("x", "y")
}

func (p *pointFlags) resolve(cmd *cobra.Command) {
	p.set = cmd.Flags().Changed("x") && cmd.Flags().Changed("y")
}
