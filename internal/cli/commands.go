package cli

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/shouni/gemini-roomplan-kit/pkg/imgutil"
	"github.com/shouni/gemini-roomplan-kit/pkg/workflow"
)

func newFloorPlanCommand(a *app) *cobra.Command {
	var promptText, output string
	cmd := &cobra.Command{
		Use:   "floorplan <room|dir>...",
		Short: "Convert room photos into top-down floor plans",
		Long: `Convert room photos into top-down floor plans.
A directory argument expands to the image files directly inside it.
With several inputs each one is processed on its own; failures are reported and the rest still run.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if cmd.Flags().Changed("prompt") {
				a.cfg.FloorPlanPrompt = promptText
			}
			refs, err := a.expandInputs(ctx, args)
			if err != nil {
				return err
			}
			if len(refs) > 1 && output != "" {
				return fmt.Errorf("--output cannot be used with %d inputs; results go to %s", len(refs), a.cfg.OutputDir)
			}
			o, err := a.orchestrator(ctx)
			if err != nil {
				return err
			}
			if len(refs) == 1 {
				return a.floorPlanOne(cmd, o, refs[0], a.outputPath(output, refs[0], "_floorplan"))
			}
			return a.floorPlanBatch(cmd, o, refs)
		},
	}
	cmd.Flags().StringVarP(&promptText, "prompt", "p", "", "floor plan style prompt")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (.png or .jpg, single input only)")
	return cmd
}

func (a *app) floorPlanOne(cmd *cobra.Command, o *workflow.Orchestrator, ref, path string) error {
	imgs, err := a.loadImages(cmd.Context(), ref)
	if err != nil {
		return err
	}
	res, err := o.FloorPlan(cmd.Context(), imgs[0])
	if err != nil {
		return err
	}
	return a.writeResult(cmd, res, path)
}

// floorPlanBatch は各入力を独立に処理します。失敗した入力があっても残りは続行し、最後に件数を返します。
func (a *app) floorPlanBatch(cmd *cobra.Command, o *workflow.Orchestrator, refs []string) error {
	var mu sync.Mutex
	var failed []string

	g := new(errgroup.Group)
	g.SetLimit(a.cfg.BatchConcurrency)
	for _, ref := range refs {
		g.Go(func() error {
			err := a.floorPlanOne(cmd, o, ref, a.outputPath("", ref, "_floorplan"))
			if err != nil {
				slog.Error("間取り図の生成に失敗しました", "input", ref, "error", err)
				mu.Lock()
				failed = append(failed, ref)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("一括処理が完了しました", "total", len(refs), "succeeded", len(refs)-len(failed), "failed", len(failed))
	if len(failed) > 0 {
		sort.Strings(failed)
		return fmt.Errorf("%d of %d inputs failed: %s", len(failed), len(refs), strings.Join(failed, ", "))
	}
	return nil
}

// expandInputs はディレクトリの引数を直下の画像ファイルに展開します。URL はそのまま使います。
func (a *app) expandInputs(ctx context.Context, args []string) ([]string, error) {
	var refs []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			refs = append(refs, arg)
			continue
		}
		paths, err := a.loader.List(ctx, arg)
		if err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("no images found in %s", arg)
		}
		refs = append(refs, paths...)
	}
	return refs, nil
}

func newMarkCommand(a *app) *cobra.Command {
	var point pointFlags
	var radius int
	var output string
	cmd := &cobra.Command{
		Use:   "mark <layout>",
		Short: "Draw a red marker on an image at a clicked or given point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			point.resolve(cmd)
			imgs, err := a.loadImages(ctx, args[0])
			if err != nil {
				return err
			}
			p, err := a.pickSource(point).Pick(ctx, imgs[0])
			if err != nil {
				return err
			}
			style, err := a.cfg.MarkerStyle()
			if err != nil {
				return err
			}
			if radius > 0 {
				style.Radius = radius
			}
			marked, err := imgutil.Annotate(imgs[0], p, style)
			if err != nil {
				return err
			}
			path := a.outputPath(output, args[0], "_marked")
			if err := a.save(ctx, path, marked); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d,%d\t%s\n", p.X, p.Y, path)
			return nil
		},
	}
	addPointFlags(cmd, &point)
	cmd.Flags().IntVar(&radius, "radius", 0, "marker radius in pixels (0 = auto)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (.png or .jpg)")
	return cmd
}

func newDescribeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <room> <annotated>",
		Short: "Describe where the red marker points to, in words",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			imgs, err := a.loadImages(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			model, err := a.geminiModel(ctx)
			if err != nil {
				return err
			}
			core, err := newCore(a)
			if err != nil {
				return err
			}
			d, err := a.describer(core, model)
			if err != nil {
				return err
			}
			text, err := d.Describe(ctx, imgs[0], imgs[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

// placementFlags は insert と remove で共通のフラグです。
type placementFlags struct {
	layout       string
	point        pointFlags
	instructions string
	verify       int
	output       string
}

func addPlacementFlags(cmd *cobra.Command, f *placementFlags) {
	cmd.Flags().StringVar(&f.layout, "layout", "", "floor plan to click on (defaults to the room photo)")
	addPointFlags(cmd, &f.point)
	cmd.Flags().StringVarP(&f.instructions, "instructions", "i", "", "additional instructions (orientation, style, ...)")
	cmd.Flags().IntVar(&f.verify, "verify", 0, "run the review loop up to N attempts (0 = use config)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output path (.png or .jpg)")
}

func newInsertCommand(a *app) *cobra.Command {
	var f placementFlags
	var flow string
	cmd := &cobra.Command{
		Use:   "insert <object> <room>",
		Short: "Place a furniture item into a room photo at a clicked point",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f.point.resolve(cmd)
			kind, err := workflow.ParseFlowKind(flow)
			if err != nil {
				return err
			}
			if kind != workflow.FlowTwoStepInsertion && kind != workflow.FlowDirectInsertion {
				return fmt.Errorf("insert supports --flow two-step or direct, got %q", flow)
			}
			if f.verify > 0 && kind != workflow.FlowTwoStepInsertion {
				return fmt.Errorf("--verify requires --flow two-step")
			}

			imgs, err := a.loadImages(ctx, args[0], args[1], f.layout)
			if err != nil {
				return err
			}
			in := workflow.Input{Object: imgs[0], Room: imgs[1], Layout: imgs[2], Instructions: f.instructions}
			if in.Point, err = a.pickOn(cmd, f.point, in); err != nil {
				return err
			}
			return a.runPlacement(cmd, kind, in, f, a.outputPath(f.output, args[1], "_placed"))
		},
	}
	addPlacementFlags(cmd, &f)
	cmd.Flags().StringVar(&flow, "flow", string(workflow.FlowTwoStepInsertion), "two-step or direct")
	return cmd
}

func newWorkflowCommand(a *app) *cobra.Command {
	var instructions, output string
	var verify int
	cmd := &cobra.Command{
		Use:   "workflow <object> <layoutWithMarker> <room>",
		Short: "Describe a pre-marked layout, then place the object into the room",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			imgs, err := a.loadImages(ctx, args[0], args[1], args[2])
			if err != nil {
				return err
			}
			in := workflow.Input{Object: imgs[0], Annotated: imgs[1], Room: imgs[2], Instructions: instructions}
			f := placementFlags{verify: verify}
			return a.runPlacement(cmd, workflow.FlowTwoStepInsertion, in, f, a.outputPath(output, args[2], "_placed"))
		},
	}
	cmd.Flags().StringVarP(&instructions, "instructions", "i", "", "additional instructions (orientation, style, ...)")
	cmd.Flags().IntVar(&verify, "verify", 0, "run the review loop up to N attempts (0 = use config)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (.png or .jpg)")
	return cmd
}

func newRemoveCommand(a *app) *cobra.Command {
	var f placementFlags
	cmd := &cobra.Command{
		Use:   "remove <room>",
		Short: "Remove the furniture item at a clicked point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f.point.resolve(cmd)
			imgs, err := a.loadImages(ctx, args[0], f.layout)
			if err != nil {
				return err
			}
			in := workflow.Input{Room: imgs[0], Layout: imgs[1], Instructions: f.instructions}
			if in.Point, err = a.pickOn(cmd, f.point, in); err != nil {
				return err
			}
			return a.runPlacement(cmd, workflow.FlowRemoval, in, f, a.outputPath(f.output, args[0], "_removed"))
		},
	}
	addPlacementFlags(cmd, &f)
	return cmd
}

// pickOn は注釈を付ける画像（間取り図、無ければ部屋写真）の上で位置を選びます。
func (a *app) pickOn(cmd *cobra.Command, p pointFlags, in workflow.Input) (image.Point, error) {
	target := in.Layout
	if target == nil {
		target = in.Room
	}
	return a.pickSource(p).Pick(cmd.Context(), target)
}

func (a *app) runPlacement(cmd *cobra.Command, kind workflow.FlowKind, in workflow.Input, f placementFlags, path string) error {
	ctx := cmd.Context()
	o, err := a.orchestrator(ctx)
	if err != nil {
		return err
	}

	if n := a.verifyAttempts(kind, f.verify); n > 0 {
		out, err := o.RunVerified(ctx, kind, in, n)
		if err != nil {
			return err
		}
		if !out.Passed {
			slog.Warn("検証に合格しないまま試行回数の上限に達しました。最後の結果を保存します", "attempts", len(out.Attempts))
		}
		return a.writeResult(cmd, out.Final, path)
	}

	res, err := o.Run(ctx, kind, in)
	if err != nil {
		return err
	}
	return a.writeResult(cmd, res, path)
}

// verifyAttempts はフラグ、無ければ設定から検証の試行回数を決めます。0 は検証なしです。
func (a *app) verifyAttempts(kind workflow.FlowKind, flag int) int {
	if flag > 0 {
		return flag
	}
	if !a.cfg.Verification.Enabled {
		return 0
	}
	if kind != workflow.FlowTwoStepInsertion && kind != workflow.FlowRemoval {
		return 0
	}
	return a.cfg.Verification.MaxAttempts
}

func (a *app) writeResult(cmd *cobra.Command, res *workflow.FlowResult, path string) error {
	img, err := resultImage(res)
	if err != nil {
		return err
	}
	if res.Location != "" {
		slog.Info("位置説明", "location", res.Location)
	}
	if err := a.save(cmd.Context(), path, img); err != nil {
		return err
	}
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
