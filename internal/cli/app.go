package cli

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/shouni/gemini-roomplan-kit/pkg/adapters"
	"github.com/shouni/gemini-roomplan-kit/pkg/config"
	"github.com/shouni/gemini-roomplan-kit/pkg/imgio"
	"github.com/shouni/gemini-roomplan-kit/pkg/picker"
	"github.com/shouni/gemini-roomplan-kit/pkg/workflow"
)

// Deps は外部サービスへの接続を差し替えるためのものです。nil の項目は設定から生成します。
type Deps struct {
	Gemini adapters.GenerativeModel
	OpenAI adapters.ChatCompleter
	Picker picker.Source
}

// app はコマンド実行中に共有する設定と依存です。
type app struct {
	deps   Deps
	cfg    *config.Config
	loader *imgio.Loader

	outMu sync.Mutex // 一括処理中の標準出力への書き込み
}

// loadImages は refs を並行して読み込みます。空の ref は nil のままにします。
func (a *app) loadImages(ctx context.Context, refs ...string) ([]image.Image, error) {
	imgs := make([]image.Image, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		if ref == "" {
			continue
		}
		g.Go(func() error {
			img, err := a.loader.Load(gctx, ref)
			if err != nil {
				return err
			}
			imgs[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return imgs, nil
}

func (a *app) geminiModel(ctx context.Context) (adapters.GenerativeModel, error) {
	if a.deps.Gemini != nil {
		return a.deps.Gemini, nil
	}
	if err := a.cfg.RequireGemini(); err != nil {
		return nil, err
	}
	client, err := adapters.NewGeminiClient(ctx, a.cfg.GeminiAPIKey)
	if err != nil {
		return nil, err
	}
	return client.Models, nil
}

func (a *app) describer(core adapters.ImageGeneratorCore, model adapters.GenerativeModel) (workflow.LocationDescriber, error) {
	if a.cfg.DescriberProvider != config.DescriberOpenAI {
		return adapters.NewGeminiDescriber(core, model, a.cfg.VisionModel, a.cfg.RequestTimeout)
	}

	client := a.deps.OpenAI
	if client == nil {
		if err := a.cfg.RequireOpenAI(); err != nil {
			return nil, err
		}
		c, err := adapters.NewOpenAIClient(a.cfg.OpenAIAPIKey, a.cfg.OpenAIBaseURL)
		if err != nil {
			return nil, err
		}
		client = c
	}
	return adapters.NewOpenAIDescriber(client, a.cfg.OpenAIModel, a.cfg.RequestTimeout)
}

func newCore(a *app) (*adapters.GeminiImageCore, error) {
	return adapters.NewGeminiImageCore(a.cfg.Encoding, a.cfg.JPEGQuality)
}

// orchestrator は設定から生成器、説明器、検証器を組み立てます。
func (a *app) orchestrator(ctx context.Context) (*workflow.Orchestrator, error) {
	model, err := a.geminiModel(ctx)
	if err != nil {
		return nil, err
	}
	core, err := newCore(a)
	if err != nil {
		return nil, err
	}
	gen, err := adapters.NewGeminiImageGenerator(core, model, a.cfg.ImageModel, a.cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}
	desc, err := a.describer(core, model)
	if err != nil {
		return nil, err
	}
	ver, err := adapters.NewGeminiVerifier(core, model, a.cfg.VisionModel, a.cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}
	marker, err := a.cfg.MarkerStyle()
	if err != nil {
		return nil, err
	}

	return workflow.New(workflow.Options{
		Generator: gen,
		Describer: desc,
		Verifier:  ver,
		Retry: workflow.RetryPolicy{
			MaxAttempts: a.cfg.Retry.MaxAttempts,
			Backoff:     a.cfg.Retry.Backoff,
		},
		Marker:          marker,
		Seed:            a.cfg.Seed,
		FloorPlanPrompt: a.cfg.FloorPlanPrompt,
		DisableDescribe: a.cfg.DisableDescribe,
		OnAttempt: func(at workflow.Attempt) {
			slog.Info("検証", "attempt", at.Number, "passed", at.Verdict.Passed, "feedback", at.Verdict.Feedback)
		},
		Logger: slog.Default(),
	})
}

// pickSource は座標フラグがあれば Fixed、無ければブラウザでの選択を返します。
func (a *app) pickSource(p pointFlags) picker.Source {
	if p.set {
		return picker.Fixed{X: p.x, Y: p.y}
	}
	if a.deps.Picker != nil {
		return a.deps.Picker
	}
	b := picker.NewBrowser(a.cfg.Picker.DisplayWidth, a.cfg.Picker.Addr)
	b.Logger = slog.Default()
	return b
}

func (a *app) outputPath(explicit, ref, suffix string) string {
	if explicit != "" {
		return explicit
	}
	return imgio.OutputPath(a.cfg.OutputDir, ref, suffix)
}

func (a *app) save(ctx context.Context, path string, img image.Image) error {
	if err := imgio.Save(ctx, path, img); err != nil {
		return err
	}
	slog.Info("画像を保存しました", "path", path)
	return nil
}

func resultImage(res *workflow.FlowResult) (image.Image, error) {
	if res == nil || res.Result == nil || res.Result.Image == nil {
		return nil, fmt.Errorf("no image was generated")
	}
	return res.Result.Image, nil
}
