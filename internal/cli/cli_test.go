package cli

import (
	"bytes"
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/shouni/gemini-roomplan-kit/pkg/imgio"
	"github.com/shouni/gemini-roomplan-kit/pkg/imgutil"
)

// fakeGemini は画像モデルには画像を、それ以外のモデルにはテキストを返すのだ。
type fakeGemini struct {
	mu      sync.Mutex
	prompts map[string][]string
	seeds   []*int32
}

func (f *fakeGemini) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	if f.prompts == nil {
		f.prompts = map[string][]string{}
	}
	f.prompts[model] = append(f.prompts[model], contents[0].Parts[0].Text)
	if config != nil {
		f.seeds = append(f.seeds, config.Seed)
	}
	f.mu.Unlock()

	if model == "gemini-2.5-flash-image" {
		// 最後の入力画像と同じ寸法で返す
		last := contents[0].Parts[len(contents[0].Parts)-1]
		src, _, err := imgutil.Decode(last.InlineData.Data)
		if err != nil {
			return nil, err
		}
		data, err := imgutil.EncodePNG(image.NewRGBA(src.Bounds()))
		if err != nil {
			return nil, err
		}
		return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: []*genai.Part{{InlineData: &genai.Blob{MIMEType: "image/png", Data: data}}}},
			FinishReason: genai.FinishReasonStop,
		}}}, nil
	}
	text := "near the window on the right side of the frame"
	if strings.Contains(contents[0].Parts[0].Text, "VERDICT") {
		text = "VERDICT: PASS\nFEEDBACK: fine"
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
	}}}, nil
}

// fixedPicker はブラウザを開かずに決まった点を返すのだ。
type fixedPicker struct{ p image.Point }

func (f fixedPicker) Pick(context.Context, image.Image) (image.Point, error) { return f.p, nil }

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GEMINI_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY", "OPENAI_BASE_URL",
		"ROOMKIT_IMAGE_MODEL", "ROOMKIT_VISION_MODEL", "ROOMKIT_DESCRIBER", "ROOMKIT_TIMEOUT", "ROOMKIT_SEED",
	} {
		t.Setenv(k, "")
	}
}

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, imgio.Save(context.Background(), path, image.NewRGBA(image.Rect(0, 0, w, h))))
	return path
}

func execute(t *testing.T, deps Deps, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(deps)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMarkCommand(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	layout := writePNG(t, dir, "layout.png", 100, 80)
	out := filepath.Join(dir, "marked.png")

	t.Run("座標指定で赤い点を描いて保存するのだ", func(t *testing.T) {
		stdout, err := execute(t, Deps{}, "mark", layout, "--x", "50", "--y", "40", "-o", out)
		require.NoError(t, err)
		assert.Contains(t, stdout, "50,40")

		img, err := imgio.Load(context.Background(), out)
		require.NoError(t, err)
		r, g, _, _ := img.At(50, 40).RGBA()
		assert.Equal(t, uint32(0xFFFF), r)
		assert.Equal(t, uint32(0), g)
	})

	t.Run("座標がなければピッカーを使うのだ", func(t *testing.T) {
		stdout, err := execute(t, Deps{Picker: fixedPicker{p: image.Pt(10, 20)}}, "mark", layout, "-o", out)
		require.NoError(t, err)
		assert.Contains(t, stdout, "10,20")
	})

	t.Run("範囲外の座標はエラー", func(t *testing.T) {
		_, err := execute(t, Deps{}, "mark", layout, "--x", "100", "--y", "0", "-o", out)
		assert.Error(t, err)
	})
}

func TestFloorPlanCommand(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	room := writePNG(t, dir, "room.png", 64, 48)
	out := filepath.Join(dir, "plan.png")
	fake := &fakeGemini{}

	stdout, err := execute(t, Deps{Gemini: fake}, "floorplan", room, "-p", "blueprint style", "-o", out)
	require.NoError(t, err)
	assert.Equal(t, out+"\n", stdout)

	img, err := imgio.Load(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())
	require.Len(t, fake.prompts["gemini-2.5-flash-image"], 1)
	assert.Contains(t, fake.prompts["gemini-2.5-flash-image"][0], "blueprint style")
}

func TestFloorPlanCommand_Seed(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	room := writePNG(t, dir, "room.png", 16, 16)

	fake := &fakeGemini{}
	_, err := execute(t, Deps{Gemini: fake}, "floorplan", room, "--seed", "2024", "-o", filepath.Join(dir, "a.png"))
	require.NoError(t, err)
	require.Len(t, fake.seeds, 1)
	require.NotNil(t, fake.seeds[0])
	assert.Equal(t, int32(2024), *fake.seeds[0])

	fake = &fakeGemini{}
	_, err = execute(t, Deps{Gemini: fake}, "floorplan", room, "-o", filepath.Join(dir, "b.png"))
	require.NoError(t, err)
	require.Len(t, fake.seeds, 1)
	assert.Nil(t, fake.seeds[0])
}

func TestFloorPlanCommand_Batch(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	inputs := filepath.Join(dir, "rooms")
	outDir := filepath.Join(dir, "out")
	writePNG(t, inputs, "kitchen.png", 32, 24)
	writePNG(t, inputs, "bedroom.png", 20, 20)
	require.NoError(t, os.WriteFile(filepath.Join(inputs, "broken.png"), []byte("not an image"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inputs, "readme.txt"), []byte("skip me"), 0o644))
	extra := writePNG(t, dir, "hall.png", 10, 10)
	cfgPath := filepath.Join(dir, "roomkit.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("batch_concurrency: 2\noutput_dir: "+outDir+"\n"), 0o644))

	t.Run("1件の失敗で他の入力を止めないのだ", func(t *testing.T) {
		fake := &fakeGemini{}
		stdout, err := execute(t, Deps{Gemini: fake}, "--config", cfgPath, "floorplan", inputs, extra)
		require.Error(t, err)
		assert.ErrorContains(t, err, "1 of 4 inputs failed")
		assert.ErrorContains(t, err, "broken.png")

		for _, name := range []string{"kitchen_floorplan.png", "bedroom_floorplan.png", "hall_floorplan.png"} {
			path := filepath.Join(outDir, name)
			_, statErr := os.Stat(path)
			assert.NoError(t, statErr, name)
			assert.Contains(t, stdout, path)
		}
		assert.Len(t, fake.prompts["gemini-2.5-flash-image"], 3)
	})

	t.Run("複数入力では出力パスを指定できない", func(t *testing.T) {
		_, err := execute(t, Deps{Gemini: &fakeGemini{}}, "--config", cfgPath, "floorplan", inputs, "-o", filepath.Join(dir, "x.png"))
		assert.ErrorContains(t, err, "--output")
	})
}

func TestFloorPlanCommand_RequiresAPIKey(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	room := writePNG(t, dir, "room.png", 8, 8)

	_, err := execute(t, Deps{}, "floorplan", room, "-o", filepath.Join(dir, "x.png"))
	assert.ErrorContains(t, err, "GEMINI_API_KEY")
}

func TestInsertCommand(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	object := writePNG(t, dir, "chair.png", 16, 16)
	room := writePNG(t, dir, "room.png", 400, 300)

	t.Run("2段階の挿入で位置説明が生成プロンプトに入るのだ", func(t *testing.T) {
		fake := &fakeGemini{}
		out := filepath.Join(dir, "placed.png")
		_, err := execute(t, Deps{Gemini: fake}, "insert", object, room, "--x", "200", "--y", "150", "-i", "facing the sofa", "-o", out)
		require.NoError(t, err)

		prompts := fake.prompts["gemini-2.5-flash-image"]
		require.Len(t, prompts, 1)
		assert.Contains(t, prompts[0], "near the window on the right side of the frame")
		assert.Contains(t, prompts[0], "facing the sofa")
		_, err = os.Stat(out)
		assert.NoError(t, err)
	})

	t.Run("検証付きでも合格すれば1回で終わるのだ", func(t *testing.T) {
		fake := &fakeGemini{}
		out := filepath.Join(dir, "verified.png")
		_, err := execute(t, Deps{Gemini: fake}, "insert", object, room, "--x", "10", "--y", "10", "--verify", "3", "-o", out)
		require.NoError(t, err)
		assert.Len(t, fake.prompts["gemini-2.5-flash-image"], 1)
		// 説明、レビュー、審査の3回
		assert.Len(t, fake.prompts["gemini-2.0-flash"], 3)
	})

	t.Run("direct では説明を呼ばないのだ", func(t *testing.T) {
		fake := &fakeGemini{}
		_, err := execute(t, Deps{Gemini: fake}, "insert", object, room, "--x", "10", "--y", "10", "--flow", "direct", "-o", filepath.Join(dir, "direct.png"))
		require.NoError(t, err)
		assert.Empty(t, fake.prompts["gemini-2.0-flash"])
	})

	t.Run("未知のフローはエラー", func(t *testing.T) {
		_, err := execute(t, Deps{Gemini: &fakeGemini{}}, "insert", object, room, "--x", "1", "--y", "1", "--flow", "removal")
		assert.Error(t, err)
	})
}

func TestWorkflowCommand(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	object := writePNG(t, dir, "lamp.png", 16, 16)
	layout := writePNG(t, dir, "layout_marked.png", 300, 300)
	room := writePNG(t, dir, "room.png", 200, 150)
	fake := &fakeGemini{}

	out := filepath.Join(dir, "result.png")
	_, err := execute(t, Deps{Gemini: fake}, "workflow", object, layout, room, "-i", "brass finish", "-o", out)
	require.NoError(t, err)

	img, err := imgio.Load(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 200, 150), img.Bounds())
	assert.Len(t, fake.prompts["gemini-2.0-flash"], 1)
}

func TestRemoveCommand(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	room := writePNG(t, dir, "room.png", 120, 90)
	fake := &fakeGemini{}

	stdout, err := execute(t, Deps{Gemini: fake, Picker: fixedPicker{p: image.Pt(60, 45)}}, "remove", room, "-o", filepath.Join(dir, "removed.png"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "removed.png")
	require.Len(t, fake.prompts["gemini-2.5-flash-image"], 1)
	assert.Contains(t, fake.prompts["gemini-2.5-flash-image"][0], "near the window")
}

func TestRemoveCommand_VerificationFromConfig(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	room := writePNG(t, dir, "room.png", 120, 90)
	cfgPath := filepath.Join(dir, "roomkit.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("verification:\n  enabled: true\n  max_attempts: 2\n"), 0o644))
	fake := &fakeGemini{}

	_, err := execute(t, Deps{Gemini: fake}, "--config", cfgPath, "remove", room, "--x", "60", "--y", "45", "-o", filepath.Join(dir, "removed.png"))
	require.NoError(t, err)
	assert.Len(t, fake.prompts["gemini-2.5-flash-image"], 1)
	// 説明、レビュー、審査の3回
	assert.Len(t, fake.prompts["gemini-2.0-flash"], 3)
}
