// Package imgio はローカルファイルや URL から画像を読み込み、ファイルへ保存します。
package imgio

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/remoteio"

	"github.com/shouni/gemini-roomplan-kit/pkg/imgutil"
)

const (
	// MaxImageBytes は読み込む画像データの上限です。URL からの取得は httpkit の上限に従います。
	MaxImageBytes = 32 << 20
	// DefaultJPEGQuality は保存時の JPEG 品質です。
	DefaultJPEGQuality = 90
)

// Loader は画像の読み込み元を抽象化します。
type Loader struct {
	// HTTP は http(s) の画像取得に使います。既定では SSRF 対策済みのクライアントです。
	HTTP httpkit.ClientInterface
	// Reader はローカルファイルの読み込みとディレクトリの列挙に使います。
	Reader remoteio.InputReader
}

// NewLoader は httpkit のクライアントとローカル用のリーダーを持つ Loader を返します。
// options には httpkit.WithSkipNetworkValidation などを渡せます。
func NewLoader(timeout time.Duration, options ...httpkit.ClientOption) *Loader {
	return &Loader{
		HTTP:   httpkit.New(timeout, options...),
		Reader: remoteio.NewUniversalInputReader(nil, nil),
	}
}

// Load は ref がローカルパスならファイルを、http(s) の URL ならダウンロードして画像をデコードします。
func (l *Loader) Load(ctx context.Context, ref string) (image.Image, error) {
	var data []byte
	var err error
	if isRemote(ref) {
		data, err = l.fetch(ctx, ref)
	} else {
		data, err = l.readFile(ctx, ref)
	}
	if err != nil {
		return nil, err
	}

	img, format, err := imgutil.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref, err)
	}
	slog.DebugContext(ctx, "画像を読み込みました", "ref", ref, "format", format, "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return img, nil
}

// List は dir 直下の画像ファイル（拡張子で判定）を名前順で返します。サブディレクトリは辿りません。
func (l *Loader) List(ctx context.Context, dir string) ([]string, error) {
	var paths []string
	err := l.Reader.List(ctx, dir, func(path string) error {
		if IsImagePath(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// Load は既定の Loader で画像を読み込みます。
func Load(ctx context.Context, ref string) (image.Image, error) {
	return NewLoader(0).Load(ctx, ref)
}

// IsImagePath は拡張子が読み込み対象の画像形式かを返します。
func IsImagePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return true
	}
	return false
}

func isRemote(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func (l *Loader) readFile(ctx context.Context, path string) ([]byte, error) {
	rc, err := l.Reader.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("画像ファイルを開けません: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%s の読み込みに失敗しました: %w", path, err)
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("%s is larger than %d bytes", path, MaxImageBytes)
	}
	return data, nil
}

func (l *Loader) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	data, err := l.HTTP.FetchBytes(ctx, rawURL)
	if err != nil {
		slog.WarnContext(ctx, "画像のダウンロードに失敗しました", "url", rawURL, "error", err)
		return nil, fmt.Errorf("画像のダウンロードに失敗しました: %w", err)
	}
	return data, nil
}

// Save は拡張子（.png, .jpg, .jpeg）に応じた形式で画像を保存します。親ディレクトリは作成されます。
func Save(ctx context.Context, path string, img image.Image) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		data, err = imgutil.EncodePNG(img)
	case ".jpg", ".jpeg":
		data, err = imgutil.EncodeJPEG(img, DefaultJPEGQuality)
	default:
		return fmt.Errorf("unsupported output extension: %q", filepath.Ext(path))
	}
	if err != nil {
		return err
	}

	writer := remoteio.NewUniversalIOWriter(nil, nil)
	if err := writer.WriteToLocal(ctx, path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("画像の保存に失敗しました: %w", err)
	}
	return nil
}

// OutputPath は dir の下に stem と suffix からなる PNG のパスを組み立てます。
func OutputPath(dir, ref, suffix string) string {
	base := filepath.Base(ref)
	if isRemote(ref) {
		base = filepath.Base(strings.SplitN(ref, "?", 2)[0])
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == "/" {
		stem = "image"
	}
	return filepath.Join(dir, stem+suffix+".png")
}
