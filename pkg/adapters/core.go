package adapters

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/shouni/gemini-roomplan-kit/pkg/domain"
	"github.com/shouni/gemini-roomplan-kit/pkg/imgutil"
)

const (
	// EncodingPNG は画像を劣化なしで送ります（既定）。
	EncodingPNG = "png"
	// EncodingJPEG は画像を JPEG に圧縮して送ります。
	EncodingJPEG = "jpeg"

	blockReasonUnspecified = "BLOCKED_REASON_UNSPECIFIED"
)

// GenerativeModel は *genai.Models のうち本パッケージが使うメソッドです。
type GenerativeModel interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ImageGeneratorCore は画像の変換とレスポンス解析を抽象化するインターフェースです。
type ImageGeneratorCore interface {
	ToPart(img image.Image) (*genai.Part, error)
	ParseToResponse(resp *genai.GenerateContentResponse, seed int64) (*domain.GenerationResult, error)
}

// GeminiImageCore は画像生成の共通ロジックを保持するコンポーネントです。
type GeminiImageCore struct {
	encoding    string
	jpegQuality int
}

// NewGeminiImageCore は送信時のエンコード方式を指定して GeminiImageCore を生成します。
func NewGeminiImageCore(encoding string, jpegQuality int) (*GeminiImageCore, error) {
	switch encoding {
	case "", EncodingPNG:
		encoding = EncodingPNG
	case EncodingJPEG:
		if jpegQuality < 1 || jpegQuality > 100 {
			return nil, fmt.Errorf("jpeg quality must be 1-100, got %d", jpegQuality)
		}
	default:
		return nil, fmt.Errorf("unsupported encoding: %s", encoding)
	}
	return &GeminiImageCore{encoding: encoding, jpegQuality: jpegQuality}, nil
}

// ToPart は画像をエンコードして genai.Part (InlineData) に変換します。
func (c *GeminiImageCore) ToPart(img image.Image) (*genai.Part, error) {
	if img == nil {
		return nil, errors.New("image is required")
	}
	data, err := imgutil.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	if c.encoding == EncodingJPEG {
		if data, err = imgutil.CompressToJPEG(data, c.jpegQuality); err != nil {
			return nil, err
		}
	}

	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		slog.Warn("MIMEタイプが画像ではないためPartに変換できませんでした", "detected_mime_type", mimeType)
		return nil, fmt.Errorf("unexpected mime type: %s", mimeType)
	}
	return &genai.Part{
		InlineData: &genai.Blob{
			MIMEType: mimeType,
			Data:     data,
		},
	}, nil
}

// ParseToResponse は Gemini のレスポンスを解析して GenerationResult に変換します。
// 拒否（ブロック、異常終了、画像なし）は domain.ErrGenerationRejected を返します。
func (c *GeminiImageCore) ParseToResponse(resp *genai.GenerateContentResponse, seed int64) (*domain.GenerationResult, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: Geminiからの有効な応答がありませんでした", domain.ErrGenerationTransport)
	}
	if reason := blockReason(resp); reason != "" {
		return nil, fmt.Errorf("%w: プロンプトがブロックされました (BlockReason: %s)", domain.ErrGenerationRejected, reason)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: 候補が返されませんでした", domain.ErrGenerationRejected)
	}

	// 最初の候補 (Candidate) のみを利用する。
	candidate := resp.Candidates[0]
	text := candidateText(candidate)

	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			img, _, err := imgutil.Decode(part.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", domain.ErrGenerationTransport, err)
			}
			return &domain.GenerationResult{
				Image:    img,
				Data:     part.InlineData.Data,
				MimeType: part.InlineData.MIMEType,
				Text:     text,
				UsedSeed: seed,
				Success:  true,
			}, nil
		}
	}

	// 安全フィルター等によるブロックの確認
	if candidate.FinishReason != genai.FinishReasonUnspecified && candidate.FinishReason != genai.FinishReasonStop {
		return nil, fmt.Errorf("%w: 画像生成が異常終了しました (FinishReason: %s)", domain.ErrGenerationRejected, candidate.FinishReason)
	}
	if text != "" {
		return nil, fmt.Errorf("%w: 画像データが見つかりませんでした (text: %q)", domain.ErrGenerationRejected, text)
	}
	return nil, fmt.Errorf("%w: 画像データが見つかりませんでした", domain.ErrGenerationRejected)
}

func blockReason(resp *genai.GenerateContentResponse) string {
	if resp.PromptFeedback == nil {
		return ""
	}
	reason := string(resp.PromptFeedback.BlockReason)
	if reason == "" || reason == blockReasonUnspecified {
		return ""
	}
	return reason
}

func candidateText(candidate *genai.Candidate) string {
	if candidate == nil || candidate.Content == nil {
		return ""
	}
	var out strings.Builder
	for _, p := range candidate.Content.Parts {
		if p.Text != "" {
			out.WriteString(p.Text)
		}
	}
	return strings.TrimSpace(out.String())
}

// responseText は最初の候補のテキストを連結して返します。
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	return candidateText(resp.Candidates[0])
}

// classifyTransportError は GenerateContent の失敗を timeout と transport に振り分けます。
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrGenerationTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", domain.ErrGenerationTimeout, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrGenerationTransport, err)
}

// imageParts は画像を順序どおり Part に変換します。
func imageParts(core ImageGeneratorCore, images ...image.Image) ([]*genai.Part, error) {
	parts := make([]*genai.Part, 0, len(images))
	for i, img := range images {
		part, err := core.ToPart(img)
		if err != nil {
			return nil, fmt.Errorf("画像 %d の変換に失敗しました: %w", i, err)
		}
		parts = append(parts, part)
	}
	return parts, nil
}
