// Package config は .env、YAML ファイル、環境変数から設定を読み込みます。
package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/shouni/gemini-roomplan-kit/pkg/domain"
	"github.com/shouni/gemini-roomplan-kit/pkg/prompt"
)

const (
	DescriberGemini = "gemini"
	DescriberOpenAI = "openai"

	EncodingPNG  = "png"
	EncodingJPEG = "jpeg"
)

// Config はアプリケーション全体の設定です。API キーは環境変数からのみ読み込みます。
type Config struct {
	GeminiAPIKey string `yaml:"-"`
	OpenAIAPIKey string `yaml:"-"`

	OpenAIBaseURL     string        `yaml:"openai_base_url"`
	ImageModel        string        `yaml:"image_model"`
	VisionModel       string        `yaml:"vision_model"`
	DescriberProvider string        `yaml:"describer"`
	OpenAIModel       string        `yaml:"openai_model"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`

	Marker       MarkerConfig       `yaml:"marker"`
	Retry        RetryConfig        `yaml:"retry"`
	Verification VerificationConfig `yaml:"verification"`
	Picker       PickerConfig       `yaml:"picker"`

	// Seed は生成のシード値です。nil でランダムです。
	Seed             *int64 `yaml:"seed"`
	BatchConcurrency int    `yaml:"batch_concurrency"`

	FloorPlanPrompt string `yaml:"floor_plan_prompt"`
	DisableDescribe bool   `yaml:"disable_describe"`
	Encoding        string `yaml:"encoding"`
	JPEGQuality     int    `yaml:"jpeg_quality"`
	OutputDir       string `yaml:"output_dir"`
}

// MarkerConfig はマーカーの見た目です。色は "#RRGGBB" 形式です。
type MarkerConfig struct {
	Radius       int    `yaml:"radius"`
	Fill         string `yaml:"fill"`
	Outline      string `yaml:"outline"`
	OutlineWidth int    `yaml:"outline_width"`
}

// RetryConfig は生成ステージの再試行設定です。
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff"`
}

// VerificationConfig は検証ループの設定です。
// Enabled のとき、--verify を省略した insert/remove/workflow でも MaxAttempts 回まで検証します。
type VerificationConfig struct {
	Enabled     bool `yaml:"enabled"`
	MaxAttempts int  `yaml:"max_attempts"`
}

// PickerConfig はブラウザでの位置選択の設定です。
type PickerConfig struct {
	DisplayWidth int    `yaml:"display_width"`
	Addr         string `yaml:"addr"`
}

// Default は既定値で埋めた設定を返します。
func Default() *Config {
	return &Config{
		ImageModel:        "gemini-2.5-flash-image",
		VisionModel:       "gemini-2.0-flash",
		DescriberProvider: DescriberGemini,
		OpenAIModel:       "gpt-4o-mini",
		RequestTimeout:    2 * time.Minute,
		Marker: MarkerConfig{
			Fill:         "#FF0000",
			Outline:      "#8B0000",
			OutlineWidth: domain.DefaultOutlineWidth,
		},
		Retry:            RetryConfig{MaxAttempts: 1, Backoff: 2 * time.Second},
		Verification:     VerificationConfig{MaxAttempts: 3},
		Picker:           PickerConfig{DisplayWidth: 700, Addr: "127.0.0.1:0"},
		BatchConcurrency: 1,
		FloorPlanPrompt:  prompt.DefaultFloorPlanPrompt,
		Encoding:         EncodingPNG,
		JPEGQuality:      75,
		OutputDir:        "data/output",
	}
}

// Load は .env（無ければ無視）、既定値、path の YAML（空なら省略）、環境変数の順に適用して検証します。
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("設定ファイルを読み込めません: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルの解析に失敗しました: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.GeminiAPIKey = firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
	c.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.OpenAIBaseURL = v
	}
	if v := os.Getenv("ROOMKIT_IMAGE_MODEL"); v != "" {
		c.ImageModel = v
	}
	if v := os.Getenv("ROOMKIT_VISION_MODEL"); v != "" {
		c.VisionModel = v
	}
	if v := os.Getenv("ROOMKIT_DESCRIBER"); v != "" {
		c.DescriberProvider = strings.ToLower(v)
	}
	if v := os.Getenv("ROOMKIT_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("ROOMKIT_SEED: %w", err)
		}
		c.Seed = &seed
	}
	if v := os.Getenv("ROOMKIT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ROOMKIT_TIMEOUT: %w", err)
		}
		c.RequestTimeout = d
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// Validate は設定値の整合性を検証します。API キーの有無は利用時に確認します。
func (c *Config) Validate() error {
	var errs []error
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.ImageModel == "" {
		errs = append(errs, errors.New("image_model is required"))
	}
	switch c.DescriberProvider {
	case DescriberGemini:
		if c.VisionModel == "" {
			errs = append(errs, errors.New("vision_model is required"))
		}
	case DescriberOpenAI:
		if c.OpenAIModel == "" {
			errs = append(errs, errors.New("openai_model is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("describer must be %q or %q, got %q", DescriberGemini, DescriberOpenAI, c.DescriberProvider))
	}
	switch c.Encoding {
	case EncodingPNG:
	case EncodingJPEG:
		if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
			errs = append(errs, fmt.Errorf("jpeg_quality must be 1-100, got %d", c.JPEGQuality))
		}
	default:
		errs = append(errs, fmt.Errorf("encoding must be %q or %q, got %q", EncodingPNG, EncodingJPEG, c.Encoding))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts))
	}
	if c.Retry.Backoff < 0 {
		errs = append(errs, fmt.Errorf("retry.backoff must not be negative"))
	}
	if c.Verification.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("verification.max_attempts must be at least 1, got %d", c.Verification.MaxAttempts))
	}
	if c.BatchConcurrency < 1 {
		errs = append(errs, fmt.Errorf("batch_concurrency must be at least 1, got %d", c.BatchConcurrency))
	}
	if c.Picker.DisplayWidth <= 0 {
		errs = append(errs, fmt.Errorf("picker.display_width must be positive, got %d", c.Picker.DisplayWidth))
	}
	if c.Marker.Radius < 0 || c.Marker.OutlineWidth < 0 {
		errs = append(errs, errors.New("marker radius and outline_width must not be negative"))
	}
	if _, err := c.MarkerStyle(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// MarkerStyle は設定からマーカーの見た目を作ります。
func (c *Config) MarkerStyle() (domain.MarkerStyle, error) {
	fill, err := parseHexColor(c.Marker.Fill)
	if err != nil {
		return domain.MarkerStyle{}, fmt.Errorf("marker.fill: %w", err)
	}
	outline, err := parseHexColor(c.Marker.Outline)
	if err != nil {
		return domain.MarkerStyle{}, fmt.Errorf("marker.outline: %w", err)
	}
	return domain.MarkerStyle{
		Radius:       c.Marker.Radius,
		Fill:         fill,
		Outline:      outline,
		OutlineWidth: c.Marker.OutlineWidth,
	}, nil
}

// RequireGemini は Gemini の API キーが設定されているかを確認します。
func (c *Config) RequireGemini() error {
	if c.GeminiAPIKey == "" {
		return errors.New("GEMINI_API_KEY (or GOOGLE_API_KEY) is required")
	}
	return nil
}

// RequireOpenAI は OpenAI の API キーが設定されているかを確認します。
func (c *Config) RequireOpenAI() error {
	if c.OpenAIAPIKey == "" {
		return errors.New("OPENAI_API_KEY is required")
	}
	return nil
}

// parseHexColor は "#RRGGBB" を不透明な色に変換します。空文字は未設定（アルファ 0）です。
func parseHexColor(s string) (color.RGBA, error) {
	if s == "" {
		return color.RGBA{}, nil
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q: want #RRGGBB", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xFF}, nil
}
