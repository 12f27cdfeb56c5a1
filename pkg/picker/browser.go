package picker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/shouni/gemini-roomplan-kit/pkg/domain"
	"github.com/shouni/gemini-roomplan-kit/pkg/imgutil"
)

const (
	// DefaultDisplayWidth はブラウザに表示する画像の最大幅です。
	DefaultDisplayWidth = 700
	// DefaultAddr はループバックの空きポートです。
	DefaultAddr = "127.0.0.1:0"

	// DefaultCloseGrace はページを離れてからキャンセル扱いにするまでの猶予です。再読み込みはこの間にページを取り直します。
	DefaultCloseGrace = 3 * time.Second

	shutdownTimeout = 5 * time.Second
)

// Browser はローカルの HTTP ページに画像を表示し、最初のクリック位置を返す Source です。
type Browser struct {
	DisplayWidth int
	Addr         string
	Title        string
	CloseGrace   time.Duration
	// Open はページの URL を開きます。nil の場合は OS 既定のブラウザを起動します。
	Open   func(url string) error
	Logger *slog.Logger
}

// NewBrowser は表示幅と待ち受けアドレスを指定して Browser を作成します。
func NewBrowser(displayWidth int, addr string) *Browser {
	if displayWidth <= 0 {
		displayWidth = DefaultDisplayWidth
	}
	if addr == "" {
		addr = DefaultAddr
	}
	return &Browser{
		DisplayWidth: displayWidth,
		Addr:         addr,
		Title:        "roomkit - 位置の選択",
		CloseGrace:   DefaultCloseGrace,
	}
}

type clickRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type outcome struct {
	point image.Point
	err   error
}

// session は 1 回の Pick に対応する状態です。最初の結果だけが採用されます。
type session struct {
	mu      sync.Mutex
	closed  bool
	result  chan outcome
	pending *time.Timer // ページ離脱後のキャンセル待ち
	grace   time.Duration

	page   []byte
	image  []byte
	scale  float64
	bounds image.Rectangle
}

func (s *session) finish(o outcome) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.result <- o
	return true
}

// scheduleCancel は猶予のあとでキャンセルします。その間にページが再取得されれば取り消されます。
func (s *session) scheduleCancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.pending != nil {
		return
	}
	s.pending = time.AfterFunc(s.grace, func() {
		s.finish(outcome{err: domain.ErrPickerCancelled})
	})
}

func (s *session) keepAlive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}

// Pick はページを開き、クリックかキャンセルが届くまで待ちます。
// どの経路で戻ってもサーバーは停止されます。
func (b *Browser) Pick(ctx context.Context, img image.Image) (image.Point, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s, err := b.newSession(img)
	if err != nil {
		return image.Point{}, err
	}

	addr := b.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return image.Point{}, fmt.Errorf("ピッカーの待ち受けに失敗しました: %w", err)
	}

	token := uuid.NewString()
	srv := &http.Server{
		Handler:           s.routes(token),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("ピッカーのサーバーが停止しました", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("ピッカーのサーバー停止に失敗しました", "error", err)
		}
	}()

	url := fmt.Sprintf("http://%s/%s/", ln.Addr().String(), token)
	logger.Info("ブラウザで位置を選択してください", "url", url)

	open := b.Open
	if open == nil {
		open = OpenURL
	}
	if err := open(url); err != nil {
		// 起動に失敗しても URL は表示済みなので手動で開ける
		logger.Warn("ブラウザを起動できませんでした", "url", url, "error", err)
	}

	select {
	case o := <-s.result:
		return o.point, o.err
	case <-ctx.Done():
		s.finish(outcome{err: ctx.Err()})
		return image.Point{}, fmt.Errorf("%w: %w", domain.ErrPickerCancelled, ctx.Err())
	}
}

func (b *Browser) newSession(img image.Image) (*session, error) {
	if img == nil {
		return nil, errors.New("image is required")
	}
	width := b.DisplayWidth
	if width <= 0 {
		width = DefaultDisplayWidth
	}
	display, scale := imgutil.FitWidth(img, width)
	data, err := imgutil.EncodePNG(display)
	if err != nil {
		return nil, err
	}

	var page bytes.Buffer
	db := display.Bounds()
	if err := pageTemplate.Execute(&page, pageData{Title: b.Title, Width: db.Dx(), Height: db.Dy()}); err != nil {
		return nil, fmt.Errorf("ピッカーページの生成に失敗しました: %w", err)
	}

	grace := b.CloseGrace
	if grace <= 0 {
		grace = DefaultCloseGrace
	}
	return &session{
		result: make(chan outcome, 1),
		grace:  grace,
		page:   page.Bytes(),
		image:  data,
		scale:  scale,
		bounds: img.Bounds(),
	}, nil
}

func (s *session) routes(token string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/"+token, func(r chi.Router) {
		r.Get("/", s.handlePage)
		r.Get("/image.png", s.handleImage)
		r.Post("/click", s.handleClick)
		r.Post("/cancel", s.handleCancel)
	})
	return r
}

func (s *session) handlePage(w http.ResponseWriter, _ *http.Request) {
	s.keepAlive()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(s.page)
}

func (s *session) handleImage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", imgutil.MimePNG)
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(s.image)
}

func (s *session) handleClick(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.X < 0 || req.Y < 0 {
		http.Error(w, domain.ErrInvalidCoordinate.Error(), http.StatusBadRequest)
		return
	}

	p := imgutil.ToSource(image.Pt(req.X, req.Y), s.scale, s.bounds)
	if err := Validate(p, s.bounds); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !s.finish(outcome{point: p}) {
		http.Error(w, "already selected", http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{"x": p.X, "y": p.Y})
}

// handleCancel はキャンセルボタンなら即座に、ページ離脱（reason=close）なら猶予付きでキャンセルします。
func (s *session) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("reason") == "close" {
		s.scheduleCancel()
	} else {
		s.finish(outcome{err: domain.ErrPickerCancelled})
	}
	w.WriteHeader(http.StatusNoContent)
}

// OpenURL は OS 既定のブラウザで url を開きます。
func OpenURL(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
