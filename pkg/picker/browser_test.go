package picker

import (
	"bytes"
	"context"
	"image"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/gemini-roomplan-kit/pkg/domain"
	"github.com/shouni/gemini-roomplan-kit/pkg/imgutil"
)

func postJSON(t *testing.T, url, body string) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestBrowser_Pick(t *testing.T) {
	t.Run("最初のクリックだけを元画像の座標で返すのだ", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 1400, 1000))
		b := NewBrowser(700, "")

		var statuses []int
		var pageURL string
		b.Open = func(url string) error {
			pageURL = url
			statuses = append(statuses, postJSON(t, url+"click", `{"x":100,"y":150}`))
			statuses = append(statuses, postJSON(t, url+"click", `{"x":5,"y":5}`))
			return nil
		}

		got, err := b.Pick(context.Background(), img)
		require.NoError(t, err)
		assert.Equal(t, image.Pt(200, 300), got)
		assert.Equal(t, []int{http.StatusOK, http.StatusConflict}, statuses)

		// 戻った時点でサーバーは停止している
		_, err = http.Get(pageURL)
		assert.Error(t, err)
	})

	t.Run("ページと縮小画像を配信するのだ", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 1400, 1000))
		b := NewBrowser(700, "")

		var page string
		var shown image.Image
		b.Open = func(url string) error {
			resp, err := http.Get(url)
			require.NoError(t, err)
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			page = string(body)

			resp, err = http.Get(url + "image.png")
			require.NoError(t, err)
			data, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			shown, _, err = imgutil.Decode(data)
			require.NoError(t, err)

			postJSON(t, url+"click", `{"x":1,"y":1}`)
			return nil
		}

		_, err := b.Pick(context.Background(), img)
		require.NoError(t, err)
		assert.Contains(t, page, `width="700"`)
		assert.Contains(t, page, `height="500"`)
		require.NotNil(t, shown)
		assert.Equal(t, 700, shown.Bounds().Dx())
	})

	t.Run("範囲外のクリックは受け付けず待ち続けるのだ", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 400, 300))
		b := NewBrowser(700, "")

		var statuses []int
		b.Open = func(url string) error {
			statuses = append(statuses, postJSON(t, url+"click", `{"x":400,"y":10}`))
			statuses = append(statuses, postJSON(t, url+"click", `{"x":-3,"y":10}`))
			statuses = append(statuses, postJSON(t, url+"click", `not json`))
			statuses = append(statuses, postJSON(t, url+"click", `{"x":399,"y":299}`))
			return nil
		}

		got, err := b.Pick(context.Background(), img)
		require.NoError(t, err)
		assert.Equal(t, image.Pt(399, 299), got)
		assert.Equal(t, []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusBadRequest, http.StatusOK}, statuses)
	})

	t.Run("再読み込みによる離脱ではキャンセルしないのだ", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 50, 50))
		b := NewBrowser(0, "")
		b.CloseGrace = 200 * time.Millisecond
		b.Open = func(url string) error {
			resp, err := http.Post(url+"cancel?reason=close", "text/plain", bytes.NewReader(nil))
			require.NoError(t, err)
			resp.Body.Close()

			resp, err = http.Get(url)
			require.NoError(t, err)
			resp.Body.Close()

			time.Sleep(400 * time.Millisecond)
			postJSON(t, url+"click", `{"x":3,"y":4}`)
			return nil
		}

		got, err := b.Pick(context.Background(), img)
		require.NoError(t, err)
		assert.Equal(t, image.Pt(3, 4), got)
	})

	t.Run("ページを離れたまま猶予が過ぎたらキャンセル", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 50, 50))
		b := NewBrowser(0, "")
		b.CloseGrace = 50 * time.Millisecond
		b.Open = func(url string) error {
			resp, err := http.Post(url+"cancel?reason=close", "text/plain", bytes.NewReader(nil))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusNoContent, resp.StatusCode)
			return nil
		}

		_, err := b.Pick(context.Background(), img)
		assert.ErrorIs(t, err, domain.ErrPickerCancelled)
	})

	t.Run("キャンセルボタンは即座にキャンセル", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 50, 50))
		b := NewBrowser(0, "")
		b.Open = func(url string) error {
			resp, err := http.Post(url+"cancel", "text/plain", bytes.NewReader(nil))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusNoContent, resp.StatusCode)
			return nil
		}

		_, err := b.Pick(context.Background(), img)
		assert.ErrorIs(t, err, domain.ErrPickerCancelled)
	})

	t.Run("コンテキストのキャンセルで戻るのだ", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 50, 50))
		b := NewBrowser(0, "")
		b.Open = func(string) error { return nil }

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := b.Pick(ctx, img)
		assert.ErrorIs(t, err, domain.ErrPickerCancelled)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("ブラウザ起動の失敗では終了しない", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 50, 50))
		b := NewBrowser(0, "")
		b.Open = func(url string) error {
			postJSON(t, url+"click", `{"x":7,"y":8}`)
			return assert.AnError
		}

		got, err := b.Pick(context.Background(), img)
		require.NoError(t, err)
		assert.Equal(t, image.Pt(7, 8), got)
	})

	t.Run("画像がnilならエラー", func(t *testing.T) {
		_, err := NewBrowser(0, "").Pick(context.Background(), nil)
		assert.Error(t, err)
	})
}
