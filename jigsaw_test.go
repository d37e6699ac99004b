package jigsaw

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/bodgit/jigsaw/record"
	"github.com/bodgit/jigsaw/store"
	"github.com/bodgit/jigsaw/tile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	red  = color.NRGBA{0xff, 0x00, 0x00, 0xff}
	blue = color.NRGBA{0x00, 0x00, 0xff, 0xff}
)

func solid(w, h int, c color.Color) *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.Set(x, y, c)
		}
	}
	return m
}

func encodePNG(t *testing.T, m image.Image) []byte {
	t.Helper()
	b := new(bytes.Buffer)
	require.NoError(t, png.Encode(b, m))
	return b.Bytes()
}

type notification struct {
	severity Severity
	message  string
}

type recorder struct {
	mu            sync.Mutex
	notifications []notification
}

func (r *recorder) Notify(s Severity, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, notification{s, msg})
}

func (r *recorder) last() notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notifications) == 0 {
		return notification{}
	}
	return r.notifications[len(r.notifications)-1]
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notifications)
}

type fakeStore struct {
	*store.Store
	saveErr  error
	loadErr  error
	clearErr error
}

func (f *fakeStore) Save(ctx context.Context, g record.Grid) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.Store.Save(ctx, g)
}

func (f *fakeStore) Load(ctx context.Context) (*record.Grid, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.Store.Load(ctx)
}

func (f *fakeStore) Clear(ctx context.Context) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	return f.Store.Clear(ctx)
}

func newJigsaw(t *testing.T) (*Jigsaw, *fakeStore, *recorder) {
	t.Helper()
	s := &fakeStore{Store: store.New(store.NewMemory(), "", nil)}
	r := new(recorder)
	j, err := New(DefaultConfig(), s, zaptest.NewLogger(t), r)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j, s, r
}

func pngCandidate(t *testing.T, name string, c color.Color) *Candidate {
	return NewCandidate(name, "image/png", encodePNG(t, solid(10, 10, c)))
}

func assertTileColor(t *testing.T, piece string, c color.Color) {
	t.Helper()
	m, err := tile.Decode(piece)
	require.NoError(t, err)
	b := m.Bounds()
	assert.Equal(t, color.NRGBAModel.Convert(c), color.NRGBAModel.Convert(m.At(b.Min.X+b.Dx()/2, b.Min.Y+b.Dy()/2)))
}

func TestSelectSolidPNG(t *testing.T) {
	j, s, r := newJigsaw(t)
	ctx := context.Background()

	state, err := j.Select(ctx, pngCandidate(t, "red.png", red))
	require.NoError(t, err)
	require.Equal(t, Ready, state.Status)
	require.NotNil(t, state.Grid)
	assert.NoError(t, state.Err)
	assert.False(t, state.Loading())

	pieces := state.Pieces()
	require.Len(t, pieces, 9)
	for _, piece := range pieces {
		cfg, err := tile.DecodeConfig(piece)
		require.NoError(t, err)
		assert.Equal(t, 133, cfg.Width)
		assert.Equal(t, 133, cfg.Height)
		assertTileColor(t, piece, red)
	}

	j.Wait()

	g, err := s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, 3, g.Rows)
	assert.Equal(t, 3, g.Cols)
	assert.Equal(t, pieces, g.Pieces)

	assert.Equal(t, 0, r.len())
	assert.Equal(t, Ready, j.State().Status)
}

func TestSelectWebP(t *testing.T) {
	j, _, _ := newJigsaw(t)

	b, err := base64.StdEncoding.DecodeString(webpLossless)
	require.NoError(t, err)

	state, err := j.Select(context.Background(), NewCandidate("pixel.webp", "image/webp", b))
	require.NoError(t, err)
	require.Equal(t, Ready, state.Status)
	assert.Len(t, state.Pieces(), 9)
}

func TestSelectTooLarge(t *testing.T) {
	j, s, r := newJigsaw(t)
	ctx := context.Background()

	c := &Candidate{
		Name: "huge.png",
		Type: "image/png",
		Size: 6 << (10 * 2),
		Open: func() (io.ReadCloser, error) {
			t.Fatal("rejected file was opened")
			return nil, nil
		},
	}

	state, err := j.Select(ctx, c)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, Idle, state.Status)
	assert.Nil(t, state.Grid)

	assert.Equal(t, Error, r.last().severity)
	assert.Equal(t, "File is too large. Maximum size: 5 MB.", r.last().message)

	g, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestSelectUnsupportedType(t *testing.T) {
	j, _, r := newJigsaw(t)

	state, err := j.Select(context.Background(), NewCandidate("notes.txt", "text/plain", []byte("hello")))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "text/plain", verr.Type)

	assert.Equal(t, Idle, state.Status)
	assert.Equal(t, notification{Error, "Unsupported file type. Choose a JPEG, PNG or WEBP image."}, r.last())
}

func TestSelectRejectedClearsPuzzle(t *testing.T) {
	j, _, _ := newJigsaw(t)
	ctx := context.Background()

	state, err := j.Select(ctx, pngCandidate(t, "red.png", red))
	require.NoError(t, err)
	require.Equal(t, Ready, state.Status)

	state, err = j.Select(ctx, NewCandidate("notes.txt", "text/plain", nil))
	assert.Error(t, err)
	assert.Equal(t, Idle, state.Status)
	assert.Nil(t, state.Pieces())
	assert.Empty(t, state.Preview)
}

func TestSelectLargerThanDeclared(t *testing.T) {
	j, s, r := newJigsaw(t)
	ctx := context.Background()

	c := NewCandidate("liar.png", "image/png", make([]byte, DefaultMaxSizeBytes+10))
	c.Size = 10

	state, err := j.Select(ctx, c)
	assert.ErrorIs(t, err, ErrTooLarge)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	assert.Equal(t, Idle, state.Status)
	assert.NoError(t, state.Err)
	assert.Nil(t, state.Grid)
	assert.Empty(t, state.Preview)
	assert.Equal(t, Idle, j.State().Status)
	assert.Equal(t, notification{Error, "File is too large. Maximum size: 5 MB."}, r.last())

	j.Wait()
	g, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestSelectNoContents(t *testing.T) {
	j, _, _ := newJigsaw(t)

	state, err := j.Select(context.Background(), &Candidate{Name: "a.png", Type: "image/png", Size: 10})
	require.NoError(t, err)
	assert.Equal(t, Failed, state.Status)
	assert.ErrorIs(t, state.Err, ErrDecode)
}

func TestSelectDecodeError(t *testing.T) {
	j, s, r := newJigsaw(t)
	ctx := context.Background()

	state, err := j.Select(ctx, NewCandidate("broken.png", "image/png", []byte("not really a png")))
	require.NoError(t, err)
	assert.Equal(t, Failed, state.Status)
	assert.ErrorIs(t, state.Err, ErrDecode)
	assert.Nil(t, state.Grid)
	assert.Equal(t, Error, r.last().severity)

	j.Wait()
	g, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, g)

	// Failed is stable until the next selection
	assert.Equal(t, Failed, j.State().Status)

	state, err = j.Select(ctx, pngCandidate(t, "red.png", red))
	require.NoError(t, err)
	assert.Equal(t, Ready, state.Status)
	assert.NoError(t, state.Err)
}

func TestSelectReadError(t *testing.T) {
	j, _, _ := newJigsaw(t)

	c := &Candidate{
		Name: "gone.png",
		Type: "image/png",
		Size: 100,
		Open: func() (io.ReadCloser, error) {
			return nil, os.ErrNotExist
		},
	}

	state, err := j.Select(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, Failed, state.Status)
	assert.ErrorIs(t, state.Err, ErrDecode)
	assert.ErrorIs(t, state.Err, os.ErrNotExist)
}

func TestSelectSaveFailure(t *testing.T) {
	j, s, r := newJigsaw(t)
	s.saveErr = errors.New("disk full")

	state, err := j.Select(context.Background(), pngCandidate(t, "red.png", red))
	require.NoError(t, err)
	assert.Equal(t, Ready, state.Status)

	j.Wait()

	state = j.State()
	assert.Equal(t, Ready, state.Status)
	assert.Len(t, state.Pieces(), 9)
	assert.EqualError(t, state.Warning, "disk full")
	assert.Equal(t, notification{Warning, msgSaveFailed}, r.last())
}

func TestSelectNilResets(t *testing.T) {
	j, _, _ := newJigsaw(t)

	state, err := j.Select(context.Background(), pngCandidate(t, "red.png", red))
	require.NoError(t, err)
	require.Equal(t, Ready, state.Status)

	state, err = j.Select(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, Idle, state.Status)
	assert.Nil(t, state.Grid)
}

func TestMount(t *testing.T) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		j, _, r := newJigsaw(t)
		state := j.Mount(ctx)
		assert.Equal(t, Idle, state.Status)
		assert.NoError(t, state.Err)
		assert.Equal(t, 0, r.len())
	})

	t.Run("saved", func(t *testing.T) {
		j, s, _ := newJigsaw(t)

		pieces := make([]string, 9)
		for i := range pieces {
			p, err := tile.EncodeToString(solid(2, 2, blue))
			require.NoError(t, err)
			pieces[i] = p
		}
		require.NoError(t, s.Save(ctx, record.Grid{Pieces: pieces, Rows: 3, Cols: 3}))

		state := j.Mount(ctx)
		require.Equal(t, Ready, state.Status)
		assert.Equal(t, pieces, state.Pieces())
	})

	t.Run("error", func(t *testing.T) {
		j, s, r := newJigsaw(t)
		s.loadErr = errors.New("locked")

		state := j.Mount(ctx)
		assert.Equal(t, Idle, state.Status)
		assert.EqualError(t, state.Err, "locked")
		assert.Equal(t, notification{Error, msgLoadFailed}, r.last())
	})
}

func TestClearSaved(t *testing.T) {
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		j, s, r := newJigsaw(t)

		_, err := j.Select(ctx, pngCandidate(t, "red.png", red))
		require.NoError(t, err)
		j.Wait()

		state := j.ClearSaved(ctx)
		assert.Equal(t, Idle, state.Status)
		assert.Nil(t, state.Grid)
		assert.NoError(t, state.Warning)
		assert.Equal(t, notification{Info, msgCleared}, r.last())

		g, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, g)

		// Clearing again is fine
		assert.NoError(t, j.ClearSaved(ctx).Warning)
	})

	t.Run("pending save", func(t *testing.T) {
		j, s, _ := newJigsaw(t)

		state, err := j.Select(ctx, pngCandidate(t, "red.png", red))
		require.NoError(t, err)
		require.Equal(t, Ready, state.Status)

		// No Wait, the save may still be queued
		assert.Equal(t, Idle, j.ClearSaved(ctx).Status)

		j.Wait()

		g, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, g)
		assert.Equal(t, Idle, j.State().Status)
	})

	t.Run("error", func(t *testing.T) {
		j, s, r := newJigsaw(t)
		s.clearErr = errors.New("read-only")

		_, err := j.Select(ctx, pngCandidate(t, "red.png", red))
		require.NoError(t, err)

		state := j.ClearSaved(ctx)
		assert.Equal(t, Idle, state.Status)
		assert.Nil(t, state.Grid)
		assert.EqualError(t, state.Warning, "read-only")
		assert.Equal(t, notification{Error, msgClearFailed}, r.last())
	})
}

type blockingReader struct {
	started chan struct{}
	release chan struct{}
	r       io.Reader
}

func (b *blockingReader) Read(p []byte) (int, error) {
	select {
	case <-b.started:
	default:
		close(b.started)
	}
	<-b.release
	return b.r.Read(p)
}

func (b *blockingReader) Close() error {
	return nil
}

func TestSelectSupersededRun(t *testing.T) {
	j, s, _ := newJigsaw(t)
	ctx := context.Background()

	data := encodePNG(t, solid(10, 10, red))
	br := &blockingReader{
		started: make(chan struct{}),
		release: make(chan struct{}),
		r:       bytes.NewReader(data),
	}
	slow := &Candidate{
		Name: "slow.png",
		Type: "image/png",
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return br, nil
		},
	}

	done := make(chan State)
	go func() {
		state, _ := j.Select(ctx, slow)
		done <- state
	}()

	<-br.started
	assert.Equal(t, Processing, j.State().Status)

	state, err := j.Select(ctx, pngCandidate(t, "blue.png", blue))
	require.NoError(t, err)
	require.Equal(t, Ready, state.Status)

	close(br.release)
	<-done

	j.Wait()

	// The slow run finished last but must not have replaced anything
	state = j.State()
	require.Equal(t, Ready, state.Status)
	for _, piece := range state.Pieces() {
		assertTileColor(t, piece, blue)
	}

	g, err := s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, g)
	for _, piece := range g.Pieces {
		assertTileColor(t, piece, blue)
	}
}

func TestPreviewReleased(t *testing.T) {
	j, _, _ := newJigsaw(t)
	ctx := context.Background()

	state, err := j.Select(ctx, pngCandidate(t, "red.png", red))
	require.NoError(t, err)
	first := state.Preview
	require.NotEmpty(t, first)
	assert.FileExists(t, first)

	b, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, encodePNG(t, solid(10, 10, red)), b)

	state, err = j.Select(ctx, pngCandidate(t, "blue.png", blue))
	require.NoError(t, err)
	second := state.Preview
	require.NotEmpty(t, second)
	assert.NoFileExists(t, first)
	assert.FileExists(t, second)

	j.Reset()
	assert.NoFileExists(t, second)
	assert.Empty(t, j.State().Preview)
}

func TestNewNoStore(t *testing.T) {
	j, err := New(DefaultConfig(), nil, nil, nil)
	assert.ErrorIs(t, err, errNoStore)
	assert.Nil(t, j)
}

func TestNewInvalidConfig(t *testing.T) {
	c := DefaultConfig()
	c.AllowedTypes = []string{"image/svg+xml"}
	_, err := New(c, &fakeStore{Store: store.New(store.NewMemory(), "", nil)}, nil, nil)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, errNoStore)
}

func TestConfigIsCopied(t *testing.T) {
	c := DefaultConfig()
	j, err := New(c, &fakeStore{Store: store.New(store.NewMemory(), "", nil)}, nil, nil)
	require.NoError(t, err)
	defer j.Close()

	c.AllowedTypes[0] = "image/gif"

	_, err = j.Select(context.Background(), NewCandidate("a.gif", "image/gif", nil))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}
