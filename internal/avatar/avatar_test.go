package avatar

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/summit/internal/observability"
)

func testPhoto(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeModel struct {
	out   []byte
	err   error
	calls int
	mime  string
}

func (f *fakeModel) EditImage(_ context.Context, _ string, _ []byte, mimeType string) ([]byte, error) {
	f.calls++
	f.mime = mimeType
	return f.out, f.err
}

func TestStylizeProducesSquarePNG(t *testing.T) {
	out, err := Stylize(testPhoto(t, 300, 200))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, Size, Size), img.Bounds())

	// corners sit outside the vignette and keep the backdrop colour
	r, g, b, _ := img.At(0, 0).RGBA()
	assert.Equal(t, []uint32{6, 6, 11}, []uint32{r >> 8, g >> 8, b >> 8})
}

func TestStylizeRejectsGarbage(t *testing.T) {
	_, err := Stylize([]byte("not an image"))
	assert.Error(t, err)
}

func TestGenerateUsesModel(t *testing.T) {
	model := &fakeModel{out: []byte("model-image")}
	out, method, err := NewGenerator(model, observability.Discard()).Generate(context.Background(), testPhoto(t, 32, 32))

	require.NoError(t, err)
	assert.Equal(t, MethodModel, method)
	assert.Equal(t, "model-image", string(out))
	assert.Equal(t, "image/png", model.mime)
}

func TestGenerateFallsBack(t *testing.T) {
	tests := []struct {
		name  string
		model ImageModel
	}{
		{"no model", nil},
		{"model error", &fakeModel{err: errors.New("quota")}},
		{"empty image", &fakeModel{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, method, err := NewGenerator(tt.model, observability.Discard()).Generate(context.Background(), testPhoto(t, 64, 64))
			require.NoError(t, err)
			assert.Equal(t, MethodStylised, method)
			assert.NotEmpty(t, out)
		})
	}
}

func TestSafeName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Jane Doe", "jane_doe"},
		{"  O'Brien ", "o_brien"},
		{"", "visitor"},
		{"   ", "visitor"},
		{"Zoë", "zoë"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeName(tt.in), tt.in)
	}
}

func TestLocalStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "visitors")
	path, err := NewLocalStore(dir).Save(context.Background(), "Jane Doe", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "jane_doe_avatar.png"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
}

type fakeS3 struct {
	in *s3.PutObjectInput
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	return &s3.PutObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	client := &fakeS3{}
	url, err := NewS3Store(client, "media", "https://cdn.example.com/").Save(context.Background(), "Jane", []byte("png"))
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/avatars/jane_avatar.png", url)
	assert.Equal(t, "media", *client.in.Bucket)
	assert.Equal(t, "avatars/jane_avatar.png", *client.in.Key)
	assert.Equal(t, "image/png", *client.in.ContentType)
}
