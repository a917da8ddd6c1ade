package session

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/cineverse/internal/model"
	"github.com/user/cineverse/internal/storage"
)

// 最小的 PNG 文件头，足够被识别为 image/png
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

var gifBytes = []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00\xff\xff\xff\x00\x00\x00;")

const svgWithScript = `<svg xmlns="http://www.w3.org/2000/svg"><script>alert(document.cookie)</script></svg>`

func TestUpdateProfile_ShortUsernameSkipsRemote(t *testing.T) {
	remote := newFakeRemote()
	c := readyCache(t, remote, Options{})

	err := c.UpdateProfile(context.Background(), "  ab ")
	assert.ErrorIs(t, err, model.ErrUsernameTooShort)
	assert.Equal(t, 0, remote.updateUsernameCall)
	assert.Equal(t, "ana", c.Profile().Username)
}

func TestUpdateProfile_TakenLeavesStateUnchanged(t *testing.T) {
	remote := newFakeRemote()
	c := readyCache(t, remote, Options{})
	remote.updateUsernameFn = func(context.Context, string, string) error {
		return model.ErrUsernameTaken
	}

	err := c.UpdateProfile(context.Background(), "bia")
	assert.ErrorIs(t, err, model.ErrUsernameTaken)
	assert.Equal(t, "ana", c.Profile().Username)
}

func TestUpdateProfile_OtherFailureLeavesStateUnchanged(t *testing.T) {
	remote := newFakeRemote()
	c := readyCache(t, remote, Options{})
	boom := errors.New("boom")
	remote.updateUsernameFn = func(context.Context, string, string) error { return boom }

	err := c.UpdateProfile(context.Background(), "bia")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "ana", c.Profile().Username)
}

func TestUpdateProfile_Success(t *testing.T) {
	remote := newFakeRemote()
	c := readyCache(t, remote, Options{})

	require.NoError(t, c.UpdateProfile(context.Background(), "anabela"))
	assert.Equal(t, "anabela", c.Profile().Username)
	assert.Equal(t, 1, remote.updateUsernameCall)
}

func TestUpdateProfile_NoSession(t *testing.T) {
	c := NewCache(newFakeRemote(), Options{})
	assert.ErrorIs(t, c.UpdateProfile(context.Background(), "anabela"), model.ErrNoSession)
}

func newAvatarCache(t *testing.T, remote *fakeRemote, opts Options) (*Cache, *storage.Bucket) {
	t.Helper()
	bucket, err := storage.NewBucket(afero.NewMemMapFs(), "avatars", "http://localhost:5005/storage")
	require.NoError(t, err)
	opts.Storage = bucket
	opts.Now = func() time.Time { return time.UnixMilli(1700000000000) }
	return readyCache(t, remote, opts), bucket
}

func TestUpdateAvatarData_UploadsAndUpdatesProfile(t *testing.T) {
	remote := newFakeRemote()
	c, bucket := newAvatarCache(t, remote, Options{})

	url, err := c.UpdateAvatarData(context.Background(), bytes.NewReader(pngBytes))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5005/storage/avatars/u1/avatar.png?t=1700000000000", url)

	stored, err := bucket.ReadAll("u1/avatar.png")
	require.NoError(t, err)
	assert.Equal(t, pngBytes, stored)

	p := c.Profile()
	require.True(t, p.HasAvatar())
	assert.Equal(t, url, *p.AvatarURL)
}

func TestUpdateAvatarData_ExtensionFollowsContent(t *testing.T) {
	c, _ := newAvatarCache(t, newFakeRemote(), Options{})

	url, err := c.UpdateAvatarData(context.Background(), bytes.NewReader(gifBytes))
	require.NoError(t, err)
	assert.Contains(t, url, "/u1/avatar.gif?t=")
}

func TestUpdateAvatarData_RejectsNonImage(t *testing.T) {
	c, _ := newAvatarCache(t, newFakeRemote(), Options{})

	_, err := c.UpdateAvatarData(context.Background(), strings.NewReader("hello world"))
	assert.ErrorIs(t, err, model.ErrNotAnImage)
	assert.False(t, c.Profile().HasAvatar())
}

func TestUpdateAvatarData_RejectsSVG(t *testing.T) {
	c, bucket := newAvatarCache(t, newFakeRemote(), Options{})

	_, err := c.UpdateAvatarData(context.Background(), strings.NewReader(svgWithScript))
	assert.ErrorIs(t, err, model.ErrNotAnImage)
	assert.False(t, c.Profile().HasAvatar())

	_, err = bucket.ReadAll("u1/avatar.svg")
	assert.Error(t, err)
}

func TestUpdateAvatarData_RejectsTooLarge(t *testing.T) {
	c, _ := newAvatarCache(t, newFakeRemote(), Options{MaxAvatarBytes: 8})

	_, err := c.UpdateAvatarData(context.Background(), bytes.NewReader(pngBytes))
	assert.ErrorIs(t, err, model.ErrImageTooLarge)
}

func TestUpdateAvatar_FromURLAndFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBytes)
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/pics/me.webp", pngBytes, 0o644))

	c, _ := newAvatarCache(t, newFakeRemote(), Options{FS: fs})

	// 地址中的扩展名不影响存储的文件名
	url, err := c.UpdateAvatar(context.Background(), srv.URL+"/images/me.html")
	require.NoError(t, err)
	assert.Contains(t, url, "/u1/avatar.png?t=")

	url, err = c.UpdateAvatar(context.Background(), "file:///pics/me.webp")
	require.NoError(t, err)
	assert.Contains(t, url, "/u1/avatar.png?t=")

	_, err = c.UpdateAvatar(context.Background(), "ftp://host/me.png")
	assert.Error(t, err)
}

func TestAvatarContentType(t *testing.T) {
	ct, ok := AvatarContentType("u1/avatar.png")
	require.True(t, ok)
	assert.Equal(t, "image/png", ct)

	ct, ok = AvatarContentType("u1/avatar.jpg")
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", ct)

	for _, name := range []string{"u1/avatar.html", "u1/avatar.svg", "u1/avatar", "u1/avatar.PNG"} {
		_, ok := AvatarContentType(name)
		assert.False(t, ok, name)
	}
}
