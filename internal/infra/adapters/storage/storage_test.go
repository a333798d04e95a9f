package storage

import (
	"context"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	s := NewSigner("secret", time.Hour)
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	link, expires := s.Sign("abc/report.pdf")
	assert.Equal(t, now.Add(time.Hour), expires)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/files/abc/report.pdf", u.Path)

	q := u.Query()
	require.NoError(t, s.Verify("abc/report.pdf", q.Get("expires"), q.Get("sig")))

	assert.ErrorIs(t, s.Verify("abc/other.pdf", q.Get("expires"), q.Get("sig")), ErrBadSignature)
	assert.ErrorIs(t, s.Verify("abc/report.pdf", "1", q.Get("sig")), ErrBadSignature)
	assert.ErrorIs(t, s.Verify("abc/report.pdf", "soon", q.Get("sig")), ErrBadSignature)

	now = now.Add(2 * time.Hour)
	assert.ErrorIs(t, s.Verify("abc/report.pdf", q.Get("expires"), q.Get("sig")), ErrExpired)
}

func TestOtherSecretRejected(t *testing.T) {
	link, _ := NewSigner("a", time.Minute).Sign("x/y")
	u, err := url.Parse(link)
	require.NoError(t, err)

	err = NewSigner("b", time.Minute).Verify("x/y", u.Query().Get("expires"), u.Query().Get("sig"))
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestLocalStorePutOpen(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), 0)
	require.NoError(t, err)

	ctx := context.Background()

	object, err := store.Put(ctx, "../../etc/labs.txt", strings.NewReader("hemoglobin 13.5"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(object, "/labs.txt"))

	f, err := store.Open(ctx, object)
	require.NoError(t, err)
	defer f.Close()

	body, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "hemoglobin 13.5", string(body))
}

func TestLocalStoreRejects(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), 4)
	require.NoError(t, err)

	ctx := context.Background()

	_, err = store.Put(ctx, "big.bin", strings.NewReader("12345"))
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = store.Put(ctx, "  ", strings.NewReader("1"))
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = store.Open(ctx, "not-a-uuid/file")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = store.Open(ctx, "0d9f3c1e-8d5e-4a8e-9c53-3f0f1f0a2b7c/missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}
