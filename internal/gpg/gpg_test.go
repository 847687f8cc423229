package gpg_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"
	"golang.org/x/crypto/openpgp/packet"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/gpg"
)

func newKey(t *testing.T) (*openpgp.Entity, string) {
	t.Helper()
	e, err := openpgp.NewEntity("Ann Example", "", "ann@acme.com", &packet.Config{RSABits: 1024})
	require.NoError(t, err)

	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, e.Serialize(w))
	require.NoError(t, w.Close())
	return e, buf.String()
}

func decrypt(t *testing.T, e *openpgp.Entity, armored string) string {
	t.Helper()
	block, err := armor.Decode(strings.NewReader(armored))
	require.NoError(t, err)
	md, err := openpgp.ReadMessage(block.Body, openpgp.EntityList{e}, nil, nil)
	require.NoError(t, err)
	plain, err := io.ReadAll(md.UnverifiedBody)
	require.NoError(t, err)
	return string(plain)
}

func TestEncryptRoundTrip(t *testing.T) {
	e, pub := newKey(t)
	svc := gpg.NewService()

	armored, err := svc.Encrypt("<p>secret</p>", pub)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(armored, "-----BEGIN PGP MESSAGE-----"))
	assert.Equal(t, "<p>secret</p>", decrypt(t, e, armored))
}

func TestEncryptHTMLWrapsNotice(t *testing.T) {
	_, pub := newKey(t)
	out, err := gpg.NewService().EncryptHTML("<p>secret</p>", pub)
	require.NoError(t, err)
	assert.Contains(t, out, "This message is encrypted with PGP/GPG.")
	assert.Contains(t, out, "BEGIN PGP MESSAGE")
	assert.NotContains(t, out, "<p>secret</p>")
}

func TestValidatePublicKey(t *testing.T) {
	_, pub := newKey(t)
	svc := gpg.NewService()
	assert.True(t, svc.ValidatePublicKey(pub))
	assert.False(t, svc.ValidatePublicKey("not a key"))
	assert.False(t, svc.ValidatePublicKey(""))
}

func TestKeyInfo(t *testing.T) {
	e, pub := newKey(t)
	info, err := gpg.NewService().KeyInfo(pub)
	require.NoError(t, err)

	assert.Len(t, info.KeyID, 16)
	assert.Len(t, info.Fingerprint, 40)
	assert.Equal(t, []string{"Ann Example <ann@acme.com>"}, info.UserIDs)
	assert.Equal(t, "rsa", info.Algorithm)
	assert.Equal(t, e.PrimaryKey.CreationTime.Unix(), info.Created.Unix())

	_, err = gpg.NewService().KeyInfo("garbage")
	assert.Error(t, err)
}

type failingEncrypter struct{ calls int }

func (f *failingEncrypter) EncryptHTML(string, string) (string, error) {
	f.calls++
	return "", errors.New("bad key")
}

func TestAdapter_MaybeEncrypt(t *testing.T) {
	_, pub := newKey(t)
	a := gpg.NewAdapter(gpg.NewService())

	t.Run("opted in with key", func(t *testing.T) {
		out, ok := a.MaybeEncrypt("<p>hi</p>", &domain.Subscriber{Email: "a@x.com", EncryptEmails: true, GPGPublicKey: pub})
		assert.True(t, ok)
		assert.Contains(t, out, "BEGIN PGP MESSAGE")
	})

	t.Run("opted in without key", func(t *testing.T) {
		out, ok := a.MaybeEncrypt("<p>hi</p>", &domain.Subscriber{Email: "a@x.com", EncryptEmails: true})
		assert.False(t, ok)
		assert.Equal(t, "<p>hi</p>", out)
	})

	t.Run("key without opt in", func(t *testing.T) {
		out, ok := a.MaybeEncrypt("<p>hi</p>", &domain.Subscriber{Email: "a@x.com", GPGPublicKey: pub})
		assert.False(t, ok)
		assert.Equal(t, "<p>hi</p>", out)
	})

	t.Run("failure falls back to original", func(t *testing.T) {
		f := &failingEncrypter{}
		out, ok := gpg.NewAdapter(f).MaybeEncrypt("<p>hi</p>", &domain.Subscriber{Email: "a@x.com", EncryptEmails: true, GPGPublicKey: "junk"})
		assert.False(t, ok)
		assert.Equal(t, "<p>hi</p>", out)
		assert.Equal(t, 1, f.calls)
	})
}
