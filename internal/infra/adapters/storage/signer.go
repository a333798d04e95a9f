package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

var (
	ErrBadSignature = errors.New("bad file signature")
	ErrExpired      = errors.New("file link expired")
)

// Signer подписывает ссылки на объекты: sig = HMAC-SHA256(secret, object|expires)
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Sign возвращает относительную ссылку /files/<object>?expires=&sig= и время истечения
func (s *Signer) Sign(object string) (string, time.Time) {
	expires := s.now().Add(s.ttl).Truncate(time.Second)
	unix := strconv.FormatInt(expires.Unix(), 10)

	q := url.Values{}
	q.Set("expires", unix)
	q.Set("sig", s.sum(object, unix))

	u := url.URL{Path: "/files/" + object, RawQuery: q.Encode()}

	return u.String(), expires
}

func (s *Signer) Verify(object, expires, sig string) error {
	unix, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: expires %q", ErrBadSignature, expires)
	}

	want := s.sum(object, expires)
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return ErrBadSignature
	}

	if s.now().Unix() > unix {
		return ErrExpired
	}

	return nil
}

func (s *Signer) sum(object, expires string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(object + "|" + expires))

	return hex.EncodeToString(mac.Sum(nil))
}
