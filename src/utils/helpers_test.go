package utils

import (
	"errors"
	"io"
	"os"
	"strings"
	"tbs/src/config"
	"tbs/src/types"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func TestWithSuffix(t *testing.T) {
	os.Unsetenv("QUEUE_SUFFIX")
	assert.Equal(t, "TripsToClose", WithSuffix("TripsToClose"))

	os.Setenv("QUEUE_SUFFIX", "staging")
	assert.Equal(t, "TripsToClose_staging", WithSuffix("TripsToClose"))
	os.Unsetenv("QUEUE_SUFFIX")
}

func TestGenerateJWT(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret")

	token, err := GenerateJWT("someone@example.com", 42, 7)
	assert.Nil(t, err)
	assert.NotEmpty(t, token)

	claims := &types.Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte("test-secret"), nil
	})
	assert.Nil(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "someone@example.com", claims.Username)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, uint(7), claims.Agency)

	exp, err := claims.GetExpirationTime()
	assert.Nil(t, err)
	assert.WithinDuration(t, time.Now().Add(config.SESSION_TTL), exp.Time, time.Minute)
}

type fakeUploader struct {
	uploaded []string
	failAt   int
}

func (f *fakeUploader) upload(key string, body io.Reader, contentType string) (*string, error) {
	if f.failAt > 0 && len(f.uploaded) == f.failAt {
		return nil, errors.New("connection reset")
	}
	f.uploaded = append(f.uploaded, key)
	url := "https://bucket.example.com/" + key
	return &url, nil
}

func attachment(name string) BidAttachment {
	return BidAttachment{
		Name:        name,
		ContentType: "application/pdf",
		Body:        strings.NewReader("content of " + name),
	}
}

func TestPrepareBidAttachments(t *testing.T) {
	f := &fakeUploader{}
	urls, err := PrepareBidAttachments(f.upload, 12, 7, []BidAttachment{
		attachment("itinerary.pdf"),
		attachment("Hotel Quote.pdf"),
	})
	assert.Nil(t, err)
	assert.Len(t, urls, 2)
	assert.Len(t, f.uploaded, 2)
	assert.Contains(t, urls[0], "bids/12/7/0_itinerary-pdf")
	assert.Contains(t, urls[1], "bids/12/7/1_hotel-quote-pdf")
}

func TestPrepareBidAttachmentsAbortsOnFirstFailure(t *testing.T) {
	f := &fakeUploader{failAt: 1}
	urls, err := PrepareBidAttachments(f.upload, 12, 7, []BidAttachment{
		attachment("one.pdf"),
		attachment("two.pdf"),
		attachment("three.pdf"),
	})
	assert.NotNil(t, err)
	assert.Nil(t, urls)
	// the first object was already uploaded and stays behind
	assert.Len(t, f.uploaded, 1)
}

func TestPrepareBidAttachmentsEmpty(t *testing.T) {
	f := &fakeUploader{}
	urls, err := PrepareBidAttachments(f.upload, 1, 1, nil)
	assert.Nil(t, err)
	assert.Empty(t, urls)
	assert.Empty(t, f.uploaded)
}
