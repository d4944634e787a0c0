package storage

import (
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"

	"casedocs/internal/config"
)

func TestNewMinIOValidation(t *testing.T) {
	_, err := NewMinIO(config.MinIOConfig{})
	assert.ErrorContains(t, err, "endpoint")

	_, err = NewMinIO(config.MinIOConfig{Endpoint: "localhost:9000"})
	assert.ErrorContains(t, err, "credentials")

	_, err = NewMinIO(config.MinIOConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"})
	assert.ErrorContains(t, err, "bucket")
}

func TestTranslateErr(t *testing.T) {
	assert.NoError(t, translateErr(nil))

	missing := minio.ErrorResponse{Code: "NoSuchKey", Key: "cases/41/x.pdf"}
	assert.True(t, IsNotExist(translateErr(missing)))

	other := errors.New("connection refused")
	err := translateErr(other)
	assert.False(t, IsNotExist(err))
	assert.Equal(t, other, err)
}
