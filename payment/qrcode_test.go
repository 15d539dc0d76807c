package payment

import (
	"errors"
	"testing"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRender_EmptyPayload(t *testing.T) {
	r := NewQRRenderer(256, zap.NewNop())
	code, err := r.Render("")
	assert.NoError(t, err)
	assert.Nil(t, code)
}

func TestRender_Success(t *testing.T) {
	r := NewQRRenderer(256, zap.NewNop())
	code, err := r.Render("pi_123_secret_abc")
	assert.NoError(t, err)
	assert.NotNil(t, code)
	assert.NotEmpty(t, code.PNG)
	assert.Empty(t, code.Fallback)
}

func TestRender_RetriesThenSucceeds(t *testing.T) {
	r := NewQRRenderer(256, zap.NewNop())
	calls := 0
	r.encode = func(content string, level qrcode.RecoveryLevel, size int) ([]byte, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("encoder hiccup")
		}
		return []byte{0x89, 0x50, 0x4e, 0x47}, nil
	}

	code, err := r.Render("payload")
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.NotEmpty(t, code.PNG)
	assert.Empty(t, code.Fallback)
}

func TestRender_ExhaustedRetriesFallsBack(t *testing.T) {
	r := NewQRRenderer(256, zap.NewNop())
	calls := 0
	r.encode = func(content string, level qrcode.RecoveryLevel, size int) ([]byte, error) {
		calls++
		return nil, errors.New("encoder broken")
	}

	code, err := r.Render("payload-text")
	assert.NoError(t, err)
	assert.Equal(t, renderAttempts, calls)
	assert.Nil(t, code.PNG)
	assert.Equal(t, "payload-text", code.Fallback)
}
