package payment

import (
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// Code is the scannable form of a session's payment payload. When
// rendering failed permanently, PNG is nil and Fallback carries the raw
// payload text so the caller can offer manual copy instead.
type Code struct {
	PNG      []byte
	Fallback string
}

// CodeRenderer turns an opaque payment payload into a scannable code.
type CodeRenderer interface {
	// Render returns nil (and no error) for an empty payload: the
	// payload is simply not available yet, which is not a failure.
	Render(payloadText string) (*Code, error)
}

const renderAttempts = 3

// QRRenderer renders payment payloads as QR codes.
type QRRenderer struct {
	size   int
	logger *zap.Logger

	// encode is swapped in tests to exercise the retry path.
	encode func(content string, level qrcode.RecoveryLevel, size int) ([]byte, error)
}

func NewQRRenderer(size int, logger *zap.Logger) *QRRenderer {
	if size <= 0 {
		size = 256
	}
	return &QRRenderer{
		size:   size,
		logger: logger,
		encode: qrcode.Encode,
	}
}

func (r *QRRenderer) Render(payloadText string) (*Code, error) {
	if payloadText == "" {
		return nil, nil
	}

	var lastErr error
	for attempt := 1; attempt <= renderAttempts; attempt++ {
		png, err := r.encode(payloadText, qrcode.Medium, r.size)
		if err == nil {
			return &Code{PNG: png}, nil
		}
		lastErr = err
		r.logger.Warn("QR render failed",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	// Degrade to the raw payload rather than failing the session.
	r.logger.Error("QR render exhausted retries, falling back to raw payload", zap.Error(lastErr))
	return &Code{Fallback: payloadText}, nil
}
