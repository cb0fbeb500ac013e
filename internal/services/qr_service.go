package services

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/ledgerly/backend/internal/apperr"
	"github.com/ledgerly/backend/internal/logger"
	"github.com/ledgerly/backend/internal/models"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
)

const (
	qrSize     = 256
	qrCacheTTL = 5 * time.Minute
)

// QRService renders the redirect URL of an open checkout as a PNG so it can
// be paid from another device.
type QRService struct {
	store PaymentStore
	redis *redis.Client
	log   zerolog.Logger
}

func NewQRService(store PaymentStore, redis *redis.Client, log zerolog.Logger) *QRService {
	return &QRService{
		store: store,
		redis: redis,
		log:   logger.Component(log, "qr"),
	}
}

func (s *QRService) CheckoutQR(ctx context.Context, userID, orderID string) ([]byte, error) {
	key := fmt.Sprintf("qr:%s:%s", userID, orderID)

	payment, err := s.store.FindCheckout(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrCheckoutNotFound
	}
	if payment.Status != models.PaymentStatusPending || payment.RedirectURL == "" {
		return nil, apperr.New(apperr.KindValidation, "qr.checkout", "checkout is no longer payable")
	}

	if s.redis != nil {
		cached, err := s.redis.Get(ctx, key).Bytes()
		if err == nil {
			return cached, nil
		}
		if err != redis.Nil {
			s.log.Warn().Err(err).Msg("QR cache read failed")
		}
	}

	qr, err := qrcode.New(payment.RedirectURL, qrcode.Medium)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "qr.checkout", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(qrSize)); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "qr.checkout", err)
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, key, buf.Bytes(), qrCacheTTL).Err(); err != nil {
			s.log.Warn().Err(err).Msg("QR cache write failed")
		}
	}

	return buf.Bytes(), nil
}
