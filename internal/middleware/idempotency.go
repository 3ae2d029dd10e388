package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
	idempotencyPrefix    = "idem:signup:"
	pendingMarker        = "pending"
	cacheOpTimeout       = 2 * time.Second

	msgRequestPending = "Requête déjà en cours de traitement."
	msgKeyReused      = "Clé d'idempotence déjà utilisée pour une autre requête."
	msgCacheFailure   = "Erreur interne du serveur."
)

// replay is what gets stored for a completed request.
type replay struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
	Fingerprint string `json:"fingerprint"`
}

// Idempotency lets a client retry a POST with the same Idempotency-Key header
// and receive the first answer instead of running the handler twice. The key
// is bound to a hash of the request body; reusing it with another body is
// refused. 5xx answers are forgotten so the retry runs again.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := strings.TrimSpace(c.Get(idempotencyKeyHeader))
		if c.Method() != fiber.MethodPost || key == "" || cache == nil {
			return c.Next()
		}

		cacheKey := idempotencyPrefix + key
		fingerprint := bodyFingerprint(c.Body())
		log := logger.With(slog.String("idempotency_key", key), slog.String("request_id", GetRequestID(c)))

		ctx, cancel := context.WithTimeout(c.UserContext(), cacheOpTimeout)
		reserved, err := cache.SetNX(ctx, cacheKey, pendingMarker, ttl).Result()
		cancel()
		if err != nil {
			log.Error("idempotency reservation failed", slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, msgCacheFailure)
		}

		if !reserved {
			return replayStored(c, cache, cacheKey, fingerprint, log)
		}

		if err := c.Next(); err != nil {
			// The error handler has not rendered yet; the retry must run again.
			forget(cache, cacheKey, log)
			return err
		}

		status := c.Response().StatusCode()
		if status >= fiber.StatusInternalServerError {
			forget(cache, cacheKey, log)
			return nil
		}

		payload, err := json.Marshal(replay{
			Status:      status,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        append([]byte(nil), c.Response().Body()...),
			Fingerprint: fingerprint,
		})
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
			err = cache.Set(ctx, cacheKey, payload, ttl).Err()
			cancel()
		}
		if err != nil {
			// The client already has its answer; a retry will simply run again.
			log.Warn("idempotent response not stored", slog.Any("error", err))
			forget(cache, cacheKey, log)
		}
		return nil
	}
}

func replayStored(c *fiber.Ctx, cache *redis.Client, cacheKey, fingerprint string, log *slog.Logger) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), cacheOpTimeout)
	defer cancel()

	raw, err := cache.Get(ctx, cacheKey).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// Expired or forgotten between SetNX and Get.
		return fiber.NewError(fiber.StatusConflict, msgRequestPending)
	case err != nil:
		log.Error("idempotency lookup failed", slog.Any("error", err))
		return fiber.NewError(fiber.StatusInternalServerError, msgCacheFailure)
	case raw == pendingMarker:
		return fiber.NewError(fiber.StatusConflict, msgRequestPending)
	}

	var stored replay
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		log.Error("stored idempotent response is corrupt", slog.Any("error", err))
		return fiber.NewError(fiber.StatusInternalServerError, msgCacheFailure)
	}
	if stored.Fingerprint != fingerprint {
		return fiber.NewError(fiber.StatusUnprocessableEntity, msgKeyReused)
	}

	if stored.ContentType != "" {
		c.Set(fiber.HeaderContentType, stored.ContentType)
	}
	c.Set(replayedHeader, "true")
	return c.Status(stored.Status).Send(stored.Body)
}

func forget(cache *redis.Client, cacheKey string, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	if err := cache.Del(ctx, cacheKey).Err(); err != nil {
		log.Warn("idempotency key not released", slog.Any("error", err))
	}
}

func bodyFingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
