package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/flight-seat-reservation/internal/config"
)

// CatalogueCache keeps flight catalogue listings (list, search, origins,
// destinations) in Redis.  Listings carry available_seats, so every
// successful booking, cancellation, seat change or seat administration
// bumps a generation counter and every cached listing is retired at once.
// Booking and seat routes are never served from the cache.
type CatalogueCache struct {
	cfg config.CacheConfig
	rdb *redis.Client
}

// NewCatalogueCache returns a cache that does nothing when caching is
// disabled or rdb is nil.
func NewCatalogueCache(cfg config.CacheConfig, rdb *redis.Client) *CatalogueCache {
	if !cfg.Enabled || cfg.TTL <= 0 {
		rdb = nil
	}
	return &CatalogueCache{cfg: cfg, rdb: rdb}
}

// cachedListing is the Redis value for one catalogue response.
type cachedListing struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// listingRecorder tees the listing body while it is written to the client.
type listingRecorder struct {
	http.ResponseWriter
	status    int
	body      bytes.Buffer
	overflown bool
	limit     int
}

func (w *listingRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *listingRecorder) Write(b []byte) (int, error) {
	if w.limit > 0 && w.body.Len()+len(b) > w.limit {
		w.overflown = true
	} else if !w.overflown {
		w.body.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

func (cc *CatalogueCache) generationKey() string { return cc.cfg.Prefix + ":catalogue:gen" }

// generation reads the current catalogue generation; a missing counter
// is generation 0.
func (cc *CatalogueCache) generation(ctx context.Context) (int64, error) {
	gen, err := cc.rdb.Get(ctx, cc.generationKey()).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

// listingKey names one listing within a generation.  The route and the
// query string (origin, destination, date) select the listing.
func listingKey(cfg config.CacheConfig, gen int64, c echo.Context) string {
	sum := sha1.Sum([]byte(c.Path() + "?" + c.Request().URL.RawQuery))
	return fmt.Sprintf("%s:catalogue:%d:%x", cfg.Prefix, gen, sum[:])
}

// Listings serves catalogue GETs from Redis and stores fresh 200
// responses under the current generation.
func (cc *CatalogueCache) Listings() echo.MiddlewareFunc {
	if cc.rdb == nil {
		return passThrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cc.cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			ctx := c.Request().Context()
			gen, err := cc.generation(ctx)
			if err != nil {
				return next(c)
			}
			key := listingKey(cc.cfg, gen, c)

			if raw, err := cc.rdb.Get(ctx, key).Bytes(); err == nil {
				var hit cachedListing
				if json.Unmarshal(raw, &hit) == nil && hit.Status == http.StatusOK {
					c.Response().Header().Set("X-Cache", "HIT")
					return c.Blob(hit.Status, hit.ContentType, hit.Body)
				}
			}

			rec := &listingRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cc.cfg.MaxBodyBytes}
			c.Response().Writer = rec
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if rec.status != http.StatusOK || rec.overflown {
				return nil
			}
			raw, err := json.Marshal(cachedListing{
				Status:      rec.status,
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        rec.body.Bytes(),
			})
			if err == nil {
				_ = cc.rdb.SetEx(context.WithoutCancel(ctx), key, raw, cc.cfg.TTL).Err()
			}
			return nil
		}
	}
}

// InvalidateOnWrite bumps the catalogue generation after a write route
// answers below 400.  Entries of older generations expire with their TTL.
func (cc *CatalogueCache) InvalidateOnWrite() echo.MiddlewareFunc {
	if cc.rdb == nil {
		return passThrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil && c.Response().Status < http.StatusBadRequest {
				_ = cc.rdb.Incr(context.WithoutCancel(c.Request().Context()), cc.generationKey()).Err()
			}
			return err
		}
	}
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }
