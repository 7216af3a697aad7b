package controllers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"xrp_etf_backend/config"
	"xrp_etf_backend/scheduler"
	"xrp_etf_backend/services/cache"
)

// cacheFields adds the cache metadata every cached payload carries
func cacheFields[T any](body gin.H, res cache.Result[T]) gin.H {
	body["cached"] = res.Cached
	if res.Cached {
		body["cacheAge"] = int64(res.Age().Seconds())
	}
	if res.Stale {
		body["stale"] = true
	}
	return body
}

// respondError converts a service error into a status code and a generic message.
// Upstream details are logged, never returned.
func respondError(c *gin.Context, log zerolog.Logger, err error, message string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, config.ErrNotConfigured):
		status = http.StatusServiceUnavailable
	case errors.Is(err, scheduler.ErrTaskRunning):
		status = http.StatusConflict
		message = "Already running, try again shortly"
	}

	log.Error().Err(err).Str("path", c.FullPath()).Int("status", status).Msg(message)
	c.JSON(status, gin.H{"error": message})
}

// secretMatches compares in constant time; an unset expected secret never matches
func secretMatches(expected, given string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(given)) == 1
}

// queryBool reads a boolean query parameter; anything unparsable is false
func queryBool(c *gin.Context, name string) bool {
	v, err := strconv.ParseBool(c.Query(name))
	return err == nil && v
}
