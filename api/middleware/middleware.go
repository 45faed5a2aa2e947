/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package middleware

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/didip/tollbooth/v7"
	"github.com/didip/tollbooth/v7/limiter"
	"github.com/gin-gonic/gin"

	"github.com/payflowhq/payflow/config"
	"github.com/payflowhq/payflow/internal/apierror"
)

// SecretKeyHeader carries the server secret when Server.Secure is on.
const SecretKeyHeader = "X-PayFlow-Key"

// publicPaths answer health checks and scrapes. They are never rate limited
// and never require the secret key.
var publicPaths = map[string]struct{}{
	"/":        {},
	"/metrics": {},
}

func isPublic(c *gin.Context) bool {
	_, ok := publicPaths[c.Request.URL.Path]
	return ok
}

// RateLimitMiddleware limits payment and admin traffic per client address.
func RateLimitMiddleware(conf *config.Configuration) gin.HandlerFunc {
	if conf.RateLimit.RequestsPerSecond == nil || conf.RateLimit.Burst == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	ttl := 3 * time.Hour
	if conf.RateLimit.CleanupIntervalSec != nil {
		ttl = time.Duration(*conf.RateLimit.CleanupIntervalSec) * time.Second
	}

	lmt := tollbooth.NewLimiter(*conf.RateLimit.RequestsPerSecond, &limiter.ExpirableOptions{
		DefaultExpirationTTL: ttl,
	})
	lmt.SetBurst(*conf.RateLimit.Burst)
	lmt.SetIPLookups([]string{"RemoteAddr"})
	return func(c *gin.Context) {
		if isPublic(c) {
			c.Next()
			return
		}
		if httpError := tollbooth.LimitByRequest(lmt, c.Writer, c.Request); httpError != nil {
			c.AbortWithStatusJSON(httpError.StatusCode, apierror.NewAPIError(apierror.ErrRateLimited, "too many requests", httpError.Message))
			return
		}
		c.Next()
	}
}

// SecretKeyAuthMiddleware rejects requests to payment and admin routes that
// do not carry the configured secret in SecretKeyHeader.
func SecretKeyAuthMiddleware(conf *config.Configuration) gin.HandlerFunc {
	secretKey := conf.Server.SecretKey
	return func(c *gin.Context) {
		if isPublic(c) {
			c.Next()
			return
		}
		if secretKey == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.NewAPIError(apierror.ErrInternalServer, "secret key is not configured", nil))
			return
		}

		clientSecret := c.GetHeader(SecretKeyHeader)
		if clientSecret == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.NewAPIError(apierror.ErrUnauthorized, "missing secret key", nil))
			return
		}
		if subtle.ConstantTimeCompare([]byte(secretKey), []byte(clientSecret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.NewAPIError(apierror.ErrUnauthorized, "invalid secret key", nil))
			return
		}
		c.Next()
	}
}
