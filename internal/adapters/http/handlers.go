package http

import (
	"crypto/rand"
	"errors"
	"net/http"
	"time"

	"github.com/dkeye/Poker/internal/app"
	"github.com/dkeye/Poker/internal/core"
	"github.com/dkeye/Poker/internal/domain"
	"github.com/dkeye/Poker/internal/usage"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// RoomService is what the HTTP edge needs from the registry.
type RoomService interface {
	CreateRoom(ownerID domain.UserID, ownerName string) (*core.Room, error)
	RoomCount() int
	UserCount() int
}

type createRoomRequest struct {
	UserID   string `json:"userID" binding:"required,max=64"`
	Username string `json:"username" binding:"required,max=64"`
}

func createRoom(rooms RoomService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRoomRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		room, err := rooms.CreateRoom(domain.UserID(req.UserID), req.Username)
		if errors.Is(err, app.ErrCapacity) {
			c.String(http.StatusServiceUnavailable, "Too many rooms.")
			return
		}
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("create room")
			c.Status(http.StatusInternalServerError)
			return
		}
		log.Info().Str("module", "adapters.http").Str("room", string(room.ID())).Msg("created_room")
		c.JSON(http.StatusOK, gin.H{"roomID": room.ID()})
	}
}

func stats(rooms RoomService, counter usage.Counter, clock func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := usage.Collect(c.Request.Context(), rooms, counter, clock())
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("stats")
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusOK, s)
	}
}

const (
	sessionUserID   = "userID"
	sessionPublicID = "publicUserID"
)

// identity hands out a stable private/public id pair kept in the cookie session.
func identity(c *gin.Context) {
	sess := sessions.Default(c)
	userID, _ := sess.Get(sessionUserID).(string)
	publicID, _ := sess.Get(sessionPublicID).(string)
	if userID == "" || publicID == "" {
		userID, publicID = uuid.NewString(), uuid.NewString()
		sess.Set(sessionUserID, userID)
		sess.Set(sessionPublicID, publicID)
		if err := sess.Save(); err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("session save")
			c.Status(http.StatusInternalServerError)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{sessionUserID: userID, sessionPublicID: publicID})
}

func rateLimit(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			log.Warn().Str("module", "adapters.http").Str("client", c.ClientIP()).Msg("too many requests")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}

func sessionKey(secret string) []byte {
	if secret != "" {
		return []byte(secret)
	}
	log.Warn().Str("module", "adapters.http").Msg("no session secret configured, identities reset on restart")
	key := make([]byte, 32)
	_, _ = rand.Read(key)
	return key
}
