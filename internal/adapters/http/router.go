package http

import (
	"context"
	"time"

	"github.com/dkeye/Poker/internal/adapters/signal"
	"github.com/dkeye/Poker/internal/config"
	"github.com/dkeye/Poker/internal/usage"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const maxOverallRequests = 10_000

type Deps struct {
	Rooms   RoomService
	Signal  *signal.Controller
	Counter usage.Counter
	Limiter *RateLimiter
	Clock   func() time.Time
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Limiter == nil {
		deps.Limiter = NewRateLimiter(cfg.RateLimit, maxOverallRequests, cfg.RateInterval)
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		AllowCredentials: true,
	}))

	store := cookie.NewStore(sessionKey(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 365, HttpOnly: true})
	r.Use(sessions.Sessions("PokerSessions", store))

	log.Info().Str("module", "adapters.http").Strs("origins", origins).Msg("router setup")

	api := r.Group("/api")
	api.Use(rateLimit(deps.Limiter))
	api.POST("/room", createRoom(deps.Rooms))
	api.GET("/stats", stats(deps.Rooms, deps.Counter, deps.Clock))
	api.GET("/identity", identity)

	r.GET("/ws/room", func(c *gin.Context) {
		deps.Signal.HandleRoom(ctx, c)
	})

	return r
}

// RunLimiterPrune drops idle limiter entries until ctx is done.
func RunLimiterPrune(ctx context.Context, rl *RateLimiter, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := rl.Prune(); n > 0 {
				log.Debug().Str("module", "adapters.http").Int("pruned", n).Msg("limiter pruned")
			}
		}
	}
}
