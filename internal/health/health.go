package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"guildwarden/internal/modules/giveaway"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type GiveawayLister interface {
	Active(guildID string) []giveaway.Snapshot
}

type Server struct {
	http   *http.Server
	logger *zap.Logger
}

func NewRouter(db Pinger, giveaways GiveawayLister) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if db != nil {
			if err := db.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
				return
			}
		}
		c.String(http.StatusOK, "ok")
	})

	r.GET("/giveaways", func(c *gin.Context) {
		list := giveaways.Active(c.Query("guild_id"))
		c.JSON(http.StatusOK, gin.H{"count": len(list), "giveaways": list})
	})
	return r
}

func New(addr string, db Pinger, giveaways GiveawayLister, logger *zap.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(db, giveaways),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

func (s *Server) Start() {
	go func() {
		s.logger.Info("health endpoint enabled", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("health server error", zap.Error(err))
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
