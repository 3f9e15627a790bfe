package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"presence/internal/attendance"
	"presence/internal/audit"
	"presence/internal/auth"
	"presence/internal/config"
	"presence/internal/httpmiddleware"
	"presence/internal/queue"
	"presence/internal/session"
	"presence/internal/store"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	loc := cfg.Location()
	now := func() time.Time { return time.Now().In(loc) }

	var db *store.DB
	var err error
	if cfg.LedgerBackend != "memory" {
		db, err = store.NewDB(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := store.Migrate(db.Client); err != nil {
			return err
		}
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "presence:recorded")
	}

	var sessions *session.Service
	var att *attendance.Service
	var trail *audit.Trail
	if cfg.LedgerBackend == "memory" {
		trail = audit.NewTrail(audit.NewMemory(), now)
		sessions = session.NewService(session.NewMemory(), now)
		att = attendance.NewService(sessions, attendance.NewMemoryLedger(), trail, q, nil, now)
	} else {
		trail = audit.NewTrail(audit.NewRepository(db.Client), now)
		marks := store.NewMarker(redisClient.Client, 24*time.Hour)
		sessions = session.NewService(session.NewRepository(db.Client), now)
		att = attendance.NewService(sessions, attendance.NewRepository(db.Client), trail, q, marks, now)
	}

	r := gin.New()

	// Recovery middleware
	r.Use(gin.Recovery())

	// Custom logger
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	// CORS middleware
	r.Use(corsMiddleware())

	// Security headers
	r.Use(securityHeaders())

	// Rate limiting
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := cfg.LedgerBackend == "memory" || db.Healthy(c.Request.Context())
		status := http.StatusOK
		if !redisHealthy && cfg.QueueBackend != "memory" {
			status = http.StatusServiceUnavailable
		}
		if !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	// Dev token mint. The real identity provider lives outside this service;
	// this endpoint exists so the engine can run standalone.
	r.POST("/v1/auth/token", func(c *gin.Context) {
		var req struct {
			Subject string `json:"subject" binding:"required"`
			Role    string `json:"role" binding:"required,oneof=student teacher staff"`
			Year    int    `json:"year"`
			Batch   int    `json:"batch"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		tokens, err := auth.Issue(req.Subject, req.Role, req.Year, req.Batch, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	teacherGroup := r.Group("/v1", auth.RequireRole(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleTeacher, auth.RoleStaff))

	teacherGroup.POST("/sessions", func(c *gin.Context) {
		var req struct {
			Subject      string  `json:"subject" binding:"required"`
			Room         string  `json:"room" binding:"required"`
			Start        string  `json:"start" binding:"required"`
			End          string  `json:"end" binding:"required"`
			Latitude     float64 `json:"latitude" binding:"min=-90,max=90"`
			Longitude    float64 `json:"longitude" binding:"min=-180,max=180"`
			RadiusM      float64 `json:"radius_m" binding:"required"`
			LateAfterMin int     `json:"late_after_min"`
			Year         *int    `json:"year"`
			Batch        *int    `json:"batch"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		start, err := parseLocal(req.Start, loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start: " + err.Error()})
			return
		}
		end, err := parseLocal(req.End, loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end: " + err.Error()})
			return
		}

		claims := auth.ClaimsFrom(c)
		sess, err := sessions.Create(c.Request.Context(), session.CreateParams{
			TeacherID:    claims.Subject,
			Subject:      req.Subject,
			Room:         req.Room,
			Start:        start,
			End:          end,
			Latitude:     req.Latitude,
			Longitude:    req.Longitude,
			RadiusM:      req.RadiusM,
			LateAfterMin: req.LateAfterMin,
			Year:         req.Year,
			Batch:        req.Batch,
		})
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, sess)
	})

	teacherGroup.GET("/sessions/:token/attendance", func(c *gin.Context) {
		records, err := att.Roster(c.Request.Context(), c.Param("token"))
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
	})

	teacherGroup.POST("/attendance/:id/override", func(c *gin.Context) {
		var req struct {
			Status string `json:"status" binding:"required"`
			Reason string `json:"reason"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		claims := auth.ClaimsFrom(c)
		rec, err := att.Override(c.Request.Context(), c.Param("id"), attendance.Status(req.Status), req.Reason, claims.Subject)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rec)
	})

	staffGroup := r.Group("/v1", auth.RequireRole(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleStaff))

	staffGroup.GET("/audit", func(c *gin.Context) {
		limit := 50
		if v := c.Query("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				limit = parsed
			}
		}
		entries, err := trail.List(c.Request.Context(), c.Query("action"), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	})

	authGroup := r.Group("/v1", auth.RequireRole(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.GET("/sessions", func(c *gin.Context) {
		claims := auth.ClaimsFrom(c)
		limit := 20
		if v := c.Query("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				limit = parsed
			}
		}
		var list []session.Session
		var err error
		if claims.Role == auth.RoleStudent {
			list, err = sessions.ListForAudience(c.Request.Context(), claims.Year, claims.Batch, limit)
		} else {
			list, err = sessions.List(c.Request.Context(), c.Query("teacher_id"), limit)
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": list})
	})

	authGroup.GET("/sessions/:token", func(c *gin.Context) {
		sess, err := sessions.Get(c.Request.Context(), c.Param("token"))
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, sess)
	})

	studentGroup := r.Group("/v1", auth.RequireRole(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleStudent))

	studentGroup.POST("/sessions/:token/attendance", func(c *gin.Context) {
		var req struct {
			Latitude  float64 `json:"latitude" binding:"min=-90,max=90"`
			Longitude float64 `json:"longitude" binding:"min=-180,max=180"`
			AccuracyM float64 `json:"accuracy_m" binding:"min=0"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		claims := auth.ClaimsFrom(c)
		rec, dec, err := att.Submit(c.Request.Context(), c.Param("token"), claims.Subject, req.Latitude, req.Longitude, req.AccuracyM)
		if err != nil {
			if errors.Is(err, attendance.ErrDuplicateSubmission) {
				c.JSON(http.StatusConflict, gin.H{"error": "already recorded", "status": dec.Status})
				return
			}
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"record_id":  rec.ID,
			"status":     dec.Status,
			"reason":     dec.Reason,
			"distance_m": dec.DistanceM,
		})
	})

	studentGroup.GET("/attendance/history", func(c *gin.Context) {
		claims := auth.ClaimsFrom(c)
		limit := 50
		if v := c.Query("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				limit = parsed
			}
		}
		records, err := att.History(c.Request.Context(), claims.Subject, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// parseLocal accepts either an RFC3339 timestamp (converted into the
// application zone) or a zone-naive local timestamp. Everything downstream
// compares in the single configured zone.
func parseLocal(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(loc), nil
	}
	return time.ParseInLocation("2006-01-02T15:04", value, loc)
}

// statusFor maps typed service outcomes onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, attendance.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrSubjectRequired),
		errors.Is(err, session.ErrRoomRequired),
		errors.Is(err, session.ErrInvalidWindow),
		errors.Is(err, session.ErrInvalidRadius),
		errors.Is(err, session.ErrInvalidLateThreshold),
		errors.Is(err, session.ErrInvalidCoordinates),
		errors.Is(err, attendance.ErrReasonRequired),
		errors.Is(err, attendance.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, attendance.ErrDuplicateSubmission):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		// Storage timeout: retryable, never assumed committed.
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
