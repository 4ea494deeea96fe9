// Package server exposes the journal over a small JSON API.
package server

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	cache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/brightbooks/keeper/store"
)

// Version is reported by the version endpoint
const Version = "1.0"

const (
	loggerKey = "logger"

	balancesCacheDuration = 30 * time.Second
)

// Run serves the API on 'addr' until the server fails
func Run(addr string, db *store.Store, logger *zap.Logger) error {
	engine := gin.New()
	engine.Use(
		ginzap.Ginzap(logger, time.RFC3339, true),
		recovery(logger, true),
	)

	api := engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Set(loggerKey, logger)
	})
	setupAPI(api, db)

	logger.Info("Starting server", zap.String("addr", addr))
	return engine.Run(addr)
}

func setupAPI(router gin.IRouter, db *store.Store) {
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, map[string]string{
			"version": Version,
		})
	})

	balancesCache := cache.New(balancesCacheDuration, balancesCacheDuration*2)
	importLimiter := rate.NewLimiter(rate.Every(time.Second), 1)

	router.GET("/getAccounts", getAccounts(db))
	router.GET("/getBalances", getBalances(db, balancesCache))
	router.GET("/getTransactions", getTransactions(db))
	router.GET("/getFailedAssertions", getFailedAssertions(db))
	router.GET("/getBudget", getBudget(db))
	router.GET("/getImportStatus", getImportStatus(db))
	router.POST("/importTransactions", importTransactions(db, balancesCache, importLimiter))
}

func abortWithClientError(c *gin.Context, status int, err error) {
	logger := c.MustGet(loggerKey).(*zap.Logger)
	logger.WithOptions(zap.AddCallerSkip(1))
	if status/100 == 5 {
		logger.Error("Aborting with server error", zap.Error(err))
	} else {
		logger.Info("Aborting with client error", zap.String("error", err.Error()))
	}
	c.AbortWithStatusJSON(status, map[string]string{
		"Error": err.Error(),
	})
}
