package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/fleet_backend/config"
	"bitbucket.org/mmdatafocus/fleet_backend/importer"
	"bitbucket.org/mmdatafocus/fleet_backend/middlewares"
	"bitbucket.org/mmdatafocus/fleet_backend/models"
	"bitbucket.org/mmdatafocus/fleet_backend/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

const maxImportFileSize = 50 << 20 // 50 MB

func requireUserUid(c *gin.Context) (string, bool) {
	userUid, ok := utils.GetUserUidFromContext(c.Request.Context())
	if !ok || userUid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return userUid, true
}

func formInt(c *gin.Context, field string) (int, bool) {
	value, err := strconv.Atoi(strings.TrimSpace(c.PostForm(field)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": field + " is required"})
		return 0, false
	}
	return value, true
}

// importHandler runs one supplier file through the pipeline. The multipart
// form carries file, supplier_id, format_code, year and month. When
// forcedFormat is set the form's format_code is ignored (price sheets).
func importHandler(forcedFormat int) gin.HandlerFunc {
	return func(c *gin.Context) {
		userUid, ok := requireUserUid(c)
		if !ok {
			return
		}

		supplierId, ok := formInt(c, "supplier_id")
		if !ok {
			return
		}
		year, ok := formInt(c, "year")
		if !ok {
			return
		}
		month, ok := formInt(c, "month")
		if !ok {
			return
		}
		formatCode := forcedFormat
		if formatCode == 0 {
			if formatCode, ok = formInt(c, "format_code"); !ok {
				return
			}
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if fileHeader.Size > maxImportFileSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file is too large"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file could not be opened"})
			return
		}
		defer file.Close()

		if _, err := models.GetSupplier(c.Request.Context(), supplierId); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "supplier not found"})
			return
		}

		result := importer.RunImport(c.Request.Context(), importer.DefaultDeps(), importer.RunParams{
			UserUid:    userUid,
			SupplierId: supplierId,
			FormatCode: formatCode,
			Year:       year,
			Month:      month,
			FileName:   fileHeader.Filename,
			File:       file,
		})
		c.JSON(http.StatusOK, result)
	}
}

func listImportsHandler(c *gin.Context) {
	if _, ok := requireUserUid(c); !ok {
		return
	}
	supplierId, err := strconv.Atoi(c.Query("supplier_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "supplier_id is required"})
		return
	}
	var year, month *int
	if v, err := strconv.Atoi(c.Query("year")); err == nil {
		year = &v
	}
	if v, err := strconv.Atoi(c.Query("month")); err == nil {
		month = &v
	}

	runs, err := models.ListImportRuns(c.Request.Context(), supplierId, year, month)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"imports": runs})
}

func listRunEntriesHandler(c *gin.Context) {
	if _, ok := requireUserUid(c); !ok {
		return
	}
	runId, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid import id"})
		return
	}
	entries, err := models.ListRunEntries(c.Request.Context(), runId)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "import not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func bindingErrorResponse(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
}

func saveTemplateHandler(c *gin.Context) {
	if _, ok := requireUserUid(c); !ok {
		return
	}
	var input models.NewSupplierTemplate
	if err := c.ShouldBindJSON(&input); err != nil {
		bindingErrorResponse(c, err)
		return
	}
	template, err := models.CreateOrUpdateTemplate(c.Request.Context(), &input)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, template)
}

func listTemplatesHandler(c *gin.Context) {
	if _, ok := requireUserUid(c); !ok {
		return
	}
	supplierId, err := strconv.Atoi(c.Query("supplier_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "supplier_id is required"})
		return
	}
	templates, err := models.ListActiveTemplates(c.Request.Context(), supplierId)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

func deactivateTemplateHandler(c *gin.Context) {
	if _, ok := requireUserUid(c); !ok {
		return
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return
	}
	template, err := models.DeactivateTemplate(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, template)
}

func createSupplierHandler(c *gin.Context) {
	if _, ok := requireUserUid(c); !ok {
		return
	}
	var input models.NewSupplier
	if err := c.ShouldBindJSON(&input); err != nil {
		bindingErrorResponse(c, err)
		return
	}
	supplier, err := models.CreateSupplier(c.Request.Context(), &input)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, supplier)
}

func updateSupplierHandler(c *gin.Context) {
	if _, ok := requireUserUid(c); !ok {
		return
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid supplier id"})
		return
	}
	var input models.NewSupplier
	if err := c.ShouldBindJSON(&input); err != nil {
		bindingErrorResponse(c, err)
		return
	}
	supplier, err := models.UpdateSupplier(c.Request.Context(), id, &input)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "supplier not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, supplier)
}

func activePriceListHandler(c *gin.Context) {
	if _, ok := requireUserUid(c); !ok {
		return
	}
	supplierId, err := strconv.Atoi(c.Query("supplier_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "supplier_id is required"})
		return
	}
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "year is required"})
		return
	}
	month, err := strconv.Atoi(c.Query("month"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "month is required"})
		return
	}
	priceList, err := models.ActivePriceList(c.Request.Context(), supplierId, year, month)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if priceList == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active price list for this period"})
		return
	}
	c.JSON(http.StatusOK, priceList)
}

func listSuppliersHandler(c *gin.Context) {
	if _, ok := requireUserUid(c); !ok {
		return
	}
	var name *string
	if v := strings.TrimSpace(c.Query("name")); v != "" {
		name = &v
	}
	suppliers, err := models.GetSuppliers(c.Request.Context(), name)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"suppliers": suppliers})
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, we return 503 for app endpoints.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow the startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate app endpoints on dependency readiness.
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production, require an explicit allowlist via CORS_ALLOWED_ORIGINS.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/imports", importHandler(0))
	r.GET("/imports", listImportsHandler)
	r.GET("/imports/:id/entries", listRunEntriesHandler)
	r.POST("/price-imports", importHandler(importer.FormatPriceList))
	r.GET("/price-lists", activePriceListHandler)
	r.POST("/templates", saveTemplateHandler)
	r.GET("/templates", listTemplatesHandler)
	r.POST("/templates/:id/deactivate", deactivateTemplateHandler)
	r.POST("/suppliers", createSupplierHandler)
	r.PUT("/suppliers/:id", updateSupplierHandler)
	r.GET("/suppliers", listSuppliersHandler)
	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations as
	// a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Drain HTTP requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}
