package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/hslsolutions/erp_backend/config"
	"bitbucket.org/hslsolutions/erp_backend/models"
	"bitbucket.org/hslsolutions/erp_backend/utils"
	"bitbucket.org/hslsolutions/erp_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultPort = "8080"

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// SIGTERM triggers a graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// App endpoints return 503 until the database is ready.
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
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

	r.Use(actorMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	registerRoutes(r)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
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
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		if err := models.MigrateTable(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Panic(err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// actorMiddleware lifts the authenticated identity from request headers
// into the request context. The gateway in front of this service owns
// authentication and forwards the claims.
func actorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if v := c.GetHeader("x-user-id"); v != "" {
			if id, err := strconv.Atoi(v); err == nil {
				ctx = utils.SetUserIdInContext(ctx, id)
			}
		}
		if v := c.GetHeader("x-user-name"); v != "" {
			ctx = utils.SetUserNameInContext(ctx, v)
		}
		if strings.EqualFold(c.GetHeader("x-is-admin"), "true") {
			ctx = utils.SetIsAdminInContext(ctx, true)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func actorId(c *gin.Context) int {
	id, _ := utils.GetUserIdFromContext(c.Request.Context())
	return id
}

// respondError maps the error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, utils.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, utils.ErrState):
		status = http.StatusConflict
	case errors.Is(err, utils.ErrResource), errors.Is(err, utils.ErrorRecordNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		status = http.StatusNotFound
	case errors.Is(err, utils.ErrAuthorization):
		status = http.StatusForbidden
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func registerRoutes(r *gin.Engine) {
	r.POST("/login", loginHandler())

	r.POST("/clients", createClientHandler())
	r.GET("/clients", listClientsHandler())
	r.GET("/clients/:id", getClientHandler())
	r.PUT("/clients/:id", updateClientHandler())
	r.DELETE("/clients/:id", deleteClientHandler())

	r.POST("/suppliers", createSupplierHandler())
	r.GET("/suppliers", listSuppliersHandler())
	r.PUT("/suppliers/:id", updateSupplierHandler())
	r.DELETE("/suppliers/:id", deleteSupplierHandler())

	r.POST("/quotes", createQuoteHandler())
	r.GET("/quotes/:id", getQuoteHandler())
	r.PUT("/quotes/:id/status", changeQuoteStatusHandler())
	r.POST("/quotes/:id/revisions", createQuoteRevisionHandler())
	r.POST("/quotes/:id/convert", convertQuoteHandler())
	r.POST("/quotes/:id/proforma", generateProformaHandler())

	r.POST("/orders", createOrderHandler())
	r.GET("/orders", listOrdersHandler())
	r.GET("/orders/:id", getOrderHandler())
	r.PUT("/orders/:id/status", changeOrderStatusHandler())
	r.DELETE("/orders/:id", deleteOrderHandler())
	r.POST("/orders/:id/invoice", generateFiscalHandler())
	r.POST("/orders/:id/picking", generatePickingHandler())

	r.GET("/invoices", listInvoicesHandler())
	r.GET("/invoices/unpaid", unpaidInvoicesHandler())
	r.GET("/invoices/:id", getInvoiceHandler())
	r.PUT("/invoices/:id/status", changeInvoiceStatusHandler())

	r.POST("/payments/import", importStatementHandler())
	r.POST("/payments/mock", mockStatementHandler())
	r.POST("/payments/reconcile", reconcileBatchHandler())
	r.GET("/payments", listPaymentsHandler())
	r.GET("/payments/stats", paymentStatsHandler())
	r.POST("/payments/:id/reconcile", manualReconcileHandler())
	r.POST("/payments/:id/unreconcile", unreconcileHandler())
	r.POST("/payments/:id/ignore", ignorePaymentHandler())
	r.POST("/payments/:id/rematch", rematchHandler())
	r.GET("/payments/:id/suggestions", suggestInvoicesHandler())

	r.POST("/warehouses", createWarehouseHandler())
	r.GET("/warehouses/:id", getWarehouseHandler())
	r.POST("/cells", createCellHandler())
	r.DELETE("/cells/:id", deleteCellHandler())

	r.POST("/receipts", createReceiptHandler())
	r.GET("/receipts", listReceiptsHandler())
	r.GET("/receipts/:id", getReceiptHandler())
	r.POST("/receipts/:id/confirm", confirmReceiptHandler())
	r.POST("/receipts/:id/lines/:lineId/verify", verifyReceiptLineHandler())

	r.GET("/stock", listStockHandler())
	r.GET("/stock/movements", listMovementsHandler())
	r.GET("/stock/alerts", stockAlertsHandler())
	r.POST("/stock/transfer", transferStockHandler())
	r.POST("/stock/remap", remapCodeHandler())
	r.GET("/code-mappings", listCodeMappingsHandler())

	r.GET("/settings/:key", getSettingHandler())
	r.PUT("/settings/:key", setSettingHandler())

	r.GET("/pickings", listPickingsHandler())
	r.GET("/pickings/:id", getPickingHandler())
	r.POST("/pickings/:id/start", startPickingHandler())
	r.POST("/pickings/:id/lines/:lineId/pick", pickLineHandler())
	r.POST("/pickings/:id/delivery-note", deliveryNoteHandler())

	r.GET("/activities", listActivitiesHandler())
	r.POST("/activities/:id/complete", completeActivityHandler())

	r.GET("/audit/:entity/:id", auditTrailHandler())
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		user, err := models.AuthenticateUser(config.GetDB(), input.Username, input.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func createClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewClient
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		client, err := models.CreateClient(config.GetDB(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, client)
	}
}

func listClientsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var name *string
		if v := c.Query("name"); v != "" {
			name = &v
		}
		clients, err := models.ListClients(config.GetDB(), name)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, clients)
	}
}

func getClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		client, err := models.GetClient(config.GetDB(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, client)
	}
}

func updateClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewClient
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		client, err := models.UpdateClient(config.GetDB(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, client)
	}
}

func deleteClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		if _, err := models.DeleteClient(config.GetDB(), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func createSupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSupplier
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		supplier, err := models.CreateSupplier(config.GetDB(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, supplier)
	}
}

func listSuppliersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var name *string
		if v := c.Query("name"); v != "" {
			name = &v
		}
		suppliers, err := models.ListSuppliers(config.GetDB(), name)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, suppliers)
	}
}

func updateSupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewSupplier
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		supplier, err := models.UpdateSupplier(config.GetDB(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, supplier)
	}
}

func deleteSupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		if err := models.DeleteSupplier(config.GetDB(), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func createQuoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewQuote
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		quote, err := models.CreateQuote(config.GetDB(), &input, actorId(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, quote)
	}
}

func getQuoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		quote, err := models.GetQuote(config.GetDB(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, quote)
	}
}

func changeQuoteStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input struct {
			Status models.QuoteStatus `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		quote, err := models.ChangeQuoteStatus(config.GetDB(), id, input.Status, actorId(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, quote)
	}
}

func createQuoteRevisionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		revision, err := models.CreateQuoteRevision(config.GetDB(), id, actorId(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, revision)
	}
}

func convertQuoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		order, err := workflow.ConvertQuoteToOrder(config.GetDB(), id, actorId(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, order)
	}
}

func generateProformaHandler() gin.HandlerFunc {
	fetcher := workflow.NewBNRFetcher()
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		invoice, err := workflow.GenerateProformaFromQuote(c.Request.Context(), config.GetDB(), fetcher, id, actorId(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, invoice)
	}
}

func createOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewOrder
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		order, err := models.CreateOrder(config.GetDB(), &input, actorId(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, order)
	}
}

func listOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var status *models.OrderStatus
		if v := c.Query("status"); v != "" {
			s := models.OrderStatus(v)
			status = &s
		}
		var clientId *int
		if v := c.Query("client_id"); v != "" {
			if id, err := strconv.Atoi(v); err == nil {
				clientId = &id
			}
		}
		orders, err := models.ListOrders(config.GetDB(), status, clientId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, orders)
	}
}

func getOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		order, err := models.GetOrder(config.GetDB(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func changeOrderStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input struct {
			Status models.OrderStatus `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		order, err := workflow.ChangeOrderStatus(c.Request.Context(), config.GetDB(), id, input.Status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func deleteOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		if err := workflow.DeleteOrder(c.Request.Context(), config.GetDB(), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func generateFiscalHandler() gin.HandlerFunc {
	fetcher := workflow.NewBNRFetcher()
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		invoice, err := workflow.GenerateFiscalFromOrder(c.Request.Context(), config.GetDB(), fetcher, id, actorId(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, invoice)
	}
}

func generatePickingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input struct {
			WarehouseId int `json:"warehouse_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		picking, err := workflow.GeneratePicking(config.GetDB(), id, input.WarehouseId, actorId(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, picking)
	}
}

func listInvoicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var kind *models.InvoiceKind
		if v := c.Query("kind"); v != "" {
			k := models.InvoiceKind(v)
			kind = &k
		}
		var status *models.InvoiceStatus
		if v := c.Query("status"); v != "" {
			s := models.InvoiceStatus(v)
			status = &s
		}
		var clientId *int
		if v := c.Query("client_id"); v != "" {
			if id, err := strconv.Atoi(v); err == nil {
				clientId = &id
			}
		}
		invoices, err := models.ListInvoices(config.GetDB(), kind, status, clientId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoices)
	}
}

func unpaidInvoicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var kind *models.InvoiceKind
		if v := c.Query("kind"); v != "" {
			k := models.InvoiceKind(v)
			kind = &k
		}
		invoices, err := models.UnpaidInvoices(config.GetDB(), kind)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoices)
	}
}

func getInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		invoice, err := models.GetInvoice(config.GetDB(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func changeInvoiceStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input struct {
			Status models.InvoiceStatus `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		invoice, err := models.ChangeInvoiceStatus(config.GetDB(), id, input.Status, actorId(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

// importStatementHandler accepts a multipart bank export. CSV and XLSX
// files route to the matching parser by file extension.
func importStatementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			respondError(c, err)
			return
		}
		defer file.Close()
		raw, err := io.ReadAll(file)
		if err != nil {
			respondError(c, err)
			return
		}

		var rows []workflow.StatementRow
		source := models.PaymentSourceCSV
		if strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") {
			rows, err = workflow.ParseBankXLSX(raw)
			source = models.PaymentSourceXLSX
		} else {
			rows, err = workflow.ParseBankCSV(raw)
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		imported, skipped, err := workflow.ImportStatement(config.GetDB(), rows, source)
		if err != nil {
			respondError(c, err)
			return
		}
		stats, err := workflow.ReconcileBatch(config.GetDB(), actorId(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"imported": imported,
			"skipped":  skipped,
			"parsed":   len(rows),
			"stats":    stats,
		})
	}
}

func mockStatementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		count := 20
		if v := c.Query("count"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				count = n
			}
		}
		rows, err := workflow.GenerateMockStatement(config.GetDB(), count)
		if err != nil {
			respondError(c, err)
			return
		}
		imported, skipped, err := workflow.ImportStatement(config.GetDB(), rows, models.PaymentSourceMock)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"imported": imported, "skipped": skipped})
	}
}

func reconcileBatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := workflow.ReconcileBatch(config.GetDB(), actorId(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func listPaymentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var status *models.PaymentStatus
		if v := c.Query("status"); v != "" {
			s := models.PaymentStatus(v)
			status = &s
		}
		payments, err := models.ListPayments(config.GetDB(), status, nil, nil)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, payments)
	}
}

func paymentStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := models.PaymentStats(config.GetDB())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func manualReconcileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input struct {
			InvoiceId int `json:"invoice_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		payment, err := workflow.ManualReconcile(config.GetDB(), id, input.InvoiceId, actorId(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}

func unreconcileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		payment, err := workflow.Unreconcile(config.GetDB(), id, actorId(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}

func ignorePaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		payment, err := workflow.IgnorePayment(config.GetDB(), id, actorId(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}

func rematchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		payment, err := workflow.ReMatch(config.GetDB(), id, actorId(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}

func suggestInvoicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		limit := 10
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				limit = n
			}
		}
		suggestions, err := workflow.SuggestInvoices(config.GetDB(), id, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, suggestions)
	}
}

func createWarehouseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewWarehouse
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		warehouse, err := models.CreateWarehouse(config.GetDB(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, warehouse)
	}
}

func getWarehouseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		warehouse, err := models.GetWarehouse(config.GetDB(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, warehouse)
	}
}

func createCellHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewWarehouseCell
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cell, err := models.CreateWarehouseCell(config.GetDB(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, cell)
	}
}

func deleteCellHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		if err := models.DeleteWarehouseCell(config.GetDB(), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func createReceiptHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewGoodsReceipt
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		receipt, err := models.CreateGoodsReceipt(config.GetDB(), &input, actorId(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, receipt)
	}
}

func listReceiptsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var status *models.ReceiptStatus
		if v := c.Query("status"); v != "" {
			s := models.ReceiptStatus(v)
			status = &s
		}
		receipts, err := models.ListGoodsReceipts(config.GetDB(), status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, receipts)
	}
}

func getReceiptHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		receipt, err := models.GetGoodsReceipt(config.GetDB(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, receipt)
	}
}

func confirmReceiptHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		receipt, err := workflow.ConfirmReceiptBooked(config.GetDB(), id, actorId(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, receipt)
	}
}

func verifyReceiptLineHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		lineId, ok := pathId(c, "lineId")
		if !ok {
			return
		}
		var input struct {
			Quantity decimal.Decimal `json:"quantity" binding:"required"`
			CellId   *int            `json:"cell_id"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := workflow.VerifyReceiptLine(config.GetDB(), id, lineId, input.Quantity, input.CellId, actorId(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func listStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		warehouseId := 0
		if v := c.Query("warehouse_id"); v != "" {
			warehouseId, _ = strconv.Atoi(v)
		}
		if warehouseId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "warehouse_id is required"})
			return
		}
		var prefix *string
		if v := c.Query("code"); v != "" {
			prefix = &v
		}
		stocks, err := models.ListStock(config.GetDB(), warehouseId, prefix)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stocks)
	}
}

func listMovementsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var code *string
		if v := c.Query("code"); v != "" {
			code = &v
		}
		var movementType *models.MovementType
		if v := c.Query("type"); v != "" {
			t := models.MovementType(v)
			movementType = &t
		}
		limit := 100
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				limit = n
			}
		}
		movements, err := models.ListMovements(config.GetDB(), code, movementType, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, movements)
	}
}

func stockAlertsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		warehouseId := 0
		if v := c.Query("warehouse_id"); v != "" {
			warehouseId, _ = strconv.Atoi(v)
		}
		alerts, err := models.BelowMinimumReport(config.GetDB(), warehouseId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, alerts)
	}
}

func transferStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Code        string          `json:"code" binding:"required"`
			WarehouseId int             `json:"warehouse_id" binding:"required"`
			FromCellId  *int            `json:"from_cell_id"`
			ToCellId    *int            `json:"to_cell_id"`
			Quantity    decimal.Decimal `json:"quantity" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		err := workflow.TransferStock(config.GetDB(), input.Code, input.WarehouseId,
			input.FromCellId, input.ToCellId, input.Quantity, actorId(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func remapCodeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			SupplierCode string `json:"supplier_code" binding:"required"`
			InternalCode string `json:"internal_code" binding:"required"`
			Description  string `json:"description"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		err := workflow.RemapProductCode(config.GetDB(), input.SupplierCode, input.InternalCode,
			input.Description, actorId(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func listCodeMappingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		mappings, err := models.ListCodeMappings(config.GetDB())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, mappings)
	}
}

func getSettingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		value, err := models.GetSetting(config.GetDB(), c.Param("key"), "")
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"key": c.Param("key"), "value": value})
	}
}

func setSettingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Value string `json:"value" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := models.SetSetting(config.GetDB(), c.Param("key"), input.Value); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"key": c.Param("key"), "value": input.Value})
	}
}

func listPickingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var status *models.PickingStatus
		if v := c.Query("status"); v != "" {
			s := models.PickingStatus(v)
			status = &s
		}
		pickings, err := models.ListPickings(config.GetDB(), status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, pickings)
	}
}

func getPickingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		picking, err := models.GetPicking(config.GetDB(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, picking)
	}
}

func startPickingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		picking, err := workflow.StartPicking(config.GetDB(), id, actorId(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, picking)
	}
}

func pickLineHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		lineId, ok := pathId(c, "lineId")
		if !ok {
			return
		}
		var input struct {
			CellId *int `json:"cell_id"`
		}
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&input); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		picking, err := workflow.PickLine(config.GetDB(), id, lineId, input.CellId, actorId(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, picking)
	}
}

func deliveryNoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		note, err := workflow.GenerateDeliveryNote(config.GetDB(), id, actorId(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, note)
	}
}

func listActivitiesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var orderId *int
		if v := c.Query("order_id"); v != "" {
			if id, err := strconv.Atoi(v); err == nil {
				orderId = &id
			}
		}
		var status *models.ActivityStatus
		if v := c.Query("status"); v != "" {
			s := models.ActivityStatus(v)
			status = &s
		}
		activities, err := models.ListActivities(config.GetDB(), orderId, status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, activities)
	}
}

func completeActivityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		activity, err := models.CompleteActivity(config.GetDB(), id, actorId(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, activity)
	}
}

func auditTrailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		entries, err := models.GetAuditTrail(config.GetDB(), c.Param("entity"), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}

// customErrorLogger logs request errors once per request with the
// correlation id attached.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		for _, ginErr := range c.Errors {
			logger.WithFields(logrus.Fields{
				"path":           c.Request.URL.Path,
				"method":         c.Request.Method,
				"status":         c.Writer.Status(),
				"correlation_id": cid,
			}).Error(ginErr.Error())
		}
	}
}

func splitAndTrim(csv string) []string {
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
