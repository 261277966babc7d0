package httpgin

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/payment"
	redisrepo "github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/repository/redis"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/service"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/service/orders"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/service/query"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/service/reservation"
)

type Deps struct {
	Services *service.Services
	Auth     *Authenticator
	Idem     *redisrepo.IdempotencyStore
	PubSub   *redisrepo.CourtsPubSub
	// Sandbox enables the settle endpoint used in development.
	Sandbox *payment.Sandbox
	Logger  *slog.Logger
}

func NewRouter(d Deps, middlewares ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(d.Logger), RequestIDMiddleware(), TracingMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	svcs := d.Services

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public API
	r.GET("/courts/:id/availability", handleGetAvailability(svcs))
	if d.PubSub != nil {
		r.GET("/courts/:id/changes", handleCourtChanges(d.PubSub))
	}

	r.POST("/payments/webhook", handlePaymentWebhook(svcs))

	// Authenticated API
	api := r.Group("/", d.Auth.Middleware())
	{
		api.POST("/courts/:id/orders", handleReserve(svcs, d.Idem))

		api.GET("/orders/:id", handleGetOrder(svcs))
		api.GET("/me/orders", handleListMyOrders(svcs))
		api.POST("/orders/:id/cancel", handleCancelOrder(svcs))
		api.POST("/orders/:id/rating", handleRateOrder(svcs))
	}

	// Admin-API
	admin := r.Group("/admin", d.Auth.Middleware(), RequireRole(domain.RoleManager))
	{
		admin.POST("/courts/:id/inactive-periods", handleAddInactivePeriod(svcs))
		admin.DELETE("/courts/:id/inactive-periods/:pid", handleRemoveInactivePeriod(svcs))
		admin.POST("/orders/:id/played", handleMarkPlayed(svcs))
		admin.POST("/payments/confirm", RequireRole(), handleConfirmPayment(svcs))
	}

	if d.Sandbox != nil {
		r.POST("/sandbox/payments/:intent/settle", handleSandboxSettle(svcs, d.Sandbox))
	}

	return r
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	v, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return v, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

// unprocessable answers a body that could not be decoded into a booking or
// rating, such as an unparsable timestamp or a wrongly typed field.
func unprocessable(c *gin.Context, err error) {
	c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "malformed body: " + err.Error()})
}

// known are the specific errors whose text is shown to clients as is.
var known = []error{
	reservation.ErrCourtNotFound,
	reservation.ErrCourtInactive,
	reservation.ErrFacilityNotFound,
	reservation.ErrPeriodNotFound,
	reservation.ErrPastPeriod,
	orders.ErrOrderNotFound,
	orders.ErrCancelInProgress,
	query.ErrCourtNotFound,
	query.ErrFacilityNotFound,
	domain.ErrFacilityClosed,
	domain.ErrOutsideOpenHours,
	domain.ErrSpansDays,
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}

	var rl *reservation.RateLimitedError
	if errors.As(err, &rl) {
		c.Header("Retry-After", strconv.Itoa(max(1, int(math.Ceil(rl.RetryAfter.Seconds())))))
	}

	c.JSON(status, ErrorResponse{Error: messageOf(err, status)})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidInterval), errors.Is(err, domain.ErrScheduleViolation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrStateGuard),
		errors.Is(err, domain.ErrAlreadyRated):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrPaymentGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// messageOf strips operation prefixes and hides internal failures.
func messageOf(err error, status int) string {
	var (
		ve *domain.ValidationError
		ge *domain.StateGuardError
		ce *reservation.SlotConflictError
		rl *reservation.RateLimitedError
	)

	switch {
	case errors.As(err, &ve):
		return ve.Error()
	case errors.As(err, &ge):
		return ge.Error()
	case errors.As(err, &ce):
		return ce.Error()
	case errors.As(err, &rl):
		return rl.Error()
	}

	for _, k := range known {
		if errors.Is(err, k) {
			return k.Error()
		}
	}

	for _, cat := range []error{
		domain.ErrInvalidInterval,
		domain.ErrScheduleViolation,
		domain.ErrUnauthorized,
		domain.ErrForbidden,
		domain.ErrNotFound,
		domain.ErrConflict,
		domain.ErrAlreadyRated,
		domain.ErrPaymentGateway,
	} {
		if errors.Is(err, cat) {
			return cat.Error()
		}
	}

	return http.StatusText(status)
}
