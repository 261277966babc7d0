package httpgin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	redisrepo "github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/repository/redis"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/service"
)

const idemLockTTL = 60 * time.Second

// @Summary  Court availability on a local day
// @Param    id        path   int     true   "Court ID"
// @Param    date      query  string  true   "YYYY-MM-DD"
// @Param    timezone  query  string  false  "IANA zone, defaults to the facility's"
// @Success  200  {object}  query.Availability
// @Failure  404  {object}  ErrorResponse
// @Failure  422  {object}  ErrorResponse
// @Router   /courts/{id}/availability [get]
func handleGetAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		courtID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		a, err := svcs.Query.CourtAvailability(
			c.Request.Context(),
			courtID,
			c.Query("date"),
			c.Query("timezone"),
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 5s
		writeJSONWithCache(c, http.StatusOK, a, "public, max-age=5", true)
	}
}

// @Summary  Stream reservation-set changes of a court (SSE)
// @Param    id  path  int  true  "Court ID"
// @Produce  text/event-stream
// @Router   /courts/{id}/changes [get]
func handleCourtChanges(pubsub *redisrepo.CourtsPubSub) gin.HandlerFunc {
	return func(c *gin.Context) {
		courtID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		ctx := c.Request.Context()
		changes := make(chan int64, 8)

		go func() {
			_ = pubsub.Subscribe(ctx, func(_ context.Context, id int64) {
				if id != courtID {
					return
				}
				select {
				case changes <- id:
				default:
				}
			})
		}()

		c.Header("Cache-Control", "no-cache")
		c.Stream(func(w io.Writer) bool {
			select {
			case <-ctx.Done():
				return false
			case id := <-changes:
				c.SSEvent("court_changed", gin.H{"court_id": id})
				return true
			}
		})
	}
}

// @Summary  Reserve a court period (idempotent)
// @Param    id   path  int             true  "Court ID"
// @Param    req  body  ReserveRequest  true  "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} ReserveResponse
// @Failure  400 {object} ErrorResponse "invalid period / outside opening hours"
// @Failure  409 {object} ErrorResponse "slot taken / idem in progress"
// @Failure  422 {object} ErrorResponse "malformed body"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Failure  502 {object} ErrorResponse "payment gateway"
// @Security BearerAuth
// @Router   /courts/{id}/orders [post]
func handleReserve(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		courtID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req ReserveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			unprocessable(c, err)
			return
		}

		p := principal(c)
		in, err := req.input(courtID, p)
		if err != nil {
			respondErr(c, err)
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemReserve(courtID, p.UserID, idemKey)

			status, payload, err := idem.Begin(c.Request.Context(), idemStorageKey, idemLockTTL)
			if err != nil {
				respondErr(c, err)
				return
			}
			switch status {
			case redisrepo.IdemDone:
				c.Header("Idempotency-Key", idemKey)
				c.Data(
					http.StatusCreated,
					"application/json; charset=utf-8",
					[]byte(payload),
				)
				return
			case redisrepo.IdemInProgress:
				c.Header("Retry-After", "1")
				c.JSON(
					http.StatusConflict,
					ErrorResponse{Error: "idempotency key in progress"},
				)
				return
			}
		}

		res, err := svcs.Reservation.Reserve(c.Request.Context(), in)
		if err != nil {
			if idemStorageKey != "" {
				_ = idem.Abort(c.Request.Context(), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		resp := ReserveResponse{Order: res.Order, ClientToken: res.ClientToken}

		if idemStorageKey != "" {
			b, _ := json.Marshal(resp)
			_ = idem.Complete(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}
