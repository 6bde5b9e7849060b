package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/meetsweeper/internal/models"
	"github.com/joshua-takyi/meetsweeper/internal/services"
)

// SweepRunner runs one meeting lifecycle sweep at the current time.
type SweepRunner interface {
	RunNow(ctx context.Context) (services.SweepSummary, error)
}

// RunSweep triggers a sweep. Per-session results are included with ?verbose=true.
func RunSweep(runner SweepRunner) gin.HandlerFunc {
	return func(c *gin.Context) {
		verbose, _ := strconv.ParseBool(c.Query("verbose"))

		summary, err := runner.RunNow(c.Request.Context())
		if err != nil {
			if errors.Is(err, services.ErrSweepInProgress) {
				c.JSON(http.StatusConflict, models.ErrorResponse(err.Error()))
				return
			}
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, models.ErrorResponse(err.Error()))
			return
		}

		if !verbose {
			summary = summary.Compact()
		}
		c.JSON(http.StatusOK, summary)
	}
}

func Health(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "OK",
			"service": service,
		})
	}
}
