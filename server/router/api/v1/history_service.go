package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lynnzhiyun/chatpet/server/service/history"
)

type listHistoryResponse struct {
	Summaries []*history.DailySummary `json:"summaries"`
}

type deleteDayResponse struct {
	DeletedCount int64 `json:"deletedCount"`
}

// ListHistory returns one summary per recorded day, most recent activity
// first.
func (s *APIV1Service) ListHistory(c echo.Context) error {
	ctx := c.Request().Context()

	summaries, err := s.HistoryIndex.ListDaySummaries(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list history").SetInternal(err)
	}
	return c.JSON(http.StatusOK, &listHistoryResponse{Summaries: summaries})
}

// DeleteHistoryDay removes every message of one day.
func (s *APIV1Service) DeleteHistoryDay(c echo.Context) error {
	ctx := c.Request().Context()

	count, err := s.HistoryIndex.DeleteDay(ctx, c.Param("day"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete day").SetInternal(err)
	}
	return c.JSON(http.StatusOK, &deleteDayResponse{DeletedCount: count})
}

// DeleteAllHistory wipes the whole conversation history.
func (s *APIV1Service) DeleteAllHistory(c echo.Context) error {
	ctx := c.Request().Context()

	if err := s.HistoryIndex.DeleteAll(ctx); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete history").SetInternal(err)
	}
	return c.NoContent(http.StatusNoContent)
}
