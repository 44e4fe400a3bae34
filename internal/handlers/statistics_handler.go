package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"expensetracker/internal/services"
	"expensetracker/internal/stats"
)

// StatisticsHandler serves income/expense summaries.
type StatisticsHandler struct {
	statisticsService services.StatisticsServicer
}

// NewStatisticsHandler creates a new StatisticsHandler.
func NewStatisticsHandler(statisticsService services.StatisticsServicer) *StatisticsHandler {
	return &StatisticsHandler{statisticsService: statisticsService}
}

// StatisticsResponse is a statistics report inside the success envelope.
type StatisticsResponse struct {
	Success bool `json:"success"`
	*services.StatisticsReport
}

func (h *StatisticsHandler) report(c *gin.Context, period stats.Period) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	walletID, err := parseOptionalID(c, "wallet_id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	report, err := h.statisticsService.GetStatistics(userID, period, walletID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, StatisticsResponse{Success: true, StatisticsReport: report})
}

// GetWeekly reports the last seven days
// @Summary     Weekly statistics
// @Description Income and expense per day for the last seven days, ending today
// @Tags        statistics
// @Produce     json
// @Security    BearerAuth
// @Param       wallet_id query string false "Limit to one wallet"
// @Success     200 {object} services.StatisticsReport "Daily buckets"
// @Failure     400 {object} ErrorResponse "Invalid wallet ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /statistics/weekly [get]
func (h *StatisticsHandler) GetWeekly(c *gin.Context) {
	h.report(c, stats.Weekly)
}

// GetMonthly reports the last twelve months
// @Summary     Monthly statistics
// @Description Income and expense per month for the last twelve months, ending this month
// @Tags        statistics
// @Produce     json
// @Security    BearerAuth
// @Param       wallet_id query string false "Limit to one wallet"
// @Success     200 {object} services.StatisticsReport "Monthly buckets"
// @Failure     400 {object} ErrorResponse "Invalid wallet ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /statistics/monthly [get]
func (h *StatisticsHandler) GetMonthly(c *gin.Context) {
	h.report(c, stats.Monthly)
}

// GetYearly reports every year since the first transaction
// @Summary     Yearly statistics
// @Description Income and expense per year from the year of the first transaction to this year
// @Tags        statistics
// @Produce     json
// @Security    BearerAuth
// @Param       wallet_id query string false "Limit to one wallet"
// @Success     200 {object} services.StatisticsReport "Yearly buckets"
// @Failure     400 {object} ErrorResponse "Invalid wallet ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /statistics/yearly [get]
func (h *StatisticsHandler) GetYearly(c *gin.Context) {
	h.report(c, stats.Yearly)
}

// GetHighlights reports the most profitable and expensive day and month
// @Summary     Highlights
// @Description Best and worst weekday of the current month and best and worst month overall. Missing data is reported as N/A.
// @Tags        statistics
// @Produce     json
// @Security    BearerAuth
// @Param       wallet_id query string false "Limit to one wallet"
// @Success     200 {object} stats.Highlights "Highlights"
// @Failure     400 {object} ErrorResponse "Invalid wallet ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /statistics/highlights [get]
func (h *StatisticsHandler) GetHighlights(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	walletID, err := parseOptionalID(c, "wallet_id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	highlights, err := h.statisticsService.GetHighlights(userID, walletID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"highlights": highlights})
}
