package dto

// AnalyticsQuery binds GET /api/analytics/* query parameters.
type AnalyticsQuery struct {
	WindowDays          int  `form:"window_days" binding:"max=3650"`
	CompareWithPrevious bool `form:"compare"`
}
