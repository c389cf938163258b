package dto

import "time"

type LoginRequest struct {
	AdminID int64  `json:"admin_id"`
	Code    string `json:"code"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
}

type AdminUserItem struct {
	UserID     int64      `json:"user_id"`
	Subscribed bool       `json:"subscribed"`
	ExpiresAt  *time.Time `json:"expires_at"`
	Cursor     int64      `json:"cursor"`
	DemoUsed   bool       `json:"demo_used"`
}

type AdminUsersResponse struct {
	Items []AdminUserItem `json:"items"`
}

type AdminOrderItem struct {
	OrderID       string    `json:"order_id"`
	UserID        int64     `json:"user_id"`
	Amount        int       `json:"amount"`
	GrantDays     int       `json:"grant_days"`
	ScreenshotKey string    `json:"screenshot_key"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

type AdminOrdersResponse struct {
	Items []AdminOrderItem `json:"items"`
}

type OrderDecisionResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type RevokeResponse struct {
	UserID int64 `json:"user_id"`
	OK     bool  `json:"ok"`
}

type AdminStatsResponse struct {
	TotalEarnings int64 `json:"total_earnings"`
	TodayEarnings int64 `json:"today_earnings"`
	TotalUsers    int   `json:"total_users"`
	ActiveUsers   int   `json:"active_users"`
	PendingOrders int   `json:"pending_orders"`
	ContentItems  int64 `json:"content_items"`
}

type AddContentRequest struct {
	ChannelMessageID int64  `json:"channel_message_id"`
	Description      string `json:"description"`
}

type AddContentResponse struct {
	SequenceID       int64 `json:"sequence_id"`
	ChannelMessageID int64 `json:"channel_message_id"`
}

type ContentItemResponse struct {
	SequenceID       int64     `json:"sequence_id"`
	ChannelMessageID int64     `json:"channel_message_id"`
	Description      string    `json:"description"`
	CreatedAt        time.Time `json:"created_at"`
}
