package handler

import (
	"encoding/json"
	"strconv"

	"bingoledger/internal/config"
	"bingoledger/internal/service"
	"bingoledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Handler struct {
	gameService       *service.GameService
	settlementService *service.SettlementService
	queryService      *service.QueryService
	authService       *service.AuthService
}

// NewHandler builds every service on the shared handles. rdb may be nil.
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config, log *zap.Logger) *Handler {
	return &Handler{
		gameService:       service.NewGameService(db, cfg, log),
		settlementService: service.NewSettlementService(db, rdb, cfg, log),
		queryService:      service.NewQueryService(db, cfg, log),
		authService:       service.NewAuthService(db, cfg, log),
	}
}

// ============================================================
// Games
// ============================================================

type CreateGameRequest struct {
	UserID              int64           `json:"user_id" binding:"required"`
	SelectedCards       []int           `json:"selected_cards" binding:"required"`
	PatternRequirements json.RawMessage `json:"pattern_requirements" binding:"required"`
	WinningStrategy     string          `json:"winning_strategy" binding:"required"`
	CustomStrategy      string          `json:"custom_strategy"`
	BetAmount           decimal.Decimal `json:"bet_amount"`
	TotalPool           decimal.Decimal `json:"total_pool"`
	PrizePool           decimal.Decimal `json:"prize_pool"`
	Commission          decimal.Decimal `json:"commission"`
	UserCommission      decimal.Decimal `json:"user_commission"`
}

// CreateGame opens a new active game.
// POST /api/v1/games/create
func (h *Handler) CreateGame(c *gin.Context) {
	var req CreateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	game, err := h.gameService.Create(c.Request.Context(), &service.CreateGameRequest{
		UserID:              req.UserID,
		SelectedCards:       req.SelectedCards,
		PatternRequirements: req.PatternRequirements,
		WinningStrategy:     req.WinningStrategy,
		CustomStrategy:      req.CustomStrategy,
		BetAmount:           req.BetAmount,
		TotalPool:           req.TotalPool,
		PrizePool:           req.PrizePool,
		Commission:          req.Commission,
		UserCommission:      req.UserCommission,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, game)
}

// CompleteGameRequest uses pointers so a missing field can be told apart
// from a zero value; every field is mandatory.
type CompleteGameRequest struct {
	GameID             *int64           `json:"game_id" binding:"required"`
	UserID             *int64           `json:"user_id" binding:"required"`
	WinnerCard         *int             `json:"winner_card" binding:"required"`
	WinnerPattern      *string          `json:"winner_pattern" binding:"required"`
	WinnerPrize        *decimal.Decimal `json:"winner_prize" binding:"required"`
	CalledNumbers      *[]int           `json:"called_numbers" binding:"required"`
	TotalPool          *decimal.Decimal `json:"total_pool" binding:"required"`
	Commission         *decimal.Decimal `json:"commission" binding:"required"`
	UserCommission     *decimal.Decimal `json:"user_commission" binding:"required"`
	UserCommissionRate *decimal.Decimal `json:"user_commission_rate" binding:"required"`
}

// CompleteGame settles a game: marks it completed, credits the host and
// books the sale, atomically.
// POST /api/v1/games/complete
func (h *Handler) CompleteGame(c *gin.Context) {
	var req CompleteGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.settlementService.Settle(c.Request.Context(), &service.SettleRequest{
		GameID:             *req.GameID,
		OwnerID:            *req.UserID,
		WinnerCard:         *req.WinnerCard,
		WinnerPattern:      *req.WinnerPattern,
		WinnerPrize:        *req.WinnerPrize,
		CalledNumbers:      *req.CalledNumbers,
		TotalPool:          *req.TotalPool,
		Commission:         *req.Commission,
		UserCommission:     *req.UserCommission,
		UserCommissionRate: *req.UserCommissionRate,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, result)
}

// UpdateGame
// POST /api/v1/games/update
func (h *Handler) UpdateGame(c *gin.Context) {
	var req service.UpdateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	game, err := h.gameService.Update(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, game)
}

// ListGames
// GET /api/v1/games/list?user_id=xxx&status=active&limit=50
func (h *Handler) ListGames(c *gin.Context) {
	userID, ok := queryInt64(c, "user_id")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	games, err := h.queryService.ListGames(c.Request.Context(), service.GameQuery{
		UserID: userID,
		Status: c.Query("status"),
		Limit:  limit,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":  games,
		"total": len(games),
	})
}

// ============================================================
// Sales
// ============================================================

func (h *Handler) salesQuery(c *gin.Context) (service.SalesQuery, bool) {
	userID, ok := queryInt64(c, "user_id")
	if !ok {
		return service.SalesQuery{}, false
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return service.SalesQuery{}, false
	}
	return service.SalesQuery{
		UserID:   userID,
		FromDate: c.Query("from_date"),
		ToDate:   c.Query("to_date"),
		Limit:    limit,
	}, true
}

// ListSales
// GET /api/v1/sales/list?user_id=xxx&from_date=2024-01-01&to_date=2024-01-31
func (h *Handler) ListSales(c *gin.Context) {
	q, ok := h.salesQuery(c)
	if !ok {
		return
	}

	entries, err := h.queryService.ListSales(c.Request.Context(), q)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":  entries,
		"total": len(entries),
	})
}

// SalesStats
// GET /api/v1/sales/stats?user_id=xxx&from_date=2024-01-01&to_date=2024-01-31
func (h *Handler) SalesStats(c *gin.Context) {
	q, ok := h.salesQuery(c)
	if !ok {
		return
	}

	stats, err := h.queryService.SalesStats(c.Request.Context(), q)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, stats)
}

// ============================================================
// Auth
// ============================================================

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login
// POST /api/v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.FromError(c, err)
		return
	}

	// model.User never serialises its password
	response.Success(c, user)
}

type ChangePasswordRequest struct {
	UserID          int64  `json:"user_id" binding:"required"`
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// ChangePassword
// POST /api/v1/auth/change-password
func (h *Handler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	err := h.authService.ChangePassword(c.Request.Context(), req.UserID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, gin.H{
		"message": "password changed",
	})
}

func queryInt64(c *gin.Context, key string) (int64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		response.ParamError(c, key+" must be an integer")
		return 0, false
	}
	return v, true
}

func queryInt(c *gin.Context, key string) (int, bool) {
	v, ok := queryInt64(c, key)
	return int(v), ok
}
