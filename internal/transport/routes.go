// Package transport binds the command surface of spec §6 (poker, duels,
// wallet, ledger) to Gin HTTP routes and a WebSocket stream — a thin,
// external-collaborator layer demonstrating how the core engines are
// wired together, not itself one of the invariant-bearing subsystems.
//
// Grounded on the teacher's internal/api/routes.go SetupRouter: a single
// APIHandler struct closing over every dependency, a public group plus an
// authenticated-and-rate-limited group, CORS via ALLOWED_ORIGINS.
package transport

import (
	"encoding/hex"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/RobotsMakeThings/clawcasino-sub000/internal/agent"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/bus"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/clawerr"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/duel"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/ledger"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/money"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/poker"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/wallet"
)

type handler struct {
	dir    *agent.Directory
	tables *poker.Registry
	duels  *duel.Registry
	wallet *wallet.Service
	bus    *bus.Bus
}

// SetupRouter wires the full command surface of spec §6 behind Gin.
func SetupRouter(dir *agent.Directory, tables *poker.Registry, duels *duel.Registry, w *wallet.Service, b *bus.Bus) *gin.Engine {
	r := gin.Default()

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Wallet-Key, X-Display-Name")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	h := &handler{dir: dir, tables: tables, duels: duels, wallet: w, bus: b}

	// The public surface is read-only and pre-authentication, so it is
	// throttled per source IP and given a looser allowance; the
	// money-moving surface is throttled per agent once AuthMiddleware has
	// resolved one, and held to a tighter cap since every route there can
	// move chips or stakes.
	publicLimit := NewRateLimiter(120, 20, byIP)
	agentLimit := NewRateLimiter(60, 10, byAgent)

	pub := r.Group("/api/v1")
	pub.Use(publicLimit.Middleware())
	{
		pub.GET("/health", h.handleHealth)
		pub.GET("/tables", h.handleListTables)
		pub.GET("/tables/:id", h.handleObserveTable)
		pub.GET("/duels/open", h.handleOpenDuels)
		// Only the private agent channel needs the caller's identity; the
		// table and duel channels stay open to anonymous observers.
		streamAuth := AuthMiddleware(dir)
		pub.GET("/stream", func(c *gin.Context) {
			if c.Query("channel") == "agent" {
				streamAuth(c)
			}
		}, streamHandler(b))
	}

	auth := r.Group("/api/v1")
	auth.Use(AuthMiddleware(dir))
	auth.Use(agentLimit.Middleware())
	{
		auth.GET("/tables/:id/me", h.handleObserveTableAsSelf)
		auth.POST("/tables", h.handleCreateTable)
		auth.POST("/tables/:id/join", h.handleJoinTable)
		auth.POST("/tables/:id/leave", h.handleLeaveTable)
		auth.POST("/tables/:id/act", h.handleAct)
		auth.POST("/tables/:id/start-hand", h.handleStartHand)

		auth.POST("/duels/coinflip", h.handleCreateDuel(duel.Coinflip))
		auth.POST("/duels/rps", h.handleCreateDuel(duel.RPS))
		auth.GET("/duels/history", h.handleDuelHistory)
		auth.GET("/duels/:id", h.handleGetDuel)
		auth.POST("/duels/:id/accept", h.handleAcceptDuel)
		auth.POST("/duels/:id/cancel", h.handleCancelDuel)
		auth.POST("/duels/:id/commit", h.handleCommit)
		auth.POST("/duels/:id/reveal", h.handleReveal)

		auth.GET("/wallet/balance", h.handleBalance)
		auth.POST("/wallet/deposit", h.handleDeposit)
		auth.POST("/wallet/withdraw", h.handleWithdraw)
	}

	return r
}

func (h *handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "operational"})
}

func writeClawErr(c *gin.Context, err error) {
	ce, ok := err.(*clawerr.Error)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	status := http.StatusInternalServerError
	switch ce.Kind {
	case clawerr.Validation:
		status = http.StatusBadRequest
	case clawerr.NotFound:
		status = http.StatusNotFound
	case clawerr.Conflict:
		status = http.StatusConflict
	case clawerr.InsufficientFunds:
		status = http.StatusUnprocessableEntity
	case clawerr.RateLimited:
		status = http.StatusTooManyRequests
	}
	c.JSON(status, gin.H{"error": string(ce.Kind), "message": ce.Message})
}

// ── Poker ──────────────────────────────────────────────────────────────

func (h *handler) handleListTables(c *gin.Context) {
	tables := h.tables.ListTables()
	views := make([]poker.View, 0, len(tables))
	for _, t := range tables {
		views = append(views, t.Observe())
	}
	c.JSON(http.StatusOK, views)
}

func (h *handler) handleCreateTable(c *gin.Context) {
	var req struct {
		Name       string `json:"name"`
		SmallBlind string `json:"smallBlind"`
		BigBlind   string `json:"bigBlind"`
		MinBuyIn   string `json:"minBuyIn"`
		MaxBuyIn   string `json:"maxBuyIn"`
		MaxSeats   int    `json:"maxSeats"`
		Currency   string `json:"currency"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	small, err1 := money.Parse(req.SmallBlind)
	big, err2 := money.Parse(req.BigBlind)
	minBuy, err3 := money.Parse(req.MinBuyIn)
	maxBuy, err4 := money.Parse(req.MaxBuyIn)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "blinds and buy-ins must be decimal strings"})
		return
	}

	t, err := h.tables.Create(poker.Config{
		Name:       req.Name,
		SmallBlind: small,
		BigBlind:   big,
		MinBuyIn:   minBuy,
		MaxBuyIn:   maxBuy,
		MaxSeats:   req.MaxSeats,
		Currency:   ledger.Currency(req.Currency),
	})
	if err != nil {
		writeClawErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, t.Observe())
}

func (h *handler) tableFromParam(c *gin.Context) (*poker.Table, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid table id"})
		return nil, false
	}
	t, err := h.tables.Get(id)
	if err != nil {
		writeClawErr(c, err)
		return nil, false
	}
	return t, true
}

func (h *handler) handleObserveTable(c *gin.Context) {
	t, ok := h.tableFromParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, t.Observe())
}

func (h *handler) handleObserveTableAsSelf(c *gin.Context) {
	t, ok := h.tableFromParam(c)
	if !ok {
		return
	}
	a, _ := callerAgent(c)
	c.JSON(http.StatusOK, t.ObserveAs(a.ID))
}

func (h *handler) handleJoinTable(c *gin.Context) {
	t, ok := h.tableFromParam(c)
	if !ok {
		return
	}
	a, _ := callerAgent(c)

	var req struct {
		BuyIn string `json:"buyIn"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	buyIn, err := money.Parse(req.BuyIn)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "buyIn must be a decimal string"})
		return
	}
	if err := t.Seat(a.ID, buyIn); err != nil {
		writeClawErr(c, err)
		return
	}
	c.JSON(http.StatusOK, t.ObserveAs(a.ID))
}

func (h *handler) handleLeaveTable(c *gin.Context) {
	t, ok := h.tableFromParam(c)
	if !ok {
		return
	}
	a, _ := callerAgent(c)
	if err := t.Leave(a.ID); err != nil {
		writeClawErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "left"})
}

func (h *handler) handleStartHand(c *gin.Context) {
	t, ok := h.tableFromParam(c)
	if !ok {
		return
	}
	if err := t.StartHand(); err != nil {
		writeClawErr(c, err)
		return
	}
	c.JSON(http.StatusOK, t.Observe())
}

func (h *handler) handleAct(c *gin.Context) {
	t, ok := h.tableFromParam(c)
	if !ok {
		return
	}
	a, _ := callerAgent(c)

	var req struct {
		Action  string `json:"action"`
		RaiseTo string `json:"raiseTo"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	raiseTo := money.Zero
	if req.RaiseTo != "" {
		var err error
		raiseTo, err = money.Parse(req.RaiseTo)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "raiseTo must be a decimal string"})
			return
		}
	}
	if err := t.Act(a.ID, poker.ActionKind(req.Action), raiseTo); err != nil {
		writeClawErr(c, err)
		return
	}
	c.JSON(http.StatusOK, t.ObserveAs(a.ID))
}

// ── Duels ──────────────────────────────────────────────────────────────

func (h *handler) handleOpenDuels(c *gin.Context) {
	open := h.duels.OpenList()
	views := make([]duel.View, 0, len(open))
	for _, g := range open {
		views = append(views, g.View())
	}
	c.JSON(http.StatusOK, views)
}

func (h *handler) handleCreateDuel(kind duel.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, _ := callerAgent(c)

		var req struct {
			Stake    string `json:"stake"`
			Currency string `json:"currency"`
			Rounds   int    `json:"rounds"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		stake, err := money.Parse(req.Stake)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "stake must be a decimal string"})
			return
		}
		g, err := h.duels.Create(kind, a.ID, a.WalletAddress(), stake, ledger.Currency(req.Currency), req.Rounds)
		if err != nil {
			writeClawErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, g.View())
	}
}

func (h *handler) duelFromParam(c *gin.Context) (*duel.Game, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid duel id"})
		return nil, false
	}
	g, err := h.duels.Get(id)
	if err != nil {
		writeClawErr(c, err)
		return nil, false
	}
	return g, true
}

func (h *handler) handleGetDuel(c *gin.Context) {
	g, ok := h.duelFromParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, g.View())
}

func (h *handler) handleDuelHistory(c *gin.Context) {
	a, _ := callerAgent(c)
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	games := h.duels.History(a.ID, limit)
	views := make([]duel.View, 0, len(games))
	for _, g := range games {
		views = append(views, g.View())
	}
	c.JSON(http.StatusOK, views)
}

func (h *handler) handleAcceptDuel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid duel id"})
		return
	}
	a, _ := callerAgent(c)
	g, err := h.duels.Accept(id, a.ID, a.WalletAddress())
	if err != nil {
		writeClawErr(c, err)
		return
	}
	c.JSON(http.StatusOK, g.View())
}

func (h *handler) handleCancelDuel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid duel id"})
		return
	}
	a, _ := callerAgent(c)
	g, err := h.duels.Cancel(id, a.ID)
	if err != nil {
		writeClawErr(c, err)
		return
	}
	c.JSON(http.StatusOK, g.View())
}

func (h *handler) handleCommit(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid duel id"})
		return
	}
	a, _ := callerAgent(c)

	var req struct {
		Commitment string `json:"commitment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	commitment, err := hex.DecodeString(req.Commitment)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "commitment must be a hex-encoded hash"})
		return
	}
	g, err := h.duels.Commit(id, a.ID, commitment)
	if err != nil {
		writeClawErr(c, err)
		return
	}
	c.JSON(http.StatusOK, g.View())
}

func (h *handler) handleReveal(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid duel id"})
		return
	}
	a, _ := callerAgent(c)

	var req struct {
		Choice string `json:"choice"`
		Nonce  string `json:"nonce"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	g, err := h.duels.Reveal(id, a.ID, duel.Choice(req.Choice), req.Nonce)
	if err != nil {
		writeClawErr(c, err)
		return
	}
	c.JSON(http.StatusOK, g.View())
}

// ── Wallet ─────────────────────────────────────────────────────────────

func (h *handler) handleBalance(c *gin.Context) {
	a, _ := callerAgent(c)
	currency := c.DefaultQuery("currency", "USD")
	bal, err := h.wallet.Balance(a.ID, ledger.Currency(currency))
	if err != nil {
		writeClawErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"currency": currency, "balance": bal.String()})
}

func (h *handler) handleDeposit(c *gin.Context) {
	a, _ := callerAgent(c)
	var req struct {
		Currency string `json:"currency"`
		Amount   string `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	amount, err := money.Parse(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a decimal string"})
		return
	}
	bal, err := h.wallet.Deposit(a.ID, ledger.Currency(req.Currency), amount)
	if err != nil {
		writeClawErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": bal.String()})
}

func (h *handler) handleWithdraw(c *gin.Context) {
	a, _ := callerAgent(c)
	var req struct {
		Currency string `json:"currency"`
		Amount   string `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	amount, err := money.Parse(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a decimal string"})
		return
	}
	bal, err := h.wallet.Withdraw(a.ID, ledger.Currency(req.Currency), amount)
	if err != nil {
		writeClawErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": bal.String()})
}
