package core

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// RouterDeps carries the stores and services the handlers operate on.
// Repositories are taken as interfaces so handlers can be exercised against
// in-memory implementations.
type RouterDeps struct {
	Owners     OwnerRepository
	Members    MemberRepository
	Attendance AttendanceRepository
	Orders     OrderRepository
	Stats      *StatsService
	Plans      *PlanCatalog
}

// NewRouter constructs the Gin engine with routes wired.
func NewRouter(cfg Config, authService *AuthService, tokens *TokenService, deps RouterDeps) *gin.Engine {
	r := gin.Default()

	r.Use(CORSMiddleware(cfg))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	ownerRepo := deps.Owners
	memberRepo := deps.Members
	attendanceRepo := deps.Attendance
	orderRepo := deps.Orders
	stats := deps.Stats
	plans := deps.Plans
	resolver := authService.Resolver()

	api := r.Group("/api/v1")

	api.POST("/auth/login", func(c *gin.Context) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
			return
		}
		if strings.TrimSpace(req.Email) == "" || req.Password == "" {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "email and password are required")
			return
		}

		result, err := authService.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidCredentials):
				respondError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid credentials")
			case errors.Is(err, ErrMembershipExpired):
				respondError(c, http.StatusUnauthorized, "MEMBERSHIP_EXPIRED", "membership has expired")
			default:
				log.Printf("login failed: %v", err)
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "login failed")
			}
			return
		}
		c.JSON(http.StatusOK, result)
	})

	api.GET("/plans", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"plans": plans.Plans()})
	})

	authed := api.Group("", AuthRequired(tokens, resolver))

	authed.GET("/me", func(c *gin.Context) {
		p, _ := CurrentPrincipal(c)
		c.JSON(http.StatusOK, p)
	})

	authed.POST("/attendance/check-in", func(c *gin.Context) {
		p, _ := CurrentPrincipal(c)
		if p.Role != RoleMember {
			respondError(c, http.StatusForbidden, "FORBIDDEN", "member role required")
			return
		}

		ctx := c.Request.Context()
		record, err := attendanceRepo.Record(ctx, p.ID)
		if err != nil {
			log.Printf("check-in failed for member %d: %v", p.ID, err)
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to record check-in")
			return
		}
		// Counter is best-effort; the attendance row is already committed.
		if _, err := stats.RecordCheckIn(ctx); err != nil {
			log.Printf("check-in counter update failed: %v", err)
		}
		c.JSON(http.StatusCreated, record)
	})

	registration := api.Group("/auth", AuthRequired(tokens, resolver), OwnerOnly())

	registration.POST("/register-owner", func(c *gin.Context) {
		req, ok := bindRegistration(c)
		if !ok {
			return
		}
		owner, err := authService.RegisterOwner(c.Request.Context(), req.Name, req.Email, req.Password, req.Phone)
		if err != nil {
			respondRegistrationError(c, err, "owner")
			return
		}
		c.JSON(http.StatusCreated, owner)
	})

	registration.POST("/register-member", func(c *gin.Context) {
		req, ok := bindRegistration(c)
		if !ok {
			return
		}
		p, _ := CurrentPrincipal(c)
		ownerID := req.OwnerID
		if ownerID == 0 {
			ownerID = p.ID
		}
		member, err := authService.RegisterMember(c.Request.Context(), req.Name, req.Email, req.Password, req.Phone, ownerID)
		if err != nil {
			respondRegistrationError(c, err, "member")
			return
		}
		c.JSON(http.StatusCreated, member)
	})

	owners := api.Group("/owners", AuthRequired(tokens, resolver), OwnerOnly())

	owners.GET("/profile", func(c *gin.Context) {
		p, _ := CurrentPrincipal(c)
		owner, err := ownerRepo.FindByID(c.Request.Context(), p.ID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				respondError(c, http.StatusNotFound, "NOT_FOUND", "owner not found")
				return
			}
			log.Printf("fetch owner profile %d: %v", p.ID, err)
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch profile")
			return
		}
		c.JSON(http.StatusOK, owner)
	})

	owners.PUT("/profile", func(c *gin.Context) {
		var req struct {
			Name  *string `json:"name"`
			Email *string `json:"email"`
			Phone *string `json:"phone"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
			return
		}
		if req.Email != nil && !validEmail(*req.Email) {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid email")
			return
		}

		p, _ := CurrentPrincipal(c)
		owner, err := ownerRepo.Update(c.Request.Context(), p.ID, OwnerUpdate{Name: req.Name, Email: req.Email, Phone: req.Phone})
		if err != nil {
			switch {
			case errors.Is(err, ErrNotFound):
				respondError(c, http.StatusNotFound, "NOT_FOUND", "owner not found")
			case errors.Is(err, ErrEmailTaken):
				respondError(c, http.StatusConflict, "CONFLICT", "email already registered")
			default:
				log.Printf("update owner profile %d: %v", p.ID, err)
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to update profile")
			}
			return
		}
		c.JSON(http.StatusOK, owner)
	})

	members := api.Group("/members", AuthRequired(tokens, resolver), OwnerOnly())

	members.GET("", func(c *gin.Context) {
		p, _ := CurrentPrincipal(c)
		page, perPage, err := parsePagination(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		status := c.Query("status")
		if status != "" && status != "active" && status != "expired" {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "status must be active or expired")
			return
		}

		items, total, err := memberRepo.List(c.Request.Context(), p.ID, status, page, perPage)
		if err != nil {
			log.Printf("list members for owner %d: %v", p.ID, err)
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to list members")
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"data":        items,
			"total":       total,
			"page":        page,
			"total_pages": calcTotalPages(total, perPage),
		})
	})

	members.POST("", func(c *gin.Context) {
		req, ok := bindRegistration(c)
		if !ok {
			return
		}
		p, _ := CurrentPrincipal(c)
		member, err := authService.RegisterMember(c.Request.Context(), req.Name, req.Email, req.Password, req.Phone, p.ID)
		if err != nil {
			respondRegistrationError(c, err, "member")
			return
		}
		c.JSON(http.StatusCreated, member)
	})

	members.GET("/:id", func(c *gin.Context) {
		p, _ := CurrentPrincipal(c)
		memberID, ok := parseID(c)
		if !ok {
			return
		}
		member, err := memberRepo.FindOwned(c.Request.Context(), p.ID, memberID)
		if err != nil {
			respondMemberLookupError(c, err, p.ID, memberID)
			return
		}
		c.JSON(http.StatusOK, member)
	})

	members.PUT("/:id", func(c *gin.Context) {
		p, _ := CurrentPrincipal(c)
		memberID, ok := parseID(c)
		if !ok {
			return
		}
		var req struct {
			Name  *string `json:"name"`
			Email *string `json:"email"`
			Phone *string `json:"phone"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
			return
		}
		if req.Email != nil && !validEmail(*req.Email) {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid email")
			return
		}

		member, err := memberRepo.Update(c.Request.Context(), p.ID, memberID, MemberUpdate{Name: req.Name, Email: req.Email, Phone: req.Phone})
		if err != nil {
			if errors.Is(err, ErrEmailTaken) {
				respondError(c, http.StatusConflict, "CONFLICT", "email already registered")
				return
			}
			respondMemberLookupError(c, err, p.ID, memberID)
			return
		}
		c.JSON(http.StatusOK, member)
	})

	members.DELETE("/:id", func(c *gin.Context) {
		p, _ := CurrentPrincipal(c)
		memberID, ok := parseID(c)
		if !ok {
			return
		}
		if err := memberRepo.SoftDelete(c.Request.Context(), p.ID, memberID); err != nil {
			respondMemberLookupError(c, err, p.ID, memberID)
			return
		}
		c.Status(http.StatusNoContent)
	})

	members.PUT("/:id/renew", func(c *gin.Context) {
		p, _ := CurrentPrincipal(c)
		memberID, ok := parseID(c)
		if !ok {
			return
		}
		var req struct {
			Months int `json:"months"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
			return
		}
		if req.Months < 1 {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "months must be >= 1")
			return
		}

		member, err := memberRepo.Renew(c.Request.Context(), p.ID, memberID, req.Months)
		if err != nil {
			respondMemberLookupError(c, err, p.ID, memberID)
			return
		}
		c.JSON(http.StatusOK, member)
	})

	members.GET("/:id/attendance", func(c *gin.Context) {
		p, _ := CurrentPrincipal(c)
		memberID, ok := parseID(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		if _, err := memberRepo.FindOwned(ctx, p.ID, memberID); err != nil {
			respondMemberLookupError(c, err, p.ID, memberID)
			return
		}
		items, err := attendanceRepo.ListRecent(ctx, memberID, 30)
		if err != nil {
			log.Printf("list attendance for member %d: %v", memberID, err)
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch attendance")
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": items})
	})

	members.GET("/:id/orders", func(c *gin.Context) {
		p, _ := CurrentPrincipal(c)
		memberID, ok := parseID(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		if _, err := memberRepo.FindOwned(ctx, p.ID, memberID); err != nil {
			respondMemberLookupError(c, err, p.ID, memberID)
			return
		}
		items, err := orderRepo.ListByMember(ctx, memberID)
		if err != nil {
			log.Printf("list orders for member %d: %v", memberID, err)
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch orders")
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": items})
	})

	members.POST("/:id/orders", func(c *gin.Context) {
		p, _ := CurrentPrincipal(c)
		memberID, ok := parseID(c)
		if !ok {
			return
		}
		var req struct {
			Plan string `json:"plan"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
			return
		}
		plan, found := plans.Find(req.Plan)
		if !found {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "unknown plan")
			return
		}

		ctx := c.Request.Context()
		if _, err := memberRepo.FindOwned(ctx, p.ID, memberID); err != nil {
			respondMemberLookupError(c, err, p.ID, memberID)
			return
		}
		order, err := orderRepo.Create(ctx, memberID, plan.Key, plan.Months, plan.PriceCents)
		if err != nil {
			log.Printf("create order for member %d: %v", memberID, err)
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create order")
			return
		}
		c.JSON(http.StatusCreated, order)
	})

	statsGroup := api.Group("/stats", AuthRequired(tokens, resolver), OwnerOnly())

	statsGroup.GET("/overview", func(c *gin.Context) {
		p, _ := CurrentPrincipal(c)
		ctx := c.Request.Context()

		counts, err := memberRepo.Counts(ctx, p.ID)
		if err != nil {
			log.Printf("member counts for owner %d: %v", p.ID, err)
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch stats")
			return
		}
		checkIns, err := stats.CheckInsToday(ctx)
		if err != nil {
			log.Printf("check-in count: %v", err)
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch stats")
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"members":        counts,
			"checkins_today": checkIns,
		})
	})

	return r
}

type registrationRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	OwnerID  int64  `json:"ownerId"`
}

// bindRegistration validates the shared registration payload before it
// reaches the authentication core.
func bindRegistration(c *gin.Context) (registrationRequest, bool) {
	var req registrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
		return req, false
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Phone) == "" {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "name and phone are required")
		return req, false
	}
	if !validEmail(req.Email) {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid email")
		return req, false
	}
	if len(req.Password) < 6 {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "password must be at least 6 characters")
		return req, false
	}
	return req, true
}

func respondRegistrationError(c *gin.Context, err error, kind string) {
	if errors.Is(err, ErrEmailTaken) {
		respondError(c, http.StatusConflict, "CONFLICT", kind+" with this email already exists")
		return
	}
	log.Printf("register %s: %v", kind, err)
	respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "registration failed")
}

func respondMemberLookupError(c *gin.Context, err error, ownerID, memberID int64) {
	if errors.Is(err, ErrNotFound) {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "member not found")
		return
	}
	log.Printf("member %d lookup for owner %d: %v", memberID, ownerID, err)
	respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch member")
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
		return 0, false
	}
	return id, true
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t")
}
