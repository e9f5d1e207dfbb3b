package server

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"groupgate/internal/gateway"
	"groupgate/internal/telegram"
)

// Server exposes the session gateway over HTTP.
type Server struct {
	gw     *gateway.Gateway
	logger *zap.Logger
}

func New(gw *gateway.Gateway, logger *zap.Logger) *Server {
	return &Server{gw: gw, logger: logger}
}

// Router builds the gin engine with CORS, recovery, the health probe, and
// the three API operations.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	r.GET("/health", s.health)

	api := r.Group("/api")
	{
		api.POST("/send-code", s.sendCode)
		api.POST("/verify-code", s.verifyCode)
		api.POST("/create-group", s.createGroup)
	}

	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type sendCodeRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

type sendCodeResponse struct {
	Success       bool   `json:"success"`
	PhoneCodeHash string `json:"phoneCodeHash,omitempty"`
	ClientID      string `json:"clientId,omitempty"`
	Error         string `json:"error,omitempty"`
}

func (s *Server) sendCode(c *gin.Context) {
	var req sendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, sendCodeResponse{Error: "invalid request body"})
		return
	}
	if req.PhoneNumber == "" {
		c.JSON(http.StatusBadRequest, sendCodeResponse{Error: "phoneNumber is required"})
		return
	}

	res, err := s.gw.RequestCode(c.Request.Context(), req.PhoneNumber)
	if err != nil {
		s.logger.Error("send code failed", zap.String("phone", req.PhoneNumber), zap.Error(err))
		c.JSON(statusFor(err), sendCodeResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, sendCodeResponse{
		Success:       true,
		PhoneCodeHash: res.PhoneCodeHash,
		ClientID:      res.LoginID,
	})
}

type verifyCodeRequest struct {
	PhoneNumber   string `json:"phoneNumber"`
	PhoneCodeHash string `json:"phoneCodeHash"`
	Code          string `json:"code"`
	ClientID      string `json:"clientId"`
}

type verifyCodeResponse struct {
	Success          bool   `json:"success"`
	SessionString    string `json:"sessionString,omitempty"`
	Error            string `json:"error,omitempty"`
	RequiresPassword bool   `json:"requiresPassword,omitempty"`
}

func (s *Server) verifyCode(c *gin.Context) {
	var req verifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, verifyCodeResponse{Error: "invalid request body"})
		return
	}
	if req.PhoneNumber == "" || req.PhoneCodeHash == "" || req.Code == "" {
		c.JSON(http.StatusBadRequest, verifyCodeResponse{
			Error: "phoneNumber, phoneCodeHash and code are required",
		})
		return
	}

	token, err := s.gw.VerifyCode(c.Request.Context(), gateway.VerifyCodeParams{
		Phone:    req.PhoneNumber,
		Code:     req.Code,
		CodeHash: req.PhoneCodeHash,
		LoginID:  req.ClientID,
	})
	if err != nil {
		s.logger.Error("verify code failed", zap.String("phone", req.PhoneNumber), zap.Error(err))
		c.JSON(statusFor(err), verifyCodeResponse{
			Error:            err.Error(),
			RequiresPassword: errors.Is(err, telegram.ErrPasswordNeeded),
		})
		return
	}

	c.JSON(http.StatusOK, verifyCodeResponse{Success: true, SessionString: token})
}

type createGroupRequest struct {
	SessionString    string   `json:"sessionString"`
	GroupName        string   `json:"groupName"`
	MobileNumbers    []string `json:"mobileNumbers"`
	GroupImageBase64 string   `json:"groupImageBase64"`
}

type createGroupResponse struct {
	Success        bool     `json:"success"`
	Message        string   `json:"message,omitempty"`
	MembersAdded   int      `json:"membersAdded,omitempty"`
	TotalRequested int      `json:"totalRequested,omitempty"`
	FailedNumbers  []string `json:"failedNumbers,omitempty"`
	Error          string   `json:"error,omitempty"`
}

func (s *Server) createGroup(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, createGroupResponse{Error: "invalid request body"})
		return
	}
	if req.SessionString == "" {
		c.JSON(http.StatusBadRequest, createGroupResponse{Error: "sessionString is required"})
		return
	}
	if req.GroupName == "" {
		c.JSON(http.StatusBadRequest, createGroupResponse{Error: "groupName is required"})
		return
	}
	if len(req.MobileNumbers) == 0 {
		c.JSON(http.StatusBadRequest, createGroupResponse{Error: "mobileNumbers must not be empty"})
		return
	}

	var photo []byte
	if req.GroupImageBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.GroupImageBase64)
		if err != nil {
			c.JSON(http.StatusBadRequest, createGroupResponse{Error: "groupImageBase64 is not valid base64"})
			return
		}
		photo = decoded
	}

	res, err := s.gw.CreateGroup(c.Request.Context(), gateway.CreateGroupParams{
		Session: req.SessionString,
		Name:    req.GroupName,
		Numbers: req.MobileNumbers,
		Photo:   photo,
	})
	if err != nil {
		s.logger.Error("create group failed", zap.String("group", req.GroupName), zap.Error(err))
		c.JSON(statusFor(err), createGroupResponse{
			Error:         err.Error(),
			FailedNumbers: res.FailedNumbers,
		})
		return
	}

	c.JSON(http.StatusOK, createGroupResponse{
		Success: true,
		Message: fmt.Sprintf("Group %q created with %d of %d members",
			res.Group.Title, res.MembersAdded, res.TotalRequested),
		MembersAdded:   res.MembersAdded,
		TotalRequested: res.TotalRequested,
		FailedNumbers:  res.FailedNumbers,
	})
}

// statusFor picks an HTTP status for a gateway error. The client keys off the
// success flag; the status is informative only.
func statusFor(err error) int {
	switch {
	case errors.Is(err, gateway.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, gateway.ErrNoMembersResolved),
		errors.Is(err, telegram.ErrPasswordNeeded):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
