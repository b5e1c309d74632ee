package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/blues/agrofund/internal/logic"
	"github.com/blues/agrofund/internal/metrics"
	"github.com/blues/agrofund/internal/model"
	"github.com/gin-gonic/gin"
)

const (
	HeaderUserId         = "X-User-Id"
	HeaderUserRole       = "X-User-Role"
	HeaderUserDepartment = "X-User-Department"

	actorKey = "actor"
)

// ActorMiddleware 从认证代理注入的请求头里读取调用方, 缺失时为匿名
func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var actor logic.Actor
		if raw := c.GetHeader(HeaderUserId); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				ErrorResponse(c, http.StatusBadRequest, "invalid "+HeaderUserId+" header")
				c.Abort()
				return
			}
			actor.ID = id
			actor.Role = model.Role(strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderUserRole))))
			actor.Department = strings.ToUpper(strings.TrimSpace(c.GetHeader(HeaderUserDepartment)))
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// ActorFrom 取出当前调用方
func ActorFrom(c *gin.Context) logic.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(logic.Actor); ok {
			return actor
		}
	}
	return logic.Actor{}
}

// MetricsMiddleware 记录请求数和耗时
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
