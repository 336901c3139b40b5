package v1

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"city.newnan/mc-console/internal/model"
	"city.newnan/mc-console/internal/service"
	"city.newnan/mc-console/internal/sse"
)

// CrashController 崩溃报告
type CrashController struct {
	Crash  *service.CrashService
	Broker *sse.Broker
}

// NewCrashController 创建崩溃报告控制器
func NewCrashController(crash *service.CrashService, broker *sse.Broker) *CrashController {
	return &CrashController{
		Crash:  crash,
		Broker: broker,
	}
}

// Latest 获取最新的崩溃报告
// @Summary 获取最新的崩溃报告
// @Description download=true 时以附件形式返回报告原文
// @Tags 崩溃报告
// @Produce json
// @Security ApiKeyAuth
// @Param download query bool false "下载原文"
// @Success 200 {object} model.Response{data=model.CrashReport} "获取成功"
// @Failure 404 {object} model.Response "没有找到崩溃报告"
// @Failure 429 {object} model.Response "请求过于频繁"
// @Router /api/v1/crash [get]
func (c *CrashController) Latest(ctx *gin.Context) {
	report, err := c.Crash.Latest()
	if err != nil {
		var limited *service.RateLimitError
		switch {
		case errors.As(err, &limited):
			ctx.Header("Retry-After", strconv.Itoa(int(math.Ceil(limited.Wait.Seconds()))))
			ctx.JSON(http.StatusTooManyRequests, model.ErrorResponse(http.StatusTooManyRequests, err.Error()))
		case errors.Is(err, service.ErrNoCrashReport):
			ctx.JSON(http.StatusNotFound, model.ErrorResponse(http.StatusNotFound, err.Error()))
		default:
			ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "无法读取崩溃报告"))
		}
		return
	}

	if download, _ := strconv.ParseBool(ctx.Query("download")); download {
		ctx.Header("Content-Disposition", "attachment; filename="+strconv.Quote(report.Name))
		ctx.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(report.Content))
		return
	}

	ctx.JSON(http.StatusOK, model.MessageResponse(
		"最新的崩溃报告生成于 "+report.CreatedAt.Format("2006-01-02 15:04:05"), report))
}

// Events 订阅新的崩溃报告(SSE)
// @Summary 订阅崩溃通知
// @Tags 崩溃报告
// @Security ApiKeyAuth
// @Success 200 {string} string "SSE数据流"
// @Router /api/v1/crash/events [get]
func (c *CrashController) Events(ctx *gin.Context) {
	c.Broker.ServeTopic(ctx, sse.TopicCrash)
}
