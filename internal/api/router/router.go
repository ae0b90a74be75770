package router

import (
	"context"
	"errors"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"cv-agent-go/internal/api/handler"
	"cv-agent-go/internal/config"
)

// NewServer 创建带链路追踪的HTTP服务器并挂载全部路由
func NewServer(cfg *config.Config, analysisHandler *handler.AnalysisHandler) *server.Hertz {
	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.Default(
		tracer,
		server.WithHostPorts(cfg.Server.Address),
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))

	RegisterRoutes(h, cfg, analysisHandler)
	return h
}

// RegisterRoutes 注册API路由
// 配置了Server.APIKey时分析接口组启用X-API-Key校验，健康检查始终开放
func RegisterRoutes(h *server.Hertz, cfg *config.Config, analysisHandler *handler.AnalysisHandler) {
	h.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})

	api := h.Group("/api/v1")
	if cfg.Server.APIKey != "" {
		api.Use(keyauth.New(
			keyauth.WithKeyLookUp("header:X-API-Key", ""),
			keyauth.WithValidator(func(c context.Context, ctx *app.RequestContext, key string) (bool, error) {
				return key == cfg.Server.APIKey, nil
			}),
		))
	}

	api.POST("/cv/upload", uploadRoute(analysisHandler))
	api.GET("/cv/status/:analysis_id", statusRoute(analysisHandler))
	api.GET("/cv/result/:analysis_id", resultRoute(analysisHandler))
}

func uploadRoute(analysisHandler *handler.AnalysisHandler) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		req := &handler.UploadRequest{
			CandidateName:  ctx.PostForm("candidate_name"),
			CandidateEmail: ctx.PostForm("candidate_email"),
			RoleTitle:      ctx.PostForm("role_title"),
			RoleLevel:      ctx.PostForm("role_level"),
			SourceURL:      ctx.PostForm("source_url"),
		}

		fileHeader, err := ctx.FormFile("file")
		if err != nil && req.SourceURL == "" {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "文件未找到，且未提供source_url"})
			return
		}

		var resp *handler.UploadResponse
		if fileHeader != nil {
			file, openErr := fileHeader.Open()
			if openErr != nil {
				ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "打开文件失败"})
				return
			}
			defer file.Close()

			req.Filename = fileHeader.Filename
			req.FileSize = fileHeader.Size
			resp, err = analysisHandler.HandleUpload(c, file, req)
		} else {
			resp, err = analysisHandler.HandleUpload(c, nil, req)
		}

		if err != nil {
			status := consts.StatusInternalServerError
			if errors.Is(err, handler.ErrUnsupportedFileType) {
				status = consts.StatusBadRequest
			}
			ctx.JSON(status, utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusAccepted, resp)
	}
}

func statusRoute(analysisHandler *handler.AnalysisHandler) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		analysisID := ctx.Param("analysis_id")
		resp, err := analysisHandler.HandleStatus(c, analysisID)
		if err != nil {
			ctx.JSON(consts.StatusNotFound, utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	}
}

func resultRoute(analysisHandler *handler.AnalysisHandler) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		analysisID := ctx.Param("analysis_id")
		resp, err := analysisHandler.HandleResult(c, analysisID)
		if err != nil {
			ctx.JSON(consts.StatusNotFound, utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	}
}
