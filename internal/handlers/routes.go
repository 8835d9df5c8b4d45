package handlers

import (
	"github.com/labstack/echo/v4"
)

// Set はサーバーが公開するハンドラー一式
type Set struct {
	Home      *HomeHandler
	Generator *GeneratorHandler
	Jobs      *JobHandler
	Batches   *BatchHandler
}

// Register はページとAPIのルートを登録
func Register(e *echo.Echo, s Set) {
	// ページ
	e.GET("/", s.Home.Home)
	e.GET("/generator", s.Generator.Page)
	e.GET("/upload", s.Batches.UploadPage)
	e.GET("/jobs", s.Jobs.ListPage)
	e.GET("/about", About)
	e.GET("/health", Health)

	api := e.Group("/api")

	// 単一生成
	api.POST("/generator", s.Generator.Submit)
	api.GET("/generator", s.Generator.Get)
	api.POST("/generator/resume", s.Generator.Resume)
	api.DELETE("/generator/session", s.Generator.Cancel)

	// ジョブ履歴
	api.GET("/jobs", s.Jobs.List)
	api.GET("/jobs/stats", s.Jobs.Stats)
	api.GET("/jobs/:id", s.Jobs.Get)
	api.DELETE("/jobs/:id", s.Jobs.Delete)
	api.GET("/jobs/:id/export", s.Jobs.Export)

	// 一括アップロード
	api.POST("/batches", s.Batches.Upload)
	api.GET("/batches", s.Batches.List)
	api.GET("/batches/:id", s.Batches.Get)
}
