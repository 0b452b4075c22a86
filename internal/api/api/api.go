package api

import (
	"github.com/gin-contrib/cors"
	"github.com/wb-go/wbf/ginext"

	"github.com/NegroPrimo123/Students-Bot/cmd/middleware"
	"github.com/NegroPrimo123/Students-Bot/internal/service"
)

type Routers struct {
	Service    service.Service
	AdminToken string
}

func NewRouters(r *Routers) *ginext.Engine {
	app := ginext.New("release")

	app.Use(middleware.LoggingMiddleware())
	app.Use(cors.Default())

	apiGroup := app.Group("/v1")
	apiGroup.Use(middleware.AdminToken(r.AdminToken))

	apiGroup.POST("/events", r.Service.CreateEvent)
	apiGroup.GET("/events", r.Service.GetActiveEvents)
	apiGroup.GET("/events/all", r.Service.GetAllEvents)
	apiGroup.GET("/events/archived", r.Service.GetArchivedEvents)
	apiGroup.GET("/events/course/:course", r.Service.GetEventsByCourse)
	apiGroup.GET("/events/:id", r.Service.GetEvent)
	apiGroup.PATCH("/events/:id", r.Service.UpdateEvent)
	apiGroup.POST("/events/:id/archive", r.Service.ArchiveEvent)
	apiGroup.POST("/events/:id/restore", r.Service.RestoreEvent)
	apiGroup.DELETE("/events/:id", r.Service.DeleteEvent)
	apiGroup.GET("/events/:id/statistics", r.Service.GetEventStatistics)

	apiGroup.GET("/participations/pending", r.Service.GetPendingParticipations)
	apiGroup.PATCH("/participations/:id/status", r.Service.SetParticipationStatus)
	apiGroup.GET("/participations/:id/certificate", r.Service.DownloadCertificate)

	apiGroup.GET("/students", r.Service.GetStudents)
	apiGroup.GET("/students/low-rating", r.Service.GetLowRatingStudents)
	apiGroup.GET("/students/:id", r.Service.GetStudent)
	apiGroup.GET("/students/:id/statistics", r.Service.GetStudentStatistics)

	apiGroup.GET("/statistics", r.Service.GetAdminStatistics)
	apiGroup.POST("/penalties/run", r.Service.RunPenaltySweep)

	return app
}
