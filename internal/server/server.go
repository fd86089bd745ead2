package server

import (
	"context"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"satellite-pos/internal/handler"
	"satellite-pos/internal/middleware"
	"satellite-pos/internal/service"
)

type Server struct {
	echo        *echo.Echo
	posHandler  *handler.PosHandler
	syncHandler *handler.SyncHandler
}

func NewServer(
	terminalID string,
	orderService service.OrderService,
	customerService service.CustomerService,
	syncService service.SyncService,
) *Server {
	e := echo.New()

	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(middleware.Operator(terminalID))

	s := &Server{
		echo:        e,
		posHandler:  handler.NewPosHandler(orderService, customerService),
		syncHandler: handler.NewSyncHandler(syncService),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	api.POST("/customers", s.posHandler.RegisterCustomer)
	api.GET("/customers/:phone", s.posHandler.GetCustomer)
	api.POST("/customers/:phone/multiplier", s.posHandler.SetMultiplier)

	api.POST("/orders", s.posHandler.CreateOrder)
	api.GET("/orders/:orderID", s.posHandler.GetOrder)
	api.POST("/orders/:orderID/approve", s.posHandler.ApproveOrder)
	api.POST("/orders/:orderID/reject", s.posHandler.RejectOrder)
	api.POST("/orders/:orderID/deliver", s.posHandler.DeliverOrder)

	// -------- operator-triggered sync --------
	sync := api.Group("/sync")
	sync.POST("", s.syncHandler.SyncShift)
	sync.GET("/export", s.syncHandler.ExportShift)
	sync.POST("/import", s.syncHandler.ImportBundle)
	sync.POST("/refresh", s.syncHandler.RefreshWorkingCopy)

	api.POST("/maintenance/purge", s.syncHandler.Purge)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
