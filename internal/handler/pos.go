package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"satellite-pos/internal/codec"
	"satellite-pos/internal/dto"
	"satellite-pos/internal/middleware"
	"satellite-pos/internal/reconcile"
	"satellite-pos/internal/service"
)

type PosHandler struct {
	orderService    service.OrderService
	customerService service.CustomerService
}

func NewPosHandler(orderService service.OrderService, customerService service.CustomerService) *PosHandler {
	return &PosHandler{
		orderService:    orderService,
		customerService: customerService,
	}
}

func (h *PosHandler) RegisterCustomer(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.RegisterCustomerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	customer, err := h.customerService.Register(ctx, &req)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, customer)
}

func (h *PosHandler) GetCustomer(c echo.Context) error {
	ctx := c.Request().Context()

	customer, err := h.customerService.GetByPhone(ctx, c.Param("phone"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, customer)
}

func (h *PosHandler) SetMultiplier(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.MultiplierRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.customerService.SetNextPurchaseMultiplier(ctx, c.Param("phone"), req.Multiplier); err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *PosHandler) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	operator, _ := c.Get(middleware.OperatorKey).(string)

	order, err := h.orderService.Create(ctx, &req, operator)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, order)
}

func (h *PosHandler) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()

	order, err := h.orderService.Get(ctx, c.Param("orderID"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, order)
}

func (h *PosHandler) ApproveOrder(c echo.Context) error {
	return h.transition(c, h.orderService.Approve)
}

func (h *PosHandler) RejectOrder(c echo.Context) error {
	return h.transition(c, h.orderService.Reject)
}

func (h *PosHandler) DeliverOrder(c echo.Context) error {
	return h.transition(c, h.orderService.MarkDelivered)
}

func (h *PosHandler) transition(c echo.Context, op func(ctx context.Context, orderID string) error) error {
	ctx := c.Request().Context()

	if err := op(ctx, c.Param("orderID")); err != nil {
		return httpError(err)
	}

	order, err := h.orderService.Get(ctx, c.Param("orderID"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, order)
}

// httpError maps the service error taxonomy onto status codes. Every
// operation surfaces either a full result or one explicit failure.
func httpError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, codec.ErrMalformedBundle):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAlreadyProcessed),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrCustomerExists),
		errors.Is(err, reconcile.ErrWalletOverdraw):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInsufficientBalance),
		errors.Is(err, service.ErrUnknownReferral):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "remote store unreachable, shift buffer preserved")
	default:
		return err
	}
}
