package middleware

import "github.com/labstack/echo/v4"

// OperatorKey is the context key carrying the operator identity stamped on
// orders for audit.
const OperatorKey = "operator_id"

// Operator resolves the acting operator from the X-Operator-Id header,
// falling back to the terminal's own identity for unattended calls.
func Operator(terminalID string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			operator := c.Request().Header.Get("X-Operator-Id")
			if operator == "" {
				operator = terminalID
			}
			c.Set(OperatorKey, operator)
			return next(c)
		}
	}
}
