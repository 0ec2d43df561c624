package multitoken

import (
	"errors"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/gofiber/fiber/v2/utils"
)

type ControllerRoutes struct {
	Login                string
	Logout               string
	PasswordReset        string
	PasswordResetConfirm string
	Sessions             string
}

// Controller exposes Flow over HTTP
type Controller struct {
	Debug  bool
	Logger Logger
	Flow   *Flow
	Auther KeyAuthenticator
	Routes *ControllerRoutes
}

type ControllerOption func(*Controller) *Controller

func WithControllerLogger(l Logger) ControllerOption {
	return func(c *Controller) *Controller {
		c.Logger = normalizeLogger(l)
		return c
	}
}

func WithControllerDebug(debug bool) ControllerOption {
	return func(c *Controller) *Controller {
		c.Debug = debug
		return c
	}
}

func WithControllerRoutes(routes *ControllerRoutes) ControllerOption {
	return func(c *Controller) *Controller {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

func NewController(flow *Flow, auther KeyAuthenticator, opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger: defaultLogger(),
		Flow:   flow,
		Auther: auther,
		Routes: &ControllerRoutes{
			Login:                "/login",
			Logout:               "/logout",
			PasswordReset:        "/password_reset",
			PasswordResetConfirm: "/password_reset/confirm",
			Sessions:             "/sessions",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Flow == nil {
		panic("Missing Flow in multitoken controller...")
	}

	if c.Auther == nil {
		panic("Missing KeyAuthenticator in multitoken controller...")
	}

	return c
}

// RegisterRoutes mounts the auth endpoints on router
func (a *Controller) RegisterRoutes(router fiber.Router) {
	protected := RequireToken(a.Auther, a.Flow.Config().GetAuthHeaderKeyword())

	router.Post(a.Routes.Login, a.Login).Name("multitoken.login")
	router.Post(a.Routes.Logout, protected, a.Logout).Name("multitoken.logout")
	router.Post(a.Routes.PasswordReset, a.PasswordResetRequest).Name("multitoken.password_reset")
	router.Post(a.Routes.PasswordResetConfirm, a.PasswordResetConfirm).Name("multitoken.password_reset.confirm")
	router.Get(a.Routes.Sessions, protected, a.ListSessions).Name("multitoken.sessions.list")
	router.Delete(a.Routes.Sessions+"/:id", protected, a.RevokeSession).Name("multitoken.sessions.revoke")
}

func (a *Controller) Login(c *fiber.Ctx) error {
	msg := LoginMessage{}
	if err := c.BodyParser(&msg); err != nil {
		return a.badRequest(c, err)
	}

	msg.Username = utils.CopyString(msg.Username)
	msg.Password = utils.CopyString(msg.Password)
	msg.TokenName = utils.CopyString(msg.TokenName)
	msg.UserAgent = userAgent(c)
	msg.Address = ClientAddress(c)

	token, err := a.Flow.Login(c.UserContext(), msg)
	if err != nil {
		return a.handleError(c, err)
	}

	return c.JSON(fiber.Map{"token": token.Key})
}

func (a *Controller) Logout(c *fiber.Ctx) error {
	session, ok := SessionFromContext(c)
	if !ok {
		return unauthorized(c, a.Flow.Config().GetAuthHeaderKeyword(), ErrNotAuthenticated)
	}

	if err := a.Flow.Logout(c.UserContext(), session.Token.Key, session.Identity.ID()); err != nil {
		return a.handleError(c, err)
	}

	return c.JSON(fiber.Map{"status": "logged out"})
}

func (a *Controller) PasswordResetRequest(c *fiber.Ctx) error {
	msg := RequestPasswordResetMessage{}
	if err := c.BodyParser(&msg); err != nil {
		return a.badRequest(c, err)
	}

	msg.Email = utils.CopyString(msg.Email)
	msg.UserAgent = userAgent(c)
	msg.Address = ClientAddress(c)

	if _, err := a.Flow.RequestPasswordReset(c.UserContext(), msg); err != nil {
		return a.handleError(c, err)
	}

	return c.JSON(fiber.Map{"status": "OK"})
}

func (a *Controller) PasswordResetConfirm(c *fiber.Ctx) error {
	msg := ConfirmPasswordResetMessage{}
	if err := c.BodyParser(&msg); err != nil {
		return a.badRequest(c, err)
	}

	msg.Token = utils.CopyString(msg.Token)
	msg.Password = utils.CopyString(msg.Password)

	if err := a.Flow.ConfirmPasswordReset(c.UserContext(), msg); err != nil {
		return a.handleError(c, err)
	}

	return c.JSON(fiber.Map{"status": "OK"})
}

func (a *Controller) ListSessions(c *fiber.Ctx) error {
	session, ok := SessionFromContext(c)
	if !ok {
		return unauthorized(c, a.Flow.Config().GetAuthHeaderKeyword(), ErrNotAuthenticated)
	}

	tokens, err := a.Flow.ListSessions(c.UserContext(), session.Identity.ID())
	if err != nil {
		return a.handleError(c, err)
	}

	out := make([]fiber.Map, 0, len(tokens))
	for _, token := range tokens {
		out = append(out, fiber.Map{
			"id":            token.ID,
			"name":          token.Name,
			"created_at":    token.CreatedAt,
			"last_known_ip": token.LastKnownIP,
			"user_agent":    token.UserAgent,
			"current":       token.ID == session.Token.ID,
		})
	}

	return c.JSON(fiber.Map{"sessions": out})
}

func (a *Controller) RevokeSession(c *fiber.Ctx) error {
	session, ok := SessionFromContext(c)
	if !ok {
		return unauthorized(c, a.Flow.Config().GetAuthHeaderKeyword(), ErrNotAuthenticated)
	}

	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": ErrTokenNotFound.Message})
	}

	if err := a.Flow.RevokeSession(c.UserContext(), id, session.Identity.ID()); err != nil {
		return a.handleError(c, err)
	}

	return c.JSON(fiber.Map{"status": "revoked"})
}

func (a *Controller) badRequest(c *fiber.Ctx, err error) error {
	a.Logger.Debug("malformed request body", "path", c.Path(), "error", err)
	return a.handleError(c, goerrors.Wrap(err, goerrors.CategoryBadInput, "Malformed request body.").
		WithTextCode(TextCodeMalformedBody).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{MetadataField: "non_field_errors"}))
}

// handleError maps categorized errors onto the response shapes of the
// endpoints. Uncategorized errors are treated as internal.
func (a *Controller) handleError(c *fiber.Ctx, err error) error {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return c.Status(fiber.StatusBadRequest).JSON(validationErrorMap(verrs))
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "unexpected failure").
			WithCode(goerrors.CodeInternal)
	}

	switch richErr.Category {
	case goerrors.CategoryInternal, goerrors.CategoryOperation:
		a.Logger.Error("request failed",
			"path", c.Path(),
			"category", richErr.Category,
			"text_code", richErr.TextCode,
			"error", err,
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	status := richErr.Code
	if status == 0 {
		status = fiber.StatusBadRequest
	}

	if status == fiber.StatusUnauthorized {
		return unauthorized(c, a.Flow.Config().GetAuthHeaderKeyword(), err)
	}

	if v, ok := richErr.Metadata[MetadataStatus].(string); ok {
		return c.Status(status).JSON(fiber.Map{"status": v})
	}

	if field, ok := richErr.Metadata[MetadataField].(string); ok {
		return c.Status(status).JSON(fiber.Map{field: []string{richErr.Message}})
	}

	return c.Status(status).JSON(fiber.Map{"error": richErr.Message})
}

func validationErrorMap(verrs validation.Errors) map[string][]string {
	out := make(map[string][]string, len(verrs))
	for field, err := range verrs {
		if err == nil {
			continue
		}
		out[field] = []string{err.Error()}
	}
	return out
}
