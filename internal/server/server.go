// Package server hosts the application shell behind a Fiber app,
// bridging incoming requests to the cache manager.
package server

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/phyarch/shellcache"
	"github.com/phyarch/shellcache/mechanics"
	"github.com/phyarch/shellcache/store"
)

// Options wires the Fiber application to the cache manager.
type Options struct {
	Logger     *logrus.Logger
	Manager    shellcache.Manager
	Store      store.Store
	ListenPort int
}

const contextKeyRequestID = "_shellcache_request_id"

// New builds the Fiber application: a request-ID middleware, diagnostics
// routes under /-/, and a catch-all that resolves everything else through
// the cache manager.
func New(opts Options) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Manager == nil {
		return nil, errors.New("cache manager is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	registerDiagnostics(app, opts)

	app.All("/*", func(c fiber.Ctx) error {
		if isDiagnosticsPath(string(c.Request().URI().Path())) {
			return c.Next()
		}
		return serveThroughCache(c, opts)
	})

	return app, nil
}

func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// serveThroughCache maps the Fiber request onto the manager's model and
// writes back whatever the manager resolved. GET requests never fail here;
// mutating methods surface upstream transport errors as 502.
func serveThroughCache(c fiber.Ctx, opts Options) error {
	req := shellcache.Request{
		Method:   c.Method(),
		Path:     string(c.Request().URI().Path()),
		Navigate: isNavigation(c),
	}

	resp, err := opts.Manager.Handle(c.Context(), req)
	if err != nil {
		opts.Logger.WithFields(logrus.Fields{
			"action":     "upstream_passthrough",
			"method":     req.Method,
			"path":       req.Path,
			"request_id": RequestID(c),
		}).Warn(err.Error())
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "upstream_unreachable",
		})
	}

	for k, v := range resp.Header {
		c.Set(k, v)
	}
	return c.Status(resp.Status).Send(resp.Body)
}

// isNavigation classifies top-level page loads. Browsers tag these with
// Sec-Fetch-Mode: navigate; older clients are matched on the Accept header.
func isNavigation(c fiber.Ctx) bool {
	if mode := string(c.Request().Header.Peek("Sec-Fetch-Mode")); mode != "" {
		return mode == "navigate"
	}
	accept := string(c.Request().Header.Peek(fiber.HeaderAccept))
	return strings.Contains(accept, "text/html")
}

func registerDiagnostics(app *fiber.App, opts Options) {
	app.Get("/-/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":     "ok",
			"generation": opts.Manager.Generation(),
		})
	})

	app.Get("/-/generations", func(c fiber.Ctx) error {
		if opts.Store == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "store_not_exposed",
			})
		}
		gens, err := opts.Store.Generations(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "store_list_failed",
			})
		}
		return c.JSON(fiber.Map{
			"current":     opts.Manager.Generation(),
			"generations": gens,
		})
	})

	// Diagnostics mirror of the shell's solver endpoints so operators can
	// sanity-check results without a browser.
	app.Get("/-/mechanics/stress", func(c fiber.Ctx) error {
		force, err1 := queryFloat(c, "force")
		area, err2 := queryFloat(c, "area")
		if err1 != nil || err2 != nil {
			return badQuery(c)
		}
		return c.JSON(fiber.Map{
			"stress_pa": mechanics.Stress(force, area),
		})
	})

	app.Get("/-/mechanics/displacement", func(c fiber.Ctx) error {
		force, err1 := queryFloat(c, "force")
		length, err2 := queryFloat(c, "length")
		area, err3 := queryFloat(c, "area")
		modulus, err4 := queryFloat(c, "modulus")
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			return badQuery(c)
		}
		return c.JSON(fiber.Map{
			"displacement_m": mechanics.Displacement(force, length, area, modulus),
		})
	})
}

func queryFloat(c fiber.Ctx, key string) (float64, error) {
	raw := string(c.Request().URI().QueryArgs().Peek(key))
	if raw == "" {
		return 0, fmt.Errorf("missing query parameter %q", key)
	}
	return strconv.ParseFloat(raw, 64)
}

func badQuery(c fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "bad_query",
	})
}

// RequestID returns the identifier stored by the request-ID middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func isDiagnosticsPath(path string) bool {
	return strings.HasPrefix(path, "/-/")
}
