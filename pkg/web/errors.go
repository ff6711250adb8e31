package web

import (
	"github.com/flowdocs/flowdocs/pkg/storage"
	"github.com/flowdocs/flowdocs/pkg/store"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func unauthorized(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(401).
		WithInstance(c.Path()).
		WithType("unauthorized").
		WithDetail(detail)

	return c.Status(fiber.StatusUnauthorized).JSON(problem)
}

func forbidden(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(403).
		WithInstance(c.Path()).
		WithType("forbidden").
		WithDetail(detail)

	return c.Status(fiber.StatusForbidden).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func tooManyRequests(c fiber.Ctx) error {
	problem := problems.NewStatusProblem(429).
		WithInstance(c.Path()).
		WithType("throttled").
		WithDetail("Rate limit exceeded. Please try again later.")

	return c.Status(fiber.StatusTooManyRequests).JSON(problem)
}

func serviceUnavailable(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(503).
		WithInstance(c.Path()).
		WithType("service_unavailable").
		WithDetail(detail)

	return c.Status(fiber.StatusServiceUnavailable).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleLookupError maps store and storage errors to problem responses.
func handleLookupError(c fiber.Ctx, err error) error {
	switch {
	case store.IsWorkflowNotFound(err):
		return notFound(c, "Workflow not found")
	case storage.IsNotFound(err):
		return notFound(c, "Workflow file not found")
	case storage.IsForbidden(err):
		return forbidden(c, "Access denied")
	default:
		return internalError(c, err)
	}
}
