package server

import (
	"bufio"
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/jewelry-concierge/server/internal/agent/model"
	"github.com/jewelry-concierge/server/internal/agent/retrieval"
	errx "github.com/jewelry-concierge/server/internal/core/error"
	logx "github.com/jewelry-concierge/server/pkg/logger"
)

func (s *Server) parseRequest(c *fiber.Ctx) (model.Request, error) {
	userID := c.Params("user_id")
	if err := validateUserID(userID); err != nil {
		return model.Request{}, err
	}
	var body OrchestratorRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return model.Request{}, errx.Wrap(errx.ErrInvalidInput, err, http.StatusBadRequest, "malformed request body")
		}
	}
	if err := validateRequest(body); err != nil {
		return model.Request{}, err
	}
	return body.toModel(userID), nil
}

// orchestrate runs one batch workflow. Run failures are reported in the
// response body with status "error".
func (s *Server) orchestrate(c *fiber.Ctx) error {
	req, err := s.parseRequest(c)
	if err != nil {
		return err
	}
	return c.JSON(s.runner.Run(c.UserContext(), req))
}

// stream writes every event as one SSE data frame. The run is cancelled
// when the client goes away.
func (s *Server) stream(c *fiber.Ctx) error {
	req, err := s.parseRequest(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.UserContext()))
	events := s.runner.Stream(ctx, req)
	encode := s.app.Config().JSONEncoder

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		for ev := range events {
			if err := writeEvent(w, encode, ev); err != nil {
				logx.Warn().Err(err).Str("user_id", req.UserID).Msg("stream client disconnected")
				return
			}
		}
	})
	return nil
}

func writeEvent(w *bufio.Writer, encode func(any) ([]byte, error), ev model.Event) error {
	b, err := encode(ev)
	if err != nil {
		return err
	}
	if _, err := w.WriteString("data: "); err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	if _, err := w.WriteString("\n\n"); err != nil {
		return err
	}
	return w.Flush()
}

func (s *Server) searchProducts(c *fiber.Ctx) error {
	if s.retriever == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "product search is not configured")
	}
	var body SearchRequest
	if err := c.BodyParser(&body); err != nil {
		return errx.Wrap(errx.ErrInvalidInput, err, http.StatusBadRequest, "malformed request body")
	}
	if err := validateRequest(body); err != nil {
		return err
	}

	found := s.retriever.Retrieve(c.UserContext(), retrieval.Query{
		Text:           body.Query,
		Preferences:    body.Preferences,
		Limit:          body.Limit,
		IncludeContext: body.IncludeContext,
	})
	if found.Items == nil {
		found.Items = []model.CandidateItem{}
	}
	return c.JSON(found)
}
