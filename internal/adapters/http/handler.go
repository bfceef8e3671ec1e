package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/melih/tunnelwatch/internal/core/domain"
	"github.com/melih/tunnelwatch/internal/core/ports"
	"github.com/melih/tunnelwatch/internal/core/service"
	"github.com/melih/tunnelwatch/internal/log"
)

// TunnelHandler serves fleet status and lifecycle requests.
type TunnelHandler struct {
	status    ports.StatusService
	lifecycle ports.TunnelLifecycle
	version   string
	logger    zerolog.Logger
}

func NewTunnelHandler(status ports.StatusService, lifecycle ports.TunnelLifecycle, version string) *TunnelHandler {
	return &TunnelHandler{
		status:    status,
		lifecycle: lifecycle,
		version:   version,
		logger:    log.WithComponent("http"),
	}
}

func (h *TunnelHandler) Info(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Tunnel status API",
		"version": h.version,
	})
}

// GetStatus returns full records for all tunnels, or for the ids given in
// tunnel_ids (repeated or comma separated).
func (h *TunnelHandler) GetStatus(c *fiber.Ctx) error {
	ids, err := queryTunnelIDs(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	records, err := h.status.GetStatus(c.UserContext(), ids)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(service.Summarize(records))
}

func (h *TunnelHandler) GetHealth(c *fiber.Ctx) error {
	ids, err := queryTunnelIDs(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	return h.health(c, ids)
}

type HealthRequest struct {
	TunnelID json.RawMessage `json:"tunnel_id"` // number, list of numbers, or absent
}

func (h *TunnelHandler) PostHealth(c *fiber.Ctx) error {
	var req HealthRequest
	if body := c.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}
	ids, err := bodyTunnelIDs(req.TunnelID)
	if err != nil {
		return badRequest(c, err.Error())
	}
	return h.health(c, ids)
}

func (h *TunnelHandler) health(c *fiber.Ctx, ids []domain.TunnelID) error {
	records, err := h.status.GetHealth(c.UserContext(), ids)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(service.SummarizeHealth(records))
}

type StartRequest struct {
	TunnelID      target `json:"tunnel_id"` // "3" or "0-4"; defaults to "0"
	Build         bool   `json:"build"`
	UpdateConfigs bool   `json:"update_configs"`
}

func (h *TunnelHandler) Start(c *fiber.Ctx) error {
	req := StartRequest{TunnelID: "0"}
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	res, err := h.lifecycle.Start(c.UserContext(), string(req.TunnelID), req.Build, req.UpdateConfigs)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"status":    "success",
		"tunnel_id": req.TunnelID,
		"output":    res.Stdout,
	})
}

type StopRequest struct {
	TunnelID target `json:"tunnel_id"` // id or "all"
}

func (h *TunnelHandler) Stop(c *fiber.Ctx) error {
	var req StopRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.TunnelID == "" {
		return badRequest(c, "tunnel_id is required")
	}
	res, err := h.lifecycle.Stop(c.UserContext(), string(req.TunnelID))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"status":    "success",
		"tunnel_id": req.TunnelID,
		"output":    res.Stdout,
	})
}

type ReplaceRequest struct {
	StopTunnel  *int `json:"stop_tunnel"`
	StartTunnel *int `json:"start_tunnel"`
}

func (h *TunnelHandler) Replace(c *fiber.Ctx) error {
	var req ReplaceRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.StopTunnel == nil || req.StartTunnel == nil {
		return badRequest(c, "stop_tunnel and start_tunnel are required")
	}
	if *req.StopTunnel < 0 || *req.StartTunnel < 0 {
		return badRequest(c, "tunnel ids must be non-negative")
	}

	res, err := h.lifecycle.Replace(c.UserContext(), domain.TunnelID(*req.StopTunnel), domain.TunnelID(*req.StartTunnel))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"status":         "success",
		"stopped_tunnel": *req.StopTunnel,
		"started_tunnel": *req.StartTunnel,
		"stop_output":    res.Stop.Stdout,
		"start_output":   res.Start.Stdout,
	})
}

// fail maps service errors to responses.
func (h *TunnelHandler) fail(c *fiber.Ctx, err error) error {
	if errors.Is(err, domain.ErrInvalidTarget) {
		return badRequest(c, err.Error())
	}

	var cmdErr *domain.CommandError
	if errors.As(err, &cmdErr) {
		h.logger.Warn().Err(err).Str("op", cmdErr.Op).Msg("lifecycle command failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":     err.Error(),
			"exit_code": cmdErr.ExitCode,
			"stdout":    cmdErr.Stdout,
			"stderr":    cmdErr.Stderr,
		})
	}

	h.logger.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}

func parseBody(c *fiber.Ctx, v any) error {
	body := c.Body()
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}

// target accepts a lifecycle target given as a JSON string or number.
type target string

func (t *target) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = target(strings.TrimSpace(s))
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("tunnel_id must be a string or number")
	}
	*t = target(strconv.Itoa(n))
	return nil
}

func queryTunnelIDs(c *fiber.Ctx) ([]domain.TunnelID, error) {
	var ids []domain.TunnelID
	for _, raw := range c.Context().QueryArgs().PeekMulti("tunnel_ids") {
		for _, part := range strings.Split(string(raw), ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := parseTunnelID(part)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func bodyTunnelIDs(raw json.RawMessage) ([]domain.TunnelID, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var one int
	if err := json.Unmarshal(raw, &one); err == nil {
		if one < 0 {
			return nil, fmt.Errorf("invalid tunnel id %d", one)
		}
		return []domain.TunnelID{domain.TunnelID(one)}, nil
	}
	var many []int
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, errors.New("tunnel_id must be a number or a list of numbers")
	}
	ids := make([]domain.TunnelID, 0, len(many))
	for _, n := range many {
		if n < 0 {
			return nil, fmt.Errorf("invalid tunnel id %d", n)
		}
		ids = append(ids, domain.TunnelID(n))
	}
	return ids, nil
}

func parseTunnelID(s string) (domain.TunnelID, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid tunnel id %q", s)
	}
	return domain.TunnelID(n), nil
}
