// Package api is the relay between the presentation layer and the draw
// engine: it translates HTTP intents (start, stop, reset, configure, roster
// edits) into engine calls and renders the engine's read models back. It
// holds no state of its own beyond the rolling-feed connections.
package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/minqi/luckydraw/internal/domain"
	"github.com/minqi/luckydraw/internal/draw"
	"github.com/minqi/luckydraw/internal/errors"
	"github.com/minqi/luckydraw/internal/event"
)

// Import payloads can be user-picked files; anything bigger than this is
// rejected before parsing.
const maxImportSize = 8 << 20

type Config struct {
	Engine   *draw.Engine
	EventBus *event.Bus
}

type API struct {
	engine *draw.Engine
	hub    *rollingHub
}

func New(c Config) *API {
	a := &API{
		engine: c.Engine,
		hub:    newRollingHub(c.Engine),
	}

	if c.EventBus != nil {
		c.EventBus.Subscribe(domain.EventNameDrawCompleted, a.hub.onDrawCompleted)
	}

	return a
}

// Register mounts all routes on the given engine.
func (a *API) Register(e *gin.Engine) {
	e.Use(requestID())

	p := e.Group("/api/participants")
	p.GET("", a.listParticipants)
	p.POST("", a.addParticipant)
	p.DELETE("/:id", a.removeParticipant)
	p.POST("/:id/toggle-exclude", a.toggleExclude)
	p.POST("/restore-all", a.restoreAll)
	p.POST("/clear", a.clearParticipants)
	p.POST("/import", a.importParticipants)
	p.GET("/export", a.exportParticipants)

	cfg := e.Group("/api/config")
	cfg.GET("", a.getConfig)
	cfg.PUT("", a.updateConfig)
	cfg.POST("/reset", a.resetConfig)
	cfg.POST("/rounds", a.addRound)
	cfg.PUT("/rounds/:id", a.updateRound)
	cfg.DELETE("/rounds/:id", a.removeRound)

	d := e.Group("/api/draw")
	d.GET("/state", a.drawState)
	d.POST("/start", a.startDraw)
	d.POST("/stop", a.stopDraw)
	d.POST("/reset", a.resetDraw)
	d.POST("/next-round", a.nextRound)

	h := e.Group("/api/history")
	h.GET("", a.listHistory)
	h.POST("/clear", a.clearHistory)
	h.GET("/export", a.exportHistory)

	e.GET("/ws/rolling", a.rollingFeed)
}

// requestID tags each request with a uuid for log correlation.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Next()

		if len(c.Errors) > 0 {
			slog.ErrorContext(c.Request.Context(), "api: request failed",
				"request_id", id,
				"path", c.FullPath(),
				"errors", c.Errors.String(),
			)
		}
	}
}

func renderError(c *gin.Context, err error) {
	e := errors.Convert(err)
	_ = c.Error(err)
	c.JSON(e.HTTPStatusCode(), gin.H{"code": e.Code, "message": e.Message})
}

// --- roster ---

func (a *API) listParticipants(c *gin.Context) {
	total, active, excluded := a.engine.RosterCounts()
	c.JSON(http.StatusOK, gin.H{
		"participants": a.engine.Participants(c.Query("q")),
		"total":        total,
		"active":       active,
		"excluded":     excluded,
	})
}

func (a *API) addParticipant(c *gin.Context) {
	var req struct {
		Name   string `json:"name"`
		Weight int    `json:"weight"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	p, ok := a.engine.AddParticipant(c.Request.Context(), req.Name, req.Weight)
	if !ok {
		// Empty names are coerced to a no-op rather than an error.
		c.JSON(http.StatusOK, gin.H{"added": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": true, "participant": p})
}

func (a *API) removeParticipant(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("bad participant id %q", c.Param("id"))))
		return
	}
	a.engine.RemoveParticipant(c.Request.Context(), id)
	c.Status(http.StatusNoContent)
}

func (a *API) toggleExclude(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("bad participant id %q", c.Param("id"))))
		return
	}
	a.engine.ToggleExclude(c.Request.Context(), id)
	c.Status(http.StatusNoContent)
}

func (a *API) restoreAll(c *gin.Context) {
	a.engine.RestoreAll(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (a *API) clearParticipants(c *gin.Context) {
	a.engine.ClearParticipants(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (a *API) importParticipants(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportSize))
	if err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	rep, err := a.engine.ImportParticipants(c.Request.Context(), body)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (a *API) exportParticipants(c *gin.Context) {
	b, name, err := a.engine.ExportParticipants()
	if err != nil {
		renderError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", name))
	c.Data(http.StatusOK, "application/json", b)
}

// --- configuration ---

func (a *API) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, a.engine.Config())
}

// updateConfig applies a partial configuration edit. Pointer fields
// distinguish "absent" from zero values.
func (a *API) updateConfig(c *gin.Context) {
	var req struct {
		Mode                  *domain.Mode   `json:"mode"`
		AutoExclude           *bool          `json:"autoExclude"`
		SoundEnabled          *bool          `json:"soundEnabled"`
		HideNamesWhileRolling *bool          `json:"hideNamesWhileRolling"`
		ParticleEffects       *bool          `json:"particleEffects"`
		PrizeName             *string        `json:"prizeName"`
		ClassicCount          *int           `json:"classicCount"`
		ClassicMethod         *domain.Method `json:"classicMethod"`
		BatchSize             *int           `json:"batchSize"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	ctx := c.Request.Context()
	if req.Mode != nil {
		if err := a.engine.SetMode(ctx, *req.Mode); err != nil {
			renderError(c, err)
			return
		}
	}
	if req.AutoExclude != nil {
		a.engine.SetAutoExclude(ctx, *req.AutoExclude)
	}
	if req.SoundEnabled != nil {
		a.engine.SetSoundEnabled(ctx, *req.SoundEnabled)
	}
	if req.HideNamesWhileRolling != nil {
		a.engine.SetHideNamesWhileRolling(ctx, *req.HideNamesWhileRolling)
	}
	if req.ParticleEffects != nil {
		a.engine.SetParticleEffects(ctx, *req.ParticleEffects)
	}
	if req.PrizeName != nil {
		a.engine.SetPrizeName(ctx, *req.PrizeName)
	}
	if req.ClassicCount != nil {
		a.engine.SetClassicCount(ctx, *req.ClassicCount)
	}
	if req.ClassicMethod != nil {
		if err := a.engine.SetClassicMethod(ctx, *req.ClassicMethod); err != nil {
			renderError(c, err)
			return
		}
	}
	if req.BatchSize != nil {
		a.engine.SetBatchSize(ctx, *req.BatchSize)
	}

	c.JSON(http.StatusOK, a.engine.Config())
}

func (a *API) resetConfig(c *gin.Context) {
	a.engine.ResetConfig(c.Request.Context())
	c.JSON(http.StatusOK, a.engine.Config())
}

func (a *API) addRound(c *gin.Context) {
	r := a.engine.AddRound(c.Request.Context())
	c.JSON(http.StatusOK, r)
}

func (a *API) updateRound(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("bad round id %q", c.Param("id"))))
		return
	}

	var req struct {
		Count *int    `json:"count"`
		Name  *string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	ctx := c.Request.Context()
	if req.Count != nil {
		if err := a.engine.SetRoundCount(ctx, id, *req.Count); err != nil {
			renderError(c, err)
			return
		}
	}
	if req.Name != nil {
		if err := a.engine.SetRoundName(ctx, id, *req.Name); err != nil {
			renderError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, a.engine.Config())
}

func (a *API) removeRound(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("bad round id %q", c.Param("id"))))
		return
	}
	if err := a.engine.RemoveRound(c.Request.Context(), id); err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, a.engine.Config())
}

// --- draw ---

func (a *API) drawState(c *gin.Context) {
	c.JSON(http.StatusOK, a.engine.State())
}

func (a *API) startDraw(c *gin.Context) {
	a.engine.Start()
	c.JSON(http.StatusOK, a.engine.State())
}

func (a *API) stopDraw(c *gin.Context) {
	st := a.engine.Stop(c.Request.Context())
	c.JSON(http.StatusOK, st)
}

func (a *API) resetDraw(c *gin.Context) {
	a.engine.Reset()
	c.JSON(http.StatusOK, a.engine.State())
}

func (a *API) nextRound(c *gin.Context) {
	if err := a.engine.NextRound(); err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, a.engine.State())
}

// --- history ---

func (a *API) listHistory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"records": a.engine.History()})
}

func (a *API) clearHistory(c *gin.Context) {
	a.engine.ClearHistory(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (a *API) exportHistory(c *gin.Context) {
	b, name, err := a.engine.ExportHistory()
	if err != nil {
		renderError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", name))
	c.Data(http.StatusOK, "application/json", b)
}
