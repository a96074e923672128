package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pinokio-social/pinokio/credibility/engine"
	"github.com/pinokio-social/pinokio/models"

	"github.com/labstack/echo/v4"
)

type GenericError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type PostResponse struct {
	Message string       `json:"message"`
	Post    *models.Post `json:"post"`
}

type ValidationErrors struct {
	Errors map[string][]string `json:"errors"`
}

func (srv *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var verr *engine.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusUnprocessableEntity, ValidationErrors{Errors: verr.Fields})
		return
	}
	if errors.Is(err, engine.ErrNotFound) {
		c.JSON(http.StatusNotFound, GenericError{Error: "NotFound", Message: err.Error()})
		return
	}

	code := http.StatusInternalServerError
	errorName := "InternalError"
	errorMessage := "internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		errorName = http.StatusText(code)
		errorMessage = fmt.Sprintf("%s", he.Message)
	}
	if code >= 500 {
		srv.logger.Warn("pinokio-http-internal-error", "err", err)
	}
	c.JSON(code, GenericError{Error: errorName, Message: errorMessage})
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(200, GenericStatus{Status: "ok", Daemon: "pinokio"})
}

func parsePostID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid post id")
	}
	return uint(id), nil
}

func (srv *Server) HandleCreatePost(c echo.Context) error {
	ctx := c.Request().Context()

	var in engine.CreatePostInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	res, err := srv.engine.CreatePost(ctx, in)
	if err != nil {
		return err
	}

	switch res.Outcome {
	case engine.OutcomeExisting:
		return c.JSON(200, PostResponse{Message: "Post already exists", Post: res.Post})
	case engine.OutcomeElevated:
		return c.JSON(201, PostResponse{Message: "Post created and marked for manual review due to active review bombing.", Post: res.Post})
	case engine.OutcomeNewlyElevated:
		return c.JSON(201, PostResponse{Message: "Post created and marked for manual review due to newly detected review bombing.", Post: res.Post})
	default:
		return c.JSON(201, PostResponse{Message: "Post created successfully", Post: res.Post})
	}
}

func (srv *Server) HandleGetPost(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parsePostID(c)
	if err != nil {
		return err
	}
	view, err := srv.engine.GetPost(ctx, id)
	if errors.Is(err, engine.ErrNotFound) {
		// the browser extension reads status from this body
		return c.JSON(404, map[string]string{
			"status":  string(models.VerdictUnknown),
			"message": "Post not found",
		})
	} else if err != nil {
		return err
	}
	return c.JSON(200, view)
}

func (srv *Server) HandleReevaluatePost(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parsePostID(c)
	if err != nil {
		return err
	}
	post, err := srv.engine.ReevaluatePost(ctx, id)
	if errors.Is(err, engine.ErrNotFound) {
		return c.JSON(404, GenericError{Error: "NotFound", Message: "Post not found"})
	} else if err != nil {
		return err
	}
	return c.JSON(200, PostResponse{Message: "Post re-evaluated successfully", Post: post})
}

func (srv *Server) HandlePostStatus(c echo.Context) error {
	ctx := c.Request().Context()

	sv, err := srv.engine.PostStatus(ctx, c.Param("externalID"))
	if errors.Is(err, engine.ErrNotFound) {
		return c.JSON(404, engine.StatusView{Status: models.VerdictUnknown, Warnings: []string{}})
	} else if err != nil {
		return err
	}
	return c.JSON(200, sv)
}

type BatchStatusRequest struct {
	Posts []engine.StatusQuery `json:"posts"`
}

// max identifiers resolved by a single batch request
const maxBatchStatus = 200

func (srv *Server) HandleBatchStatus(c echo.Context) error {
	ctx := c.Request().Context()

	var req BatchStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if len(req.Posts) > maxBatchStatus {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("at most %d posts per request", maxBatchStatus))
	}
	out, err := srv.engine.BatchStatus(ctx, req.Posts)
	if err != nil {
		return err
	}
	return c.JSON(200, out)
}

type EvaluationResponse struct {
	Message    string             `json:"message"`
	Evaluation *models.Evaluation `json:"evaluation"`
	PostStatus models.Verdict     `json:"post_status"`
}

func (srv *Server) HandleSubmitEvaluation(c echo.Context) error {
	ctx := c.Request().Context()

	var in engine.SubmitEvaluationInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	res, err := srv.engine.SubmitEvaluation(ctx, in)
	if err != nil {
		return err
	}
	return c.JSON(201, EvaluationResponse{
		Message:    "Evaluation submitted successfully",
		Evaluation: res.Evaluation,
		PostStatus: res.PostStatus,
	})
}

type ReportResponse struct {
	Message string         `json:"message"`
	Report  *models.Report `json:"report"`
}

func (srv *Server) HandleSubmitReport(c echo.Context) error {
	ctx := c.Request().Context()

	var in engine.SubmitReportInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	report, err := srv.engine.SubmitReport(ctx, in)
	if err != nil {
		return err
	}
	return c.JSON(201, ReportResponse{Message: "Report submitted successfully", Report: report})
}

type ModeResponse struct {
	Mode      string    `json:"mode"`
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (srv *Server) HandleGetModerationMode(c echo.Context) error {
	mode, err := srv.engine.ModerationMode(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(200, ModeResponse{Mode: mode.String(), Active: mode.Active, UpdatedAt: mode.UpdatedAt})
}

func (srv *Server) HandleResetModerationMode(c echo.Context) error {
	mode, err := srv.engine.ResetModerationMode(c.Request().Context(), "admin-api")
	if err != nil {
		return err
	}
	return c.JSON(200, ModeResponse{Mode: mode.String(), Active: mode.Active, UpdatedAt: mode.UpdatedAt})
}

func (srv *Server) HandleActivateModerationMode(c echo.Context) error {
	mode, err := srv.engine.ActivateModerationMode(c.Request().Context(), "admin-api")
	if err != nil {
		return err
	}
	return c.JSON(200, ModeResponse{Mode: mode.String(), Active: mode.Active, UpdatedAt: mode.UpdatedAt})
}

// Runs one review-bombing check immediately, outside of ingestion.
func (srv *Server) HandleMonitorCheck(c echo.Context) error {
	rep, err := srv.engine.Monitor.CheckAndMaybeActivate(c.Request().Context(), srv.engine.Now())
	if err != nil {
		return err
	}
	if rep.Activated {
		srv.logger.Info("review-bombing check requested by operator activated elevated mode", "flagged", len(rep.Flagged))
	}
	return c.JSON(200, rep)
}

func (srv *Server) HandleStats(c echo.Context) error {
	stats, err := srv.engine.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(200, stats)
}
