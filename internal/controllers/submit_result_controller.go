package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pgxn-tester/server/internal/services"
	"github.com/pgxn-tester/server/pkg/domain"
)

type submitResultController struct{ svc services.IntakeService }

func NewSubmitResultController(s services.IntakeService) *submitResultController {
	return &submitResultController{svc: s}
}

func (h *submitResultController) Handle(c *gin.Context) {
	req, err := decodeSubmitRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.svc.Submit(c.Request.Context(), *req)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, services.ErrMachineUnauthorized),
			errors.Is(err, services.ErrInvalidSignature):
			status = http.StatusUnauthorized
		case errors.Is(err, services.ErrVersionNotFound):
			status = http.StatusNotFound
		case errors.Is(err, services.ErrDuplicateResult):
			status = http.StatusConflict
		default:
			var verr *services.ValidationError
			if !errors.As(err, &verr) {
				status = http.StatusInternalServerError
			}
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"uuid": id})
}

// decodeSubmitRequest reads the payload without re-rendering any value:
// the signature covers the exact wire-form strings, so numbers are kept as
// their original tokens and nothing is reformatted.
func decodeSubmitRequest(c *gin.Context) (*domain.SubmitRequest, error) {
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid request body")
	}

	fields := make(map[string]string, len(raw))
	for name, value := range raw {
		switch v := value.(type) {
		case string:
			fields[name] = v
		case json.Number:
			fields[name] = v.String()
		case bool:
			fields[name] = strconv.FormatBool(v)
		case nil:
			// absent for signing purposes
		default:
			return nil, fmt.Errorf("field %q must be a scalar", name)
		}
	}

	for _, required := range []string{"distribution", "version", "machine", "signature"} {
		if fields[required] == "" {
			return nil, fmt.Errorf("missing required field %q", required)
		}
	}

	req := domain.SubmitRequest{
		Distribution: fields["distribution"],
		Version:      fields["version"],
		Machine:      fields["machine"],
		Signature:    fields["signature"],
		Install:      fields["install"],
		Load:         fields["load"],
		Check:        fields["check"],
		InstallLog:   fields["install_log"],
		LoadLog:      fields["load_log"],
		CheckLog:     fields["check_log"],
		CheckDiff:    fields["check_diff"],
		PGConfig:     fields["config"],
		EnvInfo:      fields["env"],
		UUID:         fields["uuid"],
		Fields:       fields,
	}

	var err error
	if req.InstallDuration, err = parseDuration(fields, "install_duration"); err != nil {
		return nil, err
	}
	if req.LoadDuration, err = parseDuration(fields, "load_duration"); err != nil {
		return nil, err
	}
	if req.CheckDuration, err = parseDuration(fields, "check_duration"); err != nil {
		return nil, err
	}
	return &req, nil
}

func parseDuration(fields map[string]string, name string) (*int64, error) {
	s, ok := fields[name]
	if !ok || s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("field %q must be an integer", name)
	}
	return &n, nil
}
