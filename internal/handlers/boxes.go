package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"temperaturebox/internal/device"
	"temperaturebox/internal/models"
	"temperaturebox/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK        = "ok"
	statusStarted   = "started"
	statusStopped   = "stopped"
	statusStepAdded = "step_added"
	statusCleared   = "protocol_cleared"
	statusUpdated   = "connection_updated"

	errInvalidBoxID    = "invalid box id"
	errInvalidBodyPref = "invalid body: "
	errListBoxes       = "failed to load boxes"
	errCommandFailed   = "command failed"
	errListPorts       = "failed to enumerate serial ports"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// respondServiceError maps engine errors onto status codes. Rejected input
// and state conflicts are the operator's to fix and are not logged as errors.
func (h *Handler) respondServiceError(c *gin.Context, err error, logKey string, kv ...interface{}) {
	var de *device.DeviceError
	switch {
	case service.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrBoxRunning), errors.Is(err, service.ErrNotRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUnknownBox):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &de):
		h.logAndJSONError(c, http.StatusInternalServerError, err.Error(), logKey, err, kv...)
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, errCommandFailed, logKey, err, kv...)
	}
}

// boxID parses the :id path parameter and writes a 400 when it is not a number.
func (h *Handler) boxID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBoxID})
		return 0, false
	}
	return id, true
}

// Respond with a status and include the box snapshot if available (best-effort).
func (h *Handler) respondWithStatusAndBox(c *gin.Context, id int, status string, extra gin.H) {
	resp := gin.H{"status": status}
	for k, v := range extra {
		resp[k] = v
	}
	if snap, err := h.services.Monitoring.GetBox(c.Request.Context(), id); err == nil {
		resp["box"] = snap
	}
	c.JSON(http.StatusOK, resp)
}

// StartRequest names the run; the CSV file is <data_directory>/<basename>.csv.
type StartRequest struct {
	Basename string `json:"basename" binding:"required" example:"batch-42"`
}

// StepRequest appends one protocol step. A negative time holds the temperature forever.
type StepRequest struct {
	Temperature *float64 `json:"temperature" binding:"required" example:"120"`
	Time        *float64 `json:"time" binding:"required" example:"1.5"`
}

// ConnectionRequest changes the serial port and Modbus address together.
type ConnectionRequest struct {
	Port    string `json:"port" binding:"required" example:"/dev/ttyUSB0"`
	Address int    `json:"address" binding:"required" example:"3"`
}

type PortRequest struct {
	Port string `json:"port" binding:"required" example:"COM3"`
}

type AddressRequest struct {
	Address int `json:"address" binding:"required" example:"5"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      List boxes
// @Tags         boxes
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, boxes"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/boxes [get]
// @Security     BearerAuth
func (h *Handler) listBoxes(c *gin.Context) {
	boxes, err := h.services.Monitoring.ListBoxes(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListBoxes, "boxes_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(boxes),
		"boxes": boxes,
	})
}

// @Summary      Get box
// @Tags         boxes
// @Produce      json
// @Param        id   path      int  true  "Box index"
// @Success      200  {object}  models.BoxSnapshot
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/boxes/{id} [get]
// @Security     BearerAuth
func (h *Handler) getBox(c *gin.Context) {
	id, ok := h.boxID(c)
	if !ok {
		return
	}
	snap, err := h.services.Monitoring.GetBox(c.Request.Context(), id)
	if err != nil {
		h.respondServiceError(c, err, "box_get_failed", "box", id)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// @Summary      Start a run
// @Description  Queues the run; the first setpoint is written on the next tick.
// @Tags         boxes
// @Accept       json
// @Produce      json
// @Param        id    path  int           true  "Box index"
// @Param        body  body  StartRequest  true  "Run name"
// @Success      200   {object}  map[string]interface{}  "status, box"
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/boxes/{id}/start [post]
// @Security     BearerAuth
func (h *Handler) startBox(c *gin.Context) {
	id, ok := h.boxID(c)
	if !ok {
		return
	}
	var req StartRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	if err := h.services.Control.Start(c.Request.Context(), id, req.Basename); err != nil {
		h.respondServiceError(c, err, "box_start_failed", "box", id)
		return
	}
	h.respondWithStatusAndBox(c, id, statusStarted, gin.H{"basename": req.Basename})
}

// @Summary      Stop a run
// @Tags         boxes
// @Produce      json
// @Param        id   path  int  true  "Box index"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/boxes/{id}/stop [post]
// @Security     BearerAuth
func (h *Handler) stopBox(c *gin.Context) {
	id, ok := h.boxID(c)
	if !ok {
		return
	}
	if err := h.services.Control.Stop(c.Request.Context(), id); err != nil {
		h.respondServiceError(c, err, "box_stop_failed", "box", id)
		return
	}
	h.respondWithStatusAndBox(c, id, statusStopped, gin.H{})
}

// @Summary      Check instrument
// @Description  Reads SV and PV once without touching the run.
// @Tags         boxes
// @Produce      json
// @Param        id   path  int  true  "Box index"
// @Success      200  {object}  map[string]interface{}  "reading, text"
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/boxes/{id}/check [post]
// @Security     BearerAuth
func (h *Handler) checkBox(c *gin.Context) {
	id, ok := h.boxID(c)
	if !ok {
		return
	}
	r, err := h.services.Control.Check(c.Request.Context(), id)
	if err != nil {
		h.respondServiceError(c, err, "box_check_failed", "box", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reading": r,
		"text":    service.CheckText(r),
	})
}

// @Summary      Append a protocol step
// @Tags         boxes
// @Accept       json
// @Produce      json
// @Param        id    path  int          true  "Box index"
// @Param        body  body  StepRequest  true  "Step"
// @Success      200   {object}  map[string]interface{}  "status, step, box"
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/boxes/{id}/steps [post]
// @Security     BearerAuth
func (h *Handler) addStep(c *gin.Context) {
	id, ok := h.boxID(c)
	if !ok {
		return
	}
	var req StepRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	step, err := h.services.Control.AddStep(c.Request.Context(), id, service.StepParams{
		Temperature:   *req.Temperature,
		DurationHours: *req.Time,
	})
	if err != nil {
		h.respondServiceError(c, err, "box_add_step_failed", "box", id)
		return
	}
	h.respondWithStatusAndBox(c, id, statusStepAdded, gin.H{
		"step": step,
		"text": step.Describe(),
	})
}

// @Summary      Clear the protocol
// @Tags         boxes
// @Produce      json
// @Param        id   path  int  true  "Box index"
// @Success      200  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/boxes/{id}/steps [delete]
// @Security     BearerAuth
func (h *Handler) clearProtocol(c *gin.Context) {
	id, ok := h.boxID(c)
	if !ok {
		return
	}
	if err := h.services.Control.ClearProtocol(c.Request.Context(), id); err != nil {
		h.respondServiceError(c, err, "box_clear_protocol_failed", "box", id)
		return
	}
	h.respondWithStatusAndBox(c, id, statusCleared, gin.H{})
}

// @Summary      Set port and address
// @Tags         boxes
// @Accept       json
// @Produce      json
// @Param        id    path  int                true  "Box index"
// @Param        body  body  ConnectionRequest  true  "Connection"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/boxes/{id}/connection [put]
// @Security     BearerAuth
func (h *Handler) setConnection(c *gin.Context) {
	id, ok := h.boxID(c)
	if !ok {
		return
	}
	var req ConnectionRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	conn := models.Connection{Port: req.Port, Address: req.Address}
	if err := h.services.Control.SetConnection(c.Request.Context(), id, conn); err != nil {
		h.respondServiceError(c, err, "box_set_connection_failed", "box", id)
		return
	}
	h.respondWithStatusAndBox(c, id, statusUpdated, gin.H{})
}

// @Summary      Set port
// @Tags         boxes
// @Accept       json
// @Produce      json
// @Param        id    path  int          true  "Box index"
// @Param        body  body  PortRequest  true  "Port"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/boxes/{id}/port [put]
// @Security     BearerAuth
func (h *Handler) setPort(c *gin.Context) {
	id, ok := h.boxID(c)
	if !ok {
		return
	}
	var req PortRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	if err := h.services.Control.SetPort(c.Request.Context(), id, req.Port); err != nil {
		h.respondServiceError(c, err, "box_set_port_failed", "box", id)
		return
	}
	h.respondWithStatusAndBox(c, id, statusUpdated, gin.H{})
}

// @Summary      Set Modbus address
// @Tags         boxes
// @Accept       json
// @Produce      json
// @Param        id    path  int             true  "Box index"
// @Param        body  body  AddressRequest  true  "Address (1-24)"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/boxes/{id}/address [put]
// @Security     BearerAuth
func (h *Handler) setAddress(c *gin.Context) {
	id, ok := h.boxID(c)
	if !ok {
		return
	}
	var req AddressRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	if err := h.services.Control.SetAddress(c.Request.Context(), id, req.Address); err != nil {
		h.respondServiceError(c, err, "box_set_address_failed", "box", id)
		return
	}
	h.respondWithStatusAndBox(c, id, statusUpdated, gin.H{})
}

// @Summary      List serial ports
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, ports"
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/ports [get]
// @Security     BearerAuth
func (h *Handler) listPorts(c *gin.Context) {
	ports, err := h.services.Control.Ports(c.Request.Context())
	if err != nil {
		var ce *device.ConfigError
		msg := errListPorts
		if errors.As(err, &ce) {
			msg = ce.Error()
		}
		h.logAndJSONError(c, http.StatusInternalServerError, msg, "ports_list_failed", err)
		return
	}
	if ports == nil {
		ports = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(ports),
		"ports": ports,
	})
}
