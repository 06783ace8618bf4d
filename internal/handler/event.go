package handler

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/seat-reservation/internal/model"
    "github.com/iliyamo/seat-reservation/internal/reservation"
)

// EventHandler serves seat maps and lets owners provision and tear down
// events.  Seat maps are advisory: a seat shown FREE may be taken by the
// time a booking for it runs.
type EventHandler struct {
    Coord    *reservation.Coordinator
    Registry *reservation.Registry
    Catalog  reservation.CatalogProvider
    Log      *zap.Logger
}

// NewEventHandler constructs an EventHandler and panics if a dependency is nil.
func NewEventHandler(coord *reservation.Coordinator, catalog reservation.CatalogProvider, log *zap.Logger) *EventHandler {
    if coord == nil || catalog == nil {
        panic("nil dependency passed to NewEventHandler")
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &EventHandler{Coord: coord, Registry: coord.Registry(), Catalog: catalog, Log: log.Named("events")}
}

type eventSummary struct {
    ID        string `json:"id"`
    Name      string `json:"name"`
    Seats     int    `json:"seats"`
    Available int    `json:"available"`
}

// ListEvents handles GET /v1/events.
func (h *EventHandler) ListEvents(c echo.Context) error {
    ids := h.Registry.Events()
    out := make([]eventSummary, 0, len(ids))
    for _, id := range ids {
        p, err := h.Registry.Pool(id)
        if err != nil {
            continue // removed concurrently
        }
        out = append(out, eventSummary{ID: id, Name: p.Name(), Seats: p.Len(), Available: len(p.Available())})
    }
    return c.JSON(http.StatusOK, echo.Map{"events": out})
}

// Seats handles GET /v1/events/:id/seats.  The optional row query
// parameter restricts the map to one row.
func (h *EventHandler) Seats(c echo.Context) error {
    p, err := h.Registry.Pool(c.Param("id"))
    if err != nil {
        return writeError(c, err)
    }
    row := strings.ToUpper(strings.TrimSpace(c.QueryParam("row")))
    statuses := p.Statuses()
    available := 0
    if row != "" {
        filtered := statuses[:0]
        for _, s := range statuses {
            if s.Key.Row == row {
                filtered = append(filtered, s)
            }
        }
        statuses = filtered
        available = len(p.AvailableInRow(row))
    } else {
        available = len(p.Available())
    }
    if statuses == nil {
        statuses = []model.SeatStatus{}
    }
    return c.JSON(http.StatusOK, echo.Map{
        "event_id":  p.EventID(),
        "name":      p.Name(),
        "available": available,
        "seats":     statuses,
    })
}

// Provision handles POST /v1/events with body {"id": "42"}.  The layout
// is loaded from the catalog once; later catalog changes do not affect
// the running event.
func (h *EventHandler) Provision(c echo.Context) error {
    var body struct {
        ID string `json:"id"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    id := strings.TrimSpace(body.ID)
    if id == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "id is required"})
    }
    p, err := h.Registry.Provision(c.Request().Context(), id, h.Catalog)
    if err != nil {
        if statusFor(err) == http.StatusInternalServerError {
            h.Log.Error("provision failed", zap.String("event_id", id), zap.Error(err))
        }
        return writeError(c, err)
    }
    h.Log.Info("event provisioned", zap.String("event_id", id), zap.Int("seats", p.Len()))
    return c.JSON(http.StatusCreated, eventSummary{ID: p.EventID(), Name: p.Name(), Seats: p.Len(), Available: len(p.Available())})
}

// Remove handles DELETE /v1/events/:id.  Waitlisted requesters for the
// event are dropped with it.
func (h *EventHandler) Remove(c echo.Context) error {
    id := c.Param("id")
    if !h.Coord.RemoveEvent(id) {
        return writeError(c, &reservation.BookingError{Kind: reservation.ErrEventNotFound, EventID: id})
    }
    h.Log.Info("event removed", zap.String("event_id", id))
    return c.NoContent(http.StatusNoContent)
}
