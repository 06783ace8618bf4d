// Package repository loads event seat layouts for the reservation core.
// Two catalogs are provided: a MySQL-backed one reading the shows,
// seats and show_seats tables, and a generated grid used when no
// database is configured.
package repository

import "errors"

// ErrShowNotFound is returned when the catalog has no show for the
// requested event id.  Handlers translate it into an HTTP 404.
var ErrShowNotFound = errors.New("show not found")

// ErrNoSeats is returned when a show exists but has no active seats.
// Handlers translate it into an HTTP 409.
var ErrNoSeats = errors.New("show has no active seats")
