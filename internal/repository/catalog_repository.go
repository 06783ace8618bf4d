package repository // repository for loading event layouts from MySQL

import (
    "context"
    "database/sql"
    "errors"
    "strconv"
    "strings"

    "github.com/iliyamo/seat-reservation/internal/model"
)

// SeatRow is one row of the layout query: a physical seat joined with
// its per-show price.
type SeatRow struct {
    RowLabel   string // e.g. A, B, AA
    SeatNumber uint32 // position in the row (1-based)
    SeatType   string // STANDARD | VIP | ACCESSIBLE
    PriceCents uint32 // price for this seat in this show
}

// CatalogRepo reads event layouts from the shows, seats and show_seats
// tables.  Event ids are show ids in decimal form.  It implements
// reservation.CatalogProvider.
type CatalogRepo struct {
    db *sql.DB
}

// NewCatalogRepo constructs a CatalogRepo given a DB handle.
func NewCatalogRepo(db *sql.DB) *CatalogRepo {
    return &CatalogRepo{db: db}
}

// Layout loads the title and active seats of the show identified by
// eventID.  ErrShowNotFound is returned for unknown or non-numeric ids
// and ErrNoSeats when the show has no active seats.
func (r *CatalogRepo) Layout(ctx context.Context, eventID string) (model.Event, error) {
    showID, err := strconv.ParseUint(eventID, 10, 64)
    if err != nil || showID == 0 {
        return model.Event{}, ErrShowNotFound
    }

    var title string
    const qShow = `SELECT title FROM shows WHERE id = ?`
    if err := r.db.QueryRowContext(ctx, qShow, showID).Scan(&title); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return model.Event{}, ErrShowNotFound
        }
        return model.Event{}, err
    }

    const qSeats = `SELECT se.row_label, se.seat_number, se.seat_type, ss.price_cents
                    FROM show_seats ss
                    JOIN seats se ON se.id = ss.seat_id
                    WHERE ss.show_id = ? AND se.is_active = 1
                    ORDER BY LENGTH(se.row_label), se.row_label, se.seat_number`
    rows, err := r.db.QueryContext(ctx, qSeats, showID)
    if err != nil {
        return model.Event{}, err
    }
    defer rows.Close()

    var seats []SeatRow
    for rows.Next() {
        var s SeatRow
        if err := rows.Scan(&s.RowLabel, &s.SeatNumber, &s.SeatType, &s.PriceCents); err != nil {
            return model.Event{}, err
        }
        seats = append(seats, s)
    }
    if err := rows.Err(); err != nil {
        return model.Event{}, err
    }
    if len(seats) == 0 {
        return model.Event{}, ErrNoSeats
    }
    return model.Event{ID: eventID, Name: title, Seats: SeatSpecs(seats)}, nil
}

// SeatSpecs converts layout rows into seat specs.  Unknown seat types
// fall back to STANDARD.
func SeatSpecs(rows []SeatRow) []model.SeatSpec {
    out := make([]model.SeatSpec, 0, len(rows))
    for _, r := range rows {
        out = append(out, model.SeatSpec{
            Key:        model.SeatKey{Row: strings.ToUpper(strings.TrimSpace(r.RowLabel)), Number: r.SeatNumber},
            Type:       normalizeSeatType(r.SeatType),
            PriceCents: r.PriceCents,
        })
    }
    return out
}

func normalizeSeatType(t string) model.SeatType {
    switch model.SeatType(strings.ToUpper(strings.TrimSpace(t))) {
    case model.SeatTypeVIP:
        return model.SeatTypeVIP
    case model.SeatTypeAccessible:
        return model.SeatTypeAccessible
    default:
        return model.SeatTypeStandard
    }
}
