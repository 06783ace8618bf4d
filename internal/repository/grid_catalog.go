package repository

import (
    "context"
    "fmt"
    "strings"

    "github.com/iliyamo/seat-reservation/internal/model"
)

// GridCatalog generates a rectangular layout for any event id.  Rows are
// labelled A..Z, AA..AZ and so on.  It implements
// reservation.CatalogProvider without a database.
type GridCatalog struct {
    Rows        int
    SeatsPerRow int
    // PriceCents is the standard seat price.
    PriceCents uint32
    // VIPRows lists row labels whose seats are VIP.
    VIPRows []string
    // VIPPriceCents is the VIP seat price; zero means twice PriceCents.
    VIPPriceCents uint32
}

// Layout implements reservation.CatalogProvider.
func (g GridCatalog) Layout(ctx context.Context, eventID string) (model.Event, error) {
    if err := ctx.Err(); err != nil {
        return model.Event{}, err
    }
    if strings.TrimSpace(eventID) == "" {
        return model.Event{}, ErrShowNotFound
    }
    if g.Rows <= 0 || g.SeatsPerRow <= 0 {
        return model.Event{}, ErrNoSeats
    }
    vip := make(map[string]bool, len(g.VIPRows))
    for _, r := range g.VIPRows {
        vip[strings.ToUpper(strings.TrimSpace(r))] = true
    }
    vipPrice := g.VIPPriceCents
    if vipPrice == 0 {
        vipPrice = 2 * g.PriceCents
    }
    seats := make([]model.SeatSpec, 0, g.Rows*g.SeatsPerRow)
    for i := 0; i < g.Rows; i++ {
        label := RowLabel(i)
        typ, price := model.SeatTypeStandard, g.PriceCents
        if vip[label] {
            typ, price = model.SeatTypeVIP, vipPrice
        }
        for n := 1; n <= g.SeatsPerRow; n++ {
            seats = append(seats, model.SeatSpec{
                Key:        model.SeatKey{Row: label, Number: uint32(n)},
                Type:       typ,
                PriceCents: price,
            })
        }
    }
    return model.Event{ID: eventID, Name: fmt.Sprintf("Event %s", eventID), Seats: seats}, nil
}

// RowLabel returns the spreadsheet-style label of the zero-based row i:
// 0 -> A, 25 -> Z, 26 -> AA.
func RowLabel(i int) string {
    var b []byte
    for i++; i > 0; i = (i - 1) / 26 {
        b = append([]byte{byte('A' + (i-1)%26)}, b...)
    }
    return string(b)
}
