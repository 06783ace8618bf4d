package model

// Event is a bookable occurrence (a show, a concert, a flight) together
// with its fixed seat layout.  It is produced by a catalog when the
// event is provisioned and is not consulted during booking.
type Event struct {
    ID    string
    Name  string
    Seats []SeatSpec
}
