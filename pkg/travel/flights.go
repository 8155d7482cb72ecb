package travel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/handoff/pkg/domain"
)

// MinRescheduleNotice is how far ahead a replacement flight must depart.
const MinRescheduleNotice = 3 * time.Hour

type flightAction int

const (
	flightSearch flightAction = iota
	flightUpdateTicket
	flightCancelTicket
	numFlightActions
)

var flightActions = [numFlightActions]actionEntry{
	flightSearch:       {searchFlightsSpec(), (*Service).searchFlights},
	flightUpdateTicket: {updateTicketSpec(), (*Service).updateTicket},
	flightCancelTicket: {cancelTicketSpec(), (*Service).cancelTicket},
}

func searchFlightsSpec() domain.ToolSpec {
	return safe("search_flights", "Search for flights by airports and departure window.",
		str("departure_airport", "IATA code of the departure airport, e.g. CDG."),
		str("arrival_airport", "IATA code of the arrival airport, e.g. BSL."),
		str("start_time", "Earliest departure, formatted YYYY-MM-DD HH:MM:SS (UTC)."),
		str("end_time", "Latest departure, formatted YYYY-MM-DD HH:MM:SS (UTC)."),
		integer("limit", "Maximum number of flights to return. Defaults to 20."),
	)
}

func updateTicketSpec() domain.ToolSpec {
	return sensitive("update_ticket_to_new_flight", "Move the passenger's ticket to another flight.",
		required(str("ticket_no", "The ticket to rebook.")),
		required(integer("new_flight_id", "The flight_id of the replacement flight.")),
	)
}

func cancelTicketSpec() domain.ToolSpec {
	return sensitive("cancel_ticket", "Cancel the passenger's ticket.",
		required(str("ticket_no", "The ticket to cancel.")),
	)
}

func fetchUserFlightsSpec() domain.ToolSpec {
	return safe("fetch_user_flight_information",
		"Fetch every ticket of the signed-in passenger with its flight and seat.")
}

// Flight is one row of the flights table.
type Flight struct {
	FlightID           int64  `json:"flight_id"`
	FlightNo           string `json:"flight_no"`
	DepartureAirport   string `json:"departure_airport"`
	ArrivalAirport     string `json:"arrival_airport"`
	ScheduledDeparture string `json:"scheduled_departure"`
	ScheduledArrival   string `json:"scheduled_arrival"`
	Status             string `json:"status"`
	AircraftCode       string `json:"aircraft_code"`
}

// TicketFlight is a passenger's ticket joined with its flight and seat.
type TicketFlight struct {
	TicketNo           string `json:"ticket_no"`
	BookRef            string `json:"book_ref"`
	FlightID           int64  `json:"flight_id"`
	FlightNo           string `json:"flight_no"`
	DepartureAirport   string `json:"departure_airport"`
	ArrivalAirport     string `json:"arrival_airport"`
	ScheduledDeparture string `json:"scheduled_departure"`
	ScheduledArrival   string `json:"scheduled_arrival"`
	SeatNo             string `json:"seat_no"`
	FareConditions     string `json:"fare_conditions"`
}

type searchFlightsArgs struct {
	DepartureAirport string `json:"departure_airport"`
	ArrivalAirport   string `json:"arrival_airport"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	Limit            int    `json:"limit"`
}

type updateTicketArgs struct {
	TicketNo    string `json:"ticket_no"`
	NewFlightID int64  `json:"new_flight_id"`
}

type cancelTicketArgs struct {
	TicketNo string `json:"ticket_no"`
}

// PassengerFlights lists every ticket of a passenger.
func (d *DB) PassengerFlights(ctx context.Context, passengerID string) ([]TicketFlight, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT t.ticket_no, t.book_ref,
		       f.flight_id, f.flight_no, f.departure_airport, f.arrival_airport,
		       f.scheduled_departure, f.scheduled_arrival,
		       bp.seat_no, tf.fare_conditions
		FROM tickets t
		JOIN ticket_flights tf ON t.ticket_no = tf.ticket_no
		JOIN flights f ON tf.flight_id = f.flight_id
		JOIN boarding_passes bp ON bp.ticket_no = t.ticket_no AND bp.flight_id = f.flight_id
		WHERE t.passenger_id = ?
		ORDER BY f.scheduled_departure`, passengerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query passenger flights: %w", err)
	}
	defer rows.Close()

	out := []TicketFlight{}
	for rows.Next() {
		var t TicketFlight
		if err := rows.Scan(&t.TicketNo, &t.BookRef, &t.FlightID, &t.FlightNo, &t.DepartureAirport,
			&t.ArrivalAirport, &t.ScheduledDeparture, &t.ScheduledArrival, &t.SeatNo, &t.FareConditions); err != nil {
			return nil, fmt.Errorf("failed to scan passenger flight: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Service) fetchUserFlights(ctx context.Context, call domain.ToolCall) (any, error) {
	id, err := passenger(call)
	if err != nil {
		return nil, err
	}
	return s.db.PassengerFlights(ctx, id)
}

func (s *Service) searchFlights(ctx context.Context, call domain.ToolCall) (any, error) {
	var args searchFlightsArgs
	if err := decodeArgs(call.Proposal.Args, &args); err != nil {
		return nil, err
	}
	if args.Limit <= 0 {
		args.Limit = 20
	}

	query := "SELECT flight_id, flight_no, departure_airport, arrival_airport, scheduled_departure, scheduled_arrival, status, aircraft_code FROM flights WHERE 1 = 1"
	var params []any
	if args.DepartureAirport != "" {
		query += " AND departure_airport = ?"
		params = append(params, args.DepartureAirport)
	}
	if args.ArrivalAirport != "" {
		query += " AND arrival_airport = ?"
		params = append(params, args.ArrivalAirport)
	}
	if args.StartTime != "" {
		query += " AND scheduled_departure >= ?"
		params = append(params, args.StartTime)
	}
	if args.EndTime != "" {
		query += " AND scheduled_departure <= ?"
		params = append(params, args.EndTime)
	}
	query += " ORDER BY scheduled_departure LIMIT ?"
	params = append(params, args.Limit)

	rows, err := s.db.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to search flights: %w", err)
	}
	defer rows.Close()

	out := []Flight{}
	for rows.Next() {
		var f Flight
		if err := rows.Scan(&f.FlightID, &f.FlightNo, &f.DepartureAirport, &f.ArrivalAirport,
			&f.ScheduledDeparture, &f.ScheduledArrival, &f.Status, &f.AircraftCode); err != nil {
			return nil, fmt.Errorf("failed to scan flight: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Service) updateTicket(ctx context.Context, call domain.ToolCall) (any, error) {
	id, err := passenger(call)
	if err != nil {
		return nil, err
	}
	var args updateTicketArgs
	if err := decodeArgs(call.Proposal.Args, &args); err != nil {
		return nil, err
	}

	var departure string
	err = s.db.db.QueryRowContext(ctx,
		"SELECT scheduled_departure FROM flights WHERE flight_id = ?", args.NewFlightID).Scan(&departure)
	if errors.Is(err, sql.ErrNoRows) {
		return "Invalid new flight ID provided.", nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up flight: %w", err)
	}
	departs, err := time.ParseInLocation(timeLayout, departure, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("flight %d has a malformed departure: %w", args.NewFlightID, err)
	}
	if departs.Sub(s.now()) < MinRescheduleNotice {
		return fmt.Sprintf("Not permitted to reschedule to a flight that is less than 3 hours from the current time. Selected flight is at %s.", departure), nil
	}

	if rejection, err := s.checkTicket(ctx, args.TicketNo, id); err != nil || rejection != "" {
		return rejection, err
	}

	if _, err := s.db.db.ExecContext(ctx,
		"UPDATE ticket_flights SET flight_id = ? WHERE ticket_no = ?", args.NewFlightID, args.TicketNo); err != nil {
		return nil, fmt.Errorf("failed to rebook ticket: %w", err)
	}
	if _, err := s.db.db.ExecContext(ctx,
		"UPDATE boarding_passes SET flight_id = ? WHERE ticket_no = ?", args.NewFlightID, args.TicketNo); err != nil {
		return nil, fmt.Errorf("failed to move boarding pass: %w", err)
	}
	s.logger.Info("ticket rebooked", "ticket_no", args.TicketNo, "flight_id", args.NewFlightID)
	return "Ticket successfully updated to new flight.", nil
}

func (s *Service) cancelTicket(ctx context.Context, call domain.ToolCall) (any, error) {
	id, err := passenger(call)
	if err != nil {
		return nil, err
	}
	var args cancelTicketArgs
	if err := decodeArgs(call.Proposal.Args, &args); err != nil {
		return nil, err
	}

	if rejection, err := s.checkTicket(ctx, args.TicketNo, id); err != nil || rejection != "" {
		return rejection, err
	}

	if _, err := s.db.db.ExecContext(ctx, "DELETE FROM ticket_flights WHERE ticket_no = ?", args.TicketNo); err != nil {
		return nil, fmt.Errorf("failed to cancel ticket: %w", err)
	}
	s.logger.Info("ticket cancelled", "ticket_no", args.TicketNo)
	return "Ticket successfully cancelled.", nil
}

// checkTicket returns a rejection message when the ticket has no flight or is
// not owned by the passenger.
func (s *Service) checkTicket(ctx context.Context, ticketNo, passengerID string) (string, error) {
	var flightID int64
	err := s.db.db.QueryRowContext(ctx,
		"SELECT flight_id FROM ticket_flights WHERE ticket_no = ?", ticketNo).Scan(&flightID)
	if errors.Is(err, sql.ErrNoRows) {
		return "No existing ticket found for the given ticket number.", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up ticket: %w", err)
	}

	var owner string
	err = s.db.db.QueryRowContext(ctx,
		"SELECT passenger_id FROM tickets WHERE ticket_no = ? AND passenger_id = ?", ticketNo, passengerID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Sprintf("Current signed-in passenger with ID %s not the owner of ticket %s", passengerID, ticketNo), nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to check ticket owner: %w", err)
	}
	return "", nil
}
