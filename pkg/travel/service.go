package travel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/handoff/internal/logging"
	"github.com/aretw0/handoff/pkg/domain"
)

// Handler IDs of the travel assistants.
const (
	FlightHandler    domain.HandlerID = "flight"
	HotelHandler     domain.HandlerID = "hotel"
	CarHandler       domain.HandlerID = "car"
	ExcursionHandler domain.HandlerID = "excursion"
)

type dispatcherAction int

const (
	dispatcherLookupPolicy dispatcherAction = iota
	dispatcherFetchFlights
	dispatcherSearchFlights
	numDispatcherActions
)

var dispatcherActions = [numDispatcherActions]actionEntry{
	dispatcherLookupPolicy: {safe("lookup_policy",
		"Consult company policies before changing a booking or answering questions about what is allowed.",
		required(str("query", "The policy question in plain language.")),
	), (*Service).lookupPolicy},
	dispatcherFetchFlights:  {fetchUserFlightsSpec(), (*Service).fetchUserFlights},
	dispatcherSearchFlights: {searchFlightsSpec(), (*Service).searchFlights},
}

// Service exposes the travel database and policy index as handler toolsets.
type Service struct {
	db       *DB
	policies *PolicyIndex
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used by the rescheduling rule.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the logger for booking changes.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates the travel service. policies may be nil, in which case
// policy lookups report that no policy document is loaded.
func NewService(db *DB, policies *PolicyIndex, opts ...Option) *Service {
	s := &Service{
		db:       db,
		policies: policies,
		now:      time.Now,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatcher returns the primary assistant.
func (s *Service) Dispatcher() domain.DispatcherSpec {
	return domain.DispatcherSpec{
		Instructions: dispatcherInstructions,
		Tools:        s.bind(dispatcherActions[:]),
	}
}

// Handlers returns the flight, hotel, car and excursion assistants.
func (s *Service) Handlers() []domain.HandlerSpec {
	return []domain.HandlerSpec{
		{
			ID:           FlightHandler,
			Name:         "Flight Updates & Booking Assistant",
			Instructions: specialistInstructions("flight changes and cancellations"),
			Delegation: delegation("transfer_to_flight_assistant",
				"Hand the conversation to the assistant that changes and cancels flights.",
				required(str("request", "Follow-up questions the flight assistant should clarify before acting."))),
			Tools: s.bind(flightActions[:]),
		},
		{
			ID:           HotelHandler,
			Name:         "Hotel Booking Assistant",
			Instructions: specialistInstructions("hotel bookings"),
			Delegation: delegation("transfer_to_hotel_assistant",
				"Hand the conversation to the assistant that books hotels.",
				required(str("location", "Where the customer wants to stay.")),
				required(str("checkin_date", "Check-in date.")),
				required(str("checkout_date", "Check-out date.")),
				required(str("request", "Anything else the customer asked for about the stay."))),
			Tools: s.bind(hotelActions[:]),
		},
		{
			ID:           CarHandler,
			Name:         "Car Rental Assistant",
			Instructions: specialistInstructions("car rentals"),
			Delegation: delegation("transfer_to_car_rental_assistant",
				"Hand the conversation to the assistant that books rental cars.",
				required(str("location", "Where the customer wants to pick up the car.")),
				required(str("start_date", "Pickup date.")),
				required(str("end_date", "Return date.")),
				required(str("request", "Anything else the customer asked for about the car."))),
			Tools: s.bind(carActions[:]),
		},
		{
			ID:           ExcursionHandler,
			Name:         "Trip Recommendation Assistant",
			Instructions: specialistInstructions("excursions and trip recommendations"),
			Delegation: delegation("transfer_to_excursion_assistant",
				"Hand the conversation to the assistant that recommends and books excursions.",
				required(str("location", "Where the customer wants to go.")),
				required(str("request", "What kind of activity the customer is looking for."))),
			Tools: s.bind(excursionActions[:]),
		},
	}
}

func delegation(name, description string, params ...domain.Param) domain.ToolSpec {
	return safe(name, description, params...)
}

type lookupPolicyArgs struct {
	Query string `json:"query"`
}

func (s *Service) lookupPolicy(ctx context.Context, call domain.ToolCall) (any, error) {
	if s.policies == nil {
		return "No policy document is loaded.", nil
	}
	var args lookupPolicyArgs
	if err := decodeArgs(call.Proposal.Args, &args); err != nil {
		return nil, err
	}
	sections, err := s.policies.Query(ctx, args.Query, DefaultPolicyMatches)
	if err != nil {
		return nil, err
	}
	return strings.Join(sections, "\n\n"), nil
}

// FetchContext renders the passenger's itinerary for the start of a thread.
func (s *Service) FetchContext(ctx context.Context, userID string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Current time: %s UTC.\n", s.now().UTC().Format(timeLayout))
	if userID == "" {
		b.WriteString("The customer is not signed in.")
		return b.String(), nil
	}

	flights, err := s.db.PassengerFlights(ctx, userID)
	if err != nil {
		return "", err
	}
	if len(flights) == 0 {
		fmt.Fprintf(&b, "Passenger %s has no flights booked.", userID)
		return b.String(), nil
	}
	fmt.Fprintf(&b, "Flights of passenger %s:\n", userID)
	for _, f := range flights {
		fmt.Fprintf(&b, "- Ticket %s (booking %s): %s %s -> %s, departs %s, arrives %s, seat %s, %s\n",
			f.TicketNo, f.BookRef, f.FlightNo, f.DepartureAirport, f.ArrivalAirport,
			f.ScheduledDeparture, f.ScheduledArrival, f.SeatNo, f.FareConditions)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
