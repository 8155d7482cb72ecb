package travel

import (
	"context"

	"github.com/aretw0/handoff/pkg/domain"
)

type excursionAction int

const (
	excursionSearch excursionAction = iota
	excursionBook
	excursionUpdate
	excursionCancel
	numExcursionActions
)

var trips = inventory{table: "trip_recommendations", label: "Trip recommendation", idArg: "recommendation_id"}

var excursionActions = [numExcursionActions]actionEntry{
	excursionSearch: {safe("search_trip_recommendations", "Search excursions and tours.",
		str("location", "Destination, e.g. Lucerne."),
		str("name", "Part of the excursion name."),
		str("keywords", "Comma separated interests, e.g. art,museum."),
	), (*Service).searchTrips},
	excursionBook: {sensitive("book_excursion", "Book an excursion by id.",
		trips.idParam("excursion to book"),
	), (*Service).bookTrip},
	excursionUpdate: {sensitive("update_excursion", "Change the details of a booked excursion.",
		trips.idParam("booked excursion"),
		required(str("details", "New details or special requirements.")),
	), (*Service).updateTrip},
	excursionCancel: {sensitive("cancel_excursion", "Cancel a booked excursion.",
		trips.idParam("booked excursion"),
	), (*Service).cancelTrip},
}

type tripArgs struct {
	RecommendationID int64  `json:"recommendation_id"`
	Details          string `json:"details"`
}

func scanTrip(l *Listing) []any {
	return []any{&l.ID, &l.Name, &l.Location, &l.Keywords, &l.Details, &l.Booked}
}

func (s *Service) searchTrips(ctx context.Context, call domain.ToolCall) (any, error) {
	var args searchArgs
	if err := decodeArgs(call.Proposal.Args, &args); err != nil {
		return nil, err
	}
	return trips.search(ctx, s.db, "id, name, location, keywords, details, booked", scanTrip, args)
}

func (s *Service) bookTrip(ctx context.Context, call domain.ToolCall) (any, error) {
	var args tripArgs
	if err := decodeArgs(call.Proposal.Args, &args); err != nil {
		return nil, err
	}
	return trips.setBooked(ctx, s.db, args.RecommendationID, true)
}

func (s *Service) updateTrip(ctx context.Context, call domain.ToolCall) (any, error) {
	var args tripArgs
	if err := decodeArgs(call.Proposal.Args, &args); err != nil {
		return nil, err
	}
	return trips.update(ctx, s.db, args.RecommendationID, []string{"details"}, args.Details)
}

func (s *Service) cancelTrip(ctx context.Context, call domain.ToolCall) (any, error) {
	var args tripArgs
	if err := decodeArgs(call.Proposal.Args, &args); err != nil {
		return nil, err
	}
	return trips.setBooked(ctx, s.db, args.RecommendationID, false)
}
