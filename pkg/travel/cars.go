package travel

import (
	"context"

	"github.com/aretw0/handoff/pkg/domain"
)

type carAction int

const (
	carSearch carAction = iota
	carBook
	carUpdate
	carCancel
	numCarActions
)

var carRentals = inventory{table: "car_rentals", label: "Car rental", idArg: "rental_id"}

var carActions = [numCarActions]actionEntry{
	carSearch: {safe("search_car_rentals", "Search car rentals by location and company.",
		str("location", "Pickup city, e.g. Basel."),
		str("name", "Part of the rental company name."),
		str("price_tier", "Vehicle class, e.g. Economy or Luxury."),
		str("start_date", "Pickup date, YYYY-MM-DD."),
		str("end_date", "Return date, YYYY-MM-DD."),
	), (*Service).searchCars},
	carBook: {sensitive("book_car_rental", "Book a car rental by id.",
		carRentals.idParam("car rental to book"),
	), (*Service).bookCar},
	carUpdate: {sensitive("update_car_rental", "Change the dates of a car rental.",
		carRentals.idParam("booked car rental"),
		str("start_date", "New pickup date, YYYY-MM-DD."),
		str("end_date", "New return date, YYYY-MM-DD."),
	), (*Service).updateCar},
	carCancel: {sensitive("cancel_car_rental", "Cancel a car rental.",
		carRentals.idParam("booked car rental"),
	), (*Service).cancelCar},
}

type carArgs struct {
	RentalID  int64  `json:"rental_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (s *Service) searchCars(ctx context.Context, call domain.ToolCall) (any, error) {
	var args searchArgs
	if err := decodeArgs(call.Proposal.Args, &args); err != nil {
		return nil, err
	}
	return carRentals.search(ctx, s.db,
		"id, name, location, price_tier, COALESCE(start_date, ''), COALESCE(end_date, ''), booked",
		scanDated, args)
}

func (s *Service) bookCar(ctx context.Context, call domain.ToolCall) (any, error) {
	var args carArgs
	if err := decodeArgs(call.Proposal.Args, &args); err != nil {
		return nil, err
	}
	return carRentals.setBooked(ctx, s.db, args.RentalID, true)
}

func (s *Service) updateCar(ctx context.Context, call domain.ToolCall) (any, error) {
	var args carArgs
	if err := decodeArgs(call.Proposal.Args, &args); err != nil {
		return nil, err
	}
	return carRentals.update(ctx, s.db, args.RentalID,
		[]string{"start_date", "end_date"}, args.StartDate, args.EndDate)
}

func (s *Service) cancelCar(ctx context.Context, call domain.ToolCall) (any, error) {
	var args carArgs
	if err := decodeArgs(call.Proposal.Args, &args); err != nil {
		return nil, err
	}
	return carRentals.setBooked(ctx, s.db, args.RentalID, false)
}
