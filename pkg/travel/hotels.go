package travel

import (
	"context"

	"github.com/aretw0/handoff/pkg/domain"
)

type hotelAction int

const (
	hotelSearch hotelAction = iota
	hotelBook
	hotelUpdate
	hotelCancel
	numHotelActions
)

var hotels = inventory{table: "hotels", label: "Hotel", idArg: "hotel_id"}

var hotelActions = [numHotelActions]actionEntry{
	hotelSearch: {safe("search_hotels", "Search hotels by location and name.",
		str("location", "City or area, e.g. Basel."),
		str("name", "Part of the hotel name."),
		str("price_tier", "Midscale, Upper Midscale, Upscale or Luxury."),
		str("checkin_date", "Planned check-in date, YYYY-MM-DD."),
		str("checkout_date", "Planned check-out date, YYYY-MM-DD."),
	), (*Service).searchHotels},
	hotelBook: {sensitive("book_hotel", "Book a hotel by id.",
		hotels.idParam("hotel to book"),
	), (*Service).bookHotel},
	hotelUpdate: {sensitive("update_hotel", "Change the dates of a hotel booking.",
		hotels.idParam("booked hotel"),
		str("checkin_date", "New check-in date, YYYY-MM-DD."),
		str("checkout_date", "New check-out date, YYYY-MM-DD."),
	), (*Service).updateHotel},
	hotelCancel: {sensitive("cancel_hotel", "Cancel a hotel booking.",
		hotels.idParam("booked hotel"),
	), (*Service).cancelHotel},
}

type hotelArgs struct {
	HotelID      int64  `json:"hotel_id"`
	CheckinDate  string `json:"checkin_date"`
	CheckoutDate string `json:"checkout_date"`
}

func (s *Service) searchHotels(ctx context.Context, call domain.ToolCall) (any, error) {
	var args searchArgs
	if err := decodeArgs(call.Proposal.Args, &args); err != nil {
		return nil, err
	}
	// Dates and price tier are accepted but the demo inventory matches any of them.
	return hotels.search(ctx, s.db,
		"id, name, location, price_tier, COALESCE(checkin_date, ''), COALESCE(checkout_date, ''), booked",
		scanDated, args)
}

func (s *Service) bookHotel(ctx context.Context, call domain.ToolCall) (any, error) {
	var args hotelArgs
	if err := decodeArgs(call.Proposal.Args, &args); err != nil {
		return nil, err
	}
	return hotels.setBooked(ctx, s.db, args.HotelID, true)
}

func (s *Service) updateHotel(ctx context.Context, call domain.ToolCall) (any, error) {
	var args hotelArgs
	if err := decodeArgs(call.Proposal.Args, &args); err != nil {
		return nil, err
	}
	return hotels.update(ctx, s.db, args.HotelID,
		[]string{"checkin_date", "checkout_date"}, args.CheckinDate, args.CheckoutDate)
}

func (s *Service) cancelHotel(ctx context.Context, call domain.ToolCall) (any, error) {
	var args hotelArgs
	if err := decodeArgs(call.Proposal.Args, &args); err != nil {
		return nil, err
	}
	return hotels.setBooked(ctx, s.db, args.HotelID, false)
}
